package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/domain"
)

type saleRequest struct {
	OwnerID     string `json:"owner_id"`
	AmountCents *int64 `json:"amount_cents"`
	ConfirmerID string `json:"confirmer_id"`
	SaleID      string `json:"sale_id"`
}

type saleResponse struct {
	SaleID         string    `json:"sale_id"`
	OwnerID        string    `json:"owner_id"`
	ListingID      string    `json:"listing_id"`
	AmountCents    int64     `json:"amount_cents"`
	LinesConfirmed int       `json:"lines_confirmed"`
	Created        bool      `json:"created"`
	CreatedAt      time.Time `json:"created_at"`
	// ReleaseLines is how many purchased lines GET /release will return.
	ReleaseLines int `json:"release_lines"`
}

// recordSale answers 201 for a new sale and 200 when the sale id was seen
// before.
func (h *handlers) recordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.AmountCents == nil {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "owner_id and amount_cents are required")
		return
	}

	done, err := h.Checkout.Complete(r.Context(), app.SaleInput{
		SaleID:      req.SaleID,
		OwnerID:     req.OwnerID,
		ListingID:   chi.URLParam(r, "listingID"),
		AmountCents: *req.AmountCents,
		ConfirmerID: req.ConfirmerID,
	})
	if err != nil && !(errors.Is(err, domain.ErrNoSoldLines) && done.Sale.Sale.ID != "") {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sale := done.Sale.Sale
	status := http.StatusOK
	if done.Sale.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saleResponse{
		SaleID:         sale.ID,
		OwnerID:        sale.OwnerID,
		ListingID:      sale.ListingID,
		AmountCents:    sale.AmountCents,
		LinesConfirmed: sale.LinesConfirmed,
		Created:        done.Sale.Created,
		CreatedAt:      sale.CreatedAt,
		ReleaseLines:   done.Package.Count,
	})
}

func (h *handlers) release(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "owner_id is required")
		return
	}

	pkg, err := h.Release.BuildReleasePackage(r.Context(), ownerID, chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pkg.FileName))
	w.Header().Set("X-Line-Count", strconv.Itoa(pkg.Count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(pkg.Content))
}
