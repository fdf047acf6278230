package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/domain"
)

type createListingRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ContentPath string `json:"content_path"`
	PriceCents  *int64 `json:"price_cents"`
	Available   *bool  `json:"available"`
}

type patchListingRequest struct {
	Available *bool `json:"available"`
}

type listingResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ContentPath string    `json:"content_path"`
	PriceCents  *int64    `json:"price_cents,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

func toListingResponse(l domain.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		Name:        l.Name,
		Category:    string(l.Category),
		Description: l.Description,
		ContentPath: l.ContentPath,
		PriceCents:  l.PriceCents,
		Available:   l.Available,
		CreatedAt:   l.CreatedAt,
	}
}

func (h *handlers) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Listings.ListListings(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	listing, err := h.Listings.CreateListing(r.Context(), app.CreateListingInput{
		ID:          req.ID,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		ContentPath: req.ContentPath,
		PriceCents:  req.PriceCents,
		Available:   available,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(listing))
}

func (h *handlers) patchListing(w http.ResponseWriter, r *http.Request) {
	var req patchListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.Available == nil {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "available is required")
		return
	}

	listing, err := h.Listings.SetAvailability(r.Context(), chi.URLParam(r, "listingID"), *req.Available)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

type sweepResponse struct {
	Expired int `json:"expired"`
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.Sweeper.SweepOnce(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.logger.Info("manual sweep", slog.Int("expired", n))
	writeJSON(w, http.StatusOK, sweepResponse{Expired: n})
}
