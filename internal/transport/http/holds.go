package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/redact"
)

type sessionResponse struct {
	OwnerID   string    `json:"owner_id"`
	ListingID string    `json:"listing_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{OwnerID: s.OwnerID, ListingID: s.ListingID, State: string(s.State), ExpiresAt: s.ExpiresAt}
}

type previewLine struct {
	Position int    `json:"position"`
	Line     string `json:"line"`
}

type previewResponse struct {
	ListingID string          `json:"listing_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Lines     []previewLine   `json:"lines"`
	Session   sessionResponse `json:"session"`
}

func (h *handlers) preview(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "owner_id is required")
		return
	}

	p, err := h.Checkout.Preview(r.Context(), ownerID, chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	lines := make([]previewLine, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = previewLine{Position: l.Position, Line: l.Safe}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		ListingID: p.Listing.ID,
		Name:      p.Listing.Name,
		Category:  string(p.Listing.Category),
		Lines:     lines,
		Session:   toSessionResponse(p.Session),
	})
}

// reserveRequest accepts the selection either as a list or as pasted text.
type reserveRequest struct {
	OwnerID string   `json:"owner_id"`
	Lines   []string `json:"lines"`
	Text    string   `json:"text"`
}

type heldLineResponse struct {
	Position  int       `json:"position"`
	Line      string    `json:"line"`
	ExpiresAt time.Time `json:"expires_at"`
}

type reserveResponse struct {
	Holds     []heldLineResponse `json:"holds"`
	Created   int                `json:"created"`
	Extended  int                `json:"extended"`
	ExpiresAt time.Time          `json:"expires_at"`
	Session   sessionResponse    `json:"session"`
}

func (h *handlers) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "owner_id is required")
		return
	}
	lines := req.Lines
	if req.Text != "" {
		lines = append(lines, redact.ParseSelection(req.Text)...)
	}

	res, sess, err := h.Checkout.Select(r.Context(), app.ReserveInput{
		OwnerID:   req.OwnerID,
		ListingID: chi.URLParam(r, "listingID"),
		Lines:     lines,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	holds := make([]heldLineResponse, len(res.Holds))
	for i, hold := range res.Holds {
		holds[i] = heldLineResponse{Position: hold.Position, Line: hold.SafeLine, ExpiresAt: hold.HoldExpiresAt}
	}
	writeJSON(w, http.StatusCreated, reserveResponse{
		Holds:     holds,
		Created:   res.Created,
		Extended:  res.Extended,
		ExpiresAt: res.ExpiresAt,
		Session:   toSessionResponse(sess),
	})
}

type extendRequest struct {
	OwnerID string `json:"owner_id"`
	Minutes int    `json:"minutes"`
}

type extendResponse struct {
	Extended  int       `json:"extended"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	res, err := h.Holds.ExtendHolds(r.Context(), req.OwnerID, chi.URLParam(r, "listingID"), req.Minutes)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, extendResponse{Extended: res.Extended, ExpiresAt: res.ExpiresAt})
}

type cancelResponse struct {
	Cancelled int `json:"cancelled"`
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	n, err := h.Checkout.Abort(r.Context(), chi.URLParam(r, "ownerID"), r.URL.Query().Get("listing_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: n})
}

type activeHoldResponse struct {
	ListingID        string    `json:"listing_id"`
	ListingName      string    `json:"listing_name"`
	Category         string    `json:"category"`
	Position         int       `json:"position"`
	Line             string    `json:"line"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
}

func (h *handlers) ownerHolds(w http.ResponseWriter, r *http.Request) {
	held, err := h.Stats.ActiveHolds(r.Context(), chi.URLParam(r, "ownerID"), r.URL.Query().Get("listing_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := make([]activeHoldResponse, 0, len(held))
	for _, hl := range held {
		resp = append(resp, activeHoldResponse{
			ListingID:        hl.Hold.ListingID,
			ListingName:      hl.ListingName,
			Category:         string(hl.ListingCategory),
			Position:         hl.Hold.Position,
			Line:             hl.Hold.SafeLine,
			ExpiresAt:        hl.Hold.HoldExpiresAt,
			ExpiresInSeconds: int64(hl.ExpiresIn / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.Checkout.Session(chi.URLParam(r, "ownerID"))
	if !ok {
		writeError(w, http.StatusNotFound, codeSessionNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}
