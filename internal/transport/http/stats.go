package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/linevault/internal/domain"
)

type countsResponse struct {
	Held    int `json:"held"`
	Sold    int `json:"sold"`
	Expired int `json:"expired"`
	Total   int `json:"total"`
}

func toCounts(c domain.StateCounts) countsResponse {
	return countsResponse{Held: c.Held, Sold: c.Sold, Expired: c.Expired, Total: c.Total}
}

type ownerBreakdownResponse struct {
	OwnerID string         `json:"owner_id"`
	Counts  countsResponse `json:"counts"`
}

type listingStatsResponse struct {
	ListingID      string                   `json:"listing_id"`
	Counts         countsResponse           `json:"counts"`
	DistinctOwners int                      `json:"distinct_owners"`
	Owners         []ownerBreakdownResponse `json:"owners"`
}

type globalStatsResponse struct {
	Counts         countsResponse `json:"counts"`
	DistinctOwners int            `json:"distinct_owners"`
	Listings       int            `json:"listings"`
	Sales          int            `json:"sales"`
	RevenueCents   int64          `json:"revenue_cents"`
}

type listingVolumeResponse struct {
	ListingID string `json:"listing_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Rows      int    `json:"rows"`
	Sold      int    `json:"sold"`
}

func (h *handlers) ownerStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Stats.OwnerStats(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCounts(counts))
}

func (h *handlers) listingStats(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")
	stats, err := h.Stats.ListingStats(r.Context(), listingID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	owners, err := h.Stats.ListingOwners(r.Context(), listingID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := listingStatsResponse{
		ListingID:      stats.ListingID,
		Counts:         toCounts(stats.Counts),
		DistinctOwners: stats.DistinctOwners,
		Owners:         make([]ownerBreakdownResponse, 0, len(owners)),
	}
	for _, o := range owners {
		resp.Owners = append(resp.Owners, ownerBreakdownResponse{OwnerID: o.OwnerID, Counts: toCounts(o.Counts)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) globalStats(w http.ResponseWriter, r *http.Request) {
	g, err := h.Stats.GlobalStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, globalStatsResponse{
		Counts:         toCounts(g.Counts),
		DistinctOwners: g.DistinctOwners,
		Listings:       g.Listings,
		Sales:          g.Sales,
		RevenueCents:   g.RevenueCents,
	})
}

func (h *handlers) topListings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	top, err := h.Stats.TopListings(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]listingVolumeResponse, 0, len(top))
	for _, v := range top {
		resp = append(resp, listingVolumeResponse{ListingID: v.ListingID, Name: v.Name, Category: string(v.Category), Rows: v.Rows, Sold: v.Sold})
	}
	writeJSON(w, http.StatusOK, resp)
}
