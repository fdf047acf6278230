package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cimillas/linevault/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidQuery         = "invalid_query"
	codeInvalidID            = "invalid_id"
	codeEmptySelection       = "empty_selection"
	codeInvalidMinutes       = "invalid_minutes"
	codeInvalidAmount        = "invalid_amount"
	codeConfirmerRequired    = "confirmer_required"
	codeInvalidCategory      = "invalid_category"
	codeListingNameRequired  = "listing_name_required"
	codeContentPathRequired  = "content_path_required"
	codeInvalidTransition    = "invalid_session_transition"
	codeInvalidRequest       = "invalid_request"
	codeLineTaken            = "line_taken"
	codeListingExists        = "listing_exists"
	codeSaleExists           = "sale_exists"
	codeConflict             = "conflict"
	codeListingNotFound      = "listing_not_found"
	codeListingUnavailable   = "listing_unavailable"
	codeSelectionNotFound    = "selection_not_found"
	codeNoSoldLines          = "no_sold_lines"
	codeSessionNotFound      = "session_not_found"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// lineTakenResponse names the buyer-safe line that blocked a reservation.
type lineTakenResponse struct {
	errorResponse
	Line     string `json:"line"`
	Position int    `json:"position"`
	Reason   string `json:"reason"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrListingUnavailable, http.StatusNotFound, codeListingUnavailable},
	{domain.ErrListingNotFound, http.StatusNotFound, codeListingNotFound},
	{domain.ErrSelectionNotFound, http.StatusNotFound, codeSelectionNotFound},
	{domain.ErrNoSoldLines, http.StatusNotFound, codeNoSoldLines},
	{domain.ErrListingExists, http.StatusConflict, codeListingExists},
	{domain.ErrSaleExists, http.StatusConflict, codeSaleExists},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrEmptySelection, http.StatusBadRequest, codeEmptySelection},
	{domain.ErrInvalidMinutes, http.StatusBadRequest, codeInvalidMinutes},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrConfirmerRequired, http.StatusBadRequest, codeConfirmerRequired},
	{domain.ErrInvalidCategory, http.StatusBadRequest, codeInvalidCategory},
	{domain.ErrListingNameRequired, http.StatusBadRequest, codeListingNameRequired},
	{domain.ErrContentPathRequired, http.StatusBadRequest, codeContentPathRequired},
	{domain.ErrInvalidSessionTransition, http.StatusBadRequest, codeInvalidTransition},
}

// writeServiceError maps a service error to its HTTP response. Unexpected
// errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var conflict *domain.LineConflictError
	if errors.As(err, &conflict) {
		reason := "held"
		if errors.Is(err, domain.ErrLineSold) {
			reason = "sold"
		}
		writeJSON(w, http.StatusConflict, lineTakenResponse{
			errorResponse: errorResponse{Error: "line already taken", Code: codeLineTaken},
			Line:          conflict.SafeLine,
			Position:      conflict.Position,
			Reason:        reason,
		})
		return
	}

	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.code, e.err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "conflict")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
