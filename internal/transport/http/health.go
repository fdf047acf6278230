package http

import (
	"context"
	"net/http"
	"time"
)

// ReadinessChecker reports whether the ledger store is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Store     string `json:"store,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HealthLive reports that the process is serving.
func HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthReady pings the store and answers 503 when it is unreachable.
func HealthReady(checker ReadinessChecker, store string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Store:     store,
		}

		if checker == nil {
			resp.Status = "fail"
			resp.Message = "store not initialised"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := checker.Ping(ctx); err != nil {
			resp.Status = "fail"
			resp.Message = "store unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
