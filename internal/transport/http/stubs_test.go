package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/domain"
)

// stubServices implements every router collaborator with canned results.
type stubServices struct {
	preview     app.Preview
	reservation app.Reservation
	session     domain.Session
	hasSession  bool
	completion  app.Completion
	cancelled   int
	extend      app.ExtendResult
	pkg         app.ReleasePackage
	counts      domain.StateCounts
	listing     domain.Listing
	listings    []domain.Listing
	held        []domain.HeldLine
	top         []domain.ListingVolume
	swept       int
	pingErr     error
	err         error

	lastReserve app.ReserveInput
	lastSale    app.SaleInput
	lastLimit   int
}

func (s *stubServices) Preview(_ context.Context, _, _ string) (app.Preview, error) {
	return s.preview, s.err
}

func (s *stubServices) Select(_ context.Context, in app.ReserveInput) (app.Reservation, domain.Session, error) {
	s.lastReserve = in
	return s.reservation, s.session, s.err
}

func (s *stubServices) Complete(_ context.Context, in app.SaleInput) (app.Completion, error) {
	s.lastSale = in
	return s.completion, s.err
}

func (s *stubServices) Abort(_ context.Context, _, _ string) (int, error) {
	return s.cancelled, s.err
}

func (s *stubServices) Session(_ string) (domain.Session, bool) {
	return s.session, s.hasSession
}

func (s *stubServices) ExtendHolds(_ context.Context, _, _ string, _ int) (app.ExtendResult, error) {
	return s.extend, s.err
}

func (s *stubServices) BuildReleasePackage(_ context.Context, _, _ string) (app.ReleasePackage, error) {
	return s.pkg, s.err
}

func (s *stubServices) OwnerStats(_ context.Context, _ string) (domain.StateCounts, error) {
	return s.counts, s.err
}

func (s *stubServices) ListingStats(_ context.Context, id string) (domain.ListingStats, error) {
	return domain.ListingStats{ListingID: id, Counts: s.counts}, s.err
}

func (s *stubServices) GlobalStats(_ context.Context) (domain.GlobalStats, error) {
	return domain.GlobalStats{Counts: s.counts}, s.err
}

func (s *stubServices) ActiveHolds(_ context.Context, _, _ string) ([]domain.HeldLine, error) {
	return s.held, s.err
}

func (s *stubServices) TopListings(_ context.Context, limit int) ([]domain.ListingVolume, error) {
	s.lastLimit = limit
	return s.top, s.err
}

func (s *stubServices) ListingOwners(_ context.Context, _ string) ([]domain.OwnerBreakdown, error) {
	return nil, s.err
}

func (s *stubServices) CreateListing(_ context.Context, _ app.CreateListingInput) (domain.Listing, error) {
	return s.listing, s.err
}

func (s *stubServices) ListListings(_ context.Context, _ string) ([]domain.Listing, error) {
	return s.listings, s.err
}

func (s *stubServices) SetAvailability(_ context.Context, _ string, _ bool) (domain.Listing, error) {
	return s.listing, s.err
}

func (s *stubServices) SweepOnce(_ context.Context) (int, error) {
	return s.swept, s.err
}

func (s *stubServices) Ping(_ context.Context) error {
	return s.pingErr
}

func newStubRouter(stub *stubServices) http.Handler {
	return NewRouter(Services{
		Checkout:  stub,
		Holds:     stub,
		Release:   stub,
		Stats:     stub,
		Listings:  stub,
		Sweeper:   stub,
		Readiness: stub,
		StoreName: "stub",
	}, nil, []string{"http://localhost:5173"})
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
