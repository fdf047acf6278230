package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/domain"
)

// Checkout is the buyer flow: preview, select, complete, abort.
type Checkout interface {
	Preview(ctx context.Context, ownerID, listingID string) (app.Preview, error)
	Select(ctx context.Context, in app.ReserveInput) (app.Reservation, domain.Session, error)
	Complete(ctx context.Context, in app.SaleInput) (app.Completion, error)
	Abort(ctx context.Context, ownerID, listingID string) (int, error)
	Session(ownerID string) (domain.Session, bool)
}

type HoldExtender interface {
	ExtendHolds(ctx context.Context, ownerID, listingID string, minutes int) (app.ExtendResult, error)
}

type ReleaseBuilder interface {
	BuildReleasePackage(ctx context.Context, ownerID, listingID string) (app.ReleasePackage, error)
}

type StatsReader interface {
	OwnerStats(ctx context.Context, ownerID string) (domain.StateCounts, error)
	ListingStats(ctx context.Context, listingID string) (domain.ListingStats, error)
	GlobalStats(ctx context.Context) (domain.GlobalStats, error)
	ActiveHolds(ctx context.Context, ownerID, listingID string) ([]domain.HeldLine, error)
	TopListings(ctx context.Context, limit int) ([]domain.ListingVolume, error)
	ListingOwners(ctx context.Context, listingID string) ([]domain.OwnerBreakdown, error)
}

type ListingAdmin interface {
	CreateListing(ctx context.Context, in app.CreateListingInput) (domain.Listing, error)
	ListListings(ctx context.Context, category string) ([]domain.Listing, error)
	SetAvailability(ctx context.Context, id string, available bool) (domain.Listing, error)
}

type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// Services are the collaborators the router dispatches to.
type Services struct {
	Checkout  Checkout
	Holds     HoldExtender
	Release   ReleaseBuilder
	Stats     StatsReader
	Listings  ListingAdmin
	Sweeper   Sweeper
	Readiness ReadinessChecker
	StoreName string
}

type handlers struct {
	Services
	logger *slog.Logger
}

// NewRouter wires every linevault route onto a chi router.
func NewRouter(svc Services, logger *slog.Logger, corsOrigins []string) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{Services: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger), Metrics(), CORS(corsOrigins))
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health/live", HealthLive)
	r.Get("/health/ready", HealthReady(svc.Readiness, svc.StoreName))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/listings/{listingID}", func(r chi.Router) {
		r.Get("/preview", h.preview)
		r.Post("/holds", h.reserve)
		r.Post("/holds/extend", h.extend)
		r.Post("/sales", h.recordSale)
		r.Get("/release", h.release)
		r.Get("/stats", h.listingStats)
	})

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Get("/holds", h.ownerHolds)
		r.Delete("/holds", h.cancel)
		r.Get("/stats", h.ownerStats)
		r.Get("/session", h.session)
	})

	r.Get("/stats", h.globalStats)
	r.Get("/stats/top-listings", h.topListings)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/listings", h.listListings)
		r.Post("/listings", h.createListing)
		r.Patch("/listings/{listingID}", h.patchListing)
		r.Post("/reaper/sweep", h.sweep)
	})

	return r
}
