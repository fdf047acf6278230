// Package bootstrap assembles the ledger services over an opened store.
package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/config"
	"github.com/cimillas/linevault/internal/content"
	"github.com/cimillas/linevault/internal/storage"
	transporthttp "github.com/cimillas/linevault/internal/transport/http"
)

// Services is the wired service graph shared by the server and the CLI.
type Services struct {
	Stores      *storage.Stores
	Listings    *app.ListingService
	Ledger      *app.LedgerService
	Fulfillment *app.FulfillmentService
	Checkout    *app.CheckoutService
	Stats       *app.StatsService
	Reaper      *app.Reaper
}

// Open connects to the configured store and wires every service on top of
// it. Callers own the returned Services and must Close them.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(cfg, stores, clock.NewSystem(), logger), nil
}

func New(cfg *config.Config, stores *storage.Stores, clk clock.Clock, logger *slog.Logger) *Services {
	src := content.NewFileSource(cfg.ContentCacheSize, cfg.ContentCacheTTL)
	listings := app.NewListingService(stores.Listings, clk)
	ledger := app.NewLedgerService(stores.Ledger, listings, src, clk,
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithLedgerLogger(logger),
	)
	fulfillment := app.NewFulfillmentService(stores.Ledger, clk)
	sessions := app.NewSessionStore(clk, cfg.HoldTTL, 0)

	return &Services{
		Stores:      stores,
		Listings:    listings,
		Ledger:      ledger,
		Fulfillment: fulfillment,
		Checkout:    app.NewCheckoutService(ledger, fulfillment, sessions, listings, src, logger),
		Stats:       app.NewStatsService(stores.Stats, clk),
		Reaper:      app.NewReaper(stores.Ledger, clk, cfg.ReaperInterval, logger),
	}
}

// Handler exposes the services over HTTP.
func (s *Services) Handler(cfg *config.Config, logger *slog.Logger) http.Handler {
	return transporthttp.NewRouter(transporthttp.Services{
		Checkout:  s.Checkout,
		Holds:     s.Ledger,
		Release:   s.Fulfillment,
		Stats:     s.Stats,
		Listings:  s.Listings,
		Sweeper:   s.Reaper,
		Readiness: s.Stores,
		StoreName: s.Stores.Backend,
	}, logger, cfg.CORSOrigins)
}

func (s *Services) Close() {
	s.Stores.Close()
}
