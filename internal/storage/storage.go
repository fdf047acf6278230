// Package storage selects and opens the configured ledger store.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/config"
	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/storage/postgres"
	"github.com/cimillas/linevault/internal/storage/sqlite"
	"github.com/cimillas/linevault/migrations"
)

const connectTimeout = 5 * time.Second

// Ledger is the full ledger surface both stores implement.
type Ledger interface {
	app.LedgerRepository
	app.FulfillmentRepository
	app.SweepRepository
	ListHolds(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error)
}

type Listings interface {
	app.ListingRepository
	Ping(ctx context.Context) error
}

// Stores bundles the repositories of one backend. Close releases the
// underlying connections.
type Stores struct {
	Backend  string
	Ledger   Ledger
	Listings Listings
	Stats    app.StatsRepository
	close    func()
}

func (s *Stores) Ping(ctx context.Context) error {
	return s.Listings.Ping(ctx)
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the store named by cfg.Store, applying migrations when
// cfg.AutoMigrate is set. SQLite always migrates on open.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch cfg.Store {
	case config.StoreSQLite:
		return openSQLite(ctx, cfg.SQLitePath, logger)
	case config.StorePostgres, "":
		return openPostgres(ctx, cfg.DatabaseURL, cfg.AutoMigrate, logger)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openPostgres(ctx context.Context, databaseURL string, migrate bool, logger *slog.Logger) (*Stores, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrate {
		if err := migrations.ApplyPostgres(databaseURL, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("postgres store ready")
	return &Stores{
		Backend:  config.StorePostgres,
		Ledger:   postgres.NewLedgerRepository(pool),
		Listings: postgres.NewListingRepository(pool),
		Stats:    postgres.NewStatsRepository(pool),
		close:    pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*Stores, error) {
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	logger.Info("sqlite store ready", slog.String("path", path))
	return &Stores{
		Backend:  config.StoreSQLite,
		Ledger:   sqlite.NewLedgerRepository(db),
		Listings: sqlite.NewListingRepository(db),
		Stats:    sqlite.NewStatsRepository(db),
		close:    func() { _ = db.Close() },
	}, nil
}
