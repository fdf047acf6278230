package app

import (
	"context"
	"time"

	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
)

type StatsRepository interface {
	OwnerCounts(ctx context.Context, ownerID string) (domain.StateCounts, error)
	ListingStats(ctx context.Context, listingID string) (domain.ListingStats, error)
	GlobalStats(ctx context.Context) (domain.GlobalStats, error)
	// ActiveHolds returns held rows expiring after now, newest first. An
	// empty listingID matches every listing.
	ActiveHolds(ctx context.Context, ownerID, listingID string, now time.Time) ([]domain.HeldLine, error)
	TopListings(ctx context.Context, limit int) ([]domain.ListingVolume, error)
	ListingOwners(ctx context.Context, listingID string) ([]domain.OwnerBreakdown, error)
}

type StatsService struct {
	repo  StatsRepository
	clock clock.Clock
}

func NewStatsService(repo StatsRepository, clk clock.Clock) *StatsService {
	return &StatsService{repo: repo, clock: clk}
}

const (
	defaultTopListings = 10
	maxTopListings     = 100
)

func (s *StatsService) OwnerStats(ctx context.Context, ownerID string) (domain.StateCounts, error) {
	if ownerID == "" {
		return domain.StateCounts{}, domain.ErrInvalidID
	}
	return s.repo.OwnerCounts(ctx, ownerID)
}

func (s *StatsService) ListingStats(ctx context.Context, listingID string) (domain.ListingStats, error) {
	if listingID == "" {
		return domain.ListingStats{}, domain.ErrInvalidID
	}
	return s.repo.ListingStats(ctx, listingID)
}

func (s *StatsService) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	return s.repo.GlobalStats(ctx)
}

// ActiveHolds lists the owner's live holds with the time left on each.
func (s *StatsService) ActiveHolds(ctx context.Context, ownerID, listingID string) ([]domain.HeldLine, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidID
	}
	now := s.clock.Now()
	holds, err := s.repo.ActiveHolds(ctx, ownerID, listingID, now)
	if err != nil {
		return nil, err
	}
	for i := range holds {
		holds[i].ExpiresIn = holds[i].Hold.HoldExpiresAt.Sub(now).Truncate(time.Second)
	}
	return holds, nil
}

// TopListings ranks listings by ledger rows. limit <= 0 uses the default;
// values above the maximum are clamped.
func (s *StatsService) TopListings(ctx context.Context, limit int) ([]domain.ListingVolume, error) {
	if limit <= 0 {
		limit = defaultTopListings
	}
	if limit > maxTopListings {
		limit = maxTopListings
	}
	return s.repo.TopListings(ctx, limit)
}

func (s *StatsService) ListingOwners(ctx context.Context, listingID string) ([]domain.OwnerBreakdown, error) {
	if listingID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListingOwners(ctx, listingID)
}
