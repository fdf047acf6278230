package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cimillas/linevault/internal/domain"
)

// StatsRepository answers read-side aggregate queries over the ledger.
type StatsRepository struct {
	conn
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{conn: conn{db: db}}
}

func (r *StatsRepository) countByState(ctx context.Context, where string, args ...any) (domain.StateCounts, error) {
	query := `SELECT state, COUNT(*) FROM line_holds ` + where + ` GROUP BY state`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return domain.StateCounts{}, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	var counts domain.StateCounts
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return domain.StateCounts{}, fmt.Errorf("scan state count: %w", err)
		}
		counts.Add(domain.HoldState(state), n)
	}
	if err := rows.Err(); err != nil {
		return domain.StateCounts{}, fmt.Errorf("count by state: %w", err)
	}
	return counts, nil
}

func (r *StatsRepository) OwnerCounts(ctx context.Context, ownerID string) (domain.StateCounts, error) {
	return r.countByState(ctx, `WHERE owner_id = ?`, ownerID)
}

func (r *StatsRepository) ListingStats(ctx context.Context, listingID string) (domain.ListingStats, error) {
	counts, err := r.countByState(ctx, `WHERE listing_id = ?`, listingID)
	if err != nil {
		return domain.ListingStats{}, err
	}

	stats := domain.ListingStats{ListingID: listingID, Counts: counts}
	const query = `SELECT COUNT(DISTINCT owner_id) FROM line_holds WHERE listing_id = ?`
	if err := r.queryRow(ctx, query, listingID).Scan(&stats.DistinctOwners); err != nil {
		return domain.ListingStats{}, fmt.Errorf("count listing owners: %w", err)
	}
	return stats, nil
}

func (r *StatsRepository) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	counts, err := r.countByState(ctx, ``)
	if err != nil {
		return domain.GlobalStats{}, err
	}

	stats := domain.GlobalStats{Counts: counts}
	const query = `
SELECT
	(SELECT COUNT(DISTINCT owner_id) FROM line_holds),
	(SELECT COUNT(*) FROM listings),
	(SELECT COUNT(*) FROM sales),
	(SELECT COALESCE(SUM(amount_cents), 0) FROM sales)`
	if err := r.queryRow(ctx, query).Scan(&stats.DistinctOwners, &stats.Listings, &stats.Sales, &stats.RevenueCents); err != nil {
		return domain.GlobalStats{}, fmt.Errorf("global stats: %w", err)
	}
	return stats, nil
}

func (r *StatsRepository) ActiveHolds(ctx context.Context, ownerID, listingID string, now time.Time) ([]domain.HeldLine, error) {
	const query = `
SELECT h.id, h.identity, h.owner_id, h.listing_id, h.position, h.safe_line, h.state,
	h.hold_expires_at, h.created_at, h.updated_at, l.name, l.category
FROM line_holds h
JOIN listings l ON l.id = h.listing_id
WHERE h.owner_id = ?
	AND (? = '' OR h.listing_id = ?)
	AND h.state = 'held'
	AND h.hold_expires_at > ?
ORDER BY h.created_at DESC, h.position ASC`

	rows, err := r.query(ctx, query, ownerID, listingID, listingID, millis(now))
	if err != nil {
		return nil, fmt.Errorf("active holds: %w", err)
	}
	defer rows.Close()

	var out []domain.HeldLine
	for rows.Next() {
		var (
			hl                              domain.HeldLine
			state, category                 string
			expiresAt, createdAt, updatedAt int64
		)
		h := &hl.Hold
		if err := rows.Scan(&h.ID, &h.Identity, &h.OwnerID, &h.ListingID, &h.Position, &h.SafeLine, &state,
			&expiresAt, &createdAt, &updatedAt, &hl.ListingName, &category); err != nil {
			return nil, fmt.Errorf("scan active hold: %w", err)
		}
		h.State = domain.HoldState(state)
		h.HoldExpiresAt = fromMillis(expiresAt)
		h.CreatedAt = fromMillis(createdAt)
		h.UpdatedAt = fromMillis(updatedAt)
		hl.ListingCategory = domain.Category(category)
		out = append(out, hl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active holds: %w", err)
	}
	return out, nil
}

func (r *StatsRepository) TopListings(ctx context.Context, limit int) ([]domain.ListingVolume, error) {
	const query = `
SELECT l.id, l.name, l.category, COUNT(h.id), SUM(CASE WHEN h.state = 'sold' THEN 1 ELSE 0 END)
FROM listings l
JOIN line_holds h ON h.listing_id = l.id
GROUP BY l.id, l.name, l.category
ORDER BY COUNT(h.id) DESC, l.id ASC
LIMIT ?`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top listings: %w", err)
	}
	defer rows.Close()

	var out []domain.ListingVolume
	for rows.Next() {
		var (
			v        domain.ListingVolume
			category string
		)
		if err := rows.Scan(&v.ListingID, &v.Name, &category, &v.Rows, &v.Sold); err != nil {
			return nil, fmt.Errorf("scan listing volume: %w", err)
		}
		v.Category = domain.Category(category)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top listings: %w", err)
	}
	return out, nil
}

func (r *StatsRepository) ListingOwners(ctx context.Context, listingID string) ([]domain.OwnerBreakdown, error) {
	const query = `
SELECT owner_id, state, COUNT(*)
FROM line_holds
WHERE listing_id = ?
GROUP BY owner_id, state
ORDER BY owner_id ASC`

	rows, err := r.query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	defer rows.Close()

	var out []domain.OwnerBreakdown
	for rows.Next() {
		var (
			owner, state string
			n            int
		)
		if err := rows.Scan(&owner, &state, &n); err != nil {
			return nil, fmt.Errorf("scan owner breakdown: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].OwnerID != owner {
			out = append(out, domain.OwnerBreakdown{OwnerID: owner})
		}
		out[len(out)-1].Counts.Add(domain.HoldState(state), n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	return out, nil
}
