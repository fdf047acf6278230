package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/linevault/internal/domain"
)

type ListingRepository struct {
	conn
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{conn: conn{pool: pool}}
}

func (r *ListingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const listingColumns = `id, name, category, description, content_path, price_cents, available, created_at`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var (
		l        domain.Listing
		category string
	)
	if err := row.Scan(&l.ID, &l.Name, &category, &l.Description, &l.ContentPath, &l.PriceCents, &l.Available, &l.CreatedAt); err != nil {
		return domain.Listing{}, err
	}
	l.Category = domain.Category(category)
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

func (r *ListingRepository) CreateListing(ctx context.Context, listing domain.Listing) error {
	const stmt = `
INSERT INTO listings (id, name, category, description, content_path, price_cents, available, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		listing.ID,
		listing.Name,
		string(listing.Category),
		listing.Description,
		listing.ContentPath,
		listing.PriceCents,
		listing.Available,
		listing.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrListingExists
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidCategory
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) UpsertListing(ctx context.Context, listing domain.Listing) error {
	const stmt = `
INSERT INTO listings (id, name, category, description, content_path, price_cents, available, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	description = EXCLUDED.description,
	content_path = EXCLUDED.content_path,
	price_cents = EXCLUDED.price_cents,
	available = EXCLUDED.available`

	_, err := r.exec(ctx, stmt,
		listing.ID,
		listing.Name,
		string(listing.Category),
		listing.Description,
		listing.ContentPath,
		listing.PriceCents,
		listing.Available,
		listing.CreatedAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidCategory
		}
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) ListListings(ctx context.Context, category domain.Category) ([]domain.Listing, error) {
	query := `SELECT ` + listingColumns + `
FROM listings
WHERE $1::text = '' OR category = $1
ORDER BY id ASC`

	rows, err := r.query(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

func (r *ListingRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	const stmt = `UPDATE listings SET available = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, available)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *ListingRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
