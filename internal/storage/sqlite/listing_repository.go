package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cimillas/linevault/internal/domain"
)

type ListingRepository struct {
	conn
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{conn: conn{db: db}}
}

func (r *ListingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

const listingColumns = `id, name, category, description, content_path, price_cents, available, created_at`

func scanListing(row scanner) (domain.Listing, error) {
	var (
		l         domain.Listing
		category  string
		price     sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&l.ID, &l.Name, &category, &l.Description, &l.ContentPath, &price, &l.Available, &createdAt); err != nil {
		return domain.Listing{}, err
	}
	l.Category = domain.Category(category)
	if price.Valid {
		p := price.Int64
		l.PriceCents = &p
	}
	l.CreatedAt = fromMillis(createdAt)
	return l, nil
}

func listingArgs(l domain.Listing) []any {
	var price sql.NullInt64
	if l.PriceCents != nil {
		price = sql.NullInt64{Int64: *l.PriceCents, Valid: true}
	}
	return []any{l.ID, l.Name, string(l.Category), l.Description, l.ContentPath, price, l.Available, millis(l.CreatedAt)}
}

func (r *ListingRepository) CreateListing(ctx context.Context, listing domain.Listing) error {
	const stmt = `
INSERT INTO listings (id, name, category, description, content_path, price_cents, available, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.exec(ctx, stmt, listingArgs(listing)...); err != nil {
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	category = excluded.category,
	description = excluded.description,
	content_path = excluded.content_path,
	price_cents = excluded.price_cents,
	available = excluded.available`

	if _, err := r.exec(ctx, stmt, listingArgs(listing)...); err != nil {
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
WHERE ? = '' OR category = ?
ORDER BY id ASC`

	rows, err := r.query(ctx, query, string(category), string(category))
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
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`

	l, err := scanListing(r.queryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *ListingRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	const stmt = `UPDATE listings SET available = ? WHERE id = ?`

	res, err := r.exec(ctx, stmt, available, id)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if n == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// Ping reports whether the database file is usable.
func (r *ListingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
