package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/linevault/internal/domain"
)

// LedgerRepository stores line holds and sales. The partial unique index on
// line_holds(identity) WHERE state = 'held' backs the one-holder rule.
type LedgerRepository struct {
	conn
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{conn: conn{pool: pool}}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const holdColumns = `id, identity, owner_id, listing_id, position, raw_line, safe_line, state,
hold_expires_at, sold_at, sale_id, created_at, updated_at`

func scanHold(row pgx.Row) (domain.LineHold, error) {
	var (
		h      domain.LineHold
		state  string
		saleID *string
	)
	err := row.Scan(&h.ID, &h.Identity, &h.OwnerID, &h.ListingID, &h.Position, &h.RawLine, &h.SafeLine, &state,
		&h.HoldExpiresAt, &h.SoldAt, &saleID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return domain.LineHold{}, err
	}
	h.State = domain.HoldState(state)
	if saleID != nil {
		h.SaleID = *saleID
	}
	h.HoldExpiresAt = h.HoldExpiresAt.UTC()
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	if h.SoldAt != nil {
		t := h.SoldAt.UTC()
		h.SoldAt = &t
	}
	return h, nil
}

func (r *LedgerRepository) GetHeldForUpdate(ctx context.Context, identity string) (*domain.LineHold, error) {
	query := `SELECT ` + holdColumns + ` FROM line_holds WHERE identity = $1 AND state = 'held' FOR UPDATE`

	h, err := scanHold(r.queryRow(ctx, query, identity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get held line: %w", err)
	}
	return &h, nil
}

func (r *LedgerRepository) HasSold(ctx context.Context, identity string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM line_holds WHERE identity = $1 AND state = 'sold')`

	var sold bool
	if err := r.queryRow(ctx, query, identity).Scan(&sold); err != nil {
		return false, fmt.Errorf("check sold line: %w", err)
	}
	return sold, nil
}

func (r *LedgerRepository) InsertHold(ctx context.Context, hold domain.LineHold) error {
	const stmt = `
INSERT INTO line_holds (id, identity, owner_id, listing_id, position, raw_line, safe_line, state,
	hold_expires_at, created_at, updated_at)
SELECT $1::uuid, $2::text, $3::text, $4::text, $5::integer, $6::text, $7::text, $8::text,
	$9::timestamptz, $10::timestamptz, $11::timestamptz
WHERE NOT EXISTS (SELECT 1 FROM line_holds WHERE identity = $2::text AND state = 'sold')`

	tag, err := r.exec(ctx, stmt,
		hold.ID,
		hold.Identity,
		hold.OwnerID,
		hold.ListingID,
		hold.Position,
		hold.RawLine,
		hold.SafeLine,
		string(hold.State),
		hold.HoldExpiresAt,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrHoldRace
		}
		if isForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		if isInvalidText(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLineSold
	}
	return nil
}

func (r *LedgerRepository) ExtendHold(ctx context.Context, holdID string, until, now time.Time) (time.Time, error) {
	const stmt = `
UPDATE line_holds
SET hold_expires_at = GREATEST(hold_expires_at, $2), updated_at = $3
WHERE id = $1 AND state = 'held'
RETURNING hold_expires_at`

	var expiresAt time.Time
	if err := r.queryRow(ctx, stmt, holdID, until, now).Scan(&expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrHoldRace
		}
		return time.Time{}, fmt.Errorf("extend hold: %w", err)
	}
	return expiresAt.UTC(), nil
}

func (r *LedgerRepository) ExpireHold(ctx context.Context, holdID string, now time.Time) (bool, error) {
	const stmt = `UPDATE line_holds SET state = 'expired', updated_at = $2 WHERE id = $1 AND state = 'held'`

	tag, err := r.exec(ctx, stmt, holdID, now)
	if err != nil {
		return false, fmt.Errorf("expire hold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepository) ConfirmHolds(ctx context.Context, ownerID, listingID, saleID string, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'sold', sold_at = $4, sale_id = $3, updated_at = $4
WHERE owner_id = $1 AND listing_id = $2 AND state = 'held'`

	tag, err := r.exec(ctx, stmt, ownerID, listingID, saleID, now)
	if err != nil {
		return 0, fmt.Errorf("confirm holds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *LedgerRepository) CancelHolds(ctx context.Context, ownerID, listingID string, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'expired', hold_expires_at = $3, updated_at = $3
WHERE owner_id = $1 AND ($2::text = '' OR listing_id = $2) AND state = 'held'`

	tag, err := r.exec(ctx, stmt, ownerID, listingID, now)
	if err != nil {
		return 0, fmt.Errorf("cancel holds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *LedgerRepository) ExtendOwnerHolds(ctx context.Context, ownerID, listingID string, until, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET hold_expires_at = GREATEST(hold_expires_at, $3), updated_at = $4
WHERE owner_id = $1 AND listing_id = $2 AND state = 'held'`

	tag, err := r.exec(ctx, stmt, ownerID, listingID, until, now)
	if err != nil {
		return 0, fmt.Errorf("extend holds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *LedgerRepository) ExpireHeldBefore(ctx context.Context, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'expired', updated_at = $1
WHERE state = 'held' AND hold_expires_at < $1`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("expire held lines: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *LedgerRepository) ListSoldLines(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error) {
	query := `SELECT ` + holdColumns + `
FROM line_holds
WHERE owner_id = $1 AND listing_id = $2 AND state = 'sold'
ORDER BY position ASC, created_at ASC`

	rows, err := r.query(ctx, query, ownerID, listingID)
	if err != nil {
		return nil, fmt.Errorf("list sold lines: %w", err)
	}
	defer rows.Close()

	var holds []domain.LineHold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sold line: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sold lines: %w", err)
	}
	return holds, nil
}

// ListHolds returns every row for the owner on the listing, oldest first.
func (r *LedgerRepository) ListHolds(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error) {
	query := `SELECT ` + holdColumns + `
FROM line_holds
WHERE owner_id = $1 AND listing_id = $2
ORDER BY created_at ASC, position ASC`

	rows, err := r.query(ctx, query, ownerID, listingID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.LineHold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return holds, nil
}

func (r *LedgerRepository) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	const query = `
SELECT id, owner_id, listing_id, amount_cents, confirmer_id, lines_confirmed, created_at
FROM sales
WHERE id = $1`

	var s domain.Sale
	err := r.queryRow(ctx, query, id).
		Scan(&s.ID, &s.OwnerID, &s.ListingID, &s.AmountCents, &s.ConfirmerID, &s.LinesConfirmed, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func (r *LedgerRepository) InsertSale(ctx context.Context, sale domain.Sale) error {
	const stmt = `
INSERT INTO sales (id, owner_id, listing_id, amount_cents, confirmer_id, lines_confirmed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		sale.ID,
		sale.OwnerID,
		sale.ListingID,
		sale.AmountCents,
		sale.ConfirmerID,
		sale.LinesConfirmed,
		sale.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSaleExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidAmount
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}
