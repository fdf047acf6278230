package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cimillas/linevault/internal/domain"
)

// LedgerRepository stores line holds and sales in SQLite. Callers reserve
// inside WithTx, which takes the write lock up front.
type LedgerRepository struct {
	conn
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{conn: conn{db: db}}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

const holdColumns = `id, identity, owner_id, listing_id, position, raw_line, safe_line, state,
hold_expires_at, sold_at, sale_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHold(row scanner) (domain.LineHold, error) {
	var (
		h                               domain.LineHold
		state                           string
		expiresAt, createdAt, updatedAt int64
		soldAt                          sql.NullInt64
		saleID                          sql.NullString
	)
	err := row.Scan(&h.ID, &h.Identity, &h.OwnerID, &h.ListingID, &h.Position, &h.RawLine, &h.SafeLine, &state,
		&expiresAt, &soldAt, &saleID, &createdAt, &updatedAt)
	if err != nil {
		return domain.LineHold{}, err
	}
	h.State = domain.HoldState(state)
	h.HoldExpiresAt = fromMillis(expiresAt)
	h.CreatedAt = fromMillis(createdAt)
	h.UpdatedAt = fromMillis(updatedAt)
	if soldAt.Valid {
		t := fromMillis(soldAt.Int64)
		h.SoldAt = &t
	}
	h.SaleID = saleID.String
	return h, nil
}

func scanHolds(rows *sql.Rows) ([]domain.LineHold, error) {
	defer rows.Close()

	var holds []domain.LineHold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *LedgerRepository) GetHeldForUpdate(ctx context.Context, identity string) (*domain.LineHold, error) {
	query := `SELECT ` + holdColumns + ` FROM line_holds WHERE identity = ? AND state = 'held'`

	h, err := scanHold(r.queryRow(ctx, query, identity))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get held line: %w", err)
	}
	return &h, nil
}

func (r *LedgerRepository) HasSold(ctx context.Context, identity string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM line_holds WHERE identity = ? AND state = 'sold')`

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
SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM line_holds WHERE identity = ? AND state = 'sold')`

	res, err := r.exec(ctx, stmt,
		hold.ID,
		hold.Identity,
		hold.OwnerID,
		hold.ListingID,
		hold.Position,
		hold.RawLine,
		hold.SafeLine,
		string(hold.State),
		millis(hold.HoldExpiresAt),
		millis(hold.CreatedAt),
		millis(hold.UpdatedAt),
		hold.Identity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrHoldRace
		}
		if isForeignKeyViolation(err) {
			return domain.ErrListingNotFound
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert hold: %w", err)
	}
	if n == 0 {
		return domain.ErrLineSold
	}
	return nil
}

func (r *LedgerRepository) ExtendHold(ctx context.Context, holdID string, until, now time.Time) (time.Time, error) {
	const stmt = `
UPDATE line_holds
SET hold_expires_at = MAX(hold_expires_at, ?), updated_at = ?
WHERE id = ? AND state = 'held'
RETURNING hold_expires_at`

	var expiresAt int64
	if err := r.queryRow(ctx, stmt, millis(until), millis(now), holdID).Scan(&expiresAt); err != nil {
		if isNoRows(err) {
			return time.Time{}, domain.ErrHoldRace
		}
		return time.Time{}, fmt.Errorf("extend hold: %w", err)
	}
	return fromMillis(expiresAt), nil
}

func (r *LedgerRepository) ExpireHold(ctx context.Context, holdID string, now time.Time) (bool, error) {
	const stmt = `UPDATE line_holds SET state = 'expired', updated_at = ? WHERE id = ? AND state = 'held'`

	res, err := r.exec(ctx, stmt, millis(now), holdID)
	if err != nil {
		return false, fmt.Errorf("expire hold: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("expire hold: %w", err)
	}
	return n == 1, nil
}

func (r *LedgerRepository) ConfirmHolds(ctx context.Context, ownerID, listingID, saleID string, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'sold', sold_at = ?, sale_id = ?, updated_at = ?
WHERE owner_id = ? AND listing_id = ? AND state = 'held'`

	res, err := r.exec(ctx, stmt, millis(now), saleID, millis(now), ownerID, listingID)
	if err != nil {
		return 0, fmt.Errorf("confirm holds: %w", err)
	}
	return affected(res)
}

func (r *LedgerRepository) CancelHolds(ctx context.Context, ownerID, listingID string, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'expired', hold_expires_at = ?, updated_at = ?
WHERE owner_id = ? AND (? = '' OR listing_id = ?) AND state = 'held'`

	res, err := r.exec(ctx, stmt, millis(now), millis(now), ownerID, listingID, listingID)
	if err != nil {
		return 0, fmt.Errorf("cancel holds: %w", err)
	}
	return affected(res)
}

func (r *LedgerRepository) ExtendOwnerHolds(ctx context.Context, ownerID, listingID string, until, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET hold_expires_at = MAX(hold_expires_at, ?), updated_at = ?
WHERE owner_id = ? AND listing_id = ? AND state = 'held'`

	res, err := r.exec(ctx, stmt, millis(until), millis(now), ownerID, listingID)
	if err != nil {
		return 0, fmt.Errorf("extend holds: %w", err)
	}
	return affected(res)
}

func (r *LedgerRepository) ExpireHeldBefore(ctx context.Context, now time.Time) (int, error) {
	const stmt = `
UPDATE line_holds
SET state = 'expired', updated_at = ?
WHERE state = 'held' AND hold_expires_at < ?`

	res, err := r.exec(ctx, stmt, millis(now), millis(now))
	if err != nil {
		return 0, fmt.Errorf("expire held lines: %w", err)
	}
	return affected(res)
}

func (r *LedgerRepository) ListSoldLines(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error) {
	query := `SELECT ` + holdColumns + `
FROM line_holds
WHERE owner_id = ? AND listing_id = ? AND state = 'sold'
ORDER BY position ASC, created_at ASC`

	rows, err := r.query(ctx, query, ownerID, listingID)
	if err != nil {
		return nil, fmt.Errorf("list sold lines: %w", err)
	}
	holds, err := scanHolds(rows)
	if err != nil {
		return nil, fmt.Errorf("list sold lines: %w", err)
	}
	return holds, nil
}

// ListHolds returns every row for the owner on the listing, oldest first.
func (r *LedgerRepository) ListHolds(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error) {
	query := `SELECT ` + holdColumns + `
FROM line_holds
WHERE owner_id = ? AND listing_id = ?
ORDER BY created_at ASC, position ASC`

	rows, err := r.query(ctx, query, ownerID, listingID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	holds, err := scanHolds(rows)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return holds, nil
}

func (r *LedgerRepository) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	const query = `
SELECT id, owner_id, listing_id, amount_cents, confirmer_id, lines_confirmed, created_at
FROM sales
WHERE id = ?`

	var (
		s         domain.Sale
		createdAt int64
	)
	err := r.queryRow(ctx, query, id).
		Scan(&s.ID, &s.OwnerID, &s.ListingID, &s.AmountCents, &s.ConfirmerID, &s.LinesConfirmed, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	s.CreatedAt = fromMillis(createdAt)
	return &s, nil
}

func (r *LedgerRepository) InsertSale(ctx context.Context, sale domain.Sale) error {
	const stmt = `
INSERT INTO sales (id, owner_id, listing_id, amount_cents, confirmer_id, lines_confirmed, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.exec(ctx, stmt,
		sale.ID,
		sale.OwnerID,
		sale.ListingID,
		sale.AmountCents,
		sale.ConfirmerID,
		sale.LinesConfirmed,
		millis(sale.CreatedAt),
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
