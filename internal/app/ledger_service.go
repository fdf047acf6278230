package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/lineid"
)

// LedgerRepository persists line holds and sales. Every state change is
// conditioned on the row still being held.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetHeldForUpdate returns the held row for identity, locking it for the
	// rest of the transaction where the store supports row locks.
	GetHeldForUpdate(ctx context.Context, identity string) (*domain.LineHold, error)
	HasSold(ctx context.Context, identity string) (bool, error)
	// InsertHold returns domain.ErrHoldRace when another held row for the
	// same identity already exists and domain.ErrLineSold when the identity
	// has been sold.
	InsertHold(ctx context.Context, hold domain.LineHold) error
	// ExtendHold moves a held row's expiry to max(current, until) and returns
	// the resulting expiry. domain.ErrHoldRace means the row is no longer held.
	ExtendHold(ctx context.Context, holdID string, until, now time.Time) (time.Time, error)
	ExpireHold(ctx context.Context, holdID string, now time.Time) (bool, error)
	ConfirmHolds(ctx context.Context, ownerID, listingID, saleID string, now time.Time) (int, error)
	// CancelHolds expires the owner's held rows. An empty listingID matches
	// every listing.
	CancelHolds(ctx context.Context, ownerID, listingID string, now time.Time) (int, error)
	ExtendOwnerHolds(ctx context.Context, ownerID, listingID string, until, now time.Time) (int, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// InsertSale returns domain.ErrSaleExists on a duplicate id.
	InsertSale(ctx context.Context, sale domain.Sale) error
}

type LedgerService struct {
	repo     LedgerRepository
	listings ListingResolver
	content  ContentSource
	clock    clock.Clock
	holdTTL  time.Duration
	logger   *slog.Logger
}

const (
	defaultHoldTTL = 15 * time.Minute

	// maxReserveAttempts bounds retries after an insert loses the race on
	// the held-identity unique index.
	maxReserveAttempts = 3

	// maxExtendMinutes caps a single extension at one week.
	maxExtendMinutes = 7 * 24 * 60
)

func NewLedgerService(repo LedgerRepository, listings ListingResolver, content ContentSource, clk clock.Clock, opts ...LedgerOption) *LedgerService {
	svc := &LedgerService{
		repo:     repo,
		listings: listings,
		content:  content,
		clock:    clk,
		holdTTL:  defaultHoldTTL,
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LedgerOption func(*LedgerService)

// WithHoldTTL overrides the default TTL for new and re-requested holds.
func WithHoldTTL(d time.Duration) LedgerOption {
	return func(s *LedgerService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(s *LedgerService) {
		if logger != nil {
			s.logger = logger.With(slog.String("component", "ledger"))
		}
	}
}

// HoldTTL reports the hold window applied by ReserveLines.
func (s *LedgerService) HoldTTL() time.Duration {
	return s.holdTTL
}

type ReserveInput struct {
	OwnerID   string
	ListingID string
	Lines     []string
}

type Reservation struct {
	Holds     []domain.LineHold
	ExpiresAt time.Time
	Created   int
	Extended  int
}

// ReserveLines grants the owner an exclusive hold on every submitted line that
// matches the listing's safe projection. Either every matched line ends up held
// by the owner or nothing is written.
func (s *LedgerService) ReserveLines(ctx context.Context, in ReserveInput) (Reservation, error) {
	if strings.TrimSpace(in.OwnerID) == "" || strings.TrimSpace(in.ListingID) == "" {
		return Reservation{}, domain.ErrInvalidID
	}
	if !hasNonBlank(in.Lines) {
		return Reservation{}, domain.ErrEmptySelection
	}

	listing, text, err := loadListingContent(ctx, s.listings, s.content, s.logger, in.ListingID)
	if err != nil {
		return Reservation{}, err
	}

	candidates := lineid.Match(text, in.Lines)
	if len(candidates) == 0 {
		return Reservation{}, domain.ErrSelectionNotFound
	}

	for attempt := 1; ; attempt++ {
		res, raced, err := s.reserveOnce(ctx, listing.ID, in.OwnerID, candidates)
		if err == nil {
			holdsCreatedTotal.Add(float64(res.Created))
			holdsExtendedTotal.Add(float64(res.Extended))
			s.logger.Info("lines reserved",
				slog.String("owner_id", in.OwnerID),
				slog.String("listing_id", listing.ID),
				slog.Int("created", res.Created),
				slog.Int("extended", res.Extended),
			)
			return res, nil
		}
		if !errors.Is(err, domain.ErrHoldRace) {
			var conflict *domain.LineConflictError
			if errors.As(err, &conflict) {
				reserveConflictsTotal.WithLabelValues(conflictReason(conflict.Reason)).Inc()
			}
			return Reservation{}, err
		}
		if attempt == maxReserveAttempts {
			// The winning hold belongs to someone else; report it as taken.
			reserveConflictsTotal.WithLabelValues("held").Inc()
			return Reservation{}, &domain.LineConflictError{
				ListingID: listing.ID,
				Position:  raced.Position,
				SafeLine:  raced.Safe,
				Reason:    domain.ErrLineHeld,
			}
		}
		reserveRetriesTotal.Inc()
		s.logger.Debug("reservation raced, retrying",
			slog.String("listing_id", listing.ID),
			slog.Int("position", raced.Position),
			slog.Int("attempt", attempt),
		)
	}
}

func (s *LedgerService) reserveOnce(ctx context.Context, listingID, ownerID string, candidates []lineid.Candidate) (Reservation, lineid.Candidate, error) {
	now := s.clock.Now()
	until := now.Add(s.holdTTL)

	// Rows are locked in identity order so overlapping reservations cannot
	// deadlock; holds are reported in submission order.
	identities := make([]string, len(candidates))
	for i, c := range candidates {
		identities[i] = string(lineid.Compute(listingID, c.Position, c.Raw))
	}
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return identities[order[a]] < identities[order[b]] })

	var (
		res   Reservation
		raced lineid.Candidate
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res = Reservation{ExpiresAt: until}
		slots := make([]*domain.LineHold, len(candidates))

		for _, i := range order {
			c, identity := candidates[i], identities[i]
			// Reported when the attempt fails with domain.ErrHoldRace.
			raced = c
			conflict := func(reason error) error {
				return &domain.LineConflictError{ListingID: listingID, Position: c.Position, SafeLine: c.Safe, Reason: reason}
			}

			current, err := s.repo.GetHeldForUpdate(txCtx, identity)
			if err != nil {
				return err
			}

			// Checked after the lock: a sale that committed while this
			// transaction waited is visible now.
			sold, err := s.repo.HasSold(txCtx, identity)
			if err != nil {
				return err
			}
			if sold {
				return conflict(domain.ErrLineSold)
			}

			if current != nil && current.OwnerID == ownerID {
				expiresAt, err := s.repo.ExtendHold(txCtx, current.ID, until, now)
				if err != nil {
					return err
				}
				current.HoldExpiresAt = expiresAt
				current.UpdatedAt = now
				slots[i] = current
				res.Extended++
				if expiresAt.After(res.ExpiresAt) {
					res.ExpiresAt = expiresAt
				}
				continue
			}

			if current != nil {
				if current.ActiveAt(now) {
					return conflict(domain.ErrLineHeld)
				}
				// Past its deadline but not yet swept.
				ok, err := s.repo.ExpireHold(txCtx, current.ID, now)
				if err != nil {
					return err
				}
				if !ok {
					return domain.ErrHoldRace
				}
				holdsExpiredTotal.WithLabelValues("lazy").Inc()
			}

			hold := domain.LineHold{
				ID:            newHoldID(),
				Identity:      identity,
				OwnerID:       ownerID,
				ListingID:     listingID,
				Position:      c.Position,
				RawLine:       c.Raw,
				SafeLine:      c.Safe,
				State:         domain.HoldStateHeld,
				HoldExpiresAt: until,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.repo.InsertHold(txCtx, hold); err != nil {
				if errors.Is(err, domain.ErrLineSold) {
					return conflict(domain.ErrLineSold)
				}
				return err
			}
			slots[i] = &hold
			res.Created++
		}

		res.Holds = make([]domain.LineHold, 0, len(slots))
		for _, h := range slots {
			if h != nil {
				res.Holds = append(res.Holds, *h)
			}
		}
		return nil
	})
	if err != nil {
		return Reservation{}, raced, err
	}
	return res, raced, nil
}

// ConfirmSale moves every held line of the owner on the listing to sold.
// Calling it again after all lines are sold returns 0.
func (s *LedgerService) ConfirmSale(ctx context.Context, ownerID, listingID, saleID string) (int, error) {
	if ownerID == "" || listingID == "" || saleID == "" {
		return 0, domain.ErrInvalidID
	}
	n, err := s.repo.ConfirmHolds(ctx, ownerID, listingID, saleID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	linesSoldTotal.Add(float64(n))
	return n, nil
}

type SaleInput struct {
	// SaleID is optional; a ULID is generated when empty. Repeating an id
	// with the same owner, listing and amount returns the stored sale; any
	// other reuse is domain.ErrSaleExists.
	SaleID      string
	OwnerID     string
	ListingID   string
	AmountCents int64
	ConfirmerID string
}

type SaleResult struct {
	Sale    domain.Sale
	Created bool
}

// RecordSale stores an externally confirmed payment and sells the owner's
// held lines on the listing in the same transaction.
func (s *LedgerService) RecordSale(ctx context.Context, in SaleInput) (SaleResult, error) {
	if in.OwnerID == "" || in.ListingID == "" {
		return SaleResult{}, domain.ErrInvalidID
	}
	if in.AmountCents < 0 {
		return SaleResult{}, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(in.ConfirmerID) == "" {
		return SaleResult{}, domain.ErrConfirmerRequired
	}

	now := s.clock.Now()
	saleID := in.SaleID
	if saleID == "" {
		saleID = newSaleID(now)
	}

	var result SaleResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetSale(txCtx, saleID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !in.replays(*existing) {
				return domain.ErrSaleExists
			}
			result = SaleResult{Sale: *existing, Created: false}
			return nil
		}

		n, err := s.repo.ConfirmHolds(txCtx, in.OwnerID, in.ListingID, saleID, now)
		if err != nil {
			return err
		}

		sale := domain.Sale{
			ID:             saleID,
			OwnerID:        in.OwnerID,
			ListingID:      in.ListingID,
			AmountCents:    in.AmountCents,
			ConfirmerID:    in.ConfirmerID,
			LinesConfirmed: n,
			CreatedAt:      now,
		}
		if err := s.repo.InsertSale(txCtx, sale); err != nil {
			return err
		}
		result = SaleResult{Sale: sale, Created: true}
		return nil
	})
	if errors.Is(err, domain.ErrSaleExists) {
		// A concurrent confirmation with the same id may have committed first.
		existing, getErr := s.repo.GetSale(ctx, saleID)
		if getErr != nil {
			return SaleResult{}, getErr
		}
		if existing != nil && in.replays(*existing) {
			return SaleResult{Sale: *existing, Created: false}, nil
		}
	}
	if err != nil {
		return SaleResult{}, err
	}

	if result.Created {
		salesRecordedTotal.Inc()
		linesSoldTotal.Add(float64(result.Sale.LinesConfirmed))
		s.logger.Info("sale recorded",
			slog.String("sale_id", result.Sale.ID),
			slog.String("owner_id", in.OwnerID),
			slog.String("listing_id", in.ListingID),
			slog.Int("lines", result.Sale.LinesConfirmed),
			slog.Int64("amount_cents", in.AmountCents),
			slog.String("confirmer_id", in.ConfirmerID),
		)
	}
	return result, nil
}

// replays reports whether in repeats the confirmation stored as sale.
func (in SaleInput) replays(sale domain.Sale) bool {
	return sale.OwnerID == in.OwnerID && sale.ListingID == in.ListingID && sale.AmountCents == in.AmountCents
}

// CancelHolds releases the owner's holds. An empty listingID cancels holds on
// every listing.
func (s *LedgerService) CancelHolds(ctx context.Context, ownerID, listingID string) (int, error) {
	if ownerID == "" {
		return 0, domain.ErrInvalidID
	}
	n, err := s.repo.CancelHolds(ctx, ownerID, listingID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	holdsExpiredTotal.WithLabelValues("cancel").Add(float64(n))
	return n, nil
}

type ExtendResult struct {
	Extended int
	// ExpiresAt is the expiry requested for the holds; holds that already
	// ran longer keep their later expiry.
	ExpiresAt time.Time
}

func (s *LedgerService) ExtendHolds(ctx context.Context, ownerID, listingID string, minutes int) (ExtendResult, error) {
	if ownerID == "" || listingID == "" {
		return ExtendResult{}, domain.ErrInvalidID
	}
	if minutes <= 0 || minutes > maxExtendMinutes {
		return ExtendResult{}, domain.ErrInvalidMinutes
	}

	now := s.clock.Now()
	until := now.Add(time.Duration(minutes) * time.Minute)
	n, err := s.repo.ExtendOwnerHolds(ctx, ownerID, listingID, until, now)
	if err != nil {
		return ExtendResult{}, err
	}
	holdsExtendedTotal.Add(float64(n))
	return ExtendResult{Extended: n, ExpiresAt: until}, nil
}

func hasNonBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func conflictReason(err error) string {
	if errors.Is(err, domain.ErrLineSold) {
		return "sold"
	}
	return "held"
}
