package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/linevault/internal/domain"
)

// fakeLedgerRepo is an in-memory LedgerRepository. WithTx restores the
// previous rows when fn fails.
type fakeLedgerRepo struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	holds []domain.LineHold
	sales map[string]domain.Sale

	// insertRaces makes the next N InsertHold calls fail with ErrHoldRace.
	insertRaces int
	inserts     int
	// locked records GetHeldForUpdate identities in call order.
	locked   []string
	sweepErr error
	sweeps   int
}

func newFakeLedgerRepo(holds ...domain.LineHold) *fakeLedgerRepo {
	return &fakeLedgerRepo{
		holds: append([]domain.LineHold{}, holds...),
		sales: make(map[string]domain.Sale),
	}
}

func (f *fakeLedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	holds := append([]domain.LineHold{}, f.holds...)
	sales := make(map[string]domain.Sale, len(f.sales))
	for k, v := range f.sales {
		sales[k] = v
	}
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.holds = holds
		f.sales = sales
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeLedgerRepo) GetHeldForUpdate(_ context.Context, identity string) (*domain.LineHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, identity)
	for _, h := range f.holds {
		if h.Identity == identity && h.State == domain.HoldStateHeld {
			h := h
			return &h, nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerRepo) HasSold(_ context.Context, identity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.holds {
		if h.Identity == identity && h.State == domain.HoldStateSold {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) InsertHold(_ context.Context, hold domain.LineHold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertRaces > 0 {
		f.insertRaces--
		return domain.ErrHoldRace
	}
	for _, h := range f.holds {
		if h.Identity != hold.Identity {
			continue
		}
		switch h.State {
		case domain.HoldStateSold:
			return domain.ErrLineSold
		case domain.HoldStateHeld:
			return domain.ErrHoldRace
		}
	}
	f.holds = append(f.holds, hold)
	return nil
}

func (f *fakeLedgerRepo) ExtendHold(_ context.Context, holdID string, until, now time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.holds {
		h := &f.holds[i]
		if h.ID != holdID || h.State != domain.HoldStateHeld {
			continue
		}
		if until.After(h.HoldExpiresAt) {
			h.HoldExpiresAt = until
		}
		h.UpdatedAt = now
		return h.HoldExpiresAt, nil
	}
	return time.Time{}, domain.ErrHoldRace
}

func (f *fakeLedgerRepo) ExpireHold(_ context.Context, holdID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.holds {
		h := &f.holds[i]
		if h.ID == holdID && h.State == domain.HoldStateHeld {
			h.State = domain.HoldStateExpired
			h.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) ConfirmHolds(_ context.Context, ownerID, listingID, saleID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.holds {
		h := &f.holds[i]
		if h.OwnerID != ownerID || h.ListingID != listingID || h.State != domain.HoldStateHeld {
			continue
		}
		soldAt := now
		h.State = domain.HoldStateSold
		h.SoldAt = &soldAt
		h.SaleID = saleID
		h.UpdatedAt = now
		n++
	}
	return n, nil
}

func (f *fakeLedgerRepo) CancelHolds(_ context.Context, ownerID, listingID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.holds {
		h := &f.holds[i]
		if h.OwnerID != ownerID || h.State != domain.HoldStateHeld {
			continue
		}
		if listingID != "" && h.ListingID != listingID {
			continue
		}
		h.State = domain.HoldStateExpired
		h.HoldExpiresAt = now
		h.UpdatedAt = now
		n++
	}
	return n, nil
}

func (f *fakeLedgerRepo) ExtendOwnerHolds(_ context.Context, ownerID, listingID string, until, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.holds {
		h := &f.holds[i]
		if h.OwnerID != ownerID || h.ListingID != listingID || h.State != domain.HoldStateHeld {
			continue
		}
		if until.After(h.HoldExpiresAt) {
			h.HoldExpiresAt = until
		}
		h.UpdatedAt = now
		n++
	}
	return n, nil
}

func (f *fakeLedgerRepo) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sales[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeLedgerRepo) InsertSale(_ context.Context, sale domain.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sales[sale.ID]; ok {
		return domain.ErrSaleExists
	}
	f.sales[sale.ID] = sale
	return nil
}

func (f *fakeLedgerRepo) ListSoldLines(_ context.Context, ownerID, listingID string) ([]domain.LineHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LineHold
	for _, h := range f.holds {
		if h.OwnerID == ownerID && h.ListingID == listingID && h.State == domain.HoldStateSold {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeLedgerRepo) ExpireHeldBefore(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	n := 0
	for i := range f.holds {
		h := &f.holds[i]
		if h.State == domain.HoldStateHeld && h.HoldExpiresAt.Before(now) {
			h.State = domain.HoldStateExpired
			h.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (f *fakeLedgerRepo) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func (f *fakeLedgerRepo) snapshot() []domain.LineHold {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LineHold{}, f.holds...)
}

func (f *fakeLedgerRepo) byState(owner string, state domain.HoldState) []domain.LineHold {
	var out []domain.LineHold
	for _, h := range f.snapshot() {
		if (owner == "" || h.OwnerID == owner) && h.State == state {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type fakeListings struct {
	listings map[string]domain.Listing
}

func newFakeListings(listings ...domain.Listing) *fakeListings {
	m := make(map[string]domain.Listing, len(listings))
	for _, l := range listings {
		m[l.ID] = l
	}
	return &fakeListings{listings: m}
}

func (f *fakeListings) GetListing(_ context.Context, id string) (domain.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

type fakeContent struct {
	texts map[string]string
	err   error
}

func (f *fakeContent) Read(_ context.Context, listing domain.Listing) (string, error) {
	if f.err != nil {
		return "", &domain.ContentUnavailableError{ListingID: listing.ID, Err: f.err}
	}
	return f.texts[listing.ID], nil
}
