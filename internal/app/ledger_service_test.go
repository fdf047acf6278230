package app

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/lineid"
)

const shopContent = `a.example:u1:p1:3 orders
b.example:u2:p2:0 orders
c.example:u3:p3:7 orders
d.example:u4:p4:1 orders
e.example:u5:p5:2 orders
`

var shopListing = domain.Listing{ID: "SHOP_001", Name: "Shops", Category: domain.CategoryShop, ContentPath: "shop_001.txt", Available: true}

func newLedgerFixture(t *testing.T, now time.Time, holds ...domain.LineHold) (*LedgerService, *fakeLedgerRepo, *clock.Fake) {
	t.Helper()
	repo := newFakeLedgerRepo(holds...)
	clk := clock.NewFake(now)
	listings := newFakeListings(shopListing, domain.Listing{ID: "SHOP_OFF", ContentPath: "off.txt", Available: false})
	content := &fakeContent{texts: map[string]string{"SHOP_001": shopContent}}
	svc := NewLedgerService(repo, listings, content, clk, WithHoldTTL(15*time.Minute))
	return svc, repo, clk
}

func TestLedgerService_ReserveLines(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	t.Run("creates holds for matched lines", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)

		res, err := svc.ReserveLines(context.Background(), ReserveInput{
			OwnerID:   "buyer-a",
			ListingID: "SHOP_001",
			Lines:     []string{"a.example 3 orders", "c.example 7 orders"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Created != 2 || res.Extended != 0 {
			t.Fatalf("expected 2 created, got %+v", res)
		}
		if !res.ExpiresAt.Equal(now.Add(ttl)) {
			t.Fatalf("expected expiry %v, got %v", now.Add(ttl), res.ExpiresAt)
		}

		held := repo.byState("buyer-a", domain.HoldStateHeld)
		if len(held) != 2 {
			t.Fatalf("expected 2 held rows, got %d", len(held))
		}
		want := string(lineid.Compute("SHOP_001", 2, "c.example:u3:p3:7 orders"))
		if held[1].Identity != want || held[1].RawLine != "c.example:u3:p3:7 orders" {
			t.Fatalf("unexpected hold %+v", held[1])
		}
		if held[0].ID == "" || held[0].ID == held[1].ID {
			t.Fatalf("expected distinct hold ids")
		}
	})

	t.Run("conflict leaves other buyer untouched and writes nothing", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		ctx := context.Background()

		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders", "b.example 0 orders", "c.example 7 orders"}}); err != nil {
			t.Fatalf("reserve a: %v", err)
		}

		_, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-b", ListingID: "SHOP_001", Lines: []string{"c.example 7 orders", "d.example 1 orders"}})
		if !errors.Is(err, domain.ErrLineHeld) || !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrLineHeld, got %v", err)
		}
		var conflict *domain.LineConflictError
		if !errors.As(err, &conflict) || conflict.SafeLine != "c.example 7 orders" || conflict.Position != 2 {
			t.Fatalf("expected conflict on c.example, got %+v", conflict)
		}

		if got := len(repo.byState("buyer-b", domain.HoldStateHeld)); got != 0 {
			t.Fatalf("expected no holds for buyer-b, got %d", got)
		}
		if got := len(repo.byState("buyer-a", domain.HoldStateHeld)); got != 3 {
			t.Fatalf("expected buyer-a holds untouched, got %d", got)
		}
	})

	t.Run("same owner re-request extends", func(t *testing.T) {
		svc, repo, clk := newLedgerFixture(t, now)
		ctx := context.Background()
		in := ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}}

		if _, err := svc.ReserveLines(ctx, in); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		later := clk.Advance(5 * time.Minute)
		res, err := svc.ReserveLines(ctx, in)
		if err != nil {
			t.Fatalf("re-reserve: %v", err)
		}
		if res.Created != 0 || res.Extended != 1 {
			t.Fatalf("expected one extension, got %+v", res)
		}
		held := repo.byState("buyer-a", domain.HoldStateHeld)
		if len(held) != 1 || !held[0].HoldExpiresAt.Equal(later.Add(ttl)) {
			t.Fatalf("expected single hold expiring at %v, got %+v", later.Add(ttl), held)
		}
	})

	t.Run("expired hold of another buyer is replaced", func(t *testing.T) {
		identity := string(lineid.Compute("SHOP_001", 0, "a.example:u1:p1:3 orders"))
		stale := domain.LineHold{
			ID: "stale", Identity: identity, OwnerID: "buyer-a", ListingID: "SHOP_001",
			Position: 0, RawLine: "a.example:u1:p1:3 orders", SafeLine: "a.example 3 orders",
			State: domain.HoldStateHeld, HoldExpiresAt: now.Add(-time.Minute),
		}
		svc, repo, _ := newLedgerFixture(t, now, stale)

		res, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: "buyer-b", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}})
		if err != nil {
			t.Fatalf("expected lazy expiry to free the line, got %v", err)
		}
		if res.Created != 1 {
			t.Fatalf("expected a fresh row, got %+v", res)
		}
		if got := repo.byState("buyer-a", domain.HoldStateExpired); len(got) != 1 || got[0].ID != "stale" {
			t.Fatalf("expected stale row expired, got %+v", got)
		}
		if got := repo.byState("buyer-b", domain.HoldStateHeld); len(got) != 1 || got[0].ID == "stale" {
			t.Fatalf("expected new row for buyer-b, got %+v", got)
		}
	})

	t.Run("sold line is a conflict", func(t *testing.T) {
		identity := string(lineid.Compute("SHOP_001", 1, "b.example:u2:p2:0 orders"))
		sold := domain.LineHold{ID: "sold", Identity: identity, OwnerID: "buyer-a", ListingID: "SHOP_001", Position: 1, State: domain.HoldStateSold}
		svc, repo, _ := newLedgerFixture(t, now, sold)

		for _, owner := range []string{"buyer-a", "buyer-b"} {
			_, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: owner, ListingID: "SHOP_001", Lines: []string{"b.example 0 orders"}})
			if !errors.Is(err, domain.ErrLineSold) {
				t.Fatalf("expected ErrLineSold for %s, got %v", owner, err)
			}
		}
		if len(repo.snapshot()) != 1 {
			t.Fatalf("expected no new rows")
		}
	})

	t.Run("unredacted submission matches nothing", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)

		_, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example:u1:p1:3 orders"}})
		if !errors.Is(err, domain.ErrSelectionNotFound) || !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrSelectionNotFound, got %v", err)
		}
		if len(repo.snapshot()) != 0 {
			t.Fatalf("expected zero holds")
		}
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _ := newLedgerFixture(t, now)
		ctx := context.Background()

		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "", ListingID: "SHOP_001", Lines: []string{"x"}}); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{" ", ""}}); err != domain.ErrEmptySelection {
			t.Fatalf("expected ErrEmptySelection, got %v", err)
		}
	})

	t.Run("missing or unavailable listing", func(t *testing.T) {
		svc, _, _ := newLedgerFixture(t, now)
		ctx := context.Background()
		lines := []string{"a.example 3 orders"}

		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "NOPE", Lines: lines}); err != domain.ErrListingNotFound {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_OFF", Lines: lines}); err != domain.ErrListingUnavailable {
			t.Fatalf("expected ErrListingUnavailable, got %v", err)
		}
	})

	t.Run("unreadable content", func(t *testing.T) {
		repo := newFakeLedgerRepo()
		svc := NewLedgerService(repo, newFakeListings(shopListing), &fakeContent{err: fs.ErrNotExist}, clock.NewFixed(now))

		_, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}})
		var unavailable *domain.ContentUnavailableError
		if !errors.As(err, &unavailable) || !errors.Is(err, domain.ErrListingUnavailable) {
			t.Fatalf("expected ContentUnavailableError, got %v", err)
		}
	})
}

func TestLedgerService_ReserveLines_RetriesRace(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	in := ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders", "d.example 1 orders"}}

	t.Run("succeeds after losing twice", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		repo.insertRaces = 2

		res, err := svc.ReserveLines(context.Background(), in)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if res.Created != 2 || len(repo.byState("buyer-a", domain.HoldStateHeld)) != 2 {
			t.Fatalf("expected 2 holds after retry, got %+v", res)
		}
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		repo.insertRaces = maxReserveAttempts

		_, err := svc.ReserveLines(context.Background(), in)
		var conflict *domain.LineConflictError
		if !errors.As(err, &conflict) || !errors.Is(err, domain.ErrLineHeld) {
			t.Fatalf("expected held conflict, got %v", err)
		}
		if conflict.SafeLine != "a.example 3 orders" && conflict.SafeLine != "d.example 1 orders" {
			t.Fatalf("expected conflict on a submitted line, got %q", conflict.SafeLine)
		}
		if repo.inserts != maxReserveAttempts {
			t.Fatalf("expected %d insert attempts, got %d", maxReserveAttempts, repo.inserts)
		}
		if len(repo.snapshot()) != 0 {
			t.Fatalf("expected nothing written")
		}
	})
}

// saleDuringLockRepo commits buyer-x's sale the first time a reservation
// locks an identity, as if the sale held the row lock first. Its WithTx has
// no rollback so the concurrent sale survives the reservation's failure.
type saleDuringLockRepo struct {
	*fakeLedgerRepo
	once  sync.Once
	calls []string
}

func (r *saleDuringLockRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *saleDuringLockRepo) GetHeldForUpdate(ctx context.Context, identity string) (*domain.LineHold, error) {
	r.calls = append(r.calls, "lock")
	r.once.Do(func() {
		_, _ = r.fakeLedgerRepo.ConfirmHolds(ctx, "buyer-x", "SHOP_001", "sale-x", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	})
	return r.fakeLedgerRepo.GetHeldForUpdate(ctx, identity)
}

func (r *saleDuringLockRepo) HasSold(ctx context.Context, identity string) (bool, error) {
	r.calls = append(r.calls, "sold")
	return r.fakeLedgerRepo.HasSold(ctx, identity)
}

// staleSoldRepo answers HasSold from a snapshot taken before the sale.
type staleSoldRepo struct {
	*fakeLedgerRepo
}

func (r staleSoldRepo) HasSold(context.Context, string) (bool, error) {
	return false, nil
}

func TestLedgerService_ReserveLines_SoldWhileWaiting(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := "a.example:u1:p1:3 orders"
	identity := string(lineid.Compute("SHOP_001", 0, raw))
	xHold := domain.LineHold{
		ID: "hold-x", Identity: identity, OwnerID: "buyer-x", ListingID: "SHOP_001",
		Position: 0, RawLine: raw, SafeLine: "a.example 3 orders",
		State: domain.HoldStateHeld, HoldExpiresAt: now.Add(10 * time.Minute), CreatedAt: now, UpdatedAt: now,
	}
	soldAt := now
	xSold := xHold
	xSold.State = domain.HoldStateSold
	xSold.SaleID = "sale-x"
	xSold.SoldAt = &soldAt

	tests := []struct {
		name string
		hold domain.LineHold
		wrap func(*fakeLedgerRepo) LedgerRepository
	}{
		{
			name: "sale commits while the row lock is awaited",
			hold: xHold,
			wrap: func(f *fakeLedgerRepo) LedgerRepository { return &saleDuringLockRepo{fakeLedgerRepo: f} },
		},
		{
			name: "insert refuses a sold identity",
			hold: xSold,
			wrap: func(f *fakeLedgerRepo) LedgerRepository { return staleSoldRepo{fakeLedgerRepo: f} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeLedgerRepo(tt.hold)
			wrapped := tt.wrap(repo)
			listings := newFakeListings(shopListing)
			content := &fakeContent{texts: map[string]string{"SHOP_001": shopContent}}
			svc := NewLedgerService(wrapped, listings, content, clock.NewFake(now))

			_, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: "buyer-y", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}})
			var conflict *domain.LineConflictError
			if !errors.As(err, &conflict) || !errors.Is(err, domain.ErrLineSold) {
				t.Fatalf("expected sold conflict, got %v", err)
			}
			if held := repo.byState("buyer-y", domain.HoldStateHeld); len(held) != 0 {
				t.Fatalf("expected no hold for buyer-y, got %+v", held)
			}
			if sold := repo.byState("", domain.HoldStateSold); len(sold) != 1 || sold[0].OwnerID != "buyer-x" {
				t.Fatalf("expected only buyer-x sold, got %+v", sold)
			}
			if r, ok := wrapped.(*saleDuringLockRepo); ok && strings.Join(r.calls, ",") != "lock,sold" {
				t.Fatalf("expected sold check after the lock, got %v", r.calls)
			}
		})
	}
}

func TestLedgerService_ReserveLines_LocksInIdentityOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := newLedgerFixture(t, now)

	lines := []string{"e.example 2 orders", "c.example 7 orders", "a.example 3 orders", "d.example 1 orders"}
	res, err := svc.ReserveLines(context.Background(), ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: lines})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if len(repo.locked) != len(lines) {
		t.Fatalf("expected %d locks, got %d", len(lines), len(repo.locked))
	}
	if !sort.StringsAreSorted(repo.locked) {
		t.Fatalf("expected identities locked in ascending order, got %v", repo.locked)
	}

	got := make([]string, 0, len(res.Holds))
	for _, h := range res.Holds {
		got = append(got, h.SafeLine)
	}
	if strings.Join(got, "|") != strings.Join(lines, "|") {
		t.Fatalf("expected holds in submission order %v, got %v", lines, got)
	}
}

func TestLedgerService_ConfirmSale(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, _ := newLedgerFixture(t, now)
	ctx := context.Background()

	if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders", "b.example 0 orders"}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	n, err := svc.ConfirmSale(ctx, "buyer-a", "SHOP_001", "sale-1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 confirmed, got %d %v", n, err)
	}
	n, err = svc.ConfirmSale(ctx, "buyer-a", "SHOP_001", "sale-1")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent confirm to return 0, got %d %v", n, err)
	}

	for _, h := range repo.byState("buyer-a", domain.HoldStateSold) {
		if h.SaleID != "sale-1" || h.SoldAt == nil || !h.SoldAt.Equal(now) {
			t.Fatalf("expected sale stamp on %+v", h)
		}
	}

	if _, err := svc.ConfirmSale(ctx, "buyer-a", "SHOP_001", ""); err != domain.ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestLedgerService_RecordSale(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("records sale and sells holds", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		ctx := context.Background()
		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}}); err != nil {
			t.Fatalf("reserve: %v", err)
		}

		res, err := svc.RecordSale(ctx, SaleInput{OwnerID: "buyer-a", ListingID: "SHOP_001", AmountCents: 1500, ConfirmerID: "admin-1"})
		if err != nil {
			t.Fatalf("record sale: %v", err)
		}
		if !res.Created || res.Sale.ID == "" || res.Sale.LinesConfirmed != 1 {
			t.Fatalf("unexpected sale %+v", res)
		}
		sold := repo.byState("buyer-a", domain.HoldStateSold)
		if len(sold) != 1 || sold[0].SaleID != res.Sale.ID {
			t.Fatalf("expected hold stamped with sale id, got %+v", sold)
		}
	})

	t.Run("repeated sale id is idempotent", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		ctx := context.Background()
		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}}); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		in := SaleInput{SaleID: "pay-42", OwnerID: "buyer-a", ListingID: "SHOP_001", AmountCents: 900, ConfirmerID: "admin-1"}

		first, err := svc.RecordSale(ctx, in)
		if err != nil || !first.Created {
			t.Fatalf("first record: %+v %v", first, err)
		}
		if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"b.example 0 orders"}}); err != nil {
			t.Fatalf("reserve more: %v", err)
		}
		second, err := svc.RecordSale(ctx, in)
		if err != nil || second.Created {
			t.Fatalf("expected stored sale, got %+v %v", second, err)
		}
		if second.Sale.ID != "pay-42" || second.Sale.LinesConfirmed != 1 {
			t.Fatalf("unexpected stored sale %+v", second.Sale)
		}
		if got := len(repo.byState("buyer-a", domain.HoldStateHeld)); got != 1 {
			t.Fatalf("expected replay to confirm nothing, got %d held", got)
		}
	})

	t.Run("reused sale id with different details is rejected", func(t *testing.T) {
		svc, repo, _ := newLedgerFixture(t, now)
		ctx := context.Background()
		reservations := []ReserveInput{
			{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}},
			{OwnerID: "buyer-b", ListingID: "SHOP_001", Lines: []string{"b.example 0 orders"}},
		}
		for _, in := range reservations {
			if _, err := svc.ReserveLines(ctx, in); err != nil {
				t.Fatalf("reserve %s: %v", in.OwnerID, err)
			}
		}
		first := SaleInput{SaleID: "S1", OwnerID: "buyer-a", ListingID: "SHOP_001", AmountCents: 900, ConfirmerID: "admin-1"}
		if _, err := svc.RecordSale(ctx, first); err != nil {
			t.Fatalf("first record: %v", err)
		}

		tests := []struct {
			name   string
			mutate func(*SaleInput)
		}{
			{"other owner", func(in *SaleInput) { in.OwnerID = "buyer-b" }},
			{"other listing", func(in *SaleInput) { in.ListingID = "SHOP_002" }},
			{"other amount", func(in *SaleInput) { in.AmountCents = 1 }},
		}
		for _, tt := range tests {
			in := first
			tt.mutate(&in)
			if _, err := svc.RecordSale(ctx, in); !errors.Is(err, domain.ErrSaleExists) {
				t.Fatalf("%s: expected ErrSaleExists, got %v", tt.name, err)
			}
		}

		if got := len(repo.byState("buyer-b", domain.HoldStateHeld)); got != 1 {
			t.Fatalf("expected buyer-b hold untouched, got %d held", got)
		}
		if sale := repo.sales["S1"]; sale.OwnerID != "buyer-a" || sale.AmountCents != 900 {
			t.Fatalf("expected stored sale unchanged, got %+v", sale)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		svc, _, _ := newLedgerFixture(t, now)
		ctx := context.Background()

		if _, err := svc.RecordSale(ctx, SaleInput{OwnerID: "buyer-a", ListingID: "SHOP_001", AmountCents: -1, ConfirmerID: "admin"}); err != domain.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		if _, err := svc.RecordSale(ctx, SaleInput{OwnerID: "buyer-a", ListingID: "SHOP_001", AmountCents: 1}); err != domain.ErrConfirmerRequired {
			t.Fatalf("expected ErrConfirmerRequired, got %v", err)
		}
	})
}

func TestLedgerService_CancelAndExtend(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, repo, clk := newLedgerFixture(t, now)
	ctx := context.Background()

	if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-a", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders", "b.example 0 orders"}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	for _, minutes := range []int{0, -5, maxExtendMinutes + 1, math.MaxInt} {
		if _, err := svc.ExtendHolds(ctx, "buyer-a", "SHOP_001", minutes); err != domain.ErrInvalidMinutes {
			t.Fatalf("minutes %d: expected ErrInvalidMinutes, got %v", minutes, err)
		}
	}

	// A shorter extension never pulls the expiry back.
	res, err := svc.ExtendHolds(ctx, "buyer-a", "SHOP_001", 5)
	if err != nil || res.Extended != 2 {
		t.Fatalf("extend: %+v %v", res, err)
	}
	for _, h := range repo.byState("buyer-a", domain.HoldStateHeld) {
		if !h.HoldExpiresAt.Equal(now.Add(15 * time.Minute)) {
			t.Fatalf("expected expiry unchanged, got %v", h.HoldExpiresAt)
		}
	}

	res, err = svc.ExtendHolds(ctx, "buyer-a", "SHOP_001", 30)
	if err != nil || !res.ExpiresAt.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("extend: %+v %v", res, err)
	}

	cancelAt := clk.Advance(time.Minute)
	n, err := svc.CancelHolds(ctx, "buyer-a", "")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cancelled, got %d %v", n, err)
	}
	for _, h := range repo.byState("buyer-a", domain.HoldStateExpired) {
		if !h.HoldExpiresAt.Equal(cancelAt) {
			t.Fatalf("expected cancel to set expiry to now, got %v", h.HoldExpiresAt)
		}
	}

	// The cancelled lines are free for someone else.
	if _, err := svc.ReserveLines(ctx, ReserveInput{OwnerID: "buyer-b", ListingID: "SHOP_001", Lines: []string{"a.example 3 orders"}}); err != nil {
		t.Fatalf("expected cancelled line to be reservable, got %v", err)
	}

	res, err = svc.ExtendHolds(ctx, "buyer-b", "SHOP_001", maxExtendMinutes)
	if err != nil || res.Extended != 1 || !res.ExpiresAt.Equal(cancelAt.Add(maxExtendMinutes*time.Minute)) {
		t.Fatalf("expected week-long extension, got %+v %v", res, err)
	}
}
