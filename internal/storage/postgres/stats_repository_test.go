package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/testutil"
)

func TestStatsRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, pool)
	ledger := NewLedgerRepository(pool)
	stats := NewStatsRepository(pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	testutil.InsertListing(t, ctx, pool, domain.Listing{ID: "SHOP_001", Name: "Shops", ContentPath: "/x", Available: true})
	testutil.InsertListing(t, ctx, pool, domain.Listing{ID: "SHOP_002", Name: "More shops", ContentPath: "/y", Available: true})

	now := time.Now().UTC()
	seed := []struct {
		identity string
		owner    string
		listing  string
		expires  time.Time
	}{
		{"i1", "buyer-a", "SHOP_001", now.Add(time.Hour)},
		{"i2", "buyer-a", "SHOP_001", now.Add(time.Hour)},
		{"i3", "buyer-b", "SHOP_001", now.Add(-time.Minute)},
		{"i4", "buyer-a", "SHOP_002", now.Add(time.Hour)},
	}
	for i, s := range seed {
		h := newHold(s.identity, s.owner, i, s.expires)
		h.ListingID = s.listing
		if err := ledger.InsertHold(ctx, h); err != nil {
			t.Fatalf("insert hold: %v", err)
		}
	}
	if _, err := ledger.ConfirmHolds(ctx, "buyer-a", "SHOP_002", "sale-1", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := ledger.InsertSale(ctx, domain.Sale{ID: "sale-1", OwnerID: "buyer-a", ListingID: "SHOP_002", AmountCents: 700, ConfirmerID: "admin", LinesConfirmed: 1, CreatedAt: now}); err != nil {
		t.Fatalf("insert sale: %v", err)
	}
	if _, err := ledger.ExpireHeldBefore(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	t.Run("owner counts", func(t *testing.T) {
		c, err := stats.OwnerCounts(ctx, "buyer-a")
		if err != nil {
			t.Fatalf("owner counts: %v", err)
		}
		if c.Held != 2 || c.Sold != 1 || c.Total != 3 {
			t.Fatalf("unexpected counts %+v", c)
		}
	})

	t.Run("listing stats", func(t *testing.T) {
		s, err := stats.ListingStats(ctx, "SHOP_001")
		if err != nil {
			t.Fatalf("listing stats: %v", err)
		}
		if s.Counts.Held != 2 || s.Counts.Expired != 1 || s.DistinctOwners != 2 {
			t.Fatalf("unexpected listing stats %+v", s)
		}
	})

	t.Run("global stats", func(t *testing.T) {
		g, err := stats.GlobalStats(ctx)
		if err != nil {
			t.Fatalf("global stats: %v", err)
		}
		if g.Counts.Total != 4 || g.Listings != 2 || g.Sales != 1 || g.RevenueCents != 700 || g.DistinctOwners != 2 {
			t.Fatalf("unexpected global stats %+v", g)
		}
	})

	t.Run("active holds", func(t *testing.T) {
		held, err := stats.ActiveHolds(ctx, "buyer-a", "", now)
		if err != nil {
			t.Fatalf("active holds: %v", err)
		}
		if len(held) != 2 || held[0].ListingName != "Shops" || held[0].ListingCategory != domain.CategoryShop {
			t.Fatalf("unexpected active holds %+v", held)
		}
		none, err := stats.ActiveHolds(ctx, "buyer-a", "SHOP_002", now)
		if err != nil || len(none) != 0 {
			t.Fatalf("expected no active holds on SHOP_002, got %+v %v", none, err)
		}
	})

	t.Run("top listings", func(t *testing.T) {
		top, err := stats.TopListings(ctx, 10)
		if err != nil {
			t.Fatalf("top listings: %v", err)
		}
		if len(top) != 2 || top[0].ListingID != "SHOP_001" || top[0].Rows != 3 || top[1].Sold != 1 {
			t.Fatalf("unexpected ranking %+v", top)
		}
	})

	t.Run("listing owners", func(t *testing.T) {
		owners, err := stats.ListingOwners(ctx, "SHOP_001")
		if err != nil {
			t.Fatalf("listing owners: %v", err)
		}
		if len(owners) != 2 || owners[0].OwnerID != "buyer-a" || owners[0].Counts.Held != 2 || owners[1].Counts.Expired != 1 {
			t.Fatalf("unexpected owners %+v", owners)
		}
	})
}
