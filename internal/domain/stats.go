package domain

import "time"

// StateCounts counts ledger rows by state.
type StateCounts struct {
	Held    int
	Sold    int
	Expired int
	Total   int
}

// Add records n rows in state s.
func (c *StateCounts) Add(s HoldState, n int) {
	switch s {
	case HoldStateHeld:
		c.Held += n
	case HoldStateSold:
		c.Sold += n
	case HoldStateExpired:
		c.Expired += n
	}
	c.Total += n
}

type ListingStats struct {
	ListingID      string
	Counts         StateCounts
	DistinctOwners int
}

type GlobalStats struct {
	Counts         StateCounts
	DistinctOwners int
	Listings       int
	Sales          int
	RevenueCents   int64
}

// OwnerBreakdown is one buyer's footprint on a single listing.
type OwnerBreakdown struct {
	OwnerID string
	Counts  StateCounts
}

// ListingVolume ranks listings by the number of ledger rows written for them.
type ListingVolume struct {
	ListingID string
	Name      string
	Category  Category
	Rows      int
	Sold      int
}

// HeldLine is an active hold joined with its listing metadata.
type HeldLine struct {
	Hold            LineHold
	ListingName     string
	ListingCategory Category
	ExpiresIn       time.Duration
}
