package domain

import "time"

type HoldState string

const (
	HoldStateHeld    HoldState = "held"
	HoldStateSold    HoldState = "sold"
	HoldStateExpired HoldState = "expired"
)

// Terminal reports whether no transition is defined out of s.
func (s HoldState) Terminal() bool {
	return s == HoldStateSold || s == HoldStateExpired
}

// LineHold is one ledger row: a buyer's claim on a single line of a listing.
// Rows are append-only; State, HoldExpiresAt, SoldAt and SaleID are the only
// fields that change after insert.
type LineHold struct {
	ID            string
	Identity      string
	OwnerID       string
	ListingID     string
	Position      int
	RawLine       string
	SafeLine      string
	State         HoldState
	HoldExpiresAt time.Time
	SoldAt        *time.Time
	SaleID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActiveAt reports whether the hold still blocks other buyers at now.
func (h LineHold) ActiveAt(now time.Time) bool {
	return h.State == HoldStateHeld && h.HoldExpiresAt.After(now)
}
