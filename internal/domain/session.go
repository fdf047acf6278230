package domain

import "time"

// SessionState tracks where a buyer is in the checkout flow for a listing.
type SessionState string

const (
	SessionPreviewed SessionState = "previewed"
	SessionReserved  SessionState = "reserved"
	SessionCompleted SessionState = "completed"
)

// CanAdvance reports whether a session may move from s to next.
func (s SessionState) CanAdvance(next SessionState) bool {
	switch s {
	case "":
		return next == SessionPreviewed || next == SessionReserved
	case SessionPreviewed:
		return next == SessionPreviewed || next == SessionReserved
	case SessionReserved:
		// Re-selecting lines extends the existing holds.
		return next == SessionReserved || next == SessionCompleted
	}
	return false
}

type Session struct {
	OwnerID   string
	ListingID string
	State     SessionState
	ExpiresAt time.Time
	UpdatedAt time.Time
}
