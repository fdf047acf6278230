package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the ledger returns for an expected outcome wraps
// exactly one of these, so callers can branch on the kind or on the
// specific error.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid input")
)

var (
	ErrListingNotFound    = fmt.Errorf("listing %w", ErrNotFound)
	ErrListingUnavailable = fmt.Errorf("listing unavailable: %w", ErrNotFound)
	ErrSelectionNotFound  = fmt.Errorf("selected lines %w in listing", ErrNotFound)
	ErrNoSoldLines        = fmt.Errorf("sold lines %w", ErrNotFound)
	ErrSaleNotFound       = fmt.Errorf("sale %w", ErrNotFound)

	ErrLineHeld      = fmt.Errorf("line already held by another buyer: %w", ErrConflict)
	ErrLineSold      = fmt.Errorf("line already sold: %w", ErrConflict)
	ErrListingExists = fmt.Errorf("listing already exists: %w", ErrConflict)
	ErrSaleExists    = fmt.Errorf("sale already recorded: %w", ErrConflict)
	// ErrHoldRace is returned by stores when the held-identity unique index
	// rejects an insert or the transaction is aborted as a deadlock victim.
	// The ledger retries the reservation on it.
	ErrHoldRace = fmt.Errorf("concurrent hold on identity: %w", ErrConflict)

	ErrInvalidID                = fmt.Errorf("invalid id: %w", ErrValidation)
	ErrEmptySelection           = fmt.Errorf("empty selection: %w", ErrValidation)
	ErrInvalidMinutes           = fmt.Errorf("minutes out of range: %w", ErrValidation)
	ErrInvalidAmount            = fmt.Errorf("amount must not be negative: %w", ErrValidation)
	ErrConfirmerRequired        = fmt.Errorf("confirmer required: %w", ErrValidation)
	ErrInvalidCategory          = fmt.Errorf("invalid category: %w", ErrValidation)
	ErrListingNameRequired      = fmt.Errorf("listing name required: %w", ErrValidation)
	ErrContentPathRequired      = fmt.Errorf("content path required: %w", ErrValidation)
	ErrInvalidSessionTransition = fmt.Errorf("invalid session transition: %w", ErrValidation)
)

// LineConflictError reports the line that made a reservation fail. It
// unwraps to ErrLineHeld or ErrLineSold.
type LineConflictError struct {
	ListingID string
	Position  int
	SafeLine  string
	Reason    error
}

func (e *LineConflictError) Error() string {
	return fmt.Sprintf("%v: %q", e.Reason, e.SafeLine)
}

func (e *LineConflictError) Unwrap() error {
	return e.Reason
}

// ContentUnavailableError is returned when a listing exists but its backing
// content cannot be read. Callers see it as ErrListingUnavailable; the cause
// is kept for logging.
type ContentUnavailableError struct {
	ListingID string
	Err       error
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("listing %s content unreadable: %v", e.ListingID, e.Err)
}

func (e *ContentUnavailableError) Unwrap() []error {
	return []error{ErrListingUnavailable, e.Err}
}
