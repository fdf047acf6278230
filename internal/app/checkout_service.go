package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cimillas/linevault/internal/domain"
	"github.com/cimillas/linevault/internal/redact"
)

// CheckoutService drives a buyer through preview, selection and completion,
// keeping the per-owner session in step with the ledger.
type CheckoutService struct {
	ledger      *LedgerService
	fulfillment *FulfillmentService
	sessions    *SessionStore
	listings    ListingResolver
	content     ContentSource
	logger      *slog.Logger
}

func NewCheckoutService(ledger *LedgerService, fulfillment *FulfillmentService, sessions *SessionStore, listings ListingResolver, content ContentSource, logger *slog.Logger) *CheckoutService {
	if logger == nil {
		logger = discardLogger()
	}
	return &CheckoutService{
		ledger:      ledger,
		fulfillment: fulfillment,
		sessions:    sessions,
		listings:    listings,
		content:     content,
		logger:      logger.With(slog.String("component", "checkout")),
	}
}

type PreviewLine struct {
	Position int
	Safe     string
}

type Preview struct {
	Listing domain.Listing
	Lines   []PreviewLine
	Session domain.Session
}

// Preview renders the buyer-safe lines of a listing and opens a session. A
// buyer who already reserved lines on the listing keeps the reserved session.
func (s *CheckoutService) Preview(ctx context.Context, ownerID, listingID string) (Preview, error) {
	if ownerID == "" || listingID == "" {
		return Preview{}, domain.ErrInvalidID
	}

	listing, text, err := loadListingContent(ctx, s.listings, s.content, s.logger, listingID)
	if err != nil {
		return Preview{}, err
	}

	projected := redact.Project(text)
	lines := make([]PreviewLine, len(projected))
	for i, p := range projected {
		lines[i] = PreviewLine{Position: p.Position, Safe: p.Safe}
	}

	sess, err := s.sessions.Advance(ownerID, listing.ID, domain.SessionPreviewed)
	if errors.Is(err, domain.ErrInvalidSessionTransition) {
		sess, _ = s.sessions.Get(ownerID)
	} else if err != nil {
		return Preview{}, err
	}

	return Preview{Listing: listing, Lines: lines, Session: sess}, nil
}

// Select reserves the submitted lines and marks the session reserved.
func (s *CheckoutService) Select(ctx context.Context, in ReserveInput) (Reservation, domain.Session, error) {
	if err := s.sessions.Check(in.OwnerID, in.ListingID, domain.SessionReserved); err != nil {
		return Reservation{}, domain.Session{}, err
	}

	res, err := s.ledger.ReserveLines(ctx, in)
	if err != nil {
		return Reservation{}, domain.Session{}, err
	}

	sess, err := s.sessions.Advance(in.OwnerID, in.ListingID, domain.SessionReserved)
	if err != nil {
		return Reservation{}, domain.Session{}, err
	}
	return res, sess, nil
}

type Completion struct {
	Sale    SaleResult
	Package ReleasePackage
}

// Complete records the sale, builds the release package and ends the
// owner's session. When the sale is recorded but nothing was sold, the
// returned Completion still carries the sale alongside ErrNoSoldLines.
func (s *CheckoutService) Complete(ctx context.Context, in SaleInput) (Completion, error) {
	sale, err := s.ledger.RecordSale(ctx, in)
	if err != nil {
		return Completion{}, err
	}

	if sess, ok := s.sessions.Get(in.OwnerID); ok && sess.ListingID == in.ListingID {
		s.sessions.End(in.OwnerID)
	}

	pkg, err := s.fulfillment.BuildReleasePackage(ctx, in.OwnerID, in.ListingID)
	if err != nil {
		return Completion{Sale: sale}, err
	}
	return Completion{Sale: sale, Package: pkg}, nil
}

// Abort cancels the owner's holds on the listing and ends the session.
func (s *CheckoutService) Abort(ctx context.Context, ownerID, listingID string) (int, error) {
	n, err := s.ledger.CancelHolds(ctx, ownerID, listingID)
	if err != nil {
		return 0, err
	}
	if sess, ok := s.sessions.Get(ownerID); ok && (listingID == "" || sess.ListingID == listingID) {
		s.sessions.End(ownerID)
	}
	return n, nil
}

func (s *CheckoutService) Session(ownerID string) (domain.Session, bool) {
	return s.sessions.Get(ownerID)
}
