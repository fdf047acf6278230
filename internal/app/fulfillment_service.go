package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
)

type FulfillmentRepository interface {
	// ListSoldLines returns the owner's sold rows on the listing ordered by
	// position.
	ListSoldLines(ctx context.Context, ownerID, listingID string) ([]domain.LineHold, error)
}

type FulfillmentService struct {
	repo  FulfillmentRepository
	clock clock.Clock
}

func NewFulfillmentService(repo FulfillmentRepository, clk clock.Clock) *FulfillmentService {
	return &FulfillmentService{
		repo:  repo,
		clock: clk,
	}
}

// ReleasePackage is the unredacted content a buyer receives after payment.
type ReleasePackage struct {
	OwnerID   string
	ListingID string
	Content   string
	Count     int
	FileName  string
}

// BuildReleasePackage collects every line the owner bought on the listing.
// The listing file itself is never modified.
func (s *FulfillmentService) BuildReleasePackage(ctx context.Context, ownerID, listingID string) (ReleasePackage, error) {
	if ownerID == "" || listingID == "" {
		return ReleasePackage{}, domain.ErrInvalidID
	}

	sold, err := s.repo.ListSoldLines(ctx, ownerID, listingID)
	if err != nil {
		return ReleasePackage{}, err
	}
	if len(sold) == 0 {
		return ReleasePackage{}, domain.ErrNoSoldLines
	}

	raw := make([]string, len(sold))
	for i, h := range sold {
		raw[i] = h.RawLine
	}

	return ReleasePackage{
		OwnerID:   ownerID,
		ListingID: listingID,
		Content:   strings.Join(raw, "\n"),
		Count:     len(sold),
		FileName:  fmt.Sprintf("purchased_lines_%s_%s_%d.txt", ownerID, listingID, s.clock.Now().UnixMilli()),
	}, nil
}
