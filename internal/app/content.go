package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cimillas/linevault/internal/domain"
)

// ListingResolver looks up listing metadata by id.
type ListingResolver interface {
	GetListing(ctx context.Context, id string) (domain.Listing, error)
}

// ContentSource returns the full text backing a listing. Implementations
// must treat listing files as read-only.
type ContentSource interface {
	Read(ctx context.Context, listing domain.Listing) (string, error)
}

// loadListingContent resolves a listing and its content, rejecting listings
// that are switched off.
func loadListingContent(ctx context.Context, listings ListingResolver, content ContentSource, logger *slog.Logger, listingID string) (domain.Listing, string, error) {
	listing, err := listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, "", err
	}
	if !listing.Available {
		return domain.Listing{}, "", domain.ErrListingUnavailable
	}

	text, err := content.Read(ctx, listing)
	if err != nil {
		var unavailable *domain.ContentUnavailableError
		if errors.As(err, &unavailable) {
			logger.Warn("listing content unreadable",
				slog.String("listing_id", listing.ID),
				slog.String("path", listing.ContentPath),
				slog.String("error", unavailable.Err.Error()),
			)
		}
		return domain.Listing{}, "", err
	}
	return listing, text, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
