package app

import (
	"context"
	"strings"

	"github.com/cimillas/linevault/internal/catalog"
	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
)

type ListingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateListing(ctx context.Context, listing domain.Listing) error
	// UpsertListing inserts the listing or overwrites its metadata, keeping
	// the original creation time.
	UpsertListing(ctx context.Context, listing domain.Listing) error
	// ListListings returns listings ordered by id. An empty category matches
	// every category.
	ListListings(ctx context.Context, category domain.Category) ([]domain.Listing, error)
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

type ListingService struct {
	repo  ListingRepository
	clock clock.Clock
}

func NewListingService(repo ListingRepository, clk clock.Clock) *ListingService {
	return &ListingService{
		repo:  repo,
		clock: clk,
	}
}

type CreateListingInput struct {
	ID          string
	Name        string
	Category    string
	Description string
	ContentPath string
	PriceCents  *int64
	Available   bool
}

func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	listing, err := s.buildListing(in)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

func (s *ListingService) buildListing(in CreateListingInput) (domain.Listing, error) {
	id := strings.TrimSpace(in.ID)
	if !validListingID(id) {
		return domain.Listing{}, domain.ErrInvalidID
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Listing{}, domain.ErrListingNameRequired
	}
	category, err := domain.ParseCategory(in.Category)
	if err != nil {
		return domain.Listing{}, err
	}
	if strings.TrimSpace(in.ContentPath) == "" {
		return domain.Listing{}, domain.ErrContentPathRequired
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return domain.Listing{}, domain.ErrInvalidAmount
	}

	return domain.Listing{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Category:    category,
		Description: in.Description,
		ContentPath: in.ContentPath,
		PriceCents:  in.PriceCents,
		Available:   in.Available,
		CreatedAt:   s.clock.Now(),
	}, nil
}

func (s *ListingService) ListListings(ctx context.Context, category string) ([]domain.Listing, error) {
	var c domain.Category
	if category != "" {
		parsed, err := domain.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		c = parsed
	}
	return s.repo.ListListings(ctx, c)
}

func (s *ListingService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, domain.ErrInvalidID
	}
	return s.repo.GetListing(ctx, id)
}

// SetAvailability switches a listing on or off for new reservations. Existing
// holds and sales are unaffected.
func (s *ListingService) SetAvailability(ctx context.Context, id string, available bool) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, domain.ErrInvalidID
	}
	var listing domain.Listing
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetAvailability(txCtx, id, available); err != nil {
			return err
		}
		var err error
		listing, err = s.repo.GetListing(txCtx, id)
		return err
	})
	if err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

// ImportCatalog upserts every listing in the YAML catalog at path in one
// transaction and returns how many were written.
func (s *ListingService) ImportCatalog(ctx context.Context, path string) (int, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return 0, err
	}

	listings := make([]domain.Listing, 0, len(c.Listings))
	for _, e := range c.Listings {
		listing, err := s.buildListing(CreateListingInput{
			ID:          e.ID,
			Name:        e.Name,
			Category:    e.Category,
			Description: e.Description,
			ContentPath: e.File,
			PriceCents:  e.PriceCents,
			Available:   e.IsAvailable(),
		})
		if err != nil {
			return 0, &CatalogEntryError{ID: e.ID, Err: err}
		}
		listings = append(listings, listing)
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		for _, l := range listings {
			if err := s.repo.UpsertListing(txCtx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(listings), nil
}

// CatalogEntryError names the catalog entry that failed validation.
type CatalogEntryError struct {
	ID  string
	Err error
}

func (e *CatalogEntryError) Error() string {
	return "catalog listing " + e.ID + ": " + e.Err.Error()
}

func (e *CatalogEntryError) Unwrap() error {
	return e.Err
}

// validListingID accepts codes such as SHOP_001. Ids end up in release file
// names, so only letters, digits, '_' and '-' are allowed.
func validListingID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
