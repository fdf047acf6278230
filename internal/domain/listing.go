package domain

import "time"

type Category string

const (
	CategoryShop       Category = "SHOP"
	CategoryAdmin      Category = "ADMIN"
	CategoryAuthors    Category = "AUTHORS"
	CategoryAdminSEO   Category = "ADMIN_SEO"
	CategoryAuthorsSEO Category = "AUTHORS_SEO"
)

// ParseCategory normalizes a category name. Unknown names return
// ErrInvalidCategory.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryShop, CategoryAdmin, CategoryAuthors, CategoryAdminSEO, CategoryAuthorsSEO:
		return c, nil
	}
	return "", ErrInvalidCategory
}

// Listing is a named source of sellable lines backed by a file. The backing
// file is never rewritten once lines are sold against it.
type Listing struct {
	ID          string
	Name        string
	Category    Category
	Description string
	ContentPath string
	PriceCents  *int64
	Available   bool
	CreatedAt   time.Time
}
