package domain

import "time"

// Sale records an externally asserted payment confirmation. Confirming a sale
// moves the buyer's held lines on the listing to sold.
type Sale struct {
	ID             string
	OwnerID        string
	ListingID      string
	AmountCents    int64
	ConfirmerID    string
	LinesConfirmed int
	CreatedAt      time.Time
}
