package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func newHoldID() string {
	return uuid.NewString()
}

// newSaleID returns a ULID so sale ids sort by confirmation time.
func newSaleID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
