// Package content reads listing files from disk for the ledger.
package content

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/cimillas/linevault/internal/domain"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_content_cache_hits_total",
		Help: "Listing content reads served from cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_content_cache_misses_total",
		Help: "Listing content reads that went to disk.",
	})
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 10 * time.Minute
)

// FileSource serves listing files with an expiring LRU in front of the
// filesystem. Concurrent misses for the same file share one read.
type FileSource struct {
	cache *expirable.LRU[string, string]
	group singleflight.Group
}

// NewFileSource creates a source caching up to size files for ttl.
func NewFileSource(size int, ttl time.Duration) *FileSource {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &FileSource{
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Read returns the listing's content. Failures are reported as
// *domain.ContentUnavailableError.
func (s *FileSource) Read(ctx context.Context, listing domain.Listing) (string, error) {
	if listing.ContentPath == "" {
		return "", &domain.ContentUnavailableError{ListingID: listing.ID, Err: domain.ErrContentPathRequired}
	}

	key := listing.ID + "\x00" + listing.ContentPath
	if text, ok := s.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return text, nil
	}
	cacheMissesTotal.Inc()

	ch := s.group.DoChan(key, func() (any, error) {
		data, err := os.ReadFile(listing.ContentPath)
		if err != nil {
			return nil, err
		}
		text := string(data)
		s.cache.Add(key, text)
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", &domain.ContentUnavailableError{ListingID: listing.ID, Err: r.Err}
		}
		return r.Val.(string), nil
	}
}

// Invalidate drops any cached copy of the listing's content.
func (s *FileSource) Invalidate(listing domain.Listing) {
	s.cache.Remove(listing.ID + "\x00" + listing.ContentPath)
}
