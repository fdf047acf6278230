package app

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cimillas/linevault/internal/clock"
	"github.com/cimillas/linevault/internal/domain"
)

const defaultMaxSessions = 10000

// SessionStore keeps one checkout session per owner. Sessions vanish after
// the TTL, matching the lifetime of the holds they track.
type SessionStore struct {
	mu    sync.Mutex // guards read-modify-write in Advance
	cache *expirable.LRU[string, domain.Session]
	clock clock.Clock
	ttl   time.Duration
}

func NewSessionStore(clk clock.Clock, ttl time.Duration, maxSessions int) *SessionStore {
	if ttl <= 0 {
		ttl = defaultHoldTTL
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &SessionStore{
		cache: expirable.NewLRU[string, domain.Session](maxSessions, nil, ttl),
		clock: clk,
		ttl:   ttl,
	}
}

// Get returns the owner's live session.
func (s *SessionStore) Get(ownerID string) (domain.Session, bool) {
	sess, ok := s.cache.Get(ownerID)
	if !ok || !sess.ExpiresAt.After(s.clock.Now()) {
		return domain.Session{}, false
	}
	return sess, true
}

// Check reports whether the owner's session for listingID may move to next.
// A session for another listing counts as no session.
func (s *SessionStore) Check(ownerID, listingID string, next domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(ownerID, listingID).CanAdvance(next) {
		return domain.ErrInvalidSessionTransition
	}
	return nil
}

// Advance moves the owner's session for listingID to next.
func (s *SessionStore) Advance(ownerID, listingID string, next domain.SessionState) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(ownerID, listingID).CanAdvance(next) {
		return domain.Session{}, domain.ErrInvalidSessionTransition
	}

	now := s.clock.Now()
	sess := domain.Session{
		OwnerID:   ownerID,
		ListingID: listingID,
		State:     next,
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}
	s.cache.Add(ownerID, sess)
	return sess, nil
}

// End tears down the owner's session.
func (s *SessionStore) End(ownerID string) {
	s.cache.Remove(ownerID)
}

func (s *SessionStore) current(ownerID, listingID string) domain.SessionState {
	sess, ok := s.Get(ownerID)
	if !ok || sess.ListingID != listingID {
		return ""
	}
	return sess.State
}
