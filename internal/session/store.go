package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is the idle time after which a session is evicted.
const DefaultTTL = 60 * time.Minute

// Store holds sessions keyed by uuid. Every Get refreshes the idle TTL.
type Store struct {
	cache *ttlcache.Cache[string, *Session]
}

// NewStore creates a store. capacity 0 means unbounded.
func NewStore(ttl time.Duration, capacity uint64) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := []ttlcache.Option[string, *Session]{ttlcache.WithTTL[string, *Session](ttl)}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *Session](capacity))
	}
	return &Store{cache: ttlcache.New[string, *Session](opts...)}
}

// Run evicts expired sessions until ctx is done.
func (s *Store) Run(ctx context.Context) {
	go s.cache.Start()
	<-ctx.Done()
	s.cache.Stop()
}

// OnEvict registers fn for sessions removed by expiry, capacity or Delete.
// The returned func unsubscribes.
func (s *Store) OnEvict(fn func(sess *Session, expired bool)) func() {
	return s.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		fn(item.Value(), reason == ttlcache.EvictionReasonExpired)
	})
}

// Create starts an empty session.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString())
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
	return sess
}

// Get returns a live session and extends its lifetime.
func (s *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len counts live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// DeleteExpired evicts expired sessions immediately.
func (s *Store) DeleteExpired() {
	s.cache.DeleteExpired()
}
