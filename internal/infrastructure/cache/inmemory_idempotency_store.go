package cache

import (
	"context"
	"time"

	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/jellydator/ttlcache/v3"
)

// InMemoryIdempotencyStore keeps delivered event IDs in a TTL cache. It only
// deduplicates within one process; use the Redis store when several
// instances run the outbox processor.
type InMemoryIdempotencyStore struct {
	seen *ttlcache.Cache[string, struct{}]
}

// NewInMemoryIdempotencyStore creates a store and starts its expiry loop
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	seen := ttlcache.New[string, struct{}](
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go seen.Start()
	return &InMemoryIdempotencyStore{seen: seen}
}

// MarkProcessed records eventID unless it is already present
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	_, found := s.seen.GetOrSet(eventID, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))
	return !found, nil
}

// Forget drops eventID
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, eventID string) error {
	s.seen.Delete(eventID)
	return nil
}

// Len returns the number of remembered IDs
func (s *InMemoryIdempotencyStore) Len() int {
	return s.seen.Len()
}

// Close stops the expiry loop
func (s *InMemoryIdempotencyStore) Close() error {
	s.seen.Stop()
	return nil
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
