package directory

import (
	"context"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultCacheCapacity = 10_000
)

// CachedProvider memoizes GetActor lookups of another provider. Listing is
// not cached, but every listed actor refreshes its cache entry. Lookup
// failures, including unknown IDs, are not cached.
type CachedProvider struct {
	next   routing.DirectoryProvider
	actors *ttlcache.Cache[uuid.UUID, routing.Actor]
}

// NewCachedProvider wraps next. Zero ttl or capacity fall back to defaults.
func NewCachedProvider(next routing.DirectoryProvider, ttl time.Duration, capacity uint64) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	actors := ttlcache.New[uuid.UUID, routing.Actor](
		ttlcache.WithTTL[uuid.UUID, routing.Actor](ttl),
		ttlcache.WithCapacity[uuid.UUID, routing.Actor](capacity),
		ttlcache.WithDisableTouchOnHit[uuid.UUID, routing.Actor](),
	)
	go actors.Start()
	return &CachedProvider{next: next, actors: actors}
}

// GetActor serves from the cache or falls through to the wrapped provider
func (p *CachedProvider) GetActor(ctx context.Context, id uuid.UUID) (*routing.Actor, error) {
	if item := p.actors.Get(id); item != nil {
		actor := item.Value()
		return &actor, nil
	}

	actor, err := p.next.GetActor(ctx, id)
	if err != nil {
		return nil, err
	}
	p.actors.Set(id, *actor, ttlcache.DefaultTTL)
	return actor, nil
}

// ListActors always asks the wrapped provider
func (p *CachedProvider) ListActors(ctx context.Context, excluding []uuid.UUID) ([]routing.Actor, error) {
	actors, err := p.next.ListActors(ctx, excluding)
	if err != nil {
		return nil, err
	}
	for _, a := range actors {
		p.actors.Set(a.ID, a, ttlcache.DefaultTTL)
	}
	return actors, nil
}

// Invalidate drops one actor, or every actor when id is uuid.Nil
func (p *CachedProvider) Invalidate(id uuid.UUID) {
	if id == uuid.Nil {
		p.actors.DeleteAll()
		return
	}
	p.actors.Delete(id)
}

// Close stops the expiry loop
func (p *CachedProvider) Close() {
	p.actors.Stop()
}

var _ routing.DirectoryProvider = (*CachedProvider)(nil)
