package directory

import (
	"cmp"
	"context"
	"slices"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StaticProvider serves a fixed list of actors. It backs the memory driver
// and tests.
type StaticProvider struct {
	byID  map[uuid.UUID]routing.Actor
	order []routing.Actor
}

// NewStaticProvider creates a provider for actors. Later duplicates replace
// earlier ones.
func NewStaticProvider(actors ...routing.Actor) *StaticProvider {
	p := &StaticProvider{byID: make(map[uuid.UUID]routing.Actor, len(actors))}
	for _, a := range actors {
		p.byID[a.ID] = a
	}
	for _, a := range p.byID {
		p.order = append(p.order, a)
	}
	slices.SortFunc(p.order, func(a, b routing.Actor) int {
		return cmp.Or(cmp.Compare(a.DisplayName, b.DisplayName), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return p
}

// GetActor returns the actor or shared.ErrNotFound
func (p *StaticProvider) GetActor(_ context.Context, id uuid.UUID) (*routing.Actor, error) {
	actor, ok := p.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &actor, nil
}

// ListActors returns actors ordered by name, minus the excluded IDs
func (p *StaticProvider) ListActors(_ context.Context, excluding []uuid.UUID) ([]routing.Actor, error) {
	actors := make([]routing.Actor, 0, len(p.order))
	for _, a := range p.order {
		if !slices.Contains(excluding, a.ID) {
			actors = append(actors, a)
		}
	}
	return actors, nil
}

var _ routing.DirectoryProvider = (*StaticProvider)(nil)
