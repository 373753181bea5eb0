package routing

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRoutingNodeRepository is a mock implementation of RoutingNodeRepository
type MockRoutingNodeRepository struct {
	mock.Mock
}

func (m *MockRoutingNodeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*routing.RoutingNode, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.RoutingNode), args.Error(1)
}

func (m *MockRoutingNodeRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]routing.RoutingNode, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]routing.RoutingNode), args.Error(1)
}

func (m *MockRoutingNodeRepository) FindByRecipient(ctx context.Context, tenantID, actorID uuid.UUID, filter routing.InboxFilter) ([]routing.RoutingNode, int64, error) {
	args := m.Called(ctx, tenantID, actorID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]routing.RoutingNode), args.Get(1).(int64), args.Error(2)
}

func (m *MockRoutingNodeRepository) Create(ctx context.Context, node *routing.RoutingNode) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

func (m *MockRoutingNodeRepository) Update(ctx context.Context, node *routing.RoutingNode, expected routing.ExpectedState) error {
	args := m.Called(ctx, node, expected)
	return args.Error(0)
}

func (m *MockRoutingNodeRepository) Forward(ctx context.Context, parent *routing.RoutingNode, expected routing.ExpectedState, child *routing.RoutingNode) error {
	args := m.Called(ctx, parent, expected, child)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, actorID uuid.UUID, n routing.Notification) error {
	args := m.Called(ctx, actorID, n)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// fakeDirectory is a map-backed DirectoryProvider. Lookups of IDs in failing
// return a transport error instead of not found.
type fakeDirectory struct {
	mu      sync.Mutex
	actors  map[uuid.UUID]routing.Actor
	failing map[uuid.UUID]error
	calls   int
}

func newFakeDirectory(actors ...routing.Actor) *fakeDirectory {
	d := &fakeDirectory{
		actors:  make(map[uuid.UUID]routing.Actor),
		failing: make(map[uuid.UUID]error),
	}
	for _, a := range actors {
		d.actors[a.ID] = a
	}
	return d
}

func (d *fakeDirectory) GetActor(ctx context.Context, id uuid.UUID) (*routing.Actor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if err, ok := d.failing[id]; ok {
		return nil, err
	}
	a, ok := d.actors[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (d *fakeDirectory) ListActors(ctx context.Context, excluding []uuid.UUID) ([]routing.Actor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]routing.Actor, 0, len(d.actors))
	for id, a := range d.actors {
		if !slices.Contains(excluding, id) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b routing.Actor) int {
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
	return out, nil
}

// fakeDocuments is a map-backed DocumentStore
type fakeDocuments map[uuid.UUID]routing.Document

func (f fakeDocuments) GetDocument(ctx context.Context, id uuid.UUID) (*routing.Document, error) {
	d, ok := f[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}
