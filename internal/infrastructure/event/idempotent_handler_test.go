package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	inner := newRecordingHandler(routing.EventTypeNodeCreated)
	handler := NewIdempotentHandler(inner, store, time.Hour, zap.NewNop())
	assert.Equal(t, inner.EventTypes(), handler.EventTypes())

	event := routing.NewNodeCreatedEvent(newRootNode(t))
	require.NoError(t, handler.Handle(ctx, event))
	require.NoError(t, handler.Handle(ctx, event))
	require.NoError(t, handler.Handle(ctx, routing.NewNodeCreatedEvent(newRootNode(t))))

	assert.Len(t, inner.events(), 2)
	assert.Equal(t, IdempotencyStats{Processed: 2, Duplicate: 1}, handler.Stats())
}

func TestIdempotentHandler_FailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	inner := newRecordingHandler(routing.EventTypeNodeCreated)
	inner.setError(errors.New("notifier unavailable"))
	handler := NewIdempotentHandler(inner, store, 0, zap.NewNop())

	event := routing.NewNodeCreatedEvent(newRootNode(t))
	require.Error(t, handler.Handle(ctx, event))

	inner.setError(nil)
	require.NoError(t, handler.Handle(ctx, event))

	assert.Len(t, inner.events(), 2)
	assert.Equal(t, IdempotencyStats{Processed: 1, Failed: 1}, handler.Stats())
}

func TestIdempotentHandler_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	event := routing.NewNodeCreatedEvent(newRootNode(t))

	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", ctx, event.EventID().String(), DefaultDedupTTL).
		Return(false, errors.New("connection refused")).Once()

	inner := newRecordingHandler(routing.EventTypeNodeCreated)
	handler := NewIdempotentHandler(inner, store, 0, zap.NewNop())

	require.NoError(t, handler.Handle(ctx, event))
	assert.Len(t, inner.events(), 1, "events are processed when the store cannot be reached")
	store.AssertExpectations(t)
}
