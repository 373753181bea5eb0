package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/disposisi/backend/internal/infrastructure/persistence"
	"github.com/disposisi/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type outboxHarness struct {
	db        *gorm.DB
	nodes     *persistence.GormRoutingNodeRepository
	outbox    *GormOutboxRepository
	handler   *recordingHandler
	processor *OutboxProcessor
}

func newOutboxHarness(t *testing.T, maxRetries int) *outboxHarness {
	t.Helper()
	db := newSQLiteDB(t)
	serializer := NewRoutingEventSerializer()

	nodes := persistence.NewGormRoutingNodeRepository(db)
	nodes.SetOutboxSaver(NewOutboxPublisher(serializer, maxRetries))

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(routing.EventTypeNodeCreated, routing.EventTypeNodeStatusChanged)
	bus.Subscribe(handler)

	outbox := NewGormOutboxRepository(db)
	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupEnabled = false

	return &outboxHarness{
		db:        db,
		nodes:     nodes,
		outbox:    outbox,
		handler:   handler,
		processor: NewOutboxProcessor(outbox, bus, serializer, cfg, zap.NewNop()),
	}
}

// makeDue moves every failed entry's next attempt into the past
func (h *outboxHarness) makeDue(t *testing.T) {
	t.Helper()
	require.NoError(t, h.db.Model(&models.OutboxEntryModel{}).
		Where("status = ?", shared.OutboxStatusFailed).
		Update("next_retry_at", time.Now().Add(-time.Second)).Error)
}

func TestOutboxProcessor_DeliversCommittedEvents(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 0)

	node := newRootNode(t)
	require.NoError(t, h.nodes.Create(ctx, node))

	result, err := h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Sent: 1}, result)

	delivered := h.handler.events()
	require.Len(t, delivered, 1)
	created, ok := delivered[0].(*routing.NodeCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, node.ID, created.NodeID)
	assert.Equal(t, node.ToActorID, created.ToActorID)

	result, err = h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result, "sent entries are not redelivered")
}

func TestOutboxProcessor_ForwardWritesBothEvents(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 0)

	parent := newRootNode(t)
	require.NoError(t, h.nodes.Create(ctx, parent))
	parent.ClearDomainEvents()

	expected := parent.Expected()
	child, err := parent.Forward(parent.ToActorID, parent.FromActorID, routing.InstructionCoordinate, "", false)
	require.NoError(t, err)
	require.NoError(t, h.nodes.Forward(ctx, parent, expected, child))

	result, err := h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Sent)

	var types []string
	for _, e := range h.handler.events() {
		types = append(types, e.EventType())
	}
	assert.ElementsMatch(t, []string{
		routing.EventTypeNodeCreated,
		routing.EventTypeNodeStatusChanged,
		routing.EventTypeNodeCreated,
	}, types)
}

func TestOutboxProcessor_RetriesFailedDelivery(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 0)
	require.NoError(t, h.nodes.Create(ctx, newRootNode(t)))

	h.handler.setError(errors.New("notifier unavailable"))
	result, err := h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Failed: 1}, result)

	counts, err := h.outbox.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])

	h.handler.setError(nil)
	h.makeDue(t)
	result, err = h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Sent: 1}, result)
	assert.Len(t, h.handler.events(), 2)
}

func TestOutboxProcessor_DeadLettersAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 2)
	require.NoError(t, h.nodes.Create(ctx, newRootNode(t)))
	h.handler.setError(errors.New("notifier unavailable"))

	result, err := h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Failed: 1}, result)

	h.makeDue(t)
	result, err = h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Dead: 1}, result)

	h.makeDue(t)
	result, err = h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result)
}

func TestOutboxProcessor_UnknownEventType(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 0)

	entry := shared.NewOutboxEntry(routing.NewNodeCreatedEvent(newRootNode(t)), []byte(`{}`))
	entry.EventType = "DocumentArchived"
	require.NoError(t, h.outbox.Save(ctx, entry))

	result, err := h.processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Failed: 1}, result)

	stored, err := h.outbox.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.LastError, "unknown event type")
	assert.Empty(t, h.handler.events())
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	ctx := context.Background()
	h := newOutboxHarness(t, 0)
	require.NoError(t, h.nodes.Create(ctx, newRootNode(t)))

	require.NoError(t, h.processor.Start(ctx))
	require.Eventually(t, func() bool {
		return len(h.handler.events()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.processor.Stop(stopCtx))
}

func TestOutboxProcessorConfigFrom(t *testing.T) {
	cfg := OutboxProcessorConfigFrom(config.EventConfig{
		BatchSize:        25,
		PollInterval:     time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 72 * time.Hour,
	})
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.True(t, cfg.CleanupEnabled)
	assert.Equal(t, 72*time.Hour, cfg.CleanupRetention)

	defaults := OutboxProcessorConfigFrom(config.EventConfig{})
	assert.Equal(t, DefaultOutboxProcessorConfig().BatchSize, defaults.BatchSize)
	assert.Equal(t, DefaultOutboxProcessorConfig().PollInterval, defaults.PollInterval)
	assert.False(t, defaults.CleanupEnabled)
}
