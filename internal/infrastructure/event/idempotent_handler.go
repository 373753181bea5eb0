package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/disposisi/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDedupTTL is how long a delivered event ID is remembered when no TTL
// is configured
const DefaultDedupTTL = 24 * time.Hour

// IdempotencyStats counts what an IdempotentHandler did with its events
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler wraps a handler so an event redelivered by the outbox
// reaches it once
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// NewIdempotentHandler wraps handler. A non-positive ttl uses DefaultDedupTTL.
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *IdempotentHandler {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     ttl,
		logger:  logger,
	}
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event ID, then runs the wrapped handler. If the store is
// unreachable the event is processed anyway; a duplicate notification is
// preferred over a lost one. A handler failure releases the claim so the
// outbox retry reaches the handler again.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	eventID := event.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, eventID, h.ttl)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	case !isNew:
		h.duplicate.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if forgetErr := h.store.Forget(ctx, eventID); forgetErr != nil {
			h.logger.Warn("failed to release idempotency key",
				zap.String("event_id", eventID),
				zap.Error(forgetErr),
			)
		}
		return err
	}

	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
