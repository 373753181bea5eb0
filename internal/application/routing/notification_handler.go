package routing

import (
	"context"
	"fmt"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationHandler turns routing events into Notifier calls. A new hop
// notifies its recipient; a status change notifies the node's sender.
//
// Delivery is best effort. Notifier failures are logged and counted but never
// returned, so neither the bus nor the outbox retries a notification.
type NotificationHandler struct {
	notifier routing.Notifier
	metrics  *telemetry.RoutingMetrics
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifier routing.Notifier, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// SetRoutingMetrics sets the metrics recorder
func (h *NotificationHandler) SetRoutingMetrics(m *telemetry.RoutingMetrics) {
	h.metrics = m
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{routing.EventTypeNodeCreated, routing.EventTypeNodeStatusChanged}
}

// Handle delivers the notification for a routing event
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	recipient, notification, err := toNotification(event)
	if err != nil {
		h.logger.Error("unexpected event type",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
		return err
	}

	if err := h.notifier.Notify(ctx, recipient, notification); err != nil {
		h.logger.Warn("Failed to deliver notification",
			zap.String("kind", string(notification.Kind)),
			zap.String("node_id", notification.NodeID.String()),
			zap.String("actor_id", recipient.String()),
			zap.Error(err),
		)
		h.metrics.RecordNotification(ctx, string(notification.Kind), false)
		return nil
	}

	h.logger.Debug("Notification delivered",
		zap.String("kind", string(notification.Kind)),
		zap.String("node_id", notification.NodeID.String()),
		zap.String("actor_id", recipient.String()),
	)
	h.metrics.RecordNotification(ctx, string(notification.Kind), true)
	return nil
}

func toNotification(event shared.DomainEvent) (uuid.UUID, routing.Notification, error) {
	switch e := event.(type) {
	case *routing.NodeCreatedEvent:
		return e.ToActorID, routing.Notification{
			Kind:       routing.NotificationNodeCreated,
			NodeID:     e.NodeID,
			DocumentID: e.DocumentID,
			Status:     routing.NodeStatusPending,
			OccurredAt: e.OccurredAt(),
		}, nil
	case *routing.NodeStatusChangedEvent:
		return e.FromActorID, routing.Notification{
			Kind:       routing.NotificationStatusChanged,
			NodeID:     e.NodeID,
			DocumentID: e.DocumentID,
			Status:     e.NewStatus,
			OccurredAt: e.OccurredAt(),
		}, nil
	default:
		return uuid.Nil, routing.Notification{}, fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}
