// Package notify delivers routing notifications to actors
package notify

import (
	"context"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. It is the default for local
// runs where no push channel exists.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at Info
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification and never fails
func (n *LogNotifier) Notify(_ context.Context, actorID uuid.UUID, notification routing.Notification) error {
	n.logger.Info("notification",
		zap.String("actor_id", actorID.String()),
		zap.String("kind", string(notification.Kind)),
		zap.String("node_id", notification.NodeID.String()),
		zap.String("document_id", notification.DocumentID.String()),
		zap.String("status", notification.Status.String()),
		zap.Time("occurred_at", notification.OccurredAt),
	)
	return nil
}

var _ routing.Notifier = (*LogNotifier)(nil)
