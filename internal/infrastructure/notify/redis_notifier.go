package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix is used when no prefix is configured
const DefaultChannelPrefix = "disposisi:notify"

// Publisher is the part of the Redis client the notifier needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier publishes each notification as JSON on the recipient's own
// channel, <prefix>:<actorID>. Delivery is fire-and-forget; with no
// subscriber the message is dropped.
type RedisNotifier struct {
	client Publisher
	prefix string
}

// NewRedisNotifier creates a notifier on client
func NewRedisNotifier(client Publisher, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisNotifier{client: client, prefix: prefix}
}

// Channel returns the channel an actor subscribes to
func (n *RedisNotifier) Channel(actorID uuid.UUID) string {
	return n.prefix + ":" + actorID.String()
}

// Notify publishes the notification
func (n *RedisNotifier) Notify(ctx context.Context, actorID uuid.UUID, notification routing.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(actorID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

var _ routing.Notifier = (*RedisNotifier)(nil)
