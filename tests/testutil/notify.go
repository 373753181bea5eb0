// Package testutil provides test doubles and polling helpers shared by the
// integration tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
)

// Delivery is one notification received by a RecordingNotifier
type Delivery struct {
	ActorID      uuid.UUID
	Notification routing.Notification
}

// RecordingNotifier is a routing.Notifier that keeps every delivery and can
// be told to fail
type RecordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

// NewRecordingNotifier creates an empty RecordingNotifier
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Notify records the delivery and returns the configured error
func (n *RecordingNotifier) Notify(_ context.Context, actorID uuid.UUID, notification routing.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{ActorID: actorID, Notification: notification})
	return n.err
}

// SetError makes later Notify calls fail with err. Deliveries are still recorded.
func (n *RecordingNotifier) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Deliveries returns a copy of everything received so far
func (n *RecordingNotifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}

// For returns the deliveries addressed to actorID
func (n *RecordingNotifier) For(actorID uuid.UUID) []Delivery {
	var out []Delivery
	for _, d := range n.Deliveries() {
		if d.ActorID == actorID {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of deliveries
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.deliveries)
}

var _ routing.Notifier = (*RecordingNotifier)(nil)

// WaitForCondition polls condition until it returns true or timeout passes
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return condition()
}
