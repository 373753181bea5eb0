package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actor is a person in the organization directory
type Actor struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	OrgUnit     string    `json:"org_unit"`
}

// Document is the letter being routed. It is owned by the document store and
// read-only from the engine's point of view.
type Document struct {
	ID            uuid.UUID `json:"id"`
	Subject       string    `json:"subject"`
	Sender        string    `json:"sender"`
	ReceivedAt    time.Time `json:"received_at"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
}

// DirectoryProvider resolves actors. Implementations return shared.ErrNotFound
// for unknown IDs.
type DirectoryProvider interface {
	GetActor(ctx context.Context, id uuid.UUID) (*Actor, error)
	// ListActors returns every actor except the excluded IDs
	ListActors(ctx context.Context, excluding []uuid.UUID) ([]Actor, error)
}

// DocumentStore resolves documents. Implementations return shared.ErrNotFound
// for unknown IDs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
}

// NotificationKind distinguishes the two notification shapes
type NotificationKind string

const (
	NotificationNodeCreated   NotificationKind = "NodeCreated"
	NotificationStatusChanged NotificationKind = "StatusChanged"
)

// Notification is the payload handed to the Notifier
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	NodeID     uuid.UUID        `json:"node_id"`
	DocumentID uuid.UUID        `json:"document_id"`
	Status     NodeStatus       `json:"status"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Notifier delivers notifications to actors. Delivery is best effort: errors
// are reported to the caller for logging and never affect routing state.
type Notifier interface {
	Notify(ctx context.Context, actorID uuid.UUID, notification Notification) error
}

// ForwardPolicy decides whether an actor may forward at all
type ForwardPolicy interface {
	CanForward(actor Actor) bool
}

// ForwardPolicyFunc adapts a plain function to ForwardPolicy
type ForwardPolicyFunc func(actor Actor) bool

// CanForward calls f(actor)
func (f ForwardPolicyFunc) CanForward(actor Actor) bool {
	return f(actor)
}

// AllowAllForwards is the policy used when no role restriction is configured
var AllowAllForwards ForwardPolicy = ForwardPolicyFunc(func(Actor) bool { return true })
