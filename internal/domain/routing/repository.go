package routing

import (
	"context"

	"github.com/google/uuid"
)

// InboxFilter narrows an actor's inbox
type InboxFilter struct {
	// Statuses restricts results to these statuses; empty means all
	Statuses []NodeStatus
	Page     int
	PageSize int
}

// RoutingNodeRepository persists routing nodes.
//
// Lookups return shared.ErrNotFound for unknown or cross-tenant IDs. Writes
// guarded by ExpectedState return shared.ErrConcurrencyConflict when the stored
// row no longer matches the guard.
type RoutingNodeRepository interface {
	// FindByID retrieves a node within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*RoutingNode, error)

	// FindByDocument returns every node of a document ordered by
	// level ascending, then creation time ascending, then ID
	FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]RoutingNode, error)

	// FindByRecipient returns a page of nodes addressed to actorID, newest first,
	// together with the total count matching the filter
	FindByRecipient(ctx context.Context, tenantID, actorID uuid.UUID, filter InboxFilter) ([]RoutingNode, int64, error)

	// Create inserts a new root node
	Create(ctx context.Context, node *RoutingNode) error

	// Update persists a single-node transition if the stored row matches expected
	Update(ctx context.Context, node *RoutingNode, expected ExpectedState) error

	// Forward atomically persists the parent's transition to FORWARDED (guarded
	// by expected) together with the child insert. Either both writes happen or
	// neither does.
	Forward(ctx context.Context, parent *RoutingNode, expected ExpectedState, child *RoutingNode) error
}
