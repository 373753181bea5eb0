package routing

import (
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeRoutingNode identifies routing nodes in the event stream
const AggregateTypeRoutingNode = "RoutingNode"

// Event type constants
const (
	EventTypeNodeCreated       = "RoutingNodeCreated"
	EventTypeNodeStatusChanged = "RoutingNodeStatusChanged"
)

// NodeCreatedEvent is published when a hop is created, either from document
// intake or as the child of a forward. It is addressed to the new recipient.
type NodeCreatedEvent struct {
	shared.BaseDomainEvent
	NodeID          uuid.UUID       `json:"node_id"`
	DocumentID      uuid.UUID       `json:"document_id"`
	FromActorID     uuid.UUID       `json:"from_actor_id"`
	ToActorID       uuid.UUID       `json:"to_actor_id"`
	ParentNodeID    *uuid.UUID      `json:"parent_node_id,omitempty"`
	Level           int             `json:"level"`
	InstructionKind InstructionKind `json:"instruction_kind"`
}

// NewNodeCreatedEvent creates a new NodeCreatedEvent
func NewNodeCreatedEvent(node *RoutingNode) *NodeCreatedEvent {
	return &NodeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeNodeCreated,
			AggregateTypeRoutingNode,
			node.ID,
			node.TenantID,
		),
		NodeID:          node.ID,
		DocumentID:      node.DocumentID,
		FromActorID:     node.FromActorID,
		ToActorID:       node.ToActorID,
		ParentNodeID:    node.ParentNodeID,
		Level:           node.Level,
		InstructionKind: node.InstructionKind,
	}
}

// NodeStatusChangedEvent is published on every accepted transition.
// It is addressed to the node's sender so the dispatcher can follow progress.
type NodeStatusChangedEvent struct {
	shared.BaseDomainEvent
	NodeID      uuid.UUID  `json:"node_id"`
	DocumentID  uuid.UUID  `json:"document_id"`
	FromActorID uuid.UUID  `json:"from_actor_id"`
	ToActorID   uuid.UUID  `json:"to_actor_id"`
	OldStatus   NodeStatus `json:"old_status"`
	NewStatus   NodeStatus `json:"new_status"`
}

// NewNodeStatusChangedEvent creates a new NodeStatusChangedEvent
func NewNodeStatusChangedEvent(node *RoutingNode, oldStatus, newStatus NodeStatus) *NodeStatusChangedEvent {
	return &NodeStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeNodeStatusChanged,
			AggregateTypeRoutingNode,
			node.ID,
			node.TenantID,
		),
		NodeID:      node.ID,
		DocumentID:  node.DocumentID,
		FromActorID: node.FromActorID,
		ToActorID:   node.ToActorID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
	}
}
