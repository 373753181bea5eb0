package models

import (
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
)

// RoutingNodeModel is the persistence model for the RoutingNode aggregate.
// The unique index on parent_node_id allows at most one child per node.
type RoutingNodeModel struct {
	TenantAggregateModel
	DocumentID      uuid.UUID               `gorm:"type:uuid;not null;index:idx_routing_nodes_document,priority:1"`
	FromActorID     uuid.UUID               `gorm:"type:uuid;not null"`
	ToActorID       uuid.UUID               `gorm:"type:uuid;not null;index:idx_routing_nodes_inbox,priority:1"`
	Level           int                     `gorm:"not null;index:idx_routing_nodes_document,priority:2"`
	ParentNodeID    *uuid.UUID              `gorm:"type:uuid;uniqueIndex"`
	InstructionKind routing.InstructionKind `gorm:"type:varchar(30);not null"`
	Note            string                  `gorm:"type:text"`
	Status          routing.NodeStatus      `gorm:"type:varchar(20);not null;index:idx_routing_nodes_inbox,priority:2"`
	ReadAt          *time.Time
	CompletedAt     *time.Time
}

// TableName returns the table name for GORM
func (RoutingNodeModel) TableName() string {
	return "routing_nodes"
}

// ToDomain converts the row to a domain RoutingNode. The result carries no
// pending domain events.
func (m *RoutingNodeModel) ToDomain() *routing.RoutingNode {
	node := &routing.RoutingNode{
		DocumentID:      m.DocumentID,
		FromActorID:     m.FromActorID,
		ToActorID:       m.ToActorID,
		Level:           m.Level,
		ParentNodeID:    m.ParentNodeID,
		InstructionKind: m.InstructionKind,
		Note:            m.Note,
		Status:          m.Status,
		ReadAt:          m.ReadAt,
		CompletedAt:     m.CompletedAt,
	}
	m.PopulateTenantAggregateRoot(&node.TenantAggregateRoot)
	return node
}

// RoutingNodeModelFromDomain builds the row for a domain RoutingNode
func RoutingNodeModelFromDomain(n *routing.RoutingNode) *RoutingNodeModel {
	m := &RoutingNodeModel{
		DocumentID:      n.DocumentID,
		FromActorID:     n.FromActorID,
		ToActorID:       n.ToActorID,
		Level:           n.Level,
		ParentNodeID:    n.ParentNodeID,
		InstructionKind: n.InstructionKind,
		Note:            n.Note,
		Status:          n.Status,
		ReadAt:          n.ReadAt,
		CompletedAt:     n.CompletedAt,
	}
	m.FromDomainTenantAggregateRoot(n.TenantAggregateRoot)
	return m
}
