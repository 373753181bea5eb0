package routing

import (
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
)

// =============================================================================
// Command DTOs
// =============================================================================

// CreateNodeRequest creates a disposition hop. Without ParentNodeID it opens a
// new root for the document; with it, it forwards the parent.
type CreateNodeRequest struct {
	DocumentID      uuid.UUID  `json:"document_id" validate:"required"`
	FromActorID     uuid.UUID  `json:"from_actor_id" validate:"required"`
	ToActorID       uuid.UUID  `json:"to_actor_id" validate:"required"`
	InstructionKind string     `json:"instruction_kind" validate:"required,instruction_kind"`
	Note            string     `json:"note" validate:"max=2000"`
	ParentNodeID    *uuid.UUID `json:"parent_node_id,omitempty"`
}

// ForwardRequest forwards a node to the next recipient
type ForwardRequest struct {
	ToActorID       uuid.UUID `json:"to_actor_id" validate:"required"`
	InstructionKind string    `json:"instruction_kind" validate:"required,instruction_kind"`
	Note            string    `json:"note" validate:"max=2000"`
}

// InboxQuery lists the nodes addressed to an actor
type InboxQuery struct {
	Statuses []string `validate:"dive,node_status"`
	Page     int      `validate:"gte=0"`
	PageSize int      `validate:"gte=0"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// NodeResponse is the external view of a routing node
type NodeResponse struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	DocumentID      uuid.UUID  `json:"document_id"`
	FromActorID     uuid.UUID  `json:"from_actor_id"`
	ToActorID       uuid.UUID  `json:"to_actor_id"`
	Level           int        `json:"level"`
	ParentNodeID    *uuid.UUID `json:"parent_node_id,omitempty"`
	InstructionKind string     `json:"instruction_kind"`
	Note            string     `json:"note,omitempty"`
	Status          string     `json:"status"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ForwardResponse carries both sides of a forward
type ForwardResponse struct {
	Parent NodeResponse `json:"parent"`
	Child  NodeResponse `json:"child"`
}

// ActorResponse is a directory entry offered as a forward target
type ActorResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	OrgUnit     string    `json:"org_unit,omitempty"`
}

// PartyResponse is a resolved sender or recipient in a history entry.
// DisplayName falls back to the raw ID when the directory has no entry.
type PartyResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role,omitempty"`
	Resolved    bool      `json:"resolved"`
}

// DocumentSummary is the document header shown above a history
type DocumentSummary struct {
	ID            uuid.UUID `json:"id"`
	Subject       string    `json:"subject"`
	Sender        string    `json:"sender"`
	ReceivedAt    time.Time `json:"received_at"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
}

// HistoryEntry is one line of the disposition history
type HistoryEntry struct {
	NodeID           uuid.UUID     `json:"node_id"`
	ParentNodeID     *uuid.UUID    `json:"parent_node_id,omitempty"`
	Level            int           `json:"level"`
	Depth            int           `json:"depth"`
	From             PartyResponse `json:"from"`
	To               PartyResponse `json:"to"`
	InstructionKind  string        `json:"instruction_kind"`
	InstructionLabel string        `json:"instruction_label"`
	Note             string        `json:"note,omitempty"`
	Status           string        `json:"status"`
	StatusLabel      string        `json:"status_label"`
	CreatedAt        time.Time     `json:"created_at"`
	ReadAt           *time.Time    `json:"read_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// HistoryResponse is the rendered disposition history of a document
type HistoryResponse struct {
	Document *DocumentSummary `json:"document,omitempty"`
	Entries  []HistoryEntry   `json:"entries"`
	Branches [][]uuid.UUID    `json:"branches"`
}

// ToNodeResponse converts a domain node to its response DTO
func ToNodeResponse(n *routing.RoutingNode) NodeResponse {
	return NodeResponse{
		ID:              n.ID,
		TenantID:        n.TenantID,
		DocumentID:      n.DocumentID,
		FromActorID:     n.FromActorID,
		ToActorID:       n.ToActorID,
		Level:           n.Level,
		ParentNodeID:    n.ParentNodeID,
		InstructionKind: n.InstructionKind.String(),
		Note:            n.Note,
		Status:          n.Status.String(),
		Version:         n.Version,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		ReadAt:          n.ReadAt,
		CompletedAt:     n.CompletedAt,
	}
}

// ToNodeResponses converts a slice of domain nodes
func ToNodeResponses(nodes []routing.RoutingNode) []NodeResponse {
	out := make([]NodeResponse, len(nodes))
	for i := range nodes {
		out[i] = ToNodeResponse(&nodes[i])
	}
	return out
}

// ToActorResponse converts a directory actor
func ToActorResponse(a routing.Actor) ActorResponse {
	return ActorResponse{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		OrgUnit:     a.OrgUnit,
	}
}

func toDocumentSummary(d *routing.Document) *DocumentSummary {
	if d == nil {
		return nil
	}
	return &DocumentSummary{
		ID:            d.ID,
		Subject:       d.Subject,
		Sender:        d.Sender,
		ReceivedAt:    d.ReceivedAt,
		AttachmentRef: d.AttachmentRef,
	}
}
