package routing

import (
	"time"

	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// RootLevel is the level of a hop created directly from document intake
const RootLevel = 1

// MaxNoteLength bounds the free-text annotation on a hop
const MaxNoteLength = 2000

// RoutingNode is one disposition hop: an assignment of a document from one
// actor to another. Only the recipient (ToActorID) may mutate it, and once
// it reaches a terminal status it never changes again.
type RoutingNode struct {
	shared.TenantAggregateRoot
	DocumentID      uuid.UUID
	FromActorID     uuid.UUID
	ToActorID       uuid.UUID
	Level           int
	ParentNodeID    *uuid.UUID
	InstructionKind InstructionKind
	Note            string
	Status          NodeStatus
	ReadAt          *time.Time
	CompletedAt     *time.Time
}

// ExpectedState is the compare-and-set guard for persisting a mutation:
// the write only applies if the stored row still has this status and version.
type ExpectedState struct {
	Status  NodeStatus
	Version int
}

// NewRootNode creates a level-1 hop for a document
func NewRootNode(tenantID, documentID, fromActorID, toActorID uuid.UUID, kind InstructionKind, note string) (*RoutingNode, error) {
	if err := validateHop(documentID, fromActorID, toActorID, kind, note); err != nil {
		return nil, err
	}

	node := &RoutingNode{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentID:          documentID,
		FromActorID:         fromActorID,
		ToActorID:           toActorID,
		Level:               RootLevel,
		InstructionKind:     kind,
		Note:                note,
		Status:              NodeStatusPending,
	}
	node.AddDomainEvent(NewNodeCreatedEvent(node))
	return node, nil
}

func validateHop(documentID, fromActorID, toActorID uuid.UUID, kind InstructionKind, note string) error {
	if documentID == uuid.Nil {
		return shared.NewDomainError(CodeValidation, "Document ID is required")
	}
	if fromActorID == uuid.Nil || toActorID == uuid.Nil {
		return shared.NewDomainError(CodeValidation, "Sender and recipient are required")
	}
	if fromActorID == toActorID {
		return shared.NewDomainError(CodeInvalidTarget, "Sender and recipient of a disposition must differ")
	}
	if !kind.IsValid() {
		return shared.NewDomainError(CodeValidation, "Invalid instruction kind: "+kind.String())
	}
	if len(note) > MaxNoteLength {
		return shared.NewDomainError(CodeValidation, "Note exceeds maximum length")
	}
	return nil
}

// Expected returns the guard for the node's current persisted state.
// Capture it before applying a transition.
func (n *RoutingNode) Expected() ExpectedState {
	return ExpectedState{Status: n.Status, Version: n.Version}
}

// IsRoot returns true if the node was created from document intake
func (n *RoutingNode) IsRoot() bool {
	return n.ParentNodeID == nil
}

// IsTerminal returns true if the node accepts no further mutation
func (n *RoutingNode) IsTerminal() bool {
	return n.Status.IsTerminal()
}

// IsRecipient returns true if actorID is the actor allowed to mutate this node
func (n *RoutingNode) IsRecipient(actorID uuid.UUID) bool {
	return n.ToActorID == actorID
}

// authorize applies the mutation precedence. A terminal node reports
// INVALID_TRANSITION to everyone; on a live node only the recipient gets past
// FORBIDDEN and learns whether the transition itself is legal.
func (n *RoutingNode) authorize(actorID uuid.UUID, target NodeStatus, op string) error {
	if n.IsTerminal() {
		return invalidTransition(n.Status, op)
	}
	if !n.IsRecipient(actorID) {
		return forbidden(op)
	}
	if !n.Status.CanTransitionTo(target) {
		return invalidTransition(n.Status, op)
	}
	return nil
}

// CheckForward validates state and actor for a forward without changing the
// node. The application layer calls it before consulting the forward policy.
func (n *RoutingNode) CheckForward(actorID uuid.UUID) error {
	return n.authorize(actorID, NodeStatusForwarded, "forward")
}

// MarkRead moves a pending node to READ
func (n *RoutingNode) MarkRead(actorID uuid.UUID) error {
	if err := n.authorize(actorID, NodeStatusRead, "mark as read"); err != nil {
		return err
	}
	now := currentTime()
	n.ReadAt = &now
	n.transition(NodeStatusRead, now)
	return nil
}

// StartProcessing moves a read node to IN_PROGRESS. Calling it on a node that
// is already in progress is an invalid transition, not a no-op.
func (n *RoutingNode) StartProcessing(actorID uuid.UUID) error {
	if err := n.authorize(actorID, NodeStatusInProgress, "start processing"); err != nil {
		return err
	}
	n.transition(NodeStatusInProgress, currentTime())
	return nil
}

// Complete closes the node. Allowed from PENDING, READ, and IN_PROGRESS.
func (n *RoutingNode) Complete(actorID uuid.UUID) error {
	if err := n.authorize(actorID, NodeStatusCompleted, "complete"); err != nil {
		return err
	}
	now := currentTime()
	n.CompletedAt = &now
	n.transition(NodeStatusCompleted, now)
	return nil
}

// SpawnChild closes this node as FORWARDED and returns the next hop, one level
// deeper, addressed from this node's recipient to toActorID. fromActorID must
// be this node's recipient. Both aggregates carry their events; the caller is
// responsible for persisting them atomically.
func (n *RoutingNode) SpawnChild(fromActorID, toActorID uuid.UUID, kind InstructionKind, note string) (*RoutingNode, error) {
	if n.IsTerminal() {
		return nil, shared.NewDomainError(CodeParentNotForwardable,
			"Parent disposition is already "+n.Status.String())
	}
	if err := n.authorize(fromActorID, NodeStatusForwarded, "forward"); err != nil {
		return nil, err
	}
	if err := validateHop(n.DocumentID, fromActorID, toActorID, kind, note); err != nil {
		return nil, err
	}

	parentID := n.ID
	child := &RoutingNode{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(n.TenantID),
		DocumentID:          n.DocumentID,
		FromActorID:         fromActorID,
		ToActorID:           toActorID,
		Level:               n.Level + 1,
		ParentNodeID:        &parentID,
		InstructionKind:     kind,
		Note:                note,
		Status:              NodeStatusPending,
	}
	child.AddDomainEvent(NewNodeCreatedEvent(child))

	n.transition(NodeStatusForwarded, child.CreatedAt)
	return child, nil
}

// Forward is SpawnChild with the bounce-back rule applied: when
// forbidBounceBack is set, the node cannot be forwarded to its own sender.
func (n *RoutingNode) Forward(actorID, toActorID uuid.UUID, kind InstructionKind, note string, forbidBounceBack bool) (*RoutingNode, error) {
	if err := n.CheckForward(actorID); err != nil {
		return nil, err
	}
	if forbidBounceBack && toActorID == n.FromActorID {
		return nil, shared.NewDomainError(CodeInvalidTarget,
			"Cannot forward a disposition back to its sender")
	}
	return n.SpawnChild(actorID, toActorID, kind, note)
}

func (n *RoutingNode) transition(to NodeStatus, at time.Time) {
	from := n.Status
	n.Status = to
	n.UpdatedAt = at
	n.IncrementVersion()
	n.AddDomainEvent(NewNodeStatusChangedEvent(n, from, to))
}

// currentTime is truncated to the microsecond precision postgres stores
func currentTime() time.Time {
	return time.Now().Truncate(time.Microsecond)
}
