package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names used for spans, metrics and logs
const (
	OpCreateNode      = "create_node"
	OpMarkRead        = "mark_read"
	OpStartProcessing = "start_processing"
	OpComplete        = "complete"
	OpForward         = "forward"
)

// RoutingService applies disposition state transitions.
//
// Every mutation is persisted as a compare-and-set against the status and
// version the node had when it was loaded. A lost race is re-evaluated
// against the fresh row: if the operation is no longer legal the caller gets
// the domain error it would have got had it arrived second, otherwise
// CONFLICT_RETRY.
type RoutingService struct {
	repo             routing.RoutingNodeRepository
	directory        routing.DirectoryProvider
	documents        routing.DocumentStore
	policy           routing.ForwardPolicy
	forbidBounceBack bool
	validate         *validator.Validate
	eventPublisher   shared.EventPublisher
	metrics          *telemetry.RoutingMetrics
	logger           *zap.Logger
}

// NewRoutingService creates a new RoutingService. A nil policy allows every
// actor to forward. Bounce-back forwarding is rejected by default.
func NewRoutingService(
	repo routing.RoutingNodeRepository,
	directory routing.DirectoryProvider,
	documents routing.DocumentStore,
	policy routing.ForwardPolicy,
	logger *zap.Logger,
) *RoutingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = routing.AllowAllForwards
	}
	return &RoutingService{
		repo:             repo,
		directory:        directory,
		documents:        documents,
		policy:           policy,
		forbidBounceBack: true,
		validate:         NewValidator(),
		logger:           logger,
	}
}

// SetEventPublisher sets the publisher used after a successful commit.
// Leave it unset when the repository writes events to the outbox.
func (s *RoutingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetRoutingMetrics sets the metrics recorder
func (s *RoutingService) SetRoutingMetrics(m *telemetry.RoutingMetrics) {
	s.metrics = m
}

// SetForbidBounceBack controls whether a node may be forwarded to its sender
func (s *RoutingService) SetForbidBounceBack(forbid bool) {
	s.forbidBounceBack = forbid
}

// =============================================================================
// Commands
// =============================================================================

// CreateNode creates a disposition hop. Without a parent it opens a new
// level-1 root for the document; with a parent it forwards that parent and
// the parent's transition commits together with the child insert.
func (s *RoutingService) CreateNode(ctx context.Context, tenantID uuid.UUID, req CreateNodeRequest) (resp *NodeResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", OpCreateNode,
		telemetry.SpanAttrDocumentID, req.DocumentID,
		telemetry.SpanAttrActorID, req.FromActorID,
	)
	defer span.End()
	defer s.observe(ctx, OpCreateNode, time.Now(), &err)
	defer func() { telemetry.RecordError(span, err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.FromActorID == req.ToActorID {
		return nil, shared.NewDomainError(routing.CodeInvalidTarget, "Sender and recipient of a disposition must differ")
	}

	if err := s.ensureDocument(ctx, req.DocumentID); err != nil {
		return nil, err
	}
	sender, err := s.lookupActor(ctx, req.FromActorID, "Sender")
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupActor(ctx, req.ToActorID, "Recipient"); err != nil {
		return nil, err
	}

	kind := routing.InstructionKind(req.InstructionKind)
	if req.ParentNodeID == nil {
		node, err := routing.NewRootNode(tenantID, req.DocumentID, req.FromActorID, req.ToActorID, kind, req.Note)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, node); err != nil {
			return nil, fmt.Errorf("failed to create routing node: %w", err)
		}
		s.publishEvents(ctx, node)
		s.logger.Info("Routing node created",
			zap.String("node_id", node.ID.String()),
			zap.String("document_id", node.DocumentID.String()),
			zap.String("from_actor_id", node.FromActorID.String()),
			zap.String("to_actor_id", node.ToActorID.String()),
			zap.String("instruction_kind", node.InstructionKind.String()),
		)
		r := ToNodeResponse(node)
		return &r, nil
	}

	parent, err := s.repo.FindByID(ctx, tenantID, *req.ParentNodeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(routing.CodeParentNotForwardable, "Parent disposition not found")
		}
		return nil, fmt.Errorf("failed to load parent node: %w", err)
	}
	if parent.DocumentID != req.DocumentID {
		return nil, shared.NewDomainError(routing.CodeParentNotForwardable, "Parent disposition belongs to another document")
	}

	checkParent := func(p *routing.RoutingNode) error {
		if p.IsTerminal() {
			return shared.NewDomainError(routing.CodeParentNotForwardable,
				"Parent disposition is already "+p.Status.String())
		}
		return p.CheckForward(req.FromActorID)
	}
	if err := checkParent(parent); err != nil {
		return nil, err
	}
	if !s.policy.CanForward(*sender) {
		return nil, forwardDenied(sender)
	}

	expected := parent.Expected()
	child, err := parent.Forward(req.FromActorID, req.ToActorID, kind, req.Note, s.forbidBounceBack)
	if err != nil {
		return nil, err
	}
	if err := s.persistForward(ctx, tenantID, parent, expected, child, checkParent); err != nil {
		return nil, err
	}
	r := ToNodeResponse(child)
	return &r, nil
}

// Forward closes a node as FORWARDED and creates the next hop addressed to
// req.ToActorID. The caller must be the node's recipient and must be allowed
// to forward by the configured policy.
func (s *RoutingService) Forward(ctx context.Context, tenantID, nodeID, actorID uuid.UUID, req ForwardRequest) (resp *ForwardResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", OpForward,
		telemetry.SpanAttrNodeID, nodeID,
		telemetry.SpanAttrActorID, actorID,
	)
	defer span.End()
	defer s.observe(ctx, OpForward, time.Now(), &err)
	defer func() { telemetry.RecordError(span, err) }()

	node, err := s.loadNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}
	if err := node.CheckForward(actorID); err != nil {
		return nil, err
	}

	actor, err := s.lookupActor(ctx, actorID, "Actor")
	if err != nil {
		return nil, err
	}
	if !s.policy.CanForward(*actor) {
		return nil, forwardDenied(actor)
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	expected := node.Expected()
	child, err := node.Forward(actorID, req.ToActorID, routing.InstructionKind(req.InstructionKind), req.Note, s.forbidBounceBack)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupActor(ctx, req.ToActorID, "Recipient"); err != nil {
		return nil, err
	}

	if err := s.persistForward(ctx, tenantID, node, expected, child, func(fresh *routing.RoutingNode) error {
		return fresh.CheckForward(actorID)
	}); err != nil {
		return nil, err
	}
	return &ForwardResponse{
		Parent: ToNodeResponse(node),
		Child:  ToNodeResponse(child),
	}, nil
}

// MarkRead moves a pending node to READ
func (s *RoutingService) MarkRead(ctx context.Context, tenantID, nodeID, actorID uuid.UUID) (*NodeResponse, error) {
	return s.mutate(ctx, OpMarkRead, tenantID, nodeID, actorID, func(n *routing.RoutingNode) error {
		return n.MarkRead(actorID)
	})
}

// StartProcessing moves a read node to IN_PROGRESS
func (s *RoutingService) StartProcessing(ctx context.Context, tenantID, nodeID, actorID uuid.UUID) (*NodeResponse, error) {
	return s.mutate(ctx, OpStartProcessing, tenantID, nodeID, actorID, func(n *routing.RoutingNode) error {
		return n.StartProcessing(actorID)
	})
}

// Complete closes a node as COMPLETED
func (s *RoutingService) Complete(ctx context.Context, tenantID, nodeID, actorID uuid.UUID) (*NodeResponse, error) {
	return s.mutate(ctx, OpComplete, tenantID, nodeID, actorID, func(n *routing.RoutingNode) error {
		return n.Complete(actorID)
	})
}

// =============================================================================
// Internals
// =============================================================================

// mutate runs a single-node transition: load, apply, compare-and-set
func (s *RoutingService) mutate(
	ctx context.Context,
	op string,
	tenantID, nodeID, actorID uuid.UUID,
	apply func(*routing.RoutingNode) error,
) (resp *NodeResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", op,
		telemetry.SpanAttrNodeID, nodeID,
		telemetry.SpanAttrActorID, actorID,
	)
	defer span.End()
	defer s.observe(ctx, op, time.Now(), &err)
	defer func() { telemetry.RecordError(span, err) }()

	node, err := s.loadNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}
	expected := node.Expected()
	if err := apply(node); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, node, expected); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, s.resolveConflict(ctx, tenantID, nodeID, apply)
		}
		return nil, fmt.Errorf("failed to update routing node: %w", err)
	}

	s.publishEvents(ctx, node)
	s.logger.Info("Routing node transitioned",
		zap.String("operation", op),
		zap.String("node_id", node.ID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("from_status", expected.Status.String()),
		zap.String("to_status", node.Status.String()),
		zap.Int("version", node.Version),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrStatus, node.Status.String())

	r := ToNodeResponse(node)
	return &r, nil
}

// persistForward writes the parent transition and child insert atomically.
// recheck re-evaluates the operation against a freshly loaded parent when the
// compare-and-set loses.
func (s *RoutingService) persistForward(
	ctx context.Context,
	tenantID uuid.UUID,
	parent *routing.RoutingNode,
	expected routing.ExpectedState,
	child *routing.RoutingNode,
	recheck func(*routing.RoutingNode) error,
) error {
	if err := s.repo.Forward(ctx, parent, expected, child); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return s.resolveConflict(ctx, tenantID, parent.ID, recheck)
		}
		return fmt.Errorf("failed to forward routing node: %w", err)
	}

	s.publishEvents(ctx, parent, child)
	s.logger.Info("Routing node forwarded",
		zap.String("node_id", parent.ID.String()),
		zap.String("child_node_id", child.ID.String()),
		zap.String("document_id", child.DocumentID.String()),
		zap.String("from_actor_id", child.FromActorID.String()),
		zap.String("to_actor_id", child.ToActorID.String()),
		zap.Int("level", child.Level),
	)
	return nil
}

// resolveConflict reloads the node after a lost compare-and-set. If the
// operation is now illegal the domain error is returned as is; if it would
// still be legal only the version moved, so the caller may retry.
func (s *RoutingService) resolveConflict(
	ctx context.Context,
	tenantID, nodeID uuid.UUID,
	recheck func(*routing.RoutingNode) error,
) error {
	fresh, err := s.loadNode(ctx, tenantID, nodeID)
	if err != nil {
		return err
	}
	if err := recheck(fresh); err != nil {
		s.logger.Debug("Lost race resolved to domain error",
			zap.String("node_id", nodeID.String()),
			zap.String("status", fresh.Status.String()),
			zap.String("code", shared.ErrorCode(err)),
		)
		return err
	}
	return shared.NewDomainError(routing.CodeConflictRetry,
		"Disposition was modified concurrently, reload and retry")
}

func forwardDenied(actor *routing.Actor) error {
	return shared.NewDomainError(routing.CodeForbidden,
		fmt.Sprintf("Role %q is not allowed to forward dispositions", actor.Role))
}

func (s *RoutingService) loadNode(ctx context.Context, tenantID, nodeID uuid.UUID) (*routing.RoutingNode, error) {
	node, err := s.repo.FindByID(ctx, tenantID, nodeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(routing.CodeNotFound, "Disposition not found")
		}
		return nil, fmt.Errorf("failed to load routing node: %w", err)
	}
	return node, nil
}

func (s *RoutingService) lookupActor(ctx context.Context, actorID uuid.UUID, role string) (*routing.Actor, error) {
	actor, err := s.directory.GetActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(routing.CodeNotFound, role+" not found in directory")
		}
		return nil, fmt.Errorf("failed to resolve actor: %w", err)
	}
	return actor, nil
}

func (s *RoutingService) ensureDocument(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError(routing.CodeNotFound, "Document not found")
		}
		return fmt.Errorf("failed to load document: %w", err)
	}
	return nil
}

// publishEvents hands committed events to the publisher. Publishing never
// fails the operation; the state change is already durable.
func (s *RoutingService) publishEvents(ctx context.Context, nodes ...*routing.RoutingNode) {
	for _, node := range nodes {
		if s.eventPublisher != nil {
			if err := s.eventPublisher.Publish(ctx, node.GetDomainEvents()...); err != nil {
				s.logger.Warn("Failed to publish routing events",
					zap.String("node_id", node.ID.String()),
					zap.Error(err),
				)
			}
		}
		node.ClearDomainEvents()
	}
}

func (s *RoutingService) observe(ctx context.Context, op string, start time.Time, errp *error) {
	outcome := telemetry.OutcomeSuccess
	if *errp != nil {
		if code := shared.ErrorCode(*errp); code != "" {
			outcome = code
		} else {
			outcome = telemetry.OutcomeFailed
		}
	}
	s.metrics.RecordOperation(ctx, op, outcome, time.Since(start))
}
