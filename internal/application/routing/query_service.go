package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueryService answers read-only questions about dispositions. It reads from
// the same store the RoutingService writes to, so a caller sees its own
// writes immediately.
type QueryService struct {
	repo      routing.RoutingNodeRepository
	directory routing.DirectoryProvider
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(repo routing.RoutingNodeRepository, directory routing.DirectoryProvider, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		repo:      repo,
		directory: directory,
		validate:  NewValidator(),
		logger:    logger,
	}
}

// GetNode returns a single node
func (s *QueryService) GetNode(ctx context.Context, tenantID, nodeID uuid.UUID) (*NodeResponse, error) {
	node, err := s.findNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}
	resp := ToNodeResponse(node)
	return &resp, nil
}

// ChainForDocument returns every node of a document ordered by level, then
// creation time. A document with no dispositions yields an empty slice.
func (s *QueryService) ChainForDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]NodeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "chain_for_document",
		telemetry.SpanAttrDocumentID, documentID)
	defer span.End()

	nodes, err := s.repo.FindByDocument(ctx, tenantID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load document chain: %w", err)
	}
	return ToNodeResponses(nodes), nil
}

// InboxForActor returns a page of the nodes addressed to actorID, newest first
func (s *QueryService) InboxForActor(ctx context.Context, tenantID, actorID uuid.UUID, query InboxQuery) (*shared.Paginated[NodeResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "inbox_for_actor",
		telemetry.SpanAttrActorID, actorID)
	defer span.End()

	if err := s.validate.Struct(query); err != nil {
		return nil, validationError(err)
	}

	page, pageSize := shared.NormalizePage(query.Page, query.PageSize)
	filter := routing.InboxFilter{Page: page, PageSize: pageSize}
	for _, st := range query.Statuses {
		filter.Statuses = append(filter.Statuses, routing.NodeStatus(st))
	}

	nodes, total, err := s.repo.FindByRecipient(ctx, tenantID, actorID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	result := shared.NewPaginated(ToNodeResponses(nodes), total, page, pageSize)
	return &result, nil
}

// AvailableForwardTargets lists the actors a node may be forwarded to: the
// whole directory minus the node's sender and recipient
func (s *QueryService) AvailableForwardTargets(ctx context.Context, tenantID, nodeID uuid.UUID) ([]ActorResponse, error) {
	node, err := s.findNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	actors, err := s.directory.ListActors(ctx, []uuid.UUID{node.FromActorID, node.ToActorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list forward targets: %w", err)
	}
	out := make([]ActorResponse, len(actors))
	for i, a := range actors {
		out[i] = ToActorResponse(a)
	}
	return out, nil
}

func (s *QueryService) findNode(ctx context.Context, tenantID, nodeID uuid.UUID) (*routing.RoutingNode, error) {
	node, err := s.repo.FindByID(ctx, tenantID, nodeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(routing.CodeNotFound, "Disposition not found")
		}
		return nil, fmt.Errorf("failed to load routing node: %w", err)
	}
	return node, nil
}
