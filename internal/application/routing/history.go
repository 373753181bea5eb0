package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentLookups bounds parallel directory calls per history
const maxConcurrentLookups = 8

// HistoryAssembler renders the disposition history of a document: every hop
// in parent-before-child order with sender and recipient resolved to
// display names.
type HistoryAssembler struct {
	repo      routing.RoutingNodeRepository
	directory routing.DirectoryProvider
	documents routing.DocumentStore
	logger    *zap.Logger
}

// NewHistoryAssembler creates a new HistoryAssembler
func NewHistoryAssembler(
	repo routing.RoutingNodeRepository,
	directory routing.DirectoryProvider,
	documents routing.DocumentStore,
	logger *zap.Logger,
) *HistoryAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryAssembler{
		repo:      repo,
		directory: directory,
		documents: documents,
		logger:    logger,
	}
}

// AssembleHistory returns the history of a document. A document without any
// disposition is NOT_FOUND. Actors missing from the directory are shown by ID.
func (h *HistoryAssembler) AssembleHistory(ctx context.Context, tenantID, documentID uuid.UUID) (*HistoryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "assemble_history",
		telemetry.SpanAttrDocumentID, documentID)
	defer span.End()

	nodes, err := h.repo.FindByDocument(ctx, tenantID, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load document chain: %w", err)
	}
	if len(nodes) == 0 {
		return nil, shared.NewDomainError(routing.CodeNotFound, "No disposition history for document")
	}

	chain := routing.NewChain(nodes)
	if err := chain.Verify(); err != nil {
		h.logger.Warn("Disposition chain is inconsistent",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
	}

	doc, err := h.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	parties, err := h.resolveParties(ctx, nodes)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, chain.Len())
	chain.Walk(func(n *routing.RoutingNode, depth int) {
		entries = append(entries, HistoryEntry{
			NodeID:           n.ID,
			ParentNodeID:     n.ParentNodeID,
			Level:            n.Level,
			Depth:            depth,
			From:             parties[n.FromActorID],
			To:               parties[n.ToActorID],
			InstructionKind:  n.InstructionKind.String(),
			InstructionLabel: n.InstructionKind.DisplayName(),
			Note:             n.Note,
			Status:           n.Status.String(),
			StatusLabel:      n.Status.DisplayName(),
			CreatedAt:        n.CreatedAt,
			ReadAt:           n.ReadAt,
			CompletedAt:      n.CompletedAt,
		})
	})

	return &HistoryResponse{
		Document: toDocumentSummary(doc),
		Entries:  entries,
		Branches: chain.Branches(),
	}, nil
}

// loadDocument returns nil without error when the store has no record; the
// history itself is still meaningful without the header.
func (h *HistoryAssembler) loadDocument(ctx context.Context, documentID uuid.UUID) (*routing.Document, error) {
	doc, err := h.documents.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

// resolveParties looks up every distinct actor of the chain concurrently.
// Lookup failures degrade to the raw ID; only cancellation aborts.
func (h *HistoryAssembler) resolveParties(ctx context.Context, nodes []routing.RoutingNode) (map[uuid.UUID]PartyResponse, error) {
	ids := make(map[uuid.UUID]struct{})
	for i := range nodes {
		ids[nodes[i].FromActorID] = struct{}{}
		ids[nodes[i].ToActorID] = struct{}{}
	}

	var mu sync.Mutex
	parties := make(map[uuid.UUID]PartyResponse, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for id := range ids {
		g.Go(func() error {
			party := PartyResponse{ID: id, DisplayName: id.String()}
			actor, err := h.directory.GetActor(gctx, id)
			switch {
			case err == nil:
				party.DisplayName = actor.DisplayName
				party.Role = actor.Role
				party.Resolved = true
			case gctx.Err() != nil:
				return gctx.Err()
			case !errors.Is(err, shared.ErrNotFound):
				h.logger.Warn("Directory lookup failed, showing raw actor ID",
					zap.String("actor_id", id.String()),
					zap.Error(err),
				)
			}
			mu.Lock()
			parties[id] = party
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve actors: %w", err)
	}
	return parties, nil
}
