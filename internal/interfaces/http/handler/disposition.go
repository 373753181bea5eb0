package handler

import (
	"context"
	"strings"

	approuting "github.com/disposisi/backend/internal/application/routing"
	"github.com/disposisi/backend/internal/interfaces/http/dto"
	"github.com/disposisi/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DispositionHandler serves the disposition commands and queries
type DispositionHandler struct {
	BaseHandler
	commands *approuting.RoutingService
	queries  *approuting.QueryService
	history  *approuting.HistoryAssembler
}

// NewDispositionHandler creates a new DispositionHandler
func NewDispositionHandler(
	commands *approuting.RoutingService,
	queries *approuting.QueryService,
	history *approuting.HistoryAssembler,
) *DispositionHandler {
	return &DispositionHandler{
		commands: commands,
		queries:  queries,
		history:  history,
	}
}

// RegisterRoutes mounts the disposition routes on the API group
func (h *DispositionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dispositions := rg.Group("/dispositions")
	dispositions.POST("", h.Create)
	dispositions.GET("/:id", h.Get)
	dispositions.POST("/:id/read", h.MarkRead)
	dispositions.POST("/:id/start", h.StartProcessing)
	dispositions.POST("/:id/complete", h.Complete)
	dispositions.POST("/:id/forward", h.Forward)
	dispositions.GET("/:id/forward-targets", h.ForwardTargets)

	documents := rg.Group("/documents")
	documents.GET("/:id/chain", h.Chain)
	documents.GET("/:id/history", h.History)

	rg.GET("/inbox", h.Inbox)
}

// Create opens a new level-1 disposition sent by the caller
//
//	POST /api/v1/dispositions
func (h *DispositionHandler) Create(c *gin.Context) {
	actorID, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateDispositionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	documentID, ok := h.BodyUUID(c, "document_id", req.DocumentID)
	if !ok {
		return
	}
	toActorID, ok := h.BodyUUID(c, "to_actor_id", req.ToActorID)
	if !ok {
		return
	}

	node, err := h.commands.CreateNode(c.Request.Context(), middleware.GetTenantID(c), approuting.CreateNodeRequest{
		DocumentID:      documentID,
		FromActorID:     actorID,
		ToActorID:       toActorID,
		InstructionKind: req.InstructionKind,
		Note:            req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, node)
}

// Get returns one disposition
//
//	GET /api/v1/dispositions/:id
func (h *DispositionHandler) Get(c *gin.Context) {
	nodeID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	node, err := h.queries.GetNode(c.Request.Context(), middleware.GetTenantID(c), nodeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, node)
}

// MarkRead records that the recipient opened the disposition
//
//	POST /api/v1/dispositions/:id/read
func (h *DispositionHandler) MarkRead(c *gin.Context) {
	h.transition(c, h.commands.MarkRead)
}

// StartProcessing moves a read disposition into progress
//
//	POST /api/v1/dispositions/:id/start
func (h *DispositionHandler) StartProcessing(c *gin.Context) {
	h.transition(c, h.commands.StartProcessing)
}

// Complete closes the disposition
//
//	POST /api/v1/dispositions/:id/complete
func (h *DispositionHandler) Complete(c *gin.Context) {
	h.transition(c, h.commands.Complete)
}

type transitionFunc func(ctx context.Context, tenantID, nodeID, actorID uuid.UUID) (*approuting.NodeResponse, error)

func (h *DispositionHandler) transition(c *gin.Context, apply transitionFunc) {
	actorID, ok := h.Actor(c)
	if !ok {
		return
	}
	nodeID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	node, err := apply(c.Request.Context(), middleware.GetTenantID(c), nodeID, actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, node)
}

// Forward hands the disposition to the next recipient one level deeper
//
//	POST /api/v1/dispositions/:id/forward
func (h *DispositionHandler) Forward(c *gin.Context) {
	actorID, ok := h.Actor(c)
	if !ok {
		return
	}
	nodeID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ForwardDispositionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	toActorID, ok := h.BodyUUID(c, "to_actor_id", req.ToActorID)
	if !ok {
		return
	}

	result, err := h.commands.Forward(c.Request.Context(), middleware.GetTenantID(c), nodeID, actorID, approuting.ForwardRequest{
		ToActorID:       toActorID,
		InstructionKind: req.InstructionKind,
		Note:            req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ForwardTargets lists the actors the disposition may be forwarded to
//
//	GET /api/v1/dispositions/:id/forward-targets
func (h *DispositionHandler) ForwardTargets(c *gin.Context) {
	nodeID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	targets, err := h.queries.AvailableForwardTargets(c.Request.Context(), middleware.GetTenantID(c), nodeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, targets)
}

// Chain returns every disposition of a document ordered by level
//
//	GET /api/v1/documents/:id/chain
func (h *DispositionHandler) Chain(c *gin.Context) {
	documentID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	chain, err := h.queries.ChainForDocument(c.Request.Context(), middleware.GetTenantID(c), documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, chain)
}

// History returns the rendered disposition history of a document
//
//	GET /api/v1/documents/:id/history
func (h *DispositionHandler) History(c *gin.Context) {
	documentID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	history, err := h.history.AssembleHistory(c.Request.Context(), middleware.GetTenantID(c), documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// Inbox lists the dispositions addressed to the caller, newest first
//
//	GET /api/v1/inbox?status=PENDING,READ&page=1&page_size=20
func (h *DispositionHandler) Inbox(c *gin.Context) {
	actorID, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.InboxRequest
	if !h.BindQuery(c, &req) {
		return
	}

	page, err := h.queries.InboxForActor(c.Request.Context(), middleware.GetTenantID(c), actorID, approuting.InboxQuery{
		Statuses: splitStatuses(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

func splitStatuses(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
