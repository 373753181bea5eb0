package handler

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/disposisi/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Health statuses
const (
	HealthOK       = "ok"
	HealthDegraded = "unavailable"
)

// HealthCheck probes one dependency. It should honor ctx.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a health handler. Each readiness check gets
// timeout to answer.
func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
	}
}

// AddCheck registers a named readiness check
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RegisterRoutes mounts /health on the engine root
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live reports that the process is serving
//
//	GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, dto.HealthResponse{Status: HealthOK})
}

// Ready runs every registered check and answers 503 if any fails
//
//	GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()
	names := slices.Sorted(maps.Keys(checks))

	resp := dto.HealthResponse{Status: HealthOK, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := checks[name](ctx)
		cancel()

		if err != nil {
			resp.Status = HealthDegraded
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = HealthOK
	}

	if resp.Status != HealthOK {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
