// Package router assembles the gin engine: the global middleware chain, the
// health probes and the versioned API group.
package router

import (
	"fmt"

	approuting "github.com/disposisi/backend/internal/application/routing"
	"github.com/disposisi/backend/internal/infrastructure/logger"
	"github.com/disposisi/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithGroupMiddleware adds middleware that runs for API routes only
func WithGroupMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/"+r.apiVersion, r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the global middleware chain
type EngineConfig struct {
	ServiceName    string
	TrustedProxies []string
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	// Tracing wraps requests in otelgin spans
	Tracing bool
	// Meter, when set, records HTTP request metrics
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewEngine builds a gin engine with the global middleware chain. Order:
// request ID, tracing, access log, recovery, metrics, security headers,
// CORS, body limit.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if err := middleware.SetupValidator(approuting.RegisterValidators); err != nil {
		return nil, fmt.Errorf("failed to set up validator: %w", err)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	engine.Use(middleware.RequestID())
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName), middleware.SpanErrorMarker())
	}
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		engine.Use(metrics)
	}
	engine.Use(
		middleware.Secure(),
		middleware.CORS(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	return engine, nil
}

// APIMiddleware returns the chain for authenticated API routes
func APIMiddleware(auth middleware.AuthConfig, tenant middleware.TenantConfig) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.ActorAuth(auth),
		middleware.Tenant(tenant),
		middleware.SpanAttributes(),
		middleware.Profiling(),
	}
}
