package middleware

import (
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/logger"
	"github.com/disposisi/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Tenant context key and header
const (
	TenantIDKey  = "tenant_id"
	TenantHeader = "X-Tenant-ID"
)

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// Default is used when neither the token nor the header names a tenant
	Default uuid.UUID
	// SkipPaths are served without a tenant
	SkipPaths []string
}

// DefaultTenantConfig returns the single-agency configuration
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		Default:   shared.DefaultTenantID,
		SkipPaths: []string{"/health"},
	}
}

// Tenant resolves the tenant of the request. Extraction order is the token's
// tenant_id claim, then X-Tenant-ID, then the configured default. It must run
// after ActorAuth.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	if cfg.Default == uuid.Nil {
		cfg.Default = shared.DefaultTenantID
	}

	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		raw := c.GetString(JWTTenantIDKey)
		if raw == "" {
			raw = c.GetHeader(TenantHeader)
		}

		tenantID := cfg.Default
		if raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil || parsed == uuid.Nil {
				abortWithError(c, dto.ErrCodeBadRequest, "Invalid tenant ID format")
				return
			}
			tenantID = parsed
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant, or the default tenant
// when the middleware did not run
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return shared.DefaultTenantID
}
