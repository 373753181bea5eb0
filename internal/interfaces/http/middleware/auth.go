package middleware

import (
	"errors"
	"strings"

	"github.com/disposisi/backend/internal/infrastructure/logger"
	"github.com/disposisi/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auth context keys and headers
const (
	ActorIDKey     = "actor_id"
	ActorRoleKey   = "actor_role"
	JWTClaimsKey   = "jwt_claims"
	JWTTenantIDKey = "jwt_tenant_id"

	AuthHeader   = "Authorization"
	BearerPrefix = "Bearer "
	ActorHeader  = "X-Actor-ID"
)

var (
	errMissingIdentity = errors.New("missing actor identity")
	errInvalidActor    = errors.New("invalid actor id")
)

// ActorClaims are the claims this service reads from a bearer token. Tokens
// are issued by the identity system; the actor is the subject unless
// actor_id is set.
type ActorClaims struct {
	jwt.RegisteredClaims
	ActorID  string `json:"actor_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Actor returns the authenticated actor ID
func (c *ActorClaims) Actor() (uuid.UUID, error) {
	raw := c.ActorID
	if raw == "" {
		raw = c.Subject
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errInvalidActor
	}
	return id, nil
}

// AuthConfig holds configuration for the actor authentication middleware
type AuthConfig struct {
	// Secret verifies HS256 bearer tokens
	Secret []byte
	// Issuer, when set, must match the token's iss claim
	Issuer string
	// Required rejects requests without a bearer token. When false the
	// X-Actor-ID header is accepted instead.
	Required bool
	// SkipPaths are served without authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultAuthConfig returns an AuthConfig that requires a token everywhere
// except the health endpoints
func DefaultAuthConfig(secret string) AuthConfig {
	return AuthConfig{
		Secret:    []byte(secret),
		Required:  true,
		SkipPaths: []string{"/health"},
	}
}

// ActorAuth resolves the calling actor from a bearer token, or from the
// X-Actor-ID header when tokens are optional
func ActorAuth(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		var (
			actorID uuid.UUID
			err     error
		)

		header := c.GetHeader(AuthHeader)
		switch {
		case strings.HasPrefix(header, BearerPrefix):
			var claims *ActorClaims
			claims, err = parseToken(parser, strings.TrimPrefix(header, BearerPrefix), cfg.Secret)
			if err == nil {
				actorID, err = claims.Actor()
			}
			if err == nil {
				c.Set(JWTClaimsKey, claims)
				c.Set(ActorRoleKey, claims.Role)
				if claims.TenantID != "" {
					c.Set(JWTTenantIDKey, claims.TenantID)
				}
			}
		case header != "":
			err = jwt.ErrTokenMalformed
		case cfg.Required:
			err = errMissingIdentity
		default:
			raw := c.GetHeader(ActorHeader)
			if raw == "" {
				err = errMissingIdentity
			} else if actorID, err = uuid.Parse(raw); err != nil || actorID == uuid.Nil {
				err = errInvalidActor
			}
		}

		if err != nil {
			log.Warn("Actor authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			code, message := authFailure(err)
			abortWithError(c, code, message)
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), actorID.String()))
		c.Next()
	}
}

func parseToken(parser *jwt.Parser, raw string, secret []byte) (*ActorClaims, error) {
	claims := &ActorClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func authFailure(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, errMissingIdentity):
		return dto.ErrCodeUnauthorized, "Authentication required"
	case errors.Is(err, errInvalidActor):
		return dto.ErrCodeTokenInvalid, "Actor identity is not a valid ID"
	default:
		return dto.ErrCodeTokenInvalid, "Invalid token"
	}
}

// GetActorID returns the authenticated actor
func GetActorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ActorIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetActorClaims returns the verified token claims, or nil when the actor
// came from the X-Actor-ID header
func GetActorClaims(c *gin.Context) *ActorClaims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*ActorClaims); ok {
			return claims
		}
	}
	return nil
}
