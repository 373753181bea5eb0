// Package handler holds the gin handlers of the disposition API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/logger"
	"github.com/disposisi/backend/internal/interfaces/http/dto"
	"github.com/disposisi/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides the response helpers shared by all handlers
type BaseHandler struct{}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response with data
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with pagination metadata
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response for code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	c.JSON(dto.GetHTTPStatus(code),
		dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeUnauthorized, message)
}

// ValidationError sends a 400 VALIDATION_ERROR response with field details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		middleware.GetRequestID(c),
		details,
	))
}

// HandleError converts an error to an HTTP response. Domain errors keep their
// code and message; anything else is logged and reported as internal.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}

	_ = c.Error(err)
	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// BindJSON decodes and validates the request body into req. On failure it
// writes the response and returns false.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		h.Error(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	case errors.Is(err, io.EOF):
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is empty")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	default:
		if details := middleware.ValidationDetails(err); details != nil {
			h.ValidationError(c, details)
			return false
		}
		h.BadRequest(c, err.Error())
	}
	return false
}

// BindQuery binds and validates query parameters into req
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		if details := middleware.ValidationDetails(err); details != nil {
			h.ValidationError(c, details)
			return false
		}
		h.BadRequest(c, "Invalid query parameters")
		return false
	}
	return true
}

// PathUUID parses the named path parameter. An ID that is not a UUID cannot
// name any node or document, so it is reported as not found.
func (h *BaseHandler) PathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, dto.ErrCodeNotFound, "Resource not found")
		return uuid.Nil, false
	}
	return id, true
}

// BodyUUID parses a UUID field of an already bound request body. A value the
// binding accepted but uuid.Parse rejects is reported as a validation error
// on field.
func (h *BaseHandler) BodyUUID(c *gin.Context, field, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: field, Message: "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

// Actor returns the authenticated actor or writes a 401
func (h *BaseHandler) Actor(c *gin.Context) (uuid.UUID, bool) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return uuid.Nil, false
	}
	return actorID, true
}
