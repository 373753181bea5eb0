package routing

import (
	"fmt"

	"github.com/disposisi/backend/internal/domain/shared"
)

// Error codes returned by the routing engine
const (
	CodeNotFound             = "NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidTarget        = "INVALID_TARGET"
	CodeParentNotForwardable = "PARENT_NOT_FORWARDABLE"
	CodeConflictRetry        = "CONFLICT_RETRY"
	CodeValidation           = "VALIDATION_ERROR"
)

// Sentinels for errors.Is matching. DomainError compares by code, so any
// error built with the same code matches these.
var (
	ErrNodeNotFound         = shared.NewDomainError(CodeNotFound, "Routing node not found")
	ErrForbidden            = shared.NewDomainError(CodeForbidden, "Actor is not allowed to perform this action")
	ErrInvalidTransition    = shared.NewDomainError(CodeInvalidTransition, "Transition not allowed from current status")
	ErrInvalidTarget        = shared.NewDomainError(CodeInvalidTarget, "Invalid disposition target")
	ErrParentNotForwardable = shared.NewDomainError(CodeParentNotForwardable, "Parent node cannot be forwarded")
	ErrConflictRetry        = shared.NewDomainError(CodeConflictRetry, "Node was modified concurrently, reload and retry")
)

func invalidTransition(from NodeStatus, op string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Cannot %s a node in status %s", op, from))
}

func forbidden(op string) *shared.DomainError {
	return shared.NewDomainError(CodeForbidden,
		fmt.Sprintf("Only the recipient of this disposition may %s it", op))
}
