package routing

import (
	"errors"
	"fmt"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the routing tags (instruction_kind, node_status) to
// v. The HTTP layer calls it on gin's engine so binding tags can use them too.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("instruction_kind", func(fl validator.FieldLevel) bool {
		return routing.InstructionKind(fl.Field().String()).IsValid()
	}); err != nil {
		return fmt.Errorf("failed to register instruction_kind validator: %w", err)
	}
	if err := v.RegisterValidation("node_status", func(fl validator.FieldLevel) bool {
		return routing.NodeStatus(fl.Field().String()).IsValid()
	}); err != nil {
		return fmt.Errorf("failed to register node_status validator: %w", err)
	}
	return nil
}

// NewValidator returns a validator with the routing tags registered
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func
	_ = RegisterValidators(v)
	return v
}

// validationError converts validator output into a VALIDATION_ERROR naming
// the first offending field
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return shared.NewDomainError(routing.CodeValidation,
			fmt.Sprintf("Field %s failed validation: %s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError(routing.CodeValidation, err.Error())
}
