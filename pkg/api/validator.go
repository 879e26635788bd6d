package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidator adapts go-playground/validator to echo's Validator
// interface, translating field errors into a single human-readable message
// (grounded on the pack's gin+validator bindJSON translation pattern).
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (rv *requestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				msgs = append(msgs, fmt.Sprintf("%s is required", field))
			case "min":
				msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
			case "max":
				msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
			default:
				msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
			}
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
