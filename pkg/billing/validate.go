package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError describes one field that breaks a record invariant.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is returned by Validate when one or more invariants fail.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "invalid billing record: " + strings.Join(parts, "; ")
}

// Validate checks the normalized invariants: non-negative money, a billing
// month in range and a well-formed unit identifier.
func (r *Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Field:   strings.TrimPrefix(e.Namespace(), "Record."),
			Message: formatValidationError(e),
			Value:   e.Value(),
		})
	}
	return out
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", e.Param())
	case "number":
		return "must contain only digits"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
