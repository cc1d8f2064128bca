package changeover

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError rejects a write before any row is touched: a minutes
// value outside its range, a missing identifier, or a same-line copy.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// validationErrorFrom converts a validator error into the engine's
// taxonomy, keeping the first offending field.
func validationErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return newValidationError(fe.Field(), "is required")
	case "min":
		return newValidationError(fe.Field(), "must be at least %s", fe.Param())
	case "max":
		return newValidationError(fe.Field(), "must be at most %s", fe.Param())
	}
	return newValidationError(fe.Field(), "failed %q validation", fe.Tag())
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = v
	return true
}

// IntegrityError wraps a failure inside a multi-row transaction after the
// transaction has been rolled back. The caller sees one error and no
// partial result.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s aborted: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
