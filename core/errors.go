// core/errors.go
package core

import "fmt"

// InvalidRatingError reports a scoring input outside its domain.
type InvalidRatingError struct {
	Field string
	Value float64
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("invalid rating: %s = %g", e.Field, e.Value)
}

// ValidationError reports a lifecycle precondition violation. Always
// recoverable by the caller supplying corrected input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a mutation that referenced an unknown entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}
