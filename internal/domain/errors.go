package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a prompt record or battle does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects bad input: missing records, kind mismatches,
// empty text. Never retried automatically.
type ValidationError struct {
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StateError rejects an operation on a battle that is not in the
// expected status. It always carries the actual status observed.
type StateError struct {
	BattleID string
	Status   string
	Expected string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("battle %s is %s, expected %s", e.BattleID, e.Status, e.Expected)
}

// IsState reports whether err is a StateError.
func IsState(err error) bool {
	var s *StateError
	return errors.As(err, &s)
}
