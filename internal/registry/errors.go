package registry

import (
	"errors"
	"strings"
)

var (
	ErrNotFound  = errors.New("endpoint not found")
	ErrCapacity  = errors.New("endpoint capacity reached")
	ErrDuplicate = errors.New("endpoint method and path already registered")
)

// ValidationError carries every message collected while validating a
// mutation. Capacity and duplicate rejections unwrap to their sentinel.
type ValidationError struct {
	Messages []string
	cause    error
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func newValidationError(cause error, messages ...string) *ValidationError {
	return &ValidationError{Messages: messages, cause: cause}
}
