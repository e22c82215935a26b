package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrRequestTimeout = errors.New("request timeout")
	ErrUpstream       = errors.New("upstream request failed")

	// Auth-related errors
	ErrAuthDisabled = errors.New("admin token secret is not configured")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// UpstreamError is a tester request that never produced a response. Timing
// is the elapsed time in milliseconds; it unwraps to ErrRequestTimeout or
// ErrUpstream.
type UpstreamError struct {
	Message string
	Timing  int64
	kind    error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.kind
}

// InputError is a rejected request with a message meant for the caller.
// It matches ErrInvalidInput.
type InputError struct {
	Message string
}

func invalidInput(format string, args ...any) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
