// Package edgetypes defines the shared data types for BytEdge.
// This file contains the error taxonomy surfaced by the conversation router.
package edgetypes

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when the user message is empty after trimming whitespace.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrUnknownAgent is returned when an agent id is not present in the registry.
	ErrUnknownAgent = errors.New("unknown agent type")

	// ErrGenerationFailed matches every *GenerationError.
	ErrGenerationFailed = errors.New("failed to generate response")

	// ErrSessionCorruption reports a violated session invariant. It should never be observed.
	ErrSessionCorruption = errors.New("session corruption")
)

// GenerationError wraps an upstream generation failure: transport error, quota,
// empty output or timeout.
type GenerationError struct {
	Cause error
}

// NewGenerationError wraps cause as a GenerationError.
func NewGenerationError(cause error) *GenerationError {
	return &GenerationError{Cause: cause}
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return ErrGenerationFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrGenerationFailed.Error(), e.Cause)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// IsClientError reports whether err is caused by invalid caller input rather than an upstream failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrUnknownAgent)
}
