package domain

import (
	"errors"
	"fmt"
)

// Error codes for the failure taxonomy. Unavailable is always non-fatal and
// triggers the next tier down; transient I/O is retryable and surfaced to the
// caller with resumable state already persisted.
const (
	ErrCodeUnavailable    = "ENGINE_UNAVAILABLE"
	ErrCodeTransferActive = "TRANSFER_ACTIVE"
	ErrCodeTransientIO    = "TRANSIENT_IO"
	ErrCodeInvalidInput   = "INVALID_INPUT"
)

// Sentinel errors matched with errors.Is across package boundaries.
var (
	// ErrUnavailable means a required runtime or artifact is missing.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrTransferActive means another acquisition for the same artifact is
	// already in flight.
	ErrTransferActive = errors.New("transfer already active for artifact")
)

// PipelineError is a standardized error carrying the taxonomy code.
type PipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewTransientIOError wraps a network or disk failure during acquisition or
// model load.
func NewTransientIOError(message string, err error) *PipelineError {
	return &PipelineError{Code: ErrCodeTransientIO, Message: message, Err: err}
}

// NewInvalidInputError reports a request rejected before entering the
// pipeline.
func NewInvalidInputError(message string) *PipelineError {
	return &PipelineError{Code: ErrCodeInvalidInput, Message: message}
}

// IsUnavailable reports whether err means a tier should be skipped rather
// than treated as a failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
