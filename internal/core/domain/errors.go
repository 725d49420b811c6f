package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrDownstream is the parent of every scorer failure.
	ErrDownstream            = errors.New("downstream error")
	ErrDownstreamTimeout     = errors.New("downstream timeout")
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
	ErrDownstreamRejected    = errors.New("downstream rejected")

	// ErrPersistence is logged by write paths and never surfaced to prediction callers.
	ErrPersistence = errors.New("persistence error")

	// ErrMalformedInput aborts a whole batch before any row runs.
	ErrMalformedInput = errors.New("malformed input")

	// ErrBatchInProgress is returned when another upload holds the same batch ID.
	ErrBatchInProgress = errors.New("batch already in progress")
)

// ValidationError carries a human-readable reason for a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DownstreamKind narrows a DownstreamError.
type DownstreamKind int

const (
	DownstreamUnavailable DownstreamKind = iota
	DownstreamTimeout
	DownstreamRejected
)

func (k DownstreamKind) String() string {
	switch k {
	case DownstreamTimeout:
		return "timeout"
	case DownstreamRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

func (k DownstreamKind) sentinel() error {
	switch k {
	case DownstreamTimeout:
		return ErrDownstreamTimeout
	case DownstreamRejected:
		return ErrDownstreamRejected
	default:
		return ErrDownstreamUnavailable
	}
}

// DownstreamError is a categorized scorer failure.
type DownstreamError struct {
	Kind       DownstreamKind
	StatusCode int    // set for rejected responses
	Body       string // remote error body, surfaced verbatim
	Err        error
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Kind == DownstreamRejected && e.StatusCode != 0:
		return fmt.Sprintf("scorer rejected request: status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("scorer %s: %v", e.Kind, e.Err)
	default:
		return "scorer " + e.Kind.String()
	}
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

func (e *DownstreamError) Is(target error) bool {
	return target == ErrDownstream || target == e.Kind.sentinel()
}

// ErrorKind returns a short label for metrics.
func ErrorKind(err error) string {
	var de *DownstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.As(err, &de):
		return "downstream_" + de.Kind.String()
	default:
		return "internal"
	}
}
