package scorer

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
)

// IsTransient reports whether err is worth retrying and counts against the breaker:
// timeouts, connection failures and 5xx replies.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// attemptResult labels a single attempt for metrics.
func attemptResult(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &se) && se.StatusCode >= 500:
		return "server_error"
	case errors.As(err, &se), errors.Is(err, ErrMalformedResponse):
		return "rejected"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "connection_error"
	}
}

// toDomainError maps the final error of a resilient call onto the domain taxonomy.
func toDomainError(err error) error {
	var se *StatusError
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return &domain.DownstreamError{Kind: domain.DownstreamUnavailable, Err: err}
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &domain.DownstreamError{Kind: domain.DownstreamTimeout, Err: err}
	case errors.As(err, &se):
		return &domain.DownstreamError{
			Kind:       domain.DownstreamRejected,
			StatusCode: se.StatusCode,
			Body:       se.Body,
			Err:        err,
		}
	case errors.Is(err, ErrMalformedResponse):
		return &domain.DownstreamError{Kind: domain.DownstreamRejected, Err: err}
	default:
		return &domain.DownstreamError{Kind: domain.DownstreamUnavailable, Err: err}
	}
}
