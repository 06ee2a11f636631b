package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is returned when a provider responds with a non-200 status.
// It carries the status code so callers can distinguish transient failures
// (rate limits, server errors) from permanent ones (auth, bad request).
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// IsTransient reports whether an oracle or embedding call failed in a way
// worth retrying: timeouts, rate limits (429), server errors (5xx), and
// network-level failures. Malformed responses and client errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
