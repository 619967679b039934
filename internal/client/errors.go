package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoConnection - the request never reached the backend.
	ErrNoConnection = errors.New("no connection")
	// ErrTimeout - the request reached out but the response never came in time.
	ErrTimeout = errors.New("request timeout")
	// ErrCancelled - the request context was cancelled mid-flight.
	ErrCancelled = errors.New("request cancelled")
	// ErrUnauthorized - the session is invalid even after a token refresh.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-401 HTTP error response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%d]: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// categorizeTransportErr maps an error coming out of http.Client.Do to
// one of the typed transport errors, so callers can branch on them
// without digging through net internals.
func categorizeTransportErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNoConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrNoConnection
	}

	return err
}
