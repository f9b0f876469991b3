package api

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError marks a request that never produced a usable response:
// connection refused, DNS failure, timeout. Callers treat these as transient
// and may serve stale cached data instead of failing.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

// IsTransient reports whether err represents a recoverable network-side
// failure. Server errors count; client errors (4xx) and payload decode
// failures do not.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return false
}
