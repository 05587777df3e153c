package xbrl

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/xbrlmcp/resilience"
)

var (
	// ErrNoHandle is returned when a client is built without a handle.
	ErrNoHandle = errors.New("xbrl: no authenticated handle")

	// ErrDecode is returned when the API response is not the expected JSON.
	ErrDecode = errors.New("xbrl: invalid response")
)

// APIError is a non-2xx response from the data API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("xbrl: api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("xbrl: api returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is worth retrying: network failures,
// attempt timeouts, 5xx and 429 responses. Caller mistakes such as 400, 401
// and 404 are not, and neither is the caller's context ending, so a client
// that disconnects never counts against the shared breaker.
func IsTransient(err error) bool {
	if err == nil || resilience.IsPermanent(err) {
		return false
	}
	if errors.Is(err, resilience.ErrTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrDecode) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
