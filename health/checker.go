package health

import (
	"context"
	"maps"
	"time"
)

// Status is a component's health, ordered from best to worst.
type Status int

const (
	// StatusHealthy means the component works as configured.
	StatusHealthy Status = iota
	// StatusDegraded means requests are served but some of them will fail,
	// for example while the data API circuit is open.
	StatusDegraded
	// StatusUnhealthy takes the server out of rotation.
	StatusUnhealthy
)

var statusNames = [...]string{
	StatusHealthy:   "healthy",
	StatusDegraded:  "degraded",
	StatusUnhealthy: "unhealthy",
}

// String returns the lower-case status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Worse returns the worse of s and other.
func (s Status) Worse(other Status) Status {
	if other > s {
		return other
	}
	return s
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string

	// Details is reported verbatim on the JSON endpoint.
	Details map[string]any

	// Duration and Timestamp are filled in by the Aggregator when the
	// checker leaves them zero.
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

func newResult(s Status, msg string, err error) Result {
	return Result{Status: s, Message: msg, Error: err, Timestamp: time.Now()}
}

// Healthy reports a working component.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded reports a component that serves requests with reduced success.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy reports a failed component and the error that explains it.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message, err)
}

// WithDetails returns r with details replacing any existing ones.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDetail returns r with key set, leaving r's original map untouched.
func (r Result) WithDetail(key string, value any) Result {
	details := make(map[string]any, len(r.Details)+1)
	maps.Copy(details, r.Details)
	details[key] = value
	r.Details = details
	return r
}

// Checker is one named health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc names fn as a Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string                     { return f.name }
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
