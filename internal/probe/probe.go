// Package probe defines the single request→response primitive of the
// harness: a Probe describes one outbound HTTP call and its expected
// outcome, and a Result records what actually happened.
package probe

import "time"

// RawBodyKey is the reserved key under which a non-JSON response body is
// stored in Result.Body.
const RawBodyKey = "_raw"

// ErrorKind classifies a failed (or skipped) probe by behavior.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindTransport          ErrorKind = "transport"
	KindStatusMismatch     ErrorKind = "status_mismatch"
	KindDecode             ErrorKind = "decode"
	KindShape              ErrorKind = "shape"
	KindPrecondition       ErrorKind = "precondition"
	KindWSClosedUnexpected ErrorKind = "ws_closed_unexpected"
	KindWSClosedExpected   ErrorKind = "ws_closed_expected"
)

// Multipart describes a multipart/form-data request body with exactly one
// file part plus optional text fields.
type Multipart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
	Fields      map[string]string
}

// Probe is a fully specified outbound request. Endpoint is joined to the
// harness base URL unless it is already absolute (http:// or https://).
type Probe struct {
	Name           string
	Method         string
	Endpoint       string
	ExpectedStatus int
	Body           any
	Query          map[string]string
	Headers        map[string]string
	AuthRole       string
	Multipart      *Multipart

	// RequireJSON fails the probe with a decode error when the response
	// body cannot be parsed as JSON even if the status matched.
	RequireJSON bool
}

// Result is the immutable record of one executed probe.
type Result struct {
	Name           string    `json:"name"`
	Success        bool      `json:"success"`
	Method         string    `json:"method,omitempty"`
	URL            string    `json:"url,omitempty"`
	ExpectedStatus int       `json:"expected_status,omitempty"`
	ActualStatus   int       `json:"actual_status"`
	LatencySeconds float64   `json:"latency_seconds"`
	Body           any       `json:"body,omitempty"`
	Error          string    `json:"error,omitempty"`
	Kind           ErrorKind `json:"kind,omitempty"`
	Skipped        bool      `json:"skipped,omitempty"`
}

// Skip builds a Result for a step that was never executed because a
// precondition (role, fixture, earlier required step) was not met.
func Skip(name, reason string) Result {
	return Result{
		Name:    name,
		Success: false,
		Skipped: true,
		Error:   reason,
		Kind:    KindPrecondition,
	}
}

// Fail marks an otherwise successful result as failed with the given kind
// and message. Used by shape checks that run after the HTTP exchange.
func (r Result) Fail(kind ErrorKind, msg string) Result {
	r.Success = false
	r.Kind = kind
	r.Error = msg
	return r
}

func (r Result) withLatency(start time.Time) Result {
	r.LatencySeconds = time.Since(start).Seconds()
	return r
}
