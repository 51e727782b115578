package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying extraction failures.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedOutput     = errors.New("malformed model output")
)

// Error kinds as reported to callers.
const (
	KindUpstreamUnavailable = "upstream_unavailable"
	KindMalformedOutput     = "malformed_output"
)

// UpstreamError means the completion API could not be reached or did not
// produce a completion. Retrying later may succeed.
type UpstreamError struct {
	// StatusCode is the HTTP status returned by the API, 0 if none.
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUpstreamUnavailable, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstreamUnavailable, e.Err} }

// MalformedOutputError means the model answered but no JSON workflow could
// be parsed from the answer. Retrying the same prompt is unlikely to help.
type MalformedOutputError struct {
	// Content is the raw model answer.
	Content string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %v", ErrMalformedOutput, e.Err)
}

func (e *MalformedOutputError) Unwrap() []error { return []error{ErrMalformedOutput, e.Err} }

// Kind names the class of err, or "" if it is neither.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrMalformedOutput):
		return KindMalformedOutput
	default:
		return ""
	}
}

// Retryable reports whether repeating the same request could succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
