package ai

import (
	"errors"
	"fmt"
)

var (
	ErrDisabled          = errors.New("ai client disabled")
	ErrEmptyResponse     = errors.New("ai empty response")
	ErrMalformedResponse = errors.New("ai malformed response")
	ErrMissingImage      = errors.New("image with media type required")
	ErrInvalidInput      = errors.New("invalid input")
)

// Cause classifies why an adapter call failed.
type Cause int

const (
	CauseTransport Cause = iota + 1
	CauseEmpty
	CauseMalformed
	CauseInput
)

func (c Cause) String() string {
	switch c {
	case CauseTransport:
		return "transport"
	case CauseEmpty:
		return "empty_response"
	case CauseMalformed:
		return "malformed_response"
	case CauseInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Operations reported on a Failure.
const (
	OpAnalyze  = "analyze_listing"
	OpDocument = "verify_document"
	OpGeocode  = "resolve_coordinates"
	OpChat     = "chat"
)

var userMessages = map[string]string{
	OpAnalyze:  "Failed to analyze listing. The AI service may be temporarily unavailable or the input was invalid.",
	OpDocument: "Failed to verify document. The AI service may be temporarily unavailable or the image was invalid.",
	OpChat:     "Sorry, I encountered an error. Please try again.",
}

// Failure is the single error category surfaced by the adapter. Error returns the
// user-facing message; the underlying cause stays reachable through Unwrap.
type Failure struct {
	Op    string
	Cause Cause
	Err   error
}

func (f *Failure) Error() string {
	if msg, ok := userMessages[f.Op]; ok {
		return msg
	}
	return "The AI service request failed."
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(op string, err error) *Failure {
	return &Failure{Op: op, Cause: classify(err), Err: err}
}

func classify(err error) Cause {
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return CauseEmpty
	case errors.Is(err, ErrMalformedResponse):
		return CauseMalformed
	case errors.Is(err, ErrMissingImage), errors.Is(err, ErrInvalidInput):
		return CauseInput
	default:
		return CauseTransport
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
