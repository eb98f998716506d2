package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the per-call vision failure modes. The batch executor
// branches on these with errors.Is; everything else is a plain transport error
// surfaced verbatim.
var (
	// ErrNoVisionBackend means neither the standard API key nor a custom
	// endpoint is configured. Fatal for the job, surfaced before any
	// processing starts.
	ErrNoVisionBackend = errors.New("no vision backend configured")

	// ErrPayloadTooLarge means the transport rejected the request size.
	// The batch executor reacts by splitting, never by resending as-is.
	ErrPayloadTooLarge = errors.New("request payload too large")

	// ErrUnauthenticated means the credential was missing or rejected.
	// Fails fast, no retry.
	ErrUnauthenticated = errors.New("vision backend rejected credentials")
)

// VideoUnreadableError means the video container could not be opened.
type VideoUnreadableError struct {
	Path string
	Err  error
}

func (e *VideoUnreadableError) Error() string {
	return fmt.Sprintf("video unreadable: %s: %v", e.Path, e.Err)
}

func (e *VideoUnreadableError) Unwrap() error { return e.Err }

// PromptFormatError means the prompt template is corrupted (malformed
// placeholder). Fatal for the job: a template problem, not a data problem.
type PromptFormatError struct {
	Reason string
}

func (e *PromptFormatError) Error() string {
	return fmt.Sprintf("prompt format error: %s", e.Reason)
}

// ResponseParseError means a model response could not be decoded even after
// all repair passes. Preview carries at most previewLimit characters of the
// offending text so error messages stay bounded.
type ResponseParseError struct {
	Preview string
	Err     error
}

const previewLimit = 200

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("unparseable model response: %v (preview: %s)", e.Err, e.Preview)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// NewResponseParseError truncates raw to the preview limit before wrapping.
func NewResponseParseError(raw string, err error) *ResponseParseError {
	if len(raw) > previewLimit {
		raw = raw[:previewLimit] + "..."
	}
	return &ResponseParseError{Preview: raw, Err: err}
}
