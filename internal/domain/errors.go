package domain

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned by platforms when a source refuses access.
var ErrPermissionDenied = errors.New("permission denied")

// SourceUnreadableError means one source could not be read; the run continues.
type SourceUnreadableError struct {
	Source string
	Err    error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("source %q unreadable: %v", e.Source, e.Err)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Err }

// Denied reports whether the failure was an access denial.
func (e *SourceUnreadableError) Denied() bool {
	return errors.Is(e.Err, ErrPermissionDenied)
}

// SummarizeError means the summarization service failed for one unit.
type SummarizeError struct {
	Provenance string
	Err        error
}

func (e *SummarizeError) Error() string {
	return fmt.Sprintf("summarize %q: %v", e.Provenance, e.Err)
}

func (e *SummarizeError) Unwrap() error { return e.Err }

// SinkDeliveryError means a sink rejected one chunk of one report.
type SinkDeliveryError struct {
	Sink       string
	Provenance string
	Chunk      int
	Err        error
}

func (e *SinkDeliveryError) Error() string {
	return fmt.Sprintf("deliver %q to %s (chunk %d): %v", e.Provenance, e.Sink, e.Chunk+1, e.Err)
}

func (e *SinkDeliveryError) Unwrap() error { return e.Err }

// ConfigurationError is fatal and raised before any I/O happens.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// PublishFatalError means the document sink could not push; the run aborts
// once every other sink has been attempted.
type PublishFatalError struct {
	Err error
}

func (e *PublishFatalError) Error() string {
	return fmt.Sprintf("publish document: %v", e.Err)
}

func (e *PublishFatalError) Unwrap() error { return e.Err }
