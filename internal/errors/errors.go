// Package errors defines the typed error hierarchy surfaced by the channel
// subsystem through delegate callbacks. The channel itself never returns
// these synchronously from a public entry point.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a ChannelError into one of the error categories from
// the channel subsystem's error handling design.
type Kind string

const (
	KindFilteredOut          Kind = "FILTERED_OUT"
	KindStoreSaveFailed      Kind = "STORE_SAVE_FAILED"
	KindIngestionNonRecover  Kind = "INGESTION_NON_RECOVERABLE"
	KindIngestionRecoverable Kind = "INGESTION_RECOVERABLE"
	KindCancelled            Kind = "CANCELLED"
	KindFatalIngestion       Kind = "FATAL_INGESTION"
)

// ChannelError is the channel subsystem's typed error, modeled on the
// gateway's APIError: a stable Code plus a human Message, with an
// optional wrapped Cause for errors.Is/errors.As chaining.
type ChannelError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *ChannelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ChannelError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ChannelError with the same Kind and Code,
// which is how callers match against the predefined sentinels below
// without caring about the specific Message or Cause.
func (e *ChannelError) Is(target error) bool {
	var other *ChannelError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Code == other.Code
}

// New builds a ChannelError of the given kind with no wrapped cause.
func New(kind Kind, code, message string) *ChannelError {
	return &ChannelError{Kind: kind, Code: code, Message: message}
}

// Wrap builds a ChannelError of the given kind wrapping cause.
func Wrap(kind Kind, code, message string, cause error) *ChannelError {
	return &ChannelError{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Predefined sentinels, one per error kind in the design.
var (
	ErrFilteredOut = New(KindFilteredOut, "FILTERED_OUT",
		"record vetoed by a delegate filter")

	ErrStoreSaveFailed = New(KindStoreSaveFailed, "STORE_SAVE_FAILED",
		"persistent store refused to save the record")

	ErrIngestionNonRecoverable = New(KindIngestionNonRecover, "INGESTION_NON_RECOVERABLE",
		"ingestion reported a non-recoverable failure for the batch")

	ErrIngestionRecoverable = New(KindIngestionRecoverable, "INGESTION_RECOVERABLE",
		"ingestion reported a transient failure for the batch")

	ErrCancelled = New(KindCancelled, "CANCELLED",
		"batch was cancelled because the channel was disabled with data wipe")

	ErrFatalIngestion = New(KindFatalIngestion, "FATAL_INGESTION",
		"ingestion reported a fatal error; the channel has been disabled")
)

// WithMessage returns a copy of a sentinel with a more specific message,
// following the gateway's NewAPIError(base, customMsg) idiom.
func WithMessage(base *ChannelError, message string) *ChannelError {
	return &ChannelError{Kind: base.Kind, Code: base.Code, Message: message, Cause: base.Cause}
}

// WithCause returns a copy of a sentinel wrapping cause.
func WithCause(base *ChannelError, cause error) *ChannelError {
	return &ChannelError{Kind: base.Kind, Code: base.Code, Message: base.Message, Cause: cause}
}
