package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes translation failures
type Kind string

const (
	KindInvalidQueryFormat     Kind = "invalid_query_format"
	KindColumnNotFound         Kind = "column_not_found"
	KindNoJoinKey              Kind = "no_join_key"
	KindUnsupportedQueryFormat Kind = "unsupported_query_format"
	KindInvalidPipelineFormat  Kind = "invalid_pipeline_format"
	KindGenerationFailed       Kind = "generation_failed"
	KindValidation             Kind = "validation"
	KindConfig                 Kind = "config"
	KindInternal               Kind = "internal"
)

// Error is a structured error carrying a kind and optional suggestions
type Error struct {
	Kind        Kind
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so sentinel values work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// WithSuggestion adds a hint for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Sentinels for errors.Is checks
var (
	ErrInvalidQueryFormat     = &Error{Kind: KindInvalidQueryFormat}
	ErrColumnNotFound         = &Error{Kind: KindColumnNotFound}
	ErrNoJoinKey              = &Error{Kind: KindNoJoinKey}
	ErrUnsupportedQueryFormat = &Error{Kind: KindUnsupportedQueryFormat}
	ErrInvalidPipelineFormat  = &Error{Kind: KindInvalidPipelineFormat}
	ErrGenerationFailed       = &Error{Kind: KindGenerationFailed}
)

// ============================================================================
// INSPECTION
// ============================================================================

// IsKind reports whether err (or anything it wraps) is an *Error of kind
func IsKind(err error, kind Kind) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal
func KindOf(err error) Kind {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind
	}
	return KindInternal
}

// Suggestions collects hints along the whole chain
func Suggestions(err error) []string {
	var out []string
	for err != nil {
		if e, ok := err.(*Error); ok {
			out = append(out, e.Suggestions...)
		}
		err = errors.Unwrap(err)
	}
	return out
}
