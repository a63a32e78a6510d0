// Package apperror defines the error kinds surfaced to callers of the
// screening service. Internal failures are wrapped into an *Error so that the
// transport layer can pick a status code and a short message without leaking
// provider details.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an error with its caller-visible category.
type Kind string

const (
	KindClient        Kind = "client_error"
	KindNotFound      Kind = "not_found"
	KindEmbedding     Kind = "embedding_failure"
	KindRetrieval     Kind = "retrieval_failure"
	KindGeneration    Kind = "generation_failure"
	KindParse         Kind = "parse_failure"
	KindConfiguration Kind = "configuration_error"
	KindInternal      Kind = "internal"
)

// Error carries a kind, a human-readable message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind without an underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and caller-visible message to err.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the caller-visible message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal Server Error"
}

// HTTPStatus maps a kind onto the status code used by the API layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
