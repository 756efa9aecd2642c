package mnemo

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed taxonomy of error categories, not Go types. Every
// component that can fail tags its error with one of these.
type Kind string

const (
	KindConfig    Kind = "config"
	KindRouter    Kind = "router"
	KindRetrieval Kind = "retrieval"
	KindIngestion Kind = "ingestion"
	KindStorage   Kind = "storage"
	KindUpstream  Kind = "upstream"
	KindNetwork   Kind = "network"
	KindForbidden Kind = "host_not_allowed"
	KindNotFound  Kind = "no_upstream_configured"
	KindTimeout   Kind = "timeout"
)

// Error carries a Kind alongside the wrapped cause so the HTTP layer can
// map straight to a status code without a type switch fanning out across
// packages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCoder is implemented by errors that know their own HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// HTTPStatus maps a Kind to the status code a client-facing handler
// should answer with when the error reaches the edge unrecovered.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusBadGateway
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Wrap tags cause with kind and a human message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf builds a new Error with no wrapped cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is a
// *Error. ok is false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ErrNotFound is returned by storage lookups that find nothing. It is a
// sentinel, not a *Error, so callers check it with errors.Is the same
// way kv.ErrNotFound is checked.
var ErrNotFound = errors.New("mnemo: not found")
