package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the gateway reports. The set is closed;
// the transport maps each Kind to a status code.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindValidation         Kind = "validation_error"
	KindMissingToken       Kind = "missing_token"
	KindInvalidToken       Kind = "invalid_token"
	KindPermissionDenied   Kind = "permission_denied"
	KindThingNotFound      Kind = "thing_not_found"
	KindPlacementNotFound  Kind = "placement_not_found"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInternal           Kind = "internal_failure"
)

// Kinds lists every Kind, for exhaustive mapping tests.
var Kinds = []Kind{
	KindInvalidRequest,
	KindValidation,
	KindMissingToken,
	KindInvalidToken,
	KindPermissionDenied,
	KindThingNotFound,
	KindPlacementNotFound,
	KindInvalidCredentials,
	KindInternal,
}

// internalMessage is all a caller ever learns about an internal failure.
const internalMessage = "An internal error occurred. Please try again later."

// Error is the only error type the gateway returns.
type Error struct {
	Kind    Kind
	Message string // safe to show to the caller
	Field   string // offending field for validation errors, if known
	Err     error  // cause; never shown to the caller
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the Kind of err, or KindInternal for anything that is
// not a gateway Error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindInternal
}

// AsError converts any error into a gateway Error. Errors that are not
// already gateway Errors become KindInternal with the generic message.
func AsError(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return &Error{Kind: KindInternal, Message: internalMessage, Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: err}
}
