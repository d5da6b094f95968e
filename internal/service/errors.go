package service

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindDuplicateEmail     Kind = "DUPLICATE_EMAIL"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInvalidCode        Kind = "INVALID_CODE"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindExpired            Kind = "EXPIRED"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindDelivery           Kind = "DELIVERY_ERROR"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrInvalidCode        = &Error{Kind: KindInvalidCode}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDelivery           = &Error{Kind: KindDelivery}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Error is the failure type every service operation returns to the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindDuplicateEmail, KindInvalidCredentials, KindInvalidCode,
		KindInvalidToken, KindExpired, KindDelivery:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func validationError(message string) *Error { return newError(KindValidation, message, nil) }

func internalError(op string, err error) *Error {
	return newError(KindInternal, "internal server error", fmt.Errorf("%s: %w", op, err))
}

// AsError extracts the *Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// KindOf returns the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if svcErr, ok := AsError(err); ok {
		return svcErr.Kind
	}
	return KindInternal
}
