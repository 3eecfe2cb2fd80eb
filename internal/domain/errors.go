package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP layer.
type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindAuthorization    Kind = "authorization"
	KindValidation       Kind = "validation"
	KindInvalidOperation Kind = "invalid_operation"
	KindResourceNotFound Kind = "resource_not_found"
	KindDomain           Kind = "domain"
	KindDatabase         Kind = "database"
	KindExternal         Kind = "external"
)

// Error is the error type used across the domain, use-case, and adapter
// layers. The HTTP layer maps Kind to a status code.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewAuthenticationError(message string) *Error {
	return NewError(KindAuthentication, message)
}

func NewAuthorizationError(message string) *Error {
	return NewError(KindAuthorization, message)
}

func NewValidationError(message string) *Error {
	return NewError(KindValidation, message)
}

func NewInvalidOperationError(message string) *Error {
	return NewError(KindInvalidOperation, message)
}

func NewResourceNotFoundError(message string) *Error {
	return NewError(KindResourceNotFound, message)
}

func NewDomainError(message string) *Error {
	return NewError(KindDomain, message)
}

func NewDatabaseError(message string) *Error {
	return NewError(KindDatabase, message)
}

func NewExternalError(message string) *Error {
	return NewError(KindExternal, message)
}

// KindOf extracts the Kind from an error chain.
// Unclassified errors are treated as internal domain failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDomain
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
