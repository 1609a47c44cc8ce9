// Package errors defines the typed error carried from services to the HTTP
// layer. Each Code maps to a status, a public message and a retry hint.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodePrecondition Code = "FAILED_PRECONDITION"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeSignature    Code = "INVALID_SIGNATURE"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, retryable, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: retryable, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", false, true),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", false, false),
	CodeForbidden:    meta(http.StatusForbidden, "access denied", false, false),
	CodeNotFound:     meta(http.StatusNotFound, "resource not found", false, false),
	CodeConflict:     meta(http.StatusConflict, "conflict detected", false, false),
	CodePrecondition: meta(http.StatusPreconditionFailed, "precondition failed", false, true),
	CodeIdempotency:  meta(http.StatusConflict, "idempotency key reused", false, true),
	CodeSignature:    meta(http.StatusBadRequest, "invalid signature", false, false),
	CodeRateLimit:    meta(http.StatusTooManyRequests, "rate limit exceeded", false, false),
	CodeInternal:     meta(http.StatusInternalServerError, "internal server error", true, false),
	CodeDependency:   meta(http.StatusBadGateway, "dependency unavailable", true, false),
	CodeUnavailable:  meta(http.StatusServiceUnavailable, "temporarily unavailable", true, false),
}

// MetadataFor returns the metadata for code. Unknown codes are treated as internal.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries a typed error with the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
