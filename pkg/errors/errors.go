
// Package errors defines the typed error codes shared by services and the
// HTTP layer.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable identifier carried in API error bodies.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeOrderNotFound            Code = "ORDER_NOT_FOUND"
	CodeOrderInvalidStatus       Code = "ORDER_INVALID_STATUS"
	CodePaymentRequired          Code = "PAYMENT_REQUIRED"
	CodeInsufficientStock        Code = "INSUFFICIENT_STOCK"
	CodeOrderConfirmFailed       Code = "ORDER_CONFIRM_FAILED"
	CodeCODNotEligible           Code = "COD_NOT_ELIGIBLE"
	CodeCurrencyMismatch         Code = "CURRENCY_MISMATCH"
	CodePaymentReferenceRequired Code = "PAYMENT_REFERENCE_REQUIRED"
	CodeOrderCannotCancel        Code = "ORDER_CANNOT_CANCEL"
	CodeOrderNotReadyToShip      Code = "ORDER_NOT_READY_TO_SHIP"
	CodeOrderRatingNotAllowed    Code = "ORDER_RATING_NOT_ALLOWED"
	CodeBadSignature             Code = "BAD_SIGNATURE"
)

// Metadata is how a code is presented over HTTP. Retryable tells clients and
// background workers that the same call may succeed later.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type metaOption func(*Metadata)

func retryable(m *Metadata)   { m.Retryable = true }
func withDetails(m *Metadata) { m.DetailsAllowed = true }

func meta(status int, public string, opts ...metaOption) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", retryable),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),

	CodeOrderNotFound:            meta(http.StatusNotFound, "order not found"),
	CodeOrderInvalidStatus:       meta(http.StatusUnprocessableEntity, "order status transition not allowed", withDetails),
	CodePaymentRequired:          meta(http.StatusPaymentRequired, "payment required", withDetails),
	CodeInsufficientStock:        meta(http.StatusConflict, "insufficient stock", retryable, withDetails),
	CodeOrderConfirmFailed:       meta(http.StatusConflict, "order could not be confirmed", retryable, withDetails),
	CodeCODNotEligible:           meta(http.StatusForbidden, "cash on delivery not available", withDetails),
	CodeCurrencyMismatch:         meta(http.StatusBadRequest, "currency mismatch", withDetails),
	CodePaymentReferenceRequired: meta(http.StatusBadRequest, "payment reference required"),
	CodeOrderCannotCancel:        meta(http.StatusUnprocessableEntity, "order cannot be cancelled", withDetails),
	CodeOrderNotReadyToShip:      meta(http.StatusUnprocessableEntity, "order is not ready to ship", withDetails),
	CodeOrderRatingNotAllowed:    meta(http.StatusUnprocessableEntity, "order cannot be rated", withDetails),
	CodeBadSignature:             meta(http.StatusUnauthorized, "invalid signature"),
}

// MetadataFor falls back to INTERNAL_ERROR for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// IsRetryable reports whether err is typed with a retryable code. Untyped
// errors are treated as retryable since they usually come from I/O.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
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

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
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
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
