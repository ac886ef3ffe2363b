// Package apperr carries the engine's error taxonomy. Every business-rule
// failure surfaced to a caller is an *Error with a stable code; handlers map
// codes to HTTP statuses and a {error: {code, message}} body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeProductUnavailable   = "PRODUCT_UNAVAILABLE"
	CodeVariantNotFound      = "VARIANT_NOT_FOUND"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeCancelReasonRequired = "CANCEL_REASON_REQUIRED"
	CodeCheckoutFailed       = "CHECKOUT_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a coded business error.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a formatted message.
func New(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause while keeping the coded surface.
func Wrap(code string, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the taxonomy code from err, defaulting to INTERNAL_ERROR.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message from err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

// HTTPStatus maps a taxonomy code to an HTTP status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeCancelReasonRequired:
		return http.StatusBadRequest
	case CodeProductUnavailable, CodeVariantNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientStock, CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
