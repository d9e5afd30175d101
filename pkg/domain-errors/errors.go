// Package derrors provides coded domain errors. Services construct these at
// the point a rule fails; transports translate codes into wire responses.
// Infrastructure facts (not found, conflict) live in pkg/platform/sentinel and
// are wrapped into coded errors at the service boundary.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Every code is terminal for the operation in
// which it occurs; there is no internal retry.
type Code string

const (
	// Resolution and registrar failures.
	CodeNotRegistered       Code = "not_registered"
	CodeRegistrarRestricted Code = "registrar_restricted"

	// Authority failures. Unauthorized admin calls are benign no-ops from the
	// caller's perspective: other co-authorities may still approve.
	CodeUnauthorized Code = "unauthorized"

	// Transfer gating.
	CodeUnknownToken    Code = "unknown_token"
	CodeTokenRestricted Code = "token_restricted"
	CodeEntityLocked    Code = "entity_locked"

	// Party eligibility.
	CodeSenderRestricted    Code = "sender_restricted"
	CodeReceiverRestricted  Code = "receiver_restricted"
	CodeJurisdictionBlocked Code = "jurisdiction_blocked"
	CodeRatingTooLow        Code = "rating_too_low"
	CodeSlotLimit           Code = "slot_limit_exceeded"

	// Ledger integrity. Arithmetic faults are fatal, never clamped.
	CodeArithmetic Code = "arithmetic_fault"
	CodeReentrancy Code = "reentrancy_blocked"

	// Document registry.
	CodeDuplicateDocument Code = "duplicate_document"

	// Ambient codes.
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeInternal   Code = "internal"
)

// Error is a coded domain error. The zero code is not valid.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code onto an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound, CodeNotRegistered, CodeUnknownToken:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateDocument, CodeReentrancy, CodeArithmetic:
		return http.StatusConflict
	case CodeTokenRestricted, CodeEntityLocked, CodeSenderRestricted,
		CodeReceiverRestricted, CodeJurisdictionBlocked, CodeRatingTooLow,
		CodeSlotLimit, CodeRegistrarRestricted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
