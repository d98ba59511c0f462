// Package errors defines the service error taxonomy for the ledger layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	CodeValidation            ErrorCode = "VALIDATION_ERROR"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeAlreadyVerified       ErrorCode = "ALREADY_VERIFIED"
	CodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	CodeDuplicateBatch        ErrorCode = "DUPLICATE_BATCH"
	CodeConflictingReference  ErrorCode = "CONFLICTING_REFERENCE"
	CodeSettlementUnavailable ErrorCode = "SETTLEMENT_UNAVAILABLE"
	CodeSettlementPending     ErrorCode = "SETTLEMENT_PENDING"
	CodeUnsupportedEvent      ErrorCode = "UNSUPPORTED_EVENT"
	CodeBadPayload            ErrorCode = "BAD_PAYLOAD"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
	CodeForbidden             ErrorCode = "FORBIDDEN"
	CodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// ServiceError carries a machine-readable code alongside the message so a
// retrying client can distinguish "already done" from "transient, try again".
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Is matches service errors by code so callers can use errors.Is with the
// exported sentinel constructors.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if stderrors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithDetails attaches a key/value pair for diagnostics.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether retrying the failed operation can succeed.
func (e *ServiceError) Retryable() bool {
	return e.Code == CodeSettlementUnavailable || e.Code == CodeInternal
}

func newError(code ErrorCode, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Validation reports bad input; never retried as-is.
func Validation(format string, args ...interface{}) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// NotFound reports a missing entity.
func NotFound(kind, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", kind, id), nil)
}

// AlreadyVerified reports a verification decision on a non-pending submission.
func AlreadyVerified(submissionID string) *ServiceError {
	return newError(CodeAlreadyVerified, http.StatusConflict,
		fmt.Sprintf("submission %s is not pending", submissionID), nil)
}

// InvalidTransition reports a backward or same-stage status change on a
// batch or token transaction.
func InvalidTransition(entity, from, to string) *ServiceError {
	return newError(CodeInvalidTransition, http.StatusConflict,
		fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), nil)
}

// DuplicateBatch reports a batch id collision.
func DuplicateBatch(batchID string) *ServiceError {
	return newError(CodeDuplicateBatch, http.StatusConflict,
		fmt.Sprintf("batch %s already exists", batchID), nil)
}

// ConflictingReference reports an attempt to reassign an external reference.
func ConflictingReference(entity, have, want string) *ServiceError {
	return newError(CodeConflictingReference, http.StatusConflict,
		fmt.Sprintf("%s already holds external reference %s, refusing %s", entity, have, want), nil)
}

// SettlementUnavailable reports a transient settlement backend failure.
func SettlementUnavailable(cause error) *ServiceError {
	return newError(CodeSettlementUnavailable, http.StatusServiceUnavailable,
		"settlement backend unavailable", cause)
}

// SettlementPending reports that an intent was accepted but its outcome is
// unknown; the reconciliation path resolves it later.
func SettlementPending(externalRef string) *ServiceError {
	e := newError(CodeSettlementPending, http.StatusAccepted, "settlement outcome pending", nil)
	if externalRef != "" {
		e.WithDetails("external_ref", externalRef)
	}
	return e
}

// UnsupportedEvent reports an event type outside the reconciliation contract.
func UnsupportedEvent(eventType string) *ServiceError {
	return newError(CodeUnsupportedEvent, http.StatusBadRequest,
		fmt.Sprintf("unsupported event type %q", eventType), nil)
}

// BadPayload reports a malformed reconciliation payload.
func BadPayload(format string, args ...interface{}) *ServiceError {
	return newError(CodeBadPayload, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// RateLimited reports that the caller exceeded the request budget.
func RateLimited(limit int, window string) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil)
	e.WithDetails("limit", limit)
	e.WithDetails("window", window)
	return e
}

// Forbidden reports a role check failure.
func Forbidden(role, action string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden,
		fmt.Sprintf("role %s may not %s", role, action), nil)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError extracts a ServiceError from err, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}
