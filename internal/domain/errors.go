package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

func ErrUpstream(msg string, cause error) *AppError {
	return &AppError{Code: "UPSTREAM_ERROR", Message: msg, Status: 502, Cause: cause}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrDuplicateWrite is returned by a ledger when a key is recorded twice. Reaching it
// means the at-most-once guarantee was bypassed somewhere upstream.
var ErrDuplicateWrite = errors.New("ledger: duplicate write")

// IntegrationError wraps a failure of an upstream dependency (ticketing platform,
// chat platform, mail, ledger storage). It is never retried automatically.
type IntegrationError struct {
	Op    string
	Cause error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s: %v", e.Op, e.Cause)
}

func (e *IntegrationError) Unwrap() error { return e.Cause }

// NewIntegrationError wraps cause as an IntegrationError for the given operation.
func NewIntegrationError(op string, cause error) *IntegrationError {
	return &IntegrationError{Op: op, Cause: cause}
}

// IsIntegrationError reports whether err is or wraps an IntegrationError.
func IsIntegrationError(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie)
}

// ErrPlatformForbidden is returned by chat platform clients when the bot lacks the
// permission to modify a member, which happens for server administrators.
var ErrPlatformForbidden = errors.New("chat platform: forbidden")
