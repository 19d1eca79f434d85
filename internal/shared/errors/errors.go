// Package errors defines the errors the HTTP API reports to clients.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind for clients
type Code string

const (
	ErrCodeValidation       Code = "VALIDATION_ERROR"
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeUnauthorized     Code = "UNAUTHORIZED"
	ErrCodeUserRejected     Code = "USER_REJECTED"
	ErrCodeSubmissionFailed Code = "SUBMISSION_FAILED"
	ErrCodeUnavailable      Code = "UNAVAILABLE"
	ErrCodeInternal         Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,
	// The wallet declined; the request itself was fine
	ErrCodeUserRejected:     http.StatusConflict,
	ErrCodeSubmissionFailed: http.StatusBadGateway,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
}

// AppError is an error with a client-facing code and message
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code to a response status. Unknown codes are 500.
func (e *AppError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates an AppError without a cause
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to err
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// NotFound reports "<resource> not found"
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, resource+" not found")
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// UserRejected reports that the signer declined the transaction
func UserRejected() *AppError {
	return New(ErrCodeUserRejected, "transaction rejected by user")
}

// SubmissionFailed reports that a transaction never reached the chain
func SubmissionFailed(err error) *AppError {
	return Wrap(err, ErrCodeSubmissionFailed, "transaction submission failed")
}

func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// IsAppError reports whether err wraps an AppError
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError returns the first AppError in err's chain, or nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
