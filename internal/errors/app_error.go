package errors

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	Detail     string
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail

	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err

	return e
}

// Kinds of failure a cart operation can end with.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNetwork      = "NETWORK_ERROR"
	ErrCodeServer       = "INTERNAL_ERROR"
	ErrCodeBusy         = "BUSY"
	ErrCodeNotFound     = "NOT_FOUND"
)

// no token, or the server rejected the token (401)
func UnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// the server refused the operation semantically (stock, size, ...)
func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, http.StatusBadRequest)
}

// the request never completed: offline, timeout, open circuit
func NetworkError(message string) *AppError {
	return NewAppError(ErrCodeNetwork, message, 0)
}

// 5xx, unexpected 4xx or a malformed body
func ServerError(message string, statusCode int) *AppError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	return NewAppError(ErrCodeServer, message, statusCode)
}

func NotFoundError(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message, http.StatusNotFound)
}

// another cart operation is still in flight
func BusyError(message string) *AppError {
	return NewAppError(ErrCodeBusy, message, http.StatusConflict)
}

func IsAppError(err error) (*AppError, bool) {
	var appError *AppError

	if errors.As(err, &appError) {
		return appError, true
	}

	return nil, false
}

// KindOf reports the failure code of err; unknown errors count as server errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}

	return ErrCodeServer
}

func Is(err error, code string) bool {
	return err != nil && KindOf(err) == code
}
