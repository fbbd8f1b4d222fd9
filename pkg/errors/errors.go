package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed user input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrDegradedAggregation is internal only: aggregation or facet stages
	// report it and the caller replaces their output with zero values.
	ErrDegradedAggregation = errors.New("aggregation degraded")
	// ErrQueryExecution marks a failed page or row query.
	ErrQueryExecution = errors.New("query execution failed")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Validation is shorthand for a 400 carrying a user-facing message.
func Validation(format string, args ...any) *AppError {
	return Newf(ErrValidation, http.StatusBadRequest, format, args...)
}

// QueryExecution wraps a store failure. Deadline overruns map to 503 so
// clients can tell an overloaded store from a broken query.
func QueryExecution(op string, err error) *AppError {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrQueryExecution, err),
		Message:    op,
		StatusCode: status,
	}
}

// Message returns the user-facing part of err, or a generic text for
// errors that carry no AppError.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if errors.Is(appErr, ErrQueryExecution) {
			return "search could not be executed"
		}
		return appErr.Message
	}
	return "internal server error"
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
