package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an AppError for clients and logs
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeDatabase    ErrorType = "DATABASE"
)

// statusByType is the HTTP status each error type maps to
var statusByType = map[ErrorType]int{
	ErrorTypeValidation:  http.StatusBadRequest,
	ErrorTypeNotFound:    http.StatusNotFound,
	ErrorTypeConflict:    http.StatusConflict,
	ErrorTypeTimeout:     http.StatusRequestTimeout,
	ErrorTypeRateLimited: http.StatusTooManyRequests,
	ErrorTypeInternal:    http.StatusInternalServerError,
	ErrorTypeDatabase:    http.StatusInternalServerError,
}

// AppError is an error that knows how it should be reported over HTTP
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
	StackTrace string    `json:"-"`
	HTTPStatus int       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newAppError(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: statusByType[errType],
		StackTrace: callers(),
	}
}

// callers renders the stack above the constructor for debug responses
func callers() string {
	var pcs [32]uintptr
	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&stack, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			return stack.String()
		}
	}
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message)
}

// NewNotFoundError reports a missing resource such as "version" or "object"
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, message)
}

func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, message)
}

func NewTimeoutError(operation string) *AppError {
	return newAppError(ErrorTypeTimeout, fmt.Sprintf("operation '%s' timed out", operation))
}

func NewRateLimitError(operation string) *AppError {
	return newAppError(ErrorTypeRateLimited, fmt.Sprintf("too many '%s' requests", operation))
}

// NewDatabaseError reports a failed change log read or write
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// GetAppError extracts the first AppError in err's chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is reports whether err carries an AppError of the given type
func Is(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsValidation(err error) bool {
	return Is(err, ErrorTypeValidation)
}

func IsNotFound(err error) bool {
	return Is(err, ErrorTypeNotFound)
}

// StatusOf returns the HTTP status for err: 200 for nil, 500 for errors
// that are not AppErrors.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// typeOf maps a bare status back to an error type
func typeOf(status int) ErrorType {
	for errType, s := range statusByType {
		if s == status && errType != ErrorTypeDatabase {
			return errType
		}
	}
	return ErrorTypeInternal
}
