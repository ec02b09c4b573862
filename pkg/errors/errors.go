package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrInvalidTransition
	ErrPendingApproval
	ErrConflict
	ErrRemote
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "NOT_FOUND",
	ErrBadRequest:        "BAD_REQUEST",
	ErrUnauthorized:      "UNAUTHORIZED",
	ErrForbidden:         "FORBIDDEN",
	ErrInternal:          "INTERNAL",
	ErrValidation:        "VALIDATION_FAILED",
	ErrInvalidTransition: "INVALID_TRANSITION",
	ErrPendingApproval:   "PENDING_APPROVAL",
	ErrConflict:          "CONFLICT",
	ErrRemote:            "REMOTE",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", int(c))
}

// ParseCode maps a code name back to its ErrorCode.
func ParseCode(name string) (ErrorCode, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents an application error
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"errors,omitempty"`
	Status  int          `json:"-"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status the error is reported with.
func (e *AppError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden, ErrPendingApproval:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrConflict:
		return http.StatusConflict
	case ErrRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Has reports whether err carries an AppError with the given code.
func Has(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// From extracts the AppError from err, wrapping anything else as internal.
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func PendingApproval(message string) *AppError {
	return &AppError{
		Code:    ErrPendingApproval,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// Validation reports every offending field at once.
func Validation(fields []FieldError) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// InvalidTransition reports a state change the lifecycle does not allow.
func InvalidTransition(entity string, from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
	}
}

// Remote reports a failed round trip to the API; status is the HTTP status
// received, or 0 when the request never got a reply.
func Remote(status int, message string, err error) *AppError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Code:    ErrRemote,
		Message: message,
		Status:  status,
		Err:     err,
	}
}
