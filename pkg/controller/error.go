package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// Error codes returned to clients.
const (
	CodeInvalidCursor      = "pagination.invalid_cursor"
	CodeCursorFields       = "validation.cursor_fields"
	CodeConflictingCursors = "validation.conflicting_cursors"
	CodeInvalidParameter   = "validation.invalid_parameter"
)

// InvalidCursorMessage is the client-facing text for tokens that cannot be
// decoded or no longer match the query.
const InvalidCursorMessage = "pagination cursor invalid, restart from first page"

// AppError is the single application error contract shared across layers:
// stable code, optional wrapped cause.
type AppError struct {
	Code       string
	Message    string
	Details    map[string]interface{}
	HTTPStatus int
	Cause      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Code
	if e.Message != "" {
		label = e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MapError maps application errors to HTTP responses. Cursor errors from
// the core packages are recognized without being wrapped in an AppError.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := logger.RequestIDFromContext(ctx)

	appErr := toAppError(err)
	if appErr == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_server_error",
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = inferStatusFromCode(appErr.Code)
	}
	message := appErr.Message
	if message == "" {
		message = "an unexpected error occurred"
	}

	return status, ErrorResponse{
		Error:     errorCategory(status, appErr.Code),
		Code:      appErr.Code,
		Message:   message,
		RequestID: requestID,
		Details:   appErr.Details,
	}
}

func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var diag *cursor.Diagnostic
	switch {
	case errors.As(err, &diag):
		return NewCursorFieldsError(diag)
	case errors.Is(err, codec.ErrInvalidCursor), errors.Is(err, codec.ErrMissingValue), errors.Is(err, repository.ErrNullCursorValue):
		return NewInvalidCursorError(err)
	case errors.Is(err, repository.ErrConflictingCursors):
		return &AppError{
			Code:       CodeConflictingCursors,
			Message:    "after and before cannot be combined",
			HTTPStatus: http.StatusBadRequest,
			Cause:      err,
		}
	}
	return nil
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Code:       CodeInvalidParameter,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidCursorError creates the error returned for a rejected token.
// The cause is kept for logs and never rendered to the client.
func NewInvalidCursorError(cause error) *AppError {
	details := map[string]interface{}{}
	var ice *codec.InvalidCursorError
	if errors.As(cause, &ice) {
		details["reason"] = string(ice.Reason)
	}
	if len(details) == 0 {
		details = nil
	}
	return &AppError{
		Code:       CodeInvalidCursor,
		Message:    InvalidCursorMessage,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewCursorFieldsError creates the error returned when requested cursor
// fields do not fit the ordering.
func NewCursorFieldsError(d *cursor.Diagnostic) *AppError {
	return &AppError{
		Code:    CodeCursorFields,
		Message: d.Error(),
		Details: map[string]interface{}{
			"kind":        string(d.Kind),
			"expected":    d.Expected.String(),
			"remediation": d.Remediation(),
		},
		HTTPStatus: http.StatusBadRequest,
		Cause:      d,
	}
}

// NewInternalError creates a new internal error with optional cause.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       "internal.error",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func errorCategory(status int, code string) string {
	lowerCode := strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(lowerCode, "validation.") || strings.HasPrefix(lowerCode, "pagination.") {
		return "validation_error"
	}

	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	default:
		if status >= 500 {
			return "internal_server_error"
		}
		return "application_error"
	}
}

func inferStatusFromCode(code string) int {
	lowerCode := strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(lowerCode, "validation."), strings.HasPrefix(lowerCode, "pagination."):
		return http.StatusBadRequest
	case strings.Contains(lowerCode, "not_found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
