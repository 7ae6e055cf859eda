package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without cause",
			appError: NewValidationError("validation failed", nil),
			want:     "validation failed",
		},
		{
			name:     "error with cause",
			appError: NewInternalError("database error", errors.New("connection timeout")),
			want:     "database error: connection timeout",
		},
		{
			name:     "code only",
			appError: &AppError{Code: "validation.x"},
			want:     "validation.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	appErr := NewInternalError("boom", cause)

	if unwrapped := appErr.Unwrap(); unwrapped != cause {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func diagnosticFor(t *testing.T) error {
	t.Helper()
	v, err := cursor.NewValidator("id")
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	err = v.Validate(cursor.Spec{cursor.Desc("created_at")}, cursor.Spec{cursor.Asc("created_at"), cursor.Asc("id")})
	if err == nil {
		t.Fatal("expected diagnostic")
	}
	return err
}

func TestMapError(t *testing.T) {
	ctx := logger.ContextWithRequestID(context.Background(), "req-123")
	tokenErr := &codec.InvalidCursorError{Format: codec.FormatCompact, Reason: codec.ReasonMalformed, Err: errors.New("illegal base64")}

	tests := []struct {
		name          string
		err           error
		ctx           context.Context
		wantStatus    int
		wantError     string
		wantCode      string
		wantMessage   string
		wantRequestID string
		wantDetail    string
	}{
		{
			name:          "invalid cursor token",
			err:           fmt.Errorf("read page: %w", tokenErr),
			ctx:           ctx,
			wantStatus:    http.StatusBadRequest,
			wantError:     "validation_error",
			wantCode:      CodeInvalidCursor,
			wantMessage:   InvalidCursorMessage,
			wantRequestID: "req-123",
			wantDetail:    "reason",
		},
		{
			name:        "null cursor value",
			err:         repository.ErrNullCursorValue,
			ctx:         context.Background(),
			wantStatus:  http.StatusBadRequest,
			wantError:   "validation_error",
			wantCode:    CodeInvalidCursor,
			wantMessage: InvalidCursorMessage,
		},
		{
			name:       "cursor fields diagnostic",
			err:        diagnosticFor(t),
			ctx:        context.Background(),
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
			wantCode:   CodeCursorFields,
			wantDetail: "remediation",
		},
		{
			name:       "conflicting cursors",
			err:        repository.ErrConflictingCursors,
			ctx:        context.Background(),
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
			wantCode:   CodeConflictingCursors,
		},
		{
			name:        "internal app error",
			err:         NewInternalError("database unavailable", errors.New("dial tcp")),
			ctx:         context.Background(),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_server_error",
			wantCode:    "internal.error",
			wantMessage: "database unavailable",
		},
		{
			name:          "unknown error",
			err:           errors.New("something broke"),
			ctx:           ctx,
			wantStatus:    http.StatusInternalServerError,
			wantError:     "internal_server_error",
			wantMessage:   "an unexpected error occurred",
			wantRequestID: "req-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.ctx, tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if resp.RequestID != tt.wantRequestID {
				t.Errorf("request id = %q, want %q", resp.RequestID, tt.wantRequestID)
			}
			if tt.wantDetail != "" {
				if _, ok := resp.Details[tt.wantDetail]; !ok {
					t.Errorf("details missing %q: %v", tt.wantDetail, resp.Details)
				}
			}
		})
	}
}

func TestMapError_DoesNotLeakCause(t *testing.T) {
	err := &codec.InvalidCursorError{Format: codec.FormatText, Reason: codec.ReasonPayload, Err: errors.New("secret internals")}
	_, resp := MapError(context.Background(), err)
	if strings.Contains(resp.Message, "secret") {
		t.Errorf("message leaks cause: %q", resp.Message)
	}
	if resp.Details["reason"] != codec.ReasonPayload {
		t.Errorf("reason = %v", resp.Details["reason"])
	}
}

func TestInferStatusFromCode(t *testing.T) {
	tests := map[string]int{
		"validation.anything":  http.StatusBadRequest,
		"pagination.whatever":  http.StatusBadRequest,
		"resource.not_found":   http.StatusNotFound,
		"internal.error":       http.StatusInternalServerError,
		"something.unexpected": http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := inferStatusFromCode(code); got != want {
			t.Errorf("inferStatusFromCode(%q) = %d, want %d", code, got, want)
		}
	}
}
