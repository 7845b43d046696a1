package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"not found", NewNotFoundError("version"), http.StatusNotFound},
		{"conflict", NewConflictError("busy"), http.StatusConflict},
		{"timeout", NewTimeoutError("rebuild"), http.StatusRequestTimeout},
		{"rate limited", NewRateLimitError("rebuild"), http.StatusTooManyRequests},
		{"database", NewDatabaseError("get changes", fmt.Errorf("boom")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("query handler failed: %w", NewNotFoundError("object")), http.StatusNotFound},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestAppError_UnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")

	err := NewDatabaseError("append", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, ErrorTypeDatabase))
	assert.False(t, IsNotFound(err))
}

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name        string
		debug       bool
		err         error
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{"app error", false, NewConflictError("a rebuild is already running"), http.StatusConflict, "CONFLICT", "a rebuild is already running"},
		{"plain error hidden", false, fmt.Errorf("secret"), http.StatusInternalServerError, "INTERNAL", "An internal error occurred"},
		{"plain error in debug", true, fmt.Errorf("secret"), http.StatusInternalServerError, "INTERNAL", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := NewErrorHandler(zap.NewNop(), tt.debug)
			req := httptest.NewRequest(http.MethodGet, "/api/rnd/index", nil)
			rec := httptest.NewRecorder()

			// Act
			h.Handle(rec, req, tt.err)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
			assert.Equal(t, tt.wantMessage, body.Message)
			if tt.debug {
				assert.Equal(t, "secret", body.Details["cause"])
			} else {
				assert.Empty(t, body.Details)
			}
		})
	}
}

func TestErrorHandler_HandleStatus(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()

	h.HandleStatus(rec, req, http.StatusNotFound, "Route not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Type)
	assert.Equal(t, "req-1", body.RequestID)
}
