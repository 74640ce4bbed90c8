package dto

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails map[string]string
	}{
		{
			name:       "not found",
			err:        domain.NewNotFoundError("task", "t-1"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "stale version",
			err:        domain.NewVersionConflictError("task", "t-1", 2, 3),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:       "dependency cycle",
			err:        domain.NewDependencyCycleError([]string{"a", "b", "a"}),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:        "field validation",
			err:         fmt.Errorf("creating task: %w", domain.NewValidationError("title", "must not be blank")),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeValidation,
			wantDetails: map[string]string{"title": "must not be blank"},
		},
		{
			name:       "feature switched off",
			err:        domain.NewForbiddenError("force layout", "disabled"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrorCodeForbidden,
		},
		{
			name:        "store down hides the reason",
			err:         domain.NewUnavailableError("storage", "dial tcp 10.0.0.1:5432: connection refused"),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    ErrorCodeUnavailable,
			wantMessage: "storage is temporarily unavailable",
		},
		{
			name:        "unknown error is generic",
			err:         errors.New("nil map write in aggregator"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.err)
			require.NotNil(t, resp)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantDetails, resp.Error.Details)
			assert.Equal(t, tt.wantStatus, HTTPStatusFromCode(tt.wantCode))

			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		status, resp := MapError(nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Nil(t, resp)
	})
}

func TestGetTraceID(t *testing.T) {
	t.Run("stored value wins", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(requestIDHeader, "req-1")
		c.Set(TraceIDKey, "trace-1")

		assert.Equal(t, "trace-1", GetTraceID(c))
	})

	t.Run("falls back to request id", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(requestIDHeader, "req-1")

		assert.Equal(t, "req-1", GetTraceID(c))
	})

	t.Run("no request", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Empty(t, GetTraceID(c))
	})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/tasks/t-9", nil)
	c.Set(TraceIDKey, "trace-9")

	HandleError(c, domain.NewNotFoundError("task", "t-9"))

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeEnvelope(t, w)
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
	assert.Equal(t, "trace-9", resp.TraceID)
}

func TestHandleBindError(t *testing.T) {
	t.Run("field failures are listed", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/tasks", nil)

		HandleBindError(c, Validate(&StatusRequest{Status: "done"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeEnvelope(t, w)
		assert.Equal(t, ErrorCodeValidation, resp.Error.Code)
		assert.Contains(t, resp.Error.Details["status"], "in-progress")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/tasks", nil)

		HandleBindError(c, fmt.Errorf("%w: unexpected EOF", ErrBinding))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorCodeBadRequest, decodeEnvelope(t, w).Error.Code)
	})
}
