package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func render(t *testing.T, h *ErrorHandler, err error) (int, ErrorResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/v1/links", nil), err)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestErrorHandler_StatusByType(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"validation", NewValidationError("source is required"), http.StatusBadRequest, false},
		{"not found", NewNotFoundError("claim c9"), http.StatusNotFound, false},
		{"conflict", NewConflictError("already pending"), http.StatusConflict, false},
		{"rejected", NewMutationRejectedError("not found", 404), http.StatusBadGateway, false},
		{"unavailable", NewUnavailableError("graph api"), http.StatusServiceUnavailable, true},
		{"timeout", NewTimeoutError("connect_nodes"), http.StatusGatewayTimeout, true},
		{"transport", NewTransportError("not connected", nil), http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := render(t, h, tt.err)
			assert.Equal(t, tt.status, status)
			assert.True(t, resp.Error)
			assert.Equal(t, tt.retryable, resp.Retryable)
			assert.Equal(t, GetAppError(tt.err).Message, resp.Message)
		})
	}
}

func TestErrorHandler_RemoteStatus(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	_, resp := render(t, h, NewMutationRejectedError("not found", 404))
	assert.Equal(t, 404, resp.RemoteStatus)
	assert.Nil(t, resp.Details)
}

func TestErrorHandler_PlainErrorsAreHidden(t *testing.T) {
	raw := stderrors.New("db password leaked")

	status, resp := render(t, NewErrorHandler(zap.NewNop(), false), raw)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, string(ErrorTypeInternal), resp.Type)
	assert.Equal(t, "An internal error occurred", resp.Message)

	_, resp = render(t, NewErrorHandler(zap.NewNop(), true), raw)
	assert.Equal(t, "db password leaked", resp.Message)
}

func TestErrorHandler_NilIsNoop(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(zap.NewNop(), false).Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "not found", UserMessage(NewMutationRejectedError("not found", 404), "Failed to connect nodes"))
	assert.Equal(t, "Failed to connect nodes", UserMessage(NewTimeoutError("connect_nodes"), "Failed to connect nodes"))
	assert.Equal(t, "Failed to connect nodes", UserMessage(stderrors.New("boom"), "Failed to connect nodes"))
	assert.Empty(t, UserMessage(nil, "x"))
	assert.True(t, IsAppError(stderrors.Join(stderrors.New("context"), NewConflictError("dup"))))
}
