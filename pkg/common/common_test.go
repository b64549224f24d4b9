package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFields(t *testing.T) {
	assert.Empty(t, LogFields(context.Background()))

	ctx := WithClientIP(WithRequestID(context.Background(), "req-1"), "10.0.0.2")
	fields := LogFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "req-1", fields[0].String)
	assert.Equal(t, "client_ip", fields[1].Key)

	_, ok := GetRequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestRespondList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	r = r.WithContext(WithRequestID(r.Context(), "req-9"))
	rec := httptest.NewRecorder()

	RespondList(rec, r, []string{"a", "b"}, 2)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "req-9", resp.Meta.RequestID)
	require.NotNil(t, resp.Meta.Count)
	assert.Equal(t, 2, *resp.Meta.Count)
}

func TestParseJSONBodyRejectsUnknownFields(t *testing.T) {
	var v struct {
		SourceID string `json:"sourceId"`
	}
	rec := httptest.NewRecorder()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sourceId":"c1"}`))
	require.NoError(t, ParseJSONBody(rec, r, &v, 1024))
	assert.Equal(t, "c1", v.SourceID)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sourceId":"c1","extra":true}`))
	assert.Error(t, ParseJSONBody(rec, r, &v, 1024))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sourceId":"`+strings.Repeat("x", 64)+`"}`))
	assert.Error(t, ParseJSONBody(rec, r, &v, 16))
}
