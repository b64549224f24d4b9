package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTime_AcceptsRFC3339AndEpochMillis(t *testing.T) {
	var p struct {
		A Time `json:"a"`
		B Time `json:"b"`
		C Time `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-05-01T12:00:00Z","b":1714564800000,"c":null}`), &p))

	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, p.A.Equal(want))
	assert.True(t, p.B.Equal(want))
	assert.True(t, p.C.IsZero())
	assert.Equal(t, want, p.C.Or(want))
}

func TestEditor_AcceptsIDOrUser(t *testing.T) {
	var byID, byUser ClaimEditPayload
	require.NoError(t, json.Unmarshal([]byte(`{"claimId":"c1","currentEditor":"u2"}`), &byID))
	require.NoError(t, json.Unmarshal([]byte(`{"claimId":"c1","currentEditor":{"id":"u2","name":"Ada"}}`), &byUser))

	require.NotNil(t, byID.CurrentEditor)
	assert.Equal(t, "u2", byID.CurrentEditor.ID)
	require.NotNil(t, byUser.CurrentEditor)
	assert.Equal(t, "u2", byUser.CurrentEditor.ID)
	assert.Equal(t, "Ada", byUser.CurrentEditor.Name)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	now := time.UnixMilli(1714564800000)
	env, err := NewEnvelope(JoinProject, ProjectPayload{ProjectID: "p1"}, now)
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_project","timestamp":1714564800000,"data":{"projectId":"p1"}}`, string(raw))

	var back Envelope
	require.NoError(t, json.Unmarshal(raw, &back))
	var p ProjectPayload
	require.NoError(t, back.Decode(&p))
	assert.Equal(t, "p1", p.ProjectID)
	assert.Equal(t, now, back.Time())
}

func TestIsLifecycle(t *testing.T) {
	assert.True(t, IsLifecycle(Disconnect))
	assert.True(t, IsLifecycle(ReconnectFailed))
	assert.False(t, IsLifecycle(ClaimEditUpdate))
}
