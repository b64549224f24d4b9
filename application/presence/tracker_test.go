package presence

import (
	"testing"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(now time.Time) *Tracker {
	t := NewTracker(nil)
	t.now = func() time.Time { return now }
	return t
}

func join(userID, name string) events.MembershipPayload {
	return events.MembershipPayload{UserID: userID, User: collab.User{ID: userID, Name: name}}
}

func TestTracker_JoinIsIdempotent(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))

	tr.Join(join("u1", "Ada"))
	tr.Join(join("u1", "Ada Lovelace"))

	require.Equal(t, 1, tr.Len())
	p, ok := tr.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", p.User.Name)
	assert.Equal(t, collab.ActivityViewing, p.Activity)
}

func TestTracker_JoinUsesPayloadTimestamp(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))
	ts := time.Unix(50, 0)

	p := join("u1", "Ada")
	p.Timestamp = events.Time{Time: ts}
	entry := tr.Join(p)

	assert.True(t, entry.LastUpdate.Equal(ts))
}

func TestTracker_Leave(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))
	tr.Join(join("u1", "Ada"))

	_, ok := tr.Leave("u1")
	assert.True(t, ok)
	assert.Equal(t, 0, tr.Len())

	_, ok = tr.Leave("u1")
	assert.False(t, ok)
}

func TestTracker_CursorUpdateIgnoresUnknownUser(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))

	applied := tr.CursorUpdate(events.CursorPayload{UserID: "ghost", Position: collab.Position{X: 1, Y: 2}})

	assert.False(t, applied)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_CursorUpdateMergesPartialFields(t *testing.T) {
	now := time.Unix(100, 0)
	tr := newTestTracker(now)
	tr.Join(join("u1", "Ada"))

	require.True(t, tr.CursorUpdate(events.CursorPayload{UserID: "u1", Position: collab.Position{X: 1, Y: 2}, ElementID: "c1", Selection: []string{"c1"}}))

	later := now.Add(time.Second)
	tr.now = func() time.Time { return later }
	require.True(t, tr.CursorUpdate(events.CursorPayload{UserID: "u1", Position: collab.Position{X: 5, Y: 6}}))

	p, _ := tr.Get("u1")
	require.NotNil(t, p.Cursor)
	assert.Equal(t, 5.0, p.Cursor.X)
	assert.Equal(t, 6.0, p.Cursor.Y)
	assert.Equal(t, "c1", p.Cursor.ElementID)
	assert.Equal(t, []string{"c1"}, p.Cursor.Selection)
	assert.True(t, p.LastUpdate.Equal(later))
}

func TestTracker_SnapshotIsSortedCopy(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))
	tr.Join(join("u2", "Bo"))
	tr.Join(join("u1", "Ada"))
	tr.CursorUpdate(events.CursorPayload{UserID: "u1", Selection: []string{"x"}})

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "u1", snap[0].UserID)
	assert.Equal(t, "u2", snap[1].UserID)

	snap[0].Cursor.Selection[0] = "mutated"
	p, _ := tr.Get("u1")
	assert.Equal(t, []string{"x"}, p.Cursor.Selection)
}

func TestTracker_PruneMarksIdleWithoutRemoving(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := newTestTracker(now.Add(-5 * time.Minute))
	tr.Join(join("stale", "Old"))
	tr.now = func() time.Time { return now }
	tr.Join(join("fresh", "New"))

	marked := tr.Prune(2 * time.Minute)

	assert.Equal(t, 1, marked)
	assert.Equal(t, 2, tr.Len())
	stale, _ := tr.Get("stale")
	assert.Equal(t, collab.ActivityIdle, stale.Activity)
	fresh, _ := tr.Get("fresh")
	assert.Equal(t, collab.ActivityViewing, fresh.Activity)
}

func TestTracker_SetActivityAndClear(t *testing.T) {
	tr := newTestTracker(time.Unix(100, 0))
	tr.Join(join("u1", "Ada"))

	assert.True(t, tr.SetActivity("u1", collab.ActivityEditing))
	assert.False(t, tr.SetActivity("nobody", collab.ActivityEditing))
	p, _ := tr.Get("u1")
	assert.Equal(t, collab.ActivityEditing, p.Activity)

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}
