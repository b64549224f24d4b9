// Package presence maintains the roster of other collaborators in a project.
package presence

import (
	"sort"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
	"go.uber.org/zap"
)

// Tracker is purely event-driven: it never polls and never joins a user
// implicitly. Not safe for concurrent use.
type Tracker struct {
	users  map[string]collab.UserPresence
	now    func() time.Time
	logger *zap.Logger
}

// NewTracker creates an empty roster
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		users:  make(map[string]collab.UserPresence),
		now:    time.Now,
		logger: logger,
	}
}

// Join inserts or replaces the entry for the user. Rejoining replaces.
func (t *Tracker) Join(p events.MembershipPayload) collab.UserPresence {
	userID := p.UserID
	if userID == "" {
		userID = p.User.ID
	}
	user := p.User
	if user.ID == "" {
		user.ID = userID
	}
	entry := collab.UserPresence{
		UserID:     userID,
		User:       user,
		Activity:   collab.ActivityViewing,
		LastUpdate: p.Timestamp.Or(t.now()),
	}
	t.users[userID] = entry
	t.logger.Debug("User joined", zap.String("user_id", userID))
	return entry.Clone()
}

// Leave removes the entry and reports whether the user was known
func (t *Tracker) Leave(userID string) (collab.UserPresence, bool) {
	entry, ok := t.users[userID]
	if !ok {
		return collab.UserPresence{}, false
	}
	delete(t.users, userID)
	t.logger.Debug("User left", zap.String("user_id", userID))
	return entry, true
}

// CursorUpdate merges the partial cursor fields into a known entry and
// refreshes LastUpdate. Updates for unknown users are ignored.
func (t *Tracker) CursorUpdate(p events.CursorPayload) bool {
	entry, ok := t.users[p.UserID]
	if !ok {
		return false
	}

	cursor := collab.Cursor{}
	if entry.Cursor != nil {
		cursor = *entry.Cursor
	}
	cursor.X = p.Position.X
	cursor.Y = p.Position.Y
	if p.ElementID != "" {
		cursor.ElementID = p.ElementID
	}
	if p.Selection != nil {
		cursor.Selection = append([]string{}, p.Selection...)
	}
	entry.Cursor = &cursor

	if p.Activity != "" {
		entry.Activity = p.Activity
	} else if entry.Activity == collab.ActivityIdle {
		entry.Activity = collab.ActivityViewing
	}
	entry.LastUpdate = t.now()
	t.users[p.UserID] = entry
	return true
}

// SetActivity changes what a known user is doing
func (t *Tracker) SetActivity(userID string, activity collab.Activity) bool {
	entry, ok := t.users[userID]
	if !ok {
		return false
	}
	entry.Activity = activity
	entry.LastUpdate = t.now()
	t.users[userID] = entry
	return true
}

// Get returns a copy of the entry for userID
func (t *Tracker) Get(userID string) (collab.UserPresence, bool) {
	entry, ok := t.users[userID]
	if !ok {
		return collab.UserPresence{}, false
	}
	return entry.Clone(), true
}

// Len returns the number of active collaborators
func (t *Tracker) Len() int {
	return len(t.users)
}

// Snapshot returns copies of all entries ordered by user id
func (t *Tracker) Snapshot() []collab.UserPresence {
	out := make([]collab.UserPresence, 0, len(t.users))
	for _, entry := range t.users {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Prune marks entries not updated within idleAfter as idle. Entries are
// never removed here; only leave or disconnect removes them.
func (t *Tracker) Prune(idleAfter time.Duration) int {
	cutoff := t.now().Add(-idleAfter)
	marked := 0
	for id, entry := range t.users {
		if entry.Activity != collab.ActivityIdle && entry.LastUpdate.Before(cutoff) {
			entry.Activity = collab.ActivityIdle
			t.users[id] = entry
			marked++
		}
	}
	return marked
}

// Clear drops the whole roster
func (t *Tracker) Clear() {
	t.users = make(map[string]collab.UserPresence)
}
