// Package notifications turns protocol and domain events into user-facing
// alerts.
package notifications

import (
	"fmt"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/valueobjects"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/events"
)

// DefaultCapacity bounds the notification list; the oldest are dropped first
const DefaultCapacity = 200

// Dispatcher owns the notification list. It never deduplicates: repeated
// events produce repeated notifications. Not safe for concurrent use.
type Dispatcher struct {
	items    []collab.Notification
	capacity int
	now      func() time.Time
	newID    func() string
}

// NewDispatcher creates an empty list bounded by capacity
func NewDispatcher(capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Dispatcher{
		capacity: capacity,
		now:      time.Now,
		newID:    valueobjects.NewRecordID,
	}
}

// Push stores n, stamping id and creation time when missing
func (d *Dispatcher) Push(n collab.Notification) collab.Notification {
	if n.ID == "" {
		n.ID = d.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}
	if n.Priority == "" {
		n.Priority = collab.PriorityMedium
	}
	d.items = append(d.items, n)
	if over := len(d.items) - d.capacity; over > 0 {
		d.items = append([]collab.Notification(nil), d.items[over:]...)
	}
	return n
}

// UserJoined notifies that a collaborator entered the project
func (d *Dispatcher) UserJoined(user collab.User) collab.Notification {
	return d.Push(collab.Notification{
		Type:     collab.NotifyUserJoined,
		Title:    "User joined",
		Message:  user.DisplayName() + " joined the project",
		UserID:   user.ID,
		Priority: collab.PriorityLow,
	})
}

// UserLeft notifies that a collaborator left the project
func (d *Dispatcher) UserLeft(user collab.User) collab.Notification {
	return d.Push(collab.Notification{
		Type:     collab.NotifyUserLeft,
		Title:    "User left",
		Message:  user.DisplayName() + " left the project",
		UserID:   user.ID,
		Priority: collab.PriorityLow,
	})
}

// EditStarted notifies that a collaborator began editing a claim
func (d *Dispatcher) EditStarted(user collab.User, claimID, claimLabel string) collab.Notification {
	subject := claimLabel
	if subject == "" {
		subject = "a claim"
	}
	return d.Push(collab.Notification{
		Type:      collab.NotifyEditStarted,
		Title:     "Editing started",
		Message:   fmt.Sprintf("%s is editing %s", user.DisplayName(), subject),
		UserID:    user.ID,
		Priority:  collab.PriorityMedium,
		ActionURL: claimURL(claimID),
	})
}

// Conflict notifies that a conflict was recorded and needs resolution
func (d *Dispatcher) Conflict(c collab.ConflictResolution, other collab.User) collab.Notification {
	msg := fmt.Sprintf("%s is editing the same claim", other.DisplayName())
	if c.ConflictType == collab.ConflictEditLock {
		msg = fmt.Sprintf("%s already holds the edit lock on this claim", other.DisplayName())
	}
	return d.Push(collab.Notification{
		Type:      collab.NotifyConflict,
		Title:     "Edit conflict",
		Message:   msg,
		UserID:    other.ID,
		Priority:  collab.PriorityHigh,
		ActionURL: claimURL(c.EntityID),
	})
}

// CommentAdded notifies about a new comment
func (d *Dispatcher) CommentAdded(c events.Comment) collab.Notification {
	return d.Push(collab.Notification{
		Type:      collab.NotifyComment,
		Title:     "New comment",
		Message:   fmt.Sprintf("%s commented: %s", c.User.DisplayName(), c.Text),
		UserID:    c.User.ID,
		Priority:  collab.PriorityMedium,
		ActionURL: claimURL(c.ClaimID),
	})
}

// MutationFailed notifies that a durable request was rejected
func (d *Dispatcher) MutationFailed(message string) collab.Notification {
	return d.Push(collab.Notification{
		Type:     collab.NotifyMutationFailed,
		Title:    "Change not saved",
		Message:  message,
		Priority: collab.PriorityHigh,
	})
}

// RelationshipCreated notifies that a collaborator linked two nodes
func (d *Dispatcher) RelationshipCreated(user collab.User, relationship string) collab.Notification {
	return d.Push(collab.Notification{
		Type:     collab.NotifyRelationship,
		Title:    "Relationship added",
		Message:  fmt.Sprintf("%s added a %s relationship", user.DisplayName(), relationship),
		UserID:   user.ID,
		Priority: collab.PriorityLow,
	})
}

// ConnectionLost notifies that the real-time channel dropped
func (d *Dispatcher) ConnectionLost(reason string) collab.Notification {
	msg := "Real-time updates are paused"
	if reason != "" {
		msg += ": " + reason
	}
	return d.Push(collab.Notification{
		Type:     collab.NotifyConnectionLost,
		Title:    "Connection lost",
		Message:  msg,
		Priority: collab.PriorityHigh,
	})
}

// ReconnectFailed notifies that reconnecting was given up
func (d *Dispatcher) ReconnectFailed(attempts int) collab.Notification {
	return d.Push(collab.Notification{
		Type:     collab.NotifyReconnectFailed,
		Title:    "Could not reconnect",
		Message:  fmt.Sprintf("Gave up after %d attempts", attempts),
		Priority: collab.PriorityHigh,
	})
}

// MarkRead marks one notification read. Marking twice is harmless.
func (d *Dispatcher) MarkRead(id string) bool {
	for i := range d.items {
		if d.items[i].ID == id {
			d.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every notification read
func (d *Dispatcher) MarkAllRead() {
	for i := range d.items {
		d.items[i].Read = true
	}
}

// ClearAll drops every notification
func (d *Dispatcher) ClearAll() {
	d.items = nil
}

// UnreadCount returns how many notifications are unread
func (d *Dispatcher) UnreadCount() int {
	n := 0
	for _, item := range d.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// List returns a copy of the notifications, oldest first
func (d *Dispatcher) List() []collab.Notification {
	return append([]collab.Notification{}, d.items...)
}

func claimURL(claimID string) string {
	if claimID == "" {
		return ""
	}
	return "/claims/" + claimID
}
