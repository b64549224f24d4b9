package collab

import "time"

// Priority orders notifications for display
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification types
const (
	NotifyUserJoined      = "user_joined"
	NotifyUserLeft        = "user_left"
	NotifyEditStarted     = "claim_edit_started"
	NotifyConflict        = "conflict"
	NotifyComment         = "comment_added"
	NotifyMutationFailed  = "mutation_failed"
	NotifyRelationship    = "relationship_created"
	NotifyConnectionLost  = "connection_lost"
	NotifyReconnectFailed = "reconnect_failed"
)

// Notification is a user-facing alert
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	Priority  Priority  `json:"priority"`
	ActionURL string    `json:"actionUrl,omitempty"`
}
