// Package events defines the real-time channel protocol: event names, the
// frame envelope and the JSON payload of every event.
package events

import (
	"encoding/json"
	"time"
)

// Outbound events, sent by this client
const (
	JoinProject    = "join_project"
	LeaveProject   = "leave_project"
	ClaimEditStart = "claim_edit_start"
	ClaimEditEnd   = "claim_edit_end"
)

// Inbound events, broadcast by the server
const (
	UserJoinedProject = "user_joined_project"
	UserLeftProject   = "user_left_project"
	ClaimEditStarted  = "claim_edit_started"
	ClaimEditUpdate   = "claim_edit_update"
	ClaimEditConflict = "claim_edit_conflict"
	ClaimEditEnded    = "claim_edit_ended"
	CommentAdded      = "comment_added"
)

// Events that travel both ways
const (
	CursorUpdate        = "cursor_update"
	RelationshipCreated = "relationship_created"
)

// Connection lifecycle events, raised locally by the connection manager
const (
	Connect          = "connect"
	Disconnect       = "disconnect"
	ReconnectAttempt = "reconnect_attempt"
	ReconnectFailed  = "reconnect_failed"
)

// Disconnect reasons raised locally rather than by a transport failure
const (
	ReasonClientDisconnect = "client disconnect"
	ReasonReplaced         = "replaced by new connection"
)

// Envelope is the frame format on the wire
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload into a frame stamped with now
func NewEnvelope(eventType string, payload interface{}, now time.Time) (Envelope, error) {
	env := Envelope{Type: eventType, Timestamp: now.UnixMilli()}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = data
	return env, nil
}

// Decode unmarshals the frame data into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Time returns when the frame was stamped, or now if it was not
func (e Envelope) Time() time.Time {
	if e.Timestamp == 0 {
		return time.Now()
	}
	return time.UnixMilli(e.Timestamp)
}

// IsLifecycle reports whether the event is raised locally rather than
// received from the server
func IsLifecycle(eventType string) bool {
	switch eventType {
	case Connect, Disconnect, ReconnectAttempt, ReconnectFailed:
		return true
	}
	return false
}

// Handler receives one event. Handlers run on the goroutine that
// dispatched the event and must not block.
type Handler func(env Envelope)
