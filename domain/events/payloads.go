package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
)

// Time decodes either an RFC3339 string or epoch milliseconds
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// MarshalJSON writes RFC3339
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Or returns t, or fallback when t is unset
func (t Time) Or(fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.Time
}

// Editor identifies who holds an edit lock. The server sends either the
// user id or the full user object.
type Editor struct {
	collab.User
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Editor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	return json.Unmarshal(data, &e.User)
}

// ProjectPayload is sent with join_project and leave_project
type ProjectPayload struct {
	ProjectID string `json:"projectId"`
}

// MembershipPayload is received with user_joined_project and user_left_project
type MembershipPayload struct {
	UserID    string      `json:"userId"`
	User      collab.User `json:"user"`
	Timestamp Time        `json:"timestamp"`
}

// CursorPayload travels with cursor_update in both directions
type CursorPayload struct {
	ProjectID string          `json:"projectId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Position  collab.Position `json:"position"`
	ElementID string          `json:"elementId,omitempty"`
	Selection []string        `json:"selection,omitempty"`
	Activity  collab.Activity `json:"activity,omitempty"`
}

// ClaimEditRequest is sent with claim_edit_start and claim_edit_end
type ClaimEditRequest struct {
	ClaimID   string `json:"claimId"`
	ProjectID string `json:"projectId"`
	Save      *bool  `json:"save,omitempty"`
}

// ClaimEditPayload is received with the claim_edit_* events
type ClaimEditPayload struct {
	ClaimID       string                 `json:"claimId"`
	UserID        string                 `json:"userId"`
	User          collab.User            `json:"user"`
	Changes       map[string]interface{} `json:"changes,omitempty"`
	CurrentEditor *Editor                `json:"currentEditor,omitempty"`
	Timestamp     Time                   `json:"timestamp"`
}

// RelationshipPayload travels with relationship_created
type RelationshipPayload struct {
	ProjectID    string             `json:"projectId"`
	SourceID     string             `json:"sourceId"`
	TargetID     string             `json:"targetId"`
	Relationship string             `json:"relationship"`
	Link         entities.GraphLink `json:"link"`
	UserID       string             `json:"userId,omitempty"`
	User         *collab.User       `json:"user,omitempty"`
}

// Comment is a discussion entry attached to a claim
type Comment struct {
	ID        string      `json:"id"`
	ClaimID   string      `json:"claimId,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	User      collab.User `json:"user"`
	Text      string      `json:"text"`
	CreatedAt Time        `json:"createdAt"`
}

// CommentPayload is received with comment_added
type CommentPayload struct {
	Comment Comment `json:"comment"`
}

// DisconnectPayload is raised with disconnect
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// ReconnectPayload is raised with reconnect_attempt and reconnect_failed
type ReconnectPayload struct {
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}
