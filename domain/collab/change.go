package collab

import "time"

// ChangeType is the kind of mutation a ChangeEvent records
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Entity types recorded in history
const (
	EntityClaim = "claim"
	EntityLink  = "link"
	EntityNode  = "node"
)

// ChangeEvent records one applied mutation, local or remote. Values are
// never modified after creation.
type ChangeEvent struct {
	ID         string                 `json:"id"`
	Type       ChangeType             `json:"type"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	UserID     string                 `json:"userId"`
	User       User                   `json:"user"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Clone returns a copy whose Changes can be modified without touching e
func (e ChangeEvent) Clone() ChangeEvent {
	out := e
	if e.Changes != nil {
		out.Changes = copyValue(e.Changes).(map[string]interface{})
	}
	return out
}

// copyValue deep-copies the container types JSON decoding produces
func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = copyValue(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = copyValue(val)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
