package collab

import "time"

// Activity is what a collaborator is currently doing
type Activity string

const (
	ActivityViewing Activity = "viewing"
	ActivityEditing Activity = "editing"
	ActivityIdle    Activity = "idle"
)

// Position is a point in graph coordinates
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cursor is a collaborator's pointer and selection
type Cursor struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	ElementID string   `json:"elementId,omitempty"`
	Selection []string `json:"selection,omitempty"`
}

// UserPresence is one entry of the presence roster
type UserPresence struct {
	UserID     string    `json:"userId"`
	User       User      `json:"user"`
	Cursor     *Cursor   `json:"cursor,omitempty"`
	Activity   Activity  `json:"activity"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Clone returns a deep copy
func (p UserPresence) Clone() UserPresence {
	out := p
	if p.Cursor != nil {
		c := *p.Cursor
		if p.Cursor.Selection != nil {
			c.Selection = append([]string{}, p.Cursor.Selection...)
		}
		out.Cursor = &c
	}
	return out
}
