package collab

import (
	"sort"
	"time"
)

// ConflictStatus is pending until someone resolves it explicitly
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict types
const (
	// ConflictConcurrentEdit is raised when a remote edit lands on an
	// entity the local user is editing
	ConflictConcurrentEdit = "concurrent_edit"
	// ConflictEditLock is raised when the server reports that another
	// user already holds the edit lock
	ConflictEditLock = "edit_lock"
)

// ConflictResolution records two users editing the same entity at once
type ConflictResolution struct {
	ID                 string         `json:"id"`
	ConflictType       string         `json:"conflictType"`
	EntityID           string         `json:"entityId"`
	ConflictingUsers   []string       `json:"conflictingUsers"`
	ProposedResolution string         `json:"proposedResolution"`
	Status             ConflictStatus `json:"status"`
	CreatedAt          time.Time      `json:"createdAt"`
	ResolvedAt         *time.Time     `json:"resolvedAt,omitempty"`
}

// IsPending reports whether the conflict still needs a decision
func (c ConflictResolution) IsPending() bool {
	return c.Status == ConflictPending
}

// Involves reports whether the conflict is about entityID between exactly
// the given users, in any order
func (c ConflictResolution) Involves(entityID string, users []string) bool {
	if c.EntityID != entityID || len(c.ConflictingUsers) != len(users) {
		return false
	}
	a := append([]string{}, c.ConflictingUsers...)
	b := append([]string{}, users...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (c ConflictResolution) Clone() ConflictResolution {
	out := c
	out.ConflictingUsers = append([]string{}, c.ConflictingUsers...)
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
