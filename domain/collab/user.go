// Package collab holds the records the collaboration trackers own:
// presence, change history, conflicts and notifications.
package collab

// User is the display identity of a collaborator
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// DisplayName returns the best human-readable name for u
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	case u.ID != "":
		return u.ID
	default:
		return "Someone"
	}
}
