// Package model defines data structures for the messaging core.
package model

// User is the typed profile record backing a chat participant. Identity
// documents live under the "users" collection and are created by the identity
// provider on signup; this subsystem only reads them.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Online    bool   `json:"online,omitempty"`
}

// DisplayName is the single defaulting rule for presenting a user: full name
// when both parts are set, whichever part exists otherwise, id as a last
// resort.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.ID
	}
}
