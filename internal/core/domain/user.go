package domain

import (
	"net/url"
	"time"
)

const avatarBaseURL = "https://api.dicebear.com/6.x/initials/svg?seed="

// User models a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Availability reports whether a username and an email are free to register.
// A field that was not checked is reported as available.
type Availability struct {
	EmailAvailable    bool `json:"emailAvailable"`
	UsernameAvailable bool `json:"usernameAvailable"`
}

// AvatarURL returns the initials avatar seeded by username.
func AvatarURL(username string) string {
	return avatarBaseURL + url.QueryEscape(username)
}
