package ports

import "net/http"

// CookieAttributes fixes how a session token travels to the client.
type CookieAttributes struct {
	Name         string
	Path         string
	HTTPOnly     bool
	Secure       bool
	SameSite     http.SameSite
	MaxAgeMillis int64
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(userID string) (string, CookieAttributes, error)
	Verify(token string) (string, bool)
	Cookie(token string) *http.Cookie
	ClearCookie() *http.Cookie
}
