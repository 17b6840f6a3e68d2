package service

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	SessionCookieName = "auth_token"
	SessionTTL        = 15 * 24 * time.Hour
)

// CookiePolicy holds the deployment-dependent cookie attributes.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

// DefaultCookiePolicy is the policy for TLS deployments.
var DefaultCookiePolicy = CookiePolicy{Secure: true, SameSite: http.SameSiteStrictMode}

type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens bound to a user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	policy CookiePolicy
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used to stamp and check expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, policy CookiePolicy, opts ...TokenOption) *TokenService {
	if policy.SameSite == 0 || policy.SameSite == http.SameSiteDefaultMode {
		policy.SameSite = http.SameSiteStrictMode
	}
	s := &TokenService{
		secret: secret,
		ttl:    SessionTTL,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) Issue(userID string) (string, ports.CookieAttributes, error) {
	now := s.now()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", ports.CookieAttributes{}, err
	}
	return token, s.attributes(), nil
}

// Verify returns the embedded user id. Malformed, forged and expired tokens
// are all reported as ok == false.
func (s *TokenService) Verify(token string) (string, bool) {
	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tkn.Valid || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

func (s *TokenService) Cookie(token string) *http.Cookie {
	attrs := s.attributes()
	return &http.Cookie{
		Name:     attrs.Name,
		Value:    token,
		Path:     attrs.Path,
		MaxAge:   int(attrs.MaxAgeMillis / 1000),
		Expires:  s.now().Add(s.ttl),
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	}
}

// ClearCookie returns a cookie that makes the client drop its session.
func (s *TokenService) ClearCookie() *http.Cookie {
	attrs := s.attributes()
	return &http.Cookie{
		Name:     attrs.Name,
		Value:    "",
		Path:     attrs.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	}
}

func (s *TokenService) attributes() ports.CookieAttributes {
	return ports.CookieAttributes{
		Name:         SessionCookieName,
		Path:         "/",
		HTTPOnly:     true,
		Secure:       s.policy.Secure,
		SameSite:     s.policy.SameSite,
		MaxAgeMillis: s.ttl.Milliseconds(),
	}
}
