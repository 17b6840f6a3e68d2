package service

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test_secret_key_1234567890")

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService(testSecret, DefaultCookiePolicy)

	token, attrs, err := svc.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	userID, ok := svc.Verify(token)
	if !ok || userID != "user-42" {
		t.Fatalf("expected user-42, got %q ok=%v", userID, ok)
	}

	if attrs.Name != "auth_token" || !attrs.HTTPOnly || !attrs.Secure {
		t.Fatalf("unexpected cookie attributes: %+v", attrs)
	}
	if attrs.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected strict same-site, got %v", attrs.SameSite)
	}
	if attrs.MaxAgeMillis != 15*24*60*60*1000 {
		t.Fatalf("unexpected max age: %d", attrs.MaxAgeMillis)
	}
}

func TestTokenService_ExpiryIsFifteenDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, DefaultCookiePolicy, WithClock(func() time.Time { return now }))

	token, _, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(15 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %v", claims.ExpiresAt.Time)
	}
}

func TestTokenService_VerifyRejects(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTokenService(testSecret, DefaultCookiePolicy, WithClock(func() time.Time { return issuedAt }))
	token, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := NewTokenService(testSecret, DefaultCookiePolicy, WithClock(func() time.Time {
		return issuedAt.Add(SessionTTL + time.Second)
	}))
	otherSecret := NewTokenService([]byte("different_secret_key"), DefaultCookiePolicy, WithClock(func() time.Time { return issuedAt }))
	sameTime := NewTokenService(testSecret, DefaultCookiePolicy, WithClock(func() time.Time { return issuedAt }))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "user-1",
		"exp":    issuedAt.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "user-1"}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": issuedAt.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		svc   *TokenService
		token string
	}{
		{"expired", later, token},
		{"wrong secret", otherSecret, token},
		{"empty", sameTime, ""},
		{"malformed", sameTime, "invalid.token.here"},
		{"tampered", sameTime, token + "tampered"},
		{"alg none", sameTime, noneToken},
		{"missing expiry", sameTime, noExpiry},
		{"missing user id", sameTime, noUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if userID, ok := tt.svc.Verify(tt.token); ok || userID != "" {
				t.Fatalf("expected invalid, got %q", userID)
			}
		})
	}
}

func TestTokenService_Cookies(t *testing.T) {
	svc := NewTokenService(testSecret, CookiePolicy{Secure: true, SameSite: http.SameSiteLaxMode})

	c := svc.Cookie("tok")
	if c.Name != "auth_token" || c.Value != "tok" || c.Path != "/" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie flags: %+v", c)
	}
	if c.MaxAge != 15*24*60*60 {
		t.Fatalf("unexpected max age: %d", c.MaxAge)
	}

	cleared := svc.ClearCookie()
	if cleared.Name != "auth_token" || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("unexpected clear cookie: %+v", cleared)
	}
	if !strings.Contains(cleared.String(), "Max-Age=0") {
		t.Fatalf("expected Max-Age=0 in %q", cleared.String())
	}
}

func TestNewTokenService_DefaultsToStrictSameSite(t *testing.T) {
	svc := NewTokenService(testSecret, CookiePolicy{Secure: true})
	if got := svc.Cookie("tok").SameSite; got != http.SameSiteStrictMode {
		t.Fatalf("expected strict, got %v", got)
	}
}
