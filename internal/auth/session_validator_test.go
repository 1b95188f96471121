package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSecret = "session-secret"
	testSessionIssuer = "groove-sessions"
	testSessionCookie = "groove_session"
)

func newTestValidator(t *testing.T, clock func() time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testSessionCookie,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func mintSessionToken(t *testing.T, secret, issuer, userID string, now time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:          userID,
		UserDisplayName: "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign session token: %v", err)
	}
	return signed
}

func TestSessionValidatorAcceptsValidToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	claims, err := validator.ValidateToken(mintSessionToken(t, testSessionSecret, testSessionIssuer, "user-1", now))
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id %s", claims.UserID)
	}
	if claims.UserDisplayName != "Test User" {
		t.Fatalf("unexpected display name %s", claims.UserDisplayName)
	}
}

func TestSessionValidatorRejectsWrongIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	_, err := validator.ValidateToken(mintSessionToken(t, testSessionSecret, "someone-else", "user-1", now))
	if err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestSessionValidatorRejectsExpiredToken(t *testing.T) {
	issued := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return issued.Add(2 * time.Hour) })

	_, err := validator.ValidateToken(mintSessionToken(t, testSessionSecret, testSessionIssuer, "user-1", issued))
	if err != ErrExpiredSessionToken {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionValidatorRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	_, err := validator.ValidateToken(mintSessionToken(t, "other-secret", testSessionIssuer, "user-1", now))
	if err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestSessionValidatorReadsCookieFromRequest(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookie,
		Value: mintSessionToken(t, testSessionSecret, testSessionIssuer, "user-7", now),
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("expected cookie validation to succeed: %v", err)
	}
	if claims.UserID != "user-7" {
		t.Fatalf("unexpected user id %s", claims.UserID)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := validator.ValidateRequest(bare); err != ErrMissingSessionToken {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewSessionValidatorValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config SessionValidatorConfig
	}{
		{name: "missing secret", config: SessionValidatorConfig{Issuer: testSessionIssuer, CookieName: testSessionCookie}},
		{name: "missing issuer", config: SessionValidatorConfig{SigningSecret: []byte("x"), CookieName: testSessionCookie}},
		{name: "missing cookie name", config: SessionValidatorConfig{SigningSecret: []byte("x"), Issuer: testSessionIssuer}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewSessionValidator(test.config); err == nil {
				t.Fatalf("expected constructor error")
			}
		})
	}
}
