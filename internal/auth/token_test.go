package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("any-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	info, err := Inspect(signedToken(t, "user-42", exp))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if info.Subject != "user-42" {
		t.Errorf("expected subject user-42, got %s", info.Subject)
	}
	if !info.ExpiresAt.Equal(exp) {
		t.Errorf("expected expiry %s, got %s", exp, info.ExpiresAt)
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	if _, err := Inspect("not-a-jwt"); err == nil {
		t.Error("expected error for opaque token")
	}
}

func TestCheckUsable(t *testing.T) {
	if err := CheckUsable(""); err != nil {
		t.Errorf("empty token must pass, got %v", err)
	}
	// Opaque tokens pass; the backend decides.
	if err := CheckUsable("opaque-api-key"); err != nil {
		t.Errorf("opaque token must pass, got %v", err)
	}
	if err := CheckUsable(signedToken(t, "u", time.Now().Add(time.Hour))); err != nil {
		t.Errorf("valid token must pass, got %v", err)
	}
	if err := CheckUsable(signedToken(t, "u", time.Time{})); err != nil {
		t.Errorf("token without expiry must pass, got %v", err)
	}

	err := CheckUsable(signedToken(t, "u", time.Now().Add(-time.Minute)))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}
