package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the configured platform token has
// already expired. Submissions are refused before any network call.
var ErrTokenExpired = errors.New("platform token expired")

// TokenInfo is a decoded view of the platform-issued bearer JWT. The agent
// only bears the token; it never verifies the signature. Verification
// belongs to the backend services.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect decodes the token without verification to expose subject and
// expiry for logging and for the pre-flight expiry check.
func Inspect(token string) (*TokenInfo, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	info := &TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// CheckUsable reports an error when the token is decodable and already
// expired. An empty or opaque token passes: the backend has the final say.
func CheckUsable(token string) error {
	if token == "" {
		return nil
	}
	info, err := Inspect(token)
	if err != nil {
		return nil
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, info.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
