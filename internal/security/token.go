package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenWithoutExpiry = errors.New("token has no expiry")

// UpstreamClaims mirrors the claims the account API puts in its access and
// refresh tokens. The portal never holds the signing key, so these are read
// without verification and only used for bookkeeping.
type UpstreamClaims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

func InspectToken(tokenStr string) (*UpstreamClaims, error) {
	claims := &UpstreamClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

func TokenExpiry(tokenStr string) (time.Time, error) {
	claims, err := InspectToken(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenWithoutExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// PersistTTL is how long session keys backed by refreshToken should live:
// until the token expires, never longer than max. Opaque tokens get max.
func PersistTTL(refreshToken string, max time.Duration, now time.Time) time.Duration {
	exp, err := TokenExpiry(refreshToken)
	if err != nil {
		return max
	}
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return time.Second
	}
	if ttl > max {
		return max
	}
	return ttl
}
