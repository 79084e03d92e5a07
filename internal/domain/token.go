package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims reads the subject and expiry of an access token without
// verifying its signature. Tokens reach the BFF straight from the identity
// provider, so only their payload is inspected.
func TokenClaims(token string) (subject string, expiresAt time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", time.Time{}, false
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.Subject, expiresAt, true
}

// TokenSubject returns the sub claim of an access token, or "" when the
// token cannot be parsed.
func TokenSubject(token string) string {
	sub, _, _ := TokenClaims(token)
	return sub
}
