package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry returns the exp claim of a JWT-shaped token without verifying
// its signature; the server stays the authority on validity. Opaque tokens
// and tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
