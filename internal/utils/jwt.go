package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token cannot be parsed.
var ErrInvalidToken = errors.New("invalid session token")

// The client never holds the signing key: tokens are inspected without
// verification, only to avoid uploads that the backend would reject anyway.
func parseUnverified(tokenString string) (jwt.MapClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	return claims, nil
}

// TokenExpired reports whether the session token expires before now+leeway.
// A token without an exp claim never expires.
//
// Example usage:
//
//	expired, err := utils.TokenExpired(raw, time.Now(), 30*time.Second)
func TokenExpired(tokenString string, now time.Time, leeway time.Duration) (bool, error) {
	claims, err := parseUnverified(tokenString)
	if err != nil {
		return false, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if exp == nil {
		return false, nil
	}

	return !now.Add(leeway).Before(exp.Time), nil
}

// TokenSubject returns the "sub" claim of the session token, the backend
// user id.
func TokenSubject(tokenString string) (string, error) {
	claims, err := parseUnverified(tokenString)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if sub == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return sub, nil
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Split(strings.TrimSpace(authorizationHeader), " ")
	if len(parts) != 2 || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
