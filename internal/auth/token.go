package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a bearer token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// Claims is the subset of access-token claims the storefront looks at.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ErrNotJWT is returned by ParseClaims for tokens it cannot decode.
var ErrNotJWT = errors.New("token is not a JWT")

// ParseClaims reads sub, role and exp from a JWT without checking its signature.
// The catalog API is the one that verifies it.
func ParseClaims(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrNotJWT)
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", ErrNotJWT)
	}

	out := &Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.Role = roleFrom(claims)
	return out, nil
}

// roleFrom reads a flat "role" claim, falling back to Keycloak's realm_access.roles.
func roleFrom(claims jwt.MapClaims) string {
	if role, ok := claims["role"].(string); ok {
		return role
	}
	realm, ok := claims["realm_access"].(map[string]interface{})
	if !ok {
		return ""
	}
	roles, _ := realm["roles"].([]interface{})
	for _, r := range roles {
		if r == "admin" {
			return "admin"
		}
	}
	return ""
}
