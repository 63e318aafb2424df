package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-storefront/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// NewMiddleware discovers the issuer and returns a middleware that only lets through
// requests carrying a valid admin token.
func NewMiddleware(ctx context.Context, issuer string, log *logger.Logger) (func(http.Handler) http.Handler, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC issuer not set")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: tokens are minted for the SPA, not for this service
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return Middleware(verifier, log), nil
}

// Middleware checks bearer tokens with verifier and requires the admin role.
func Middleware(verifier *oidc.IDTokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			idToken, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			var claims struct {
				Sub         string `json:"sub"`
				Role        string `json:"role"`
				RealmAccess struct {
					Roles []string `json:"roles"`
				} `json:"realm_access"`
			}
			if err := idToken.Claims(&claims); err != nil {
				http.Error(w, "failed to parse claims", http.StatusUnauthorized)
				return
			}

			if !isAdmin(claims.Role, claims.RealmAccess.Roles) {
				log.LogSecurity("AUTH_FORBIDDEN", fmt.Sprintf("user %s denied %s %s", claims.Sub, r.Method, r.URL.Path))
				http.Error(w, "admin role required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isAdmin(role string, realmRoles []string) bool {
	if role == "admin" {
		return true
	}
	for _, r := range realmRoles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
