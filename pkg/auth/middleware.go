package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/device-cloud/pkg/oidcprovider"
	"github.com/tendant/device-cloud/pkg/session"
)

type contextKey string

const claimsCtx contextKey = "auth_claims"

// Middleware returns a middleware that requires an authenticated session.
// The session's stored ID token must verify against the active provider and
// must not be expired. Every failure yields the same 401 so callers cannot
// tell which sub-check rejected them; the detail is logged instead.
func Middleware(sessions *session.Manager, provider oidcprovider.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := sessions.Load(r)
			if err != nil || data.IDToken == "" {
				slog.Debug("Unauthenticated request to protected resource")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := provider.Verify(r.Context(), data.IDToken)
			if err != nil {
				slog.Warn("Session token rejected", "error", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !claims.Expiry.After(time.Now()) {
				slog.Debug("Session token expired", "sub", claims.Subject)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsCtx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the verified claims for an authenticated request, or
// nil when the request did not pass through Middleware.
func GetClaims(r *http.Request) *oidcprovider.Claims {
	claims, _ := r.Context().Value(claimsCtx).(*oidcprovider.Claims)
	return claims
}
