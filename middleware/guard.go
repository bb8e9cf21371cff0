package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Agossa1/marketauth"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims stored by [RequireAccess].
func ClaimsFromContext(ctx context.Context) (*marketauth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*marketauth.Claims)
	return claims, ok
}

// RequireAccess rejects requests without a valid bearer access token and
// stores the verified claims in the request context. Token failures answer
// 401; a missing key or backend answers 503.
func RequireAccess(engine *marketauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				if errors.Is(err, marketauth.ErrKeyUnavailable) || errors.Is(err, marketauth.ErrUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
