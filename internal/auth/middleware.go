package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "party_claims"

// Middleware returns an HTTP middleware that validates party tokens.
// The token is read from the Authorization header (Bearer scheme) or, for
// websocket upgrades, from the token query parameter. The claims are stored
// in the request context.
func Middleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := tokenFromRequest(r)
			if !ok {
				http.Error(w, `{"error":"invalid authorization format"}`, http.StatusUnauthorized)
				return
			}
			if tokenStr == "" {
				http.Error(w, `{"error":"missing party token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenStr)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest returns false when an Authorization header is present but
// malformed.
func tokenFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.URL.Query().Get("token"), true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// ClaimsFromContext extracts the authenticated party from the request context.
func ClaimsFromContext(ctx context.Context) *PartyClaims {
	c, _ := ctx.Value(claimsKey).(*PartyClaims)
	return c
}
