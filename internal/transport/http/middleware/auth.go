package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/auth-otp-api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// TokenVerifier validates a bearer token of the expected type.
type TokenVerifier interface {
	Verify(tokenStr string, expected jwtinfra.TokenType, checkExpiry bool) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer access token and injects
// its claims into the request context. Only tokens from verified sessions
// pass; an unverified pair exists solely to complete the OTP exchange.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := verifier.Verify(tokenStr, jwtinfra.TokenTypeAccess, true)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if !claims.Verified {
				writeJSONError(w, http.StatusUnauthorized, "session not verified")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
