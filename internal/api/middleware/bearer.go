package middleware

import (
	"context"
	"net/http"

	"github.com/eventleads/server/internal/api/problem"
	"github.com/eventleads/server/internal/auth"
)

const claimsKey contextKey = "session_claims"

// RequireSession validates the Authorization bearer token and places the
// session claims in the request context. Requests without a valid token
// get a 401 problem response.
func RequireSession(jwtManager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
					"Authentication required", err, env)
				return
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
					"Invalid or expired session", err, env)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the session claims placed by RequireSession.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
