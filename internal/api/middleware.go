package api

import (
	"context"
	"net/http"

	"github.com/gamewake/gamewake/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireAuth resolves the bearer credential to a user id and stores it on
// the request context. Any credential failure is a generic 401; no detail
// leaks to the caller.
func RequireAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifier.UserID(r.Header.Get("Authorization"))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
