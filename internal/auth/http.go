// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts the bearer token and attaches the requester to context

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/store"
)

// UserStore defines what the middleware needs from storage
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware creates an HTTP middleware that extracts and validates JWT
// bearer tokens, looks the user up, and attaches the Requester to the
// request context.
func Middleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if errors.Is(err, store.ErrNotFound) {
				writeUnauthorized(w, "unknown user")
				return
			}
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requesterFromUser(user))))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
