package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"socialchat/internal/auth"
	"socialchat/internal/config"
)

// contextKey is a private type for context values, avoiding key collisions.
type contextKey string

// UserIDKey stores the authenticated user's ID in the request context.
const UserIDKey contextKey = "userID"

// UsernameKey stores the authenticated username in the request context.
const UsernameKey contextKey = "username"

// ClaimsKey stores the full JWT claims in the request context.
const ClaimsKey contextKey = "claims"

// AuthMiddleware validates the bearer token and stores the caller's identity
// in the request context. Requests without a valid token are rejected with
// the standard failure envelope.
func AuthMiddleware(next http.Handler, authCfg config.AuthConfig, blacklist auth.TokenBlacklist) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthError(w, "missing authorization token")
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
			writeAuthError(w, "authorization header must be of the form Bearer {token}")
			return
		}

		claims, err := auth.ValidateToken(r.Context(), headerParts[1], authCfg.JWTSecretKey, blacklist)
		if err != nil {
			writeAuthError(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext retrieves the authenticated user ID, if present.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetUsernameFromContext retrieves the authenticated username, if present.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetClaimsFromContext retrieves the full JWT claims, if present.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message})
}
