package httpadapter

import (
	"context"
	"net/http"
	"strings"
)

const userIDHeader = "X-User-Id"

type userIDContextKey struct{}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey{}).(string)
	return userID
}

// authMiddleware checks the bearer API key and binds the caller
// identity from the gateway-provided user header. An empty configured
// key disables the key check for local development; the identity header
// is always required.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if header == "" || token != apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing api key"})
				return
			}
		}

		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + userIDHeader + " header"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
