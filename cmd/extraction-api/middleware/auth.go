// Package middleware provides HTTP middleware for the extraction API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Context keys for request-scoped values.
type contextKey string

// OwnerIDKey is the context key for the authenticated owner id.
const OwnerIDKey contextKey = "owner_id"

// AuthConfig holds caller authentication configuration. Keys maps API key
// strings to owner ids. With Enabled false the X-Owner-ID header is trusted
// as the caller's identity, for development only; it is still required, so
// dev callers never collapse onto a shared owner.
type AuthConfig struct {
	Enabled bool
	Keys    map[string]uuid.UUID
}

// Auth returns a middleware that resolves the caller's owner id into the
// request context, rejecting unauthenticated requests when auth is enabled.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				v := r.Header.Get("X-Owner-ID")
				if v == "" {
					http.Error(w, `{"error": "missing X-Owner-ID header"}`, http.StatusUnauthorized)
					return
				}
				ownerID, err := uuid.Parse(v)
				if err != nil {
					http.Error(w, `{"error": "invalid X-Owner-ID header"}`, http.StatusBadRequest)
					return
				}
				ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, `{"error": "invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			ownerID, ok := cfg.Keys[parts[1]]
			if !ok {
				http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerID extracts the authenticated owner id from the request context.
func OwnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OwnerIDKey).(uuid.UUID)
	return id, ok
}
