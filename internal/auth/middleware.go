/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"pgedge-nla/internal/logging"
)

type contextKey string

const (
	// TokenIDContextKey holds the ID of the token that authenticated the request
	TokenIDContextKey contextKey = "token_id"

	// HealthCheckPath bypasses authentication
	HealthCheckPath = "/health"
)

// TokenIDFromContext returns the authenticated token ID, or "" when the
// request was not authenticated
func TokenIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(TokenIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Middleware validates bearer tokens against store. When enabled is false
// every request passes through.
func Middleware(store *TokenStore, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || r.URL.Path == HealthCheckPath || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Missing Authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				unauthorized(w, "Invalid Authorization header format. Expected: Bearer <token>")
				return
			}

			id, valid, err := store.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				// Details stay in the log
				logging.Warn("token_validation_failed", "error", err)
				unauthorized(w, "Invalid token")
				return
			}
			if !valid {
				unauthorized(w, "Invalid or unknown token")
				return
			}

			ctx := context.WithValue(r.Context(), TokenIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pgedge-nla"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
