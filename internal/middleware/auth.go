// Package middleware provides the HTTP middleware chain for the task API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/todo-platform/task-api/internal/app/auth"
	"github.com/todo-platform/task-api/internal/logging"
)

// AuthMiddleware enforces bearer-token authentication on every path not in
// the skip list.
type AuthMiddleware struct {
	manager   *auth.Manager
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the middleware. skipPaths are matched exactly.
func NewAuthMiddleware(manager *auth.Manager, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{manager: manager, logger: logger, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid Authorization header format")
			return
		}

		claims, err := m.manager.VerifyAccess(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Debug("token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
