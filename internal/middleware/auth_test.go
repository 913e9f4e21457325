package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/todo-platform/task-api/internal/app/auth"
	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage/memory"
	"github.com/todo-platform/task-api/internal/logging"
)

func newAuthFixture(t *testing.T) (*AuthMiddleware, string) {
	t.Helper()
	manager := auth.NewManager("test-secret", time.Minute, time.Hour, memory.New())
	pair, err := manager.IssuePair(user.User{ID: "u-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	mw := NewAuthMiddleware(manager, logging.NewDefault("test"), []string{"/healthz"})
	return mw, pair.Access
}

func serveAuth(mw *AuthMiddleware, path, header string) (*httptest.ResponseRecorder, string) {
	var seenUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = logging.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)
	return rec, seenUser
}

func TestAuthMiddleware(t *testing.T) {
	mw, access := newAuthFixture(t)

	rec, seenUser := serveAuth(mw, "/api/v1/tasks", "Bearer "+access)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rec.Code)
	}
	if seenUser != "u-1" {
		t.Fatalf("user id not propagated, got %q", seenUser)
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	mw, access := newAuthFixture(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic " + access},
		{"malformed", "Bearer"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, tc := range cases {
		rec, _ := serveAuth(mw, "/api/v1/tasks", tc.header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", tc.name, rec.Code)
		}
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	mw, _ := newAuthFixture(t)

	rec, _ := serveAuth(mw, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("skip path: status %d", rec.Code)
	}
}
