package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/todo-platform/task-api/internal/config"
)

// debugConfig is an in-memory configuration: no database, no redis.
func debugConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			SecretKey:  "test-secret",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, Burst: 200},
		Logging:   config.LoggingConfig{Level: "error", Format: "json"},
		Debug:     true,
	}
}

func newRuntime(t *testing.T) *Application {
	t.Helper()
	a, err := NewApplication(context.Background(), debugConfig())
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	return a
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApplicationWithoutDatabase(t *testing.T) {
	a := newRuntime(t)

	if a.db != nil {
		t.Fatal("no database configured, but a pool was opened")
	}
	if a.httpServer == nil || a.httpServer.Addr != "127.0.0.1:8080" {
		t.Fatalf("http server misconfigured: %+v", a.httpServer)
	}
	if a.rateLimiter == nil {
		t.Fatal("rate limiting enabled but no limiter built")
	}
}

func TestHandlerChainServesHealthAndAuth(t *testing.T) {
	a := newRuntime(t)
	h := a.httpServer.Handler

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}

	// Without a database the ready probe is nil and readiness always passes.
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: status %d", rec.Code)
	}

	// Protected routes still require a token through the full chain.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated tasks: status %d", rec.Code)
	}

	rec = postJSON(t, h, "/api/v1/user/create", map[string]string{
		"email":            "runtime@example.com",
		"name":             "Runtime Test",
		"password":         "password123",
		"confirm_password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register through chain: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitKeysAuthenticatedTrafficByUser(t *testing.T) {
	cfg := debugConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1}

	a, err := NewApplication(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	h := a.httpServer.Handler

	rec := postJSON(t, h, "/api/v1/user/create", map[string]string{
		"email":            "limited@example.com",
		"name":             "Limited User",
		"password":         "password123",
		"confirm_password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Log in from a different address so the register request's IP budget
	// does not interfere.
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]string{
		"email":    "limited@example.com",
		"password": "password123",
	})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", &buf)
	loginReq.RemoteAddr = "127.0.0.2:40000"
	loginRec := httptest.NewRecorder()
	h.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", loginRec.Code, loginRec.Body.String())
	}
	var pair struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	authedGet := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("Authorization", "Bearer "+pair.Access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// The budget follows the user, not the address.
	if code := authedGet("127.0.0.3:40000"); code != http.StatusOK {
		t.Fatalf("first authenticated request: status %d", code)
	}
	if code := authedGet("127.0.0.4:40000"); code != http.StatusTooManyRequests {
		t.Fatalf("same user from a new address: status %d", code)
	}
}

func TestRunAndShutdown(t *testing.T) {
	a := newRuntime(t)
	// Pick an ephemeral port so the listener does not collide.
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
