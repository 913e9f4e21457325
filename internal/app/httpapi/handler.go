// Package httpapi exposes the REST API over the application services.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/todo-platform/task-api/internal/app"
	"github.com/todo-platform/task-api/internal/app/auth"
	"github.com/todo-platform/task-api/internal/app/domain/task"
	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/metrics"
	"github.com/todo-platform/task-api/internal/app/services/tasks"
	"github.com/todo-platform/task-api/internal/app/services/users"
	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/logging"
)

// ReadyProbe reports whether the service's dependencies are reachable.
type ReadyProbe func(ctx context.Context) error

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	ready ReadyProbe
}

// AuthSkipPaths are the routes reachable without a bearer token.
var AuthSkipPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/v1/user/create",
	"/api/v1/user/login",
	"/api/v1/user/token",
	"/api/v1/user/token/refresh",
}

// NewHandler returns a mux exposing the REST API. ready may be nil when no
// external dependency exists (in-memory mode).
func NewHandler(application *app.Application, ready ReadyProbe) http.Handler {
	h := &handler{app: application, ready: ready}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.healthz)
	mux.HandleFunc("/readyz", h.readyz)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/api/v1/user/create", h.userCreate)
	mux.HandleFunc("/api/v1/user/login", h.userLogin)
	mux.HandleFunc("/api/v1/user/token", h.userLogin) // token-obtain alias
	mux.HandleFunc("/api/v1/user/logout", h.userLogout)
	mux.HandleFunc("/api/v1/user/token/refresh", h.tokenRefresh)
	mux.HandleFunc("/api/v1/user/me", h.userMe)

	mux.HandleFunc("/api/v1/tasks", h.tasks)
	mux.HandleFunc("/api/v1/tasks/", h.taskResource)

	return mux
}

// --- ops --------------------------------------------------------------------

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "task-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- user -------------------------------------------------------------------

func (h *handler) userCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload users.RegisterInput
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Users.Register(r.Context(), payload)
	if err != nil {
		writeError(w, registerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) userLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	switch {
	case errors.Is(err, users.ErrUserDisabled):
		metrics.RecordLogin("disabled")
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		metrics.RecordLogin("invalid")
		writeError(w, http.StatusUnauthorized, users.ErrInvalidCredentials)
		return
	}

	pair, err := h.app.Auth.IssuePair(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.RecordLogin("success")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    u,
	})
}

func (h *handler) userLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Refresh == "" {
		writeError(w, http.StatusBadRequest, errors.New("refresh token required"))
		return
	}

	if err := h.app.Auth.Revoke(r.Context(), payload.Refresh); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid refresh token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (h *handler) tokenRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	claims, err := h.app.Auth.VerifyRefresh(r.Context(), payload.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	u, err := h.app.Users.Get(r.Context(), claims.UserID)
	if err != nil || !u.IsActive {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	pair, err := h.app.Auth.Refresh(r.Context(), payload.Refresh, u)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *handler) userMe(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		u, err := h.app.Users.Get(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, u)

	case http.MethodPatch:
		var payload users.UpdateInput
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Users.Update(r.Context(), userID, payload)
		if err != nil {
			writeError(w, registerStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- tasks ------------------------------------------------------------------

func (h *handler) tasks(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload tasks.CreateInput
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tasks.Create(r.Context(), userID, payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metrics.RecordTaskMutation("create")
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		filter, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		list, err := h.app.Tasks.List(r.Context(), userID, filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if list == nil {
			list = []task.Task{}
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) taskResource(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	taskID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/tasks"), "/")
	if taskID == "" || strings.Contains(taskID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.app.Tasks.Get(r.Context(), userID, taskID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case http.MethodPatch:
		var payload tasks.UpdateInput
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Tasks.Update(r.Context(), userID, taskID, payload)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		metrics.RecordTaskMutation("update")
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Tasks.Delete(r.Context(), userID, taskID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		metrics.RecordTaskMutation("delete")
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func parseListFilter(r *http.Request) (task.ListFilter, error) {
	q := r.URL.Query()
	filter := task.ListFilter{
		Status:   task.Status(q.Get("status")),
		Priority: task.Priority(q.Get("priority")),
		Search:   q.Get("search"),
		OrderBy:  q.Get("ordering"),
	}

	if raw := q.Get("due_date"); raw != "" {
		due, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return task.ListFilter{}, errors.New("due_date must be formatted YYYY-MM-DD")
		}
		filter.DueDate = &due
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return task.ListFilter{}, errors.New("limit must be an integer")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return task.ListFilter{}, errors.New("offset must be an integer")
		}
		filter.Offset = offset
	}

	return filter, filter.Validate()
}

// --- helpers ----------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrDueDateInPast),
		errors.Is(err, task.ErrTitleTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func registerStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, users.ErrPasswordMismatch),
		errors.Is(err, users.ErrPasswordTooShort),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrNameTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
