// Package app wires the domain services over their stores.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/todo-platform/task-api/internal/app/auth"
	"github.com/todo-platform/task-api/internal/app/services/janitor"
	"github.com/todo-platform/task-api/internal/app/services/tasks"
	"github.com/todo-platform/task-api/internal/app/services/users"
	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/app/storage/memory"
	"github.com/todo-platform/task-api/internal/app/system"
	"github.com/todo-platform/task-api/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users  storage.UserStore
	Tasks  storage.TaskStore
	Tokens storage.TokenStore
}

// Options tunes service construction.
type Options struct {
	// SecretKey signs tokens.
	SecretKey string
	// AccessTTL and RefreshTTL control token lifetimes.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// AuthCache is the optional authenticated-user cache.
	AuthCache users.Cache
	// JanitorSchedule is the denylist purge cron expression.
	JanitorSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Users *users.Service
	Tasks *tasks.Service
	Auth  *auth.Manager
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Tokens == nil {
		stores.Tokens = mem
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, opts.AuthCache, log)
	taskService := tasks.New(stores.Tasks, log)
	authManager := auth.NewManager(opts.SecretKey, opts.AccessTTL, opts.RefreshTTL, stores.Tokens)

	if err := manager.Register(janitor.New(stores.Tokens, opts.JanitorSchedule, log)); err != nil {
		return nil, fmt.Errorf("register janitor: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		Users:   userService,
		Tasks:   taskService,
		Auth:    authManager,
	}, nil
}

// Start launches the background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.StartAll(ctx)
}

// Stop shuts the background services down.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}
