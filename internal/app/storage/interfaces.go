package storage

import (
	"context"
	"time"

	"github.com/todo-platform/task-api/internal/app/domain/task"
	"github.com/todo-platform/task-api/internal/app/domain/user"
)

// UserStore persists user accounts. Missing rows surface as sql.ErrNoRows
// regardless of backend; duplicate emails surface as ErrEmailTaken.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// TaskStore persists tasks. All reads and writes are scoped to the owning
// user id; a task belonging to another user behaves as a missing row.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, userID, id string) (task.Task, error)
	ListTasks(ctx context.Context, userID string, filter task.ListFilter) ([]task.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
}

// TokenStore persists the refresh-token denylist. Tokens are keyed by their
// JWT id and kept until their natural expiry.
type TokenStore interface {
	DenyToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenDenied(ctx context.Context, jti string) (bool, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
