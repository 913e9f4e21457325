// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/todo-platform/task-api/internal/app/domain/task"
	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = user.NormalizeEmail(u.Email)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_active, is_staff, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.IsActive, u.IsStaff, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.Email = user.NormalizeEmail(u.Email)
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, is_active = $5, is_staff = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.IsActive, u.IsStaff, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrEmailTaken
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, name, password_hash, is_active, is_staff, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, name, password_hash, is_active, is_staff, created_at, updated_at
		FROM users
		WHERE email = $1
	`, user.NormalizeEmail(email))
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// --- TaskStore --------------------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, due_date, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.UserID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	existing, err := s.GetTask(ctx, t.UserID, t.ID)
	if err != nil {
		return task.Task{}, err
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`, t.ID, t.UserID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (task.Task, error) {
	var t task.Task
	err := s.db.GetContext(ctx, &t, `
		SELECT id, title, description, status, priority, due_date, user_id, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, userID string, filter task.ListFilter) ([]task.Task, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, title, description, status, priority, due_date, user_id, created_at, updated_at
		FROM tasks
		WHERE user_id = $1`)
	args := []interface{}{userID}

	appendCond := func(cond string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&query, " AND %s $%d", cond, len(args))
	}

	if filter.Status != "" {
		appendCond("status =", filter.Status)
	}
	if filter.Priority != "" {
		appendCond("priority =", filter.Priority)
	}
	if filter.DueDate != nil {
		appendCond("due_date =", filter.DueDate.UTC().Truncate(24*time.Hour))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		fmt.Fprintf(&query, " AND (title ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	query.WriteString(" ORDER BY " + orderClause(filter.OrderBy))

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&query, " OFFSET $%d", len(args))
	}

	var result []task.Task
	if err := s.db.SelectContext(ctx, &result, query.String(), args...); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- TokenStore -------------------------------------------------------------

func (s *Store) DenyToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO denied_refresh_tokens (jti, expires_at, denied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt.UTC(), time.Now().UTC())
	return err
}

func (s *Store) IsTokenDenied(ctx context.Context, jti string) (bool, error) {
	var denied bool
	err := s.db.GetContext(ctx, &denied, `
		SELECT EXISTS (
			SELECT 1 FROM denied_refresh_tokens
			WHERE jti = $1 AND expires_at > NOW()
		)
	`, jti)
	if err != nil {
		return false, err
	}
	return denied, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM denied_refresh_tokens WHERE expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// orderClause maps a validated ListFilter ordering to SQL. Priority sorts by
// urgency rank rather than alphabetically.
func orderClause(orderBy string) string {
	const priorityRank = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"
	switch orderBy {
	case task.OrderCreatedAtAsc:
		return "created_at ASC"
	case task.OrderDueDateAsc:
		return "due_date ASC NULLS LAST"
	case task.OrderDueDateDesc:
		return "due_date DESC NULLS LAST"
	case task.OrderPriorityAsc:
		return priorityRank + " ASC, created_at DESC"
	case task.OrderPriorityDesc:
		return priorityRank + " DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
