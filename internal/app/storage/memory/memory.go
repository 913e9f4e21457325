package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/todo-platform/task-api/internal/app/domain/task"
	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development; missing rows surface as sql.ErrNoRows to match the Postgres
// store.
type Store struct {
	mu           sync.RWMutex
	users        map[string]user.User
	usersByEmail map[string]string
	tasks        map[string]task.Task
	deniedTokens map[string]time.Time
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		tasks:        make(map[string]task.Task),
		deniedTokens: make(map[string]time.Time),
	}
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = user.NormalizeEmail(u.Email)
	if _, exists := s.usersByEmail[u.Email]; exists {
		return user.User{}, storage.ErrEmailTaken
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}

	u.Email = user.NormalizeEmail(u.Email)
	if id, exists := s.usersByEmail[u.Email]; exists && id != u.ID {
		return user.User{}, storage.ErrEmailTaken
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	delete(s.usersByEmail, existing.Email)
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return s.users[id], nil
}

// TaskStore implementation ---------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return task.Task{}, sql.ErrNoRows
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(_ context.Context, userID, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context, userID string, filter task.ListFilter) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []task.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.DueDate != nil {
			if t.DueDate == nil || !sameDate(*t.DueDate, *filter.DueDate) {
				continue
			}
		}
		if filter.Search != "" && !matchesSearch(t, filter.Search) {
			continue
		}
		result = append(result, t)
	}

	sortTasks(result, filter.OrderBy)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.tasks, id)
	return nil
}

// TokenStore implementation --------------------------------------------------

func (s *Store) DenyToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deniedTokens[jti] = expiresAt
	return nil
}

func (s *Store) IsTokenDenied(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.deniedTokens[jti]
	return ok && time.Now().Before(exp), nil
}

func (s *Store) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for jti, exp := range s.deniedTokens {
		if !exp.After(now) {
			delete(s.deniedTokens, jti)
			purged++
		}
	}
	return purged, nil
}

// helpers ---------------------------------------------------------------------

func matchesSearch(t task.Task, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(t.Title), term) ||
		strings.Contains(strings.ToLower(t.Description), term)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sortTasks(tasks []task.Task, orderBy string) {
	less := func(a, b task.Task) bool { return a.CreatedAt.After(b.CreatedAt) }

	switch orderBy {
	case task.OrderCreatedAtAsc:
		less = func(a, b task.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case task.OrderDueDateAsc:
		less = func(a, b task.Task) bool { return dueOrZero(a).Before(dueOrZero(b)) }
	case task.OrderDueDateDesc:
		less = func(a, b task.Task) bool { return dueOrZero(a).After(dueOrZero(b)) }
	case task.OrderPriorityAsc:
		less = func(a, b task.Task) bool { return task.PriorityRank(a.Priority) < task.PriorityRank(b.Priority) }
	case task.OrderPriorityDesc:
		less = func(a, b task.Task) bool { return task.PriorityRank(a.Priority) > task.PriorityRank(b.Priority) }
	}

	sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
}

func dueOrZero(t task.Task) time.Time {
	if t.DueDate == nil {
		return time.Time{}
	}
	return *t.DueDate
}
