// Package tasks implements owner-scoped task management.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/todo-platform/task-api/internal/app/domain/task"
	"github.com/todo-platform/task-api/internal/app/storage"
	"github.com/todo-platform/task-api/internal/logging"
)

// ErrDueDateInPast rejects due dates before today.
var ErrDueDateInPast = errors.New("due date cannot be in the past")

// Service manages tasks. Every operation is scoped to the calling user;
// tasks owned by someone else are indistinguishable from missing ones.
type Service struct {
	store storage.TaskStore
	log   *logging.Logger
	now   func() time.Time
}

// New builds the service.
func New(store storage.TaskStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("tasks")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// CreateInput is the task creation payload. Status and priority default to
// pending/medium when empty.
type CreateInput struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      task.Status   `json:"status"`
	Priority    task.Priority `json:"priority"`
	DueDate     *time.Time    `json:"due_date"`
}

// Create validates and stores a new task for userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (task.Task, error) {
	t := task.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		UserID:      userID,
	}
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	if err := s.checkDueDate(t.DueDate); err != nil {
		return task.Task{}, err
	}

	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithContext(ctx).WithField("task_id", created.ID).Debug("task created")
	return created, nil
}

// Get returns one of userID's tasks.
func (s *Service) Get(ctx context.Context, userID, id string) (task.Task, error) {
	return s.store.GetTask(ctx, userID, id)
}

// List returns userID's tasks narrowed by filter.
func (s *Service) List(ctx context.Context, userID string, filter task.ListFilter) ([]task.Task, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, userID, filter)
}

// UpdateInput is the partial update payload. Nil fields are unchanged;
// ClearDueDate removes an existing due date.
type UpdateInput struct {
	Title        *string        `json:"title"`
	Description  *string        `json:"description"`
	Status       *task.Status   `json:"status"`
	Priority     *task.Priority `json:"priority"`
	DueDate      *time.Time     `json:"due_date"`
	ClearDueDate bool           `json:"clear_due_date"`
}

// Update applies a partial update to one of userID's tasks.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (task.Task, error) {
	t, err := s.store.GetTask(ctx, userID, id)
	if err != nil {
		return task.Task{}, err
	}

	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.ClearDueDate {
		t.DueDate = nil
	} else if in.DueDate != nil {
		t.DueDate = in.DueDate
		if err := s.checkDueDate(t.DueDate); err != nil {
			return task.Task{}, err
		}
	}

	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	return s.store.UpdateTask(ctx, t)
}

// Delete removes one of userID's tasks.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteTask(ctx, userID, id)
}

// checkDueDate enforces date-granular "not in the past": anything from the
// start of today is fine.
func (s *Service) checkDueDate(due *time.Time) error {
	if due == nil {
		return nil
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if due.UTC().Before(today) {
		return ErrDueDateInPast
	}
	return nil
}
