// Package task defines the task domain model.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the task workflow state.
type Status string

// Priority is the task urgency level.
type Priority string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// MinTitleLength is the minimum accepted title length.
const MinTitleLength = 3

// ErrTitleTooShort rejects titles under the minimum length.
var ErrTitleTooShort = fmt.Errorf("title must be at least %d characters", MinTitleLength)

// Task is a unit of work owned by a single user.
type Task struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      Status     `json:"status" db:"status"`
	Priority    Priority   `json:"priority" db:"priority"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
	UserID      string     `json:"user_id" db:"user_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ValidStatus reports whether s is a known workflow state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known urgency level.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Validate checks the task's field constraints. Ownership and due-date rules
// are enforced by the service layer.
func (t Task) Validate() error {
	if len(strings.TrimSpace(t.Title)) < MinTitleLength {
		return ErrTitleTooShort
	}
	if !ValidStatus(t.Status) {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if !ValidPriority(t.Priority) {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	return nil
}

// PriorityRank maps priorities to a comparable urgency rank.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Supported orderings for task listings. A leading dash means descending.
const (
	OrderCreatedAtAsc  = "created_at"
	OrderCreatedAtDesc = "-created_at"
	OrderDueDateAsc    = "due_date"
	OrderDueDateDesc   = "-due_date"
	OrderPriorityAsc   = "priority"
	OrderPriorityDesc  = "-priority"
)

// ListFilter narrows and orders a task listing. Zero values mean "no
// constraint"; the default ordering is newest first.
type ListFilter struct {
	Status   Status
	Priority Priority
	DueDate  *time.Time
	Search   string
	OrderBy  string
	Limit    int
	Offset   int
}

// Validate rejects unknown filter values before they reach a store.
func (f ListFilter) Validate() error {
	if f.Status != "" && !ValidStatus(f.Status) {
		return fmt.Errorf("unknown status %q", f.Status)
	}
	if f.Priority != "" && !ValidPriority(f.Priority) {
		return fmt.Errorf("unknown priority %q", f.Priority)
	}
	switch f.OrderBy {
	case "", OrderCreatedAtAsc, OrderCreatedAtDesc, OrderDueDateAsc, OrderDueDateDesc, OrderPriorityAsc, OrderPriorityDesc:
	default:
		return fmt.Errorf("unsupported ordering %q", f.OrderBy)
	}
	if f.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if f.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}
