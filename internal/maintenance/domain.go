// Package maintenance tracks equipment maintenance tasks.
package maintenance

import (
	"errors"
	"time"
)

// Priority values ordered from most to least urgent.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Status values for a task.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Task is a unit of maintenance work on a piece of equipment.
type Task struct {
	ID          int64      `json:"id"`
	Equipment   string     `json:"equipment"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssignedTo  string     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskInput is the editable part of a Task. DueDate is YYYY-MM-DD or empty.
type TaskInput struct {
	Equipment   string `json:"equipment" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	Priority    string `json:"priority" validate:"required,oneof=high medium low"`
	AssignedTo  string `json:"assigned_to" validate:"max=120"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
}

// PriorityRank orders priorities for listing; unknown values sort last.
func PriorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// IsOverdue reports whether t is still open past its due date.
func (t Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusCompleted || t.DueDate == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(t.DueDate.Year(), t.DueDate.Month(), t.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// ErrTaskNotFound is returned for unknown task ids.
var ErrTaskNotFound = errors.New("maintenance: task not found")
