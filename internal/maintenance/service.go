package maintenance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tradyx/backoffice/internal/shared"
)

// RepositoryPort abstracts task storage.
type RepositoryPort interface {
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	SetStatus(ctx context.Context, id int64, status string) (Task, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Task, error)
	Overdue(ctx context.Context, day time.Time) ([]Task, error)
}

// Service manages maintenance tasks.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	loc      *time.Location
}

// NewService builds Service. Due dates are interpreted in loc.
func NewService(repo RepositoryPort, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, validate: validator.New(), loc: loc}
}

// Create opens a new task; status defaults to pending.
func (s *Service) Create(ctx context.Context, in TaskInput) (Task, error) {
	t, err := s.build(in)
	if err != nil {
		return Task{}, err
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	out, err := s.repo.Create(ctx, t)
	if err != nil {
		return Task{}, shared.Classify(err, "Could not create the maintenance task")
	}
	return out, nil
}

// Update replaces every editable field of a task.
func (s *Service) Update(ctx context.Context, id int64, in TaskInput) (Task, error) {
	t, err := s.build(in)
	if err != nil {
		return Task{}, err
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.ID = id
	out, err := s.repo.Update(ctx, t)
	if err != nil {
		return Task{}, s.wrap(err, id, "Could not update the maintenance task")
	}
	return out, nil
}

// Complete marks a task completed.
func (s *Service) Complete(ctx context.Context, id int64) (Task, error) {
	out, err := s.repo.SetStatus(ctx, id, StatusCompleted)
	if err != nil {
		return Task{}, s.wrap(err, id, "Could not complete the maintenance task")
	}
	return out, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.wrap(err, id, "Could not delete the maintenance task")
	}
	return nil
}

// List returns every task by priority rank then due date.
func (s *Service) List(ctx context.Context) ([]Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Classify(err, "Could not load maintenance tasks")
	}
	return tasks, nil
}

// Overdue lists open tasks whose due date is before the local day of now.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]Task, error) {
	local := now.In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	tasks, err := s.repo.Overdue(ctx, day)
	if err != nil {
		return nil, shared.Classify(err, "Could not load overdue tasks")
	}
	return tasks, nil
}

func (s *Service) build(in TaskInput) (Task, error) {
	in.Equipment = strings.TrimSpace(in.Equipment)
	in.Description = strings.TrimSpace(in.Description)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Equipment":
				return Task{}, shared.Validation("Equipment is required")
			case "Priority":
				return Task{}, shared.Validation("Priority must be high, medium or low")
			case "Status":
				return Task{}, shared.Validation("Status must be pending, in_progress or completed")
			}
		}
		return Task{}, shared.Validation("Invalid maintenance task")
	}

	t := Task{
		Equipment:   in.Equipment,
		Description: in.Description,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		Status:      in.Status,
	}
	if due := strings.TrimSpace(in.DueDate); due != "" {
		d, err := time.Parse(DateLayout, due)
		if err != nil {
			return Task{}, shared.Validation("Due date must use YYYY-MM-DD")
		}
		t.DueDate = &d
	}
	return t, nil
}

func (s *Service) wrap(err error, id int64, msg string) error {
	if errors.Is(err, ErrTaskNotFound) {
		return shared.NotFound("Maintenance task %d not found", id)
	}
	return shared.Classify(err, msg)
}
