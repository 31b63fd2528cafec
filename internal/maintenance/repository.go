package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists tasks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectTasks = `SELECT id, equipment, description, priority, assigned_to, due_date, status, created_at FROM maintenance_tasks`

const orderTasks = ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, due_date NULLS LAST, id`

// Create inserts a task.
func (r *Repository) Create(ctx context.Context, t Task) (Task, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO maintenance_tasks (equipment, description, priority, assigned_to, due_date, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, equipment, description, priority, assigned_to, due_date, status, created_at`,
		t.Equipment, t.Description, t.Priority, t.AssignedTo, t.DueDate, t.Status)
	out, err := scanTask(row)
	if err != nil {
		return Task{}, fmt.Errorf("maintenance: create: %w", err)
	}
	return out, nil
}

// Update rewrites every editable column.
func (r *Repository) Update(ctx context.Context, t Task) (Task, error) {
	row := r.pool.QueryRow(ctx, `UPDATE maintenance_tasks
SET equipment = $2, description = $3, priority = $4, assigned_to = $5, due_date = $6, status = $7, updated_at = NOW()
WHERE id = $1
RETURNING id, equipment, description, priority, assigned_to, due_date, status, created_at`,
		t.ID, t.Equipment, t.Description, t.Priority, t.AssignedTo, t.DueDate, t.Status)
	out, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	return out, err
}

// SetStatus changes only the status column.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) (Task, error) {
	row := r.pool.QueryRow(ctx, `UPDATE maintenance_tasks SET status = $2, updated_at = NOW() WHERE id = $1
RETURNING id, equipment, description, priority, assigned_to, due_date, status, created_at`, id, status)
	out, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	return out, err
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM maintenance_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("maintenance: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List returns tasks by priority rank then due date.
func (r *Repository) List(ctx context.Context) ([]Task, error) {
	return r.query(ctx, selectTasks+orderTasks)
}

// Overdue lists open tasks due strictly before day.
func (r *Repository) Overdue(ctx context.Context, day time.Time) ([]Task, error) {
	return r.query(ctx, selectTasks+` WHERE status <> 'completed' AND due_date < $1::date`+orderTasks, day.Format(DateLayout))
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("maintenance: list: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Equipment, &t.Description, &t.Priority, &t.AssignedTo, &t.DueDate, &t.Status, &t.CreatedAt)
	return t, err
}
