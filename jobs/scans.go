package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradyx/backoffice/internal/inventory"
	jobmetrics "github.com/tradyx/backoffice/internal/jobs"
	"github.com/tradyx/backoffice/internal/maintenance"
)

// LowStockSource lists products at or under a threshold.
type LowStockSource interface {
	LowStock(ctx context.Context, threshold int) ([]inventory.Product, error)
}

// OverdueSource lists maintenance tasks past due at now.
type OverdueSource interface {
	Overdue(ctx context.Context, now time.Time) ([]maintenance.Task, error)
}

// KeyPurger drops idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LowStockScanJob reports products that need restocking.
type LowStockScanJob struct {
	Products LowStockSource
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle runs the scan. It never mutates stock.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	products, err := j.Products.LowStock(ctx, payload.Threshold)
	if err != nil {
		logger(j.Logger).Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		logger(j.Logger).Warn("product low on stock",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("quantity", p.Quantity),
		)
	}
	j.Metrics.AddFindings(TaskLowStockScan, len(products))
	logger(j.Logger).Info("completed low stock scan", slog.Int("products", len(products)))
	return nil
}

// OverdueScanJob reports maintenance tasks past due.
type OverdueScanJob struct {
	Tasks   OverdueSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Clock   func() time.Time
}

// Handle runs the scan.
func (j *OverdueScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Tasks == nil {
		return errors.New("overdue scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskOverdueScan)
	defer func() { err = tracker.End(err) }()

	now := time.Now()
	if j.Clock != nil {
		now = j.Clock()
	}
	tasks, err := j.Tasks.Overdue(ctx, now)
	if err != nil {
		logger(j.Logger).Error("overdue scan failed", slog.Any("error", err))
		return err
	}
	for _, task := range tasks {
		attrs := []any{
			slog.Int64("task_id", task.ID),
			slog.String("equipment", task.Equipment),
			slog.String("priority", task.Priority),
			slog.String("assigned_to", task.AssignedTo),
		}
		if task.DueDate != nil {
			attrs = append(attrs, slog.String("due_date", task.DueDate.Format(maintenance.DateLayout)))
		}
		logger(j.Logger).Warn("maintenance task overdue", attrs...)
	}
	j.Metrics.AddFindings(TaskOverdueScan, len(tasks))
	return nil
}

// IdempotencyCleanupJob purges expired sale submission keys.
type IdempotencyCleanupJob struct {
	Keys    KeyPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle runs the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultIdempotencyRetention
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Keys.Cleanup(ctx, payload.Retention)
	if err != nil {
		logger(j.Logger).Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	logger(j.Logger).Info("idempotency keys purged", slog.Int64("removed", removed), slog.Duration("retention", payload.Retention))
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
