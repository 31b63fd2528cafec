package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan logs products at or under the low stock threshold.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskOverdueScan logs open maintenance tasks past their due date.
	TaskOverdueScan = "maintenance:overdue-scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DefaultIdempotencyRetention is how long submitted sale keys are remembered.
const DefaultIdempotencyRetention = 24 * time.Hour

// LowStockScanPayload overrides the configured threshold when positive.
type LowStockScanPayload struct {
	Threshold int `json:"threshold,omitempty"`
}

// IdempotencyCleanupPayload overrides DefaultIdempotencyRetention when set.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// NewLowStockScanTask builds the low stock scan task.
func NewLowStockScanTask(threshold int) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewOverdueScanTask builds the maintenance overdue scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask builds the key cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewTask builds a task for one of the known task types with default payload.
func NewTask(taskType string) (*asynq.Task, bool) {
	switch taskType {
	case TaskLowStockScan:
		t, err := NewLowStockScanTask(0)
		return t, err == nil
	case TaskOverdueScan:
		return NewOverdueScanTask(), true
	case TaskIdempotencyCleanup:
		t, err := NewIdempotencyCleanupTask(0)
		return t, err == nil
	}
	return nil, false
}

// DefaultCron is the schedule registered by the worker.
func DefaultCron() ([]CronRegistration, error) {
	lowStock, err := NewLowStockScanTask(0)
	if err != nil {
		return nil, err
	}
	cleanup, err := NewIdempotencyCleanupTask(0)
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: "0 * * * *", Task: lowStock},
		{Spec: "0 7 * * *", Task: NewOverdueScanTask()},
		{Spec: "30 3 * * *", Task: cleanup},
	}, nil
}
