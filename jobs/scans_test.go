package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradyx/backoffice/internal/inventory"
	jobmetrics "github.com/tradyx/backoffice/internal/jobs"
	"github.com/tradyx/backoffice/internal/maintenance"
)

type stubProducts struct {
	threshold int
	products  []inventory.Product
	err       error
}

func (s *stubProducts) LowStock(_ context.Context, threshold int) ([]inventory.Product, error) {
	s.threshold = threshold
	return s.products, s.err
}

type stubTasks struct {
	at    time.Time
	tasks []maintenance.Task
}

func (s *stubTasks) Overdue(_ context.Context, now time.Time) ([]maintenance.Task, error) {
	s.at = now
	return s.tasks, nil
}

type stubKeys struct {
	retention time.Duration
	removed   int64
}

func (s *stubKeys) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return s.removed, nil
}

func TestLowStockScanUsesPayloadThreshold(t *testing.T) {
	src := &stubProducts{products: []inventory.Product{{ID: 1, Name: "Widget", Quantity: 2}}}
	job := &LowStockScanJob{Products: src, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	task, err := NewLowStockScanTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 7, src.threshold)
}

func TestLowStockScanPropagatesFailure(t *testing.T) {
	job := &LowStockScanJob{Products: &stubProducts{err: errors.New("db down")}}
	task, err := NewLowStockScanTask(0)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestLowStockScanRejectsBadPayload(t *testing.T) {
	job := &LowStockScanJob{Products: &stubProducts{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverdueScanUsesClock(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &stubTasks{tasks: []maintenance.Task{{ID: 4, Equipment: "Oven", DueDate: &due}}}
	at := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	job := &OverdueScanJob{Tasks: src, Clock: func() time.Time { return at }}

	require.NoError(t, job.Handle(context.Background(), NewOverdueScanTask()))
	assert.Equal(t, at, src.at)
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	keys := &stubKeys{removed: 3}
	job := &IdempotencyCleanupJob{Keys: keys}

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, keys.retention)
}

func TestDefaultCronCoversEveryTask(t *testing.T) {
	entries, err := DefaultCron()
	require.NoError(t, err)
	var types []string
	for _, e := range entries {
		types = append(types, e.Task.Type())
	}
	assert.ElementsMatch(t, []string{TaskLowStockScan, TaskOverdueScan, TaskIdempotencyCleanup}, types)
}

type stubEnqueuer struct{ got string }

func (s *stubEnqueuer) Enqueue(_ context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	s.got = task.Type()
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func TestHandlerEnqueue(t *testing.T) {
	client := &stubEnqueuer{}
	r := chi.NewRouter()
	NewHandler(nil, client, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/"+TaskOverdueScan, nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, TaskOverdueScan, client.got)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/mail:send", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
