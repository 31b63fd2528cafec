package close

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradyx/backoffice/internal/shared"
)

type memSale struct {
	total  float64
	soldAt time.Time
}

type memoryRepo struct {
	mu       sync.Mutex
	daily    map[int64]int
	sales    []memSale
	records  []DailySalesRecord
	failStep string
	// afterLock runs once product locks are held, standing in for a lock wait.
	afterLock func()
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{
		repo:    m,
		daily:   make(map[int64]int, len(m.daily)),
		sales:   append([]memSale(nil), m.sales...),
		records: append([]DailySalesRecord(nil), m.records...),
	}
	for k, v := range m.daily {
		tx.daily[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.daily, m.sales, m.records = tx.daily, tx.sales, tx.records
	return nil
}

func (m *memoryRepo) ListRecords(ctx context.Context, limit int) ([]DailySalesRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DailySalesRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

type memoryTx struct {
	repo    *memoryRepo
	daily   map[int64]int
	sales   []memSale
	records []DailySalesRecord
}

func (t *memoryTx) fail(step string) error {
	if t.repo.failStep == step {
		return errors.New("connection reset during " + step)
	}
	return nil
}

func (t *memoryTx) LockProducts(ctx context.Context) (int, error) {
	if err := t.fail("lock"); err != nil {
		return 0, err
	}
	if t.repo.afterLock != nil {
		t.repo.afterLock()
	}
	return len(t.daily), nil
}

func (t *memoryTx) DeleteSales(ctx context.Context, from, to time.Time) ([]float64, error) {
	if err := t.fail("delete"); err != nil {
		return nil, err
	}
	var kept []memSale
	var totals []float64
	for _, s := range t.sales {
		if !s.soldAt.Before(from) && s.soldAt.Before(to) {
			totals = append(totals, s.total)
			continue
		}
		kept = append(kept, s)
	}
	t.sales = kept
	return totals, nil
}

func (t *memoryTx) InsertRecord(ctx context.Context, rec DailySalesRecord) (DailySalesRecord, error) {
	if err := t.fail("insert"); err != nil {
		return DailySalesRecord{}, err
	}
	rec.ID = int64(len(t.records) + 1)
	t.records = append(t.records, rec)
	return rec, nil
}

func (t *memoryTx) ResetDailyCounters(ctx context.Context) (int64, error) {
	if err := t.fail("reset"); err != nil {
		return 0, err
	}
	for id := range t.daily {
		t.daily[id] = 0
	}
	return int64(len(t.daily)), nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	closer = shared.Actor{ID: 3, Username: "cashier", Role: shared.RoleUser}
	today  = time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
)

func newTestService(repo *memoryRepo) (*Service, *memoryAudit) {
	audit := &memoryAudit{}
	svc := NewService(repo, audit, shared.NewMoneyFormatter("$", "en"), time.UTC)
	svc.WithNow(func() time.Time { return today })
	return svc, audit
}

func TestCloseDayOnEmptyDay(t *testing.T) {
	repo := &memoryRepo{daily: map[int64]int{1: 0, 2: 0}}
	svc, _ := newTestService(repo)

	out, err := svc.Close(context.Background(), closer)
	require.NoError(t, err)
	assert.False(t, out.Recorded)
	assert.Nil(t, out.Record)
	assert.Equal(t, 0.0, out.Total)
	assert.Equal(t, "Daily close completed. No sales recorded today", out.Message)
	assert.Empty(t, repo.records)
	for _, v := range repo.daily {
		assert.Equal(t, 0, v)
	}
}

func TestCloseDayArchivesTotalsAndResetsCounters(t *testing.T) {
	morning := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	repo := &memoryRepo{
		daily: map[int64]int{1: 5, 2: 3, 3: 0},
		sales: []memSale{
			{total: 50, soldAt: morning},
			{total: 30, soldAt: morning.Add(time.Hour)},
			{total: 20, soldAt: morning.Add(2 * time.Hour)},
			{total: 70, soldAt: morning.AddDate(0, 0, -1)},
		},
	}
	svc, audit := newTestService(repo)

	out, err := svc.Close(context.Background(), closer)
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.Equal(t, 100.0, out.Total)
	assert.Equal(t, 3, out.SalesPurged)
	assert.Equal(t, int64(3), out.ProductsReset)
	assert.Equal(t, "Daily close completed. Total recorded: $100.00", out.Message)

	require.Len(t, repo.records, 1)
	assert.Equal(t, "2024-03-15", repo.records[0].Date)
	assert.Equal(t, 100.0, repo.records[0].Total)
	assert.Equal(t, closer.ID, repo.records[0].ClosedBy)

	require.Len(t, repo.sales, 1)
	assert.Equal(t, 70.0, repo.sales[0].total)
	assert.Equal(t, map[int64]int{1: 0, 2: 0, 3: 0}, repo.daily)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "sales:close", audit.logs[0].Action)
}

func TestCloseDayUsesDateAfterLockWait(t *testing.T) {
	lateEvening := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	afterMidnight := time.Date(2024, 3, 16, 0, 0, 5, 0, time.UTC)
	repo := &memoryRepo{
		daily: map[int64]int{1: 2},
		sales: []memSale{
			{total: 40, soldAt: lateEvening},
			{total: 25, soldAt: afterMidnight.Add(-time.Second)},
		},
	}
	svc, _ := newTestService(repo)
	clock := time.Date(2024, 3, 15, 23, 59, 58, 0, time.UTC)
	svc.WithNow(func() time.Time { return clock })
	repo.afterLock = func() { clock = afterMidnight }

	out, err := svc.Close(context.Background(), closer)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-16", out.Date)
	assert.Equal(t, 25.0, out.Total)
	assert.Equal(t, 1, out.SalesPurged)
	require.Len(t, repo.records, 1)
	assert.Equal(t, "2024-03-16", repo.records[0].Date)
	assert.Equal(t, afterMidnight, repo.records[0].CreatedAt)
	require.Len(t, repo.sales, 1)
	assert.Equal(t, 40.0, repo.sales[0].total)
}

func TestCloseDayTwiceCreatesDuplicateRecords(t *testing.T) {
	noon := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &memoryRepo{daily: map[int64]int{1: 1}, sales: []memSale{{total: 10, soldAt: noon}}}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Close(ctx, closer)
	require.NoError(t, err)

	repo.sales = append(repo.sales, memSale{total: 15, soldAt: noon.Add(time.Hour)})
	_, err = svc.Close(ctx, closer)
	require.NoError(t, err)

	require.Len(t, repo.records, 2)
	assert.Equal(t, repo.records[0].Date, repo.records[1].Date)

	records, err := svc.ListRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 15.0, records[0].Total)
}

func TestCloseDayStorageFailureRollsBack(t *testing.T) {
	for _, step := range []string{"lock", "delete", "insert", "reset"} {
		t.Run(step, func(t *testing.T) {
			noon := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
			repo := &memoryRepo{
				daily:    map[int64]int{1: 2},
				sales:    []memSale{{total: 40, soldAt: noon}},
				failStep: step,
			}
			svc, audit := newTestService(repo)

			_, err := svc.Close(context.Background(), closer)
			require.Error(t, err)
			assert.Equal(t, shared.KindStorage, shared.KindOf(err))
			assert.Equal(t, "Could not complete the daily close", shared.UserSafeMessage(err))
			assert.Len(t, repo.sales, 1)
			assert.Empty(t, repo.records)
			assert.Equal(t, 2, repo.daily[1])
			assert.Empty(t, audit.logs)
		})
	}
}

func TestCloseDayRequiresActor(t *testing.T) {
	svc, _ := newTestService(&memoryRepo{})
	_, err := svc.Close(context.Background(), shared.Actor{})
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
