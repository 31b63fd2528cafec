package sales

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

var (
	cashier = shared.Actor{ID: 7, Username: "cashier", Role: shared.RoleUser}
	admin   = shared.Actor{ID: 1, Username: "admin", Role: shared.RoleAdmin}
	fixedAt = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
)

func newTestService(repo *memoryRepo) (*Service, *memoryAudit) {
	audit := &memoryAudit{}
	svc := NewService(repo, audit, newMemoryIdempotency(), ServiceConfig{Location: time.UTC})
	svc.WithNow(func() time.Time { return fixedAt })
	return svc, audit
}

func widget(qty int) Product {
	return Product{ID: 1, Name: "Widget", Price: 12.5, UnitMeasure: "unit", Quantity: qty}
}

func TestRecordSaleDecrementsStockAndCountsDaily(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)

	sale, err := svc.RecordSale(context.Background(), cashier, SingleInput{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, DefaultCustomer, sale.Customer)
	assert.Equal(t, 37.5, sale.Total)
	assert.Equal(t, cashier.ID, sale.UserID)
	assert.Equal(t, fixedAt, sale.SoldAt)

	p, _ := repo.product(1)
	assert.Equal(t, 7, p.Quantity)
	assert.Equal(t, 3, p.DailySales)
	assert.Equal(t, 1, repo.saleCount())
}

func TestRecordSaleValidation(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: 0})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.RecordSale(ctx, cashier, SingleInput{ProductID: 99, Quantity: 1})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.RecordSale(ctx, shared.Actor{}, SingleInput{ProductID: 1, Quantity: 1})
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	assert.Equal(t, 0, repo.saleCount())
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	repo := newMemoryRepo(widget(2))
	svc, _ := newTestService(repo)

	_, err := svc.RecordSale(context.Background(), cashier, SingleInput{ProductID: 1, Quantity: 3})
	require.Error(t, err)
	assert.Equal(t, shared.KindInsufficientStock, shared.KindOf(err))
	assert.Equal(t, "Insufficient stock for Widget. Available: 2", shared.UserSafeMessage(err))

	p, _ := repo.product(1)
	assert.Equal(t, 2, p.Quantity)
	assert.Equal(t, 0, p.DailySales)
}

func TestStockNeverNegative(t *testing.T) {
	repo := newMemoryRepo(widget(5))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	var recorded []Sale
	for _, q := range []int{2, 4, 3, 1, 5} {
		sale, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: q})
		if err == nil {
			recorded = append(recorded, sale)
		}
		p, _ := repo.product(1)
		require.GreaterOrEqual(t, p.Quantity, 0)
	}
	for _, s := range recorded {
		_, err := svc.ReverseSale(ctx, admin, s.ID)
		require.NoError(t, err)
		p, _ := repo.product(1)
		require.GreaterOrEqual(t, p.Quantity, 0)
	}
	p, _ := repo.product(1)
	assert.Equal(t, 5, p.Quantity)
}

func TestReverseRestoresLedgerExactly(t *testing.T) {
	start := widget(10)
	start.DailySales = 4
	repo := newMemoryRepo(start)
	svc, audit := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.RecordSale(ctx, cashier, SingleInput{Customer: "Ana", ProductID: 1, Quantity: 6})
	require.NoError(t, err)

	reversed, err := svc.ReverseSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, reversed.ID)

	p, _ := repo.product(1)
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 4, p.DailySales)
	assert.Equal(t, 0, repo.saleCount())

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "sales:reverse", audit.logs[0].Action)
	assert.Equal(t, true, audit.logs[0].Meta["stock_restored"])
}

func TestReverseClampsDailyCounterAtZero(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: 3})
	require.NoError(t, err)

	// a close reset the counter in between
	repo.mu.Lock()
	p := repo.products[1]
	p.DailySales = 0
	repo.products[1] = p
	repo.mu.Unlock()

	_, err = svc.ReverseSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	p, _ = repo.product(1)
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.DailySales)
}

func TestReverseMissingSale(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)

	_, err := svc.ReverseSale(context.Background(), admin, 404)
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestReverseSkipsRestoreWhenProductGone(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	orphan := repo.addSale(Sale{Customer: DefaultCustomer, Total: 25, Quantity: 2, SoldAt: fixedAt, UserID: cashier.ID, ProductID: 77})
	svc, audit := newTestService(repo)

	_, err := svc.ReverseSale(context.Background(), admin, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.saleCount())
	p, _ := repo.product(1)
	assert.Equal(t, 10, p.Quantity)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, false, audit.logs[0].Meta["stock_restored"])
}

func TestReverseLocksProductBeforeSale(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	repo.ops = nil

	_, err = svc.ReverseSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"find_sale", "lock_products", "lock_sale"}, repo.ops)
}

func TestReverseSaleGoneOnceProductLocked(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	// a daily close purged the row while the reversal waited on the product
	repo.afterLock = func(tx *memoryTx) { delete(tx.sales, sale.ID) }

	_, err = svc.ReverseSale(ctx, admin, sale.ID)
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	p, _ := repo.product(1)
	assert.Equal(t, 8, p.Quantity)
	assert.Equal(t, 2, p.DailySales)
}

func TestRecordSaleStampsTimeAfterLocks(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	clock := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	svc.WithNow(func() time.Time { return clock })

	// the lock wait crosses midnight
	afterMidnight := time.Date(2024, 3, 16, 0, 0, 2, 0, time.UTC)
	repo.afterLock = func(*memoryTx) { clock = afterMidnight }

	sale, err := svc.RecordSale(context.Background(), cashier, SingleInput{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, afterMidnight, sale.SoldAt)
}

func TestRecordBatchReleasesKeyWhenRequestCancelled(t *testing.T) {
	repo := newMemoryRepo(widget(1))
	idem := newMemoryIdempotency()
	svc := NewService(repo, nil, idem, ServiceConfig{Location: time.UTC})
	svc.WithNow(func() time.Time { return fixedAt })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.RecordBatch(ctx, cashier, BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 5}}}, "retry-me")
	require.Error(t, err)

	idem.mu.Lock()
	claimed := idem.keys[idempotencyModule+":retry-me"]
	idem.mu.Unlock()
	assert.False(t, claimed)

	_, err = svc.RecordBatch(context.Background(), cashier, BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 1}}}, "retry-me")
	require.NoError(t, err)
}

func TestRecordSaleIsAtomicOnStorageFailure(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	repo.failAdjust = errors.New("connection reset")
	svc, _ := newTestService(repo)

	_, err := svc.RecordSale(context.Background(), cashier, SingleInput{ProductID: 1, Quantity: 2})
	require.Error(t, err)
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
	assert.Equal(t, "Could not record the sale", shared.UserSafeMessage(err))

	assert.Equal(t, 0, repo.saleCount())
	p, _ := repo.product(1)
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.DailySales)
}

func TestConcurrentSalesForLastUnits(t *testing.T) {
	repo := newMemoryRepo(widget(4))
	svc, _ := newTestService(repo)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = svc.RecordSale(context.Background(), cashier, SingleInput{ProductID: 1, Quantity: 4})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, short int
	for _, err := range results {
		switch shared.KindOf(err) {
		case "":
			ok++
		case shared.KindInsufficientStock:
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	p, _ := repo.product(1)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, 4, p.DailySales)
}

func TestRecordBatchCommitsAllLines(t *testing.T) {
	repo := newMemoryRepo(
		widget(10),
		Product{ID: 2, Name: "Gadget", Price: 3, UnitMeasure: "kg", Quantity: 5},
	)
	svc, audit := newTestService(repo)

	outcomes, err := svc.RecordBatch(context.Background(), cashier, BatchInput{
		Customer: "Store 4",
		Items: []LineInput{
			{ProductID: 2, Quantity: 2},
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 3},
		},
	}, "")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, 3, outcomes[0].NewStock)
	assert.Equal(t, 0, outcomes[2].NewStock)
	assert.Equal(t, 12.5, outcomes[1].Total)

	g, _ := repo.product(2)
	assert.Equal(t, 0, g.Quantity)
	assert.Equal(t, 5, g.DailySales)
	assert.Equal(t, 3, repo.saleCount())
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "sales:batch", audit.logs[0].Action)
}

func TestRecordBatchAllOrNothing(t *testing.T) {
	repo := newMemoryRepo(
		widget(10),
		Product{ID: 2, Name: "Gadget", Price: 3, Quantity: 5},
		Product{ID: 3, Name: "Gizmo", Price: 8, Quantity: 1},
	)
	svc, _ := newTestService(repo)

	_, err := svc.RecordBatch(context.Background(), cashier, BatchInput{
		Items: []LineInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
			{ProductID: 3, Quantity: 4},
		},
	}, "")
	require.Error(t, err)

	var classified *shared.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, shared.KindInsufficientStock, classified.Kind)
	assert.Equal(t, 3, classified.Line)
	assert.Equal(t, int64(3), classified.ProductID)
	assert.Equal(t, "line 3: Insufficient stock for Gizmo. Available: 1", classified.Message)

	assert.Equal(t, 0, repo.saleCount())
	for id, want := range map[int64]int{1: 10, 2: 5, 3: 1} {
		p, _ := repo.product(id)
		assert.Equal(t, want, p.Quantity)
		assert.Equal(t, 0, p.DailySales)
	}
}

func TestRecordBatchCumulativeStockCheck(t *testing.T) {
	repo := newMemoryRepo(widget(5))
	svc, _ := newTestService(repo)

	_, err := svc.RecordBatch(context.Background(), cashier, BatchInput{
		Items: []LineInput{{ProductID: 1, Quantity: 3}, {ProductID: 1, Quantity: 3}},
	}, "")
	require.Error(t, err)
	res := shared.ResultOf(err)
	assert.Equal(t, 2, res.Line)
	assert.Equal(t, "line 2: Insufficient stock for Widget. Available: 2", res.Message)
	assert.Equal(t, 0, repo.saleCount())
}

func TestRecordBatchStorageFailureRollsBack(t *testing.T) {
	repo := newMemoryRepo(widget(10), Product{ID: 2, Name: "Gadget", Price: 3, Quantity: 5})
	repo.failInsertAfter = 1
	svc, _ := newTestService(repo)

	_, err := svc.RecordBatch(context.Background(), cashier, BatchInput{
		Items: []LineInput{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}},
	}, "")
	require.Error(t, err)
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
	assert.Equal(t, 0, repo.saleCount())
	p, _ := repo.product(1)
	assert.Equal(t, 10, p.Quantity)
}

func TestRecordBatchRejectsInvalidLines(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordBatch(ctx, cashier, BatchInput{}, "")
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.RecordBatch(ctx, cashier, BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: -2}}}, "")
	res := shared.ResultOf(err)
	assert.Equal(t, shared.KindValidation, res.Kind)
	assert.Equal(t, 2, res.Line)

	_, err = svc.RecordBatch(ctx, cashier, BatchInput{Items: []LineInput{{ProductID: 42, Quantity: 1}}}, "")
	res = shared.ResultOf(err)
	assert.Equal(t, shared.KindValidation, res.Kind)
	assert.Equal(t, 1, res.Line)
	assert.Equal(t, int64(42), res.ProductID)
}

func TestRecordBatchIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo(widget(10))
	svc, _ := newTestService(repo)
	ctx := context.Background()
	in := BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 1}}}

	_, err := svc.RecordBatch(ctx, cashier, in, "abc")
	require.NoError(t, err)
	_, err = svc.RecordBatch(ctx, cashier, in, "abc")
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Equal(t, 1, repo.saleCount())

	// a failed batch releases its key
	_, err = svc.RecordBatch(ctx, cashier, BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 50}}}, "def")
	require.Error(t, err)
	_, err = svc.RecordBatch(ctx, cashier, BatchInput{Items: []LineInput{{ProductID: 1, Quantity: 2}}}, "def")
	require.NoError(t, err)
}

func TestTodayTotalAndReport(t *testing.T) {
	repo := newMemoryRepo(widget(10), Product{ID: 2, Name: "Gadget", Price: 3, Quantity: 5})
	repo.addSale(Sale{Total: 99, Quantity: 1, SoldAt: fixedAt.AddDate(0, 0, -1), ProductID: 1})
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, cashier, SingleInput{ProductID: 2, Quantity: 3})
	require.NoError(t, err)

	total, err := svc.TodayTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 34.0, total)

	report, err := svc.DailyReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", report.Date)
	require.Len(t, report.Lines, 2)
	assert.Equal(t, "Gadget", report.Lines[0].Name)
	assert.Equal(t, 9.0, report.Lines[0].Total)
	assert.Equal(t, 34.0, report.Total)
}

func TestOverview(t *testing.T) {
	repo := newMemoryRepo(widget(3), Product{ID: 2, Name: "Gadget", Price: 3, Quantity: 50})
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, cashier, SingleInput{ProductID: 2, Quantity: 1})
	require.NoError(t, err)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, overview.TodayTotal)
	require.Len(t, overview.Feed, 1)
	assert.Equal(t, "Gadget", overview.Feed[0].ProductName)
	require.Len(t, overview.LowStock, 1)
	assert.Equal(t, int64(1), overview.LowStock[0].ID)

	repo.readErr = errors.New("db down")
	_, err = svc.Overview(ctx)
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start, end := DayBounds(time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
