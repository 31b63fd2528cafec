package sales

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tradyx/backoffice/internal/shared"
)

// ============================================================================
// IN-MEMORY REPOSITORY
// ============================================================================

// memoryRepo serialises transactions with a mutex, mirroring row locks, and
// stages writes on a copy that is only published when fn succeeds.
type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]Product
	sales      map[int64]Sale
	nextSaleID int64

	failInsertAfter int // fail the n+1th insert in a tx when > 0
	failAdjust      error
	readErr         error

	// ops records row-level calls in order; afterLock runs once product
	// locks are held, standing in for a concurrent writer or a lock wait.
	ops       []string
	afterLock func(tx *memoryTx)
}

func newMemoryRepo(products ...Product) *memoryRepo {
	m := &memoryRepo{
		products:   make(map[int64]Product),
		sales:      make(map[int64]Sale),
		nextSaleID: 1,
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memoryRepo) product(id int64) (Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	return p, ok
}

func (m *memoryRepo) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memoryRepo) addSale(s Sale) Sale {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextSaleID
	m.nextSaleID++
	m.sales[s.ID] = s
	return s
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		repo:     m,
		products: make(map[int64]Product, len(m.products)),
		sales:    make(map[int64]Sale, len(m.sales)),
		nextID:   m.nextSaleID,
	}
	for k, v := range m.products {
		tx.products[k] = v
	}
	for k, v := range m.sales {
		tx.sales[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.products = tx.products
	m.sales = tx.sales
	m.nextSaleID = tx.nextID
	return nil
}

func (m *memoryRepo) ListSales(ctx context.Context, filter ListFilter) ([]SaleView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]SaleView, 0, len(m.sales))
	for _, s := range m.sales {
		if !filter.From.IsZero() && s.SoldAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.SoldAt.Before(filter.To) {
			continue
		}
		if filter.ProductID != 0 && s.ProductID != filter.ProductID {
			continue
		}
		if filter.UserID != 0 && s.UserID != filter.UserID {
			continue
		}
		out = append(out, SaleView{Sale: s, ProductName: m.products[s.ProductID].Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SoldAt.Equal(out[j].SoldAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SoldAt.After(out[j].SoldAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryRepo) SumSales(ctx context.Context, from, to time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	var total float64
	for _, s := range m.sales {
		if !s.SoldAt.Before(from) && s.SoldAt.Before(to) {
			total += s.Total
		}
	}
	return total, nil
}

func (m *memoryRepo) DailyReport(ctx context.Context) ([]DailyReportLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []DailyReportLine
	for _, p := range m.products {
		if p.DailySales > 0 {
			lines = append(lines, DailyReportLine{ProductID: p.ID, Name: p.Name, UnitMeasure: p.UnitMeasure, Price: p.Price, DailySales: p.DailySales})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines, nil
}

func (m *memoryRepo) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	return m.LowStock(ctx, 1<<30, limit)
}

func (m *memoryRepo) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.Quantity <= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryTx struct {
	repo     *memoryRepo
	products map[int64]Product
	sales    map[int64]Sale
	nextID   int64
	inserts  int
}

func (t *memoryTx) LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	t.repo.ops = append(t.repo.ops, "lock_products")
	if t.repo.afterLock != nil {
		t.repo.afterLock(t)
	}
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memoryTx) AdjustProduct(ctx context.Context, id int64, quantityDelta, dailyDelta int) (Product, error) {
	if t.repo.failAdjust != nil {
		return Product{}, t.repo.failAdjust
	}
	p, ok := t.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.Quantity += quantityDelta
	if p.Quantity < 0 {
		return Product{}, errors.New("check constraint products_quantity_check")
	}
	p.DailySales += dailyDelta
	if p.DailySales < 0 {
		p.DailySales = 0
	}
	t.products[id] = p
	return p, nil
}

func (t *memoryTx) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	if t.repo.failInsertAfter > 0 && t.inserts >= t.repo.failInsertAfter {
		return Sale{}, errors.New("connection reset")
	}
	t.inserts++
	sale.ID = t.nextID
	t.nextID++
	t.sales[sale.ID] = sale
	return sale, nil
}

func (t *memoryTx) FindSale(ctx context.Context, id int64) (Sale, error) {
	t.repo.ops = append(t.repo.ops, "find_sale")
	s, ok := t.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (t *memoryTx) LockSale(ctx context.Context, id int64) (Sale, error) {
	t.repo.ops = append(t.repo.ops, "lock_sale")
	s, ok := t.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (t *memoryTx) DeleteSale(ctx context.Context, id int64) error {
	if _, ok := t.sales[id]; !ok {
		return ErrSaleNotFound
	}
	delete(t.sales, id)
	return nil
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (i *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	i.keys[module+":"+key] = true
	return nil
}

func (i *memoryIdempotency) Release(ctx context.Context, key, module string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.keys, module+":"+key)
	return nil
}
