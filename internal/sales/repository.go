package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradyx/backoffice/internal/platform/db"
)

// TxRepository exposes the row-level operations used inside one sale transaction.
type TxRepository interface {
	// LockProducts locks the product rows in ascending id order and returns
	// the ones that exist.
	LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	AdjustProduct(ctx context.Context, id int64, quantityDelta, dailyDelta int) (Product, error)
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	// FindSale reads a sale without locking it.
	FindSale(ctx context.Context, id int64) (Sale, error)
	LockSale(ctx context.Context, id int64) (Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

// Repository persists the sale journal in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction. Product rows are guarded by
// explicit FOR UPDATE locks, so a waiting sale re-reads the committed stock
// instead of failing with a serialization error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	sorted := uniqueSorted(ids)
	products := make(map[int64]Product, len(sorted))
	for _, id := range sorted {
		var p Product
		err := r.tx.QueryRow(ctx, `SELECT id, name, price::float8, unit_measure, quantity, daily_sales
FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&p.ID, &p.Name, &p.Price, &p.UnitMeasure, &p.Quantity, &p.DailySales)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("sales: lock product %d: %w", id, err)
		}
		products[id] = p
	}
	return products, nil
}

func (r *txRepo) AdjustProduct(ctx context.Context, id int64, quantityDelta, dailyDelta int) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `UPDATE products
SET quantity = quantity + $2,
    daily_sales = GREATEST(daily_sales + $3, 0),
    updated_at = NOW()
WHERE id = $1
RETURNING id, name, price::float8, unit_measure, quantity, daily_sales`, id, quantityDelta, dailyDelta).
		Scan(&p.ID, &p.Name, &p.Price, &p.UnitMeasure, &p.Quantity, &p.DailySales)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("sales: adjust product %d: %w", id, err)
	}
	return p, nil
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (customer, total, quantity, sold_at, user_id, product_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sale.Customer, sale.Total, sale.Quantity, sale.SoldAt, sale.UserID, sale.ProductID).Scan(&sale.ID)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: insert sale: %w", err)
	}
	return sale, nil
}

func (r *txRepo) FindSale(ctx context.Context, id int64) (Sale, error) {
	return r.scanSale(ctx, "find", `SELECT id, customer, total::float8, quantity, sold_at, user_id, product_id
FROM sales WHERE id = $1`, id)
}

func (r *txRepo) LockSale(ctx context.Context, id int64) (Sale, error) {
	return r.scanSale(ctx, "lock", `SELECT id, customer, total::float8, quantity, sold_at, user_id, product_id
FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *txRepo) scanSale(ctx context.Context, op, query string, id int64) (Sale, error) {
	var s Sale
	err := r.tx.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.Customer, &s.Total, &s.Quantity, &s.SoldAt, &s.UserID, &s.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, fmt.Errorf("sales: %s sale %d: %w", op, id, err)
	}
	return s, nil
}

func (r *txRepo) DeleteSale(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sales: delete sale %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// ListSales returns journal rows newest first.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]SaleView, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("s.sold_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("s.sold_at < $%d", filter.To)
	}
	if filter.ProductID != 0 {
		add("s.product_id = $%d", filter.ProductID)
	}
	if filter.UserID != 0 {
		add("s.user_id = $%d", filter.UserID)
	}
	query := `SELECT s.id, s.customer, s.total::float8, s.quantity, s.sold_at, s.user_id, s.product_id,
       COALESCE(p.name, ''), COALESCE(u.username, '')
FROM sales s
LEFT JOIN products p ON p.id = s.product_id
LEFT JOIN users u ON u.id = s.user_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY s.sold_at DESC, s.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []SaleView
	for rows.Next() {
		var v SaleView
		if err := rows.Scan(&v.ID, &v.Customer, &v.Total, &v.Quantity, &v.SoldAt, &v.UserID, &v.ProductID, &v.ProductName, &v.Username); err != nil {
			return nil, fmt.Errorf("sales: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SumSales totals the journal within [from, to).
func (r *Repository) SumSales(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0)::float8 FROM sales WHERE sold_at >= $1 AND sold_at < $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sales: sum: %w", err)
	}
	return total, nil
}

// DailyReport lists products with a non-zero daily counter.
func (r *Repository) DailyReport(ctx context.Context) ([]DailyReportLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit_measure, price::float8, daily_sales
FROM products WHERE daily_sales > 0 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("sales: daily report: %w", err)
	}
	defer rows.Close()

	var lines []DailyReportLine
	for rows.Next() {
		var l DailyReportLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.UnitMeasure, &l.Price, &l.DailySales); err != nil {
			return nil, fmt.Errorf("sales: daily report scan: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SearchProducts matches product names case-insensitively, ordered by name.
func (r *Repository) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT id, name, price::float8, unit_measure, quantity, daily_sales
FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY name, id LIMIT $2`, escapeLike(query), limit)
}

// LowStock lists products at or below threshold units.
func (r *Repository) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT id, name, price::float8, unit_measure, quantity, daily_sales
FROM products WHERE quantity <= $1 ORDER BY quantity, name LIMIT $2`, threshold, limit)
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales: products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.UnitMeasure, &p.Quantity, &p.DailySales); err != nil {
			return nil, fmt.Errorf("sales: products scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSpace(s))
}

var _ TxRepository = (*txRepo)(nil)
