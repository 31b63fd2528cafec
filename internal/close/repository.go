package close

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradyx/backoffice/internal/platform/db"
)

// TxRepository exposes the statements executed inside one close transaction.
type TxRepository interface {
	// LockProducts locks every product row so no sale can interleave with
	// the close.
	LockProducts(ctx context.Context) (int, error)
	// DeleteSales removes the journal rows in [from, to) and returns their totals.
	DeleteSales(ctx context.Context, from, to time.Time) ([]float64, error)
	InsertRecord(ctx context.Context, rec DailySalesRecord) (DailySalesRecord, error)
	ResetDailyCounters(ctx context.Context) (int64, error)
}

// Repository persists close records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a read-committed transaction; the product locks taken
// first serialise the close against concurrent sales.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) LockProducts(ctx context.Context) (int, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM products ORDER BY id FOR UPDATE`)
	if err != nil {
		return 0, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (r *txRepo) DeleteSales(ctx context.Context, from, to time.Time) ([]float64, error) {
	rows, err := r.tx.Query(ctx, `DELETE FROM sales WHERE sold_at >= $1 AND sold_at < $2 RETURNING total::float8`, from, to)
	if err != nil {
		return nil, fmt.Errorf("delete sales: %w", err)
	}
	totals, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("delete sales: %w", err)
	}
	return totals, nil
}

func (r *txRepo) InsertRecord(ctx context.Context, rec DailySalesRecord) (DailySalesRecord, error) {
	var closedBy *int64
	if rec.ClosedBy != 0 {
		closedBy = &rec.ClosedBy
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO daily_sales_records (close_date, total, closed_by, created_at)
VALUES ($1, $2, $3, $4) RETURNING id`, rec.Date, rec.Total, closedBy, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return DailySalesRecord{}, fmt.Errorf("insert close record: %w", err)
	}
	return rec, nil
}

func (r *txRepo) ResetDailyCounters(ctx context.Context) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET daily_sales = 0, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRecords returns close records newest first.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]DailySalesRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.close_date, d.total::float8, COALESCE(d.closed_by, 0), COALESCE(u.username, ''), d.created_at
FROM daily_sales_records d
LEFT JOIN users u ON u.id = d.closed_by
ORDER BY d.close_date DESC, d.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailySalesRecord
	for rows.Next() {
		var rec DailySalesRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Total, &rec.ClosedBy, &rec.ClosedByName, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
