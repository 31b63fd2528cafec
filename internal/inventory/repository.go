package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradyx/backoffice/internal/platform/db"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProduct(ctx context.Context, id int64) (Product, error)
	DeleteSalesForProduct(ctx context.Context, productID int64) (int64, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Repository persists the product ledger in PostgreSQL.
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

const productColumns = `id, name, price::float8, unit_measure, quantity, daily_sales, created_at, updated_at`

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) LockProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (r *txRepo) DeleteSalesForProduct(ctx context.Context, productID int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("inventory: delete sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *txRepo) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("inventory: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Create inserts a product with a zero daily counter.
func (r *Repository) Create(ctx context.Context, in ProductInput) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (name, price, unit_measure, quantity, daily_sales)
VALUES ($1, $2, $3, $4, 0) RETURNING `+productColumns, in.Name, in.Price, in.UnitMeasure, in.Quantity))
	if err != nil {
		return Product{}, fmt.Errorf("inventory: create product: %w", err)
	}
	return p, nil
}

// Update rewrites the editable fields of a product.
func (r *Repository) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products
SET name = $2, price = $3, unit_measure = $4, quantity = $5, updated_at = NOW()
WHERE id = $1 RETURNING `+productColumns, id, in.Name, in.Price, in.UnitMeasure, in.Quantity))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("inventory: update product: %w", err)
	}
	return p, nil
}

// Get loads a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// List returns products ordered by name, optionally filtered by a name fragment.
func (r *Repository) List(ctx context.Context, query string) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		sql += ` WHERE name ILIKE $1`
		args = append(args, "%"+escapeLike(q)+"%")
	}
	sql += ` ORDER BY lower(name), id`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list products: %w", err)
	}
	return collectProducts(rows)
}

// LowStock returns products whose stock is at or below threshold.
func (r *Repository) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE quantity <= $1 ORDER BY quantity, lower(name)`, threshold)
	if err != nil {
		return nil, fmt.Errorf("inventory: low stock: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.UnitMeasure, &p.Quantity, &p.DailySales, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
