package cashregister

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists drawer entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectEntries = `SELECT c.id, c.transfer_amount::float8, c.cash_amount::float8, c.total_amount::float8, c.notes,
c.created_at, COALESCE(c.user_id, 0), COALESCE(u.username, '')
FROM cash_register_entries c
LEFT JOIN users u ON u.id = c.user_id`

// Create inserts an entry recorded by userID.
func (r *Repository) Create(ctx context.Context, userID int64, in EntryInput) (Entry, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO cash_register_entries (transfer_amount, cash_amount, notes, user_id)
VALUES ($1, $2, $3, $4) RETURNING id`, in.Transfer, in.Cash, in.Notes, userID).Scan(&id)
	if err != nil {
		return Entry{}, fmt.Errorf("cashregister: create: %w", err)
	}
	return r.Get(ctx, id)
}

// Update rewrites the amounts; the stored total is a generated column.
func (r *Repository) Update(ctx context.Context, id int64, in EntryInput) (Entry, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE cash_register_entries
SET transfer_amount = $2, cash_amount = $3, notes = $4, updated_at = NOW() WHERE id = $1`, id, in.Transfer, in.Cash, in.Notes)
	if err != nil {
		return Entry{}, fmt.Errorf("cashregister: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, ErrEntryNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cash_register_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cashregister: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Get loads one entry.
func (r *Repository) Get(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, selectEntries+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

// List returns every entry newest first.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntries+` ORDER BY c.created_at DESC, c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("cashregister: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Transfer, &e.Cash, &e.Total, &e.Notes, &e.CreatedAt, &e.UserID, &e.Username)
	return e, err
}
