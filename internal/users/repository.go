package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradyx/backoffice/internal/platform/db"
)

// TxRepository exposes the statements run inside a user deletion.
type TxRepository interface {
	LockUser(ctx context.Context, id int64) (User, error)
	DeleteSalesByUser(ctx context.Context, userID int64) (int64, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Repository persists user accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) LockUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.tx.QueryRow(ctx, `SELECT id, username, role, created_at FROM users WHERE id = $1 FOR UPDATE`, id).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (r *txRepo) DeleteSalesByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("users: delete sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *txRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("users: delete user: %w", err)
	}
	return nil
}

// ListUsers returns accounts ordered by role then username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, role, created_at FROM users ORDER BY role, username`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser loads one account.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, username, role, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// CreateUser inserts an account with an already hashed password.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash, role string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3)
RETURNING id, username, role, created_at`, username, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return u, nil
}

// CountAdmins reports how many admin accounts exist.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&n)
	return n, err
}
