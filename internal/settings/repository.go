package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes the company_settings row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const settingsColumns = `company_name, currency, date_format, language, dark_mode, updated_at`

// Get loads the settings row, returning Defaults when it is missing.
func (r *Repository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM company_settings WHERE id = 1`).
		Scan(&s.CompanyName, &s.Currency, &s.DateFormat, &s.Language, &s.DarkMode, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: get: %w", err)
	}
	return s, nil
}

// Update upserts the general fields.
func (r *Repository) Update(ctx context.Context, s Settings) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO company_settings (id, company_name, currency, date_format, language)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET company_name = EXCLUDED.company_name, currency = EXCLUDED.currency,
date_format = EXCLUDED.date_format, language = EXCLUDED.language, updated_at = NOW()`,
		s.CompanyName, s.Currency, s.DateFormat, s.Language)
	if err != nil {
		return fmt.Errorf("settings: update: %w", err)
	}
	return nil
}

// SetDarkMode persists the global dark mode flag.
func (r *Repository) SetDarkMode(ctx context.Context, enabled bool) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO company_settings (id, dark_mode) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET dark_mode = EXCLUDED.dark_mode, updated_at = NOW()`, enabled)
	if err != nil {
		return fmt.Errorf("settings: dark mode: %w", err)
	}
	return nil
}

// Info counts users and products.
func (r *Repository) Info(ctx context.Context) (SystemInfo, error) {
	var info SystemInfo
	err := r.pool.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM products)`).
		Scan(&info.Users, &info.Products)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("settings: info: %w", err)
	}
	return info, nil
}
