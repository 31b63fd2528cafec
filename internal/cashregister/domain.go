// Package cashregister keeps the cash drawer ledger: per-shift transfer and
// cash amounts counted by the cashier.
package cashregister

import (
	"errors"
	"time"
)

// Entry is one counted drawer record. Total is always Transfer + Cash.
type Entry struct {
	ID        int64     `json:"id"`
	Transfer  float64   `json:"transfer_amount"`
	Cash      float64   `json:"cash_amount"`
	Total     float64   `json:"total_amount"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// EntryInput carries editable amounts.
type EntryInput struct {
	Transfer float64 `json:"transfer_amount" validate:"gte=0"`
	Cash     float64 `json:"cash_amount" validate:"gte=0"`
	Notes    string  `json:"notes" validate:"max=500"`
}

// Report aggregates the full ledger.
type Report struct {
	Entries       []Entry `json:"entries"`
	Count         int     `json:"count"`
	TotalTransfer float64 `json:"total_transfer"`
	TotalCash     float64 `json:"total_cash"`
	GrandTotal    float64 `json:"grand_total"`
}

// ErrEntryNotFound is returned when an entry row is missing.
var ErrEntryNotFound = errors.New("cashregister: entry not found")
