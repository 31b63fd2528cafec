// Package settings stores the single company settings row.
package settings

import "time"

// Settings is the company-wide configuration shown across the back office.
type Settings struct {
	CompanyName string    `json:"company_name"`
	Currency    string    `json:"currency"`
	DateFormat  string    `json:"date_format"`
	Language    string    `json:"language"`
	DarkMode    bool      `json:"dark_mode"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Defaults mirrors the column defaults of company_settings.
func Defaults() Settings {
	return Settings{CompanyName: "Tradyx", Currency: "$", DateFormat: "%d/%m/%Y", Language: "es"}
}

// UpdateInput carries the admin-editable fields. Blank fields fall back to
// Defaults.
type UpdateInput struct {
	CompanyName string `json:"company_name" validate:"max=120"`
	Currency    string `json:"currency" validate:"max=8"`
	DateFormat  string `json:"date_format" validate:"max=32"`
	Language    string `json:"language" validate:"omitempty,oneof=es en"`
}

// SystemInfo summarises the installation for the settings page.
type SystemInfo struct {
	Users    int `json:"users_count"`
	Products int `json:"products_count"`
}
