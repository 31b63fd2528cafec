package sales

import (
	"strings"
	"time"
)

// DefaultCustomer labels sales recorded without a named customer.
const DefaultCustomer = "Walk-in customer"

// DefaultFeedLimit bounds the live sales feed.
const DefaultFeedLimit = 50

// Product is the ledger view of a product as seen by sale recording.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	UnitMeasure string  `json:"unit_measure"`
	Quantity    int     `json:"quantity"`
	DailySales  int     `json:"daily_sales"`
}

// Sale is one journal row. Total is snapshotted when the sale is recorded.
type Sale struct {
	ID        int64     `json:"id"`
	Customer  string    `json:"customer"`
	Total     float64   `json:"total"`
	Quantity  int       `json:"quantity"`
	SoldAt    time.Time `json:"sold_at"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
}

// SaleView is a journal row joined with product and user names for listings.
type SaleView struct {
	Sale
	ProductName string `json:"product_name"`
	Username    string `json:"username"`
}

// SingleInput is a one-product sale submitted from the POS form.
type SingleInput struct {
	Customer  string
	ProductID int64 `validate:"required,gt=0"`
	Quantity  int   `validate:"required,gt=0"`
}

// LineInput is one line of a batch sale.
type LineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// BatchInput is a multi-line sale under one customer.
type BatchInput struct {
	Customer string      `json:"customer"`
	Items    []LineInput `json:"items"`
}

// LineOutcome reports the effect of one committed batch line.
type LineOutcome struct {
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
	NewStock    int     `json:"new_stock"`
}

// ListFilter narrows journal listings.
type ListFilter struct {
	From      time.Time
	To        time.Time
	ProductID int64
	UserID    int64
	Limit     int
}

// DailyReportLine is a product that sold units since the last close.
type DailyReportLine struct {
	ProductID   int64   `json:"product_id"`
	Name        string  `json:"name"`
	UnitMeasure string  `json:"unit_measure"`
	Price       float64 `json:"price"`
	DailySales  int     `json:"daily_sales"`
	Total       float64 `json:"total"`
}

// DailyReport aggregates the running daily counters.
type DailyReport struct {
	Date  string            `json:"date"`
	Lines []DailyReportLine `json:"lines"`
	Total float64           `json:"total"`
}

// Overview is the POS landing data.
type Overview struct {
	TodayTotal float64    `json:"today_total"`
	Feed       []SaleView `json:"feed"`
	LowStock   []Product  `json:"low_stock"`
}

func customerLabel(raw string) string {
	if label := strings.TrimSpace(raw); label != "" {
		return label
	}
	return DefaultCustomer
}
