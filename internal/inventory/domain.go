package inventory

import (
	"errors"
	"time"
)

// Product is a row of the product ledger.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	UnitMeasure string    `json:"unit_measure"`
	Quantity    int       `json:"quantity"`
	DailySales  int       `json:"daily_sales"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductInput carries editable product fields. DailySales is never written
// from here; only sale recording, reversal and the daily close touch it.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Price       float64 `json:"price" validate:"gte=0"`
	UnitMeasure string  `json:"unit_measure" validate:"required,max=32"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
}

// Report aggregates stock on hand.
type Report struct {
	Date          string    `json:"date"`
	Products      []Product `json:"products"`
	ProductCount  int       `json:"product_count"`
	TotalUnits    int       `json:"total_units"`
	TotalValue    float64   `json:"total_value"`
	LowStockCount int       `json:"low_stock_count"`
}

// DeleteSummary reports the rows removed by a product deletion.
type DeleteSummary struct {
	Product      Product `json:"product"`
	SalesRemoved int64   `json:"sales_removed"`
}

// ErrProductNotFound is returned when a product row is missing.
var ErrProductNotFound = errors.New("inventory: product not found")
