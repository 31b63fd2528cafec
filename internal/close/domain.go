package close

import "time"

// DateLayout is the calendar date format stored on close records.
const DateLayout = "2006-01-02"

// DailySalesRecord archives the sales total of one close run. Several records
// may share a date when the close runs more than once a day.
type DailySalesRecord struct {
	ID           int64     `json:"id"`
	Date         string    `json:"date"`
	Total        float64   `json:"total"`
	ClosedBy     int64     `json:"closed_by,omitempty"`
	ClosedByName string    `json:"closed_by_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary describes a completed close.
type Summary struct {
	Date          string            `json:"date"`
	Total         float64           `json:"total"`
	Recorded      bool              `json:"recorded"`
	Record        *DailySalesRecord `json:"record,omitempty"`
	SalesPurged   int               `json:"sales_purged"`
	ProductsReset int64             `json:"products_reset"`
	Message       string            `json:"message"`
}
