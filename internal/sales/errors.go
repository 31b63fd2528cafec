package sales

import "errors"

var (
	// ErrProductNotFound is returned by the repository when a product row is missing.
	ErrProductNotFound = errors.New("sales: product not found")
	// ErrSaleNotFound is returned by the repository when a sale row is missing.
	ErrSaleNotFound = errors.New("sales: sale not found")
)
