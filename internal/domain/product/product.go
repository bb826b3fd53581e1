package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when a product exists but is not active.
	ErrUnavailable = errors.New("product is not available")
)

// Status is the catalog availability of a product.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Product is a catalog entry with its retail and wholesale price tiers.
type Product struct {
	ID              int64
	Code            string
	Name            string
	RetailPrice     decimal.Decimal
	WholesalePrice  decimal.Decimal
	WholesaleMinQty int
	Stock           int
	Status          Status
}

// Active reports whether the product can be ordered.
func (p Product) Active() bool {
	return p.Status == StatusActive
}

// Query selects active products, newest first.
type Query struct {
	// Search matches a case-insensitive substring of the name or code.
	Search string
	Limit  int
	Offset int
}

// Page is one window of matching products and the total match count.
type Page struct {
	Products []Product
	Total    int64
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
