// Package stats aggregates realized orders into sales reports.
package stats

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

// Default result sizes used when a caller does not ask for a specific limit.
const (
	DefaultProductLimit  = 10
	DefaultCustomerLimit = 20
	DefaultBestLimit     = 10
	DefaultSlowLimit     = 20
)

var (
	// ErrInvalidRange is returned when the start date is after the end date.
	ErrInvalidRange = errors.New("start date is after end date")
	// ErrInvalidPeriod is returned for a year or month outside the calendar.
	ErrInvalidPeriod = errors.New("invalid year or month")
)

// Range is an optional inclusive window of calendar dates. Only the date part
// of Start and End is used.
type Range struct {
	Start *time.Time
	End   *time.Time
}

// Filter selects orders for a store query. From is inclusive, To exclusive,
// and a nil bound is open.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Statuses []order.Status
}

// SalesOverview summarizes realized orders in a window.
type SalesOverview struct {
	OrderCount     int64           `json:"order_count"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalQuantity  int64           `json:"total_quantity"`
	AvgOrderAmount decimal.Decimal `json:"avg_order_amount"`
}

// ProductSales is one product's share of revenue.
type ProductSales struct {
	Rank         int             `json:"rank"`
	ProductID    int64           `json:"product_id"`
	ProductCode  string          `json:"product_code"`
	ProductName  string          `json:"product_name"`
	QuantitySold int64           `json:"quantity_sold"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	SalesShare   decimal.Decimal `json:"sales_share"`
}

// CustomerRank aggregates the orders of one (name, phone) pair.
type CustomerRank struct {
	Rank          int             `json:"rank"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	OrderCount    int64           `json:"order_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalQuantity int64           `json:"total_quantity"`
	AvgAmount     decimal.Decimal `json:"avg_amount"`
}

// BestSeller ranks a product by units sold.
type BestSeller struct {
	Rank         int             `json:"rank"`
	ProductID    int64           `json:"product_id"`
	ProductCode  string          `json:"product_code"`
	ProductName  string          `json:"product_name"`
	QuantitySold int64           `json:"quantity_sold"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	OrderCount   int64           `json:"order_count"`
}

// SlowMover is an active product without a recent realized sale.
type SlowMover struct {
	ProductID   int64      `json:"product_id"`
	ProductCode string     `json:"product_code"`
	ProductName string     `json:"product_name"`
	Stock       int64      `json:"stock"`
	LastSaleAt  *time.Time `json:"last_sale_at"`
	NeverSold   bool       `json:"never_sold"`
	IdleDays    int        `json:"idle_days"`
}

// DailySales is one calendar day of a monthly series. Date is YYYY-MM-DD.
type DailySales struct {
	Date       string          `json:"date"`
	OrderCount int64           `json:"order_count"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

// MonthlyReport is the full statistics bundle for one calendar month.
type MonthlyReport struct {
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	Overview    SalesOverview  `json:"overview"`
	Daily       []DailySales   `json:"daily"`
	BestSelling []BestSeller   `json:"best_selling"`
	Customers   []CustomerRank `json:"customers"`
}

// MonthlySales is one month of a yearly summary.
type MonthlySales struct {
	Month      int             `json:"month"`
	OrderCount int64           `json:"order_count"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

// YearlySummary always holds twelve months.
type YearlySummary struct {
	Year       int             `json:"year"`
	Months     []MonthlySales  `json:"months"`
	OrderCount int64           `json:"order_count"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

// ProductCounts summarizes the catalog.
type ProductCounts struct {
	Total      int64 `json:"total"`
	Active     int64 `json:"active"`
	OutOfStock int64 `json:"out_of_stock"`
}

// OrderSummary counts all orders by status alongside the catalog counters.
type OrderSummary struct {
	TotalOrders   int64                  `json:"total_orders"`
	ByStatus      map[order.Status]int64 `json:"by_status"`
	RealizedSales decimal.Decimal        `json:"realized_sales"`
	Products      ProductCounts          `json:"products"`
}

// Store runs the aggregation queries. A non-positive limit returns all rows.
type Store interface {
	// Overview fills OrderCount, TotalSales and TotalQuantity.
	Overview(ctx context.Context, f Filter) (SalesOverview, error)
	// ProductSales returns rows ordered by SalesAmount descending.
	ProductSales(ctx context.Context, f Filter, limit int) ([]ProductSales, error)
	// CustomerTotals returns rows ordered by TotalAmount descending.
	CustomerTotals(ctx context.Context, f Filter, limit int) ([]CustomerRank, error)
	// BestSelling returns rows ordered by QuantitySold descending.
	BestSelling(ctx context.Context, f Filter, limit int) ([]BestSeller, error)
	// SlowMoving returns active products whose last sale in one of statuses
	// happened before cutoff, or never happened.
	SlowMoving(ctx context.Context, statuses []order.Status, cutoff time.Time, limit int) ([]SlowMover, error)
	// DailyTotals buckets orders by calendar day in loc. Days without orders
	// may be omitted.
	DailyTotals(ctx context.Context, f Filter, loc *time.Location) ([]DailySales, error)
	// MonthlyTotals buckets orders by calendar month in loc. Months without
	// orders may be omitted.
	MonthlyTotals(ctx context.Context, f Filter, loc *time.Location) ([]MonthlySales, error)
	// StatusCounts counts every order by status.
	StatusCounts(ctx context.Context) (map[order.Status]int64, error)
	// ProductCounts counts catalog products. Out of stock includes inactive
	// products.
	ProductCounts(ctx context.Context) (ProductCounts, error)
}

// Cache stores serialized results. Get reports whether the key was found.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}
