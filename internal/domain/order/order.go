package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Customer holds the contact data captured on an order.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Order is a customer order with its line snapshots.
type Order struct {
	ID            int64
	OrderNo       string
	Customer      Customer
	TotalAmount   decimal.Decimal
	TotalQuantity int
	Status        Status
	Notified      bool
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []Item
}

// Item is an immutable order line. Product name, code and unit price are
// copied from the catalog when the order is created.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	ProductCode string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// ListFilter selects orders, newest first.
type ListFilter struct {
	// Status restricts the result to one status when set.
	Status Status
	// Search matches a case-insensitive substring of the order number,
	// customer name or customer phone.
	Search string
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order and all of its items atomically and fills in
	// the generated identifiers and timestamps. It returns
	// ErrDuplicateOrderNo when the order number is already taken.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	// List returns the orders matching f with their items, and the number
	// of matches ignoring Limit and Offset.
	List(ctx context.Context, f ListFilter) ([]Order, int64, error)
	// UpdateStatus sets the status only if the stored status still equals
	// from. It returns ErrStatusChanged when it does not and ErrNotFound when
	// the order does not exist.
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (*Order, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Notifier receives every committed order once. Implementations must not
// block the caller.
type Notifier interface {
	Notify(ctx context.Context, o *Order)
}
