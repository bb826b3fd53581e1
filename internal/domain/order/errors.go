package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/wholesale-orders/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	ErrNotFound         = errors.New("order not found")
	ErrEmptyItems       = errors.New("items required")
	ErrEmptyCustomer    = errors.New("customer name required")
	ErrDuplicateOrderNo = errors.New("order number already exists")
	ErrStatusChanged    = errors.New("order status changed concurrently")
	ErrQuantityTooLarge = errors.New("quantity too large")
	ErrAmountTooLarge   = errors.New("amount too large")
)

// ValidationError reports malformed or missing input. Nothing is written when
// it is returned.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ProductNotFoundError indicates an order line references an unknown product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// TransitionError indicates a status change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ConflictError is returned when a write kept colliding with concurrent
// writers and the retry budget ran out.
type ConflictError struct {
	Op       string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict after %d attempts", e.Op, e.Attempts)
}

// PersistenceError wraps a storage failure. The failed write was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
