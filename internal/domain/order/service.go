package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/wholesale-orders/internal/domain/pricing"
	"github.com/xenking/wholesale-orders/internal/domain/product"
)

const defaultMaxAttempts = 5

// MaxQuantity bounds line quantities and the order total quantity.
const MaxQuantity = math.MaxInt32

// MaxAmount is the largest line subtotal or order total that can be stored.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// LineRequest is a requested order line.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Customer Customer
	Notes    string
	Items    []LineRequest
}

// Option configures a Service.
type Option func(*Service)

// WithNumberSource replaces the default order number generator.
func WithNumberSource(src NumberSource) Option {
	return func(s *Service) { s.numbers = src }
}

// WithNotifier sets the post-commit hook.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts bounds retries on order number collisions and concurrent
// status changes.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("github.com/xenking/wholesale-orders/internal/domain/order")
		s.meter = mp.Meter("github.com/xenking/wholesale-orders/internal/domain/order")
	}
}

// Service is the order engine: it prices, validates and persists orders and
// drives their status lifecycle.
type Service struct {
	pricer      *pricing.Resolver
	orders      Repository
	numbers     NumberSource
	notifier    Notifier
	now         func() time.Time
	maxAttempts int

	tracer  trace.Tracer
	meter   metric.Meter
	created metric.Int64Counter
}

// NewService creates an order Service.
func NewService(products product.Repository, orders Repository, opts ...Option) *Service {
	s := &Service{
		pricer:      pricing.NewResolver(products),
		orders:      orders,
		numbers:     NewNumberGenerator(defaultNumberPrefix, defaultNumberDigits),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		meter:       metricnoop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	created, err := s.meter.Int64Counter("orders.created",
		metric.WithDescription("Orders committed to storage"),
	)
	if err != nil {
		created, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("orders.created")
	}
	s.created = created
	return s
}

// Create validates the request, prices every line, persists the order with
// all its lines in one transaction and hands the committed order to the
// notifier.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	o, err := s.build(ctx, req)
	if err == nil {
		err = s.persist(ctx, o)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.no", o.OrderNo),
		attribute.Int64("order.id", o.ID),
		attribute.Int("order.items", len(o.Items)),
	)
	s.created.Add(ctx, 1)
	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_no", o.OrderNo),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
		zap.Int("total_quantity", o.TotalQuantity),
	)

	if s.notifier != nil {
		s.notifier.Notify(ctx, o)
	}
	return o, nil
}

func (s *Service) build(ctx context.Context, req CreateRequest) (*Order, error) {
	customer := Customer{
		Name:    strings.TrimSpace(req.Customer.Name),
		Phone:   strings.TrimSpace(req.Customer.Phone),
		Email:   strings.TrimSpace(req.Customer.Email),
		Address: strings.TrimSpace(req.Customer.Address),
	}
	if customer.Name == "" {
		return nil, &ValidationError{Field: "customer_name", Reason: "customer name required", Err: ErrEmptyCustomer}
	}
	if len(req.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "items required", Err: ErrEmptyItems}
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("quantity must be greater than 0 for product %d", item.ProductID),
				Err:    pricing.ErrInvalidQuantity,
			}
		}
		if item.Quantity > MaxQuantity {
			return nil, quantityTooLarge(i, "quantity must not exceed %d", MaxQuantity)
		}
		lines[i] = pricing.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	quotes, err := s.pricer.ResolveMany(ctx, lines)
	if err != nil {
		var lineErr *pricing.LineError
		switch {
		case errors.As(err, &lineErr) && errors.Is(lineErr.Err, product.ErrNotFound):
			return nil, &ProductNotFoundError{ProductID: lineErr.ProductID}
		case errors.As(err, &lineErr):
			return nil, &ValidationError{
				Field:  fmt.Sprintf("items[%d].product_id", lineErr.Index),
				Reason: fmt.Sprintf("product %d: %v", lineErr.ProductID, lineErr.Err),
				Err:    lineErr.Err,
			}
		default:
			return nil, &PersistenceError{Op: "get products", Err: err}
		}
	}

	o := &Order{
		Customer: customer,
		Notes:    strings.TrimSpace(req.Notes),
		Status:   StatusPending,
		Items:    make([]Item, 0, len(quotes)),
	}
	total := decimal.Zero
	for i, q := range quotes {
		if q.Subtotal.GreaterThan(MaxAmount) {
			return nil, amountTooLarge(i, "line subtotal %s exceeds %s", q.Subtotal, MaxAmount)
		}
		total = total.Add(q.Subtotal)
		if total.GreaterThan(MaxAmount) {
			return nil, amountTooLarge(i, "order total exceeds %s", MaxAmount)
		}
		if o.TotalQuantity > MaxQuantity-q.Quantity {
			return nil, quantityTooLarge(i, "total quantity must not exceed %d", MaxQuantity)
		}
		o.TotalQuantity += q.Quantity
		o.Items = append(o.Items, Item{
			ProductID:   q.ProductID,
			ProductName: q.Product.Name,
			ProductCode: q.Product.Code,
			Quantity:    q.Quantity,
			UnitPrice:   q.UnitPrice,
			Subtotal:    q.Subtotal,
		})
	}
	o.TotalAmount = total
	return o, nil
}

func quantityTooLarge(i int, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  fmt.Sprintf("items[%d].quantity", i),
		Reason: fmt.Sprintf(format, args...),
		Err:    ErrQuantityTooLarge,
	}
}

func amountTooLarge(i int, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  fmt.Sprintf("items[%d].quantity", i),
		Reason: fmt.Sprintf(format, args...),
		Err:    ErrAmountTooLarge,
	}
}

// persist assigns an order number and writes the order, regenerating the
// number when it collides with an existing one.
func (s *Service) persist(ctx context.Context, o *Order) error {
	lg := zctx.From(ctx)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		o.OrderNo = s.numbers.Next()
		err := s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDuplicateOrderNo) {
			lg.Debug("Order number collision, retrying",
				zap.String("order_no", o.OrderNo),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return &PersistenceError{Op: "create order", Err: err}
	}
	return &ConflictError{Op: "assign order number", Attempts: s.maxAttempts}
}

// UpdateStatus moves an order to status to. Every successful call advances
// updated_at, including re-applying the current status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(to)),
	))
	defer span.End()

	o, err := s.updateStatus(ctx, id, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return o, nil
}

func (s *Service) updateStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	for range s.maxAttempts {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanTransition(cur.Status, to) {
			return nil, &TransitionError{From: cur.Status, To: to}
		}

		updated, err := s.orders.UpdateStatus(ctx, id, cur.Status, to, s.now())
		switch {
		case err == nil:
			zctx.From(ctx).Info("Order status updated",
				zap.Int64("order_id", id),
				zap.String("from", string(cur.Status)),
				zap.String("to", string(to)),
			)
			return updated, nil
		case errors.Is(err, ErrStatusChanged):
			continue
		case errors.Is(err, ErrNotFound):
			return nil, errors.Wrapf(err, "order %d", id)
		default:
			return nil, &PersistenceError{Op: "update order status", Err: err}
		}
	}
	return nil, &ConflictError{Op: "update order status", Attempts: s.maxAttempts}
}

// Get returns the order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(err, "order %d", id)
		}
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}

// List returns a page of orders, newest first, and the number of matches.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Reason: "unknown status " + string(f.Status)}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, 0, &ValidationError{Field: "page", Reason: "limit and offset must not be negative"}
	}
	f.Search = strings.TrimSpace(f.Search)

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list orders", Err: err}
	}
	return orders, total, nil
}

// GetByOrderNo returns the order carrying the given number.
func (s *Service) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(err, "order %s", orderNo)
		}
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}
