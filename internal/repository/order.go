package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

const (
	orderNoConstraint = "orders_order_no_key"

	orderColumns = `id, order_no, customer_name, customer_phone, customer_email, customer_address,
	total_amount, total_quantity, status, notified, notes, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (order_no, customer_name, customer_phone, customer_email,
		customer_address, total_amount, total_quantity, status, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at`

	insertItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, product_code,
		quantity, unit_price, subtotal)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByNoSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`

	listOrdersWhere = `WHERE ($1::text IS NULL OR status = $1)
	AND (order_no ILIKE $2 ESCAPE '\' OR customer_name ILIKE $2 ESCAPE '\' OR customer_phone ILIKE $2 ESCAPE '\')`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ` + listOrdersWhere + `
	ORDER BY created_at DESC, id DESC
	LIMIT $3 OFFSET $4`

	countOrdersSQL = `SELECT count(*) FROM orders ` + listOrdersWhere

	listItemsOfOrdersSQL = `SELECT id, order_id, product_id, product_name, product_code, quantity, unit_price, subtotal
	FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`

	listItemsSQL = `SELECT id, order_id, product_id, product_name, product_code, quantity, unit_price, subtotal
	FROM order_items WHERE order_id = $1 ORDER BY id`

	// updated_at must strictly advance even when the clock reads behind the
	// stored value.
	updateStatusSQL = `UPDATE orders
	SET status = $3, updated_at = GREATEST($4::timestamptz, updated_at + interval '1 microsecond')
	WHERE id = $1 AND status = $2
	RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	markNotifiedSQL = `UPDATE orders SET notified = TRUE WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order header and all items in one transaction. The
// generated ids and timestamps are copied into o only after commit.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, insertOrderSQL,
		o.OrderNo, o.Customer.Name, o.Customer.Phone, o.Customer.Email, o.Customer.Address,
		o.TotalAmount, o.TotalQuantity, string(o.Status), o.Notes,
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err, orderNoConstraint) {
			return errors.Wrapf(order.ErrDuplicateOrderNo, "order no %s", o.OrderNo)
		}
		return errors.Wrap(err, "insert order")
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(insertItemSQL,
			id, it.ProductID, it.ProductName, it.ProductCode, it.Quantity, it.UnitPrice, it.Subtotal,
		)
	}
	itemIDs := make([]int64, len(o.Items))
	br := tx.SendBatch(ctx, batch)
	for i := range o.Items {
		if err := br.QueryRow().Scan(&itemIDs[i]); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "insert item %d", i)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "insert items")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}

	o.ID = id
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	for i := range o.Items {
		o.Items[i].ID = itemIDs[i]
		o.Items[i].OrderID = id
	}
	return nil
}

// GetByID returns the order and its items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.get(ctx, getOrderByIDSQL, id)
}

// GetByOrderNo returns the order with the given number and its items.
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.get(ctx, getOrderByNoSQL, orderNo)
}

func (r *OrderRepository) get(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, listItemsSQL, o.ID)
	if err != nil {
		return errors.Wrapf(err, "list items of order %d", o.ID)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return errors.Wrapf(err, "list items of order %d", o.ID)
	}
	o.Items = items
	return nil
}

// List returns one page of orders matching f, newest first, with their items.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int64, error) {
	var status *string
	if f.Status != "" {
		s := string(f.Status)
		status = &s
	}
	pattern := containsPattern(f.Search)

	var total int64
	if err := r.pool.QueryRow(ctx, countOrdersSQL, status, pattern).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, status, pattern, limitArg(f.Limit), f.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	if len(orders) == 0 {
		return orders, total, nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
		orders[i].Items = []order.Item{}
	}
	rows, err = r.pool.Query(ctx, listItemsOfOrdersSQL, ids)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list order items")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list order items")
	}
	for _, it := range items {
		i := byID[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return orders, total, nil
}

// UpdateStatus sets status to when the stored status still equals from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to order.Status, at time.Time) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return nil, errors.Wrapf(err, "update status of order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		var exists bool
		if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
			return nil, errors.Wrapf(err, "check order %d", id)
		}
		if !exists {
			return nil, order.ErrNotFound
		}
		return nil, order.ErrStatusChanged
	case err != nil:
		return nil, errors.Wrapf(err, "update status of order %d", id)
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkNotified sets the notified flag.
func (r *OrderRepository) MarkNotified(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, markNotifiedSQL, id)
	if err != nil {
		return errors.Wrapf(err, "mark order %d notified", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.OrderNo, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.Address,
		&o.TotalAmount, &o.TotalQuantity, &status, &o.Notified, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductCode,
		&it.Quantity, &it.UnitPrice, &it.Subtotal,
	)
	return it, err
}
