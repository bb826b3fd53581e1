package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/wholesale-orders/internal/domain/order"
	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

// orderWindow selects orders by $1 (from, inclusive), $2 (to, exclusive) and
// $3 (statuses). NULL bounds are open.
const orderWindow = `($1::timestamptz IS NULL OR o.created_at >= $1)
	AND ($2::timestamptz IS NULL OR o.created_at < $2)
	AND o.status = ANY($3)`

const (
	overviewSQL = `SELECT count(*), COALESCE(sum(o.total_amount), 0), COALESCE(sum(o.total_quantity), 0)
	FROM orders o
	WHERE ` + orderWindow

	productSalesSQL = `SELECT i.product_id, p.code, p.name, sum(i.quantity), sum(i.subtotal)
	FROM order_items i
	JOIN orders o ON o.id = i.order_id
	JOIN products p ON p.id = i.product_id
	WHERE ` + orderWindow + `
	GROUP BY i.product_id, p.code, p.name
	ORDER BY sum(i.subtotal) DESC, i.product_id
	LIMIT $4`

	customerTotalsSQL = `SELECT o.customer_name, o.customer_phone, count(*), sum(o.total_amount), sum(o.total_quantity)
	FROM orders o
	WHERE ` + orderWindow + `
	GROUP BY o.customer_name, o.customer_phone
	ORDER BY sum(o.total_amount) DESC, o.customer_name, o.customer_phone
	LIMIT $4`

	bestSellingSQL = `SELECT i.product_id, p.code, p.name, sum(i.quantity), sum(i.subtotal), count(DISTINCT o.id)
	FROM order_items i
	JOIN orders o ON o.id = i.order_id
	JOIN products p ON p.id = i.product_id
	WHERE ` + orderWindow + `
	GROUP BY i.product_id, p.code, p.name
	ORDER BY sum(i.quantity) DESC, i.product_id
	LIMIT $4`

	slowMovingSQL = `SELECT p.id, p.code, p.name, p.stock, s.last_sale
	FROM products p
	LEFT JOIN (
		SELECT i.product_id, max(o.created_at) AS last_sale
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.status = ANY($1)
		GROUP BY i.product_id
	) s ON s.product_id = p.id
	WHERE p.status = 'active' AND (s.last_sale IS NULL OR s.last_sale < $2)
	ORDER BY s.last_sale ASC NULLS FIRST, p.id
	LIMIT $3`

	dailyTotalsSQL = `SELECT to_char(o.created_at AT TIME ZONE $4, 'YYYY-MM-DD') AS day,
		count(*), COALESCE(sum(o.total_amount), 0)
	FROM orders o
	WHERE ` + orderWindow + `
	GROUP BY day
	ORDER BY day`

	monthlyTotalsSQL = `SELECT extract(month FROM o.created_at AT TIME ZONE $4)::int AS month,
		count(*), COALESCE(sum(o.total_amount), 0)
	FROM orders o
	WHERE ` + orderWindow + `
	GROUP BY month
	ORDER BY month`

	statusCountsSQL = `SELECT status, count(*) FROM orders GROUP BY status`

	productCountsSQL = `SELECT count(*),
		count(*) FILTER (WHERE status = 'active'),
		count(*) FILTER (WHERE stock = 0)
	FROM products`
)

var _ stats.Store = (*StatsRepository)(nil)

// StatsRepository runs statistics aggregations in PostgreSQL.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a StatsRepository that uses the given pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func statusArgs(statuses []order.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func windowArgs(f stats.Filter) []any {
	return []any{f.From, f.To, statusArgs(f.Statuses)}
}

// Overview implements stats.Store.
func (r *StatsRepository) Overview(ctx context.Context, f stats.Filter) (stats.SalesOverview, error) {
	var ov stats.SalesOverview
	err := r.pool.QueryRow(ctx, overviewSQL, windowArgs(f)...).Scan(&ov.OrderCount, &ov.TotalSales, &ov.TotalQuantity)
	if err != nil {
		return stats.SalesOverview{}, errors.Wrap(err, "query overview")
	}
	return ov, nil
}

// ProductSales implements stats.Store.
func (r *StatsRepository) ProductSales(ctx context.Context, f stats.Filter, limit int) ([]stats.ProductSales, error) {
	rows, err := r.pool.Query(ctx, productSalesSQL, append(windowArgs(f), limitArg(limit))...)
	if err != nil {
		return nil, errors.Wrap(err, "query product sales")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.ProductSales, error) {
		var ps stats.ProductSales
		err := row.Scan(&ps.ProductID, &ps.ProductCode, &ps.ProductName, &ps.QuantitySold, &ps.SalesAmount)
		return ps, err
	})
}

// CustomerTotals implements stats.Store.
func (r *StatsRepository) CustomerTotals(ctx context.Context, f stats.Filter, limit int) ([]stats.CustomerRank, error) {
	rows, err := r.pool.Query(ctx, customerTotalsSQL, append(windowArgs(f), limitArg(limit))...)
	if err != nil {
		return nil, errors.Wrap(err, "query customer totals")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.CustomerRank, error) {
		var c stats.CustomerRank
		err := row.Scan(&c.CustomerName, &c.CustomerPhone, &c.OrderCount, &c.TotalAmount, &c.TotalQuantity)
		return c, err
	})
}

// BestSelling implements stats.Store.
func (r *StatsRepository) BestSelling(ctx context.Context, f stats.Filter, limit int) ([]stats.BestSeller, error) {
	rows, err := r.pool.Query(ctx, bestSellingSQL, append(windowArgs(f), limitArg(limit))...)
	if err != nil {
		return nil, errors.Wrap(err, "query best selling")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.BestSeller, error) {
		var b stats.BestSeller
		err := row.Scan(&b.ProductID, &b.ProductCode, &b.ProductName, &b.QuantitySold, &b.SalesAmount, &b.OrderCount)
		return b, err
	})
}

// SlowMoving implements stats.Store.
func (r *StatsRepository) SlowMoving(ctx context.Context, statuses []order.Status, cutoff time.Time, limit int) ([]stats.SlowMover, error) {
	rows, err := r.pool.Query(ctx, slowMovingSQL, statusArgs(statuses), cutoff, limitArg(limit))
	if err != nil {
		return nil, errors.Wrap(err, "query slow moving")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.SlowMover, error) {
		var m stats.SlowMover
		err := row.Scan(&m.ProductID, &m.ProductCode, &m.ProductName, &m.Stock, &m.LastSaleAt)
		return m, err
	})
}

// DailyTotals implements stats.Store.
func (r *StatsRepository) DailyTotals(ctx context.Context, f stats.Filter, loc *time.Location) ([]stats.DailySales, error) {
	rows, err := r.pool.Query(ctx, dailyTotalsSQL, append(windowArgs(f), loc.String())...)
	if err != nil {
		return nil, errors.Wrap(err, "query daily totals")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.DailySales, error) {
		var d stats.DailySales
		err := row.Scan(&d.Date, &d.OrderCount, &d.TotalSales)
		return d, err
	})
}

// MonthlyTotals implements stats.Store.
func (r *StatsRepository) MonthlyTotals(ctx context.Context, f stats.Filter, loc *time.Location) ([]stats.MonthlySales, error) {
	rows, err := r.pool.Query(ctx, monthlyTotalsSQL, append(windowArgs(f), loc.String())...)
	if err != nil {
		return nil, errors.Wrap(err, "query monthly totals")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.MonthlySales, error) {
		var m stats.MonthlySales
		err := row.Scan(&m.Month, &m.OrderCount, &m.TotalSales)
		return m, err
	})
}

// StatusCounts implements stats.Store.
func (r *StatsRepository) StatusCounts(ctx context.Context) (map[order.Status]int64, error) {
	rows, err := r.pool.Query(ctx, statusCountsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query status counts")
	}
	defer rows.Close()

	counts := make(map[order.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		counts[order.Status(status)] = n
	}
	return counts, errors.Wrap(rows.Err(), "status counts")
}

// ProductCounts implements stats.Store.
func (r *StatsRepository) ProductCounts(ctx context.Context) (stats.ProductCounts, error) {
	var c stats.ProductCounts
	err := r.pool.QueryRow(ctx, productCountsSQL).Scan(&c.Total, &c.Active, &c.OutOfStock)
	return c, errors.Wrap(err, "query product counts")
}
