package stats

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

// Config tunes the Engine.
type Config struct {
	// Location defines calendar days and months. Defaults to UTC.
	Location *time.Location
	// SlowMovingAfter is the idle period after which a product counts as slow
	// moving. Defaults to 30 days.
	SlowMovingAfter time.Duration
	// MonthlyTopN bounds the rankings inside a monthly report. Defaults to 10.
	MonthlyTopN int
	// QueryTimeout bounds each operation. Zero means no bound.
	QueryTimeout time.Duration
}

// Engine computes sales statistics over realized orders.
type Engine struct {
	store Store
	cache Cache
	cfg   Config
	now   func() time.Time
}

// NewEngine creates an Engine. cache may be nil.
func NewEngine(store Store, cache Cache, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlowMovingAfter <= 0 {
		cfg.SlowMovingAfter = 30 * 24 * time.Hour
	}
	if cfg.MonthlyTopN <= 0 {
		cfg.MonthlyTopN = 10
	}
	return &Engine{store: store, cache: cache, cfg: cfg, now: time.Now}
}

// Location returns the calendar location of the engine.
func (e *Engine) Location() *time.Location { return e.cfg.Location }

// Now returns the engine clock reading in its location.
func (e *Engine) Now() time.Time { return e.now().In(e.cfg.Location) }

func (e *Engine) filter(r Range) (Filter, error) {
	f := Filter{Statuses: order.RealizedStatuses()}
	if r.Start != nil {
		from := e.day(*r.Start)
		f.From = &from
	}
	if r.End != nil {
		to := e.day(*r.End).AddDate(0, 0, 1)
		f.To = &to
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return Filter{}, ErrInvalidRange
	}
	return f, nil
}

// day returns midnight of t's calendar date in the engine location.
func (e *Engine) day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.cfg.Location)
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.QueryTimeout)
}

func rangeKey(r Range) string {
	var b strings.Builder
	for i, t := range []*time.Time{r.Start, r.End} {
		if i > 0 {
			b.WriteByte('_')
		}
		if t == nil {
			b.WriteByte('*')
			continue
		}
		b.WriteString(t.Format("20060102"))
	}
	return b.String()
}

// load serves key from the cache, falling back to fn. Cache failures only
// cost a recomputation.
func load[T any](ctx context.Context, e *Engine, key string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	key = "stats:" + e.cfg.Location.String() + ":" + key
	if e.cache != nil {
		var cached T
		ok, err := e.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			zctx.From(ctx).Warn("Statistics cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			return cached, nil
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, key, v); err != nil {
			zctx.From(ctx).Warn("Statistics cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

// SalesOverview summarizes realized orders in r.
func (e *Engine) SalesOverview(ctx context.Context, r Range) (SalesOverview, error) {
	f, err := e.filter(r)
	if err != nil {
		return SalesOverview{}, err
	}
	return load(ctx, e, "overview:"+rangeKey(r), func(ctx context.Context) (SalesOverview, error) {
		return e.overview(ctx, f)
	})
}

func (e *Engine) overview(ctx context.Context, f Filter) (SalesOverview, error) {
	ov, err := e.store.Overview(ctx, f)
	if err != nil {
		return SalesOverview{}, errors.Wrap(err, "overview")
	}
	ov.AvgOrderAmount = average(ov.TotalSales, ov.OrderCount)
	return ov, nil
}

// ProductSalesRatio ranks products by revenue in r. SalesShare is the
// percentage of all realized revenue in r.
func (e *Engine) ProductSalesRatio(ctx context.Context, r Range, limit int) ([]ProductSales, error) {
	f, err := e.filter(r)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("products:%s:%d", rangeKey(r), limit)
	return load(ctx, e, key, func(ctx context.Context) ([]ProductSales, error) {
		var (
			rows  []ProductSales
			total SalesOverview
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			rows, err = e.store.ProductSales(gctx, f, limit)
			return errors.Wrap(err, "product sales")
		})
		g.Go(func() (err error) {
			total, err = e.store.Overview(gctx, f)
			return errors.Wrap(err, "overview")
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		rows = nonNil(rows)
		slices.SortStableFunc(rows, func(a, b ProductSales) int {
			return b.SalesAmount.Cmp(a.SalesAmount)
		})
		for i := range rows {
			rows[i].Rank = i + 1
			rows[i].SalesShare = decimal.Zero
			if total.TotalSales.IsPositive() {
				rows[i].SalesShare = rows[i].SalesAmount.Mul(hundred).Div(total.TotalSales).Round(2)
			}
		}
		return rows, nil
	})
}

// CustomerRanking ranks (name, phone) pairs by spend in r.
func (e *Engine) CustomerRanking(ctx context.Context, r Range, limit int) ([]CustomerRank, error) {
	f, err := e.filter(r)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("customers:%s:%d", rangeKey(r), limit)
	return load(ctx, e, key, func(ctx context.Context) ([]CustomerRank, error) {
		return e.customers(ctx, f, limit)
	})
}

func (e *Engine) customers(ctx context.Context, f Filter, limit int) ([]CustomerRank, error) {
	rows, err := e.store.CustomerTotals(ctx, f, limit)
	if err != nil {
		return nil, errors.Wrap(err, "customer totals")
	}
	rows = nonNil(rows)
	slices.SortStableFunc(rows, func(a, b CustomerRank) int {
		return b.TotalAmount.Cmp(a.TotalAmount)
	})
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].AvgAmount = average(rows[i].TotalAmount, rows[i].OrderCount)
	}
	return rows, nil
}

// BestSelling ranks products by units sold in r.
func (e *Engine) BestSelling(ctx context.Context, r Range, limit int) ([]BestSeller, error) {
	f, err := e.filter(r)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("best:%s:%d", rangeKey(r), limit)
	return load(ctx, e, key, func(ctx context.Context) ([]BestSeller, error) {
		return e.bestSelling(ctx, f, limit)
	})
}

func (e *Engine) bestSelling(ctx context.Context, f Filter, limit int) ([]BestSeller, error) {
	rows, err := e.store.BestSelling(ctx, f, limit)
	if err != nil {
		return nil, errors.Wrap(err, "best selling")
	}
	rows = nonNil(rows)
	slices.SortStableFunc(rows, func(a, b BestSeller) int {
		switch {
		case a.QuantitySold > b.QuantitySold:
			return -1
		case a.QuantitySold < b.QuantitySold:
			return 1
		}
		return 0
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// SlowMoving lists active products idle for longer than the configured
// period. Never-sold products come first, then the oldest last sale.
func (e *Engine) SlowMoving(ctx context.Context, limit int) ([]SlowMover, error) {
	now := e.now()
	cutoff := now.Add(-e.cfg.SlowMovingAfter)
	key := fmt.Sprintf("slow:%s:%d:%d", now.In(e.cfg.Location).Format("20060102"), int64(e.cfg.SlowMovingAfter/time.Second), limit)
	return load(ctx, e, key, func(ctx context.Context) ([]SlowMover, error) {
		rows, err := e.store.SlowMoving(ctx, order.RealizedStatuses(), cutoff, limit)
		if err != nil {
			return nil, errors.Wrap(err, "slow moving")
		}
		rows = nonNil(rows)
		slices.SortStableFunc(rows, func(a, b SlowMover) int {
			switch {
			case a.LastSaleAt == nil && b.LastSaleAt == nil:
				return 0
			case a.LastSaleAt == nil:
				return -1
			case b.LastSaleAt == nil:
				return 1
			}
			return a.LastSaleAt.Compare(*b.LastSaleAt)
		})
		for i := range rows {
			rows[i].NeverSold = rows[i].LastSaleAt == nil
			rows[i].IdleDays = 0
			if !rows[i].NeverSold {
				rows[i].IdleDays = int(now.Sub(*rows[i].LastSaleAt) / (24 * time.Hour))
			}
		}
		return rows, nil
	})
}

func monthWindow(year, month int, loc *time.Location) (Filter, error) {
	if year < 1 || year > 9999 || month < 1 || month > 12 {
		return Filter{}, ErrInvalidPeriod
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)
	return Filter{From: &from, To: &to, Statuses: order.RealizedStatuses()}, nil
}

// MonthlyStatistics builds the report for one calendar month. Every day of
// the month is present in Daily.
func (e *Engine) MonthlyStatistics(ctx context.Context, year, month int) (MonthlyReport, error) {
	f, err := monthWindow(year, month, e.cfg.Location)
	if err != nil {
		return MonthlyReport{}, err
	}
	key := fmt.Sprintf("monthly:%04d%02d:%d", year, month, e.cfg.MonthlyTopN)
	return load(ctx, e, key, func(ctx context.Context) (MonthlyReport, error) {
		rep := MonthlyReport{Year: year, Month: month}
		var daily []DailySales

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			rep.Overview, err = e.overview(gctx, f)
			return err
		})
		g.Go(func() (err error) {
			daily, err = e.store.DailyTotals(gctx, f, e.cfg.Location)
			return errors.Wrap(err, "daily totals")
		})
		g.Go(func() (err error) {
			rep.BestSelling, err = e.bestSelling(gctx, f, e.cfg.MonthlyTopN)
			return err
		})
		g.Go(func() (err error) {
			rep.Customers, err = e.customers(gctx, f, e.cfg.MonthlyTopN)
			return err
		})
		if err := g.Wait(); err != nil {
			return MonthlyReport{}, err
		}

		rep.Daily = fillDays(*f.From, *f.To, daily)
		return rep, nil
	})
}

func fillDays(from, to time.Time, rows []DailySales) []DailySales {
	byDate := make(map[string]DailySales, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	var out []DailySales
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(time.DateOnly)
		row, ok := byDate[date]
		if !ok {
			row = DailySales{Date: date, TotalSales: decimal.Zero}
		}
		out = append(out, row)
	}
	return out
}

// YearlySummary returns exactly twelve monthly buckets for year.
func (e *Engine) YearlySummary(ctx context.Context, year int) (YearlySummary, error) {
	if year < 1 || year > 9999 {
		return YearlySummary{}, ErrInvalidPeriod
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, e.cfg.Location)
	to := from.AddDate(1, 0, 0)
	f := Filter{From: &from, To: &to, Statuses: order.RealizedStatuses()}

	return load(ctx, e, fmt.Sprintf("yearly:%04d", year), func(ctx context.Context) (YearlySummary, error) {
		rows, err := e.store.MonthlyTotals(ctx, f, e.cfg.Location)
		if err != nil {
			return YearlySummary{}, errors.Wrap(err, "monthly totals")
		}
		sum := YearlySummary{Year: year, Months: make([]MonthlySales, 12), TotalSales: decimal.Zero}
		for i := range sum.Months {
			sum.Months[i] = MonthlySales{Month: i + 1, TotalSales: decimal.Zero}
		}
		for _, r := range rows {
			if r.Month < 1 || r.Month > 12 {
				continue
			}
			sum.Months[r.Month-1] = r
		}
		for _, m := range sum.Months {
			sum.OrderCount += m.OrderCount
			sum.TotalSales = sum.TotalSales.Add(m.TotalSales)
		}
		return sum, nil
	})
}

// OrderSummary counts every order by status and the catalog products. It is
// never cached.
func (e *Engine) OrderSummary(ctx context.Context) (OrderSummary, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	counts, err := e.store.StatusCounts(ctx)
	if err != nil {
		return OrderSummary{}, errors.Wrap(err, "status counts")
	}
	ov, err := e.store.Overview(ctx, Filter{Statuses: order.RealizedStatuses()})
	if err != nil {
		return OrderSummary{}, errors.Wrap(err, "overview")
	}
	products, err := e.store.ProductCounts(ctx)
	if err != nil {
		return OrderSummary{}, errors.Wrap(err, "product counts")
	}

	sum := OrderSummary{
		ByStatus:      make(map[order.Status]int64, len(order.Statuses())),
		RealizedSales: ov.TotalSales,
		Products:      products,
	}
	for _, s := range order.Statuses() {
		sum.ByStatus[s] = counts[s]
		sum.TotalOrders += counts[s]
	}
	return sum, nil
}

func average(total decimal.Decimal, count int64) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count)).Round(2)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
