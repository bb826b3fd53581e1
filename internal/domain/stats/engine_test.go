package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

type fakeStore struct {
	mu      sync.Mutex
	filters []Filter

	overview  SalesOverview
	products  []ProductSales
	customers []CustomerRank
	best      []BestSeller
	slow      []SlowMover
	daily     []DailySales
	monthly   []MonthlySales
	counts    map[order.Status]int64
	catalog   ProductCounts
	err       error

	slowCutoff time.Time
	slowLimit  int
}

func (s *fakeStore) record(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
}

func (s *fakeStore) Overview(_ context.Context, f Filter) (SalesOverview, error) {
	s.record(f)
	return s.overview, s.err
}

func (s *fakeStore) ProductSales(_ context.Context, f Filter, _ int) ([]ProductSales, error) {
	s.record(f)
	return append([]ProductSales(nil), s.products...), s.err
}

func (s *fakeStore) CustomerTotals(_ context.Context, f Filter, _ int) ([]CustomerRank, error) {
	s.record(f)
	return append([]CustomerRank(nil), s.customers...), s.err
}

func (s *fakeStore) BestSelling(_ context.Context, f Filter, _ int) ([]BestSeller, error) {
	s.record(f)
	return append([]BestSeller(nil), s.best...), s.err
}

func (s *fakeStore) SlowMoving(_ context.Context, _ []order.Status, cutoff time.Time, limit int) ([]SlowMover, error) {
	s.slowCutoff = cutoff
	s.slowLimit = limit
	return append([]SlowMover(nil), s.slow...), s.err
}

func (s *fakeStore) DailyTotals(_ context.Context, f Filter, _ *time.Location) ([]DailySales, error) {
	s.record(f)
	return s.daily, s.err
}

func (s *fakeStore) MonthlyTotals(_ context.Context, f Filter, _ *time.Location) ([]MonthlySales, error) {
	s.record(f)
	return s.monthly, s.err
}

func (s *fakeStore) StatusCounts(context.Context) (map[order.Status]int64, error) {
	return s.counts, s.err
}

func (s *fakeStore) ProductCounts(context.Context) (ProductCounts, error) {
	return s.catalog, s.err
}

type memCache struct {
	data   map[string]any
	getErr error
	sets   int
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *SalesOverview:
		*d = v.(SalesOverview)
	case *[]SlowMover:
		*d = v.([]SlowMover)
	default:
		return false, errors.Errorf("unexpected type %T", dst)
	}
	return true, nil
}

func (c *memCache) Set(_ context.Context, key string, v any) error {
	c.sets++
	c.data[key] = v
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSalesOverview_Empty(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil, Config{})

	ov, err := e.SalesOverview(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ov.OrderCount)
	assert.Equal(t, int64(0), ov.TotalQuantity)
	assert.True(t, ov.TotalSales.IsZero())
	assert.True(t, ov.AvgOrderAmount.IsZero())
}

func TestSalesOverview_Average(t *testing.T) {
	store := &fakeStore{overview: SalesOverview{OrderCount: 3, TotalSales: dec("100.00"), TotalQuantity: 12}}
	e := NewEngine(store, nil, Config{})

	ov, err := e.SalesOverview(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, "33.33", ov.AvgOrderAmount.StringFixed(2))
	require.Len(t, store.filters, 1)
	assert.Equal(t, order.RealizedStatuses(), store.filters[0].Statuses)
	assert.Nil(t, store.filters[0].From)
	assert.Nil(t, store.filters[0].To)
}

func TestFilter_InclusiveDates(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	store := &fakeStore{}
	e := NewEngine(store, nil, Config{Location: loc})

	_, err := e.SalesOverview(context.Background(), Range{Start: date(2024, 3, 1), End: date(2024, 3, 31)})
	require.NoError(t, err)

	f := store.filters[0]
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.True(t, f.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)))
	assert.True(t, f.To.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, loc)))
}

func TestFilter_SingleDay(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, nil, Config{})

	_, err := e.SalesOverview(context.Background(), Range{Start: date(2024, 3, 5), End: date(2024, 3, 5)})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, store.filters[0].To.Sub(*store.filters[0].From))
}

func TestFilter_Reversed(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil, Config{})

	_, err := e.SalesOverview(context.Background(), Range{Start: date(2024, 3, 5), End: date(2024, 3, 4)})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestProductSalesRatio(t *testing.T) {
	store := &fakeStore{
		overview: SalesOverview{OrderCount: 4, TotalSales: dec("400.00")},
		products: []ProductSales{
			{ProductID: 2, SalesAmount: dec("100.00"), QuantitySold: 50},
			{ProductID: 1, SalesAmount: dec("300.00"), QuantitySold: 3},
		},
	}
	e := NewEngine(store, nil, Config{})

	rows, err := e.ProductSalesRatio(context.Background(), Range{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ProductID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "75.00", rows[0].SalesShare.StringFixed(2))
	assert.Equal(t, int64(2), rows[1].ProductID)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, "25.00", rows[1].SalesShare.StringFixed(2))
}

func TestProductSalesRatio_EmptyIsNotNil(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil, Config{})

	rows, err := e.ProductSalesRatio(context.Background(), Range{}, 10)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCustomerRanking(t *testing.T) {
	store := &fakeStore{customers: []CustomerRank{
		{CustomerName: "Small", CustomerPhone: "1", OrderCount: 1, TotalAmount: dec("10.00")},
		{CustomerName: "Big", CustomerPhone: "2", OrderCount: 3, TotalAmount: dec("100.00")},
	}}
	e := NewEngine(store, nil, Config{})

	rows, err := e.CustomerRanking(context.Background(), Range{}, 20)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Big", rows[0].CustomerName)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "33.33", rows[0].AvgAmount.StringFixed(2))
	assert.Equal(t, "10.00", rows[1].AvgAmount.StringFixed(2))
}

func TestBestSelling_RanksByQuantity(t *testing.T) {
	store := &fakeStore{best: []BestSeller{
		{ProductID: 1, QuantitySold: 3, SalesAmount: dec("300.00")},
		{ProductID: 2, QuantitySold: 50, SalesAmount: dec("100.00")},
	}}
	e := NewEngine(store, nil, Config{})

	rows, err := e.BestSelling(context.Background(), Range{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ProductID)
	assert.Equal(t, 1, rows[0].Rank)
}

func TestSlowMoving(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-45 * 24 * time.Hour)
	older := now.Add(-90 * 24 * time.Hour)
	store := &fakeStore{slow: []SlowMover{
		{ProductID: 1, LastSaleAt: &old},
		{ProductID: 2},
		{ProductID: 3, LastSaleAt: &older},
	}}
	e := NewEngine(store, nil, Config{})
	e.now = func() time.Time { return now }

	rows, err := e.SlowMoving(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(2), rows[0].ProductID)
	assert.True(t, rows[0].NeverSold)
	assert.Equal(t, int64(3), rows[1].ProductID)
	assert.Equal(t, 90, rows[1].IdleDays)
	assert.Equal(t, int64(1), rows[2].ProductID)
	assert.Equal(t, 45, rows[2].IdleDays)

	assert.Equal(t, now.Add(-30*24*time.Hour), store.slowCutoff)
	assert.Equal(t, 20, store.slowLimit)
}

func TestSlowMoving_CacheKeyedByIdlePeriod(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := &memCache{data: make(map[string]any)}

	monthStore := &fakeStore{slow: []SlowMover{{ProductID: 1}}}
	month := NewEngine(monthStore, cache, Config{SlowMovingAfter: 30 * 24 * time.Hour})
	month.now = func() time.Time { return now }

	weekStore := &fakeStore{slow: []SlowMover{{ProductID: 2}}}
	week := NewEngine(weekStore, cache, Config{SlowMovingAfter: 7 * 24 * time.Hour})
	week.now = func() time.Time { return now }

	rows, err := month.SlowMoving(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ProductID)

	rows, err = week.SlowMoving(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ProductID)
	assert.Equal(t, now.Add(-7*24*time.Hour), weekStore.slowCutoff)
	assert.Equal(t, 2, cache.sets)

	// Same idle period is served from the cache.
	rows, err = month.SlowMoving(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0].ProductID)
	assert.Equal(t, 2, cache.sets)
}

func TestMonthlyStatistics_FillsDays(t *testing.T) {
	store := &fakeStore{
		overview: SalesOverview{OrderCount: 2, TotalSales: dec("50.00"), TotalQuantity: 5},
		daily: []DailySales{
			{Date: "2024-02-10", OrderCount: 2, TotalSales: dec("50.00")},
		},
		best:      []BestSeller{{ProductID: 1, QuantitySold: 5}},
		customers: []CustomerRank{{CustomerName: "A", OrderCount: 2, TotalAmount: dec("50.00")}},
	}
	e := NewEngine(store, nil, Config{})

	rep, err := e.MonthlyStatistics(context.Background(), 2024, 2)
	require.NoError(t, err)

	assert.Equal(t, 2024, rep.Year)
	assert.Equal(t, 2, rep.Month)
	assert.Equal(t, "25.00", rep.Overview.AvgOrderAmount.StringFixed(2))
	require.Len(t, rep.Daily, 29)
	assert.Equal(t, "2024-02-01", rep.Daily[0].Date)
	assert.Equal(t, "2024-02-29", rep.Daily[28].Date)
	assert.Equal(t, int64(2), rep.Daily[9].OrderCount)
	assert.True(t, rep.Daily[10].TotalSales.IsZero())
	require.Len(t, rep.BestSelling, 1)
	assert.Equal(t, 1, rep.BestSelling[0].Rank)
	require.Len(t, rep.Customers, 1)
	assert.Equal(t, "25.00", rep.Customers[0].AvgAmount.StringFixed(2))
}

func TestMonthlyStatistics_InvalidMonth(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil, Config{})

	_, err := e.MonthlyStatistics(context.Background(), 2024, 13)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMonthlyStatistics_StoreError(t *testing.T) {
	cause := errors.New("timeout")
	e := NewEngine(&fakeStore{err: cause}, nil, Config{})

	_, err := e.MonthlyStatistics(context.Background(), 2024, 1)
	require.ErrorIs(t, err, cause)
}

func TestYearlySummary_TwelveMonths(t *testing.T) {
	store := &fakeStore{monthly: []MonthlySales{
		{Month: 3, OrderCount: 2, TotalSales: dec("20.00")},
		{Month: 11, OrderCount: 1, TotalSales: dec("5.50")},
	}}
	e := NewEngine(store, nil, Config{})

	sum, err := e.YearlySummary(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, sum.Months, 12)
	for i, m := range sum.Months {
		assert.Equal(t, i+1, m.Month)
	}
	assert.Equal(t, int64(0), sum.Months[0].OrderCount)
	assert.Equal(t, int64(2), sum.Months[2].OrderCount)
	assert.Equal(t, int64(3), sum.OrderCount)
	assert.Equal(t, "25.50", sum.TotalSales.StringFixed(2))
}

func TestOrderSummary(t *testing.T) {
	store := &fakeStore{
		counts:   map[order.Status]int64{order.StatusPending: 2, order.StatusCompleted: 3},
		overview: SalesOverview{TotalSales: dec("90.00")},
		catalog:  ProductCounts{Total: 8, Active: 7, OutOfStock: 1},
	}
	e := NewEngine(store, nil, Config{})

	sum, err := e.OrderSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.TotalOrders)
	assert.Len(t, sum.ByStatus, 5)
	assert.Equal(t, int64(0), sum.ByStatus[order.StatusCancelled])
	assert.Equal(t, "90.00", sum.RealizedSales.StringFixed(2))
	assert.Equal(t, ProductCounts{Total: 8, Active: 7, OutOfStock: 1}, sum.Products)
}

func TestOrderSummary_StoreError(t *testing.T) {
	cause := errors.New("timeout")
	e := NewEngine(&fakeStore{err: cause}, nil, Config{})

	_, err := e.OrderSummary(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestCache(t *testing.T) {
	store := &fakeStore{overview: SalesOverview{OrderCount: 1, TotalSales: dec("10.00")}}
	cache := &memCache{data: make(map[string]any)}
	e := NewEngine(store, cache, Config{})

	first, err := e.SalesOverview(context.Background(), Range{})
	require.NoError(t, err)
	second, err := e.SalesOverview(context.Background(), Range{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.filters, 1)
	assert.Equal(t, 1, cache.sets)
}

func TestCache_ErrorsIgnored(t *testing.T) {
	store := &fakeStore{overview: SalesOverview{OrderCount: 1, TotalSales: dec("10.00")}}
	cache := &memCache{data: make(map[string]any), getErr: errors.New("redis down")}
	e := NewEngine(store, cache, Config{})

	ov, err := e.SalesOverview(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ov.OrderCount)
}
