package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

const dateLayout = "2006-01-02"

type query struct {
	r   *http.Request
	loc *time.Location
}

func (q query) date(name string) (*time.Time, error) {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, q.loc)
	if err != nil {
		return nil, badRequest("%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

// dateRange reads start_date and end_date. Both are inclusive calendar days
// and either may be omitted.
func (q query) dateRange() (stats.Range, error) {
	start, err := q.date("start_date")
	if err != nil {
		return stats.Range{}, err
	}
	end, err := q.date("end_date")
	if err != nil {
		return stats.Range{}, err
	}
	return stats.Range{Start: start, End: end}, nil
}

// nonNegative reads a non-negative integer parameter, returning def when absent.
func (q query) nonNegative(name string, def int) (int, error) {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (h *Handler) query(r *http.Request) query {
	return query{r: r, loc: h.stats.Location()}
}

// rangeAndLimit parses the parameters shared by ranked statistics.
func (h *Handler) rangeAndLimit(r *http.Request, defLimit int) (stats.Range, int, error) {
	q := h.query(r)
	rng, err := q.dateRange()
	if err != nil {
		return stats.Range{}, 0, err
	}
	limit, err := q.nonNegative("limit", defLimit)
	if err != nil {
		return stats.Range{}, 0, err
	}
	return rng, limit, nil
}

// period reads year and month, defaulting to the current ones.
func (h *Handler) period(r *http.Request) (year, month int, err error) {
	now := h.stats.Now()
	q := h.query(r)
	if year, err = q.nonNegative("year", now.Year()); err != nil {
		return 0, 0, err
	}
	if month, err = q.nonNegative("month", int(now.Month())); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	v, err := h.stats.OrderSummary(r.Context())
	respond(w, r, v, err)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	rng, err := h.query(r).dateRange()
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.SalesOverview(r.Context(), rng)
	respond(w, r, v, err)
}

func (h *Handler) productSales(w http.ResponseWriter, r *http.Request) {
	rng, limit, err := h.rangeAndLimit(r, stats.DefaultProductLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.ProductSalesRatio(r.Context(), rng, limit)
	respond(w, r, v, err)
}

func (h *Handler) customers(w http.ResponseWriter, r *http.Request) {
	rng, limit, err := h.rangeAndLimit(r, stats.DefaultCustomerLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.CustomerRanking(r.Context(), rng, limit)
	respond(w, r, v, err)
}

func (h *Handler) bestSelling(w http.ResponseWriter, r *http.Request) {
	rng, limit, err := h.rangeAndLimit(r, stats.DefaultBestLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.BestSelling(r.Context(), rng, limit)
	respond(w, r, v, err)
}

func (h *Handler) slowMoving(w http.ResponseWriter, r *http.Request) {
	limit, err := h.query(r).nonNegative("limit", stats.DefaultSlowLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.SlowMoving(r.Context(), limit)
	respond(w, r, v, err)
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.MonthlyStatistics(r.Context(), year, month)
	respond(w, r, v, err)
}

func (h *Handler) yearly(w http.ResponseWriter, r *http.Request) {
	year, err := h.query(r).nonNegative("year", h.stats.Now().Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.stats.YearlySummary(r.Context(), year)
	respond(w, r, v, err)
}
