//go:build integration

package integration

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

type customerRank struct {
	Rank         int    `json:"rank"`
	CustomerName string `json:"customer_name"`
	OrderCount   int64  `json:"order_count"`
	TotalAmount  string `json:"total_amount"`
}

type orderSummary struct {
	TotalOrders int64            `json:"total_orders"`
	ByStatus    map[string]int64 `json:"by_status"`
	Products    struct {
		Total      int64 `json:"total"`
		Active     int64 `json:"active"`
		OutOfStock int64 `json:"out_of_stock"`
	} `json:"products"`
}

type monthlyReport struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Daily []struct {
		Date       string `json:"date"`
		OrderCount int64  `json:"order_count"`
	} `json:"daily"`
}

// confirmedOrder places an order for customer and moves it to confirmed so
// it counts toward revenue.
func confirmedOrder(t *testing.T, customer string, items ...orderItemRequest) orderResponse {
	t.Helper()

	o := createOrder(t, orderRequest{CustomerName: customer, Items: items})
	resp := updateStatus(t, o.ID, "confirmed", adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	return o
}

func TestStatistics_RequireKey(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/statistics/summary", nil, "")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestStatistics_CustomerRanking(t *testing.T) {
	products := productsByCode(t)
	confirmedOrder(t, "Ranking Wholesale Co", orderItemRequest{ProductID: products["SP006"].ID, Quantity: 100})
	confirmedOrder(t, "Ranking Wholesale Co", orderItemRequest{ProductID: products["SP006"].ID, Quantity: 100})
	// Pending orders do not count.
	createOrder(t, orderRequest{
		CustomerName: "Ranking Wholesale Co",
		Items:        []orderItemRequest{{ProductID: products["SP006"].ID, Quantity: 1}},
	})

	today := time.Now().UTC().Format(time.DateOnly)
	resp := do(t, http.MethodGet, "/api/statistics/customers?start_date="+today+"&end_date="+today+"&limit=0", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	ranks := decodeJSON[[]customerRank](t, resp)
	if len(ranks) == 0 {
		t.Fatal("expected at least one ranked customer")
	}
	top := ranks[0]
	if top.Rank != 1 || top.CustomerName != "Ranking Wholesale Co" {
		t.Fatalf("top customer: got %+v", top)
	}
	if top.OrderCount != 2 {
		t.Errorf("order_count: got %d, want 2", top.OrderCount)
	}
	// 200 x 18.00 wholesale
	if !decimal.RequireFromString(top.TotalAmount).Equal(decimal.RequireFromString("3600")) {
		t.Errorf("total_amount: got %s, want 3600", top.TotalAmount)
	}
}

func TestStatistics_Summary(t *testing.T) {
	products := productsByCode(t)
	confirmedOrder(t, "Summary Shop", orderItemRequest{ProductID: products["SP005"].ID, Quantity: 1})

	resp := do(t, http.MethodGet, "/api/statistics/summary", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	s := decodeJSON[orderSummary](t, resp)
	var sum int64
	for _, n := range s.ByStatus {
		sum += n
	}
	if sum != s.TotalOrders {
		t.Errorf("by_status sums to %d, total_orders is %d", sum, s.TotalOrders)
	}
	if s.ByStatus["confirmed"] == 0 {
		t.Errorf("expected confirmed orders, got %v", s.ByStatus)
	}
	if p := s.Products; p.Total != 8 || p.Active != 7 || p.OutOfStock != 1 {
		t.Errorf("product counts: got %+v", p)
	}
}

func TestStatistics_Monthly(t *testing.T) {
	now := time.Now().UTC()
	resp := do(t, http.MethodGet, "/api/statistics/monthly", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	m := decodeJSON[monthlyReport](t, resp)
	if m.Year != now.Year() || m.Month != int(now.Month()) {
		t.Errorf("period: got %d-%02d", m.Year, m.Month)
	}
	days := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if len(m.Daily) != days {
		t.Errorf("daily rows: got %d, want %d", len(m.Daily), days)
	}
}

func TestStatistics_BadInput(t *testing.T) {
	for _, path := range []string{
		"/api/statistics/overview?start_date=2024-13-01",
		"/api/statistics/overview?start_date=2024-03-10&end_date=2024-03-01",
		"/api/statistics/best-selling?limit=-1",
		"/api/statistics/monthly?month=13",
	} {
		t.Run(path, func(t *testing.T) {
			resp := do(t, http.MethodGet, path, nil, adminKey)
			defer resp.Body.Close()
			expectStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestReport_CSVGzip(t *testing.T) {
	products := productsByCode(t)
	confirmedOrder(t, "Report Buyer", orderItemRequest{ProductID: products["SP007"].ID, Quantity: 12})

	resp := do(t, http.MethodGet, "/api/reports/best_selling?format=csv.gz", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); ct != "application/gzip" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd == "" {
		t.Error("Content-Disposition header not present")
	}

	gz, err := pgzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	records, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("expected header and rows, got %d records", len(records))
	}
}

func TestReport_XLSX(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/reports/monthly?format=xlsx", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Error("xlsx body is not a zip archive")
	}
}

func TestReport_UnknownKind(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/reports/inventory?format=xlsx", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}
