//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
)

var orderNoPattern = regexp.MustCompile(`^[A-Z]+\d{8}\d+$`)

func assertAmount(t *testing.T, field, got, want string) {
	t.Helper()

	if !decimal.RequireFromString(got).Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: got %s, want %s", field, got, want)
	}
}

func TestListProducts(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products?per_page=5", nil, "")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	list := decodeJSON[productList](t, resp)
	if list.Total != 7 || list.Pages != 2 || len(list.Products) != 5 {
		t.Fatalf("expected 7 active products on 2 pages, got total=%d pages=%d len=%d",
			list.Total, list.Pages, len(list.Products))
	}
	for _, p := range list.Products {
		if p.Status != "active" {
			t.Errorf("%s: inactive product listed", p.Code)
		}
	}

	products := productsByCode(t)
	if len(products) != 8 {
		t.Fatalf("expected 8 products, got %d", len(products))
	}

	p := products["SP001"]
	if p.Name != "Paper towels 12 rolls" {
		t.Errorf("name: got %q", p.Name)
	}
	assertAmount(t, "retail_price", p.RetailPrice, "10.00")
	assertAmount(t, "wholesale_price", p.WholesalePrice, "8.00")
	if products["SP008"].Status != "inactive" {
		t.Errorf("SP008 status: got %q, want inactive", products["SP008"].Status)
	}
}

func TestSearchProducts(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products?q=ROLLS", nil, "")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	list := decodeJSON[productList](t, resp)
	if list.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", list.Total)
	}
	for _, p := range list.Products {
		if p.Code != "SP001" && p.Code != "SP003" {
			t.Errorf("unexpected match %s", p.Code)
		}
	}

	// Trash bags are inactive.
	resp2 := do(t, http.MethodGet, "/api/products?q=SP008", nil, "")
	defer resp2.Body.Close()
	expectStatus(t, resp2, http.StatusOK)
	if got := decodeJSON[productList](t, resp2).Total; got != 0 {
		t.Errorf("inactive product found by search: total=%d", got)
	}
}

func TestCreateOrder_MixedPricing(t *testing.T) {
	products := productsByCode(t)

	o := createOrder(t, orderRequest{
		CustomerName:  "Integration Mart",
		CustomerPhone: "555-0100",
		Items: []orderItemRequest{
			{ProductID: products["SP001"].ID, Quantity: 5}, // wholesale threshold
			{ProductID: products["SP002"].ID, Quantity: 2}, // retail
		},
	})

	if !orderNoPattern.MatchString(o.OrderNo) {
		t.Errorf("order_no %q does not match %s", o.OrderNo, orderNoPattern)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if o.TotalQuantity != 7 {
		t.Errorf("total_quantity: got %d, want 7", o.TotalQuantity)
	}
	assertAmount(t, "total_amount", o.TotalAmount, "47.00")
	if len(o.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(o.Items))
	}
	assertAmount(t, "items[0].unit_price", o.Items[0].UnitPrice, "8.00")
	assertAmount(t, "items[1].subtotal", o.Items[1].Subtotal, "7.00")

	resp := do(t, http.MethodGet, "/api/orders/"+o.OrderNo, nil, "")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[orderResponse](t, resp)
	if got.ID != o.ID {
		t.Errorf("id: got %d, want %d", got.ID, o.ID)
	}
	assertAmount(t, "fetched total_amount", got.TotalAmount, "47.00")
}

func TestCreateOrder_Errors(t *testing.T) {
	products := productsByCode(t)

	tests := []struct {
		name string
		req  orderRequest
		want int
	}{
		{
			name: "no items",
			req:  orderRequest{CustomerName: "Nobody", Items: []orderItemRequest{}},
			want: http.StatusBadRequest,
		},
		{
			name: "blank customer",
			req:  orderRequest{CustomerName: " ", Items: []orderItemRequest{{ProductID: products["SP001"].ID, Quantity: 1}}},
			want: http.StatusBadRequest,
		},
		{
			name: "zero quantity",
			req:  orderRequest{CustomerName: "Zero", Items: []orderItemRequest{{ProductID: products["SP001"].ID, Quantity: 0}}},
			want: http.StatusBadRequest,
		},
		{
			name: "inactive product",
			req:  orderRequest{CustomerName: "Closed", Items: []orderItemRequest{{ProductID: products["SP008"].ID, Quantity: 1}}},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown product",
			req:  orderRequest{CustomerName: "Ghost", Items: []orderItemRequest{{ProductID: 999999, Quantity: 1}}},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, "/api/orders", tt.req, "")
			defer resp.Body.Close()
			expectStatus(t, resp, tt.want)

			body := decodeJSON[errorResponse](t, resp)
			if body.Error.Code != tt.want || body.Error.Message == "" {
				t.Errorf("error envelope: %+v", body.Error)
			}
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/orders/WS0000000000", nil, "")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func updateStatus(t *testing.T, id int64, status, apiKey string) *http.Response {
	t.Helper()

	return do(t, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), map[string]string{"status": status}, apiKey)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	products := productsByCode(t)
	o := createOrder(t, orderRequest{
		CustomerName: "Lifecycle Store",
		Items:        []orderItemRequest{{ProductID: products["SP003"].ID, Quantity: 1}},
	})

	for _, status := range []string{"confirmed", "shipped", "completed"} {
		resp := updateStatus(t, o.ID, status, adminKey)
		expectStatus(t, resp, http.StatusOK)
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		if got.Status != status {
			t.Fatalf("status: got %q, want %q", got.Status, status)
		}
	}

	// Terminal orders reject further changes.
	resp := updateStatus(t, o.ID, "cancelled", adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)
}

func TestUpdateStatus_Errors(t *testing.T) {
	products := productsByCode(t)
	o := createOrder(t, orderRequest{
		CustomerName: "Status Errors",
		Items:        []orderItemRequest{{ProductID: products["SP004"].ID, Quantity: 1}},
	})

	tests := []struct {
		name   string
		id     int64
		status string
		key    string
		want   int
	}{
		{name: "no key", id: o.ID, status: "confirmed", want: http.StatusUnauthorized},
		{name: "wrong key", id: o.ID, status: "confirmed", key: "wrong-key", want: http.StatusUnauthorized},
		{name: "unknown status", id: o.ID, status: "lost", key: adminKey, want: http.StatusBadRequest},
		{name: "unknown order", id: 999999, status: "confirmed", key: adminKey, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := updateStatus(t, tt.id, tt.status, tt.key)
			defer resp.Body.Close()
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestListOrders(t *testing.T) {
	products := productsByCode(t)
	o := createOrder(t, orderRequest{
		CustomerName: "Listing Depot",
		Items:        []orderItemRequest{{ProductID: products["SP002"].ID, Quantity: 1}},
	})

	resp := do(t, http.MethodGet, "/api/orders?status=pending&q=listing+depot", nil, adminKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	list := decodeJSON[orderList](t, resp)
	if list.Total != 1 || len(list.Orders) != 1 {
		t.Fatalf("expected one match, got total=%d len=%d", list.Total, len(list.Orders))
	}
	if list.Orders[0].ID != o.ID || len(list.Orders[0].Items) != 1 {
		t.Errorf("unexpected order %+v", list.Orders[0])
	}

	byID := do(t, http.MethodGet, fmt.Sprintf("/api/orders/id/%d", o.ID), nil, adminKey)
	defer byID.Body.Close()
	expectStatus(t, byID, http.StatusOK)
	if got := decodeJSON[orderResponse](t, byID); got.OrderNo != o.OrderNo {
		t.Errorf("order_no: got %q, want %q", got.OrderNo, o.OrderNo)
	}

	noKey := do(t, http.MethodGet, "/api/orders", nil, "")
	defer noKey.Body.Close()
	expectStatus(t, noKey, http.StatusUnauthorized)
}
