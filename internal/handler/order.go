package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/wholesale-orders/internal/domain/auth"
	"github.com/xenking/wholesale-orders/internal/domain/order"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type createOrderRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	CustomerAddress string `json:"customer_address"`
	Notes           string `json:"notes"`
	Items           []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type orderItemResponse struct {
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	OrderNo         string              `json:"order_no"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone,omitempty"`
	CustomerEmail   string              `json:"customer_email,omitempty"`
	CustomerAddress string              `json:"customer_address,omitempty"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	TotalQuantity   int                 `json:"total_quantity"`
	Status          order.Status        `json:"status"`
	Notified        bool                `json:"notified"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderItemResponse `json:"items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		CustomerEmail:   o.Customer.Email,
		CustomerAddress: o.Customer.Address,
		TotalAmount:     o.TotalAmount.Round(2),
		TotalQuantity:   o.TotalQuantity,
		Status:          o.Status,
		Notified:        o.Notified,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]orderItemResponse, len(o.Items)),
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			ProductCode: it.ProductCode,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		}
	}
	return resp
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	pageMeta
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cr := order.CreateRequest{
		Customer: order.Customer{
			Name:    req.CustomerName,
			Phone:   req.CustomerPhone,
			Email:   req.CustomerEmail,
			Address: req.CustomerAddress,
		},
		Notes: req.Notes,
		Items: make([]order.LineRequest, len(req.Items)),
	}
	for i, it := range req.Items {
		cr.Items[i] = order.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.orders.Create(r.Context(), cr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByOrderNo(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// listOrders pages through orders, newest first, optionally filtered by
// status and searched by q.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	pg, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := order.ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  pg.limit(),
		Offset: pg.offset(),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		if f.Status, err = order.ParseStatus(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	orders, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := orderListResponse{
		Orders:   make([]orderResponse, len(orders)),
		pageMeta: pg.meta(total),
	}
	for i := range orders {
		resp.Orders[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid order id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (h *Handler) getOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key, ok := auth.KeyFrom(r.Context()); ok {
		zctx.From(r.Context()).Info("Order status changed",
			zap.Int64("order_id", o.ID),
			zap.String("status", string(o.Status)),
			zap.String("api_key", key.Name),
		)
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
