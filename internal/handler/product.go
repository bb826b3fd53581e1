package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/wholesale-orders/internal/domain/product"
)

type productResponse struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	RetailPrice     decimal.Decimal `json:"retail_price"`
	WholesalePrice  decimal.Decimal `json:"wholesale_price"`
	WholesaleMinQty int             `json:"wholesale_min_qty"`
	Stock           int             `json:"stock"`
	Status          product.Status  `json:"status"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	pageMeta
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		Code:            p.Code,
		Name:            p.Name,
		RetailPrice:     p.RetailPrice,
		WholesalePrice:  p.WholesalePrice,
		WholesaleMinQty: p.WholesaleMinQty,
		Stock:           p.Stock,
		Status:          p.Status,
	}
}

// listProducts searches active products, newest first.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	pg, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.catalog.Search(r.Context(), product.Query{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  pg.limit(),
		Offset: pg.offset(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := productListResponse{
		Products: make([]productResponse, len(page.Products)),
		pageMeta: pg.meta(page.Total),
	}
	for i, p := range page.Products {
		resp.Products[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getProduct returns a product regardless of its status.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, badRequest("invalid product id %q", chi.URLParam(r, "id")))
		return
	}
	p, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}
