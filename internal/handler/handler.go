// Package handler exposes orders, statistics and report downloads over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xenking/wholesale-orders/internal/domain/auth"
	"github.com/xenking/wholesale-orders/internal/domain/order"
	"github.com/xenking/wholesale-orders/internal/domain/product"
	"github.com/xenking/wholesale-orders/internal/domain/stats"
	"github.com/xenking/wholesale-orders/internal/export"
)

// Orders is the order use-case surface.
type Orders interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, int64, error)
	UpdateStatus(ctx context.Context, id int64, to order.Status) (*order.Order, error)
}

// Catalog reads products.
type Catalog interface {
	Search(ctx context.Context, q product.Query) (product.Page, error)
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

// Statistics is implemented by stats.Engine.
type Statistics interface {
	Location() *time.Location
	Now() time.Time
	OrderSummary(ctx context.Context) (stats.OrderSummary, error)
	SalesOverview(ctx context.Context, r stats.Range) (stats.SalesOverview, error)
	ProductSalesRatio(ctx context.Context, r stats.Range, limit int) ([]stats.ProductSales, error)
	CustomerRanking(ctx context.Context, r stats.Range, limit int) ([]stats.CustomerRank, error)
	BestSelling(ctx context.Context, r stats.Range, limit int) ([]stats.BestSeller, error)
	SlowMoving(ctx context.Context, limit int) ([]stats.SlowMover, error)
	MonthlyStatistics(ctx context.Context, year, month int) (stats.MonthlyReport, error)
	YearlySummary(ctx context.Context, year int) (stats.YearlySummary, error)
}

// Reports builds export reports.
type Reports interface {
	Build(ctx context.Context, req export.Request) (export.Report, error)
}

// Config holds non-dependency settings of the router.
type Config struct {
	// APIKeyPepper is the HMAC key API keys are hashed with.
	APIKeyPepper []byte
	// RequestTimeout bounds every API request. Zero disables it.
	RequestTimeout time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	orders  Orders
	catalog Catalog
	stats   Statistics
	reports Reports
	keys    auth.Repository
	pepper  []byte
}

// New creates a Handler.
func New(cfg Config, orders Orders, catalog Catalog, st Statistics, reports Reports, keys auth.Repository) *Handler {
	return &Handler{
		orders:  orders,
		catalog: catalog,
		stats:   st,
		reports: reports,
		keys:    keys,
		pepper:  cfg.APIKeyPepper,
	}
}

// Router returns the API routes mounted under /api.
func (h *Handler) Router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderNo}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(h.requireKey(auth.ScopeOrdersRead))
			r.Get("/orders", h.listOrders)
			r.Get("/orders/id/{id}", h.getOrderByID)
		})
		r.With(h.requireKey(auth.ScopeOrdersWrite)).Patch("/orders/{id}/status", h.updateStatus)

		r.Group(func(r chi.Router) {
			r.Use(h.requireKey(auth.ScopeStatsRead))
			r.Route("/statistics", func(r chi.Router) {
				r.Get("/summary", h.summary)
				r.Get("/overview", h.overview)
				r.Get("/products", h.productSales)
				r.Get("/customers", h.customers)
				r.Get("/best-selling", h.bestSelling)
				r.Get("/slow-moving", h.slowMoving)
				r.Get("/monthly", h.monthly)
				r.Get("/yearly", h.yearly)
			})
			r.Get("/reports/{kind}", h.downloadReport)
		})
	})
	return r
}
