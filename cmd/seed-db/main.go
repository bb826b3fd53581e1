package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/wholesale-orders/internal/domain/auth"
	"github.com/xenking/wholesale-orders/internal/domain/order"
	"github.com/xenking/wholesale-orders/internal/domain/product"
	"github.com/xenking/wholesale-orders/internal/repository"
)

type productJSON struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	RetailPrice     decimal.Decimal `json:"retail_price"`
	WholesalePrice  decimal.Decimal `json:"wholesale_price"`
	WholesaleMinQty int             `json:"wholesale_min_qty"`
	Stock           int             `json:"stock"`
	Status          product.Status  `json:"status"`
}

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	scopes       string
	demoOrders   int
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or WHOLESALE_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or WHOLESALE_API_KEY_PEPPER env)")
	flag.StringVar(&opts.scopes, "scopes", "", "comma separated scopes of the seeded key, empty grants all")
	flag.IntVar(&opts.demoOrders, "demo-orders", 0, "number of random demo orders to create")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("WHOLESALE_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("WHOLESALE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := seedProducts(ctx, repository.NewProductRepository(pool), opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}

	if opts.apiKey != "" {
		if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), opts); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	} else {
		slog.Warn("no API key given, skipping")
	}

	if opts.demoOrders > 0 {
		if err := seedOrders(ctx, pool, products, opts.demoOrders); err != nil {
			return errors.Wrap(err, "seed demo orders")
		}
	}
	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var rows []productJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(rows)))

	out := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		p := product.Product{
			Code:            row.Code,
			Name:            row.Name,
			RetailPrice:     row.RetailPrice,
			WholesalePrice:  row.WholesalePrice,
			WholesaleMinQty: row.WholesaleMinQty,
			Stock:           row.Stock,
			Status:          row.Status,
		}
		if err := repo.Upsert(ctx, &p); err != nil {
			return nil, err
		}
		out = append(out, p)

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("code", p.Code))
	}
	return out, nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, opts options) error {
	var scopes []string
	for _, s := range strings.Split(opts.scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	id, err := repo.Upsert(ctx, auth.HashKey([]byte(opts.apiKeyPepper), opts.apiKey), "Seeded key", scopes)
	if err != nil {
		return err
	}

	slog.Info("upserted API key", slog.Int64("id", id), slog.Any("scopes", scopes))
	return nil
}

// seedOrders creates random orders through the order service and moves some
// of them along the lifecycle so statistics have data to show.
func seedOrders(ctx context.Context, pool *pgxpool.Pool, products []product.Product, n int) error {
	var active []product.Product
	for _, p := range products {
		if p.Active() {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return errors.New("no active products")
	}

	svc := order.NewService(repository.NewProductRepository(pool), repository.NewOrderRepository(pool))
	customers := []string{"Acme Trading", "Blue Harbor Foods", "Corner Mart", "Delta Supplies", "Evergreen Store"}
	targets := []order.Status{
		order.StatusPending, order.StatusConfirmed, order.StatusShipped,
		order.StatusCompleted, order.StatusCompleted, order.StatusCancelled,
	}

	for i := range n {
		req := order.CreateRequest{
			Customer: order.Customer{Name: customers[rand.IntN(len(customers))]},
		}
		for range 1 + rand.IntN(3) {
			p := active[rand.IntN(len(active))]
			req.Items = append(req.Items, order.LineRequest{ProductID: p.ID, Quantity: 1 + rand.IntN(2*p.WholesaleMinQty+1)})
		}

		o, err := svc.Create(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "create demo order %d", i)
		}
		if to := targets[rand.IntN(len(targets))]; to != order.StatusPending {
			if o, err = svc.UpdateStatus(ctx, o.ID, to); err != nil {
				return errors.Wrapf(err, "update demo order %d", i)
			}
		}

		slog.Info("created demo order",
			slog.String("order_no", o.OrderNo),
			slog.String("status", string(o.Status)),
			slog.String("total", o.TotalAmount.StringFixed(2)),
		)
	}
	return nil
}
