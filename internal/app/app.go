package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/wholesale-orders/internal/cache"
	"github.com/xenking/wholesale-orders/internal/domain/order"
	"github.com/xenking/wholesale-orders/internal/domain/stats"
	"github.com/xenking/wholesale-orders/internal/export"
	"github.com/xenking/wholesale-orders/internal/handler"
	"github.com/xenking/wholesale-orders/internal/notify"
	"github.com/xenking/wholesale-orders/internal/repository"
	"github.com/xenking/wholesale-orders/pkg/health"
	"github.com/xenking/wholesale-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.Ping(pool)})
	healthSvc.Register(health.Liveness, health.Check{Name: "goroutines", Func: health.GoroutineCount(10000)})

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Statistics engine with optional Redis cache.
	loc, err := time.LoadLocation(cfg.Statistics.TimeZone)
	if err != nil {
		return errors.Wrap(err, "load statistics time zone")
	}
	var statsCache stats.Cache
	if cfg.Redis.Addr != "" && cfg.Statistics.CacheTTL > 0 {
		client, err := cache.NewClient(cfg.Redis.Addr)
		if err != nil {
			return errors.Wrap(err, "create redis client")
		}
		defer func() { _ = client.Close() }()
		rc := cache.New(client, cfg.Statistics.CacheTTL, "wholesale:")
		statsCache = rc
		healthSvc.Register(health.Readiness, health.Check{Name: "redis", Func: health.Ping(rc)})
	}
	engine := stats.NewEngine(statsRepo, statsCache, stats.Config{
		Location:        loc,
		SlowMovingAfter: cfg.Statistics.SlowMovingAfter,
		MonthlyTopN:     cfg.Statistics.MonthlyTopN,
		QueryTimeout:    cfg.Statistics.QueryTimeout,
	})

	// Notifications.
	email, closeEmail := newSender(cfg, cfg.Notification.Email)
	defer closeEmail()
	sms, closeSMS := newSender(cfg, cfg.Notification.SMS)
	defer closeSMS()
	if len(cfg.Kafka.Brokers) > 0 {
		healthSvc.Register(health.Readiness, health.Check{Name: "kafka", Timeout: 3 * time.Second, Func: health.KafkaBrokers(cfg.Kafka.Brokers)})
	}
	dispatcher := notify.NewDispatcher(notify.Settings{
		EmailEnabled: cfg.Notification.Email.Enabled,
		AdminEmails:  cfg.Notification.Email.Recipients,
		SMSEnabled:   cfg.Notification.SMS.Enabled,
		AdminPhones:  cfg.Notification.SMS.Recipients,
		Company: notify.Company{
			Name:    cfg.Company.Name,
			Phone:   cfg.Company.Phone,
			Email:   cfg.Company.Email,
			Address: cfg.Company.Address,
		},
	}, email, sms, orderRepo, notify.DispatcherConfig{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		Timeout:   cfg.Notification.Timeout,
	}, lg.Named("notify"), m.MeterProvider())

	// Domain services.
	orderService := order.NewService(productRepo, orderRepo,
		order.WithNumberSource(order.NewNumberGenerator(cfg.Orders.NumberPrefix, cfg.Orders.NumberDigits)),
		order.WithMaxAttempts(cfg.Orders.MaxCreateAttempts),
		order.WithNotifier(dispatcher),
		order.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)
	reports := export.NewService(engine)

	// HTTP.
	hcfg := handler.Config{
		APIKeyPepper:   []byte(cfg.APIKeyPepper),
		RequestTimeout: cfg.RequestTimeout,
	}
	api := handler.New(hcfg, orderService, productRepo, engine, reports, apikeyRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api.Router(hcfg))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Rate:  cfg.RateLimit.Rate,
				Burst: cfg.RateLimit.Burst,
			}),
			httpmiddleware.Instrument("wholesale-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// The dispatcher outlives the request context: it is stopped only after
	// the server stopped accepting orders, then drains its queue.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopDispatch()
		return nil
	})
	healthSvc.SetReady(true)

	return g.Wait()
}
