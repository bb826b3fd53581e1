// Command stats-mcp serves sales statistics as MCP tools over stdio.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/wholesale-orders/internal/cache"
	"github.com/xenking/wholesale-orders/internal/domain/stats"
	"github.com/xenking/wholesale-orders/internal/mcpserver"
	"github.com/xenking/wholesale-orders/internal/repository"
)

func main() {
	_ = godotenv.Load()

	// stdout carries the protocol.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var (
		databaseURL string
		redisAddr   string
		cacheTTL    time.Duration
		timeZone    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisAddr, "redis", "", "Redis address for the statistics cache (or REDIS_URL env)")
	flag.DurationVar(&cacheTTL, "cache-ttl", time.Minute, "statistics cache TTL")
	flag.StringVar(&timeZone, "tz", "UTC", "IANA zone that defines calendar days")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	if err := run(context.Background(), databaseURL, redisAddr, cacheTTL, timeZone); err != nil {
		slog.Error("stats-mcp failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, redisAddr string, ttl time.Duration, timeZone string) error {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return errors.Wrap(err, "load time zone")
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var c stats.Cache
	if redisAddr != "" && ttl > 0 {
		client, err := cache.NewClient(redisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		c = cache.New(client, ttl, "wholesale:")
	}

	engine := stats.NewEngine(repository.NewStatsRepository(pool), c, stats.Config{
		Location:     loc,
		QueryTimeout: 30 * time.Second,
	})

	slog.Info("serving MCP on stdio", slog.String("server", mcpserver.ServerName))
	return mcpserver.New(engine).ServeStdio()
}
