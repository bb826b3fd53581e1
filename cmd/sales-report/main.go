// Command sales-report prints sales statistics as terminal tables or writes
// them as report files.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
	"github.com/xenking/wholesale-orders/internal/export"
	"github.com/xenking/wholesale-orders/internal/repository"
)

type options struct {
	databaseURL string
	kind        string
	format      string
	outDir      string
	start       string
	end         string
	year        int
	month       int
	limit       int
	timeZone    string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.kind, "kind", string(export.KindMonthly), "report kind: monthly, yearly, product_sales, customer_ranking, best_selling, slow_moving")
	flag.StringVar(&opts.format, "format", "table", "table, xlsx or csv.gz")
	flag.StringVar(&opts.outDir, "out", ".", "directory for report files")
	flag.StringVar(&opts.start, "start", "", "first day, YYYY-MM-DD")
	flag.StringVar(&opts.end, "end", "", "last day, YYYY-MM-DD")
	flag.IntVar(&opts.year, "year", 0, "calendar year, defaults to the current one")
	flag.IntVar(&opts.month, "month", 0, "calendar month, defaults to the current one")
	flag.IntVar(&opts.limit, "limit", 0, "row limit for ranked reports, 0 means all")
	flag.StringVar(&opts.timeZone, "tz", "UTC", "IANA zone that defines calendar days")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseDay(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "parse date %q", s)
	}
	return &t, nil
}

func buildRequest(opts options, loc *time.Location) (export.Request, error) {
	kind, err := export.ParseKind(opts.kind)
	if err != nil {
		return export.Request{}, err
	}
	req := export.Request{Kind: kind, Year: opts.year, Month: opts.month, Limit: opts.limit}
	if req.Range.Start, err = parseDay(opts.start, loc); err != nil {
		return export.Request{}, err
	}
	if req.Range.End, err = parseDay(opts.end, loc); err != nil {
		return export.Request{}, err
	}
	return req, nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	loc, err := time.LoadLocation(opts.timeZone)
	if err != nil {
		return errors.Wrap(err, "load time zone")
	}
	req, err := buildRequest(opts, loc)
	if err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	engine := stats.NewEngine(repository.NewStatsRepository(pool), nil, stats.Config{Location: loc})
	rep, err := export.NewService(engine).Build(ctx, req)
	if err != nil {
		return errors.Wrap(err, "build report")
	}

	if opts.format == "table" {
		return printReport(stdout, rep)
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	path, err := export.WriteFile(opts.outDir, rep, format)
	if err != nil {
		return err
	}
	slog.Info("report written", slog.String("path", path))
	return nil
}

// printReport renders every sheet as a titled table.
func printReport(w io.Writer, rep export.Report) error {
	for _, sh := range rep.Sheets {
		if _, err := io.WriteString(w, "\n"+sh.Name+"\n"); err != nil {
			return err
		}
		table := tablewriter.NewWriter(w)
		header := make([]any, len(sh.Header))
		for i, h := range sh.Header {
			header[i] = h
		}
		table.Header(header...)
		for _, row := range sh.Strings() {
			if err := table.Append(row); err != nil {
				return errors.Wrapf(err, "append %s row", sh.Name)
			}
		}
		if err := table.Render(); err != nil {
			return errors.Wrapf(err, "render %s", sh.Name)
		}
	}
	return nil
}
