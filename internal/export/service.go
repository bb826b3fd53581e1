package export

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

// Source provides the statistics a report is made of.
type Source interface {
	ProductSalesRatio(ctx context.Context, r stats.Range, limit int) ([]stats.ProductSales, error)
	CustomerRanking(ctx context.Context, r stats.Range, limit int) ([]stats.CustomerRank, error)
	BestSelling(ctx context.Context, r stats.Range, limit int) ([]stats.BestSeller, error)
	SlowMoving(ctx context.Context, limit int) ([]stats.SlowMover, error)
	MonthlyStatistics(ctx context.Context, year, month int) (stats.MonthlyReport, error)
	YearlySummary(ctx context.Context, year int) (stats.YearlySummary, error)
	Now() time.Time
}

// Request selects a report. Range applies to ranked reports, Year and Month
// to the calendar ones. A non-positive Limit exports every row.
type Request struct {
	Kind  Kind
	Range stats.Range
	Year  int
	Month int
	Limit int
}

// Service builds reports from statistics.
type Service struct {
	src Source
}

// NewService creates a Service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Build fetches the data for req and shapes it into a Report.
func (s *Service) Build(ctx context.Context, req Request) (Report, error) {
	now := s.src.Now()
	period := Period{Start: req.Range.Start, End: req.Range.End, Generated: now}

	switch req.Kind {
	case KindMonthly:
		year, month := req.Year, req.Month
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = int(now.Month())
		}
		rep, err := s.src.MonthlyStatistics(ctx, year, month)
		if err != nil {
			return Report{}, errors.Wrap(err, "monthly statistics")
		}
		return Monthly(rep), nil
	case KindYearly:
		year := req.Year
		if year == 0 {
			year = now.Year()
		}
		sum, err := s.src.YearlySummary(ctx, year)
		if err != nil {
			return Report{}, errors.Wrap(err, "yearly summary")
		}
		return Yearly(sum), nil
	case KindProductSales:
		rows, err := s.src.ProductSalesRatio(ctx, req.Range, req.Limit)
		if err != nil {
			return Report{}, errors.Wrap(err, "product sales")
		}
		return ProductSales(rows, period), nil
	case KindCustomerRanking:
		rows, err := s.src.CustomerRanking(ctx, req.Range, req.Limit)
		if err != nil {
			return Report{}, errors.Wrap(err, "customer ranking")
		}
		return CustomerRanking(rows, period), nil
	case KindBestSelling:
		rows, err := s.src.BestSelling(ctx, req.Range, req.Limit)
		if err != nil {
			return Report{}, errors.Wrap(err, "best selling")
		}
		return BestSelling(rows, period), nil
	case KindSlowMoving:
		rows, err := s.src.SlowMoving(ctx, req.Limit)
		if err != nil {
			return Report{}, errors.Wrap(err, "slow moving")
		}
		return SlowMoving(rows, now), nil
	default:
		return Report{}, errors.Wrapf(ErrUnknownKind, "%q", req.Kind)
	}
}
