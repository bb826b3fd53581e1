// Package export turns statistics results into downloadable tabular files.
// It performs no aggregation of its own.
package export

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

var (
	// ErrUnknownKind is returned for an unsupported report kind.
	ErrUnknownKind = errors.New("unknown report kind")
	// ErrUnsupported is returned when a report cannot be written in the
	// requested format.
	ErrUnsupported = errors.New("unsupported export format")
)

// Kind names a report.
type Kind string

const (
	KindMonthly         Kind = "monthly"
	KindYearly          Kind = "yearly"
	KindProductSales    Kind = "product_sales"
	KindCustomerRanking Kind = "customer_ranking"
	KindBestSelling     Kind = "best_selling"
	KindSlowMoving      Kind = "slow_moving"
)

// Kinds lists every supported report kind.
func Kinds() []Kind {
	return []Kind{KindMonthly, KindYearly, KindProductSales, KindCustomerRanking, KindBestSelling, KindSlowMoving}
}

// ParseKind validates s as a report kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Sheet is one uniformly shaped table.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Report is a named set of sheets. Name is the file name without extension.
type Report struct {
	Kind   Kind
	Name   string
	Sheets []Sheet
}

// FileName returns the download name of r in format f.
func (r Report) FileName(f Format) string {
	return r.Name + "." + f.Extension()
}

// Period describes the window a report covers, used for its file name.
type Period struct {
	Start     *time.Time
	End       *time.Time
	Generated time.Time
}

func (p Period) suffix() string {
	if p.Start == nil && p.End == nil {
		return p.Generated.Format("20060102")
	}
	part := func(t *time.Time) string {
		if t == nil {
			return "all"
		}
		return t.Format("20060102")
	}
	return part(p.Start) + "_" + part(p.End)
}

// Monthly builds the four-sheet monthly workbook.
func Monthly(rep stats.MonthlyReport) Report {
	daily := Sheet{Name: "Daily Sales", Header: []string{"Date", "Orders", "Sales"}}
	for _, d := range rep.Daily {
		daily.Rows = append(daily.Rows, []any{d.Date, d.OrderCount, d.TotalSales})
	}
	return Report{
		Kind: KindMonthly,
		Name: "monthly_report_" + strconv.Itoa(rep.Year) + "_" + twoDigits(rep.Month),
		Sheets: []Sheet{
			overviewSheet(rep.Overview),
			daily,
			bestSellingSheet(rep.BestSelling),
			customerSheet(rep.Customers),
		},
	}
}

// Yearly builds the twelve-month summary.
func Yearly(sum stats.YearlySummary) Report {
	sh := Sheet{Name: "Yearly Summary", Header: []string{"Month", "Orders", "Sales"}}
	for _, m := range sum.Months {
		sh.Rows = append(sh.Rows, []any{m.Month, m.OrderCount, m.TotalSales})
	}
	sh.Rows = append(sh.Rows, []any{"Total", sum.OrderCount, sum.TotalSales})
	return Report{Kind: KindYearly, Name: "yearly_summary_" + strconv.Itoa(sum.Year), Sheets: []Sheet{sh}}
}

// ProductSales builds the revenue share report.
func ProductSales(rows []stats.ProductSales, p Period) Report {
	sh := Sheet{Name: "Product Sales", Header: []string{"Rank", "Code", "Product", "Quantity", "Sales", "Share %"}}
	for _, r := range rows {
		sh.Rows = append(sh.Rows, []any{r.Rank, r.ProductCode, r.ProductName, r.QuantitySold, r.SalesAmount, r.SalesShare})
	}
	return Report{Kind: KindProductSales, Name: string(KindProductSales) + "_" + p.suffix(), Sheets: []Sheet{sh}}
}

// CustomerRanking builds the customer ranking report.
func CustomerRanking(rows []stats.CustomerRank, p Period) Report {
	return Report{Kind: KindCustomerRanking, Name: string(KindCustomerRanking) + "_" + p.suffix(), Sheets: []Sheet{customerSheet(rows)}}
}

// BestSelling builds the best sellers report.
func BestSelling(rows []stats.BestSeller, p Period) Report {
	return Report{Kind: KindBestSelling, Name: string(KindBestSelling) + "_" + p.suffix(), Sheets: []Sheet{bestSellingSheet(rows)}}
}

// SlowMoving builds the slow movers report. Never-sold products have an
// empty last sale column.
func SlowMoving(rows []stats.SlowMover, generated time.Time) Report {
	sh := Sheet{Name: "Slow Moving", Header: []string{"Code", "Product", "Stock", "Last Sale", "Idle Days"}}
	for _, r := range rows {
		last, idle := any("never"), any(r.IdleDays)
		if r.LastSaleAt != nil {
			last = r.LastSaleAt.Format(time.DateOnly)
		} else {
			idle = ""
		}
		sh.Rows = append(sh.Rows, []any{r.ProductCode, r.ProductName, r.Stock, last, idle})
	}
	return Report{Kind: KindSlowMoving, Name: string(KindSlowMoving) + "_" + generated.Format("20060102"), Sheets: []Sheet{sh}}
}

func overviewSheet(ov stats.SalesOverview) Sheet {
	return Sheet{
		Name:   "Overview",
		Header: []string{"Metric", "Value"},
		Rows: [][]any{
			{"Orders", ov.OrderCount},
			{"Total sales", ov.TotalSales},
			{"Total quantity", ov.TotalQuantity},
			{"Average order amount", ov.AvgOrderAmount},
		},
	}
}

func bestSellingSheet(rows []stats.BestSeller) Sheet {
	sh := Sheet{Name: "Best Selling", Header: []string{"Rank", "Code", "Product", "Quantity", "Sales", "Orders"}}
	for _, r := range rows {
		sh.Rows = append(sh.Rows, []any{r.Rank, r.ProductCode, r.ProductName, r.QuantitySold, r.SalesAmount, r.OrderCount})
	}
	return sh
}

func customerSheet(rows []stats.CustomerRank) Sheet {
	sh := Sheet{Name: "Customer Ranking", Header: []string{"Rank", "Customer", "Phone", "Orders", "Total", "Quantity", "Average"}}
	for _, r := range rows {
		sh.Rows = append(sh.Rows, []any{r.Rank, r.CustomerName, r.CustomerPhone, r.OrderCount, r.TotalAmount, r.TotalQuantity, r.AvgAmount})
	}
	return sh
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
