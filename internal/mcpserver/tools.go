package mcpserver

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

var errBadArgument = errors.New("bad argument")

func rangeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start_date", mcp.Description("First day included, YYYY-MM-DD. Omit for no lower bound.")),
		mcp.WithString("end_date", mcp.Description("Last day included, YYYY-MM-DD. Omit for no upper bound.")),
	}
}

func rankedTool(name, desc string, defLimit int) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(desc)}, rangeOptions()...)
	opts = append(opts, mcp.WithNumber("limit",
		mcp.Description("Maximum rows, 0 returns every row."),
		mcp.DefaultNumber(float64(defLimit)),
		mcp.Min(0),
	))
	return mcp.NewTool(name, opts...)
}

func orderSummaryTool() mcp.Tool {
	return mcp.NewTool("order_summary",
		mcp.WithDescription("Count orders by status and sum realized sales over all time."),
	)
}

func salesOverviewTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Order count, total sales, total quantity and average order amount of realized orders."),
	}, rangeOptions()...)
	return mcp.NewTool("sales_overview", opts...)
}

func productSalesTool() mcp.Tool {
	return rankedTool("product_sales", "Per-product quantity, sales and share of total sales in percent.", stats.DefaultProductLimit)
}

func customerRankingTool() mcp.Tool {
	return rankedTool("customer_ranking", "Customers ranked by total amount spent.", stats.DefaultCustomerLimit)
}

func bestSellingTool() mcp.Tool {
	return rankedTool("best_selling", "Products ranked by quantity sold.", stats.DefaultBestLimit)
}

func slowMovingTool() mcp.Tool {
	return mcp.NewTool("slow_moving",
		mcp.WithDescription("Active products with no realized sale within the idle period, never-sold first."),
		mcp.WithNumber("limit", mcp.Description("Maximum rows, 0 returns every row."),
			mcp.DefaultNumber(float64(stats.DefaultSlowLimit)), mcp.Min(0)),
	)
}

func monthlyTool() mcp.Tool {
	return mcp.NewTool("monthly_statistics",
		mcp.WithDescription("Overview, daily sales, best sellers and top customers of one calendar month."),
		mcp.WithNumber("year", mcp.Description("Calendar year, defaults to the current one.")),
		mcp.WithNumber("month", mcp.Description("Month 1-12, defaults to the current one."), mcp.Min(1), mcp.Max(12)),
	)
}

func yearlyTool() mcp.Tool {
	return mcp.NewTool("yearly_summary",
		mcp.WithDescription("Order count and sales per month of one calendar year."),
		mcp.WithNumber("year", mcp.Description("Calendar year, defaults to the current one.")),
	)
}

func (s *Server) dateArg(req mcp.CallToolRequest, name string) (*time.Time, error) {
	v := req.GetString(name, "")
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, s.stats.Location())
	if err != nil {
		return nil, errors.Wrapf(errBadArgument, "%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

func (s *Server) rangeArgs(req mcp.CallToolRequest) (stats.Range, error) {
	start, err := s.dateArg(req, "start_date")
	if err != nil {
		return stats.Range{}, err
	}
	end, err := s.dateArg(req, "end_date")
	if err != nil {
		return stats.Range{}, err
	}
	return stats.Range{Start: start, End: end}, nil
}

func limitArg(req mcp.CallToolRequest, def int) (int, error) {
	n := req.GetInt("limit", def)
	if n < 0 {
		return 0, errors.Wrap(errBadArgument, "limit must not be negative")
	}
	return n, nil
}

func (s *Server) handleOrderSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.stats.OrderSummary(ctx))
}

func (s *Server) handleSalesOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.rangeArgs(req)
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(s.stats.SalesOverview(ctx, r))
}

// ranked runs one of the limit-bounded statistics.
func ranked[T any](ctx context.Context, s *Server, req mcp.CallToolRequest, def int,
	fn func(context.Context, stats.Range, int) ([]T, error),
) (*mcp.CallToolResult, error) {
	r, err := s.rangeArgs(req)
	if err != nil {
		return toolResult(nil, err)
	}
	limit, err := limitArg(req, def)
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(fn(ctx, r, limit))
}

func (s *Server) handleProductSales(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ranked(ctx, s, req, stats.DefaultProductLimit, s.stats.ProductSalesRatio)
}

func (s *Server) handleCustomerRanking(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ranked(ctx, s, req, stats.DefaultCustomerLimit, s.stats.CustomerRanking)
}

func (s *Server) handleBestSelling(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ranked(ctx, s, req, stats.DefaultBestLimit, s.stats.BestSelling)
}

func (s *Server) handleSlowMoving(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, err := limitArg(req, stats.DefaultSlowLimit)
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(s.stats.SlowMoving(ctx, limit))
}

func (s *Server) handleMonthly(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := s.stats.Now()
	year := req.GetInt("year", now.Year())
	month := req.GetInt("month", int(now.Month()))
	return toolResult(s.stats.MonthlyStatistics(ctx, year, month))
}

func (s *Server) handleYearly(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.stats.YearlySummary(ctx, req.GetInt("year", s.stats.Now().Year())))
}
