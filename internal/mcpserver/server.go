// Package mcpserver exposes the statistics engine as Model Context Protocol
// tools, so assistants can query sales figures read-only.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xenking/wholesale-orders/internal/domain/stats"
)

const (
	// ServerName is the MCP server name.
	ServerName = "wholesale-stats"
	// ServerVersion is reported during initialization.
	ServerVersion = "1.0.0"
)

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

// Server wraps the MCP server with the statistics engine.
type Server struct {
	mcp   *server.MCPServer
	stats Statistics
}

// New creates a Server with every statistics tool registered.
func New(st Statistics) *Server {
	s := &Server{
		mcp:   server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		stats: st,
	}
	s.mcp.AddTool(orderSummaryTool(), s.handleOrderSummary)
	s.mcp.AddTool(salesOverviewTool(), s.handleSalesOverview)
	s.mcp.AddTool(productSalesTool(), s.handleProductSales)
	s.mcp.AddTool(customerRankingTool(), s.handleCustomerRanking)
	s.mcp.AddTool(bestSellingTool(), s.handleBestSelling)
	s.mcp.AddTool(slowMovingTool(), s.handleSlowMoving)
	s.mcp.AddTool(monthlyTool(), s.handleMonthly)
	s.mcp.AddTool(yearlyTool(), s.handleYearly)
	return s
}

// ServeStdio serves MCP over stdin and stdout until the input is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode result")
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolResult turns input and period errors into tool errors the model can
// read and correct. Other errors fail the call.
func toolResult(v any, err error) (*mcp.CallToolResult, error) {
	switch {
	case err == nil:
		return jsonResult(v)
	case errors.Is(err, stats.ErrInvalidRange), errors.Is(err, stats.ErrInvalidPeriod), errors.Is(err, errBadArgument):
		return mcp.NewToolResultError(err.Error()), nil
	default:
		return nil, err
	}
}
