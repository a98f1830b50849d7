package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcpboost/mcpboost/opt"
	"github.com/mcpboost/mcpboost/opt/transport"
)

// demoFleet declares the in-process MCP servers the demo runs against and
// the base fitness each declares per tool. data-server offers search as a
// secondary capability, so with equal load the balancer prefers nlp-server
// for search traffic.
var demoFleet = map[string]map[string]float64{
	"nlp-server":  {"search": 1.0, "summarize": 1.0},
	"data-server": {"search": 0.8, "aggregate": 1.0},
	"ml-server":   {"classify": 1.0, "predict": 1.0},
}

// buildDemoFleet starts the demo servers, connects an in-process MCP
// session to each, and registers them. The returned cleanup closes every
// session.
func buildDemoFleet(ctx context.Context, registry *opt.ServerRegistry) (func(), error) {
	var invokers []*transport.MCPInvoker
	cleanup := func() {
		for _, inv := range invokers {
			inv.Close()
		}
	}

	for name, caps := range demoFleet {
		srv := newDemoServer(name, caps)
		inv, err := transport.NewInProcessInvoker(ctx, name, srv)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connecting demo server %q: %w", name, err)
		}
		invokers = append(invokers, inv)

		// Describe round-trips the advertised tool list through the real
		// protocol, then the declared fitness profile is applied on top.
		desc, err := inv.Describe(ctx, 1.0)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("describing demo server %q: %w", name, err)
		}
		for capability, fitness := range caps {
			desc.Capabilities[capability] = fitness
		}
		if err := registry.Register(desc); err != nil {
			cleanup()
			return nil, err
		}
	}
	return cleanup, nil
}

// newDemoServer builds one in-process MCP server whose tools answer after a
// short simulated latency.
func newDemoServer(name string, caps map[string]float64) *server.MCPServer {
	s := server.NewMCPServer(name, "0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for toolName := range caps {
		tool := mcp.NewTool(toolName,
			mcp.WithDescription(fmt.Sprintf("Demo %s capability served by %s.", toolName, name)),
			mcp.WithString("query",
				mcp.Description("Query or payload to process."),
			),
		)
		s.AddTool(tool, demoToolHandler(name, toolName))
	}
	return s
}

// demoToolHandler simulates a tool call with 20–60ms of variable latency.
func demoToolHandler(serverName, toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		latency := 20*time.Millisecond + time.Duration(rand.Intn(40))*time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(latency):
		}
		query := req.GetString("query", "")
		return mcp.NewToolResultText(
			fmt.Sprintf("%s/%s processed %q in %s", serverName, toolName, query, latency),
		), nil
	}
}
