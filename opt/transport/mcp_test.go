package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpboost/mcpboost/opt"
)

// newEchoServer builds an in-process MCP server with an "echo" tool that
// returns its query argument, and a "broken" tool that always reports a
// tool-level error.
func newEchoServer() *server.MCPServer {
	srv := server.NewMCPServer("echo-server", "0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	srv.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Returns the query argument verbatim."),
			mcp.WithString("query", mcp.Description("Text to echo back.")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("echo: " + req.GetString("query", "")), nil
		},
	)
	srv.AddTool(
		mcp.NewTool("broken",
			mcp.WithDescription("Always fails."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("backend exploded"), nil
		},
	)
	return srv
}

func newEchoInvoker(t *testing.T) *MCPInvoker {
	t.Helper()
	inv, err := NewInProcessInvoker(context.Background(), "echo-server", newEchoServer())
	require.NoError(t, err)
	t.Cleanup(func() { inv.Close() })
	return inv
}

func TestInvoke_ReturnsToolText(t *testing.T) {
	inv := newEchoInvoker(t)

	value, err := inv.Invoke(context.Background(), "echo", map[string]any{"query": "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", value)
}

func TestInvoke_ToolErrorBecomesGoError(t *testing.T) {
	inv := newEchoInvoker(t)

	value, err := inv.Invoke(context.Background(), "broken", nil, nil)
	require.Error(t, err)
	assert.Nil(t, value)
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Contains(t, err.Error(), "echo-server")
}

func TestInvoke_UnknownToolFails(t *testing.T) {
	inv := newEchoInvoker(t)

	_, err := inv.Invoke(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}

func TestCapabilities_ListsAdvertisedTools(t *testing.T) {
	inv := newEchoInvoker(t)

	caps, err := inv.Capabilities(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"echo", "broken"}, caps)
}

func TestDescribe_BuildsDescriptor(t *testing.T) {
	inv := newEchoInvoker(t)

	desc, err := inv.Describe(context.Background(), 0.8)
	require.NoError(t, err)
	assert.Equal(t, "echo-server", desc.Name)
	assert.Equal(t, 0.8, desc.Capabilities["echo"])
	assert.Equal(t, 0.8, desc.Capabilities["broken"])
	assert.NotNil(t, desc.Invoker)
	assert.True(t, desc.Offers("echo"))
}

// End to end: the orchestration layer dispatching over a real MCP session.
func TestOrchestratorOverMCP(t *testing.T) {
	ctx := context.Background()
	inv := newEchoInvoker(t)

	registry := opt.NewServerRegistry()
	desc, err := inv.Describe(ctx, 1.0)
	require.NoError(t, err)
	require.NoError(t, registry.Register(desc))

	cache := opt.NewContextAwareCache(opt.CacheConfig{MaxEntries: 16})
	balancer := opt.NewCapabilityAwareLoadBalancer(registry, opt.BalancerConfig{})
	monitor := opt.NewPerformanceMonitor(opt.MonitorConfig{Window: 5})
	orch := opt.NewRequestOrchestrator(registry, cache, balancer, monitor)

	tasks := []opt.Task{
		{Name: "greet", Capability: "echo", Arguments: map[string]any{"query": "hi"}},
		{Name: "shout", Capability: "echo", Arguments: map[string]any{"query": "HI"}, DependsOn: []string{"greet"}},
	}

	report, err := orch.Run(ctx, tasks)
	require.NoError(t, err)
	require.Len(t, report.Batches, 2)

	greet := report.Outcomes["greet"]
	require.NoError(t, greet.Err)
	assert.Equal(t, "echo: hi", greet.Value)
	assert.Equal(t, "echo-server", greet.Server)
	assert.Equal(t, 1, monitor.SampleCount("greet"))

	// Same arguments again: served from the cache, no second dispatch.
	again, err := orch.Run(ctx, tasks[:1])
	require.NoError(t, err)
	assert.True(t, again.Outcomes["greet"].Cached)
	assert.Equal(t, 1, again.CacheHits)
}

func TestFlattenContent(t *testing.T) {
	parts := []mcp.Content{
		mcp.TextContent{Type: "text", Text: "first"},
		mcp.TextContent{Type: "text", Text: "second"},
	}
	joined := flattenContent(parts)
	assert.Equal(t, "first\nsecond", joined)
	assert.Equal(t, 2, len(strings.Split(joined, "\n")))
}
