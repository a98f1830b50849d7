// Package transport implements opt.Invoker over MCP client sessions.
//
// A capability server is any MCP tool server; its tools are the
// capabilities. The adapter speaks the protocol through mark3labs/mcp-go
// and supports stdio subprocess servers as well as in-process servers
// (useful for demos and tests).
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcpboost/mcpboost/opt"
)

// MCPInvoker adapts one initialized MCP client session to the opt.Invoker
// boundary. Request context is client-side metadata (cache relevance,
// identity); it is not forwarded on the wire.
type MCPInvoker struct {
	name   string
	client *client.Client
}

// NewStdioInvoker launches an MCP server subprocess over stdio and
// initializes a session with it.
func NewStdioInvoker(ctx context.Context, name, command string, env []string, args ...string) (*MCPInvoker, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("starting MCP server %q: %w", name, err)
	}
	return initialize(ctx, name, c)
}

// NewInProcessInvoker connects to an in-process MCP server. No subprocess
// and no wire encoding; the session still goes through the full protocol
// handshake.
func NewInProcessInvoker(ctx context.Context, name string, srv *server.MCPServer) (*MCPInvoker, error) {
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("connecting in-process server %q: %w", name, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting in-process session %q: %w", name, err)
	}
	return initialize(ctx, name, c)
}

// initialize performs the MCP handshake and wraps the session.
func initialize(ctx context.Context, name string, c *client.Client) (*MCPInvoker, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "mcpboost", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP session %q: %w", name, err)
	}
	return &MCPInvoker{name: name, client: c}, nil
}

// Name returns the server name this invoker was registered under.
func (m *MCPInvoker) Name() string { return m.name }

// Invoke implements opt.Invoker by calling the tool named by capability.
// Tool-level errors (IsError results) are returned as Go errors; successful
// results are flattened to their text content.
func (m *MCPInvoker) Invoke(ctx context.Context, capability string, args map[string]any, _ opt.RequestContext) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = capability
	req.Params.Arguments = args

	res, err := m.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling tool %q on %q: %w", capability, m.name, err)
	}
	text := flattenContent(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("tool %q on %q returned an error: %s", capability, m.name, text)
	}
	return text, nil
}

// Capabilities lists the tool names the server advertises.
func (m *MCPInvoker) Capabilities(ctx context.Context) ([]string, error) {
	res, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools on %q: %w", m.name, err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names, nil
}

// Describe builds a registry descriptor from the server's advertised tools,
// assigning the same base fitness to each. Callers tune per-capability
// fitness afterwards when servers specialize.
func (m *MCPInvoker) Describe(ctx context.Context, fitness float64) (opt.ServerDescriptor, error) {
	names, err := m.Capabilities(ctx)
	if err != nil {
		return opt.ServerDescriptor{}, err
	}
	caps := make(map[string]float64, len(names))
	for _, n := range names {
		caps[n] = fitness
	}
	return opt.ServerDescriptor{Name: m.name, Capabilities: caps, Invoker: m}, nil
}

// Close tears down the session (and the subprocess for stdio servers).
func (m *MCPInvoker) Close() error {
	return m.client.Close()
}

// flattenContent joins the text parts of a tool result.
func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
