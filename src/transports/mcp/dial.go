package mcp

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpapi "github.com/mark3labs/mcp-go/mcp"

	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
)

// Conn is the subset of the mcp-go client a Session drives. *client.Client
// satisfies it.
type Conn interface {
	Initialize(ctx context.Context, req mcpapi.InitializeRequest) (*mcpapi.InitializeResult, error)
	ListTools(ctx context.Context, req mcpapi.ListToolsRequest) (*mcpapi.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpapi.CallToolRequest) (*mcpapi.CallToolResult, error)
	Close() error
}

// Dialer opens a started, uninitialized connection to the server described
// by p. env holds the resolved KEY=VALUE pairs for spawned processes.
type Dialer func(ctx context.Context, p *providers.ServerProvider, env []string) (Conn, error)

// DefaultDialer spawns stdio servers and connects to HTTP/SSE endpoints.
func DefaultDialer(ctx context.Context, p *providers.ServerProvider, env []string) (Conn, error) {
	switch p.TransportKind() {
	case providers.TransportStdio:
		return spawnStdio(ctx, p, env)
	case providers.TransportHTTP:
		cli, err := mcpclient.NewStreamableHttpClient(p.URL, transport.WithHTTPHeaders(p.Headers))
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP HTTP client: %w", err)
		}
		return startClient(ctx, cli)
	case providers.TransportSSE:
		cli, err := mcpclient.NewSSEMCPClient(p.URL, transport.WithHeaders(p.Headers))
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP SSE client: %w", err)
		}
		return startClient(ctx, cli)
	}
	return nil, fmt.Errorf("unsupported transport %q", p.Transport)
}

func startClient(ctx context.Context, cli *mcpclient.Client) (Conn, error) {
	if err := cli.Start(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	return cli, nil
}
