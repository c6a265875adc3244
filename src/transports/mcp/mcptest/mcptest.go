// Package mcptest provides an in-process MCP tool server and connection
// helpers for tests.
package mcptest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
	transport "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp"
)

// PNG is a one-byte payload used for image segments.
const PNG = "iVBORw=="

// NewServer returns a server exposing a small browser-like tool set:
//
//	fetch_url            text "OK"
//	browserbase_navigate text "Navigated to <url>"
//	browserbase_take_screenshot  one image/png segment
//	browserbase_get_text two text segments
//	download             one application/pdf blob resource
//	noop                 no content at all
//	browserbase_click    tool-level error "element not found"
//	explode              JSON-RPC error
func NewServer() *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer("mcptest", "1.0.0", mcpserver.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a URL and return its status"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("OK"), nil
	})

	srv.AddTool(mcp.NewTool("browserbase_navigate",
		mcp.WithDescription("Navigate to a URL"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to navigate to")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := cast.ToString(req.GetArguments()["url"])
		return mcp.NewToolResultText(fmt.Sprintf("Navigated to %s", url)), nil
	})

	srv.AddTool(mcp.NewTool("browserbase_take_screenshot",
		mcp.WithDescription("Take a screenshot of the current page"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewImageContent(PNG, "image/png")}}, nil
	})

	srv.AddTool(mcp.NewTool("browserbase_get_text",
		mcp.WithDescription("Extract text content from the page"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{
			mcp.NewTextContent("Example Domain"),
			mcp.NewTextContent("This domain is for use in illustrative examples."),
		}}, nil
	})

	srv.AddTool(mcp.NewTool("download",
		mcp.WithDescription("Download the current document"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{
			mcp.NewEmbeddedResource(mcp.BlobResourceContents{URI: "file:///doc.pdf", MIMEType: "application/pdf", Blob: "JVBERi0="}),
		}}, nil
	})

	srv.AddTool(mcp.NewTool("noop",
		mcp.WithDescription("Do nothing"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{}}, nil
	})

	srv.AddTool(mcp.NewTool("browserbase_click",
		mcp.WithDescription("Click on an element on the page"),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Reference to the element to click")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("element not found"), nil
	})

	srv.AddTool(mcp.NewTool("explode",
		mcp.WithDescription("Always fails at the protocol level"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("kaboom")
	})

	return srv
}

// Provider returns a stdio provider suitable for use with Dialer; it is
// never actually spawned.
func Provider() *providers.ServerProvider {
	return providers.NewStdioProvider("mcptest", "mcptest-server")
}

// Counter records traffic on connections created by CountingDialer.
type Counter struct {
	Dials       atomic.Int32
	Initializes atomic.Int32
	Lists       atomic.Int32
	Calls       atomic.Int32
	Closes      atomic.Int32

	mu    sync.Mutex
	names []string
}

// CalledTools returns the tool names passed to CallTool, in order.
func (c *Counter) CalledTools() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// Transport returns the total number of requests sent after initialize.
func (c *Counter) Transport() int {
	return int(c.Lists.Load() + c.Calls.Load())
}

type countingConn struct {
	transport.Conn
	c *Counter
}

func (cc *countingConn) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	cc.c.Initializes.Add(1)
	return cc.Conn.Initialize(ctx, req)
}

func (cc *countingConn) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	cc.c.Lists.Add(1)
	return cc.Conn.ListTools(ctx, req)
}

func (cc *countingConn) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cc.c.Calls.Add(1)
	cc.c.mu.Lock()
	cc.c.names = append(cc.c.names, req.Params.Name)
	cc.c.mu.Unlock()
	return cc.Conn.CallTool(ctx, req)
}

func (cc *countingConn) Close() error {
	cc.c.Closes.Add(1)
	return cc.Conn.Close()
}

// Dialer connects every session to srv in-process.
func Dialer(srv *mcpserver.MCPServer) transport.Dialer {
	return func(ctx context.Context, _ *providers.ServerProvider, _ []string) (transport.Conn, error) {
		cli, err := mcpclient.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		if err := cli.Start(ctx); err != nil {
			cli.Close()
			return nil, err
		}
		return cli, nil
	}
}

// CountingDialer is Dialer with every connection instrumented by c.
func CountingDialer(srv *mcpserver.MCPServer, c *Counter) transport.Dialer {
	inner := Dialer(srv)
	return func(ctx context.Context, p *providers.ServerProvider, env []string) (transport.Conn, error) {
		c.Dials.Add(1)
		conn, err := inner(ctx, p, env)
		if err != nil {
			return nil, err
		}
		return &countingConn{Conn: conn, c: c}, nil
	}
}

// FailingDialer simulates an unreachable server.
func FailingDialer(err error) transport.Dialer {
	return func(context.Context, *providers.ServerProvider, []string) (transport.Conn, error) {
		return nil, err
	}
}

// Manager builds a transport manager wired to srv.
func Manager(srv *mcpserver.MCPServer, c *Counter) (*transport.Manager, error) {
	d := Dialer(srv)
	if c != nil {
		d = CountingDialer(srv, c)
	}
	return transport.NewManager(Provider(), transport.WithDialer(d))
}
