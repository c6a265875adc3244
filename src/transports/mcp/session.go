package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpapi "github.com/mark3labs/mcp-go/mcp"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// maxListPages bounds cursor following in Discover.
const maxListPages = 64

// Session is a single-use connection to one tool server. All traffic is
// serialized: the server stdio pipe does not support interleaved calls.
type Session struct {
	id          string
	server      string
	conn        Conn
	callTimeout time.Duration
	logger      *slog.Logger
	serverInfo  mcpapi.Implementation

	callMu sync.Mutex

	mu      sync.Mutex
	state   State
	catalog *tools.Catalog
}

func newSession(id, server string, conn Conn, callTimeout time.Duration, logger *slog.Logger) *Session {
	return &Session{
		id:          id,
		server:      server,
		conn:        conn,
		callTimeout: callTimeout,
		logger:      logger,
		state:       StateReady,
	}
}

func (s *Session) ID() string { return s.id }

// Server returns the configured server name.
func (s *Session) Server() string { return s.server }

// ServerInfo returns what the server reported during initialize.
func (s *Session) ServerInfo() mcpapi.Implementation { return s.serverInfo }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Catalog returns the cached catalog, or nil before Discover succeeds.
func (s *Session) Catalog() *tools.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Discover lists the server's tools once and caches the catalog for the rest
// of the session. Later calls return the cached catalog without traffic.
func (s *Session) Discover(ctx context.Context) (*tools.Catalog, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	s.mu.Lock()
	state, cached := s.state, s.catalog
	s.mu.Unlock()
	if state != StateReady {
		return nil, &errorsx.ProtocolError{Op: "tools/list", Detail: "session is " + state.String(), Err: errorsx.ErrSessionNotReady}
	}
	if cached != nil {
		return cached, nil
	}

	var listed []mcpapi.Tool
	req := mcpapi.ListToolsRequest{}
	for page := 0; ; page++ {
		if page >= maxListPages {
			return nil, &errorsx.ProtocolError{Op: "tools/list", Detail: fmt.Sprintf("more than %d pages", maxListPages)}
		}
		res, err := s.listPage(ctx, req)
		if err != nil {
			return nil, &errorsx.ConnectionError{Server: s.server, Op: "tools/list", Err: err}
		}
		if res == nil {
			return nil, &errorsx.ProtocolError{Op: "tools/list", Detail: "empty response"}
		}
		listed = append(listed, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}

	converted := make([]tools.Tool, 0, len(listed))
	for _, tl := range listed {
		converted = append(converted, toTool(tl))
	}
	catalog, err := tools.NewCatalog(converted)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	s.logger.Info("capabilities discovered", "count", catalog.Len(), "tools", catalog.Names())
	return catalog, nil
}

// listPage requests one tools/list page bounded by the call timeout.
func (s *Session) listPage(ctx context.Context, req mcpapi.ListToolsRequest) (*mcpapi.ListToolsResult, error) {
	lctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	res, err := s.conn.ListTools(lctx, req)
	if err != nil && lctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = fmt.Errorf("no tools/list response within %s: %w", s.callTimeout, err)
	}
	return res, err
}

// CallTool sends one tools/call request bounded by the session call timeout.
// It does not consult the catalog; see invocation.Translator.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcpapi.CallToolResult, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if st := s.State(); st != StateReady {
		if st == StateClosed {
			return nil, errorsx.ErrSessionClosed
		}
		return nil, errorsx.ErrSessionNotReady
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	req := mcpapi.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	start := time.Now()
	res, err := s.conn.CallTool(cctx, req)
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("request timeout after %s: %w", s.callTimeout, err)
		}
		s.logger.Debug("tool call failed", "tool", name, "elapsed", time.Since(start), "error", err)
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("no result received from tool call")
	}
	s.logger.Debug("tool call finished", "tool", name, "elapsed", time.Since(start), "segments", len(res.Content))
	return res, nil
}

// Close releases the transport; a spawned server process is terminated. It
// is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	err := s.conn.Close()
	s.logger.Info("session closed")
	return err
}

func toTool(tl mcpapi.Tool) tools.Tool {
	return tools.Tool{
		Name:        tl.Name,
		Description: tl.Description,
		Inputs: tools.ToolInputOutputSchema{
			Type:       tl.InputSchema.Type,
			Properties: tl.InputSchema.Properties,
			Required:   tl.InputSchema.Required,
		},
	}
}
