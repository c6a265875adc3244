package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	mcpapi "github.com/mark3labs/mcp-go/mcp"

	"github.com/google/uuid"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
)

// Manager hands out one fresh Session per logical operation. It holds only
// read-only configuration and is safe for concurrent use.
type Manager struct {
	provider   *providers.ServerProvider
	dial       Dialer
	lookupEnv  func(string) (string, bool)
	clientInfo mcpapi.Implementation
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the transport factory, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithEnvLookup overrides how required server variables are resolved.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.lookupEnv = fn
		}
	}
}

// WithClientInfo sets the implementation advertised during initialize.
func WithClientInfo(name, version string) Option {
	return func(m *Manager) {
		m.clientInfo = mcpapi.Implementation{Name: name, Version: version}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager validates p and returns a Manager for it.
func NewManager(p *providers.ServerProvider, opts ...Option) (*Manager, error) {
	if p == nil {
		return nil, &errorsx.ConfigError{Key: "server", Reason: "no tool server configured"}
	}
	if err := p.Validate(); err != nil {
		return nil, &errorsx.ConfigError{Key: "server", Reason: err.Error()}
	}
	m := &Manager{
		provider:   p,
		dial:       DefaultDialer,
		lookupEnv:  os.LookupEnv,
		clientInfo: mcpapi.Implementation{Name: "go-mcp-bridge", Version: "1.0.0"},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.Component(m.logger, "mcp")
	return m, nil
}

// Provider returns the server configuration this manager launches.
func (m *Manager) Provider() *providers.ServerProvider { return m.provider }

// Open spawns or connects to the tool server and completes the initialize
// handshake within the provider's handshake timeout. The caller owns the
// returned Session and must Close it; prefer WithSession.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	name := m.provider.Name
	if err := ctx.Err(); err != nil {
		return nil, &errorsx.ConnectionError{Server: name, Op: "open session", Err: err}
	}

	env, err := m.provider.ResolveEnv(m.lookupEnv)
	if err != nil {
		return nil, &errorsx.ConnectionError{Server: name, Op: "configure environment", Err: err}
	}

	hctx, cancel := context.WithTimeout(ctx, m.provider.EffectiveHandshakeTimeout())
	defer cancel()

	id := uuid.NewString()
	log := m.logger.With(slog.String("server", name), slog.String("session", id))
	log.Debug("starting tool server", "transport", m.provider.TransportKind(), "command", m.provider.Command, "args", m.provider.Args)

	conn, err := m.dial(hctx, m.provider, env)
	if err != nil {
		return nil, &errorsx.ConnectionError{Server: name, Op: "spawn", Err: err}
	}

	initReq := mcpapi.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpapi.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = m.clientInfo
	initRes, err := conn.Initialize(hctx, initReq)
	if err != nil {
		conn.Close()
		if hctx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("handshake did not complete within %s: %w", m.provider.EffectiveHandshakeTimeout(), err)
		}
		if st, ok := conn.(interface{ StderrTail() string }); ok && st.StderrTail() != "" {
			err = fmt.Errorf("%w (server stderr: %s)", err, st.StderrTail())
		}
		return nil, &errorsx.ConnectionError{Server: name, Op: "initialize", Err: err}
	}

	s := newSession(id, name, conn, m.provider.EffectiveCallTimeout(), log)
	if initRes != nil {
		s.serverInfo = initRes.ServerInfo
	}
	log.Info("session opened", "server_name", s.serverInfo.Name, "server_version", s.serverInfo.Version)
	return s, nil
}

// WithSession opens a Session, runs fn with it and closes it on every exit
// path, including panics and context cancellation. It never retries.
func (m *Manager) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := m.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			m.logger.Debug("closing session", "session", s.ID(), "error", cerr)
		}
	}()
	return fn(ctx, s)
}
