// Package bridge connects a function-calling language model to an MCP tool
// server. A Bridge answers natural-language requests by letting the model
// call the server's tools over a session scoped to each request.
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/config"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/conversation"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/invocation"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
	transport "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp"
)

// Version is advertised to tool servers during initialize.
const Version = "0.3.0"

// Bridge is the caller-facing entry point. It is safe for concurrent use;
// each call opens and closes its own session.
type Bridge struct {
	manager    *transport.Manager
	model      model.Model
	driver     *conversation.Driver
	translator *invocation.Translator
	logger     *slog.Logger
	closers    []io.Closer
}

type options struct {
	driverOpts []conversation.Option
	logger     *slog.Logger
	dialer     transport.Dialer
	observer   conversation.Observer
}

type Option func(*options)

// WithLogger sets the base logger for every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver receives conversation progress events.
func WithObserver(obs conversation.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithConversationOptions forwards options to the conversation driver.
func WithConversationOptions(opts ...conversation.Option) Option {
	return func(o *options) { o.driverOpts = append(o.driverOpts, opts...) }
}

// WithDialer overrides how sessions reach the tool server. Only NewFromConfig
// uses it; New takes a ready Manager.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// New assembles a Bridge from a session manager and a model.
func New(mgr *transport.Manager, m model.Model, opts ...Option) (*Bridge, error) {
	if mgr == nil {
		return nil, errors.New("bridge: no session manager")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := logging.OrDiscard(o.logger)
	translator := invocation.New(invocation.WithLogger(logger))

	driverOpts := []conversation.Option{conversation.WithLogger(logger), conversation.WithTranslator(translator)}
	if o.observer != nil {
		driverOpts = append(driverOpts, conversation.WithObserver(o.observer))
	}
	driverOpts = append(driverOpts, o.driverOpts...)

	b := &Bridge{manager: mgr, model: m, translator: translator, logger: logging.Component(logger, "bridge")}
	if m != nil {
		d, err := conversation.New(mgr, m, driverOpts...)
		if err != nil {
			return nil, err
		}
		b.driver = d
	}
	return b, nil
}

// NewFromConfig validates cfg and builds the model, the session manager and
// the driver it describes. Nothing is spawned until the first request.
func NewFromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := logging.OrDiscard(o.logger)

	p, err := cfg.ServerProvider()
	if err != nil {
		return nil, err
	}
	mopts := []transport.Option{transport.WithLogger(logger), transport.WithClientInfo("go-mcp-bridge", Version)}
	if o.dialer != nil {
		mopts = append(mopts, transport.WithDialer(o.dialer))
	}
	mgr, err := transport.NewManager(p, mopts...)
	if err != nil {
		return nil, err
	}

	m, closer, err := NewModel(ctx, cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithConversationOptions(
		conversation.WithMaxTurns(cfg.Conversation.MaxTurns),
		conversation.WithSystemPrompt(cfg.Conversation.SystemPrompt),
		conversation.WithModelTimeout(cfg.Model.Timeout),
	))
	b, err := New(mgr, m, opts...)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	if closer != nil {
		b.closers = append(b.closers, closer)
	}
	return b, nil
}

// Answer runs one full conversation for userMessage.
func (b *Bridge) Answer(ctx context.Context, userMessage string) (string, error) {
	if b.driver == nil {
		return "", errors.New("bridge: no model configured")
	}
	start := time.Now()
	answer, err := b.driver.Answer(ctx, userMessage)
	if err != nil {
		b.logger.Error("request failed", "error", err, "elapsed", time.Since(start))
		return "", err
	}
	b.logger.Info("request answered", "elapsed", time.Since(start))
	return answer, nil
}

// DiscoverCapabilities lists the tool server's capabilities in a session of
// its own.
func (b *Bridge) DiscoverCapabilities(ctx context.Context) ([]tools.Tool, error) {
	if b.driver != nil {
		return b.driver.DiscoverCapabilities(ctx)
	}
	return conversation.DiscoverCapabilities(ctx, b.manager)
}

// ProbeResult describes a successful connection check.
type ProbeResult struct {
	Server        string
	ServerName    string
	ServerVersion string
	Tools         []tools.Tool
	Elapsed       time.Duration
}

// Probe opens a session, completes the handshake and lists capabilities,
// reporting what the server said about itself.
func (b *Bridge) Probe(ctx context.Context) (*ProbeResult, error) {
	start := time.Now()
	var res *ProbeResult
	err := b.manager.WithSession(ctx, func(ctx context.Context, s *transport.Session) error {
		catalog, err := s.Discover(ctx)
		if err != nil {
			return err
		}
		info := s.ServerInfo()
		res = &ProbeResult{
			Server:        s.Server(),
			ServerName:    info.Name,
			ServerVersion: info.Version,
			Tools:         catalog.Tools(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// Invoke calls one capability directly, without a model.
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]any) (invocation.Result, error) {
	var res invocation.Result
	err := b.manager.WithSession(ctx, func(ctx context.Context, s *transport.Session) error {
		var err error
		res, err = b.translator.Invoke(ctx, s, name, args)
		return err
	})
	return res, err
}

// Model returns the configured model, or nil.
func (b *Bridge) Model() model.Model { return b.model }

// Close releases model clients. Sessions never outlive a call.
func (b *Bridge) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
