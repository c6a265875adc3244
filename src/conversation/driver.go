// Package conversation runs the multi-turn exchange between a model and a
// tool-server session until the model produces a final answer.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/invocation"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
	transport "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp"
)

// DefaultMaxTurns bounds model round trips per request.
const DefaultMaxTurns = 10

// SessionRunner scopes one tool-server session around fn.
// *transport.Manager implements it.
type SessionRunner interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, s *transport.Session) error) error
}

// Outcome describes a finished conversation.
type Outcome struct {
	Answer      string
	Turns       int
	Invocations int
	Messages    []model.Message
}

type Option func(*Driver)

// WithMaxTurns caps model round trips. Values below 1 keep the default.
func WithMaxTurns(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxTurns = n
		}
	}
}

// WithModelTimeout bounds each model turn, retries included. Zero leaves
// turns bounded only by the caller's context.
func WithModelTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.modelTimeout = t
		}
	}
}

func WithSystemPrompt(s string) Option {
	return func(d *Driver) { d.system = s }
}

func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithTranslator(t *invocation.Translator) Option {
	return func(d *Driver) {
		if t != nil {
			d.translator = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// Driver owns the model loop. It keeps no state between requests and is safe
// for concurrent use; each request gets its own session.
type Driver struct {
	sessions   SessionRunner
	model      model.Model
	translator *invocation.Translator
	maxTurns   int
	system     string
	observer   Observer
	logger     *slog.Logger

	modelTimeout time.Duration
}

func New(sessions SessionRunner, m model.Model, opts ...Option) (*Driver, error) {
	if sessions == nil {
		return nil, errors.New("conversation: no session runner")
	}
	if m == nil {
		return nil, errors.New("conversation: no model")
	}
	d := &Driver{
		sessions: sessions,
		model:    m,
		maxTurns: DefaultMaxTurns,
		observer: ObserverFuncs{},
	}
	for _, opt := range opts {
		opt(d)
	}
	base := d.logger
	d.logger = logging.Component(base, "conversation")
	if d.translator == nil {
		d.translator = invocation.New(invocation.WithLogger(base))
	}
	return d, nil
}

// Answer opens a session, runs the conversation for userMessage and returns
// the model's final text. The session is closed before Answer returns.
func (d *Driver) Answer(ctx context.Context, userMessage string) (string, error) {
	var out *Outcome
	err := d.sessions.WithSession(ctx, func(ctx context.Context, s *transport.Session) error {
		var err error
		out, err = d.Converse(ctx, s, userMessage)
		return err
	})
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

// DiscoverCapabilities opens a session only to list its capabilities.
func (d *Driver) DiscoverCapabilities(ctx context.Context) ([]tools.Tool, error) {
	return DiscoverCapabilities(ctx, d.sessions)
}

// DiscoverCapabilities lists the capabilities of a session opened on
// sessions and closes it again. It needs no model.
func DiscoverCapabilities(ctx context.Context, sessions SessionRunner) ([]tools.Tool, error) {
	var list []tools.Tool
	err := sessions.WithSession(ctx, func(ctx context.Context, s *transport.Session) error {
		catalog, err := s.Discover(ctx)
		if err != nil {
			return err
		}
		list = catalog.Tools()
		return nil
	})
	return list, err
}

// Converse runs the loop on an already open session.
func (d *Driver) Converse(ctx context.Context, s invocation.Session, userMessage string) (*Outcome, error) {
	catalog, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	d.observer.Discovered(catalog.Tools())

	out := &Outcome{Messages: []model.Message{{Role: model.RoleUser, Text: userMessage}}}
	for turn := 1; ; turn++ {
		if turn > d.maxTurns {
			return nil, d.modelError("converse", fmt.Errorf("%w (%d)", errorsx.ErrMaxTurnsExceeded, d.maxTurns), out.Messages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := model.Request{System: d.system, Messages: out.Messages, Tools: catalog.Tools()}
		d.observer.ModelTurn(turn, req)
		d.logger.Debug("model turn", "turn", turn, "messages", len(req.Messages))
		reply, err := d.generate(ctx, req)
		out.Turns = turn
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, d.modelError("generate", err, out.Messages)
		}
		if reply == nil || (!reply.HasCalls() && strings.TrimSpace(reply.Text) == "") {
			return nil, d.modelError("generate", errors.New("empty reply"), out.Messages)
		}

		if !reply.HasCalls() {
			out.Messages = append(out.Messages, model.Message{Role: model.RoleModel, Text: reply.Text})
			out.Answer = reply.Text
			d.observer.Answer(reply.Text)
			d.logger.Info("conversation finished", "turns", out.Turns, "invocations", out.Invocations)
			return out, nil
		}

		calls := make([]model.Call, len(reply.Calls))
		for i, c := range reply.Calls {
			if c.ID == "" {
				c.ID = fmt.Sprintf("call_%d_%d", turn, i+1)
			}
			if c.Arguments == nil {
				c.Arguments = map[string]any{}
			}
			calls[i] = c
		}
		out.Messages = append(out.Messages, model.Message{Role: model.RoleModel, Text: reply.Text, Calls: calls})

		feedback, err := d.executeAll(ctx, s, turn, calls)
		out.Invocations += len(calls)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, feedback)
	}
}

func (d *Driver) generate(ctx context.Context, req model.Request) (*model.Reply, error) {
	if d.modelTimeout <= 0 {
		return d.model.Generate(ctx, req)
	}
	tctx, cancel := context.WithTimeout(ctx, d.modelTimeout)
	defer cancel()
	reply, err := d.model.Generate(tctx, req)
	if err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = fmt.Errorf("no reply within %s: %w", d.modelTimeout, err)
	}
	return reply, err
}

// executeAll runs calls one at a time in request order. Recoverable failures
// become part of the feedback; anything fatal stops the batch.
func (d *Driver) executeAll(ctx context.Context, s invocation.Session, turn int, calls []model.Call) (model.Message, error) {
	msg := model.Message{Role: model.RoleTool, Results: make([]model.CallResult, 0, len(calls))}
	lines := make([]string, 0, len(calls))
	for _, call := range calls {
		d.observer.Invocation(turn, call)
		res, err := d.translator.Invoke(ctx, s, call.Name, call.Arguments)
		if err != nil && errorsx.Fatal(err) {
			d.observer.InvocationResult(turn, call, "", err)
			return model.Message{}, err
		}
		cr := model.CallResult{CallID: call.ID, Name: call.Name}
		if err != nil {
			cr.Content = err.Error()
			cr.IsError = true
			d.logger.Warn("invocation failed", "tool", call.Name, "kind", errorsx.KindOf(err), "error", err)
		} else {
			cr.Content = res.Text()
		}
		d.observer.InvocationResult(turn, call, cr.Content, err)
		msg.Results = append(msg.Results, cr)
		lines = append(lines, call.Name+": "+cr.Content)
	}
	msg.Text = strings.Join(lines, "\n")
	return msg, nil
}

func (d *Driver) modelError(op string, err error, msgs []model.Message) error {
	return &errorsx.ModelError{Model: d.model.Name(), Op: op, Err: err, Transcript: Transcript(msgs)}
}

// Transcript renders messages as "role: text" lines for error reports.
func Transcript(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.Role == model.RoleModel && len(m.Calls) > 0 {
			names := make([]string, len(m.Calls))
			for i, c := range m.Calls {
				names[i] = c.Name
			}
			call := "calls " + strings.Join(names, ", ")
			if text != "" {
				text += " | " + call
			} else {
				text = call
			}
		}
		out = append(out, string(m.Role)+": "+text)
	}
	return out
}
