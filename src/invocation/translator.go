// Package invocation executes model-issued tool calls against a live session
// and turns the replies into text the model can read.
package invocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpapi "github.com/mark3labs/mcp-go/mcp"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/tools"
)

// Session is the part of a tool-server session the translator needs.
// The session type in src/transports/mcp implements it.
type Session interface {
	Discover(ctx context.Context) (*tools.Catalog, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcpapi.CallToolResult, error)
}

// Translator validates and executes invocations.
type Translator struct {
	logger        *slog.Logger
	checkRequired bool
}

type Option func(*Translator)

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// WithRequiredCheck toggles the local check for mandatory arguments. It is
// on by default.
func WithRequiredCheck(on bool) Option {
	return func(t *Translator) { t.checkRequired = on }
}

func New(opts ...Option) *Translator {
	t := &Translator{checkRequired: true}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.Component(t.logger, "invocation")
	return t
}

// Invoke runs name with args over s.
//
// Names outside the session catalog fail with *errorsx.UnknownCapabilityError
// before anything is sent. Server-side failures, timeouts and replies flagged
// as errors come back as *errorsx.ToolExecutionError. A closed session or a
// cancelled ctx is reported as *errorsx.ConnectionError since the operation
// cannot continue.
func (t *Translator) Invoke(ctx context.Context, s Session, name string, args map[string]any) (Result, error) {
	catalog, err := s.Discover(ctx)
	if err != nil {
		return Result{}, err
	}
	tool, err := catalog.Resolve(name)
	if err != nil {
		t.logger.Warn("rejected unknown capability", "tool", name)
		return Result{}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	if t.checkRequired {
		if missing := tool.MissingArguments(args); len(missing) > 0 {
			return Result{}, &errorsx.ToolExecutionError{
				Name: name,
				Err:  fmt.Errorf("%w: %s", errorsx.ErrMissingArgument, strings.Join(missing, ", ")),
			}
		}
	}

	t.logger.Info("calling tool", "tool", name)
	t.logger.Debug("tool arguments", "tool", name, "args", args)
	res, err := s.CallTool(ctx, name, args)
	if err != nil {
		if errors.Is(err, errorsx.ErrSessionClosed) || ctx.Err() != nil {
			return Result{}, &errorsx.ConnectionError{Op: "tools/call " + name, Err: firstErr(ctx.Err(), err)}
		}
		t.logger.Warn("tool call failed", "tool", name, "error", err)
		return Result{}, &errorsx.ToolExecutionError{Name: name, Err: err}
	}

	result := Normalize(name, res.Content)
	if res.IsError {
		msg := "tool reported an error"
		if !result.Empty() {
			msg = result.Text()
		}
		t.logger.Warn("tool returned an error", "tool", name, "error", msg)
		return result, &errorsx.ToolExecutionError{Name: name, Err: errors.New(msg)}
	}
	return result, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
