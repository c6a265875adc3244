package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dimiro1/banner"

	bridge "github.com/universal-tool-calling-protocol/go-mcp-bridge"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/config"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/conversation"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/json"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/model"
	transport "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp"
)

var errNotReady = errors.New("configuration is incomplete")

type usageError string

func (e usageError) Error() string { return "usage: mcpsurf " + string(e) }

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, s *session, args []string) error
}

var commands = []command{
	{name: "chat", usage: "chat", summary: "interactive session (quit, exit or bye to leave)", run: runChat},
	{name: "ask", usage: "ask <message>", summary: "answer one request and exit", run: runAsk},
	{name: "tools", usage: "tools", summary: "connect to the tool server and list its tools", run: runTools},
	{name: "call", usage: "call <name> [json-args]", summary: "invoke one tool directly, without a model", run: runCall},
	{name: "status", usage: "status", summary: "show which credentials and settings are present", run: runStatus},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// withModel builds a bridge that can hold conversations.
func (s *session) withModel(ctx context.Context, trace io.Writer) (*bridge.Bridge, error) {
	opts := []bridge.Option{bridge.WithLogger(s.logger()), bridge.WithObserver(tracer(trace))}
	if s.dialer != nil {
		opts = append(opts, bridge.WithDialer(s.dialer))
	}
	return bridge.NewFromConfig(ctx, s.cfg, opts...)
}

// toolsOnly builds a bridge without a model, so no API key is needed.
func (s *session) toolsOnly() (*bridge.Bridge, error) {
	p, err := s.cfg.ServerProvider()
	if err != nil {
		return nil, err
	}
	logger := s.logger()
	mopts := []transport.Option{transport.WithLogger(logger), transport.WithClientInfo("mcpsurf", bridge.Version)}
	if s.dialer != nil {
		mopts = append(mopts, transport.WithDialer(s.dialer))
	}
	mgr, err := transport.NewManager(p, mopts...)
	if err != nil {
		return nil, err
	}
	return bridge.New(mgr, nil, bridge.WithLogger(logger))
}

func runAsk(ctx context.Context, s *session, args []string) error {
	msg := strings.TrimSpace(strings.Join(args, " "))
	if msg == "" {
		return usageError("ask <message>")
	}
	b, err := s.withModel(ctx, s.errOut)
	if err != nil {
		return err
	}
	defer b.Close()

	answer, err := b.Answer(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, answer)
	return nil
}

func runChat(ctx context.Context, s *session, args []string) error {
	if len(args) > 0 {
		return usageError("chat")
	}
	if s.banner {
		printBanner(s.out)
	}
	b, err := s.withModel(ctx, s.out)
	if err != nil {
		return err
	}
	defer b.Close()

	probe, err := b.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Connected to %s (%d tools). Type quit, exit or bye to leave.\n", probe.Server, len(probe.Tools))

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "bye":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		answer, err := b.Answer(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(s.out, "Error (%s): %v\n", errorsx.KindOf(err), err)
			continue
		}
		fmt.Fprintf(s.out, "Assistant: %s\n", answer)
	}
}

func runTools(ctx context.Context, s *session, args []string) error {
	if len(args) > 0 {
		return usageError("tools")
	}
	b, err := s.toolsOnly()
	if err != nil {
		return err
	}
	defer b.Close()

	probe, err := b.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: %s %s, %d tools in %s\n",
		probe.Server, probe.ServerName, probe.ServerVersion, len(probe.Tools), probe.Elapsed.Round(time.Millisecond))
	for _, t := range probe.Tools {
		fmt.Fprintf(s.out, "\n%s\n  %s\n", t.Name, t.Description)
		for _, p := range t.Params() {
			need := "optional"
			if p.Required {
				need = "required"
			}
			fmt.Fprintf(s.out, "  - %s (%s, %s)", p.Name, p.Type, need)
			if p.Description != "" {
				fmt.Fprintf(s.out, ": %s", p.Description)
			}
			fmt.Fprintln(s.out)
		}
	}
	return nil
}

func runCall(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return usageError("call <name> [json-args]")
	}
	callArgs, err := json.DecodeObject(strings.Join(args[1:], " "))
	if err != nil {
		return usageError(fmt.Sprintf("call <name> [json-args]: arguments must be a JSON object: %v", err))
	}
	b, err := s.toolsOnly()
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Invoke(ctx, args[0], callArgs)
	if err != nil {
		// tool-reported errors still carry the server's text
		if !res.Empty() {
			fmt.Fprintln(s.out, res.Text())
		}
		return err
	}
	fmt.Fprintln(s.out, res.Text())
	return nil
}

func runStatus(_ context.Context, s *session, args []string) error {
	if len(args) > 0 {
		return usageError("status")
	}
	rows := s.cfg.Status(s.envFile, nil)
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSTATUS\tNOTES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Component, r.State, r.Notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !config.Ready(rows) {
		return errNotReady
	}
	return nil
}

// tracer prints tool traffic as the conversation runs.
func tracer(w io.Writer) conversation.Observer {
	return conversation.ObserverFuncs{
		OnInvocation: func(turn int, call model.Call) {
			args, _ := json.Marshal(call.Arguments)
			fmt.Fprintf(w, "[turn %d] %s %s\n", turn, call.Name, args)
		},
		OnInvocationResult: func(turn int, call model.Call, text string, err error) {
			if err != nil {
				fmt.Fprintf(w, "[turn %d] %s failed: %v\n", turn, call.Name, err)
				return
			}
			fmt.Fprintf(w, "[turn %d] %s -> %s\n", turn, call.Name, preview(text, 200))
		},
	}
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printBanner(w io.Writer) {
	tpl := "{{ .Title \"MCPSURF\" \"\" 0 }}\nVersion: " + bridge.Version + "\n"
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}
