// Command mcpsurf lets a language model drive an MCP tool server.
//
//	mcpsurf [flags] chat
//	mcpsurf [flags] ask "what is on example.com?"
//	mcpsurf [flags] tools
//	mcpsurf [flags] call browserbase_navigate '{"url":"https://example.com"}'
//	mcpsurf [flags] status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/config"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
	transport "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/transports/mcp"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitConfig      = 3
	exitServer      = 4
	exitModel       = 5
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := (&app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// dialer replaces process spawning in tests.
	dialer transport.Dialer
}

// session is the state one command runs with.
type session struct {
	*app
	cfg     config.Config
	envFile string
	banner  bool
}

func (a *app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mcpsurf", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	configFile := fs.String("config", "", "path to a YAML or JSON config file")
	envFile := fs.String("env", config.DefaultEnvFile, "path to the .env file")
	logLevel := fs.String("log-level", "", "override log.level (debug, info, warn, error)")
	noBanner := fs.Bool("no-banner", false, "do not print the start-up banner")
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, ok := lookupCommand(rest[0])
	if !ok {
		fmt.Fprintf(a.errOut, "mcpsurf: unknown command %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		return a.fail(err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	s := &session{app: a, cfg: cfg, envFile: *envFile, banner: !*noBanner}
	if err := cmd.run(ctx, s, rest[1:]); err != nil {
		return a.fail(err)
	}
	return exitOK
}

func (a *app) usage(fs *flag.FlagSet) {
	fmt.Fprintln(a.errOut, "usage: mcpsurf [flags] <command> [args]")
	fmt.Fprintln(a.errOut, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(a.errOut, "  %-28s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(a.errOut, "\nflags:")
	fs.PrintDefaults()
}

func (a *app) fail(err error) int {
	fmt.Fprintf(a.errOut, "mcpsurf: %v\n", err)
	return exitCode(err)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var uerr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr):
		return exitUsage
	case errors.Is(err, errNotReady):
		return exitConfig
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	}
	switch errorsx.KindOf(err) {
	case errorsx.KindConfig:
		return exitConfig
	case errorsx.KindConnection, errorsx.KindProtocol:
		return exitServer
	case errorsx.KindModel:
		return exitModel
	}
	return exitFailure
}

func (s *session) logger() *slog.Logger {
	return logging.New(s.cfg.Log.Level, s.cfg.Log.Format, s.errOut)
}
