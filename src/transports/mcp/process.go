package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
)

// KillGrace is how long a spawned server may take to exit after its stdin
// is closed before it is killed.
var KillGrace = time.Second

// stderrTailSize bounds the server stderr kept for error messages.
const stderrTailSize = 2048

// processConn is a client over the stdio pipes of a server process this
// package started. Close always ends the process.
type processConn struct {
	*mcpclient.Client
	cmd    *exec.Cmd
	stderr *tailBuffer
	exited chan struct{}

	once     sync.Once
	closeErr error
}

// spawnStdio starts p's command with env added to the current environment
// and speaks MCP over its stdin and stdout.
func spawnStdio(ctx context.Context, p *providers.ServerProvider, env []string) (Conn, error) {
	cmd := exec.Command(p.Command, p.Args...)
	cmd.Env = append(os.Environ(), env...)
	tail := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = tail
	cmd.WaitDelay = KillGrace
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.Command, err)
	}

	pc := &processConn{cmd: cmd, stderr: tail, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(pc.exited)
	}()

	cli := mcpclient.NewClient(transport.NewIO(stdout, stdin, io.NopCloser(strings.NewReader(""))))
	if err := cli.Start(ctx); err != nil {
		pc.Client = cli
		pc.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	pc.Client = cli
	return pc, nil
}

// Close closes stdin, waits up to KillGrace for the process to exit and
// kills it otherwise. It returns after the process has been reaped.
func (pc *processConn) Close() error {
	pc.once.Do(func() {
		if pc.Client != nil {
			pc.closeErr = pc.Client.Close()
		}
		select {
		case <-pc.exited:
		case <-time.After(KillGrace):
			_ = killProcess(pc.cmd)
			<-pc.exited
		}
	})
	return pc.closeErr
}

// Pid returns the server process ID.
func (pc *processConn) Pid() int { return pc.cmd.Process.Pid }

// StderrTail returns the last bytes the server wrote to stderr.
func (pc *processConn) StderrTail() string { return strings.TrimSpace(pc.stderr.String()) }

type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
