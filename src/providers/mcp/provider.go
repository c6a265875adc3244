package mcp

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Transport selects how the bridge reaches the tool server.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultCallTimeout      = 60 * time.Second
)

// ServerProvider describes how to launch or reach one MCP tool server.
type ServerProvider struct {
	Name      string            `json:"name" yaml:"name"`
	Transport Transport         `json:"transport,omitempty" yaml:"transport,omitempty"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// RequiredEnv must resolve to real values before the process is spawned.
	RequiredEnv []string `json:"requiredEnv,omitempty" yaml:"requiredEnv,omitempty"`
	// OptionalEnv is forwarded only when set.
	OptionalEnv []string `json:"optionalEnv,omitempty" yaml:"optionalEnv,omitempty"`

	HandshakeTimeout time.Duration `json:"handshakeTimeout,omitempty" yaml:"handshakeTimeout,omitempty"`
	CallTimeout      time.Duration `json:"callTimeout,omitempty" yaml:"callTimeout,omitempty"`
}

// NewStdioProvider constructs a provider that spawns command with args.
func NewStdioProvider(name, command string, args ...string) *ServerProvider {
	return &ServerProvider{
		Name:      name,
		Transport: TransportStdio,
		Command:   command,
		Args:      args,
		Env:       make(map[string]string),
	}
}

// NewHTTPProvider constructs a provider for a streamable HTTP endpoint.
func NewHTTPProvider(name, url string) *ServerProvider {
	return &ServerProvider{Name: name, Transport: TransportHTTP, URL: url}
}

// Browserbase returns the headless-browser server the demo was built around.
func Browserbase() *ServerProvider {
	return NewStdioProvider("browserbase", "npx", "@browserbasehq/mcp").
		WithRequiredEnv("BROWSERBASE_API_KEY", "BROWSERBASE_PROJECT_ID").
		WithOptionalEnv("BROWSERBASE_CONTEXT_ID")
}

// WithArgs sets command line arguments for the server process.
func (p *ServerProvider) WithArgs(args ...string) *ServerProvider {
	p.Args = args
	return p
}

// WithEnv sets an environment variable for the server process.
func (p *ServerProvider) WithEnv(key, value string) *ServerProvider {
	if p.Env == nil {
		p.Env = make(map[string]string)
	}
	p.Env[key] = value
	return p
}

func (p *ServerProvider) WithRequiredEnv(keys ...string) *ServerProvider {
	p.RequiredEnv = append(p.RequiredEnv, keys...)
	return p
}

func (p *ServerProvider) WithOptionalEnv(keys ...string) *ServerProvider {
	p.OptionalEnv = append(p.OptionalEnv, keys...)
	return p
}

// WithHeader adds an HTTP header sent to remote servers.
func (p *ServerProvider) WithHeader(key, value string) *ServerProvider {
	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}
	p.Headers[key] = value
	return p
}

// WithTimeouts overrides the handshake and per-call timeouts.
func (p *ServerProvider) WithTimeouts(handshake, call time.Duration) *ServerProvider {
	p.HandshakeTimeout = handshake
	p.CallTimeout = call
	return p
}

// TransportKind returns the configured transport, inferring it when unset.
func (p *ServerProvider) TransportKind() Transport {
	if p.Transport != "" {
		return Transport(strings.ToLower(string(p.Transport)))
	}
	if p.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

func (p *ServerProvider) EffectiveHandshakeTimeout() time.Duration {
	if p.HandshakeTimeout > 0 {
		return p.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func (p *ServerProvider) EffectiveCallTimeout() time.Duration {
	if p.CallTimeout > 0 {
		return p.CallTimeout
	}
	return DefaultCallTimeout
}

// Validate ensures the provider configuration is usable.
func (p *ServerProvider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("MCP server name cannot be empty")
	}
	if p.HandshakeTimeout < 0 || p.CallTimeout < 0 {
		return fmt.Errorf("MCP server %q: timeouts cannot be negative", p.Name)
	}
	switch p.TransportKind() {
	case TransportStdio:
		if strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("MCP server %q: command cannot be empty", p.Name)
		}
	case TransportHTTP, TransportSSE:
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("MCP server %q: url cannot be empty", p.Name)
		}
	default:
		return fmt.Errorf("MCP server %q: unsupported transport %q", p.Name, p.Transport)
	}
	return nil
}

// MissingEnvError lists required variables that are unset or still hold a
// template placeholder.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return "missing or placeholder environment: " + strings.Join(e.Keys, ", ")
}

// ResolveEnv returns the KEY=VALUE pairs handed to the server process. Values
// in p.Env win over lookup; lookup defaults to os.LookupEnv.
func (p *ServerProvider) ResolveEnv(lookup func(string) (string, bool)) ([]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	resolved := make(map[string]string, len(p.Env))
	for k, v := range p.Env {
		resolved[k] = v
	}
	get := func(key string) (string, bool) {
		if v, ok := resolved[key]; ok {
			return v, true
		}
		return lookup(key)
	}

	var missing []string
	for _, key := range p.RequiredEnv {
		v, ok := get(key)
		if !ok || IsPlaceholder(v) {
			missing = append(missing, key)
			continue
		}
		resolved[key] = v
	}
	if len(missing) > 0 {
		return nil, &MissingEnvError{Keys: missing}
	}
	for _, key := range p.OptionalEnv {
		if v, ok := get(key); ok && !IsPlaceholder(v) {
			resolved[key] = v
		}
	}

	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+resolved[k])
	}
	return env, nil
}

// IsPlaceholder reports values copied unchanged from .env.example, such as
// "your_gemini_api_key_here", or blank values.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here")
}
