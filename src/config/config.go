// Package config resolves the bridge settings from defaults, an optional
// config file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
)

// EnvPrefix namespaces environment overrides, e.g. MCPSURF_MODEL_NAME.
const EnvPrefix = "MCPSURF"

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Model        ModelConfig        `mapstructure:"model"`
	Server       ServerConfig       `mapstructure:"server"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Log          LogConfig          `mapstructure:"log"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	Name     string `mapstructure:"name"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	// Prompted drives the model through plain completions instead of native
	// function calling. Ollama is always prompted.
	Prompted bool `mapstructure:"prompted"`
	Retries  int  `mapstructure:"retries"`
	// RetryJitter adds up to this fraction of each backoff delay.
	RetryJitter float64 `mapstructure:"retry_jitter"`
	// Timeout bounds one model turn, retries included.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Name             string            `mapstructure:"name"`
	Transport        string            `mapstructure:"transport"`
	Command          string            `mapstructure:"command"`
	Args             []string          `mapstructure:"args"`
	URL              string            `mapstructure:"url"`
	Env              map[string]string `mapstructure:"env"`
	RequiredEnv      []string          `mapstructure:"required_env"`
	OptionalEnv      []string          `mapstructure:"optional_env"`
	HandshakeTimeout time.Duration     `mapstructure:"handshake_timeout"`
	CallTimeout      time.Duration     `mapstructure:"call_timeout"`
	ServersFile      string            `mapstructure:"servers_file"`
}

type ConversationConfig struct {
	MaxTurns     int    `mapstructure:"max_turns"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadOptions locates optional inputs. Empty paths are skipped.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// DefaultEnvFile is loaded when LoadOptions.EnvFile is empty.
const DefaultEnvFile = ".env"

func setDefaults(v *viper.Viper) {
	bb := providers.Browserbase()
	v.SetDefault("model.provider", ProviderGemini)
	v.SetDefault("model.name", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.prompted", false)
	v.SetDefault("model.retries", 0)
	v.SetDefault("model.retry_jitter", 0.2)
	v.SetDefault("model.timeout", 2*time.Minute)
	v.SetDefault("server.name", bb.Name)
	v.SetDefault("server.transport", "")
	v.SetDefault("server.command", bb.Command)
	v.SetDefault("server.args", bb.Args)
	v.SetDefault("server.url", "")
	v.SetDefault("server.env", map[string]string{})
	v.SetDefault("server.required_env", bb.RequiredEnv)
	v.SetDefault("server.optional_env", bb.OptionalEnv)
	v.SetDefault("server.handshake_timeout", providers.DefaultHandshakeTimeout)
	v.SetDefault("server.call_timeout", providers.DefaultCallTimeout)
	v.SetDefault("server.servers_file", "")
	v.SetDefault("conversation.max_turns", 10)
	v.SetDefault("conversation.system_prompt", DefaultSystemPrompt)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// DefaultSystemPrompt frames the model as a browsing assistant.
const DefaultSystemPrompt = "You are a helpful assistant with access to web browsing tools. " +
	"Use the available tools when the request needs live information from the web, " +
	"and answer directly when it does not."

// Load resolves configuration. The .env file never overrides variables that
// are already set, and a missing .env file is not an error.
func Load(opts LoadOptions) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize(os.LookupEnv)
	return cfg, nil
}

func (c *Config) normalize(lookup func(string) (string, bool)) {
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName(c.Model.Provider)
	}
	if c.Model.APIKey == "" {
		if key := APIKeyEnv(c.Model.Provider); key != "" {
			if v, ok := lookup(key); ok {
				c.Model.APIKey = strings.TrimSpace(v)
			}
		}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// DefaultModelName returns the model used when model.name is unset.
func DefaultModelName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOllama:
		return "llama3"
	}
	return "gemini-1.5-flash"
}

// APIKeyEnv is the conventional variable holding the provider's API key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	}
	return ""
}

// NeedsAPIKey reports whether the provider authenticates with an API key.
func (c Config) NeedsAPIKey() bool {
	return c.Model.Provider != ProviderOllama
}

// Validate checks every precondition that must hold before a session is
// opened. The first problem is returned as *errorsx.ConfigError.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return &errorsx.ConfigError{Key: "model.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Model.Provider)}
	}
	if c.NeedsAPIKey() && providers.IsPlaceholder(c.Model.APIKey) {
		return &errorsx.ConfigError{Key: APIKeyEnv(c.Model.Provider)}
	}
	if c.Model.Retries < 0 {
		return &errorsx.ConfigError{Key: "model.retries", Reason: "must not be negative"}
	}
	if c.Model.RetryJitter < 0 || c.Model.RetryJitter > 1 {
		return &errorsx.ConfigError{Key: "model.retry_jitter", Reason: "must be between 0 and 1"}
	}
	if c.Model.Timeout < 0 {
		return &errorsx.ConfigError{Key: "model.timeout", Reason: "must not be negative"}
	}
	if c.Conversation.MaxTurns < 1 {
		return &errorsx.ConfigError{Key: "conversation.max_turns", Reason: "must be at least 1"}
	}
	p, err := c.ServerProvider()
	if err != nil {
		return err
	}
	if _, err := p.ResolveEnv(os.LookupEnv); err != nil {
		var missing *providers.MissingEnvError
		if errors.As(err, &missing) {
			return &errorsx.ConfigError{Key: missing.Keys[0], Reason: err.Error()}
		}
		return &errorsx.ConfigError{Key: "server.env", Reason: err.Error()}
	}
	return nil
}

// ServerProvider builds the tool-server launch description. When a servers
// file is configured the entry named server.name is taken from it and the
// timeouts from this config fill in whatever the entry leaves unset.
func (c Config) ServerProvider() (*providers.ServerProvider, error) {
	s := c.Server
	if s.ServersFile != "" {
		list, err := providers.LoadServersFile(s.ServersFile)
		if err != nil {
			return nil, &errorsx.ConfigError{Key: "server.servers_file", Reason: err.Error()}
		}
		p, ok := providers.Lookup(list, s.Name)
		if !ok {
			return nil, &errorsx.ConfigError{Key: "server.name", Reason: fmt.Sprintf("server %q not found in %s", s.Name, s.ServersFile)}
		}
		if p.HandshakeTimeout == 0 {
			p.HandshakeTimeout = s.HandshakeTimeout
		}
		if p.CallTimeout == 0 {
			p.CallTimeout = s.CallTimeout
		}
		return p, nil
	}

	p := &providers.ServerProvider{
		Name:             s.Name,
		Transport:        providers.Transport(strings.ToLower(s.Transport)),
		Command:          s.Command,
		Args:             append([]string(nil), s.Args...),
		URL:              s.URL,
		Env:              make(map[string]string, len(s.Env)),
		RequiredEnv:      append([]string(nil), s.RequiredEnv...),
		OptionalEnv:      append([]string(nil), s.OptionalEnv...),
		HandshakeTimeout: s.HandshakeTimeout,
		CallTimeout:      s.CallTimeout,
	}
	// viper lowercases map keys; environment names are conventionally upper
	for k, v := range s.Env {
		p.Env[strings.ToUpper(k)] = v
	}
	if err := p.Validate(); err != nil {
		return nil, &errorsx.ConfigError{Key: "server", Reason: err.Error()}
	}
	return p, nil
}
