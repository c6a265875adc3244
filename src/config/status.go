package config

import (
	"os"
	"strings"

	providers "github.com/universal-tool-calling-protocol/go-mcp-bridge/src/providers/mcp"
)

// State is the health of one configuration item.
type State string

const (
	StateConfigured State = "configured"
	StateMissing    State = "missing"
	StateSuspicious State = "suspicious"
	StateOptional   State = "not set"
)

// minKeyLength flags API keys that are too short to be real.
const minKeyLength = 10

// StatusRow is one line of the configuration report.
type StatusRow struct {
	Component string
	State     State
	Notes     string
}

// Status reports the credentials and settings a session needs. lookup
// defaults to os.LookupEnv. Secret values never appear in the rows.
func (c Config) Status(envFile string, lookup func(string) (string, bool)) []StatusRow {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	var rows []StatusRow

	if _, err := os.Stat(envFile); err == nil {
		rows = append(rows, StatusRow{Component: envFile + " file", State: StateConfigured})
	} else {
		rows = append(rows, StatusRow{Component: envFile + " file", State: StateMissing, Notes: "Required for API keys unless they are exported"})
	}

	if c.NeedsAPIKey() {
		rows = append(rows, secretRow(c.Model.Provider+" API key", c.Model.APIKey, "Set "+APIKeyEnv(c.Model.Provider)))
	} else {
		rows = append(rows, StatusRow{Component: c.Model.Provider + " model", State: StateConfigured, Notes: c.Model.Name})
	}

	p, err := c.ServerProvider()
	if err != nil {
		return append(rows, StatusRow{Component: "tool server", State: StateMissing, Notes: err.Error()})
	}
	target := p.Command
	if len(p.Args) > 0 {
		target += " " + strings.Join(p.Args, " ")
	}
	if p.TransportKind() != providers.TransportStdio {
		target = p.URL
	}
	rows = append(rows, StatusRow{Component: "tool server " + p.Name, State: StateConfigured, Notes: string(p.TransportKind()) + ": " + target})

	get := func(key string) string {
		if v, ok := p.Env[key]; ok {
			return v
		}
		v, _ := lookup(key)
		return v
	}
	for _, key := range p.RequiredEnv {
		rows = append(rows, secretRow(key, get(key), "Required by "+p.Name))
	}
	for _, key := range p.OptionalEnv {
		v := get(key)
		if providers.IsPlaceholder(v) {
			rows = append(rows, StatusRow{Component: key, State: StateOptional, Notes: "Optional"})
			continue
		}
		rows = append(rows, StatusRow{Component: key, State: StateConfigured})
	}
	return rows
}

func secretRow(name, value, hint string) StatusRow {
	switch {
	case providers.IsPlaceholder(value):
		return StatusRow{Component: name, State: StateMissing, Notes: hint}
	case strings.HasSuffix(strings.ToUpper(name), "KEY") && len(value) < minKeyLength:
		return StatusRow{Component: name, State: StateSuspicious, Notes: "Value seems too short"}
	}
	return StatusRow{Component: name, State: StateConfigured}
}

// Ready reports whether no row is missing or suspicious.
func Ready(rows []StatusRow) bool {
	for _, r := range rows {
		if r.State == StateMissing || r.State == StateSuspicious {
			return false
		}
	}
	return true
}
