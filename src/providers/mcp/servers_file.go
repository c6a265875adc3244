package mcp

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ServersFile mirrors the common "mcpServers" configuration document. JSON
// documents parse as YAML, so both formats are accepted.
type ServersFile struct {
	McpServers map[string]ServerProvider `yaml:"mcpServers"`
}

// LoadServersFile reads path and returns its servers sorted by name.
func LoadServersFile(path string) ([]*ServerProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read servers file %q: %w", path, err)
	}
	return ParseServers(data)
}

// ParseServers decodes an mcpServers document. Each entry takes its map key
// as name and is validated.
func ParseServers(data []byte) ([]*ServerProvider, error) {
	var doc ServersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid servers document: %w", err)
	}
	names := make([]string, 0, len(doc.McpServers))
	for name := range doc.McpServers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*ServerProvider, 0, len(names))
	for _, name := range names {
		p := doc.McpServers[name]
		p.Name = name
		if p.Env == nil {
			p.Env = make(map[string]string)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

// Lookup returns the named server from providers.
func Lookup(providers []*ServerProvider, name string) (*ServerProvider, bool) {
	for _, p := range providers {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
