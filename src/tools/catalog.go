package tools

import (
	"fmt"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/errorsx"
)

// Catalog is the closed set of capabilities discovered for one session,
// keyed by name and kept in discovery order.
type Catalog struct {
	byName map[string]Tool
	order  []string
}

// NewCatalog validates tools and indexes them. Any malformed entry or a
// duplicate name fails the whole listing with a ProtocolError.
func NewCatalog(tools []Tool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Tool, len(tools))}
	for i, t := range tools {
		if err := t.Validate(); err != nil {
			return nil, &errorsx.ProtocolError{Op: "tools/list", Detail: fmt.Sprintf("entry %d", i), Err: err}
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, &errorsx.ProtocolError{Op: "tools/list", Detail: fmt.Sprintf("duplicate tool name %q", t.Name)}
		}
		c.byName[t.Name] = t
		c.order = append(c.order, t.Name)
	}
	return c, nil
}

// Get returns the named capability.
func (c *Catalog) Get(name string) (Tool, bool) {
	if c == nil {
		return Tool{}, false
	}
	t, ok := c.byName[name]
	return t, ok
}

// Resolve is Get that reports an UnknownCapabilityError for absent names.
func (c *Catalog) Resolve(name string) (Tool, error) {
	t, ok := c.Get(name)
	if !ok {
		return Tool{}, &errorsx.UnknownCapabilityError{Name: name}
	}
	return t, nil
}

// Tools returns a copy of the capabilities in discovery order.
func (c *Catalog) Tools() []Tool {
	if c == nil {
		return nil
	}
	out := make([]Tool, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Names returns capability names in discovery order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
