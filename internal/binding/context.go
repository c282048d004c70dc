// Package binding implements the execution context, databinding
// resolution, and the condition expression language.
package binding

import (
	"fmt"
	"strconv"
	"strings"
)

// GlobalStore persists global-scope variables beyond one execution. The
// memory and redis stores implement it.
type GlobalStore interface {
	Get(name string) (any, bool)
	Set(name string, value any) error
}

// Context is one scope in the execution scope chain. Lookups walk child
// to parent and finally the global store; writes land in the receiver
// scope unless a global scope hint is given.
type Context struct {
	parent *Context
	vars   map[string]any
	global GlobalStore
}

// NewContext returns a root scope backed by an optional global store.
func NewContext(global GlobalStore) *Context {
	return &Context{vars: make(map[string]any), global: global}
}

// Child returns a fresh scope whose lookups fall through to c.
func (c *Context) Child() *Context {
	return &Context{parent: c, vars: make(map[string]any)}
}

// Set binds name in this scope, shadowing any outer binding.
func (c *Context) Set(name string, value any) {
	c.vars[name] = value
}

// SetScoped applies a scope hint. "global" writes through the root's
// store; "" and "local" bind in this scope.
func (c *Context) SetScoped(name string, value any, scope string) error {
	switch scope {
	case "", "local":
		c.Set(name, value)
		return nil
	case "global":
		root := c.root()
		root.vars[name] = value
		if root.global != nil {
			return root.global.Set(name, value)
		}
		return nil
	default:
		return fmt.Errorf("binding: unknown scope %q", scope)
	}
}

func (c *Context) root() *Context {
	r := c
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Has reports whether name (the first path segment only) is bound
// anywhere in the chain or the global store.
func (c *Context) Has(name string) bool {
	head := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		head = name[:i]
	}
	for s := c; s != nil; s = s.parent {
		if _, ok := s.vars[head]; ok {
			return true
		}
		if s.parent == nil && s.global != nil {
			if _, ok := s.global.Get(head); ok {
				return true
			}
		}
	}
	return false
}

// Get resolves a dotted path: the first segment through the scope chain,
// the rest by descending into maps and slices (numeric segments index
// zero-based into slices).
func (c *Context) Get(path string) (any, bool) {
	segments := strings.Split(path, ".")
	head := segments[0]

	var value any
	found := false
	for s := c; s != nil; s = s.parent {
		if v, ok := s.vars[head]; ok {
			value, found = v, true
			break
		}
		if s.parent == nil && s.global != nil {
			if v, ok := s.global.Get(head); ok {
				value, found = v, true
			}
		}
	}
	if !found {
		return nil, false
	}
	for _, seg := range segments[1:] {
		value, found = descend(value, seg)
		if !found {
			return nil, false
		}
	}
	return value, true
}

func descend(value any, segment string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out, ok := v[segment]
		return out, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}
