package ast

import "fmt"

// HTML is a passthrough markup element. Attributes and children are kept
// as-is; databinding expressions inside text and attribute values resolve
// at render time.
type HTML struct {
	Src      Position
	Tag      string
	Attrs    map[string]string
	Children []Statement
}

func (h *HTML) Kind() NodeKind { return KindHTML }
func (h *HTML) Pos() Position  { return h.Src }
func (h *HTML) stmtNode()      {}
func (h *HTML) String() string {
	return fmt.Sprintf("HTML{Tag: %q, Children: %d}", h.Tag, len(h.Children))
}

func (h *HTML) Validate() []string {
	var errs []string
	if h.Tag == "" {
		errs = append(errs, "html: empty tag name")
	}
	return validateStatements(errs, h.Children)
}

// ComponentCall instantiates a named component with attribute arguments.
type ComponentCall struct {
	Src       Position
	Component string
	Args      map[string]string
	Children  []Statement
}

func (c *ComponentCall) Kind() NodeKind { return KindComponentCall }
func (c *ComponentCall) Pos() Position  { return c.Src }
func (c *ComponentCall) stmtNode()      {}
func (c *ComponentCall) String() string {
	return fmt.Sprintf("ComponentCall{Component: %q, Args: %d}", c.Component, len(c.Args))
}

func (c *ComponentCall) Validate() []string {
	var errs []string
	if c.Component == "" {
		errs = append(errs, "component call: empty component name")
	}
	return validateStatements(errs, c.Children)
}

// Text is raw character data, possibly containing databinding expressions.
type Text struct {
	Src   Position
	Value string
}

func (t *Text) Kind() NodeKind { return KindText }
func (t *Text) Pos() Position  { return t.Src }
func (t *Text) stmtNode()      {}
func (t *Text) String() string { return fmt.Sprintf("Text{%q}", t.Value) }

func (t *Text) Validate() []string { return nil }
