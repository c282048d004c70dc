// Package parser turns Lattice XML documents into the typed AST. Each tag
// is owned by exactly one TagParser registered in a Registry; adding a new
// tag means registering a new parser, never editing dispatch code.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

// TagParser converts one XML element family into AST nodes.
type TagParser interface {
	// Names lists the tag names this parser claims.
	Names() []string
	// Parse builds the node for el. Returning (nil, nil) means the element
	// produces no node and is skipped.
	Parse(pc *ParseContext, el *etree.Element) (ast.Node, error)
}

// Registry maps tag names to their parsers, 1:1.
type Registry struct {
	parsers map[string]TagParser
}

// New returns a registry with the built-in tag set registered.
func New() *Registry {
	r := &Registry{parsers: make(map[string]TagParser)}
	builtins := []TagParser{
		&applicationParser{},
		&datasourceParser{},
		&routeParser{},
		&componentParser{},
		&functionParser{},
		&paramParser{},
		&ifParser{},
		&loopParser{},
		&returnParser{},
		&setParser{},
		&queryParser{},
		&invokeParser{},
		&dataParser{},
		&llmGenerateParser{},
		&searchParser{},
		&threadParser{},
		&scheduleParser{},
		&jobParser{},
		&onEventParser{},
		&transactionParser{},
	}
	for _, p := range builtins {
		if err := r.Register(p); err != nil {
			// Built-ins are registered once with distinct names.
			panic(err)
		}
	}
	return r
}

// Register claims the parser's tag names. A name already claimed by
// another parser is an error.
func (r *Registry) Register(p TagParser) error {
	for _, name := range p.Names() {
		if _, dup := r.parsers[name]; dup {
			return fmt.Errorf("parser: tag %q already registered", name)
		}
		r.parsers[name] = p
	}
	return nil
}

// Lookup returns the parser claiming name, or nil.
func (r *Registry) Lookup(name string) TagParser {
	return r.parsers[name]
}

// Parse dispatches el to its registered parser, falling back to the
// markup classification heuristic for unclaimed tags.
func (r *Registry) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	if p := r.Lookup(el.Tag); p != nil {
		return p.Parse(pc, el)
	}
	return classify(pc, el)
}

// ParseContext carries per-document parse state: the source file name,
// the registry, and the datasource table populated left-to-right while
// parsing the application. The datasource table drives magic conversion
// of queries against llm and knowledge datasources.
type ParseContext struct {
	File     string
	registry *Registry

	datasources map[string]*ast.Datasource
}

func newParseContext(file string, r *Registry) *ParseContext {
	return &ParseContext{
		File:        file,
		registry:    r,
		datasources: make(map[string]*ast.Datasource),
	}
}

// Datasource returns the datasource declared under name so far, or nil.
func (pc *ParseContext) Datasource(name string) *ast.Datasource {
	return pc.datasources[name]
}

func (pc *ParseContext) declareDatasource(ds *ast.Datasource) {
	pc.datasources[ds.Name] = ds
}

func (pc *ParseContext) pos(el *etree.Element) ast.Position {
	return ast.Position{File: pc.File, Path: el.GetPath()}
}

// parseStatements parses el's children into an executable body. Non-blank
// character data becomes Text nodes; elements go through the registry;
// skipped elements yield nothing.
func (pc *ParseContext) parseStatements(el *etree.Element) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if text := strings.TrimSpace(t.Data); text != "" {
				out = append(out, &ast.Text{Src: pc.pos(el), Value: text})
			}
		case *etree.Element:
			node, err := pc.registry.Parse(pc, t)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			stmt, ok := node.(ast.Statement)
			if !ok {
				return nil, newError(pc.pos(t), t.Tag, "declaration not allowed in executable body")
			}
			out = append(out, stmt)
		}
	}
	return out, nil
}

// Attribute helpers. Missing optional attributes yield zero values;
// malformed values are attribute errors.

func attrString(el *etree.Element, name string) string {
	return el.SelectAttrValue(name, "")
}

func requireAttr(pc *ParseContext, el *etree.Element, name string) (string, error) {
	v := attrString(el, name)
	if v == "" {
		return "", newAttrError(pc.pos(el), el.Tag, name, "required attribute missing")
	}
	return v, nil
}

func attrBool(pc *ParseContext, el *etree.Element, name string) (bool, error) {
	v := attrString(el, name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, newAttrError(pc.pos(el), el.Tag, name, "invalid boolean %q", v)
	}
	return b, nil
}

func attrInt(pc *ParseContext, el *etree.Element, name string) (int, error) {
	v := attrString(el, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, newAttrError(pc.pos(el), el.Tag, name, "invalid integer %q", v)
	}
	return n, nil
}

func attrFloat(pc *ParseContext, el *etree.Element, name string) (float64, error) {
	v := attrString(el, name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, newAttrError(pc.pos(el), el.Tag, name, "invalid number %q", v)
	}
	return f, nil
}

func attrFloatPtr(pc *ParseContext, el *etree.Element, name string) (*float64, error) {
	v := attrString(el, name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, newAttrError(pc.pos(el), el.Tag, name, "invalid number %q", v)
	}
	return &f, nil
}

func attrIntPtr(pc *ParseContext, el *etree.Element, name string) (*int, error) {
	v := attrString(el, name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, newAttrError(pc.pos(el), el.Tag, name, "invalid integer %q", v)
	}
	return &n, nil
}

func attrList(el *etree.Element, name string) []string {
	v := attrString(el, name)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
