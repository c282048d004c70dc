package parser

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type setParser struct{}

func (*setParser) Names() []string { return []string{"set"} }

func (*setParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	s := &ast.Set{
		Src:       pc.pos(el),
		Name:      name,
		Type:      ast.ValueType(attrString(el, "type")),
		Value:     attrString(el, "value"),
		Default:   attrString(el, "default"),
		Operation: ast.SetOperation(attrString(el, "operation")),
		Enum:      attrList(el, "enum"),
		Pattern:   attrString(el, "pattern"),
		Scope:     attrString(el, "scope"),
	}
	if s.Value == "" {
		s.Value = strings.TrimSpace(el.Text())
	}
	if s.Required, err = attrBool(pc, el, "required"); err != nil {
		return nil, err
	}
	if s.Nullable, err = attrBool(pc, el, "nullable"); err != nil {
		return nil, err
	}
	if s.Persist, err = attrBool(pc, el, "persist"); err != nil {
		return nil, err
	}
	if s.Encrypt, err = attrBool(pc, el, "encrypt"); err != nil {
		return nil, err
	}
	if s.TTL, err = attrInt(pc, el, "ttl"); err != nil {
		return nil, err
	}
	if s.Min, err = attrFloatPtr(pc, el, "min"); err != nil {
		return nil, err
	}
	if s.Max, err = attrFloatPtr(pc, el, "max"); err != nil {
		return nil, err
	}
	if s.MinLength, err = attrIntPtr(pc, el, "min_length"); err != nil {
		return nil, err
	}
	if s.MaxLength, err = attrIntPtr(pc, el, "max_length"); err != nil {
		return nil, err
	}
	if s.Operation != "" && !ast.ValidSetOperations[s.Operation] {
		return nil, newAttrError(pc.pos(el), el.Tag, "operation", "unknown operation %q", s.Operation)
	}
	if s.Type != "" && !ast.ValidValueTypes[s.Type] {
		return nil, newAttrError(pc.pos(el), el.Tag, "type", "unknown type %q", s.Type)
	}
	return s, nil
}
