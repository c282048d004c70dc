package parser

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type componentParser struct{}

func (*componentParser) Names() []string { return []string{"component"} }

func (*componentParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	c := &ast.Component{
		Src:      pc.pos(el),
		Name:     name,
		CompKind: ast.ComponentKind(attrString(el, "type")),
		Returns:  attrString(el, "returns"),
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if text := strings.TrimSpace(t.Data); text != "" {
				c.Statements = append(c.Statements, &ast.Text{Src: pc.pos(el), Value: text})
			}
		case *etree.Element:
			switch t.Tag {
			case "param":
				p, err := parseParam(pc, t)
				if err != nil {
					return nil, err
				}
				c.Params = append(c.Params, p)
			case "function":
				node, err := (&functionParser{}).Parse(pc, t)
				if err != nil {
					return nil, err
				}
				c.Functions = append(c.Functions, node.(*ast.Function))
			case "on":
				node, err := (&onEventParser{}).Parse(pc, t)
				if err != nil {
					return nil, err
				}
				c.Handlers = append(c.Handlers, node.(*ast.OnEvent))
			case "resource":
				key, err := requireAttr(pc, t, "name")
				if err != nil {
					return nil, err
				}
				if c.Resources == nil {
					c.Resources = make(map[string]string)
				}
				c.Resources[key] = attrString(t, "value")
			default:
				node, err := pc.registry.Parse(pc, t)
				if err != nil {
					return nil, err
				}
				if node == nil {
					continue
				}
				stmt, ok := node.(ast.Statement)
				if !ok {
					return nil, newError(pc.pos(t), t.Tag, "not allowed inside <component>")
				}
				c.Statements = append(c.Statements, stmt)
			}
		}
	}
	return c, nil
}

type functionParser struct{}

func (*functionParser) Names() []string { return []string{"function"} }

func (*functionParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	f := &ast.Function{
		Src:        pc.pos(el),
		Name:       name,
		ReturnType: ast.ValueType(attrString(el, "returns")),
		Scope:      attrString(el, "scope"),
		Access:     attrString(el, "access"),
	}
	if f.Cache, err = attrBool(pc, el, "cache"); err != nil {
		return nil, err
	}
	if f.CacheTTL, err = attrInt(pc, el, "cache_ttl"); err != nil {
		return nil, err
	}
	if f.Memoize, err = attrBool(pc, el, "memoize"); err != nil {
		return nil, err
	}
	if f.Pure, err = attrBool(pc, el, "pure"); err != nil {
		return nil, err
	}
	if f.ValidateParams, err = attrBool(pc, el, "validate"); err != nil {
		return nil, err
	}
	if f.Retry, err = attrInt(pc, el, "retry"); err != nil {
		return nil, err
	}
	if f.RetryDelay, err = attrFloat(pc, el, "retry_delay"); err != nil {
		return nil, err
	}
	if f.Timeout, err = attrInt(pc, el, "timeout"); err != nil {
		return nil, err
	}

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "param":
			p, err := parseParam(pc, child)
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, p)
		case "rest":
			rest, err := parseRest(pc, child)
			if err != nil {
				return nil, err
			}
			f.Rest = rest
		default:
			node, err := pc.registry.Parse(pc, child)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			stmt, ok := node.(ast.Statement)
			if !ok {
				return nil, newError(pc.pos(child), child.Tag, "not allowed inside <function>")
			}
			f.Body = append(f.Body, stmt)
		}
	}
	return f, nil
}

func parseRest(pc *ParseContext, el *etree.Element) (*ast.RestConfig, error) {
	endpoint, err := requireAttr(pc, el, "endpoint")
	if err != nil {
		return nil, err
	}
	method, err := requireAttr(pc, el, "method")
	if err != nil {
		return nil, err
	}
	status, err := attrInt(pc, el, "status")
	if err != nil {
		return nil, err
	}
	return &ast.RestConfig{
		Endpoint: endpoint,
		Method:   strings.ToUpper(method),
		Auth:     attrString(el, "auth"),
		Roles:    attrList(el, "roles"),
		Status:   status,
	}, nil
}

type paramParser struct{}

func (*paramParser) Names() []string { return []string{"param"} }

func (*paramParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	return parseParam(pc, el)
}

func parseParam(pc *ParseContext, el *etree.Element) (*ast.Param, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	required, err := attrBool(pc, el, "required")
	if err != nil {
		return nil, err
	}
	return &ast.Param{
		Src:         pc.pos(el),
		Name:        name,
		Type:        ast.ValueType(attrString(el, "type")),
		Required:    required,
		Default:     attrString(el, "default"),
		Description: attrString(el, "description"),
	}, nil
}
