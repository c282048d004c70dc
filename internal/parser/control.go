package parser

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type ifParser struct{}

func (*ifParser) Names() []string { return []string{"if"} }

func (*ifParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	cond, err := requireAttr(pc, el, "condition")
	if err != nil {
		return nil, err
	}
	node := &ast.If{Src: pc.pos(el), Cond: cond}

	// Statements before the first elseif/else belong to the then-branch;
	// an explicit <then> wrapper is accepted too.
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "then":
			body, err := pc.parseStatements(child)
			if err != nil {
				return nil, err
			}
			node.Then = append(node.Then, body...)
		case "elseif", "else-if":
			econd, err := requireAttr(pc, child, "condition")
			if err != nil {
				return nil, err
			}
			body, err := pc.parseStatements(child)
			if err != nil {
				return nil, err
			}
			node.ElseIfs = append(node.ElseIfs, &ast.ElseIfBlock{
				Src:  pc.pos(child),
				Cond: econd,
				Body: body,
			})
		case "else":
			body, err := pc.parseStatements(child)
			if err != nil {
				return nil, err
			}
			node.Else = append(node.Else, body...)
		default:
			stmt, err := pc.registry.Parse(pc, child)
			if err != nil {
				return nil, err
			}
			if stmt == nil {
				continue
			}
			s, ok := stmt.(ast.Statement)
			if !ok {
				return nil, newError(pc.pos(child), child.Tag, "not allowed inside <if>")
			}
			node.Then = append(node.Then, s)
		}
	}
	return node, nil
}

type loopParser struct{}

func (*loopParser) Names() []string { return []string{"loop"} }

func (*loopParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	varName, err := requireAttr(pc, el, "var")
	if err != nil {
		return nil, err
	}
	l := &ast.Loop{
		Src:       pc.pos(el),
		VarName:   varName,
		IndexName: attrString(el, "index"),
		From:      attrString(el, "from"),
		To:        attrString(el, "to"),
		Step:      attrString(el, "step"),
		Items:     attrString(el, "items"),
		Delimiter: attrString(el, "delimiter"),
		QueryName: attrString(el, "query"),
	}
	if kind := attrString(el, "type"); kind != "" {
		l.LoopKind = ast.LoopKind(kind)
	} else {
		l.LoopKind = inferLoopKind(l)
	}
	if !ast.ValidLoopKinds[l.LoopKind] {
		return nil, newAttrError(pc.pos(el), el.Tag, "type", "unknown loop type %q", l.LoopKind)
	}
	if l.Body, err = pc.parseStatements(el); err != nil {
		return nil, err
	}
	return l, nil
}

// inferLoopKind picks the loop kind from which source attributes are set
// when no explicit type is given.
func inferLoopKind(l *ast.Loop) ast.LoopKind {
	switch {
	case l.From != "" || l.To != "":
		return ast.LoopRange
	case l.QueryName != "":
		return ast.LoopQuery
	case l.Delimiter != "":
		return ast.LoopList
	default:
		return ast.LoopArray
	}
}

type returnParser struct{}

func (*returnParser) Names() []string { return []string{"return"} }

func (*returnParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	value := attrString(el, "value")
	if value == "" {
		value = strings.TrimSpace(el.Text())
	}
	return &ast.Return{Src: pc.pos(el), Value: value}, nil
}
