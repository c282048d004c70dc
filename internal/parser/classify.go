package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

// knownHTMLTags is the passthrough set. Unclaimed lowercase tags outside
// this set still render as HTML; the set only exists so future lowercase
// Lattice tags can be claimed without breaking plain markup.
var knownHTMLTags = map[string]bool{
	"a": true, "article": true, "aside": true, "b": true, "body": true,
	"br": true, "button": true, "code": true, "div": true, "em": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "head": true, "header": true,
	"hr": true, "html": true, "i": true, "img": true, "input": true,
	"label": true, "li": true, "main": true, "nav": true, "ol": true,
	"option": true, "p": true, "pre": true, "section": true, "select": true,
	"small": true, "span": true, "strong": true, "table": true, "tbody": true,
	"td": true, "textarea": true, "th": true, "thead": true, "title": true,
	"tr": true, "ul": true,
}

// classify decides what an unclaimed tag is: an Uppercase-initial name
// that is not all-uppercase instantiates a component; known HTML or
// lowercase-initial names pass through as markup; anything else is
// skipped without error.
func classify(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	tag := el.Tag
	if tag == "" {
		return nil, nil
	}
	first, _ := utf8.DecodeRuneInString(tag)

	if unicode.IsUpper(first) && tag != strings.ToUpper(tag) {
		children, err := pc.parseStatements(el)
		if err != nil {
			return nil, err
		}
		return &ast.ComponentCall{
			Src:       pc.pos(el),
			Component: tag,
			Args:      attrMap(el),
			Children:  children,
		}, nil
	}

	if knownHTMLTags[tag] || unicode.IsLower(first) {
		children, err := pc.parseStatements(el)
		if err != nil {
			return nil, err
		}
		return &ast.HTML{
			Src:      pc.pos(el),
			Tag:      tag,
			Attrs:    attrMap(el),
			Children: children,
		}, nil
	}

	return nil, nil
}

// attrMap copies an element's attributes, dropping namespace declarations.
func attrMap(el *etree.Element) map[string]string {
	if len(el.Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Key == "xmlns" || a.Space == "xmlns" {
			continue
		}
		m[a.Key] = a.Value
	}
	return m
}
