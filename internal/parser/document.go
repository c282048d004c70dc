package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// DefaultNamespace is injected into documents whose root declares none.
const DefaultNamespace = "https://lattice-lang.org/schema/v1"

// rootTagRe matches the opening tag of a document root, with or without a
// namespace prefix.
var rootTagRe = regexp.MustCompile(`<(?:[a-zA-Z_][\w.-]*:)?(application|component|job)((?:[^>"']|"[^"]*"|'[^']*')*?)(/?)>`)

// InjectNamespace adds the default xmlns declaration to the first
// application, component, or job root tag when the document declares
// none. The pass is textual and idempotent; documents that already carry
// an xmlns come back unchanged.
func InjectNamespace(src string) string {
	loc := rootTagRe.FindStringSubmatchIndex(src)
	if loc == nil {
		return src
	}
	attrs := src[loc[4]:loc[5]]
	if strings.Contains(attrs, "xmlns") {
		return src
	}
	insertAt := loc[5]
	return src[:insertAt] + fmt.Sprintf(" xmlns=%q", DefaultNamespace) + src[insertAt:]
}

// ParseDocument parses one Lattice document into its root AST node. Any
// parse error aborts the whole document; no partial AST is returned.
func ParseDocument(file, src string) (ast.Node, error) {
	return New().ParseDocument(file, src)
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (ast.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return ParseDocument(path, string(raw))
}

// ParseDocument parses src against this registry's tag set.
func (r *Registry) ParseDocument(file, src string) (ast.Node, error) {
	node, err := r.parseDocument(file, src)
	if err != nil {
		metrics.ParseErrors.Inc()
		return nil, err
	}
	metrics.DocumentsParsed.Inc()
	return node, nil
}

func (r *Registry) parseDocument(file, src string) (ast.Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(InjectNamespace(src)); err != nil {
		return nil, fmt.Errorf("parser: %s: malformed document: %w", file, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parser: %s: document has no root element", file)
	}

	pc := newParseContext(file, r)
	p := r.Lookup(root.Tag)
	if p == nil {
		return nil, newError(pc.pos(root), root.Tag, "unsupported document root")
	}
	node, err := p.Parse(pc, root)
	if err != nil {
		return nil, err
	}
	if errs := node.Validate(); len(errs) > 0 {
		return nil, newError(pc.pos(root), root.Tag, "invalid document: %s", strings.Join(errs, "; "))
	}
	return node, nil
}
