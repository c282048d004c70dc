package ast

// Node is the interface implemented by all AST nodes.
type Node interface {
	// Kind returns the node kind discriminant.
	Kind() NodeKind
	// Pos returns the source position of the node.
	Pos() Position
	// String returns a human-readable representation for debugging.
	String() string
	// Validate returns all structural violations found in this node and,
	// recursively, in its children. It never panics and never truncates.
	Validate() []string
}

// Statement is a marker interface for nodes that may appear in an
// executable body (component, function, loop, branch, handler).
type Statement interface {
	Node
	stmtNode()
}

// validateChildren appends the violations of each non-nil child.
func validateChildren(errs []string, children ...Node) []string {
	for _, c := range children {
		if c != nil {
			errs = append(errs, c.Validate()...)
		}
	}
	return errs
}

// validateStatements appends the violations of every statement in a body.
func validateStatements(errs []string, body []Statement) []string {
	for _, s := range body {
		if s != nil {
			errs = append(errs, s.Validate()...)
		}
	}
	return errs
}
