package parser

import (
	"fmt"

	"github.com/lattice-lang/lattice/internal/ast"
)

// Error is a parse-time failure. It always identifies the offending tag
// and, when the failure concerns a single attribute, that attribute too.
// Any Error aborts the document; no partial AST is returned.
type Error struct {
	Pos  ast.Position
	Tag  string
	Attr string
	Msg  string
}

func (e *Error) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("%s: <%s> attribute %q: %s", e.Pos, e.Tag, e.Attr, e.Msg)
	}
	return fmt.Sprintf("%s: <%s>: %s", e.Pos, e.Tag, e.Msg)
}

func newError(pos ast.Position, tag, format string, args ...any) *Error {
	return &Error{Pos: pos, Tag: tag, Msg: fmt.Sprintf(format, args...)}
}

func newAttrError(pos ast.Position, tag, attr, format string, args ...any) *Error {
	return &Error{Pos: pos, Tag: tag, Attr: attr, Msg: fmt.Sprintf(format, args...)}
}
