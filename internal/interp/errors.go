package interp

import (
	"errors"
	"fmt"

	"github.com/lattice-lang/lattice/internal/ast"
)

// ExecError wraps an execution failure with the statement that raised
// it. Executors never catch it; it propagates through control flow to
// the caller.
type ExecError struct {
	Kind ast.NodeKind
	Pos  ast.Position
	Err  error
}

func (e *ExecError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("exec %s at %s: %v", e.Kind, e.Pos, e.Err)
	}
	return fmt.Sprintf("exec %s: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func execErr(node ast.Node, format string, args ...any) *ExecError {
	return &ExecError{Kind: node.Kind(), Pos: node.Pos(), Err: fmt.Errorf(format, args...)}
}

func wrapErr(node ast.Node, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecError{Kind: node.Kind(), Pos: node.Pos(), Err: err}
}
