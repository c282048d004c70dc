package binding

import (
	"errors"
	"fmt"
	"strings"
)

// Eval evaluates a compiled expression against the context.
func (e *Expr) Eval(ctx *Context) (any, error) {
	if len(e.Or) == 1 {
		return e.Or[0].eval(ctx)
	}
	for _, term := range e.Or {
		v, err := term.eval(ctx)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

// EvalString parses and evaluates src in one step.
func EvalString(ctx *Context, src string) (any, error) {
	expr, err := ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("binding: parse %q: %w", src, err)
	}
	return expr.Eval(ctx)
}

// EvalCondition evaluates src and reduces the result to a truth value.
func EvalCondition(ctx *Context, src string) (bool, error) {
	v, err := EvalString(ctx, src)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func (a *AndExpr) eval(ctx *Context) (any, error) {
	if len(a.And) == 1 {
		return a.And[0].eval(ctx)
	}
	for _, term := range a.And {
		v, err := term.eval(ctx)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func (n *NotExpr) eval(ctx *Context) (any, error) {
	if n.Not != nil {
		v, err := n.Not.eval(ctx)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	return n.Comp.eval(ctx)
}

func (c *Comparison) eval(ctx *Context) (any, error) {
	left, err := c.Left.eval(ctx)
	if err != nil {
		// An unbound path is null for the purposes of a null test.
		var unresolved *UnresolvedError
		if c.IsNull == nil || !errors.As(err, &unresolved) {
			return nil, err
		}
		left = nil
	}
	if c.IsNull != nil {
		isNull := left == nil
		if c.IsNull.Negated {
			return !isNull, nil
		}
		return isNull, nil
	}
	if c.Op == "" {
		return left, nil
	}
	right, err := c.Right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return compare(c.Op, left, right)
}

func compare(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "in":
		return contains(right, left)
	}

	lf, lok := ToFloat(left)
	rf, rok := ToFloat(right)
	if lok && rok {
		switch op {
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case ">":
			return ls > rs, nil
		case "<":
			return ls < rs, nil
		case ">=":
			return ls >= rs, nil
		case "<=":
			return ls <= rs, nil
		}
	}
	return nil, fmt.Errorf("binding: cannot order %T against %T", left, right)
}

// looseEqual compares with numeric normalization so 2 == 2.0 and a bound
// "2" equals the literal 2.
func looseEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if lf, lok := ToFloat(left); lok {
		if rf, rok := ToFloat(right); rok {
			return lf == rf
		}
	}
	return Stringify(left) == Stringify(right)
}

func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		_, ok := h[Stringify(needle)]
		return ok, nil
	case string:
		return strings.Contains(h, Stringify(needle)), nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("binding: 'in' needs a list, map, or string, got %T", haystack)
	}
}

func (a *Additive) eval(ctx *Context) (any, error) {
	acc, err := a.Left.eval(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range a.Ops {
		operand, err := op.Operand.eval(ctx)
		if err != nil {
			return nil, err
		}
		acc, err = arith(op.Op, acc, operand)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (m *Multiplicative) eval(ctx *Context) (any, error) {
	acc, err := m.Left.eval(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range m.Ops {
		operand, err := op.Operand.eval(ctx)
		if err != nil {
			return nil, err
		}
		acc, err = arith(op.Op, acc, operand)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func arith(op string, left, right any) (any, error) {
	// String concatenation keeps + usable for text.
	if op == "+" {
		if ls, ok := left.(string); ok {
			return ls + Stringify(right), nil
		}
	}
	lf, lok := ToFloat(left)
	rf, rok := ToFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("binding: %q needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("binding: division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("binding: division by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("binding: unknown operator %q", op)
}

func (u *Unary) eval(ctx *Context) (any, error) {
	v, err := u.Value.eval(ctx)
	if err != nil {
		return nil, err
	}
	if u.Negative {
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("binding: cannot negate %T", v)
		}
		return -f, nil
	}
	return v, nil
}

func (p *Primary) eval(ctx *Context) (any, error) {
	switch {
	case p.Float != nil:
		return *p.Float, nil
	case p.Int != nil:
		return float64(*p.Int), nil
	case p.Str != nil:
		return unquote(*p.Str), nil
	case p.True:
		return true, nil
	case p.False:
		return false, nil
	case p.Null:
		return nil, nil
	case p.Sub != nil:
		return p.Sub.Eval(ctx)
	case p.Path != nil:
		v, ok := ctx.Get(*p.Path)
		if !ok {
			return nil, &UnresolvedError{Path: *p.Path}
		}
		return v, nil
	}
	return nil, fmt.Errorf("binding: empty expression term")
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// UnresolvedError reports a path with no binding anywhere in the chain.
type UnresolvedError struct {
	Path string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("binding: %q is not bound", e.Path)
}
