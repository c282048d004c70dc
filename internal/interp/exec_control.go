package interp

import (
	"context"
	"strings"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
)

// ifExecutor evaluates conditions in order and runs the first matching
// branch only. A branch signal propagates; no match and no signal yields
// an empty signal, never an error.
type ifExecutor struct {
	in *Interpreter
}

func (*ifExecutor) Kind() ast.NodeKind { return ast.KindIf }

func (e *ifExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	i := node.(*ast.If)

	matched, err := binding.EvalCondition(env, i.Cond)
	if err != nil {
		return None(), err
	}
	if matched {
		return e.in.ExecBody(ctx, i.Then, env.Child())
	}
	for _, ei := range i.ElseIfs {
		matched, err = binding.EvalCondition(env, ei.Cond)
		if err != nil {
			return None(), err
		}
		if matched {
			return e.in.ExecBody(ctx, ei.Body, env.Child())
		}
	}
	if len(i.Else) > 0 {
		return e.in.ExecBody(ctx, i.Else, env.Child())
	}
	return None(), nil
}

// loopExecutor iterates one of the four source kinds, collecting every
// per-iteration signal into the loop's ordered result list. An empty
// source yields an empty result, not an error.
type loopExecutor struct {
	in *Interpreter
}

func (*loopExecutor) Kind() ast.NodeKind { return ast.KindLoop }

func (e *loopExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	l := node.(*ast.Loop)

	items, err := e.items(l, env)
	if err != nil {
		return None(), err
	}

	results := make([]any, 0, len(items))
	for idx, item := range items {
		if err := ctx.Err(); err != nil {
			return None(), err
		}
		scope := env.Child()
		scope.Set(l.VarName, item)
		if l.IndexName != "" {
			scope.Set(l.IndexName, float64(idx))
		}
		if row, ok := item.(map[string]any); ok && l.LoopKind == ast.LoopQuery {
			// Row fields bind directly so {field} works without the var prefix.
			for k, v := range row {
				scope.Set(k, v)
			}
		}
		sig, err := e.in.ExecBody(ctx, l.Body, scope)
		if err != nil {
			return None(), err
		}
		if sig.HasValue {
			results = append(results, sig.Value)
		}
	}
	if len(results) == 0 {
		return None(), nil
	}
	return ValueOf(results), nil
}

func (e *loopExecutor) items(l *ast.Loop, env *binding.Context) ([]any, error) {
	switch l.LoopKind {
	case ast.LoopRange:
		return rangeItems(l, env)
	case ast.LoopArray:
		return arrayItems(l, env)
	case ast.LoopList:
		return listItems(l, env)
	case ast.LoopQuery:
		return queryItems(l, env)
	default:
		return nil, execErr(l, "unknown loop kind %q", l.LoopKind)
	}
}

func rangeItems(l *ast.Loop, env *binding.Context) ([]any, error) {
	from, err := resolveNumber(env, l.From, "from")
	if err != nil {
		return nil, wrapErr(l, err)
	}
	to, err := resolveNumber(env, l.To, "to")
	if err != nil {
		return nil, wrapErr(l, err)
	}
	step := 1.0
	if l.Step != "" {
		if step, err = resolveNumber(env, l.Step, "step"); err != nil {
			return nil, wrapErr(l, err)
		}
	}
	if step == 0 {
		return nil, execErr(l, "range step must not be zero")
	}
	// Bounds pointing against the step direction yield an empty range.
	if (step > 0 && from > to) || (step < 0 && from < to) {
		return nil, nil
	}
	count := int((to-from)/step) + 1
	items := make([]any, 0, count)
	if step > 0 {
		for v := from; v <= to; v += step {
			items = append(items, v)
		}
	} else {
		for v := from; v >= to; v += step {
			items = append(items, v)
		}
	}
	return items, nil
}

func arrayItems(l *ast.Loop, env *binding.Context) ([]any, error) {
	v, err := env.Resolve(l.Items)
	if err != nil {
		return nil, wrapErr(l, err)
	}
	switch items := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return items, nil
	case []map[string]any:
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i]
		}
		return out, nil
	case string:
		if strings.TrimSpace(items) == "" {
			return nil, nil
		}
		arr, err := binding.ParseArray(items)
		if err != nil {
			return nil, wrapErr(l, err)
		}
		return arr, nil
	default:
		return nil, execErr(l, "loop items resolved to non-array %T", v)
	}
}

func listItems(l *ast.Loop, env *binding.Context) ([]any, error) {
	raw, err := env.ResolveString(l.Items)
	if err != nil {
		return nil, wrapErr(l, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	delim := l.Delimiter
	if delim == "" {
		delim = ","
	}
	parts := strings.Split(raw, delim)
	items := make([]any, 0, len(parts))
	for _, p := range parts {
		items = append(items, strings.TrimSpace(p))
	}
	return items, nil
}

func queryItems(l *ast.Loop, env *binding.Context) ([]any, error) {
	v, ok := env.Get(l.QueryName)
	if !ok {
		return nil, execErr(l, "query %q has no bound result", l.QueryName)
	}
	switch rows := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return rows, nil
	case []map[string]any:
		out := make([]any, len(rows))
		for i := range rows {
			out[i] = rows[i]
		}
		return out, nil
	default:
		return nil, execErr(l, "binding %q is not a row set (%T)", l.QueryName, v)
	}
}

func resolveNumber(env *binding.Context, raw, attr string) (float64, error) {
	v, err := env.Resolve(raw)
	if err != nil {
		return 0, err
	}
	f, ok := binding.ToFloat(v)
	if !ok {
		return 0, &nonNumericError{attr: attr, value: v}
	}
	return f, nil
}

type nonNumericError struct {
	attr  string
	value any
}

func (e *nonNumericError) Error() string {
	return "attribute '" + e.attr + "' resolved to non-numeric value " + binding.Stringify(e.value)
}

// returnExecutor resolves its value and yields it as the body's signal.
type returnExecutor struct {
	in *Interpreter
}

func (*returnExecutor) Kind() ast.NodeKind { return ast.KindReturn }

func (e *returnExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	r := node.(*ast.Return)
	if r.Value == "" {
		return ValueOf(nil), nil
	}
	v, err := env.Resolve(r.Value)
	if err != nil {
		return None(), err
	}
	return ValueOf(v), nil
}
