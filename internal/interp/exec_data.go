package interp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
)

// queryExecutor resolves declared params, runs the SQL through the
// effective runner, and binds the row set under the query's name.
type queryExecutor struct {
	in *Interpreter
}

func (*queryExecutor) Kind() ast.NodeKind { return ast.KindQuery }

func (e *queryExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	q := node.(*ast.Query)
	runner := e.in.queryRunner(ctx)
	if runner == nil {
		return None(), execErr(q, "no datasource runner configured")
	}
	params, err := resolveQueryParams(q.Params, env)
	if err != nil {
		return None(), err
	}
	rows, err := runner.RunQuery(ctx, q.Datasource, q.SQL, params)
	if err != nil {
		return None(), fmt.Errorf("query %q: %w", q.Name, err)
	}
	env.Set(q.Name, rowsToAny(rows))
	return None(), nil
}

func resolveQueryParams(params []*ast.QueryParam, env *binding.Context) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for _, p := range params {
		v, err := env.Resolve(p.Value)
		if err != nil {
			if p.Nullable {
				v = nil
			} else {
				return nil, fmt.Errorf("param %q: %w", p.Name, err)
			}
		}
		if v, err = binding.Coerce(v, p.Type); err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		if v == nil && !p.Nullable {
			return nil, fmt.Errorf("param %q resolved to null", p.Name)
		}
		out[p.Name] = v
	}
	return out, nil
}

func rowsToAny(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out
}

// invokeExecutor calls the single configured target and binds the result
// under the invoke's name. Remote targets honor timeout, retry, and
// retry_delay.
type invokeExecutor struct {
	in *Interpreter
}

func (*invokeExecutor) Kind() ast.NodeKind { return ast.KindInvoke }

func (e *invokeExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	inv := node.(*ast.Invoke)

	args := make(map[string]any, len(inv.Params))
	for name, raw := range inv.Params {
		v, err := env.Resolve(raw)
		if err != nil {
			return None(), fmt.Errorf("invoke %q param %q: %w", inv.Name, name, err)
		}
		args[name] = v
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(inv.Timeout)*time.Second)
		defer cancel()
	}

	result, err := e.call(ctx, inv, args)
	if err != nil {
		return None(), fmt.Errorf("invoke %q: %w", inv.Name, err)
	}
	env.Set(inv.Name, result)
	return None(), nil
}

func (e *invokeExecutor) call(ctx context.Context, inv *ast.Invoke, args map[string]any) (any, error) {
	var lastErr error
	attempts := inv.Retry + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && inv.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(inv.RetryDelay * float64(time.Second))):
			}
		}
		result, err := e.callOnce(ctx, inv, args)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (e *invokeExecutor) callOnce(ctx context.Context, inv *ast.Invoke, args map[string]any) (any, error) {
	switch inv.TargetKind() {
	case "function":
		if e.in.functions == nil {
			return nil, fmt.Errorf("no function runtime configured")
		}
		return e.in.functions.Call(ctx, inv.Function, args)
	case "component":
		if e.in.functions == nil {
			return nil, fmt.Errorf("no function runtime configured")
		}
		return e.in.functions.Call(ctx, inv.Component, args)
	case "url", "endpoint", "service":
		if e.in.transport == nil {
			return nil, fmt.Errorf("no transport configured")
		}
		return e.in.transport.Invoke(ctx, inv, args)
	default:
		return nil, fmt.Errorf("no target configured")
	}
}

// llmExecutor resolves the prompt through databinding and generates.
type llmExecutor struct {
	in *Interpreter
}

func (*llmExecutor) Kind() ast.NodeKind { return ast.KindLLMGenerate }

func (e *llmExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	g := node.(*ast.LLMGenerate)
	if e.in.llm == nil {
		return None(), execErr(g, "no llm client configured")
	}
	scope := env
	if len(g.Params) > 0 {
		params, err := resolveQueryParams(g.Params, env)
		if err != nil {
			return None(), err
		}
		scope = env.Child()
		for k, v := range params {
			scope.Set(k, v)
		}
	}
	prompt, err := scope.ResolveString(g.Prompt)
	if err != nil {
		return None(), err
	}
	system, err := scope.ResolveString(g.System)
	if err != nil {
		return None(), err
	}
	text, err := e.in.llm.Generate(ctx, g.Datasource, g.Model, system, prompt, g.Temperature, g.MaxTokens)
	if err != nil {
		return None(), fmt.Errorf("llm generate %q: %w", g.Name, err)
	}
	env.Set(g.Name, text)
	return None(), nil
}

// searchExecutor retrieves documents and binds them as a row set.
type searchExecutor struct {
	in *Interpreter
}

func (*searchExecutor) Kind() ast.NodeKind { return ast.KindSearch }

func (e *searchExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	s := node.(*ast.Search)
	if e.in.search == nil {
		return None(), execErr(s, "no search provider configured")
	}
	query, err := env.ResolveString(s.Query)
	if err != nil {
		return None(), err
	}
	docs, err := e.in.search.Search(ctx, s.Datasource, query, s.Limit, s.Threshold)
	if err != nil {
		return None(), fmt.Errorf("search %q: %w", s.Name, err)
	}
	env.Set(s.Name, rowsToAny(docs))
	return None(), nil
}

// dataExecutor materializes inline data and applies its transform
// pipeline in declaration order.
type dataExecutor struct {
	in *Interpreter
}

func (*dataExecutor) Kind() ast.NodeKind { return ast.KindData }

func (e *dataExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	d := node.(*ast.Data)

	rows, err := e.load(d, env)
	if err != nil {
		return None(), err
	}
	for _, tr := range d.Transforms {
		if rows, err = applyTransform(tr, rows, env); err != nil {
			return None(), wrapErr(d, err)
		}
	}
	env.Set(d.Name, rows)
	return None(), nil
}

func (e *dataExecutor) load(d *ast.Data, env *binding.Context) ([]any, error) {
	switch d.DataKind {
	case "csv":
		return loadCSV(d)
	case "json":
		var v any
		if err := json.Unmarshal([]byte(d.Content), &v); err != nil {
			return nil, execErr(d, "invalid json payload: %v", err)
		}
		if arr, ok := v.([]any); ok {
			return arr, nil
		}
		return []any{v}, nil
	case "xml":
		// Raw markup payloads bind as text rows, one per line.
		var rows []any
		for _, line := range strings.Split(d.Content, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				rows = append(rows, line)
			}
		}
		return rows, nil
	case "transform":
		v, ok := env.Get(d.Source)
		if !ok {
			return nil, execErr(d, "source %q has no binding", d.Source)
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, execErr(d, "source %q is not a list (%T)", d.Source, v)
		}
		return arr, nil
	default:
		return nil, execErr(d, "unknown data type %q", d.DataKind)
	}
}

func loadCSV(d *ast.Data) ([]any, error) {
	reader := csv.NewReader(strings.NewReader(d.Content))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, execErr(d, "invalid csv payload: %v", err)
	}
	header := d.Columns
	start := 0
	if len(header) == 0 && len(records) > 0 {
		header = records[0]
		start = 1
	}
	rows := make([]any, 0, len(records))
	for _, rec := range records[start:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				if f, ok := binding.ToFloat(rec[i]); ok {
					row[col] = f
				} else {
					row[col] = rec[i]
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func applyTransform(tr *ast.Transform, rows []any, env *binding.Context) ([]any, error) {
	switch tr.TransKind {
	case "filter":
		out := make([]any, 0, len(rows))
		for _, row := range rows {
			scope := env.Child()
			bindRow(scope, row)
			keep, err := binding.EvalCondition(scope, tr.Condition)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, row)
			}
		}
		return out, nil
	case "sort":
		sorted := append([]any(nil), rows...)
		desc := strings.EqualFold(tr.Order, "desc")
		sort.SliceStable(sorted, func(a, b int) bool {
			av, bv := fieldOf(sorted[a], tr.Field), fieldOf(sorted[b], tr.Field)
			if desc {
				return lessValues(bv, av)
			}
			return lessValues(av, bv)
		})
		return sorted, nil
	case "limit":
		if tr.Count < len(rows) {
			return rows[:tr.Count], nil
		}
		return rows, nil
	case "compute":
		out := make([]any, 0, len(rows))
		for _, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("compute needs object rows, got %T", row)
			}
			scope := env.Child()
			bindRow(scope, row)
			v, err := binding.EvalString(scope, tr.Expr)
			if err != nil {
				return nil, err
			}
			next := make(map[string]any, len(m)+1)
			for k, item := range m {
				next[k] = item
			}
			next[tr.Field] = v
			out = append(out, next)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", tr.TransKind)
	}
}

func bindRow(scope *binding.Context, row any) {
	if m, ok := row.(map[string]any); ok {
		for k, v := range m {
			scope.Set(k, v)
		}
	}
	scope.Set("value", row)
}

func fieldOf(row any, field string) any {
	if field == "" {
		return row
	}
	if m, ok := row.(map[string]any); ok {
		return m[field]
	}
	return row
}
