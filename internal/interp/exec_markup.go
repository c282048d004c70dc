package interp

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
)

type outputKey struct{}

// WithOutput attaches a markup sink to ctx. HTML, text, and component
// call statements render into it; without a sink they are no-ops.
func WithOutput(ctx context.Context, sink *strings.Builder) context.Context {
	return context.WithValue(ctx, outputKey{}, sink)
}

func outputSink(ctx context.Context) *strings.Builder {
	sink, _ := ctx.Value(outputKey{}).(*strings.Builder)
	return sink
}

// htmlExecutor renders a passthrough element with resolved attribute and
// text bindings. It never signals.
type htmlExecutor struct {
	in *Interpreter
}

func (*htmlExecutor) Kind() ast.NodeKind { return ast.KindHTML }

func (e *htmlExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	h := node.(*ast.HTML)
	sink := outputSink(ctx)
	if sink == nil {
		return None(), nil
	}

	sink.WriteString("<" + h.Tag)
	for _, key := range sortedKeys(h.Attrs) {
		resolved, err := env.ResolveString(h.Attrs[key])
		if err != nil {
			return None(), err
		}
		fmt.Fprintf(sink, " %s=%q", key, resolved)
	}
	if len(h.Children) == 0 {
		sink.WriteString("/>")
		return None(), nil
	}
	sink.WriteString(">")
	if _, err := e.in.ExecBody(ctx, h.Children, env.Child()); err != nil {
		return None(), err
	}
	sink.WriteString("</" + h.Tag + ">")
	return None(), nil
}

// textExecutor resolves databinding in character data and escapes it.
type textExecutor struct {
	in *Interpreter
}

func (*textExecutor) Kind() ast.NodeKind { return ast.KindText }

func (e *textExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	t := node.(*ast.Text)
	sink := outputSink(ctx)
	if sink == nil {
		return None(), nil
	}
	resolved, err := env.ResolveString(t.Value)
	if err != nil {
		return None(), err
	}
	sink.WriteString(html.EscapeString(resolved))
	return None(), nil
}

// componentCallExecutor instantiates a named component: args resolve
// through databinding and the call goes through the function runtime,
// which owns component lookup.
type componentCallExecutor struct {
	in *Interpreter
}

func (*componentCallExecutor) Kind() ast.NodeKind { return ast.KindComponentCall }

func (e *componentCallExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	c := node.(*ast.ComponentCall)
	if e.in.functions == nil {
		return None(), execErr(c, "no component runtime configured")
	}
	args := make(map[string]any, len(c.Args))
	for name, raw := range c.Args {
		v, err := env.Resolve(raw)
		if err != nil {
			return None(), fmt.Errorf("component %q arg %q: %w", c.Component, name, err)
		}
		args[name] = v
	}
	result, err := e.in.functions.Call(ctx, c.Component, args)
	if err != nil {
		return None(), fmt.Errorf("component %q: %w", c.Component, err)
	}
	if sink := outputSink(ctx); sink != nil && result != nil {
		sink.WriteString(binding.Stringify(result))
	}
	return None(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
