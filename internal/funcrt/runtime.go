// Package funcrt is the function runtime: lookup, cached and memoized
// invocation, parameter binding, and retry handling for declared
// functions and components.
package funcrt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/cache"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/pkg/logging"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// Runtime resolves call targets and executes their bodies through the
// interpreter. It implements interp.FunctionCaller.
type Runtime struct {
	in    *interp.Interpreter
	store cache.Cache
	base  *binding.Context
	log   *slog.Logger

	functions  map[string]*ast.Function
	components map[string]*ast.Component
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithBaseContext sets the scope function bodies inherit from.
func WithBaseContext(env *binding.Context) Option {
	return func(r *Runtime) { r.base = env }
}

// WithLogger overrides the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New builds a runtime on the interpreter and result store and wires
// itself in as the interpreter's function caller.
func New(in *interp.Interpreter, store cache.Cache, opts ...Option) *Runtime {
	r := &Runtime{
		in:         in,
		store:      store,
		base:       binding.NewContext(nil),
		log:        logging.ModuleLogger("funcrt"),
		functions:  make(map[string]*ast.Function),
		components: make(map[string]*ast.Component),
	}
	for _, opt := range opts {
		opt(r)
	}
	in.SetFunctionCaller(r)
	return r
}

// RegisterFunction claims a function name, 1:1.
func (r *Runtime) RegisterFunction(f *ast.Function) error {
	if _, dup := r.functions[f.Name]; dup {
		return fmt.Errorf("funcrt: function %q already registered", f.Name)
	}
	r.functions[f.Name] = f
	return nil
}

// RegisterComponent claims a component name and its functions. Component
// functions register both bare and qualified so calls can disambiguate.
func (r *Runtime) RegisterComponent(c *ast.Component) error {
	if _, dup := r.components[c.Name]; dup {
		return fmt.Errorf("funcrt: component %q already registered", c.Name)
	}
	r.components[c.Name] = c
	for _, f := range c.Functions {
		qualified := c.Name + "." + f.Name
		if _, dup := r.functions[qualified]; dup {
			return fmt.Errorf("funcrt: function %q already registered", qualified)
		}
		r.functions[qualified] = f
		if _, taken := r.functions[f.Name]; !taken {
			r.functions[f.Name] = f
		}
	}
	return nil
}

// LoadApplication registers everything an application declares.
func (r *Runtime) LoadApplication(app *ast.Application) error {
	for _, f := range app.Functions {
		if err := r.RegisterFunction(f); err != nil {
			return err
		}
	}
	for _, c := range app.Components {
		if err := r.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// Call invokes a function or component by name.
func (r *Runtime) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	if f, ok := r.functions[name]; ok {
		return r.CallFunction(ctx, f, args)
	}
	if c, ok := r.components[name]; ok {
		return r.callComponent(ctx, c, args)
	}
	return nil, fmt.Errorf("funcrt: no function or component named %q", name)
}

// CallFunction runs one function call through the full pipeline:
// memoize/cache lookup first, then parameter binding, then the body.
func (r *Runtime) CallFunction(ctx context.Context, f *ast.Function, args map[string]any) (any, error) {
	var key string
	if f.Memoize || f.Cache {
		var err error
		if key, err = callKey(f, args); err != nil {
			return nil, err
		}
		if result, hit := r.lookup(ctx, key); hit {
			metrics.FunctionCacheHits.Inc()
			return result, nil
		}
		metrics.FunctionCacheMisses.Inc()
	}

	scope, err := r.bindParams(f, args)
	if err != nil {
		return nil, err
	}

	result, err := r.execute(ctx, f, scope)
	if err != nil {
		return nil, err
	}

	// Stored before returning so concurrent callers converge quickly.
	if f.Memoize {
		r.remember(ctx, key, result, 0)
	} else if f.Cache {
		r.remember(ctx, key, result, time.Duration(f.CacheTTL)*time.Second)
	}
	return result, nil
}

func (r *Runtime) callComponent(ctx context.Context, c *ast.Component, args map[string]any) (any, error) {
	scope := r.base.Child()
	for _, p := range c.Params {
		supplied, ok := args[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("funcrt: component %q missing required param %q", c.Name, p.Name)
			}
			if p.Default != "" {
				v, err := scope.Resolve(p.Default)
				if err != nil {
					return nil, err
				}
				scope.Set(p.Name, v)
			} else {
				scope.Set(p.Name, nil)
			}
			continue
		}
		v, err := binding.Coerce(supplied, p.Type)
		if err != nil {
			return nil, fmt.Errorf("funcrt: component %q param %q: %w", c.Name, p.Name, err)
		}
		scope.Set(p.Name, v)
	}
	sig, err := r.in.ExecBody(ctx, c.Statements, scope)
	if err != nil {
		return nil, err
	}
	return sig.Value, nil
}

// bindParams builds the call scope: supplied values coerce to the
// declared type and omitted ones fall back to defaults. A missing
// required parameter fails before the body runs, but only when the
// function declares validate_params; without it the parameter binds
// to null.
func (r *Runtime) bindParams(f *ast.Function, args map[string]any) (*binding.Context, error) {
	scope := r.base.Child()
	for _, p := range f.Params {
		supplied, ok := args[p.Name]
		if !ok || supplied == nil {
			switch {
			case p.Default != "":
				v, err := scope.Resolve(p.Default)
				if err != nil {
					return nil, fmt.Errorf("funcrt: %s(%s) default: %w", f.Name, p.Name, err)
				}
				if v, err = binding.Coerce(v, p.Type); err != nil {
					return nil, fmt.Errorf("funcrt: %s(%s): %w", f.Name, p.Name, err)
				}
				scope.Set(p.Name, v)
			case f.ValidateParams && p.Required:
				return nil, fmt.Errorf("funcrt: %s: required parameter %q not supplied", f.Name, p.Name)
			default:
				scope.Set(p.Name, nil)
			}
			continue
		}
		v, err := binding.Coerce(supplied, p.Type)
		if err != nil {
			return nil, fmt.Errorf("funcrt: %s(%s): %w", f.Name, p.Name, err)
		}
		scope.Set(p.Name, v)
	}
	return scope, nil
}

// execute runs the body, retrying up to the declared count. The first
// signal is the result; a body with no signal yields null.
func (r *Runtime) execute(ctx context.Context, f *ast.Function, scope *binding.Context) (any, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.Timeout)*time.Second)
		defer cancel()
	}

	attempts := f.Retry + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			r.log.WarnContext(ctx, "retrying function", "function", f.Name, "attempt", attempt+1, "error", lastErr)
			if f.RetryDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(f.RetryDelay * float64(time.Second))):
				}
			}
		}
		sig, err := r.in.ExecBody(ctx, f.Body, scope.Child())
		if err == nil {
			return sig.Value, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("funcrt: %s failed after %d attempt(s): %w", f.Name, attempts, lastErr)
}

// callKey hashes the function name with its canonical argument encoding.
// JSON keeps map keys sorted, so equal argument sets hash equally.
func callKey(f *ast.Function, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("funcrt: %s: arguments are not encodable: %w", f.Name, err)
	}
	sum := sha256.Sum256(append([]byte(f.Name+"\x00"), raw...))
	return "fn:" + hex.EncodeToString(sum[:]), nil
}

type cachedResult struct {
	Value any `json:"value"`
}

func (r *Runtime) lookup(ctx context.Context, key string) (any, bool) {
	if r.store == nil {
		return nil, false
	}
	var entry cachedResult
	err := r.store.GetJSON(ctx, key, &entry)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.WarnContext(ctx, "cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	return entry.Value, true
}

func (r *Runtime) remember(ctx context.Context, key string, value any, ttl time.Duration) {
	if r.store == nil {
		return
	}
	if err := r.store.SetJSON(ctx, key, cachedResult{Value: value}, ttl); err != nil {
		r.log.WarnContext(ctx, "cache store failed", "key", key, "error", err)
	}
}
