package funcrt

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/cache"
	"github.com/lattice-lang/lattice/internal/interp"
)

func newRuntime(t *testing.T) (*Runtime, *binding.Context) {
	t.Helper()
	store := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { store.Close() })
	base := binding.NewContext(nil)
	r := New(interp.New(), store, WithBaseContext(base))
	return r, base
}

// countingBody increments a global counter and returns its value, so a
// test can tell how many times the body actually ran.
func countingBody() []ast.Statement {
	return []ast.Statement{
		&ast.Set{Name: "calls", Operation: ast.OpIncrement, Scope: "global"},
		&ast.Return{Value: "{calls}"},
	}
}

func TestCachedFunctionExecutesOnce(t *testing.T) {
	r, base := newRuntime(t)
	f := &ast.Function{Name: "lookup", Cache: true, CacheTTL: 60, Body: countingBody()}
	ctx := context.Background()

	first, err := r.CallFunction(ctx, f, map[string]any{"id": "a"})
	require.NoError(t, err)
	second, err := r.CallFunction(ctx, f, map[string]any{"id": "a"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), first)
	assert.Equal(t, first, second)
	calls, _ := base.Get("calls")
	assert.Equal(t, float64(1), calls)

	// Different arguments miss the cache and run the body again.
	third, err := r.CallFunction(ctx, f, map[string]any{"id": "b"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), third)
}

func TestMemoizedFunctionStoresForever(t *testing.T) {
	r, base := newRuntime(t)
	f := &ast.Function{Name: "fib", Memoize: true, Body: countingBody()}
	ctx := context.Background()

	_, err := r.CallFunction(ctx, f, map[string]any{"n": float64(10)})
	require.NoError(t, err)
	_, err = r.CallFunction(ctx, f, map[string]any{"n": float64(10)})
	require.NoError(t, err)

	calls, _ := base.Get("calls")
	assert.Equal(t, float64(1), calls)
}

func TestUncachedFunctionRunsEveryCall(t *testing.T) {
	r, base := newRuntime(t)
	f := &ast.Function{Name: "tick", Body: countingBody()}
	ctx := context.Background()

	_, err := r.CallFunction(ctx, f, nil)
	require.NoError(t, err)
	_, err = r.CallFunction(ctx, f, nil)
	require.NoError(t, err)

	calls, _ := base.Get("calls")
	assert.Equal(t, float64(2), calls)
}

func TestParamBinding(t *testing.T) {
	r, _ := newRuntime(t)
	f := &ast.Function{
		Name:           "greet",
		ValidateParams: true,
		Params: []*ast.Param{
			{Name: "name", Type: ast.TypeString, Required: true},
			{Name: "count", Type: ast.TypeNumber, Default: "3"},
		},
		Body: []ast.Statement{&ast.Return{Value: "{name} x {count}"}},
	}
	ctx := context.Background()

	t.Run("default applies", func(t *testing.T) {
		out, err := r.CallFunction(ctx, f, map[string]any{"name": "ada"})
		require.NoError(t, err)
		assert.Equal(t, "ada x 3", out)
	})

	t.Run("supplied value coerces", func(t *testing.T) {
		out, err := r.CallFunction(ctx, f, map[string]any{"name": "ada", "count": "5"})
		require.NoError(t, err)
		assert.Equal(t, "ada x 5", out)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := r.CallFunction(ctx, f, map[string]any{"count": float64(1)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required parameter")
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("uncoercible value", func(t *testing.T) {
		_, err := r.CallFunction(ctx, f, map[string]any{"name": "ada", "count": "many"})
		assert.Error(t, err)
	})
}

func TestRequiredParamGatedOnValidate(t *testing.T) {
	// Without validate_params a missing required parameter binds to
	// null instead of failing the call.
	r, _ := newRuntime(t)
	f := &ast.Function{
		Name:   "lenient",
		Params: []*ast.Param{{Name: "who", Type: ast.TypeString, Required: true}},
		Body: []ast.Statement{
			&ast.If{
				Cond: "who is null",
				Then: []ast.Statement{&ast.Return{Value: "nobody"}},
			},
			&ast.Return{Value: "{who}"},
		},
	}

	out, err := r.CallFunction(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, "nobody", out)
}

// flakyBody fails until the global attempt counter reaches failUntil.
func flakyBody(failUntil int) []ast.Statement {
	return []ast.Statement{
		&ast.Set{Name: "attempts", Operation: ast.OpIncrement, Scope: "global"},
		&ast.If{
			Cond: "attempts < " + strconv.Itoa(failUntil),
			Then: []ast.Statement{
				// Increment with a non-numeric value forces a failure.
				&ast.Set{Name: "boom", Operation: ast.OpIncrement, Value: "oops"},
			},
		},
		&ast.Return{Value: "{attempts}"},
	}
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	r, base := newRuntime(t)
	f := &ast.Function{Name: "fetch", Retry: 2, Body: flakyBody(3)}

	out, err := r.CallFunction(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), out)

	attempts, _ := base.Get("attempts")
	assert.Equal(t, float64(3), attempts)
}

func TestRetryExhausted(t *testing.T) {
	r, base := newRuntime(t)
	f := &ast.Function{Name: "fetch", Retry: 1, Body: flakyBody(5)}

	_, err := r.CallFunction(context.Background(), f, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempt(s)")

	attempts, _ := base.Get("attempts")
	assert.Equal(t, float64(2), attempts)
}

func TestComponentCall(t *testing.T) {
	r, _ := newRuntime(t)
	comp := &ast.Component{
		Name:   "Greeter",
		Params: []*ast.Param{{Name: "name", Type: ast.TypeString, Required: true}},
		Statements: []ast.Statement{
			&ast.Return{Value: "hello {name}"},
		},
	}
	require.NoError(t, r.RegisterComponent(comp))

	out, err := r.Call(context.Background(), "Greeter", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)
}

func TestComponentFunctionsRegisterQualified(t *testing.T) {
	r, _ := newRuntime(t)
	comp := &ast.Component{
		Name: "Card",
		Functions: []*ast.Function{
			{Name: "title", Body: []ast.Statement{&ast.Return{Value: "Card title"}}},
		},
	}
	require.NoError(t, r.RegisterComponent(comp))
	ctx := context.Background()

	out, err := r.Call(ctx, "Card.title", nil)
	require.NoError(t, err)
	assert.Equal(t, "Card title", out)

	out, err = r.Call(ctx, "title", nil)
	require.NoError(t, err)
	assert.Equal(t, "Card title", out)
}

func TestDuplicateRegistration(t *testing.T) {
	r, _ := newRuntime(t)
	f := &ast.Function{Name: "dup"}
	require.NoError(t, r.RegisterFunction(f))
	assert.Error(t, r.RegisterFunction(f))

	c := &ast.Component{Name: "Dup"}
	require.NoError(t, r.RegisterComponent(c))
	assert.Error(t, r.RegisterComponent(c))
}

func TestUnknownTarget(t *testing.T) {
	r, _ := newRuntime(t)
	_, err := r.Call(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no function or component")
}

func TestLoadApplication(t *testing.T) {
	r, _ := newRuntime(t)
	app := &ast.Application{
		ID: "demo",
		Functions: []*ast.Function{
			{Name: "ping", Body: []ast.Statement{&ast.Return{Value: "pong"}}},
		},
		Components: []*ast.Component{{Name: "Empty"}},
	}
	require.NoError(t, r.LoadApplication(app))

	out, err := r.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}
