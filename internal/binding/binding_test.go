package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-lang/lattice/internal/ast"
)

type mapStore struct {
	vars map[string]any
}

func (s *mapStore) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *mapStore) Set(name string, v any) error {
	s.vars[name] = v
	return nil
}

func TestContextScopeChain(t *testing.T) {
	root := NewContext(nil)
	root.Set("x", 1)
	root.Set("y", "outer")

	child := root.Child()
	child.Set("y", "inner")

	v, ok := child.Get("x")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, _ = child.Get("y")
	assert.Equal(t, "inner", v, "child binding shadows parent")
	v, _ = root.Get("y")
	assert.Equal(t, "outer", v, "parent binding untouched")

	assert.True(t, child.Has("x"))
	assert.False(t, child.Has("z"))
}

func TestContextDottedPath(t *testing.T) {
	c := NewContext(nil)
	c.Set("user", map[string]any{
		"name": "ada",
		"tags": []any{"admin", "ops"},
		"address": map[string]any{
			"city": "London",
		},
	})

	v, ok := c.Get("user.address.city")
	require.True(t, ok)
	assert.Equal(t, "London", v)

	v, ok = c.Get("user.tags.1")
	require.True(t, ok)
	assert.Equal(t, "ops", v)

	_, ok = c.Get("user.tags.7")
	assert.False(t, ok)
	_, ok = c.Get("user.missing")
	assert.False(t, ok)
}

func TestContextGlobalStore(t *testing.T) {
	store := &mapStore{vars: map[string]any{"site": "lattice"}}
	root := NewContext(store)
	child := root.Child()

	v, ok := child.Get("site")
	require.True(t, ok)
	assert.Equal(t, "lattice", v)

	require.NoError(t, child.SetScoped("counter", 5, "global"))
	assert.Equal(t, 5, store.vars["counter"], "global writes go through the store")

	v, ok = root.Get("counter")
	require.True(t, ok)
	assert.Equal(t, 5, v)

	err := child.SetScoped("x", 1, "session")
	assert.Error(t, err)
}

func TestEvalCondition(t *testing.T) {
	c := NewContext(nil)
	c.Set("score", 85.0)
	c.Set("name", "ada")
	c.Set("roles", []any{"admin", "ops"})
	c.Set("user", map[string]any{"active": true})
	c.Set("empty", nil)

	tests := []struct {
		expr string
		want bool
	}{
		{"score >= 80", true},
		{"score > 90", false},
		{"score == 85", true},
		{"score != 85", false},
		{"name == 'ada'", true},
		{"name == \"grace\"", false},
		{"score >= 80 and name == 'ada'", true},
		{"score > 90 or name == 'ada'", true},
		{"not (score > 90)", true},
		{"'admin' in roles", true},
		{"'root' in roles", false},
		{"user.active", true},
		{"empty is null", true},
		{"empty is not null", false},
		{"name is not null", true},
		{"missing is null", true},
		{"score + 10 > 90", true},
		{"score - 10 >= 80", false},
		{"score * 2 == 170", true},
		{"(score + 15) / 2 == 50", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := EvalCondition(c, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	c := NewContext(nil)
	c.Set("name", "ada")

	_, err := EvalString(c, "missing + 1")
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Path)

	_, err = EvalString(c, "1 / 0")
	assert.ErrorContains(t, err, "division by zero")

	_, err = EvalString(c, "name * 2")
	assert.ErrorContains(t, err, "needs numeric operands")

	_, err = EvalString(c, "&&bad")
	assert.Error(t, err)
}

func TestEvalArithmetic(t *testing.T) {
	c := NewContext(nil)
	c.Set("a", 2.0)
	c.Set("b", 3.0)
	c.Set("greeting", "hello ")
	c.Set("name", "ada")

	v, err := EvalString(c, "a + b * 2")
	require.NoError(t, err)
	assert.Equal(t, 8.0, v, "multiplication binds tighter than addition")

	v, err = EvalString(c, "-a + 5")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = EvalString(c, "7 % 3")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = EvalString(c, "greeting + name")
	require.NoError(t, err)
	assert.Equal(t, "hello ada", v)
}

func TestResolve(t *testing.T) {
	c := NewContext(nil)
	c.Set("name", "ada")
	c.Set("count", 3.0)
	c.Set("items", []any{"a", "b"})

	t.Run("exact expression keeps type", func(t *testing.T) {
		v, err := c.Resolve("{count}")
		require.NoError(t, err)
		assert.Equal(t, 3.0, v)

		v, err = c.Resolve("{items}")
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, v)
	})

	t.Run("embedded expressions stringify", func(t *testing.T) {
		v, err := c.Resolve("hello {name}, you have {count} items")
		require.NoError(t, err)
		assert.Equal(t, "hello ada, you have 3 items", v)
	})

	t.Run("plain string passes through", func(t *testing.T) {
		v, err := c.Resolve("just text")
		require.NoError(t, err)
		assert.Equal(t, "just text", v)
	})

	t.Run("unresolvable is an error", func(t *testing.T) {
		_, err := c.Resolve("{missing}")
		var unresolved *UnresolvedError
		assert.ErrorAs(t, err, &unresolved)

		_, err = c.Resolve("hi {missing}")
		assert.Error(t, err)
	})

	t.Run("fallback", func(t *testing.T) {
		assert.Equal(t, "anon", c.ResolveWithDefault("{missing}", "anon"))
		assert.Equal(t, 3.0, c.ResolveWithDefault("{count}", "unused"))
	})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		typ     ast.ValueType
		want    any
		wantErr string
	}{
		{name: "string number to number", in: "42", typ: ast.TypeNumber, want: 42.0},
		{name: "bad number", in: "forty-two", typ: ast.TypeNumber, wantErr: "cannot coerce"},
		{name: "number to string", in: 2.5, typ: ast.TypeString, want: "2.5"},
		{name: "truthy words", in: "yes", typ: ast.TypeBoolean, want: true},
		{name: "falsy words", in: "off", typ: ast.TypeBoolean, want: false},
		{name: "bad boolean", in: "maybe", typ: ast.TypeBoolean, wantErr: "cannot coerce"},
		{name: "json array literal", in: `[1, "two"]`, typ: ast.TypeArray, want: []any{1.0, "two"}},
		{name: "bad array", in: "not json", typ: ast.TypeArray, wantErr: "invalid array literal"},
		{name: "json object literal", in: `{"a": 1}`, typ: ast.TypeObject, want: map[string]any{"a": 1.0}},
		{name: "untyped passthrough", in: []any{1.0}, typ: "", want: []any{1.0}},
		{name: "nil stays nil", in: nil, typ: ast.TypeNumber, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.typ)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy([]any{1}))
	assert.True(t, Truthy(map[string]any{"k": 1}))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "3", Stringify(3.0))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `["a","b"]`, Stringify([]any{"a", "b"}))
}
