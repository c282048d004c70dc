package interp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
)

// setExecutor declares or mutates a binding. It never yields a signal;
// value resolution, constraint checks, and coercion all happen before
// any mutation so a failing set leaves the context untouched.
type setExecutor struct {
	in *Interpreter
}

func (*setExecutor) Kind() ast.NodeKind { return ast.KindSet }

func (e *setExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	s := node.(*ast.Set)

	value, err := e.resolveValue(s, env)
	if err != nil {
		return None(), err
	}
	if err := checkConstraints(s, value); err != nil {
		return None(), err
	}
	if value, err = binding.Coerce(value, s.Type); err != nil {
		return None(), err
	}

	result, err := applyOperation(s, value, env)
	if err != nil {
		return None(), err
	}

	scope := s.Scope
	if s.Persist {
		scope = "global"
	}
	if err := env.SetScoped(s.Name, result, scope); err != nil {
		return None(), err
	}
	if s.Persist {
		if e.in.store == nil {
			return None(), execErr(s, "persist requested but no variable store is configured")
		}
		if err := e.in.store.Persist(ctx, s.Name, result, s.TTL, s.Encrypt); err != nil {
			return None(), fmt.Errorf("persist %q: %w", s.Name, err)
		}
	}
	return None(), nil
}

// resolveValue resolves the value with default fallback. Required and
// nullable are enforced here, before any mutation.
func (e *setExecutor) resolveValue(s *ast.Set, env *binding.Context) (any, error) {
	var value any
	if s.Value != "" {
		v, err := env.Resolve(s.Value)
		if err != nil {
			var unresolved *binding.UnresolvedError
			if !errors.As(err, &unresolved) || s.Default == "" {
				return nil, err
			}
		} else {
			value = v
		}
	}
	if value == nil && s.Default != "" {
		v, err := env.Resolve(s.Default)
		if err != nil {
			return nil, err
		}
		value = v
	}
	if value == nil {
		if s.Required {
			return nil, execErr(s, "required value for %q resolved to null", s.Name)
		}
		// An expression that explicitly resolved to null violates a
		// non-nullable declaration; an omitted value does not.
		if !s.Nullable && s.Value != "" && s.Type != ast.TypeNull {
			return nil, execErr(s, "null value for non-nullable %q", s.Name)
		}
	}
	return value, nil
}

func checkConstraints(s *ast.Set, value any) error {
	if value == nil {
		return nil
	}
	if len(s.Enum) > 0 {
		str := binding.Stringify(value)
		ok := false
		for _, allowed := range s.Enum {
			if str == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return execErr(s, "value %q not in enum [%s]", str, strings.Join(s.Enum, ", "))
		}
	}
	if s.Pattern != "" && s.Op() == ast.OpAssign {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return execErr(s, "invalid pattern %q: %v", s.Pattern, err)
		}
		if !re.MatchString(binding.Stringify(value)) {
			return execErr(s, "value %q does not match pattern %q", binding.Stringify(value), s.Pattern)
		}
	}
	if s.Min != nil || s.Max != nil {
		f, ok := binding.ToFloat(value)
		if !ok {
			return execErr(s, "min/max constraint on non-numeric value %q", binding.Stringify(value))
		}
		if s.Min != nil && f < *s.Min {
			return execErr(s, "value %v below min %v", f, *s.Min)
		}
		if s.Max != nil && f > *s.Max {
			return execErr(s, "value %v above max %v", f, *s.Max)
		}
	}
	if s.MinLength != nil || s.MaxLength != nil {
		n := valueLength(value)
		if s.MinLength != nil && n < *s.MinLength {
			return execErr(s, "length %d below min_length %d", n, *s.MinLength)
		}
		if s.MaxLength != nil && n > *s.MaxLength {
			return execErr(s, "length %d above max_length %d", n, *s.MaxLength)
		}
	}
	return nil
}

func valueLength(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return len(binding.Stringify(t))
	}
}

// applyOperation computes the new binding from the existing one and the
// resolved value. Numeric operations on a non-numeric existing binding
// and collection operations on a non-array binding are errors.
func applyOperation(s *ast.Set, value any, env *binding.Context) (any, error) {
	op := s.Op()
	switch op {
	case ast.OpAssign:
		return value, nil
	case ast.OpIncrement, ast.OpDecrement, ast.OpAdd, ast.OpMultiply:
		return applyNumeric(s, op, value, env)
	case ast.OpAppend, ast.OpPrepend, ast.OpRemove, ast.OpRemoveAt, ast.OpClear,
		ast.OpSort, ast.OpReverse, ast.OpUnique:
		return applyArray(s, op, value, env)
	case ast.OpMerge, ast.OpSetProperty, ast.OpDeleteProperty:
		return applyObject(s, op, value, env)
	case ast.OpClone:
		return deepCopy(value), nil
	case ast.OpUppercase, ast.OpLowercase, ast.OpTrim, ast.OpFormat:
		return applyString(s, op, value, env)
	default:
		return nil, execErr(s, "unsupported operation %q", op)
	}
}

func applyNumeric(s *ast.Set, op ast.SetOperation, value any, env *binding.Context) (any, error) {
	current := 0.0
	if existing, ok := env.Get(s.Name); ok && existing != nil {
		f, numeric := binding.ToFloat(existing)
		if !numeric {
			return nil, execErr(s, "%s on non-numeric binding %q (%s)", op, s.Name, binding.Stringify(existing))
		}
		current = f
	}
	delta := 1.0
	if value != nil {
		f, ok := binding.ToFloat(value)
		if !ok {
			return nil, execErr(s, "%s value %q is not numeric", op, binding.Stringify(value))
		}
		delta = f
	}
	switch op {
	case ast.OpIncrement, ast.OpAdd:
		return current + delta, nil
	case ast.OpDecrement:
		return current - delta, nil
	case ast.OpMultiply:
		return current * delta, nil
	}
	return nil, execErr(s, "unsupported numeric operation %q", op)
}

func applyArray(s *ast.Set, op ast.SetOperation, value any, env *binding.Context) (any, error) {
	var arr []any
	if existing, ok := env.Get(s.Name); ok && existing != nil {
		typed, isArr := existing.([]any)
		if !isArr {
			return nil, execErr(s, "%s on non-array binding %q", op, s.Name)
		}
		arr = append([]any(nil), typed...)
	} else if op != ast.OpAppend && op != ast.OpPrepend && op != ast.OpClear {
		return nil, execErr(s, "%s on non-array binding %q", op, s.Name)
	}

	switch op {
	case ast.OpAppend:
		return append(arr, value), nil
	case ast.OpPrepend:
		return append([]any{value}, arr...), nil
	case ast.OpRemove:
		out := arr[:0]
		for _, item := range arr {
			if binding.Stringify(item) != binding.Stringify(value) {
				out = append(out, item)
			}
		}
		return out, nil
	case ast.OpRemoveAt:
		idx, ok := binding.ToFloat(value)
		if !ok {
			return nil, execErr(s, "removeAt index %q is not numeric", binding.Stringify(value))
		}
		i := int(idx)
		if i < 0 || i >= len(arr) {
			return nil, execErr(s, "removeAt index %d out of range [0, %d)", i, len(arr))
		}
		return append(arr[:i], arr[i+1:]...), nil
	case ast.OpClear:
		return []any{}, nil
	case ast.OpSort:
		sort.SliceStable(arr, func(a, b int) bool {
			return lessValues(arr[a], arr[b])
		})
		return arr, nil
	case ast.OpReverse:
		for a, b := 0, len(arr)-1; a < b; a, b = a+1, b-1 {
			arr[a], arr[b] = arr[b], arr[a]
		}
		return arr, nil
	case ast.OpUnique:
		seen := make(map[string]bool, len(arr))
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			key := binding.Stringify(item)
			if !seen[key] {
				seen[key] = true
				out = append(out, item)
			}
		}
		return out, nil
	}
	return nil, execErr(s, "unsupported array operation %q", op)
}

func lessValues(a, b any) bool {
	af, aok := binding.ToFloat(a)
	bf, bok := binding.ToFloat(b)
	if aok && bok {
		return af < bf
	}
	return binding.Stringify(a) < binding.Stringify(b)
}

func applyObject(s *ast.Set, op ast.SetOperation, value any, env *binding.Context) (any, error) {
	existing, ok := env.Get(s.Name)
	if !ok || existing == nil {
		existing = map[string]any{}
	}
	obj, isMap := existing.(map[string]any)
	if !isMap {
		return nil, execErr(s, "%s on non-object binding %q", op, s.Name)
	}
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}

	switch op {
	case ast.OpMerge:
		patch, isPatch := value.(map[string]any)
		if !isPatch {
			return nil, execErr(s, "merge value is not an object (%T)", value)
		}
		for k, v := range patch {
			out[k] = v
		}
		return out, nil
	case ast.OpSetProperty:
		if s.Pattern == "" {
			return nil, execErr(s, "setProperty needs the property name in 'pattern'")
		}
		out[s.Pattern] = value
		return out, nil
	case ast.OpDeleteProperty:
		key := binding.Stringify(value)
		if key == "" {
			key = s.Pattern
		}
		if key == "" {
			return nil, execErr(s, "deleteProperty needs a property name")
		}
		delete(out, key)
		return out, nil
	}
	return nil, execErr(s, "unsupported object operation %q", op)
}

func applyString(s *ast.Set, op ast.SetOperation, value any, env *binding.Context) (any, error) {
	operand := value
	if operand == nil || binding.Stringify(operand) == "" {
		if existing, ok := env.Get(s.Name); ok {
			operand = existing
		}
	}
	str := binding.Stringify(operand)
	switch op {
	case ast.OpUppercase:
		return strings.ToUpper(str), nil
	case ast.OpLowercase:
		return strings.ToLower(str), nil
	case ast.OpTrim:
		return strings.TrimSpace(str), nil
	case ast.OpFormat:
		if s.Pattern == "" {
			return str, nil
		}
		return fmt.Sprintf(s.Pattern, operand), nil
	}
	return nil, execErr(s, "unsupported string operation %q", op)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
