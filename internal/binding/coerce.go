package binding

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
)

// Truthy reduces any value to a condition outcome: nil, false, zero,
// empty string, and empty collections are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// ToFloat widens any numeric value (or numeric string) to float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Stringify renders a value for embedding into text. Collections render
// as JSON; floats drop a trailing ".0".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	case []any, map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Coerce converts a value to the declared type. A failed numeric or
// boolean parse is a type error, never a silent fallback.
func Coerce(v any, t ast.ValueType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case "", ast.TypeJSON:
		return v, nil
	case ast.TypeString:
		return Stringify(v), nil
	case ast.TypeNumber, ast.TypeDecimal:
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("binding: cannot coerce %q to %s", Stringify(v), t)
		}
		return f, nil
	case ast.TypeBoolean:
		switch s := strings.ToLower(strings.TrimSpace(Stringify(v))); s {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		default:
			return nil, fmt.Errorf("binding: cannot coerce %q to boolean", s)
		}
	case ast.TypeDate:
		return parseTime(v, "2006-01-02")
	case ast.TypeDatetime:
		return parseTime(v, time.RFC3339)
	case ast.TypeArray:
		switch a := v.(type) {
		case []any:
			return a, nil
		case string:
			return ParseArray(a)
		default:
			return nil, fmt.Errorf("binding: cannot coerce %T to array", v)
		}
	case ast.TypeObject:
		switch o := v.(type) {
		case map[string]any:
			return o, nil
		case string:
			var m map[string]any
			if err := json.Unmarshal([]byte(o), &m); err != nil {
				return nil, fmt.Errorf("binding: cannot coerce %q to object: %w", o, err)
			}
			return m, nil
		default:
			return nil, fmt.Errorf("binding: cannot coerce %T to object", v)
		}
	case ast.TypeBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		default:
			return nil, fmt.Errorf("binding: cannot coerce %T to binary", v)
		}
	case ast.TypeNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("binding: unknown type %q", t)
	}
}

func parseTime(v any, layout string) (any, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s := strings.TrimSpace(Stringify(v))
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil, fmt.Errorf("binding: cannot parse %q as %s", s, layout)
	}
	return t, nil
}

// ParseArray reads a JSON array literal into a value list.
func ParseArray(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	var out []any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("binding: invalid array literal %q: %w", s, err)
	}
	return out, nil
}
