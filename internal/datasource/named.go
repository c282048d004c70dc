package datasource

import (
	"fmt"
	"strings"
)

type placeholderStyle int

const (
	// styleDollar numbers placeholders, reusing one ordinal per name.
	styleDollar placeholderStyle = iota
	// styleQuestion emits one ? per occurrence.
	styleQuestion
)

// rewriteNamed converts :name placeholders to the driver's positional
// form and lines the parameter values up with them. Text inside single
// quotes and the :: cast operator pass through untouched.
func rewriteNamed(stmt string, params map[string]any, style placeholderStyle) (string, []any, error) {
	var out strings.Builder
	var args []any
	ordinals := make(map[string]int)

	inString := false
	for i := 0; i < len(stmt); i++ {
		ch := stmt[i]
		if ch == '\'' {
			inString = !inString
			out.WriteByte(ch)
			continue
		}
		if inString || ch != ':' {
			out.WriteByte(ch)
			continue
		}
		// A double colon is a cast, not a placeholder.
		if i+1 < len(stmt) && stmt[i+1] == ':' {
			out.WriteString("::")
			i++
			continue
		}
		if i > 0 && stmt[i-1] == ':' {
			out.WriteByte(ch)
			continue
		}
		start := i + 1
		end := start
		for end < len(stmt) && isIdentChar(stmt[end], end > start) {
			end++
		}
		if end == start {
			out.WriteByte(ch)
			continue
		}
		name := stmt[start:end]
		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("datasource: no value for placeholder :%s", name)
		}
		switch style {
		case styleDollar:
			ord, seen := ordinals[name]
			if !seen {
				args = append(args, value)
				ord = len(args)
				ordinals[name] = ord
			}
			fmt.Fprintf(&out, "$%d", ord)
		case styleQuestion:
			args = append(args, value)
			out.WriteByte('?')
		}
		i = end - 1
	}
	return out.String(), args, nil
}

func isIdentChar(ch byte, notFirst bool) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		return true
	case ch >= '0' && ch <= '9':
		return notFirst
	default:
		return false
	}
}
