package binding

import (
	"regexp"
	"strings"
)

var bindingRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Resolve applies databinding to s. A string that is exactly one
// "{expr}" yields the expression's typed value; embedded expressions are
// stringified in place; a string with no expressions is returned as-is.
// Unresolvable expressions are errors.
func (c *Context) Resolve(s string) (any, error) {
	if expr, ok := wholeExpr(s); ok {
		return EvalString(c, expr)
	}
	var firstErr error
	out := bindingRe.ReplaceAllStringFunc(s, func(match string) string {
		v, err := EvalString(c, match[1:len(match)-1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return Stringify(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// ResolveWithDefault is Resolve with a fallback for unresolvable
// expressions.
func (c *Context) ResolveWithDefault(s string, fallback any) any {
	v, err := c.Resolve(s)
	if err != nil {
		return fallback
	}
	return v
}

// ResolveString resolves s and stringifies the result.
func (c *Context) ResolveString(s string) (string, error) {
	v, err := c.Resolve(s)
	if err != nil {
		return "", err
	}
	return Stringify(v), nil
}

// wholeExpr reports whether s is exactly one databinding expression and
// returns its inner text.
func wholeExpr(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return "", false
	}
	inner := trimmed[1 : len(trimmed)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	return inner, true
}
