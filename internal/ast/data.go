package ast

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe matches :name placeholders in SQL text. A double colon
// (Postgres cast) is not a placeholder.
var placeholderRe = regexp.MustCompile(`(^|[^:]):([a-zA-Z_][a-zA-Z0-9_]*)`)

// interpolationRe matches {identifier} interpolation, which is forbidden
// inside SQL text.
var interpolationRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// Query executes SQL against a named datasource and binds the row-set
// under Name. Only :name placeholders backed by declared params are
// allowed; brace interpolation is rejected at parse time.
type Query struct {
	Src        Position
	Name       string
	Datasource string
	SQL        string
	Params     []*QueryParam
	Cache      bool
	TTL        int
	Reactive   bool
	Paginate   bool
}

func (q *Query) Kind() NodeKind { return KindQuery }
func (q *Query) Pos() Position  { return q.Src }
func (q *Query) stmtNode()      {}
func (q *Query) String() string {
	return fmt.Sprintf("Query{Name: %q, Datasource: %q, Params: %d}", q.Name, q.Datasource, len(q.Params))
}

func (q *Query) Validate() []string {
	var errs []string
	if q.Name == "" {
		errs = append(errs, "query: missing required attribute 'name'")
	}
	if q.Datasource == "" {
		errs = append(errs, fmt.Sprintf("query %q: missing required attribute 'datasource'", q.Name))
	}
	if ids := q.Interpolations(); len(ids) > 0 {
		errs = append(errs, fmt.Sprintf("query %q: direct interpolation of {%s} in SQL is not allowed; use :name placeholders",
			q.Name, strings.Join(ids, "}, {")))
	}
	declared := make(map[string]bool, len(q.Params))
	for _, p := range q.Params {
		declared[p.Name] = true
		errs = validateChildren(errs, p)
	}
	for _, ph := range q.Placeholders() {
		if !declared[ph] {
			errs = append(errs, fmt.Sprintf("query %q: placeholder :%s has no declared param", q.Name, ph))
		}
	}
	return errs
}

// Placeholders returns the distinct :name placeholders referenced by the
// SQL text, in order of first appearance.
func (q *Query) Placeholders() []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(q.SQL, -1) {
		name := m[2]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Interpolations returns any {identifier} occurrences inside the SQL text.
func (q *Query) Interpolations() []string {
	var out []string
	for _, m := range interpolationRe.FindAllStringSubmatch(q.SQL, -1) {
		out = append(out, m[1])
	}
	return out
}

// QueryParam declares one named SQL parameter.
type QueryParam struct {
	Src      Position
	Name     string
	Value    string
	Type     ValueType
	Nullable bool
}

func (p *QueryParam) Kind() NodeKind { return KindQueryParam }
func (p *QueryParam) Pos() Position  { return p.Src }
func (p *QueryParam) String() string {
	return fmt.Sprintf("QueryParam{Name: %q, Type: %q}", p.Name, p.Type)
}

func (p *QueryParam) Validate() []string {
	var errs []string
	if p.Name == "" {
		errs = append(errs, "query param: missing required attribute 'name'")
	}
	if p.Type != "" && !ValidValueTypes[p.Type] {
		errs = append(errs, fmt.Sprintf("query param %q: unknown type %q", p.Name, p.Type))
	}
	return errs
}

// Invoke calls a function, component, or remote target and binds the
// result under Name. Exactly one target must be set.
type Invoke struct {
	Src        Position
	Name       string
	Function   string
	Component  string
	URL        string
	Endpoint   string
	Service    string
	Method     string
	Headers    map[string]string
	Params     map[string]string
	Auth       string
	Timeout    int
	Retry      int
	RetryDelay float64
	Cache      bool
}

func (i *Invoke) Kind() NodeKind { return KindInvoke }
func (i *Invoke) Pos() Position  { return i.Src }
func (i *Invoke) stmtNode()      {}
func (i *Invoke) String() string {
	return fmt.Sprintf("Invoke{Name: %q, Target: %q}", i.Name, i.TargetKind())
}

// TargetKind names the single configured target kind, or "" if none.
func (i *Invoke) TargetKind() string {
	switch {
	case i.Function != "":
		return "function"
	case i.Component != "":
		return "component"
	case i.URL != "":
		return "url"
	case i.Endpoint != "":
		return "endpoint"
	case i.Service != "":
		return "service"
	}
	return ""
}

func (i *Invoke) targetCount() int {
	n := 0
	for _, t := range []string{i.Function, i.Component, i.URL, i.Endpoint, i.Service} {
		if t != "" {
			n++
		}
	}
	return n
}

func (i *Invoke) Validate() []string {
	var errs []string
	if i.Name == "" {
		errs = append(errs, "invoke: missing required attribute 'name'")
	}
	switch n := i.targetCount(); {
	case n == 0:
		errs = append(errs, fmt.Sprintf("invoke %q: requires exactly one of function, component, url, endpoint, service", i.Name))
	case n > 1:
		errs = append(errs, fmt.Sprintf("invoke %q: ambiguous target; only one of function, component, url, endpoint, service is allowed", i.Name))
	}
	if i.Method != "" && !ValidHTTPMethods[i.Method] {
		errs = append(errs, fmt.Sprintf("invoke %q: invalid method %q", i.Name, i.Method))
	}
	if i.Retry < 0 {
		errs = append(errs, fmt.Sprintf("invoke %q: retry must not be negative", i.Name))
	}
	return errs
}

// Data loads and reshapes inline or external data (csv, json, xml, or a
// transform over an existing binding) and binds the result under Name.
type Data struct {
	Src        Position
	Name       string
	Source     string
	DataKind   string // csv, json, xml, transform
	Columns    []string
	Content    string
	Transforms []*Transform
}

func (d *Data) Kind() NodeKind { return KindData }
func (d *Data) Pos() Position  { return d.Src }
func (d *Data) stmtNode()      {}
func (d *Data) String() string {
	return fmt.Sprintf("Data{Name: %q, Kind: %q, Transforms: %d}", d.Name, d.DataKind, len(d.Transforms))
}

func (d *Data) Validate() []string {
	var errs []string
	if d.Name == "" {
		errs = append(errs, "data: missing required attribute 'name'")
	}
	switch d.DataKind {
	case "csv", "json", "xml", "transform":
	case "":
		errs = append(errs, fmt.Sprintf("data %q: missing required attribute 'type'", d.Name))
	default:
		errs = append(errs, fmt.Sprintf("data %q: unknown type %q", d.Name, d.DataKind))
	}
	if d.DataKind == "transform" && d.Source == "" {
		errs = append(errs, fmt.Sprintf("data %q: transform requires 'source'", d.Name))
	}
	for _, t := range d.Transforms {
		errs = validateChildren(errs, t)
	}
	return errs
}

// Transform is one step of a Data pipeline.
type Transform struct {
	Src       Position
	TransKind string // filter, sort, limit, compute
	Field     string
	Condition string
	Order     string
	Count     int
	Expr      string
}

func (t *Transform) Kind() NodeKind { return KindTransform }
func (t *Transform) Pos() Position  { return t.Src }
func (t *Transform) String() string {
	return fmt.Sprintf("Transform{Kind: %q, Field: %q}", t.TransKind, t.Field)
}

func (t *Transform) Validate() []string {
	var errs []string
	switch t.TransKind {
	case "limit":
		if t.Count < 1 {
			errs = append(errs, fmt.Sprintf("transform limit: count must be positive, got %d", t.Count))
		}
	case "filter", "sort", "compute":
	default:
		errs = append(errs, fmt.Sprintf("transform: unknown kind %q", t.TransKind))
	}
	return errs
}
