package parser

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type queryParser struct{}

func (*queryParser) Names() []string { return []string{"query"} }

func (*queryParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	dsName, err := requireAttr(pc, el, "datasource")
	if err != nil {
		return nil, err
	}

	params, err := parseQueryParams(pc, el)
	if err != nil {
		return nil, err
	}
	text := queryText(el)

	// Magic conversion: queries against llm and knowledge/vector
	// datasources become LLMGenerate and Search nodes. Prompts and search
	// text may use databinding, so the SQL guard does not apply to them.
	if ds := pc.Datasource(dsName); ds != nil {
		switch ds.DSKind {
		case ast.DatasourceLLM:
			return parseAsLLMGenerate(pc, el, name, ds, text, params)
		case ast.DatasourceKnowledge, ast.DatasourceVector:
			return parseAsSearch(pc, el, name, dsName, text, params)
		}
	}

	q := &ast.Query{
		Src:        pc.pos(el),
		Name:       name,
		Datasource: dsName,
		SQL:        text,
		Params:     params,
	}
	if q.Cache, err = attrBool(pc, el, "cache"); err != nil {
		return nil, err
	}
	if q.TTL, err = attrInt(pc, el, "ttl"); err != nil {
		return nil, err
	}
	if q.Reactive, err = attrBool(pc, el, "reactive"); err != nil {
		return nil, err
	}
	if q.Paginate, err = attrBool(pc, el, "paginate"); err != nil {
		return nil, err
	}

	// Injection guard. Brace interpolation would splice raw context values
	// into the SQL text; only declared :name placeholders are allowed.
	if ids := q.Interpolations(); len(ids) > 0 {
		return nil, newError(pc.pos(el), el.Tag,
			"query %q: interpolation of {%s} in SQL is not allowed, use :name placeholders",
			name, strings.Join(ids, "}, {"))
	}
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	for _, ph := range q.Placeholders() {
		if !declared[ph] {
			return nil, newError(pc.pos(el), el.Tag,
				"query %q: placeholder :%s has no declared <param>", name, ph)
		}
	}
	return q, nil
}

// queryText returns the query body: an explicit <sql> child wins,
// otherwise the element's own character data.
func queryText(el *etree.Element) string {
	if sql := el.SelectElement("sql"); sql != nil {
		return strings.TrimSpace(sql.Text())
	}
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func parseQueryParams(pc *ParseContext, el *etree.Element) ([]*ast.QueryParam, error) {
	var params []*ast.QueryParam
	for _, p := range el.SelectElements("param") {
		name, err := requireAttr(pc, p, "name")
		if err != nil {
			return nil, err
		}
		nullable, err := attrBool(pc, p, "nullable")
		if err != nil {
			return nil, err
		}
		value := attrString(p, "value")
		if value == "" {
			value = strings.TrimSpace(p.Text())
		}
		params = append(params, &ast.QueryParam{
			Src:      pc.pos(p),
			Name:     name,
			Value:    value,
			Type:     ast.ValueType(attrString(p, "type")),
			Nullable: nullable,
		})
	}
	return params, nil
}

func parseAsLLMGenerate(pc *ParseContext, el *etree.Element, name string, ds *ast.Datasource, prompt string, params []*ast.QueryParam) (ast.Node, error) {
	temp, err := attrFloatPtr(pc, el, "temperature")
	if err != nil {
		return nil, err
	}
	maxTokens, err := attrInt(pc, el, "max_tokens")
	if err != nil {
		return nil, err
	}
	model := attrString(el, "model")
	if model == "" {
		model = ds.Model
	}
	return &ast.LLMGenerate{
		Src:         pc.pos(el),
		Name:        name,
		Datasource:  ds.Name,
		Model:       model,
		Prompt:      prompt,
		System:      attrString(el, "system"),
		Temperature: temp,
		MaxTokens:   maxTokens,
		Params:      params,
	}, nil
}

func parseAsSearch(pc *ParseContext, el *etree.Element, name, dsName, query string, params []*ast.QueryParam) (ast.Node, error) {
	limit, err := attrInt(pc, el, "limit")
	if err != nil {
		return nil, err
	}
	threshold, err := attrFloatPtr(pc, el, "threshold")
	if err != nil {
		return nil, err
	}
	return &ast.Search{
		Src:        pc.pos(el),
		Name:       name,
		Datasource: dsName,
		Query:      query,
		Limit:      limit,
		Threshold:  threshold,
		Params:     params,
	}, nil
}

type invokeParser struct{}

func (*invokeParser) Names() []string { return []string{"invoke"} }

func (*invokeParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	inv := &ast.Invoke{
		Src:       pc.pos(el),
		Name:      name,
		Function:  attrString(el, "function"),
		Component: attrString(el, "component"),
		URL:       attrString(el, "url"),
		Endpoint:  attrString(el, "endpoint"),
		Service:   attrString(el, "service"),
		Method:    strings.ToUpper(attrString(el, "method")),
		Auth:      attrString(el, "auth"),
	}
	if inv.Timeout, err = attrInt(pc, el, "timeout"); err != nil {
		return nil, err
	}
	if inv.Retry, err = attrInt(pc, el, "retry"); err != nil {
		return nil, err
	}
	if inv.RetryDelay, err = attrFloat(pc, el, "retry_delay"); err != nil {
		return nil, err
	}
	if inv.Cache, err = attrBool(pc, el, "cache"); err != nil {
		return nil, err
	}
	for _, p := range el.SelectElements("param") {
		key, err := requireAttr(pc, p, "name")
		if err != nil {
			return nil, err
		}
		if inv.Params == nil {
			inv.Params = make(map[string]string)
		}
		inv.Params[key] = attrString(p, "value")
	}
	for _, h := range el.SelectElements("header") {
		key, err := requireAttr(pc, h, "name")
		if err != nil {
			return nil, err
		}
		if inv.Headers == nil {
			inv.Headers = make(map[string]string)
		}
		inv.Headers[key] = attrString(h, "value")
	}
	if errs := inv.Validate(); len(errs) > 0 {
		return nil, newError(pc.pos(el), el.Tag, "%s", strings.Join(errs, "; "))
	}
	return inv, nil
}

type dataParser struct{}

func (*dataParser) Names() []string { return []string{"data"} }

func (*dataParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	kind, err := requireAttr(pc, el, "type")
	if err != nil {
		return nil, err
	}
	d := &ast.Data{
		Src:      pc.pos(el),
		Name:     name,
		Source:   attrString(el, "source"),
		DataKind: kind,
		Columns:  attrList(el, "columns"),
	}
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	d.Content = strings.TrimSpace(b.String())

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "filter":
			d.Transforms = append(d.Transforms, &ast.Transform{
				Src:       pc.pos(child),
				TransKind: "filter",
				Field:     attrString(child, "field"),
				Condition: attrString(child, "condition"),
			})
		case "sort":
			d.Transforms = append(d.Transforms, &ast.Transform{
				Src:       pc.pos(child),
				TransKind: "sort",
				Field:     attrString(child, "field"),
				Order:     attrString(child, "order"),
			})
		case "limit":
			if _, err := requireAttr(pc, child, "count"); err != nil {
				return nil, err
			}
			count, err := attrInt(pc, child, "count")
			if err != nil {
				return nil, err
			}
			if count < 1 {
				return nil, newAttrError(pc.pos(child), child.Tag, "count", "must be a positive integer, got %d", count)
			}
			d.Transforms = append(d.Transforms, &ast.Transform{
				Src:       pc.pos(child),
				TransKind: "limit",
				Count:     count,
			})
		case "compute":
			d.Transforms = append(d.Transforms, &ast.Transform{
				Src:       pc.pos(child),
				TransKind: "compute",
				Field:     attrString(child, "field"),
				Expr:      attrString(child, "expr"),
			})
		default:
			return nil, newError(pc.pos(child), child.Tag, "unknown data transform")
		}
	}
	return d, nil
}
