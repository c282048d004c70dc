package parser

import (
	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type applicationParser struct{}

func (*applicationParser) Names() []string { return []string{"application"} }

func (*applicationParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	id, err := requireAttr(pc, el, "id")
	if err != nil {
		return nil, err
	}
	app := &ast.Application{
		Src:     pc.pos(el),
		ID:      id,
		AppKind: attrString(el, "type"),
	}
	for _, child := range el.ChildElements() {
		node, err := pc.registry.Parse(pc, child)
		if err != nil {
			return nil, err
		}
		switch n := node.(type) {
		case *ast.Datasource:
			app.Datasources = append(app.Datasources, n)
		case *ast.Route:
			app.Routes = append(app.Routes, n)
		case *ast.Component:
			app.Components = append(app.Components, n)
		case *ast.Function:
			app.Functions = append(app.Functions, n)
		case *ast.Job:
			app.Jobs = append(app.Jobs, n)
		case *ast.Schedule:
			app.Schedules = append(app.Schedules, n)
		case nil:
			// Skipped element.
		default:
			return nil, newError(pc.pos(child), child.Tag, "not allowed directly under <application>")
		}
	}
	return app, nil
}

type datasourceParser struct{}

func (*datasourceParser) Names() []string { return []string{"datasource"} }

func (*datasourceParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	kind, err := requireAttr(pc, el, "type")
	if err != nil {
		return nil, err
	}
	ds := &ast.Datasource{
		Src:    pc.pos(el),
		Name:   name,
		DSKind: ast.DatasourceKind(kind),
		URL:    attrString(el, "url"),
		Model:  attrString(el, "model"),
	}
	if !ast.ValidDatasourceKinds[ds.DSKind] {
		return nil, newAttrError(pc.pos(el), el.Tag, "type", "unknown datasource type %q", kind)
	}
	for _, opt := range el.SelectElements("option") {
		if ds.Options == nil {
			ds.Options = make(map[string]string)
		}
		key, err := requireAttr(pc, opt, "name")
		if err != nil {
			return nil, err
		}
		ds.Options[key] = attrString(opt, "value")
	}
	// Later queries against this datasource resolve through this table
	// for magic conversion.
	pc.declareDatasource(ds)
	return ds, nil
}

type routeParser struct{}

func (*routeParser) Names() []string { return []string{"route"} }

func (*routeParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	path, err := requireAttr(pc, el, "path")
	if err != nil {
		return nil, err
	}
	component, err := requireAttr(pc, el, "component")
	if err != nil {
		return nil, err
	}
	return &ast.Route{
		Src:       pc.pos(el),
		Path:      path,
		Component: component,
		Title:     attrString(el, "title"),
	}, nil
}
