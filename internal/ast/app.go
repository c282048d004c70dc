package ast

import "fmt"

// Application is the root declaration of a Lattice document describing a
// full application: datasources, routes, and owned components.
type Application struct {
	Src         Position
	ID          string
	AppKind     string
	Datasources []*Datasource
	Routes      []*Route
	Components  []*Component
	Functions   []*Function
	Jobs        []*Job
	Schedules   []*Schedule
}

func (a *Application) Kind() NodeKind { return KindApplication }
func (a *Application) Pos() Position  { return a.Src }
func (a *Application) String() string {
	return fmt.Sprintf("Application{ID: %q, Datasources: %d, Routes: %d, Components: %d}",
		a.ID, len(a.Datasources), len(a.Routes), len(a.Components))
}

func (a *Application) Validate() []string {
	var errs []string
	if a.ID == "" {
		errs = append(errs, "application: missing required attribute 'id'")
	}
	seen := make(map[string]bool)
	for _, ds := range a.Datasources {
		if seen[ds.Name] {
			errs = append(errs, fmt.Sprintf("application %q: duplicate datasource %q", a.ID, ds.Name))
		}
		seen[ds.Name] = true
		errs = validateChildren(errs, ds)
	}
	for _, r := range a.Routes {
		errs = validateChildren(errs, r)
	}
	for _, c := range a.Components {
		errs = validateChildren(errs, c)
	}
	for _, f := range a.Functions {
		errs = validateChildren(errs, f)
	}
	for _, j := range a.Jobs {
		errs = validateChildren(errs, j)
	}
	for _, s := range a.Schedules {
		errs = validateChildren(errs, s)
	}
	return errs
}

// Datasource lookups used by the parser's magic conversion and by the
// datasource registry at execution time.

// FindDatasource returns the datasource declared under name, or nil.
func (a *Application) FindDatasource(name string) *Datasource {
	for _, ds := range a.Datasources {
		if ds.Name == name {
			return ds
		}
	}
	return nil
}

// FindComponent returns the component declared under name, or nil.
func (a *Application) FindComponent(name string) *Component {
	for _, c := range a.Components {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Datasource declares an external data backend by name. The kind decides
// both which driver serves it and whether queries against it are rewritten
// into LLMGenerate/Search nodes at parse time.
type Datasource struct {
	Src     Position
	Name    string
	DSKind  DatasourceKind
	URL     string
	Model   string
	Options map[string]string
}

func (d *Datasource) Kind() NodeKind { return KindDatasource }
func (d *Datasource) Pos() Position  { return d.Src }
func (d *Datasource) String() string {
	return fmt.Sprintf("Datasource{Name: %q, Kind: %q}", d.Name, d.DSKind)
}

func (d *Datasource) Validate() []string {
	var errs []string
	if d.Name == "" {
		errs = append(errs, "datasource: missing required attribute 'name'")
	}
	if d.DSKind == "" {
		errs = append(errs, fmt.Sprintf("datasource %q: missing required attribute 'type'", d.Name))
	} else if !ValidDatasourceKinds[d.DSKind] {
		errs = append(errs, fmt.Sprintf("datasource %q: unknown type %q", d.Name, d.DSKind))
	}
	return errs
}

// Route binds a URL path to a component within an application.
type Route struct {
	Src       Position
	Path      string
	Component string
	Title     string
}

func (r *Route) Kind() NodeKind { return KindRoute }
func (r *Route) Pos() Position  { return r.Src }
func (r *Route) String() string {
	return fmt.Sprintf("Route{Path: %q, Component: %q}", r.Path, r.Component)
}

func (r *Route) Validate() []string {
	var errs []string
	if r.Path == "" {
		errs = append(errs, "route: missing required attribute 'path'")
	}
	if r.Component == "" {
		errs = append(errs, fmt.Sprintf("route %q: missing required attribute 'component'", r.Path))
	}
	return errs
}
