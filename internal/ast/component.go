package ast

import "fmt"

// Component declares a reusable unit of the application: parameters,
// functions, event handlers, and a statement body.
type Component struct {
	Src        Position
	Name       string
	CompKind   ComponentKind
	Params     []*Param
	Returns    string
	Functions  []*Function
	Handlers   []*OnEvent
	Statements []Statement
	Resources  map[string]string
}

func (c *Component) Kind() NodeKind { return KindComponent }
func (c *Component) Pos() Position  { return c.Src }
func (c *Component) String() string {
	return fmt.Sprintf("Component{Name: %q, Kind: %q, Functions: %d, Statements: %d}",
		c.Name, c.CompKind, len(c.Functions), len(c.Statements))
}

func (c *Component) Validate() []string {
	var errs []string
	if c.Name == "" {
		errs = append(errs, "component: missing required attribute 'name'")
	}
	if c.CompKind != "" && !ValidComponentKinds[c.CompKind] {
		errs = append(errs, fmt.Sprintf("component %q: unknown kind %q", c.Name, c.CompKind))
	}
	names := make(map[string]bool)
	for _, f := range c.Functions {
		if names[f.Name] {
			errs = append(errs, fmt.Sprintf("component %q: duplicate function %q", c.Name, f.Name))
		}
		names[f.Name] = true
		errs = validateChildren(errs, f)
	}
	for _, p := range c.Params {
		errs = validateChildren(errs, p)
	}
	for _, h := range c.Handlers {
		errs = validateChildren(errs, h)
	}
	errs = validateStatements(errs, c.Statements)
	return errs
}

// FindFunction returns the function declared under name, or nil.
func (c *Component) FindFunction(name string) *Function {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Function declares a callable body with typed parameters, optional
// caching/memoization, and an optional REST exposure.
type Function struct {
	Src            Position
	Name           string
	ReturnType     ValueType
	Scope          string // component, global, api
	Access         string // public, private, protected
	Params         []*Param
	Body           []Statement
	Cache          bool
	CacheTTL       int // seconds; 0 means cache for the process lifetime
	Memoize        bool
	Pure           bool
	ValidateParams bool
	Retry          int
	RetryDelay     float64 // seconds between retry attempts
	Timeout        int     // seconds; 0 means no declared timeout
	Rest           *RestConfig
}

func (f *Function) Kind() NodeKind { return KindFunction }
func (f *Function) Pos() Position  { return f.Src }
func (f *Function) String() string {
	return fmt.Sprintf("Function{Name: %q, Params: %d, Body: %d, Cache: %t, Memoize: %t}",
		f.Name, len(f.Params), len(f.Body), f.Cache, f.Memoize)
}

func (f *Function) Validate() []string {
	var errs []string
	if f.Name == "" {
		errs = append(errs, "function: missing required attribute 'name'")
	}
	switch f.Scope {
	case "", "component", "global", "api":
	default:
		errs = append(errs, fmt.Sprintf("function %q: unknown scope %q", f.Name, f.Scope))
	}
	switch f.Access {
	case "", "public", "private", "protected":
	default:
		errs = append(errs, fmt.Sprintf("function %q: unknown access %q", f.Name, f.Access))
	}
	if f.Retry < 0 {
		errs = append(errs, fmt.Sprintf("function %q: retry must not be negative", f.Name))
	}
	seen := make(map[string]bool)
	for _, p := range f.Params {
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("function %q: duplicate parameter %q", f.Name, p.Name))
		}
		seen[p.Name] = true
		errs = validateChildren(errs, p)
	}
	if f.Rest != nil {
		errs = append(errs, f.Rest.validate(f.Name)...)
	}
	errs = validateStatements(errs, f.Body)
	return errs
}

// Param declares one function or component parameter.
type Param struct {
	Src         Position
	Name        string
	Type        ValueType
	Required    bool
	Default     string
	Description string
}

func (p *Param) Kind() NodeKind { return KindParam }
func (p *Param) Pos() Position  { return p.Src }
func (p *Param) String() string {
	return fmt.Sprintf("Param{Name: %q, Type: %q, Required: %t}", p.Name, p.Type, p.Required)
}

func (p *Param) Validate() []string {
	var errs []string
	if p.Name == "" {
		errs = append(errs, "param: missing required attribute 'name'")
	}
	if p.Type != "" && !ValidValueTypes[p.Type] {
		errs = append(errs, fmt.Sprintf("param %q: unknown type %q", p.Name, p.Type))
	}
	return errs
}

// RestConfig exposes a function over HTTP.
type RestConfig struct {
	Endpoint string
	Method   string
	Auth     string // "", "jwt"
	Roles    []string
	Status   int
}

func (r *RestConfig) validate(fn string) []string {
	var errs []string
	if r.Endpoint == "" {
		errs = append(errs, fmt.Sprintf("function %q: rest config missing 'endpoint'", fn))
	}
	if r.Method == "" {
		errs = append(errs, fmt.Sprintf("function %q: rest config missing 'method'", fn))
	} else if !ValidHTTPMethods[r.Method] {
		errs = append(errs, fmt.Sprintf("function %q: invalid rest method %q", fn, r.Method))
	}
	return errs
}
