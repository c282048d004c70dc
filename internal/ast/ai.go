package ast

import "fmt"

// LLMGenerate runs a prompt against an llm datasource and binds the
// generated text under Name. Query nodes targeting an llm datasource are
// rewritten into this node at parse time.
type LLMGenerate struct {
	Src         Position
	Name        string
	Datasource  string
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	MaxTokens   int
	Params      []*QueryParam
}

func (g *LLMGenerate) Kind() NodeKind { return KindLLMGenerate }
func (g *LLMGenerate) Pos() Position  { return g.Src }
func (g *LLMGenerate) stmtNode()      {}
func (g *LLMGenerate) String() string {
	return fmt.Sprintf("LLMGenerate{Name: %q, Datasource: %q, Model: %q}", g.Name, g.Datasource, g.Model)
}

func (g *LLMGenerate) Validate() []string {
	var errs []string
	if g.Name == "" {
		errs = append(errs, "llm-generate: missing required attribute 'name'")
	}
	if g.Datasource == "" {
		errs = append(errs, fmt.Sprintf("llm-generate %q: missing required attribute 'datasource'", g.Name))
	}
	if g.Prompt == "" {
		errs = append(errs, fmt.Sprintf("llm-generate %q: missing prompt", g.Name))
	}
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		errs = append(errs, fmt.Sprintf("llm-generate %q: temperature %v out of range [0, 2]", g.Name, *g.Temperature))
	}
	if g.MaxTokens < 0 {
		errs = append(errs, fmt.Sprintf("llm-generate %q: max_tokens must not be negative", g.Name))
	}
	for _, p := range g.Params {
		errs = validateChildren(errs, p)
	}
	return errs
}

// Search runs a retrieval query against a knowledge or vector datasource
// and binds the matching documents under Name. Query nodes targeting such
// datasources are rewritten into this node at parse time.
type Search struct {
	Src        Position
	Name       string
	Datasource string
	Query      string
	Limit      int
	Threshold  *float64
	Params     []*QueryParam
}

func (s *Search) Kind() NodeKind { return KindSearch }
func (s *Search) Pos() Position  { return s.Src }
func (s *Search) stmtNode()      {}
func (s *Search) String() string {
	return fmt.Sprintf("Search{Name: %q, Datasource: %q, Limit: %d}", s.Name, s.Datasource, s.Limit)
}

func (s *Search) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "search: missing required attribute 'name'")
	}
	if s.Datasource == "" {
		errs = append(errs, fmt.Sprintf("search %q: missing required attribute 'datasource'", s.Name))
	}
	if s.Query == "" {
		errs = append(errs, fmt.Sprintf("search %q: missing query text", s.Name))
	}
	if s.Limit < 0 {
		errs = append(errs, fmt.Sprintf("search %q: limit must not be negative", s.Name))
	}
	for _, p := range s.Params {
		errs = validateChildren(errs, p)
	}
	return errs
}
