package parser

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type llmGenerateParser struct{}

func (*llmGenerateParser) Names() []string { return []string{"llm-generate", "llm"} }

func (*llmGenerateParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
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
	prompt := attrString(el, "prompt")
	if prompt == "" {
		if p := el.SelectElement("prompt"); p != nil {
			prompt = strings.TrimSpace(p.Text())
		} else {
			prompt = strings.TrimSpace(el.Text())
		}
	}
	model := attrString(el, "model")
	if model == "" {
		if ds := pc.Datasource(dsName); ds != nil {
			model = ds.Model
		}
	}
	temp, err := attrFloatPtr(pc, el, "temperature")
	if err != nil {
		return nil, err
	}
	maxTokens, err := attrInt(pc, el, "max_tokens")
	if err != nil {
		return nil, err
	}
	return &ast.LLMGenerate{
		Src:         pc.pos(el),
		Name:        name,
		Datasource:  dsName,
		Model:       model,
		Prompt:      prompt,
		System:      attrString(el, "system"),
		Temperature: temp,
		MaxTokens:   maxTokens,
		Params:      params,
	}, nil
}

type searchParser struct{}

func (*searchParser) Names() []string { return []string{"search"} }

func (*searchParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
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
	query := attrString(el, "query")
	if query == "" {
		query = strings.TrimSpace(el.Text())
	}
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
