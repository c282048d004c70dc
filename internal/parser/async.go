package parser

import (
	"github.com/beevik/etree"

	"github.com/lattice-lang/lattice/internal/ast"
)

type threadParser struct{}

func (*threadParser) Names() []string { return []string{"thread"} }

func (*threadParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	join, err := attrBool(pc, el, "join")
	if err != nil {
		return nil, err
	}
	body, err := pc.parseStatements(el)
	if err != nil {
		return nil, err
	}
	return &ast.Thread{
		Src:  pc.pos(el),
		Name: attrString(el, "name"),
		Join: join,
		Body: body,
	}, nil
}

type scheduleParser struct{}

func (*scheduleParser) Names() []string { return []string{"schedule"} }

func (*scheduleParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	body, err := pc.parseStatements(el)
	if err != nil {
		return nil, err
	}
	s := &ast.Schedule{
		Src:      pc.pos(el),
		Name:     name,
		Cron:     attrString(el, "cron"),
		Every:    attrString(el, "every"),
		Queue:    attrString(el, "queue"),
		Priority: attrString(el, "priority"),
		Body:     body,
	}
	if s.Cron == "" && s.Every == "" {
		return nil, newError(pc.pos(el), el.Tag, "schedule %q requires 'cron' or 'every'", name)
	}
	if s.Cron != "" && s.Every != "" {
		return nil, newError(pc.pos(el), el.Tag, "schedule %q: 'cron' and 'every' are mutually exclusive", name)
	}
	return s, nil
}

type jobParser struct{}

func (*jobParser) Names() []string { return []string{"job"} }

func (*jobParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	name, err := requireAttr(pc, el, "name")
	if err != nil {
		return nil, err
	}
	j := &ast.Job{
		Src:      pc.pos(el),
		Name:     name,
		Queue:    attrString(el, "queue"),
		Priority: attrString(el, "priority"),
	}
	if j.Retry, err = attrInt(pc, el, "retry"); err != nil {
		return nil, err
	}
	if j.Timeout, err = attrInt(pc, el, "timeout"); err != nil {
		return nil, err
	}
	for _, child := range el.ChildElements() {
		if child.Tag == "param" {
			p, err := parseParam(pc, child)
			if err != nil {
				return nil, err
			}
			j.Params = append(j.Params, p)
			continue
		}
		node, err := pc.registry.Parse(pc, child)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		stmt, ok := node.(ast.Statement)
		if !ok {
			return nil, newError(pc.pos(child), child.Tag, "not allowed inside <job>")
		}
		j.Body = append(j.Body, stmt)
	}
	return j, nil
}

type onEventParser struct{}

func (*onEventParser) Names() []string { return []string{"on"} }

func (*onEventParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	event, err := requireAttr(pc, el, "event")
	if err != nil {
		return nil, err
	}
	body, err := pc.parseStatements(el)
	if err != nil {
		return nil, err
	}
	return &ast.OnEvent{Src: pc.pos(el), Event: event, Body: body}, nil
}

type transactionParser struct{}

func (*transactionParser) Names() []string { return []string{"transaction"} }

func (*transactionParser) Parse(pc *ParseContext, el *etree.Element) (ast.Node, error) {
	dsName, err := requireAttr(pc, el, "datasource")
	if err != nil {
		return nil, err
	}
	body, err := pc.parseStatements(el)
	if err != nil {
		return nil, err
	}
	return &ast.Transaction{
		Src:        pc.pos(el),
		Datasource: dsName,
		Isolation:  attrString(el, "isolation"),
		Body:       body,
	}, nil
}
