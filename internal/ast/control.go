package ast

import "fmt"

// If is a conditional statement with optional elseif blocks and an
// optional else body. A body's first value-producing statement
// short-circuits the rest of that body at execution time.
type If struct {
	Src     Position
	Cond    string
	Then    []Statement
	ElseIfs []*ElseIfBlock
	Else    []Statement
}

func (i *If) Kind() NodeKind { return KindIf }
func (i *If) Pos() Position  { return i.Src }
func (i *If) stmtNode()      {}
func (i *If) String() string {
	return fmt.Sprintf("If{Cond: %q, Then: %d, ElseIfs: %d, Else: %d}",
		i.Cond, len(i.Then), len(i.ElseIfs), len(i.Else))
}

func (i *If) Validate() []string {
	var errs []string
	if i.Cond == "" {
		errs = append(errs, "if: missing required attribute 'condition'")
	}
	errs = validateStatements(errs, i.Then)
	for _, e := range i.ElseIfs {
		errs = validateChildren(errs, e)
	}
	errs = validateStatements(errs, i.Else)
	return errs
}

// ElseIfBlock is one elseif branch of an If.
type ElseIfBlock struct {
	Src  Position
	Cond string
	Body []Statement
}

func (e *ElseIfBlock) Kind() NodeKind { return KindElseIf }
func (e *ElseIfBlock) Pos() Position  { return e.Src }
func (e *ElseIfBlock) String() string {
	return fmt.Sprintf("ElseIf{Cond: %q, Body: %d}", e.Cond, len(e.Body))
}

func (e *ElseIfBlock) Validate() []string {
	var errs []string
	if e.Cond == "" {
		errs = append(errs, "elseif: missing required attribute 'condition'")
	}
	return validateStatements(errs, e.Body)
}

// Loop iterates one of four source kinds. Per-iteration return values are
// collected into the loop's ordered result list.
type Loop struct {
	Src       Position
	LoopKind  LoopKind
	VarName   string
	IndexName string

	// range
	From string
	To   string
	Step string

	// array and list
	Items     string
	Delimiter string

	// query
	QueryName string

	Body []Statement
}

func (l *Loop) Kind() NodeKind { return KindLoop }
func (l *Loop) Pos() Position  { return l.Src }
func (l *Loop) stmtNode()      {}
func (l *Loop) String() string {
	return fmt.Sprintf("Loop{Kind: %q, Var: %q, Body: %d}", l.LoopKind, l.VarName, len(l.Body))
}

func (l *Loop) Validate() []string {
	var errs []string
	if l.VarName == "" {
		errs = append(errs, "loop: missing required attribute 'var'")
	}
	if !ValidLoopKinds[l.LoopKind] {
		errs = append(errs, fmt.Sprintf("loop %q: unknown loop kind %q", l.VarName, l.LoopKind))
		return validateStatements(errs, l.Body)
	}
	switch l.LoopKind {
	case LoopRange:
		if l.From == "" || l.To == "" {
			errs = append(errs, fmt.Sprintf("loop %q: range loop requires 'from' and 'to'", l.VarName))
		}
	case LoopArray, LoopList:
		if l.Items == "" {
			errs = append(errs, fmt.Sprintf("loop %q: %s loop requires 'items'", l.VarName, l.LoopKind))
		}
	case LoopQuery:
		if l.QueryName == "" {
			errs = append(errs, fmt.Sprintf("loop %q: query loop requires 'query'", l.VarName))
		}
	}
	return validateStatements(errs, l.Body)
}

// Return resolves its value and yields it to the enclosing body.
type Return struct {
	Src   Position
	Value string
}

func (r *Return) Kind() NodeKind { return KindReturn }
func (r *Return) Pos() Position  { return r.Src }
func (r *Return) stmtNode()      {}
func (r *Return) String() string { return fmt.Sprintf("Return{Value: %q}", r.Value) }

func (r *Return) Validate() []string { return nil }
