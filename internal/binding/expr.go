package binding

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The expression language used by conditions, databinding, and return
// values. It is deliberately small: comparisons, boolean connectives,
// arithmetic, membership, and null tests over context paths and literals.
// There is no call syntax and no assignment.

var exprLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "whitespace", Pattern: `[\s]+`, Action: nil},
		{Name: "Float", Pattern: `\d+\.\d+`, Action: nil},
		{Name: "Int", Pattern: `\d+`, Action: nil},
		{Name: "String", Pattern: `"[^"]*"|'[^']*'`, Action: nil},
		{Name: "Operator", Pattern: `==|!=|>=|<=|>|<`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z0-9_]+)*`, Action: nil},
		{Name: "Punct", Pattern: `[()+\-*/%]`, Action: nil},
	},
})

var exprParser = participle.MustBuild[Expr](
	participle.Lexer(exprLexer),
	participle.UseLookahead(2),
)

// ParseExpr compiles an expression for repeated evaluation.
func ParseExpr(src string) (*Expr, error) {
	return exprParser.ParseString("", src)
}

// Expr is the grammar root: or-connected conjunctions.
type Expr struct {
	Or []*AndExpr `parser:"@@ ( 'or' @@ )*"`
}

type AndExpr struct {
	And []*NotExpr `parser:"@@ ( 'and' @@ )*"`
}

type NotExpr struct {
	Not  *NotExpr    `parser:"  'not' @@"`
	Comp *Comparison `parser:"| @@"`
}

type Comparison struct {
	Left   *Additive `parser:"@@"`
	Op     string    `parser:"[ ( @( '==' | '!=' | '>=' | '<=' | '>' | '<' | 'in' )"`
	Right  *Additive `parser:"    @@ )"`
	IsNull *NullTest `parser:"| @@ ]"`
}

type NullTest struct {
	Negated bool `parser:"'is' @'not'? 'null'"`
}

type Additive struct {
	Left *Multiplicative `parser:"@@"`
	Ops  []*AddOp        `parser:"@@*"`
}

type AddOp struct {
	Op      string          `parser:"@( '+' | '-' )"`
	Operand *Multiplicative `parser:"@@"`
}

type Multiplicative struct {
	Left *Unary   `parser:"@@"`
	Ops  []*MulOp `parser:"@@*"`
}

type MulOp struct {
	Op      string `parser:"@( '*' | '/' | '%' )"`
	Operand *Unary `parser:"@@"`
}

type Unary struct {
	Negative bool     `parser:"@'-'?"`
	Value    *Primary `parser:"@@"`
}

type Primary struct {
	Float  *float64 `parser:"  @Float"`
	Int    *int64   `parser:"| @Int"`
	Str    *string  `parser:"| @String"`
	True   bool     `parser:"| @'true'"`
	False  bool     `parser:"| @'false'"`
	Null   bool     `parser:"| @'null'"`
	Sub    *Expr    `parser:"| '(' @@ ')'"`
	Path   *string  `parser:"| @Ident"`
}
