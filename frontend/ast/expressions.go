package ast

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	_ Expr = (*Ident)(nil)
	_ Expr = (*IntLit)(nil)
	_ Expr = (*FloatLit)(nil)
	_ Expr = (*TextLit)(nil)
	_ Expr = (*DeltaLit)(nil)
	_ Expr = (*Lambda)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Record)(nil)
	_ Expr = (*FieldAccess)(nil)
	_ Expr = (*ListLit)(nil)
	_ Expr = (*Match)(nil)
	_ Expr = (*If)(nil)
	_ Expr = (*Patch)(nil)
	_ Expr = (*Block)(nil)
	_ Expr = (*ResultOr)(nil)
	_ Expr = (*Annot)(nil)
)

// Ident is a reference to a value or, when capitalised, a constructor.
// Qualified names keep their dots: `Map.insert`.
type Ident struct {
	Range
	Name string
}

type IntLit struct {
	Range
	Value int64
}

type FloatLit struct {
	Range
	Value float64
}

type TextLit struct {
	Range
	Value string
}

// DeltaLit is a domain literal such as `1d` or `Calendar.1m`.
type DeltaLit struct {
	Range
	Text      string
	Qualifier string
}

type Lambda struct {
	Range
	Params []Pattern
	Body   Expr
}

type Call struct {
	Range
	Func Expr
	Args []Expr
}

// Binary is an infix operator application. `|>`, `&&` and `||` have fixed
// meaning; every other operator may be interpreted by a domain.
type Binary struct {
	Range
	Op    string
	Left  Expr
	Right Expr
}

type Record struct {
	Range
	Fields []RecordField
}

type RecordField struct {
	Range
	Label string
	Value Expr
}

type FieldAccess struct {
	Range
	Base  Expr
	Field string
}

type ListLit struct {
	Range
	Items []Expr
}

// Match is a `?` expression. A nil Scrutinee denotes a unary
// multi-clause function (`f = | p1 => e1 | p2 => e2`).
type Match struct {
	Range
	Scrutinee Expr
	Arms      []MatchArm
}

type MatchArm struct {
	Range
	Pattern Pattern
	Guard   Expr
	Body    Expr
}

type If struct {
	Range
	Cond Expr
	Then Expr
	Else Expr
}

// Patch is `target <| { path: instruction, ... }`.
type Patch struct {
	Range
	Target Expr
	Fields []PatchField
}

// ResultOr is the expression-level `res or fallback`, or
// `res or | pat => e | ...` when Arms are given.
type ResultOr struct {
	Range
	Base     Expr
	Fallback Expr
	Arms     []MatchArm
}

type Annot struct {
	Range
	Expr Expr
	Type TypeExpr
}

func (*Ident) exprNode()       {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*TextLit) exprNode()     {}
func (*DeltaLit) exprNode()    {}
func (*Lambda) exprNode()      {}
func (*Call) exprNode()        {}
func (*Binary) exprNode()      {}
func (*Record) exprNode()      {}
func (*FieldAccess) exprNode() {}
func (*ListLit) exprNode()     {}
func (*Match) exprNode()       {}
func (*If) exprNode()          {}
func (*Patch) exprNode()       {}
func (*Block) exprNode()       {}
func (*ResultOr) exprNode()    {}
func (*Annot) exprNode()       {}

func (*Ident) Describe() string       { return "identifier" }
func (*IntLit) Describe() string      { return "int literal" }
func (*FloatLit) Describe() string    { return "float literal" }
func (*TextLit) Describe() string     { return "text literal" }
func (*DeltaLit) Describe() string    { return "delta literal" }
func (*Lambda) Describe() string      { return "lambda" }
func (*Call) Describe() string        { return "function call" }
func (*Binary) Describe() string      { return "operator application" }
func (*Record) Describe() string      { return "record" }
func (*FieldAccess) Describe() string { return "field access" }
func (*ListLit) Describe() string     { return "list" }
func (*Match) Describe() string       { return "match" }
func (*If) Describe() string          { return "if expression" }
func (*Patch) Describe() string       { return "patch" }
func (*ResultOr) Describe() string    { return "or fallback" }
func (*Annot) Describe() string       { return "type annotation" }

// IsConstructorName reports whether name (or its last qualified segment)
// starts with an upper case letter.
func IsConstructorName(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
