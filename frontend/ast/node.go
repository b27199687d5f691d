package ast

// Expr is the interface for all surface expression nodes.
type Expr interface {
	Positioner
	Describe() string
	exprNode()
}

// Pattern is the interface for all pattern nodes.
type Pattern interface {
	Positioner
	patternNode()
}

// TypeExpr is a type as written in the source.
type TypeExpr interface {
	Positioner
	typeExprNode()
}

// Decl is a top-level declaration of a Module.
type Decl interface {
	Positioner
	declNode()
}

// Module is the unit of compilation. It is produced by the external parser
// (or decoded by astio) and is never mutated by the frontend.
type Module struct {
	Range
	Name  string
	Uses  []Use
	Decls []Decl

	// Source is the text the module was parsed from. It is only used to
	// derive a content hash; modules without it are never memoised.
	Source []byte
}

type Use struct {
	Range
	Module string
}

var (
	_ Decl = (*Def)(nil)
	_ Decl = (*TypeDecl)(nil)
	_ Decl = (*DomainDecl)(nil)
	_ Decl = (*ClassDecl)(nil)
	_ Decl = (*InstanceDecl)(nil)
)

// Def is a named top-level binding. Either Expr is set, or the binding is
// defined by one or more Clauses (multi-clause function).
type Def struct {
	Range
	Name    string
	Sig     TypeExpr
	Expr    Expr
	Clauses []Clause
}

// Clause is one equation of a multi-clause function.
type Clause struct {
	Range
	Params []Pattern
	Guard  Expr
	Body   Expr
}

// TypeDecl declares an ADT (Ctors set) or an alias (Alias set).
type TypeDecl struct {
	Range
	Name   string
	Params []string
	Ctors  []CtorDecl
	Alias  TypeExpr
}

type CtorDecl struct {
	Range
	Name string
	Args []TypeExpr
}

// DomainDecl declares a domain over a carrier type: its delta ADT,
// its operator implementations and its delta literal table.
type DomainDecl struct {
	Range
	Name     string
	Carrier  TypeExpr
	Delta    *TypeDecl
	Ops      []*Def
	Literals []DeltaLiteralDecl
}

// DeltaLiteralDecl maps a literal text such as "1d" to a constructor
// applied to constant arguments.
type DeltaLiteralDecl struct {
	Range
	Text string
	Ctor string
	Args []Expr
}

type ClassDecl struct {
	Range
	Name  string
	Param string
	// ParamArity is the number of type arguments the class parameter
	// takes: 0 for a class over types of kind *, 1 for * -> *, ...
	ParamArity int
	Methods    []MethodSig
}

type MethodSig struct {
	Range
	Name string
	Type TypeExpr
}

type InstanceDecl struct {
	Range
	Class   string
	Context []PredExpr
	Head    TypeExpr
	Methods []*Def
}

// PredExpr is a class predicate such as `Show a`.
type PredExpr struct {
	Range
	Class string
	Type  TypeExpr
}

func (*Def) declNode()          {}
func (*TypeDecl) declNode()     {}
func (*DomainDecl) declNode()   {}
func (*ClassDecl) declNode()    {}
func (*InstanceDecl) declNode() {}

// IsAlias reports whether the declaration introduces a type alias.
func (d *TypeDecl) IsAlias() bool { return d.Alias != nil }
