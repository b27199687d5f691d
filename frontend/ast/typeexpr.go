package ast

var (
	_ TypeExpr = (*TypeName)(nil)
	_ TypeExpr = (*TypeVarRef)(nil)
	_ TypeExpr = (*TypeApply)(nil)
	_ TypeExpr = (*TypeArrow)(nil)
	_ TypeExpr = (*TypeRecord)(nil)
	_ TypeExpr = (*TypeQualified)(nil)
)

// TypeName refers to a named type constructor such as `Int` or `Calendar.Delta`.
type TypeName struct {
	Range
	Name string
}

type TypeVarRef struct {
	Range
	Name string
}

type TypeApply struct {
	Range
	Head TypeExpr
	Args []TypeExpr
}

type TypeArrow struct {
	Range
	From TypeExpr
	To   TypeExpr
}

type TypeRecord struct {
	Range
	Fields []TypeField
	Open   bool
}

type TypeField struct {
	Range
	Label string
	Type  TypeExpr
}

// TypeQualified is `Show a => a -> Text`.
type TypeQualified struct {
	Range
	Preds []PredExpr
	Type  TypeExpr
}

func (*TypeName) typeExprNode()      {}
func (*TypeVarRef) typeExprNode()    {}
func (*TypeApply) typeExprNode()     {}
func (*TypeArrow) typeExprNode()     {}
func (*TypeRecord) typeExprNode()    {}
func (*TypeQualified) typeExprNode() {}
