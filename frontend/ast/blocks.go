package ast

type BlockKind int

const (
	PlainBlock BlockKind = iota
	EffectBlock
	DoBlock
	GenerateBlock
)

func (k BlockKind) String() string {
	switch k {
	case EffectBlock:
		return "effect"
	case DoBlock:
		return "do"
	case GenerateBlock:
		return "generate"
	default:
		return "block"
	}
}

// Block is a sequence of items: `effect { ... }`, `do { ... }`,
// `generate { ... }` or a plain `{ ... }` of lets ending in an expression.
type Block struct {
	Range
	Kind  BlockKind
	Items []BlockItem
}

func (b *Block) Describe() string { return b.Kind.String() + " block" }

type BlockItem interface {
	Positioner
	Describe() string
	blockItem()
}

var (
	_ BlockItem = (*BindItem)(nil)
	_ BlockItem = (*LetItem)(nil)
	_ BlockItem = (*FilterItem)(nil)
	_ BlockItem = (*YieldItem)(nil)
	_ BlockItem = (*ExprItem)(nil)
)

// BindItem is `pat <- expr`, optionally followed by an `or` fallback.
type BindItem struct {
	Range
	Pattern Pattern
	Expr    Expr
	Or      *OrFallback
}

// OrFallback is the right-hand side of `x <- eff or ...`. Either Fallback
// is set (`or rhs`) or Arms match on the error (`or | NotFound m => rhs`).
type OrFallback struct {
	Range
	Fallback Expr
	Arms     []MatchArm
}

type LetItem struct {
	Range
	Pattern Pattern
	Expr    Expr
}

type FilterItem struct {
	Range
	Expr Expr
}

type YieldItem struct {
	Range
	Expr Expr
}

type ExprItem struct {
	Range
	Expr Expr
}

func (*BindItem) blockItem()   {}
func (*LetItem) blockItem()    {}
func (*FilterItem) blockItem() {}
func (*YieldItem) blockItem()  {}
func (*ExprItem) blockItem()   {}

func (*BindItem) Describe() string   { return "bind" }
func (*LetItem) Describe() string    { return "let binding" }
func (*FilterItem) Describe() string { return "filter" }
func (*YieldItem) Describe() string  { return "yield" }
func (*ExprItem) Describe() string   { return "expression" }
