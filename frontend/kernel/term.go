// Package kernel holds the minimal typed calculus every surface construct
// lowers into.
package kernel

import (
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/types"
)

// NodeID identifies a term node within a module. Inference results are
// keyed by it.
type NodeID int

// Node carries the identity and source span shared by every term.
type Node struct {
	ID NodeID
	ast.Range
}

func (n Node) NodeID() NodeID { return n.ID }

// Term is a kernel term. Terms are immutable once built; transformations
// return new trees.
type Term interface {
	ast.Positioner
	NodeID() NodeID
	termNode()
}

var (
	_ Term = (*Var)(nil)
	_ Term = (*Lit)(nil)
	_ Term = (*Lam)(nil)
	_ Term = (*App)(nil)
	_ Term = (*Let)(nil)
	_ Term = (*LetRec)(nil)
	_ Term = (*Constructor)(nil)
	_ Term = (*Case)(nil)
	_ Term = (*RecordLit)(nil)
	_ Term = (*Project)(nil)
	_ Term = (*Update)(nil)
	_ Term = (*Delete)(nil)
	_ Term = (*Fold)(nil)
	_ Term = (*EffectPure)(nil)
	_ Term = (*EffectBind)(nil)
	_ Term = (*EffectFail)(nil)
	_ Term = (*TypeAbs)(nil)
	_ Term = (*TypeApp)(nil)
)

// Var references a binding. A non-zero Site marks a resolution site to be
// replaced once the types around it are known.
type Var struct {
	Node
	Name string
	Site SiteID
}

type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitText
)

type Lit struct {
	Node
	Kind  LitKind
	Int   int64
	Float float64
	Text  string
}

type Lam struct {
	Node
	Param string
	Body  Term
}

type App struct {
	Node
	Fun Term
	Arg Term
}

type Let struct {
	Node
	Name  string
	Value Term
	Body  Term
}

type Binding struct {
	Name  string
	Value Term
}

type LetRec struct {
	Node
	Bindings []Binding
	Body     Term
}

// Constructor is a saturated constructor application.
type Constructor struct {
	Node
	Name string
	Args []Term
}

type Alt struct {
	Pattern Pattern
	Body    Term
}

type Case struct {
	Node
	Scrutinee Term
	Alts      []Alt
}

type Field struct {
	Label string
	Value Term
}

type RecordLit struct {
	Node
	Fields []Field
}

type Project struct {
	Node
	Record Term
	Label  string
}

// Update applies Fn to the field Label of Record.
type Update struct {
	Node
	Record Term
	Label  string
	Fn     Term
}

type Delete struct {
	Node
	Record Term
	Label  string
}

// Fold is a left fold of Step over the list Over starting from Init.
type Fold struct {
	Node
	Step Term
	Init Term
	Over Term
}

type EffectPure struct {
	Node
	Value Term
}

type EffectBind struct {
	Node
	Effect Term
	Fn     Term
}

type EffectFail struct {
	Node
	Err Term
}

type TypeAbs struct {
	Node
	Vars []*types.Var
	Body Term
}

type TypeApp struct {
	Node
	Term  Term
	Types []types.Type
}

func (*Var) termNode()         {}
func (*Lit) termNode()         {}
func (*Lam) termNode()         {}
func (*App) termNode()         {}
func (*Let) termNode()         {}
func (*LetRec) termNode()      {}
func (*Constructor) termNode() {}
func (*Case) termNode()        {}
func (*RecordLit) termNode()   {}
func (*Project) termNode()     {}
func (*Update) termNode()      {}
func (*Delete) termNode()      {}
func (*Fold) termNode()        {}
func (*EffectPure) termNode()  {}
func (*EffectBind) termNode()  {}
func (*EffectFail) termNode()  {}
func (*TypeAbs) termNode()     {}
func (*TypeApp) termNode()     {}

// Spine unwinds nested applications into the head and its arguments.
func Spine(t Term) (Term, []Term) {
	var args []Term
	for {
		app, ok := t.(*App)
		if !ok {
			break
		}
		args = append(args, app.Arg)
		t = app.Fun
	}
	for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
		args[i], args[j] = args[j], args[i]
	}
	return t, args
}

// IDGen hands out node IDs; one is shared per module.
type IDGen struct {
	next NodeID
	name int
}

func (g *IDGen) Next() NodeID {
	g.next++
	return g.next
}
