package kernel

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/types"
)

// Builder creates terms with fresh node IDs, all spanning the same range.
type Builder struct {
	ids  *IDGen
	span ast.Range
}

func NewBuilder(ids *IDGen) *Builder {
	return &Builder{ids: ids}
}

// At returns a builder whose terms span p.
func (b *Builder) At(p ast.Positioner) *Builder {
	return &Builder{ids: b.ids, span: ast.RangeOf(p)}
}

func (b *Builder) Span() ast.Range { return b.span }

func (b *Builder) IDs() *IDGen { return b.ids }

func (b *Builder) node() Node {
	return Node{ID: b.ids.Next(), Range: b.span}
}

// Fresh returns a variable name that cannot clash with source identifiers.
func (b *Builder) Fresh(hint string) string {
	b.ids.name++
	return fmt.Sprintf("%s$%d", hint, b.ids.name)
}

func (b *Builder) Var(name string) *Var {
	return &Var{Node: b.node(), Name: name}
}

// Site creates the placeholder variable of a resolution site.
func (b *Builder) Site(site *Site) *Var {
	name := site.Op
	if name == "" {
		name = site.Kind.String()
	}
	return &Var{Node: b.node(), Name: name, Site: site.ID}
}

func (b *Builder) Int(v int64) *Lit {
	return &Lit{Node: b.node(), Kind: LitInt, Int: v}
}

func (b *Builder) Float(v float64) *Lit {
	return &Lit{Node: b.node(), Kind: LitFloat, Float: v}
}

func (b *Builder) Text(v string) *Lit {
	return &Lit{Node: b.node(), Kind: LitText, Text: v}
}

func (b *Builder) Lam(param string, body Term) *Lam {
	return &Lam{Node: b.node(), Param: param, Body: body}
}

// Lams abstracts body over params, outermost first.
func (b *Builder) Lams(params []string, body Term) Term {
	for i := len(params) - 1; i >= 0; i-- {
		body = b.Lam(params[i], body)
	}
	return body
}

// App applies fun to args left to right.
func (b *Builder) App(fun Term, args ...Term) Term {
	for _, arg := range args {
		fun = &App{Node: b.node(), Fun: fun, Arg: arg}
	}
	return fun
}

// Call applies the variable name to args.
func (b *Builder) Call(name string, args ...Term) Term {
	return b.App(b.Var(name), args...)
}

func (b *Builder) Let(name string, value, body Term) *Let {
	return &Let{Node: b.node(), Name: name, Value: value, Body: body}
}

func (b *Builder) LetRec(bindings []Binding, body Term) *LetRec {
	return &LetRec{Node: b.node(), Bindings: bindings, Body: body}
}

func (b *Builder) Ctor(name string, args ...Term) *Constructor {
	return &Constructor{Node: b.node(), Name: name, Args: args}
}

func (b *Builder) Case(scrutinee Term, alts ...Alt) *Case {
	return &Case{Node: b.node(), Scrutinee: scrutinee, Alts: alts}
}

// If lowers a boolean conditional to a case on True.
func (b *Builder) If(cond, then, els Term) *Case {
	return b.Case(cond,
		Alt{Pattern: &PCtor{Range: b.span, Name: "True"}, Body: then},
		Alt{Pattern: &PWild{Range: b.span}, Body: els},
	)
}

func (b *Builder) Record(fields ...Field) *RecordLit {
	return &RecordLit{Node: b.node(), Fields: fields}
}

func (b *Builder) Project(record Term, label string) *Project {
	return &Project{Node: b.node(), Record: record, Label: label}
}

func (b *Builder) Update(record Term, label string, fn Term) *Update {
	return &Update{Node: b.node(), Record: record, Label: label, Fn: fn}
}

func (b *Builder) Delete(record Term, label string) *Delete {
	return &Delete{Node: b.node(), Record: record, Label: label}
}

func (b *Builder) Fold(step, init, over Term) *Fold {
	return &Fold{Node: b.node(), Step: step, Init: init, Over: over}
}

func (b *Builder) Pure(value Term) *EffectPure {
	return &EffectPure{Node: b.node(), Value: value}
}

func (b *Builder) Bind(effect, fn Term) *EffectBind {
	return &EffectBind{Node: b.node(), Effect: effect, Fn: fn}
}

func (b *Builder) Fail(err Term) *EffectFail {
	return &EffectFail{Node: b.node(), Err: err}
}

func (b *Builder) PVar(name string) *PVar {
	return &PVar{Range: b.span, Name: name}
}

func (b *Builder) PWild() *PWild {
	return &PWild{Range: b.span}
}

func (b *Builder) PCtor(name string, args ...Pattern) *PCtor {
	return &PCtor{Range: b.span, Name: name, Args: args}
}

func (b *Builder) TypeAbs(vars []*types.Var, body Term) *TypeAbs {
	return &TypeAbs{Node: b.node(), Vars: vars, Body: body}
}

func (b *Builder) TypeApp(term Term, ts []types.Type) *TypeApp {
	return &TypeApp{Node: b.node(), Term: term, Types: ts}
}
