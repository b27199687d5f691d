package kernel

import (
	"github.com/hashicorp/go-set/v3"
)

// MapChildren rebuilds t with f applied to each direct child term. The
// node keeps its ID and span. When no child changes, t itself is returned.
func MapChildren(t Term, f func(Term) Term) Term {
	switch t := t.(type) {
	case *Var, *Lit:
		return t
	case *Lam:
		body := f(t.Body)
		if body == t.Body {
			return t
		}
		return &Lam{Node: t.Node, Param: t.Param, Body: body}
	case *App:
		fun, arg := f(t.Fun), f(t.Arg)
		if fun == t.Fun && arg == t.Arg {
			return t
		}
		return &App{Node: t.Node, Fun: fun, Arg: arg}
	case *Let:
		value, body := f(t.Value), f(t.Body)
		if value == t.Value && body == t.Body {
			return t
		}
		return &Let{Node: t.Node, Name: t.Name, Value: value, Body: body}
	case *LetRec:
		changed := false
		bindings := make([]Binding, len(t.Bindings))
		for i, bnd := range t.Bindings {
			v := f(bnd.Value)
			changed = changed || v != bnd.Value
			bindings[i] = Binding{Name: bnd.Name, Value: v}
		}
		body := f(t.Body)
		if !changed && body == t.Body {
			return t
		}
		return &LetRec{Node: t.Node, Bindings: bindings, Body: body}
	case *Constructor:
		args, changed := mapTerms(t.Args, f)
		if !changed {
			return t
		}
		return &Constructor{Node: t.Node, Name: t.Name, Args: args}
	case *Case:
		scrutinee := f(t.Scrutinee)
		changed := scrutinee != t.Scrutinee
		alts := make([]Alt, len(t.Alts))
		for i, alt := range t.Alts {
			body := f(alt.Body)
			changed = changed || body != alt.Body
			alts[i] = Alt{Pattern: alt.Pattern, Body: body}
		}
		if !changed {
			return t
		}
		return &Case{Node: t.Node, Scrutinee: scrutinee, Alts: alts}
	case *RecordLit:
		changed := false
		fields := make([]Field, len(t.Fields))
		for i, fld := range t.Fields {
			v := f(fld.Value)
			changed = changed || v != fld.Value
			fields[i] = Field{Label: fld.Label, Value: v}
		}
		if !changed {
			return t
		}
		return &RecordLit{Node: t.Node, Fields: fields}
	case *Project:
		r := f(t.Record)
		if r == t.Record {
			return t
		}
		return &Project{Node: t.Node, Record: r, Label: t.Label}
	case *Update:
		r, fn := f(t.Record), f(t.Fn)
		if r == t.Record && fn == t.Fn {
			return t
		}
		return &Update{Node: t.Node, Record: r, Label: t.Label, Fn: fn}
	case *Delete:
		r := f(t.Record)
		if r == t.Record {
			return t
		}
		return &Delete{Node: t.Node, Record: r, Label: t.Label}
	case *Fold:
		step, init, over := f(t.Step), f(t.Init), f(t.Over)
		if step == t.Step && init == t.Init && over == t.Over {
			return t
		}
		return &Fold{Node: t.Node, Step: step, Init: init, Over: over}
	case *EffectPure:
		v := f(t.Value)
		if v == t.Value {
			return t
		}
		return &EffectPure{Node: t.Node, Value: v}
	case *EffectBind:
		e, fn := f(t.Effect), f(t.Fn)
		if e == t.Effect && fn == t.Fn {
			return t
		}
		return &EffectBind{Node: t.Node, Effect: e, Fn: fn}
	case *EffectFail:
		e := f(t.Err)
		if e == t.Err {
			return t
		}
		return &EffectFail{Node: t.Node, Err: e}
	case *TypeAbs:
		body := f(t.Body)
		if body == t.Body {
			return t
		}
		return &TypeAbs{Node: t.Node, Vars: t.Vars, Body: body}
	case *TypeApp:
		inner := f(t.Term)
		if inner == t.Term {
			return t
		}
		return &TypeApp{Node: t.Node, Term: inner, Types: t.Types}
	}
	return t
}

func mapTerms(ts []Term, f func(Term) Term) ([]Term, bool) {
	out := make([]Term, len(ts))
	changed := false
	for i, t := range ts {
		out[i] = f(t)
		changed = changed || out[i] != t
	}
	return out, changed
}

// Rewrite rebuilds t bottom-up, replacing every node n with f(n) after
// its children have been rewritten.
func Rewrite(t Term, f func(Term) Term) Term {
	var walk func(Term) Term
	walk = func(t Term) Term {
		return f(MapChildren(t, walk))
	}
	return walk(t)
}

// Walk visits t and its descendants in pre-order. Returning false from
// visit skips the children of that node.
func Walk(t Term, visit func(Term) bool) {
	if !visit(t) {
		return
	}
	MapChildren(t, func(child Term) Term {
		Walk(child, visit)
		return child
	})
}

// FreeVars returns the names referenced but not bound within t. Site
// placeholders are not variables and are never reported.
func FreeVars(t Term) *set.Set[string] {
	out := set.New[string](8)
	freeVars(t, set.New[string](0), out)
	return out
}

func freeVars(t Term, bound *set.Set[string], out *set.Set[string]) {
	with := func(names ...string) *set.Set[string] {
		inner := bound.Copy()
		for _, n := range names {
			inner.Insert(n)
		}
		return inner
	}
	switch t := t.(type) {
	case *Var:
		if t.Site == 0 && !bound.Contains(t.Name) {
			out.Insert(t.Name)
		}
	case *Lam:
		freeVars(t.Body, with(t.Param), out)
	case *Let:
		freeVars(t.Value, bound, out)
		freeVars(t.Body, with(t.Name), out)
	case *LetRec:
		names := make([]string, len(t.Bindings))
		for i, b := range t.Bindings {
			names[i] = b.Name
		}
		inner := with(names...)
		for _, b := range t.Bindings {
			freeVars(b.Value, inner, out)
		}
		freeVars(t.Body, inner, out)
	case *Case:
		freeVars(t.Scrutinee, bound, out)
		for _, alt := range t.Alts {
			inner := bound.Copy()
			inner.InsertSet(PatternVars(alt.Pattern))
			freeVars(alt.Body, inner, out)
		}
	default:
		MapChildren(t, func(child Term) Term {
			freeVars(child, bound, out)
			return child
		})
	}
}

// Clone copies t giving every node a fresh ID from ids. Spans are kept.
func Clone(t Term, ids *IDGen) Term {
	return Rewrite(t, func(n Term) Term {
		return withID(n, ids.Next())
	})
}

func withID(t Term, id NodeID) Term {
	switch t := t.(type) {
	case *Var:
		c := *t
		c.ID = id
		return &c
	case *Lit:
		c := *t
		c.ID = id
		return &c
	case *Lam:
		c := *t
		c.ID = id
		return &c
	case *App:
		c := *t
		c.ID = id
		return &c
	case *Let:
		c := *t
		c.ID = id
		return &c
	case *LetRec:
		c := *t
		c.ID = id
		return &c
	case *Constructor:
		c := *t
		c.ID = id
		return &c
	case *Case:
		c := *t
		c.ID = id
		return &c
	case *RecordLit:
		c := *t
		c.ID = id
		return &c
	case *Project:
		c := *t
		c.ID = id
		return &c
	case *Update:
		c := *t
		c.ID = id
		return &c
	case *Delete:
		c := *t
		c.ID = id
		return &c
	case *Fold:
		c := *t
		c.ID = id
		return &c
	case *EffectPure:
		c := *t
		c.ID = id
		return &c
	case *EffectBind:
		c := *t
		c.ID = id
		return &c
	case *EffectFail:
		c := *t
		c.ID = id
		return &c
	case *TypeAbs:
		c := *t
		c.ID = id
		return &c
	case *TypeApp:
		c := *t
		c.ID = id
		return &c
	}
	return t
}

// Count returns the number of nodes in t.
func Count(t Term) int {
	n := 0
	Walk(t, func(Term) bool {
		n++
		return true
	})
	return n
}
