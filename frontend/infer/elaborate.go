package infer

import (
	"github.com/aivi-lang/aivi/frontend/desugar"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// elaborate inserts dictionaries and type applications. A class method
// becomes a projection out of its dictionary; a reference to a
// polymorphic binding becomes `x @[types] dict1 ... dictN`. Rewritten
// references keep the node ID of the original variable, so its recorded
// type still applies.
func (s *state) elaborate(t kernel.Term) kernel.Term {
	return kernel.Rewrite(t, func(n kernel.Term) kernel.Term {
		switch n := n.(type) {
		case *kernel.Var:
			if occ, ok := s.occs[n.ID]; ok {
				return s.reference(n, occ)
			}
		case *kernel.Let:
			if info, ok := s.lets[n.ID]; ok {
				return &kernel.Let{Node: n.Node, Name: n.Name, Value: s.abstract(n.Value, info), Body: n.Body}
			}
		case *kernel.LetRec:
			if info, ok := s.recs[n.ID]; ok {
				bindings := make([]kernel.Binding, len(n.Bindings))
				for i, b := range n.Bindings {
					bindings[i] = kernel.Binding{Name: b.Name, Value: s.abstract(b.Value, info)}
				}
				return &kernel.LetRec{Node: n.Node, Bindings: bindings, Body: n.Body}
			}
		}
		return n
	})
}

// abstract wraps a generalised value as `/\vars. \dict1 ... dictN. value`.
func (s *state) abstract(value kernel.Term, info *letInfo) kernel.Term {
	if info == nil || (len(info.vars) == 0 && len(info.params) == 0) {
		return value
	}
	b := s.c.b.At(value)
	mono := s.types[value.NodeID()]
	body, bodyT := value, mono
	for i := len(info.params) - 1; i >= 0; i-- {
		lam := b.Lam(info.params[i], body)
		bodyT = &types.Arrow{From: s.c.u.DictType(info.preds[i]), To: bodyT}
		s.record(lam, bodyT)
		body = lam
	}
	if len(info.vars) == 0 {
		return body
	}
	abs := b.TypeAbs(info.vars, body)
	s.record(abs, types.Quantify(info.vars, info.preds, mono))
	return abs
}

func (s *state) reference(v *kernel.Var, occ *occurrence) kernel.Term {
	b := s.c.b.At(v)
	mono := s.types[v.ID]

	if occ.group != nil {
		g := occ.group
		if len(g.vars) == 0 && len(g.params) == 0 {
			return v
		}
		args := make([]types.Type, len(g.vars))
		for i, gv := range g.vars {
			args[i] = gv
		}
		dicts := make([]kernel.Term, len(g.params))
		for i, p := range g.params {
			dicts[i] = s.typed(b.Var(p), s.c.u.DictType(g.preds[i]))
		}
		return s.instantiated(b, v, types.Quantify(g.vars, g.preds, mono), args, g.preds, dicts, mono)
	}

	if occ.method != "" && len(occ.holes) > 0 {
		return &kernel.Project{Node: v.Node, Record: s.dict(b, occ.holes[0]), Label: occ.method}
	}

	preds := make([]types.Pred, len(occ.holes))
	dicts := make([]kernel.Term, len(occ.holes))
	for i, h := range occ.holes {
		preds[i], dicts[i] = h.pred, s.dict(b, h)
	}
	return s.instantiated(b, v, occ.scheme, occ.args, preds, dicts, mono)
}

// instantiated builds `name @[args] dicts...`. The outermost node takes
// over the ID of v.
func (s *state) instantiated(b *kernel.Builder, v *kernel.Var, scheme types.Type, args []types.Type, preds []types.Pred, dicts []kernel.Term, mono types.Type) kernel.Term {
	dictTs := make([]types.Type, len(preds))
	for i, p := range preds {
		dictTs[i] = s.c.u.DictType(p)
	}
	remaining := func(k int) types.Type {
		return types.Fn(append(append([]types.Type(nil), dictTs[k:]...), mono)...)
	}

	var head kernel.Term = s.typed(b.Var(v.Name), scheme)
	if len(args) > 0 {
		app := b.TypeApp(head, s.finalAll(args))
		if len(dicts) == 0 {
			app.Node = v.Node
			return app
		}
		head = s.typed(app, remaining(0))
	}
	for i, d := range dicts {
		app := &kernel.App{Fun: head, Arg: d}
		if i == len(dicts)-1 {
			app.Node = v.Node
			return app
		}
		app.Node = kernel.Node{ID: b.IDs().Next(), Range: b.Span()}
		head = s.typed(app, remaining(i+1))
	}
	return head
}

// dict builds the dictionary term of a resolved hole.
func (s *state) dict(b *kernel.Builder, h *hole) kernel.Term {
	dictT := s.c.u.DictType(h.pred)
	switch h.kind {
	case dictParam:
		return s.typed(b.Var(h.param), dictT)
	case dictInstance:
		inst := h.instance
		ctxTs := make([]types.Type, len(h.context))
		for i, child := range h.context {
			ctxTs[i] = s.c.u.DictType(child.pred)
		}
		headT := types.Fn(append(append([]types.Type(nil), ctxTs...), dictT)...)
		var head kernel.Term = s.typed(b.Var(inst.DictName), types.Quantify(inst.Vars, nil, instanceDictType(s.c.u, inst)))
		if len(h.args) > 0 {
			head = s.typed(b.TypeApp(head, s.finalAll(h.args)), headT)
		}
		for i, child := range h.context {
			head = s.typed(b.App(head, s.dict(b, child)), types.Fn(append(append([]types.Type(nil), ctxTs[i+1:]...), dictT)...))
		}
		return head
	}
	return s.typed(b.Var(desugar.NameUnreachable), types.Error{})
}

// instanceDictType is the type of an instance dictionary binding before
// its variables are applied: a function from the context dictionaries.
func instanceDictType(u *Universe, inst *Instance) types.Type {
	ts := make([]types.Type, 0, len(inst.Context)+1)
	for _, p := range inst.Context {
		ts = append(ts, u.DictType(p))
	}
	ts = append(ts, u.DictType(types.Pred{Class: inst.Class, Type: inst.Head}))
	return types.Fn(ts...)
}

// finalAll resolves type arguments, which are recorded while the
// substitution is still growing.
func (s *state) finalAll(ts []types.Type) []types.Type {
	out := make([]types.Type, len(ts))
	for i, t := range ts {
		out[i] = s.final(t)
	}
	return out
}

func (s *state) typed(t kernel.Term, ty types.Type) kernel.Term {
	s.record(t, ty)
	return t
}
