package infer

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// infer generates the constraints of t bottom-up and returns its type.
// Types are recorded per node before solving; they are applied at the end.
func (s *state) infer(t kernel.Term, e env) types.Type {
	ty := s.inferNode(t, e)
	if annot, ok := s.c.annotations[t.NodeID()]; ok {
		s.annotate(t, annot, ty)
	}
	return s.record(t, ty)
}

func (s *state) inferNode(t kernel.Term, e env) types.Type {
	switch t := t.(type) {
	case *kernel.Var:
		return s.variable(t, e)
	case *kernel.Lit:
		switch t.Kind {
		case kernel.LitInt:
			return types.Int
		case kernel.LitFloat:
			return types.Float
		}
		return types.Text
	case *kernel.Lam:
		param := s.fresh()
		body := s.infer(t.Body, e.Set(t.Param, local{t: param}))
		return &types.Arrow{From: param, To: body}
	case *kernel.App:
		fn := s.infer(t.Fun, e)
		arg := s.infer(t.Arg, e)
		ret := s.fresh()
		s.unify(t.Arg, &types.Arrow{From: arg, To: ret}, fn)
		return ret
	case *kernel.Let:
		return s.let(t, e)
	case *kernel.LetRec:
		return s.letRec(t, e)
	case *kernel.Constructor:
		return s.constructor(t, e)
	case *kernel.Case:
		scrutinee := s.infer(t.Scrutinee, e)
		ret := s.fresh()
		for _, alt := range t.Alts {
			inner := s.pattern(alt.Pattern, scrutinee, e)
			s.unify(alt.Body, ret, s.infer(alt.Body, inner))
		}
		return ret
	case *kernel.RecordLit:
		fields := make(map[string]types.Type, len(t.Fields))
		for _, f := range t.Fields {
			ft := s.infer(f.Value, e)
			if _, dup := fields[f.Label]; dup {
				s.fail(ilerr.New(ilerr.NewRowFieldConflict{Positioner: f.Value, Label: f.Label, Record: types.NewRecord(fields, nil), Present: true}))
				continue
			}
			fields[f.Label] = ft
		}
		return types.NewRecord(fields, nil)
	case *kernel.Project:
		field, rest := s.fresh(), s.fresh()
		r := s.infer(t.Record, e)
		s.unify(t, types.NewRecord(map[string]types.Type{t.Label: field}, rest), r)
		s.lacks(t, rest, t.Label)
		return field
	case *kernel.Update:
		from, to, rest := s.fresh(), s.fresh(), s.fresh()
		r := s.infer(t.Record, e)
		s.unify(t.Record, types.NewRecord(map[string]types.Type{t.Label: from}, rest), r)
		s.lacks(t, rest, t.Label)
		s.unify(t.Fn, &types.Arrow{From: from, To: to}, s.infer(t.Fn, e))
		return types.NewRecord(map[string]types.Type{t.Label: to}, rest)
	case *kernel.Delete:
		field, rest := s.fresh(), s.fresh()
		r := s.infer(t.Record, e)
		s.unify(t.Record, types.NewRecord(map[string]types.Type{t.Label: field}, rest), r)
		s.lacks(t, rest, t.Label)
		return types.EmptyRow(rest)
	case *kernel.Fold:
		elem, acc := s.fresh(), s.fresh()
		s.unify(t.Step, types.Fn(acc, elem, acc), s.infer(t.Step, e))
		s.unify(t.Init, acc, s.infer(t.Init, e))
		s.unify(t.Over, types.List(elem), s.infer(t.Over, e))
		return acc
	case *kernel.EffectPure:
		return types.Effect(s.fresh(), s.infer(t.Value, e))
	case *kernel.EffectBind:
		errT, a, b := s.fresh(), s.fresh(), s.fresh()
		s.unify(t.Effect, types.Effect(errT, a), s.infer(t.Effect, e))
		s.unify(t.Fn, &types.Arrow{From: a, To: types.Effect(errT, b)}, s.infer(t.Fn, e))
		return types.Effect(errT, b)
	case *kernel.EffectFail:
		return types.Effect(s.infer(t.Err, e), s.fresh())
	case *kernel.TypeAbs:
		return s.infer(t.Body, e)
	case *kernel.TypeApp:
		return s.infer(t.Term, e)
	}
	s.fail(ilerr.New(ilerr.Unclassified{From: fmt.Errorf("unexpected kernel term %T", t), Positioner: t}))
	return types.Error{}
}

// variable instantiates the scheme of a reference. Unresolved sites are
// typed as fresh variables until they are expanded.
func (s *state) variable(v *kernel.Var, e env) types.Type {
	if v.Site != 0 {
		return s.fresh()
	}
	if l, ok := e.Get(v.Name); ok {
		if l.group != nil {
			s.occs[v.ID] = &occurrence{name: v.Name, group: l.group}
			return l.t
		}
		return s.instantiate(v, l.t, "")
	}
	scheme, ok := s.c.u.LookupValue(v.Name)
	if !ok {
		s.fail(ilerr.New(ilerr.NewUndefinedVariable{Positioner: v, Name: v.Name}))
		return types.Error{}
	}
	method := ""
	if _, isMethod := s.c.u.MethodClass(v.Name); isMethod {
		method = v.Name
	}
	return s.instantiate(v, scheme, method)
}

func (s *state) instantiate(v *kernel.Var, scheme types.Type, method string) types.Type {
	if _, ok := scheme.(types.Error); ok {
		return scheme
	}
	body, preds, args := types.Instantiate(scheme, s.c.fresh)
	if len(args) == 0 && len(preds) == 0 {
		return body
	}
	occ := &occurrence{name: v.Name, scheme: scheme, args: args, method: method}
	for _, p := range preds {
		occ.holes = append(occ.holes, s.newHole(v, p))
	}
	s.occs[v.ID] = occ
	return body
}

func (s *state) constructor(t *kernel.Constructor, e env) types.Type {
	info, ok := s.c.u.LookupCtor(t.Name)
	if !ok {
		s.fail(ilerr.New(ilerr.NewUndefinedConstructor{Positioner: t, Name: t.Name}))
		return types.Error{}
	}
	if len(t.Args) != info.Arity {
		s.fail(ilerr.New(ilerr.NewConstructorArity{Positioner: t, Name: t.Name, Expected: info.Arity, Found: len(t.Args)}))
		return types.Error{}
	}
	ct, _, _ := types.Instantiate(info.Scheme, s.c.fresh)
	for _, arg := range t.Args {
		fn, ok := ct.(*types.Arrow)
		if !ok {
			break
		}
		s.unify(arg, fn.From, s.infer(arg, e))
		ct = fn.To
	}
	return ct
}

// pattern checks p against t and returns the environment extended with
// the variables it binds. Pattern variables are monomorphic.
func (s *state) pattern(p kernel.Pattern, t types.Type, e env) env {
	switch p := p.(type) {
	case *kernel.PVar:
		return e.Set(p.Name, local{t: t})
	case *kernel.PWild:
		return e
	case *kernel.PAs:
		return s.pattern(p.Pattern, t, e.Set(p.Name, local{t: t}))
	case *kernel.PCtor:
		info, ok := s.c.u.LookupCtor(p.Name)
		if !ok {
			s.fail(ilerr.New(ilerr.NewUndefinedConstructor{Positioner: p, Name: p.Name}))
			return bindErrors(p, e)
		}
		if len(p.Args) != info.Arity {
			s.fail(ilerr.New(ilerr.NewConstructorArity{Positioner: p, Name: p.Name, Expected: info.Arity, Found: len(p.Args)}))
			return bindErrors(p, e)
		}
		ct, _, _ := types.Instantiate(info.Scheme, s.c.fresh)
		var args []types.Type
		for range p.Args {
			fn := ct.(*types.Arrow)
			args = append(args, fn.From)
			ct = fn.To
		}
		s.unify(p, t, ct)
		for i, arg := range p.Args {
			e = s.pattern(arg, args[i], e)
		}
		return e
	case *kernel.PRecord:
		fields := make(map[string]types.Type, len(p.Fields))
		for _, f := range p.Fields {
			fields[f.Label] = s.fresh()
		}
		var tail *types.Var
		if p.Open {
			tail = s.fresh()
		}
		s.unify(p, t, types.NewRecord(fields, tail))
		for _, f := range p.Fields {
			e = s.pattern(f.Pattern, fields[f.Label], e)
		}
		return e
	}
	return e
}

func bindErrors(p kernel.Pattern, e env) env {
	for _, name := range kernel.PatternVars(p).Slice() {
		e = e.Set(name, local{t: types.Error{}})
	}
	return e
}

// annotate unifies an inferred type with its source annotation. Type
// variables of an annotation are fresh unification variables.
func (s *state) annotate(at ast.Positioner, annot ast.TypeExpr, inferred types.Type) {
	conv := types.NewConverter(s.c.u, func(_ string, k types.Kind) types.Type {
		return s.c.fresh.Var(k)
	})
	t, err := conv.Convert(annot)
	if err != nil {
		s.fail(convertError(annot, err))
		return
	}
	vars, preds, body := types.Split(t)
	if len(vars) > 0 {
		body, preds, _ = types.Instantiate(t, s.c.fresh)
	}
	for _, p := range preds {
		s.newHole(at, p)
	}
	s.kind(annot, body)
	s.unify(at, body, inferred)
}

// convertError maps a failed type conversion onto a diagnostic.
func convertError(at ast.Positioner, err error) ilerr.IleError {
	if ce, ok := err.(*types.ConvertError); ok {
		if ce.Kind != nil {
			return ilerr.New(ilerr.NewKindMismatch{Positioner: ce.Range, Type: ce.Kind.Type, Expected: ce.Kind.Expected, Actual: ce.Kind.Actual})
		}
		return ilerr.New(ilerr.NewUndefinedType{Positioner: ce.Range, Message: ce.Msg})
	}
	return ilerr.New(ilerr.Unclassified{From: err, Positioner: ast.RangeOf(at)})
}
