package infer

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// CheckInstance checks the methods of an instance against its class and
// builds the dictionary binding
//
//	Class$Head = /\vars. \ctx1 ... ctxN. {method1 = ..., ...}
//
// The result holds a single binding named after the dictionary.
func (c *Checker) CheckInstance(inst *Instance, methods map[string]kernel.Term) *GroupResult {
	s := newState(c, false)
	s.binding = inst.DictName
	result := &GroupResult{Types: map[kernel.NodeID]types.Type{}, fresh: c.fresh}
	result.Bindings = []Solved{{Name: inst.DictName, Scheme: types.Error{}}}

	def, ok := c.u.LookupClass(inst.Class)
	if !ok {
		result.Err = ilerr.New(ilerr.NewUndefinedType{Positioner: inst.Span, Message: fmt.Sprintf("class '%s' is not defined", inst.Class)})
		return result
	}
	if k, err := types.KindOf(inst.Head); err == nil && !types.KindEqual(k, def.Param.Kind) {
		result.Err = ilerr.New(ilerr.NewKindMismatch{Positioner: inst.Span, Type: inst.Head, Expected: def.Param.Kind, Actual: k})
		return result
	}
	for name := range methods {
		if _, ok := def.Methods[name]; !ok {
			result.Err = ilerr.New(ilerr.NewInstanceMethod{Positioner: methods[name], Instance: inst.DictName, Class: def.Name, Method: name})
			return result
		}
	}

	printer := types.NewPrinter()
	rigid := func(v *types.Var) *types.Con {
		con := &types.Con{Name: printer.Show(v), Kind: v.Kind, Rigid: true}
		s.skolems[con] = v
		return con
	}
	sub := types.NewSubst()
	for _, v := range inst.Vars {
		sub = sub.Extend(v.ID, rigid(v))
	}
	var params []string
	for _, p := range inst.Context {
		param := c.b.Fresh("dict")
		params = append(params, param)
		s.givens = append(s.givens, given{pred: types.Pred{Class: p.Class, Type: sub.Apply(p.Type)}, param: param})
	}

	names := def.MethodNames()
	methodVars := make([][]*types.Var, len(names))
	for i, name := range names {
		value, ok := methods[name]
		if !ok {
			s.fail(ilerr.New(ilerr.NewInstanceMethod{Positioner: inst.Span, Instance: inst.DictName, Class: def.Name, Method: name, Missing: true}))
			break
		}
		t := def.Methods[name]
		msub := sub.Extend(def.Param.ID, sub.Apply(inst.Head))
		for _, v := range types.Vars(t) {
			if v.ID != def.Param.ID {
				methodVars[i] = append(methodVars[i], v)
				msub = msub.Extend(v.ID, rigid(v))
			}
		}
		start := len(s.holes)
		s.binding = inst.DictName + "." + name
		s.unify(value, msub.Apply(t), s.infer(value, emptyEnv()))
		s.solve()
		s.resolveHoles(start, emptyEnv(), nil, nil)
		s.ambiguous(start)
		if s.failed() {
			break
		}
	}
	result.Err = s.err
	if !s.failed() {
		result.Bindings[0] = Solved{
			Name:   inst.DictName,
			Scheme: types.Quantify(inst.Vars, nil, instanceDictType(c.u, inst)),
			Term:   s.dictionary(inst, names, methodVars, methods, params),
		}
	}
	for id, t := range s.types {
		result.Types[id] = s.final(t)
	}
	return result
}

func (s *state) dictionary(inst *Instance, names []string, methodVars [][]*types.Var, methods map[string]kernel.Term, params []string) kernel.Term {
	b := s.c.b.At(inst.Span)
	fields := make([]kernel.Field, len(names))
	for i, name := range names {
		value := s.elaborate(methods[name])
		if len(methodVars[i]) > 0 {
			abs := b.TypeAbs(methodVars[i], value)
			s.record(abs, types.Quantify(methodVars[i], nil, s.types[value.NodeID()]))
			value = abs
		}
		fields[i] = kernel.Field{Label: name, Value: value}
	}
	dictT := s.c.u.DictType(types.Pred{Class: inst.Class, Type: inst.Head})
	var body kernel.Term = s.typed(b.Record(fields...), dictT)
	bodyT := dictT
	for i := len(params) - 1; i >= 0; i-- {
		bodyT = &types.Arrow{From: s.c.u.DictType(inst.Context[i]), To: bodyT}
		body = s.typed(b.Lam(params[i], body), bodyT)
	}
	if len(inst.Vars) == 0 {
		return body
	}
	return s.typed(b.TypeAbs(inst.Vars, body), types.Quantify(inst.Vars, nil, bodyT))
}
