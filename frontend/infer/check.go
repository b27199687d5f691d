package infer

import (
	"log/slog"
	"sync/atomic"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/aivi-lang/aivi/internal/log"
)

var logger = log.DefaultLogger.With("section", "infer")

// Binding is a top-level definition handed to the checker. Sig is the
// declared scheme, or nil.
type Binding struct {
	Name  string
	Value kernel.Term
	Sig   types.Type
	Span  ast.Range
}

// Solved is the outcome for one binding. A failed binding has the Error
// scheme and its unelaborated term.
type Solved struct {
	Name   string
	Scheme types.Type
	Term   kernel.Term
}

// GroupResult is the outcome of checking one recursive group.
type GroupResult struct {
	Bindings []Solved
	// Types holds the resolved type of every node of the group.
	Types map[kernel.NodeID]types.Type
	Err   ilerr.IleError

	fresh *types.Fresh
}

var _ kernel.Oracle = (*GroupResult)(nil)

func (r *GroupResult) Failed() bool { return r.Err != nil }

func (r *GroupResult) TypeOf(id kernel.NodeID) (types.Type, bool) {
	t, ok := r.Types[id]
	return t, ok
}

func (r *GroupResult) Unifiable(a, b types.Type) bool {
	return newUnifier(r.fresh).unifiable(a, b)
}

// Checker infers the bindings of one module, group by group. Schemes of
// checked groups are added with Define so later groups can use them.
type Checker struct {
	u           *Universe
	fresh       *types.Fresh
	b           *kernel.Builder
	annotations map[kernel.NodeID]ast.TypeExpr
	logger      *slog.Logger
}

// checkers numbers the variable blocks of checkers, so that schemes
// exported by one module never share variable IDs with another.
var checkers atomic.Int64

func NewChecker(u *Universe, ids *kernel.IDGen, annotations map[kernel.NodeID]ast.TypeExpr) *Checker {
	if annotations == nil {
		annotations = map[kernel.NodeID]ast.TypeExpr{}
	}
	return &Checker{
		u:           u,
		fresh:       types.NewFresh(int(checkers.Add(1)) << 32),
		b:           kernel.NewBuilder(ids),
		annotations: annotations,
		logger:      logger,
	}
}

func (c *Checker) Universe() *Universe { return c.u }

// SetUniverse replaces the global environment, once the declarations of
// the module have been registered.
func (c *Checker) SetUniverse(u *Universe) { c.u = u }

// Scheme converts a signature into a scheme quantified over its type
// variables, in order of appearance.
func (c *Checker) Scheme(sig ast.TypeExpr) (types.Type, ilerr.IleError) {
	conv := types.NewConverter(c.u, func(_ string, k types.Kind) types.Type {
		return c.fresh.Var(k)
	})
	t, err := conv.Convert(sig)
	if err != nil {
		return nil, convertError(sig, err)
	}
	return types.Quantify(types.Vars(t), nil, t), nil
}

// Convert converts a declared type. Type variables named in bound are
// taken from it; the others are created and added to it.
func (c *Checker) Convert(e ast.TypeExpr, bound map[string]*types.Var) (types.Type, ilerr.IleError) {
	conv := types.NewConverter(c.u, func(name string, k types.Kind) types.Type {
		v := c.fresh.Var(k)
		if name != "" && bound != nil {
			bound[name] = v
		}
		return v
	})
	for name, v := range bound {
		conv.Bind(name, v)
	}
	t, err := conv.Convert(e)
	if err != nil {
		return nil, convertError(e, err)
	}
	return t, nil
}

// ConvertPreds converts an instance context against the variables of its head.
func (c *Checker) ConvertPreds(preds []ast.PredExpr, bound map[string]*types.Var) ([]types.Pred, ilerr.IleError) {
	conv := types.NewConverter(c.u, func(name string, k types.Kind) types.Type {
		v := c.fresh.Var(k)
		if name != "" && bound != nil {
			bound[name] = v
		}
		return v
	})
	for name, v := range bound {
		conv.Bind(name, v)
	}
	out, err := conv.ConvertPreds(preds)
	if err != nil {
		at := ast.Range{}
		if len(preds) > 0 {
			at = preds[0].Range
		}
		return nil, convertError(at, err)
	}
	return out, nil
}

// Define makes a checked binding visible to the groups checked after it.
func (c *Checker) Define(name string, scheme types.Type) {
	c.u = c.u.WithValue(name, scheme)
}

// Fresh exposes the checker's variable supply, for converting signatures.
func (c *Checker) Fresh() *types.Fresh { return c.fresh }

// CheckGroup infers a group of mutually recursive bindings. Members
// without a signature are inferred together and generalised jointly,
// sharing their class predicates; members with one are then checked
// against it. In probe mode unresolved sites may remain: the group is
// typed but not elaborated, and ambiguous constraints are not errors.
func (c *Checker) CheckGroup(bs []Binding, probe bool) *GroupResult {
	s := newState(c, probe)
	group := &groupInfo{}

	e := emptyEnv()
	var unsigned, signed []int
	monos := make([]types.Type, len(bs))
	for i, b := range bs {
		if b.Sig != nil {
			signed = append(signed, i)
			e = e.Set(b.Name, local{t: b.Sig})
			continue
		}
		unsigned = append(unsigned, i)
		monos[i] = s.fresh()
		e = e.Set(b.Name, local{t: monos[i], group: group})
	}

	for _, i := range unsigned {
		s.binding = bs[i].Name
		s.unify(bs[i].Value, monos[i], s.infer(bs[i].Value, e))
	}
	s.solve()

	schemes := make([]types.Type, len(bs))
	if len(unsigned) > 0 {
		names := make([]string, len(unsigned))
		values := make([]kernel.Term, len(unsigned))
		ts := make([]types.Type, len(unsigned))
		for k, i := range unsigned {
			names[k], values[k], ts[k] = bs[i].Name, bs[i].Value, monos[i]
		}
		generalised, info := s.generalise(emptyEnv(), 0, names, values, ts)
		group.vars, group.preds, group.params = info.vars, info.preds, info.params
		for k, i := range unsigned {
			schemes[i] = generalised[k]
			e = e.Set(bs[i].Name, local{t: generalised[k]})
		}
	}

	infos := make([]*letInfo, len(bs))
	for _, i := range unsigned {
		infos[i] = &letInfo{vars: group.vars, preds: group.preds, params: group.params}
	}
	for _, i := range signed {
		s.binding = bs[i].Name
		infos[i] = s.checkSigned(bs[i].Value, bs[i].Sig, e)
		schemes[i] = bs[i].Sig
	}
	s.ambiguous(0)

	result := &GroupResult{Types: map[kernel.NodeID]types.Type{}, Err: s.err, fresh: c.fresh}
	for _, b := range bs {
		result.Bindings = append(result.Bindings, Solved{Name: b.Name, Scheme: types.Error{}, Term: b.Value})
	}
	if !s.failed() && !probe {
		for i, b := range bs {
			result.Bindings[i].Scheme = s.final(schemes[i])
			result.Bindings[i].Term = s.abstract(s.elaborate(b.Value), infos[i])
		}
	}
	for id, t := range s.types {
		result.Types[id] = s.final(t)
	}
	if !s.failed() {
		for _, b := range result.Bindings {
			c.logger.Debug("checked binding", "name", b.Name, "type", types.Show(b.Scheme), "probe", probe)
		}
	}
	return result
}

// generalise quantifies ts over the variables not free in e and turns the
// class constraints raised since start into shared predicates. Only
// function bindings may take predicates.
func (s *state) generalise(e env, start int, names []string, values []kernel.Term, ts []types.Type) ([]types.Type, *letInfo) {
	vars := s.generalisable(e, ts...)
	gs := s.resolveHoles(start, e, vars, nil)
	if len(gs) > 0 && !s.probe {
		for i, v := range values {
			if _, isLam := v.(*kernel.Lam); !isLam {
				s.fail(ilerr.New(ilerr.NewAmbiguousClassConstraint{Positioner: v, Binding: names[i], Pred: gs[0].pred}))
				break
			}
		}
	}
	info := &letInfo{vars: vars, preds: predsOf(gs), params: paramsOf(gs)}
	schemes := make([]types.Type, len(ts))
	for i, t := range ts {
		schemes[i] = types.Quantify(vars, info.preds, s.u.apply(t))
	}
	return schemes, info
}

// checkSigned checks value against a declared scheme. The quantified
// variables become rigid constructors and the predicates are assumed,
// each with a dictionary parameter.
func (s *state) checkSigned(value kernel.Term, sig types.Type, e env) *letInfo {
	vars, preds, body := types.Split(sig)
	printer := types.NewPrinter()
	sub := types.NewSubst()
	for _, v := range vars {
		con := &types.Con{Name: printer.Show(v), Kind: v.Kind, Rigid: true}
		s.skolems[con] = v
		sub = sub.Extend(v.ID, con)
	}
	info := &letInfo{vars: vars, preds: preds}
	outer := s.givens
	for _, p := range preds {
		param := s.c.b.Fresh("dict")
		info.params = append(info.params, param)
		s.givens = append(s.givens, given{pred: types.Pred{Class: p.Class, Type: sub.Apply(p.Type)}, param: param})
	}
	start := len(s.holes)
	s.unify(value, sub.Apply(body), s.infer(value, e))
	s.solve()
	s.resolveHoles(start, emptyEnv(), nil, nil)
	s.ambiguous(start)
	s.givens = outer
	return info
}

func (s *state) let(t *kernel.Let, e env) types.Type {
	start := len(s.holes)
	vt := s.infer(t.Value, e)
	s.solve()
	schemes, info := s.generalise(e, start, []string{t.Name}, []kernel.Term{t.Value}, []types.Type{vt})
	s.lets[t.ID] = info
	return s.infer(t.Body, e.Set(t.Name, local{t: schemes[0]}))
}

func (s *state) letRec(t *kernel.LetRec, e env) types.Type {
	start := len(s.holes)
	group := &groupInfo{}
	inner := e
	names := make([]string, len(t.Bindings))
	values := make([]kernel.Term, len(t.Bindings))
	monos := make([]types.Type, len(t.Bindings))
	for i, b := range t.Bindings {
		names[i], values[i], monos[i] = b.Name, b.Value, s.fresh()
		inner = inner.Set(b.Name, local{t: monos[i], group: group})
	}
	for i, b := range t.Bindings {
		s.unify(b.Value, monos[i], s.infer(b.Value, inner))
	}
	s.solve()
	schemes, info := s.generalise(e, start, names, values, monos)
	group.vars, group.preds, group.params = info.vars, info.preds, info.params
	s.recs[t.ID] = info
	outer := e
	for i, name := range names {
		outer = outer.Set(name, local{t: schemes[i]})
	}
	return s.infer(t.Body, outer)
}

// final applies the substitution and turns signature skolems back into
// the variables they stand for.
func (s *state) final(t types.Type) types.Type {
	t = s.u.apply(t)
	if len(s.skolems) == 0 {
		return t
	}
	return unskolem(t, s.skolems)
}

func unskolem(t types.Type, skolems map[*types.Con]*types.Var) types.Type {
	switch t := t.(type) {
	case *types.Con:
		if v, ok := skolems[t]; ok {
			return v
		}
	case *types.App:
		return &types.App{Fun: unskolem(t.Fun, skolems), Arg: unskolem(t.Arg, skolems)}
	case *types.Arrow:
		return &types.Arrow{From: unskolem(t.From, skolems), To: unskolem(t.To, skolems)}
	case *types.Record:
		fields := make(map[string]types.Type, t.Len())
		for _, label := range t.Labels() {
			ft, _ := t.Field(label)
			fields[label] = unskolem(ft, skolems)
		}
		return types.NewRecord(fields, t.Tail)
	case *types.Forall:
		return &types.Forall{Vars: t.Vars, Body: unskolem(t.Body, skolems)}
	case *types.Constrained:
		preds := make([]types.Pred, len(t.Preds))
		for i, p := range t.Preds {
			preds[i] = types.Pred{Class: p.Class, Type: unskolem(p.Type, skolems)}
		}
		return &types.Constrained{Preds: preds, Body: unskolem(t.Body, skolems)}
	}
	return t
}
