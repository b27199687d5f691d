package infer

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/types"
)

type dictKind int

const (
	dictPending dictKind = iota
	// dictParam is a dictionary received as a parameter.
	dictParam
	// dictInstance is built from a global instance.
	dictInstance
	// dictDummy stands in when the constraint mentions the Error type.
	dictDummy
)

// hole is a class constraint waiting for its dictionary.
type hole struct {
	pred    types.Pred
	span    ast.Range
	binding string

	kind     dictKind
	param    string
	instance *Instance
	args     []types.Type
	context  []*hole
}

func (h *hole) resolved() bool { return h.kind != dictPending }

// given is a constraint assumed by a signature or instance context,
// together with the parameter carrying its dictionary.
type given struct {
	pred  types.Pred
	param string
}

func (s *state) newHole(at ast.Positioner, pred types.Pred) *hole {
	h := &hole{pred: pred, span: ast.RangeOf(at), binding: s.binding}
	s.holes = append(s.holes, h)
	return h
}

// resolveHoles settles the holes created since start. Holes whose type is
// headed by a variable of gen become predicates of the binding being
// generalised; holes on other variables wait for an outer boundary. So do
// holes mentioning a variable free in e and none of gen, since later code
// may still refine them. It returns the new predicates with their
// dictionary parameters.
func (s *state) resolveHoles(start int, e env, gen []*types.Var, existing []given) []given {
	genSet := set.New[int](len(gen))
	for _, v := range gen {
		genSet.Insert(v.ID)
	}
	fixed := s.envVars(e)
	preds := existing
	for i := start; i < len(s.holes) && !s.failed(); i++ {
		h := s.holes[i]
		if h.resolved() {
			continue
		}
		t := s.u.apply(h.pred.Type)
		h.pred.Type = t
		if _, ok := t.(types.Error); ok {
			h.kind = dictDummy
			continue
		}
		if g, ok := findGiven(append(s.givens, preds...), h.pred); ok {
			h.kind, h.param = dictParam, g.param
			continue
		}
		head, _ := types.Spine(t)
		if v, ok := head.(*types.Var); ok {
			if genSet.Contains(v.ID) {
				g := given{pred: h.pred, param: s.c.b.Fresh("dict")}
				preds = append(preds, g)
				h.kind, h.param = dictParam, g.param
			}
			continue
		}
		if mentions(t, fixed) && !mentions(t, genSet) {
			continue
		}
		s.byInstance(h)
	}
	return preds[len(existing):]
}

func mentions(t types.Type, vars *set.Set[int]) bool {
	for _, v := range types.Vars(t) {
		if vars.Contains(v.ID) {
			return true
		}
	}
	return false
}

func findGiven(givens []given, pred types.Pred) (given, bool) {
	for _, g := range givens {
		if g.pred.Class == pred.Class && types.Equal(g.pred.Type, pred.Type) {
			return g, true
		}
	}
	return given{}, false
}

// byInstance resolves h against the instance table. The context of the
// chosen instance becomes new holes, settled by the caller's loop.
func (s *state) byInstance(h *hole) {
	var matches []*Instance
	var substs []types.Subst
	for _, inst := range s.c.u.Instances(h.pred.Class) {
		if sub, ok := types.Match(inst.Head, h.pred.Type); ok {
			matches = append(matches, inst)
			substs = append(substs, sub)
		}
	}
	switch len(matches) {
	case 0:
		s.fail(ilerr.New(ilerr.NewNoInstance{Positioner: h.span, Pred: h.pred}))
		return
	case 1:
	default:
		names := make([]string, len(matches))
		spans := make([]ast.Range, len(matches))
		for i, m := range matches {
			names[i], spans[i] = m.DictName, m.Span
		}
		s.fail(ilerr.New(ilerr.NewAmbiguousInstance{Positioner: h.span, Pred: h.pred, Instances: names, Spans: spans}))
		return
	}
	inst, sub := matches[0], substs[0]
	h.kind, h.instance = dictInstance, inst
	h.args = make([]types.Type, len(inst.Vars))
	for i, v := range inst.Vars {
		if t, ok := sub.Lookup(v.ID); ok {
			h.args[i] = t
		} else {
			h.args[i] = s.fresh()
		}
	}
	for _, p := range inst.Context {
		child := &hole{pred: types.Pred{Class: p.Class, Type: sub.Apply(p.Type)}, span: h.span, binding: h.binding}
		h.context = append(h.context, child)
		s.holes = append(s.holes, child)
	}
	s.c.logger.Debug("resolved instance", "pred", types.ShowPred(h.pred), "dict", inst.DictName)
}

// ambiguous reports every hole since start that is still unresolved.
// Probing rounds give them dummy dictionaries instead: the unresolved
// sites around them may still fix their types.
func (s *state) ambiguous(start int) {
	for i := start; i < len(s.holes); i++ {
		h := s.holes[i]
		if h.resolved() {
			continue
		}
		if s.probe {
			h.kind = dictDummy
			continue
		}
		s.fail(ilerr.New(ilerr.NewAmbiguousClassConstraint{Positioner: h.span, Binding: h.binding, Pred: types.Pred{Class: h.pred.Class, Type: s.u.apply(h.pred.Type)}}))
		return
	}
}

func predsOf(gs []given) []types.Pred {
	out := make([]types.Pred, len(gs))
	for i, g := range gs {
		out[i] = g.pred
	}
	return out
}

func paramsOf(gs []given) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.param
	}
	return out
}
