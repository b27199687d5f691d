package infer

import (
	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// local is a locally bound name: a lambda or pattern variable (monotype),
// a generalised let (scheme), or a member of the recursive group being
// checked.
type local struct {
	t     types.Type
	group *groupInfo
}

type env = *immutable.Map[string, local]

func emptyEnv() env {
	return immutable.NewMap[string, local](nil)
}

// groupInfo is filled in once a recursive group is generalised, so that
// the references its members make to each other can be elaborated.
type groupInfo struct {
	vars   []*types.Var
	preds  []types.Pred
	params []string
}

type constraintKind int

const (
	cUnify constraintKind = iota
	cLacks
	cKind
)

type constraint struct {
	kind  constraintKind
	a, b  types.Type
	label string
	span  ast.Range
}

// occurrence records how a variable reference instantiated its scheme.
type occurrence struct {
	name   string
	scheme types.Type
	args   []types.Type
	holes  []*hole
	method string
	group  *groupInfo
}

// letInfo is the generalisation of one let-bound value.
type letInfo struct {
	vars   []*types.Var
	preds  []types.Pred
	params []string
}

// state is the constraint store of one group check.
type state struct {
	c     *Checker
	u     unifier
	probe bool

	pending []constraint
	holes   []*hole
	types   map[kernel.NodeID]types.Type
	occs    map[kernel.NodeID]*occurrence
	lets    map[kernel.NodeID]*letInfo
	recs    map[kernel.NodeID]*letInfo
	givens  []given
	// skolems maps the rigid constructors of signatures back to their
	// quantified variables.
	skolems map[*types.Con]*types.Var

	// binding is the top-level binding being inferred, for diagnostics.
	binding string
	err     ilerr.IleError
}

func newState(c *Checker, probe bool) *state {
	return &state{
		c:     c,
		u:     newUnifier(c.fresh),
		probe: probe,
		types: map[kernel.NodeID]types.Type{},
		occs:  map[kernel.NodeID]*occurrence{},
		lets:  map[kernel.NodeID]*letInfo{},
		recs:  map[kernel.NodeID]*letInfo{},

		skolems: map[*types.Con]*types.Var{},
	}
}

func (s *state) fresh() *types.Var {
	return s.c.fresh.Star()
}

func (s *state) failed() bool {
	return s.err != nil
}

// fail records the first error of the group; later ones are cascades.
func (s *state) fail(err ilerr.IleError) {
	if s.err != nil {
		return
	}
	s.c.logger.Debug("group failed", "binding", s.binding, "err", ilerr.FormatWithCode(err))
	s.err = err
}

func (s *state) record(t kernel.Term, ty types.Type) types.Type {
	s.types[t.NodeID()] = ty
	return ty
}

func (s *state) unify(at ast.Positioner, expected, found types.Type) {
	s.pending = append(s.pending, constraint{kind: cUnify, a: expected, b: found, span: ast.RangeOf(at)})
}

func (s *state) lacks(at ast.Positioner, row types.Type, label string) {
	s.pending = append(s.pending, constraint{kind: cLacks, a: row, label: label, span: ast.RangeOf(at)})
}

func (s *state) kind(at ast.Positioner, t types.Type) {
	s.pending = append(s.pending, constraint{kind: cKind, a: t, span: ast.RangeOf(at)})
}

// solve discharges the pending constraints in generation order.
func (s *state) solve() {
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if s.failed() {
			return
		}
		switch c.kind {
		case cUnify:
			if f := s.u.unify(c.a, c.b); f != nil {
				s.fail(f.report(c.span, s.u.apply(c.a), s.u.apply(c.b)))
			}
		case cLacks:
			if f := s.u.lacksLabel(c.a, c.label); f != nil {
				s.fail(f.report(c.span, nil, nil))
			}
		case cKind:
			t := s.u.apply(c.a)
			k, err := types.KindOf(t)
			if ke, ok := err.(*types.KindError); ok {
				s.fail(ilerr.New(ilerr.NewKindMismatch{Positioner: c.span, Type: ke.Type, Expected: ke.Expected, Actual: ke.Actual}))
			} else if err == nil && !types.KindEqual(k, types.Star) {
				s.fail(ilerr.New(ilerr.NewKindMismatch{Positioner: c.span, Type: t, Expected: types.Star, Actual: k}))
			}
		}
	}
}

// envVars returns the type variables free in the local environment.
func (s *state) envVars(e env) *set.Set[int] {
	out := set.New[int](8)
	itr := e.Iterator()
	for !itr.Done() {
		_, l, _ := itr.Next()
		for _, v := range types.Vars(s.u.apply(l.t)) {
			out.Insert(v.ID)
		}
	}
	return out
}

// generalisable returns the variables of ts not free in e, in order of
// first appearance.
func (s *state) generalisable(e env, ts ...types.Type) []*types.Var {
	fixed := s.envVars(e)
	seen := set.New[int](8)
	var out []*types.Var
	for _, t := range ts {
		for _, v := range types.Vars(s.u.apply(t)) {
			if fixed.Contains(v.ID) || !seen.Insert(v.ID) {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}
