package infer

import (
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/xtgo/set"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/types"
)

// unifier holds the solver state. Both maps are persistent, so copying a
// unifier by value gives a snapshot for trial unification.
type unifier struct {
	sub types.Subst
	// lacks records the labels a row variable must not contain.
	lacks *immutable.Map[int, []string]
	fresh *types.Fresh
}

func newUnifier(fresh *types.Fresh) unifier {
	return unifier{
		sub:   types.NewSubst(),
		lacks: immutable.NewMap[int, []string](nil),
		fresh: fresh,
	}
}

func (u *unifier) apply(t types.Type) types.Type {
	return u.sub.Apply(t)
}

// failure says why unification failed; the caller adds the span and the
// types it was unifying.
type failure struct {
	code     ilerr.ErrCode
	label    string
	record   types.Type
	present  bool
	v        *types.Var
	t        types.Type
	expected types.Kind
	actual   types.Kind
}

func (f *failure) report(at ast.Positioner, expected, found types.Type) ilerr.IleError {
	switch f.code {
	case ilerr.RowFieldConflict:
		return ilerr.New(ilerr.NewRowFieldConflict{Positioner: at, Label: f.label, Record: f.record, Present: f.present})
	case ilerr.OccursCheck:
		return ilerr.New(ilerr.NewOccursCheck{Positioner: at, Var: f.v, Type: f.t})
	case ilerr.KindMismatch:
		return ilerr.New(ilerr.NewKindMismatch{Positioner: at, Type: f.t, Expected: f.expected, Actual: f.actual})
	}
	return ilerr.New(ilerr.NewTypeMismatch{Positioner: at, Expected: expected, Found: found})
}

func mismatch() *failure { return &failure{code: ilerr.UnifyMismatch} }

func missingField(label string, record types.Type) *failure {
	return &failure{code: ilerr.RowFieldConflict, label: label, record: record}
}

func presentField(label string, record types.Type) *failure {
	return &failure{code: ilerr.RowFieldConflict, label: label, record: record, present: true}
}

func (u *unifier) unify(a, b types.Type) *failure {
	a, b = u.apply(a), u.apply(b)
	if _, ok := a.(types.Error); ok {
		return nil
	}
	if _, ok := b.(types.Error); ok {
		return nil
	}
	if av, ok := a.(*types.Var); ok {
		if bv, ok := b.(*types.Var); ok && av.ID == bv.ID {
			return nil
		}
		return u.bindVar(av, b)
	}
	if bv, ok := b.(*types.Var); ok {
		return u.bindVar(bv, a)
	}
	switch a := a.(type) {
	case *types.Con:
		if b, ok := b.(*types.Con); ok && a.Name == b.Name && a.Rigid == b.Rigid {
			if !a.Rigid || a == b {
				return nil
			}
		}
	case *types.App:
		if b, ok := b.(*types.App); ok {
			if f := u.unify(a.Fun, b.Fun); f != nil {
				return f
			}
			return u.unify(a.Arg, b.Arg)
		}
	case *types.Arrow:
		if b, ok := b.(*types.Arrow); ok {
			if f := u.unify(a.From, b.From); f != nil {
				return f
			}
			return u.unify(a.To, b.To)
		}
	case *types.Record:
		if b, ok := b.(*types.Record); ok {
			return u.unifyRows(a, b)
		}
	}
	return mismatch()
}

func (u *unifier) bindVar(v *types.Var, t types.Type) *failure {
	if types.Occurs(v.ID, t) {
		return &failure{code: ilerr.OccursCheck, v: v, t: t}
	}
	want := v.Kind
	if want == nil {
		want = types.Star
	}
	got, err := types.KindOf(t)
	if err == nil && !types.KindEqual(want, got) {
		return &failure{code: ilerr.KindMismatch, t: t, expected: want, actual: got}
	}
	if labels, ok := u.lacks.Get(v.ID); ok {
		if f := u.requireLacks(t, labels); f != nil {
			return f
		}
	}
	u.sub = u.sub.Extend(v.ID, t)
	return nil
}

// requireLacks checks that the row t has none of labels and passes the
// requirement on to its tail.
func (u *unifier) requireLacks(t types.Type, labels []string) *failure {
	switch t := u.apply(t).(type) {
	case *types.Var:
		u.addLacks(t.ID, labels)
	case *types.Record:
		for _, label := range labels {
			if _, ok := t.Field(label); ok {
				return presentField(label, t)
			}
		}
		if t.Tail != nil {
			u.addLacks(t.Tail.ID, labels)
		}
	}
	return nil
}

func (u *unifier) addLacks(id int, labels []string) {
	existing, _ := u.lacks.Get(id)
	u.lacks = u.lacks.Set(id, union(existing, labels))
}

// unifyRows unifies two flattened records. Labels present on one side only
// are pushed into the other side's tail; a closed side cannot take them.
func (u *unifier) unifyRows(a, b *types.Record) *failure {
	la, lb := a.Labels(), b.Labels()
	onlyA, onlyB := difference(la, lb), difference(lb, la)
	ta, tb := a.Tail, b.Tail

	switch {
	case ta == nil && tb == nil:
		if len(onlyA) > 0 {
			return missingField(onlyA[0], b)
		}
		if len(onlyB) > 0 {
			return missingField(onlyB[0], a)
		}
	case ta == nil:
		if len(onlyB) > 0 {
			return missingField(onlyB[0], a)
		}
		if f := u.bindVar(tb, restrict(a, onlyA, nil)); f != nil {
			return f
		}
	case tb == nil:
		if len(onlyA) > 0 {
			return missingField(onlyA[0], b)
		}
		if f := u.bindVar(ta, restrict(b, onlyB, nil)); f != nil {
			return f
		}
	case ta.ID == tb.ID:
		if len(onlyA) > 0 {
			return missingField(onlyA[0], b)
		}
		if len(onlyB) > 0 {
			return missingField(onlyB[0], a)
		}
	case len(onlyA) == 0 && len(onlyB) == 0:
		if f := u.bindVar(ta, tb); f != nil {
			return f
		}
	case len(onlyB) == 0:
		if f := u.bindVar(tb, restrict(a, onlyA, ta)); f != nil {
			return f
		}
	case len(onlyA) == 0:
		if f := u.bindVar(ta, restrict(b, onlyB, tb)); f != nil {
			return f
		}
	default:
		rest := u.fresh.Star()
		if f := u.bindVar(ta, restrict(b, onlyB, rest)); f != nil {
			return f
		}
		if f := u.bindVar(tb, restrict(a, onlyA, rest)); f != nil {
			return f
		}
	}

	for _, label := range intersection(la, lb) {
		fa, _ := a.Field(label)
		fb, _ := b.Field(label)
		if f := u.unify(fa, fb); f != nil {
			return f
		}
	}
	return nil
}

// restrict builds a record of r's fields named in labels, with the given tail.
func restrict(r *types.Record, labels []string, tail *types.Var) *types.Record {
	fields := make(map[string]types.Type, len(labels))
	for _, label := range labels {
		fields[label], _ = r.Field(label)
	}
	return types.NewRecord(fields, tail)
}

// lacksLabel records that the row t must not have label.
func (u *unifier) lacksLabel(t types.Type, label string) *failure {
	return u.requireLacks(t, []string{label})
}

// Label sets are sorted and duplicate-free, which is what xtgo/set works on.

func intersection(a, b []string) []string {
	data := append(append(make([]string, 0, len(a)+len(b)), a...), b...)
	n := set.Inter(sort.StringSlice(data), len(a))
	return data[:n]
}

func difference(a, b []string) []string {
	data := append(append(make([]string, 0, len(a)+len(b)), a...), b...)
	n := set.Diff(sort.StringSlice(data), len(a))
	return data[:n]
}

func union(a, b []string) []string {
	sorted := append([]string(nil), b...)
	sort.Strings(sorted)
	sorted = sorted[:set.Uniq(sort.StringSlice(sorted))]
	data := append(append(make([]string, 0, len(a)+len(sorted)), a...), sorted...)
	n := set.Union(sort.StringSlice(data), len(a))
	return data[:n]
}

// unifiable reports whether a and b unify, leaving u untouched.
func (u unifier) unifiable(a, b types.Type) bool {
	return u.unify(a, b) == nil
}
