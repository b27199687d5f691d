package types

import (
	"github.com/benbjohnson/immutable"
)

// Subst maps type variable IDs to types. It is persistent: Extend returns
// a new substitution and leaves the receiver untouched, which is what
// trial unification relies on.
//
// Bindings are kept in triangular form; Apply follows chains, so a fully
// applied type contains no bound variable.
type Subst struct {
	m *immutable.Map[int, Type]
}

func NewSubst() Subst {
	return Subst{m: immutable.NewMap[int, Type](nil)}
}

func (s Subst) mapOrEmpty() *immutable.Map[int, Type] {
	if s.m == nil {
		return immutable.NewMap[int, Type](nil)
	}
	return s.m
}

func (s Subst) Lookup(id int) (Type, bool) {
	if s.m == nil {
		return nil, false
	}
	return s.m.Get(id)
}

func (s Subst) Extend(id int, t Type) Subst {
	return Subst{m: s.mapOrEmpty().Set(id, t)}
}

func (s Subst) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Compose returns a substitution behaving like s applied after other.
// When both bind the same variable, s wins.
func (s Subst) Compose(other Subst) Subst {
	out := s.mapOrEmpty()
	if other.m == nil {
		return Subst{m: out}
	}
	itr := other.m.Iterator()
	for !itr.Done() {
		id, t, _ := itr.Next()
		if _, ok := out.Get(id); ok {
			continue
		}
		out = out.Set(id, s.Apply(t))
	}
	return Subst{m: out}
}

// Apply replaces every bound variable of t.
func (s Subst) Apply(t Type) Type {
	if s.m == nil || s.m.Len() == 0 {
		return t
	}
	switch t := t.(type) {
	case *Var:
		bound, ok := s.m.Get(t.ID)
		if !ok {
			return t
		}
		return s.Apply(bound)
	case *Con, Error:
		return t
	case *App:
		return &App{Fun: s.Apply(t.Fun), Arg: s.Apply(t.Arg)}
	case *Arrow:
		return &Arrow{From: s.Apply(t.From), To: s.Apply(t.To)}
	case *Record:
		return s.applyRecord(t)
	case *Forall:
		inner := s
		for _, v := range t.Vars {
			inner = Subst{m: inner.m.Delete(v.ID)}
		}
		return &Forall{Vars: t.Vars, Body: inner.Apply(t.Body)}
	case *Constrained:
		preds := make([]Pred, len(t.Preds))
		for i, p := range t.Preds {
			preds[i] = Pred{Class: p.Class, Type: s.Apply(p.Type)}
		}
		return &Constrained{Preds: preds, Body: s.Apply(t.Body)}
	}
	return t
}

// applyRecord flattens bound row tails into the field map.
func (s Subst) applyRecord(r *Record) Type {
	fields := r.Fields
	if fields == nil {
		fields = immutable.NewSortedMap[string, Type](nil)
	}
	tail := r.Tail
	for tail != nil {
		bound, ok := s.m.Get(tail.ID)
		if !ok {
			break
		}
		switch b := bound.(type) {
		case *Var:
			tail = b
		case *Record:
			for _, label := range b.Labels() {
				if _, exists := fields.Get(label); !exists {
					ft, _ := b.Field(label)
					fields = fields.Set(label, ft)
				}
			}
			tail = b.Tail
		case Error:
			return Error{}
		default:
			tail = nil
		}
	}
	out := immutable.NewSortedMap[string, Type](nil)
	itr := fields.Iterator()
	for !itr.Done() {
		label, ft, _ := itr.Next()
		out = out.Set(label, s.Apply(ft))
	}
	return &Record{Fields: out, Tail: tail}
}

// Quantify builds the scheme `forall vars. preds => body`.
func Quantify(vars []*Var, preds []Pred, body Type) Type {
	if len(preds) > 0 {
		body = &Constrained{Preds: preds, Body: body}
	}
	if len(vars) > 0 {
		body = &Forall{Vars: vars, Body: body}
	}
	return body
}

// Split takes a scheme apart into its quantified variables, predicates and body.
func Split(t Type) ([]*Var, []Pred, Type) {
	var vars []*Var
	var preds []Pred
	if fa, ok := t.(*Forall); ok {
		vars = fa.Vars
		t = fa.Body
	}
	if c, ok := t.(*Constrained); ok {
		preds = c.Preds
		t = c.Body
	}
	return vars, preds, t
}

// Instantiate replaces the quantified variables of a scheme with fresh
// ones. It returns the instantiated body and predicates along with the
// types chosen for each quantified variable.
func Instantiate(scheme Type, fresh *Fresh) (Type, []Pred, []Type) {
	vars, preds, body := Split(scheme)
	if len(vars) == 0 {
		return body, preds, nil
	}
	s := NewSubst()
	args := make([]Type, len(vars))
	for i, v := range vars {
		nv := fresh.Var(v.Kind)
		args[i] = nv
		s = s.Extend(v.ID, nv)
	}
	out := make([]Pred, len(preds))
	for i, p := range preds {
		out[i] = Pred{Class: p.Class, Type: s.Apply(p.Type)}
	}
	return s.Apply(body), out, args
}

// Match finds a substitution over the variables of pattern that makes it
// equal to target. Target variables are treated as constants.
func Match(pattern, target Type) (Subst, bool) {
	s := NewSubst()
	ok := match(pattern, target, &s)
	return s, ok
}

func match(pattern, target Type, s *Subst) bool {
	switch p := pattern.(type) {
	case *Var:
		if bound, ok := s.Lookup(p.ID); ok {
			return Equal(bound, target)
		}
		*s = s.Extend(p.ID, target)
		return true
	case *Con:
		t, ok := target.(*Con)
		return ok && t.Name == p.Name
	case *App:
		t, ok := target.(*App)
		return ok && match(p.Fun, t.Fun, s) && match(p.Arg, t.Arg, s)
	case *Arrow:
		t, ok := target.(*Arrow)
		return ok && match(p.From, t.From, s) && match(p.To, t.To, s)
	case *Record:
		t, ok := target.(*Record)
		if !ok || p.Len() != t.Len() || (p.Tail == nil) != (t.Tail == nil) {
			return false
		}
		for _, label := range p.Labels() {
			pt, _ := p.Field(label)
			tt, ok := t.Field(label)
			if !ok || !match(pt, tt, s) {
				return false
			}
		}
		return p.Tail == nil || match(p.Tail, t.Tail, s)
	}
	return false
}

// Equal is structural equality, with variables compared by ID.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case *Var:
		b, ok := b.(*Var)
		return ok && a.ID == b.ID
	case *Con:
		b, ok := b.(*Con)
		return ok && a.Name == b.Name
	case *App:
		b, ok := b.(*App)
		return ok && Equal(a.Fun, b.Fun) && Equal(a.Arg, b.Arg)
	case *Arrow:
		b, ok := b.(*Arrow)
		return ok && Equal(a.From, b.From) && Equal(a.To, b.To)
	case *Record:
		b, ok := b.(*Record)
		if !ok || a.Len() != b.Len() {
			return false
		}
		if (a.Tail == nil) != (b.Tail == nil) || (a.Tail != nil && a.Tail.ID != b.Tail.ID) {
			return false
		}
		for _, label := range a.Labels() {
			at, _ := a.Field(label)
			bt, ok := b.Field(label)
			if !ok || !Equal(at, bt) {
				return false
			}
		}
		return true
	case Error:
		_, ok := b.(Error)
		return ok
	case *Forall:
		b, ok := b.(*Forall)
		return ok && len(a.Vars) == len(b.Vars) && Equal(a.Body, b.Body)
	case *Constrained:
		b, ok := b.(*Constrained)
		if !ok || len(a.Preds) != len(b.Preds) {
			return false
		}
		for i := range a.Preds {
			if a.Preds[i].Class != b.Preds[i].Class || !Equal(a.Preds[i].Type, b.Preds[i].Type) {
				return false
			}
		}
		return Equal(a.Body, b.Body)
	}
	return false
}

// IsGround reports whether t has no free type variables.
func IsGround(t Type) bool {
	return len(Vars(t)) == 0
}
