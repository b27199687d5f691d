package types

import (
	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"
)

// Type is a monotype or, at the top of a binding, a scheme built from
// Forall and Constrained.
type Type interface {
	typeNode()
}

var (
	_ Type = (*Var)(nil)
	_ Type = (*Con)(nil)
	_ Type = (*App)(nil)
	_ Type = (*Arrow)(nil)
	_ Type = (*Record)(nil)
	_ Type = (*Forall)(nil)
	_ Type = (*Constrained)(nil)
	_ Type = Error{}
)

// Var is a unification variable. Row variables (record tails) are
// ordinary variables of kind *.
type Var struct {
	ID   int
	Kind Kind
}

// Con is a named type constructor. Rigid constructors stand for the type
// variables of a declared signature while its body is checked.
type Con struct {
	Name  string
	Kind  Kind
	Rigid bool
}

type App struct {
	Fun Type
	Arg Type
}

type Arrow struct {
	From Type
	To   Type
}

// Record is a row of labelled fields. A nil Tail means the row is closed.
type Record struct {
	Fields *immutable.SortedMap[string, Type]
	Tail   *Var
}

type Forall struct {
	Vars []*Var
	Body Type
}

type Constrained struct {
	Preds []Pred
	Body  Type
}

// Error is the placeholder type given to failed bindings. It unifies with
// everything so one error does not cascade.
type Error struct{}

// Pred is a class predicate `Class Type`.
type Pred struct {
	Class string
	Type  Type
}

func (*Var) typeNode()         {}
func (*Con) typeNode()         {}
func (*App) typeNode()         {}
func (*Arrow) typeNode()       {}
func (*Record) typeNode()      {}
func (*Forall) typeNode()      {}
func (*Constrained) typeNode() {}
func (Error) typeNode()        {}

var (
	Int   = &Con{Name: "Int", Kind: Star}
	Float = &Con{Name: "Float", Kind: Star}
	Text  = &Con{Name: "Text", Kind: Star}
	Bool  = &Con{Name: "Bool", Kind: Star}
	Unit  = &Con{Name: "Unit", Kind: Star}

	ListCon   = &Con{Name: "List", Kind: ArrowKind(1)}
	OptionCon = &Con{Name: "Option", Kind: ArrowKind(1)}
	ResultCon = &Con{Name: "Result", Kind: ArrowKind(2)}
	MapCon    = &Con{Name: "Map", Kind: ArrowKind(2)}
	EffectCon = &Con{Name: "Effect", Kind: ArrowKind(2)}
)

func List(elem Type) Type       { return &App{Fun: ListCon, Arg: elem} }
func Option(elem Type) Type     { return &App{Fun: OptionCon, Arg: elem} }
func Result(err, ok Type) Type  { return Apply(ResultCon, err, ok) }
func Map(key, value Type) Type  { return Apply(MapCon, key, value) }
func Effect(err, ok Type) Type  { return Apply(EffectCon, err, ok) }
func Apply(head Type, args ...Type) Type {
	for _, arg := range args {
		head = &App{Fun: head, Arg: arg}
	}
	return head
}

// Fn builds the curried function type ts[0] -> ... -> ts[n-1].
func Fn(ts ...Type) Type {
	if len(ts) == 0 {
		panic("types.Fn needs at least one type")
	}
	ret := ts[len(ts)-1]
	for i := len(ts) - 2; i >= 0; i-- {
		ret = &Arrow{From: ts[i], To: ret}
	}
	return ret
}

// Spine unwinds an application into its head and arguments.
func Spine(t Type) (Type, []Type) {
	var args []Type
	for {
		app, ok := t.(*App)
		if !ok {
			break
		}
		args = append(args, app.Arg)
		t = app.Fun
	}
	for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
		args[i], args[j] = args[j], args[i]
	}
	return t, args
}

// HeadName returns the constructor name at the head of t, if any.
func HeadName(t Type) (string, bool) {
	head, _ := Spine(t)
	if con, ok := head.(*Con); ok {
		return con.Name, true
	}
	return "", false
}

func NewRecord(fields map[string]Type, tail *Var) *Record {
	m := immutable.NewSortedMap[string, Type](nil)
	for label, t := range fields {
		m = m.Set(label, t)
	}
	return &Record{Fields: m, Tail: tail}
}

// EmptyRow returns an empty record whose tail is v.
func EmptyRow(v *Var) *Record {
	return &Record{Fields: immutable.NewSortedMap[string, Type](nil), Tail: v}
}

func (r *Record) Field(label string) (Type, bool) {
	if r.Fields == nil {
		return nil, false
	}
	return r.Fields.Get(label)
}

func (r *Record) Len() int {
	if r.Fields == nil {
		return 0
	}
	return r.Fields.Len()
}

// Labels returns the field labels in sorted order.
func (r *Record) Labels() []string {
	labels := make([]string, 0, r.Len())
	if r.Fields == nil {
		return labels
	}
	itr := r.Fields.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		labels = append(labels, k)
	}
	return labels
}

// FieldTypes returns the field types in label order.
func (r *Record) FieldTypes() []Type {
	ts := make([]Type, 0, r.Len())
	if r.Fields == nil {
		return ts
	}
	itr := r.Fields.Iterator()
	for !itr.Done() {
		_, t, _ := itr.Next()
		ts = append(ts, t)
	}
	return ts
}

// With returns a copy of r with label set to t.
func (r *Record) With(label string, t Type) *Record {
	fields := r.Fields
	if fields == nil {
		fields = immutable.NewSortedMap[string, Type](nil)
	}
	return &Record{Fields: fields.Set(label, t), Tail: r.Tail}
}

// Vars returns the free type variables of t in order of first appearance.
func Vars(t Type) []*Var {
	seen := set.New[int](4)
	var out []*Var
	var walk func(Type)
	walk = func(t Type) {
		switch t := t.(type) {
		case *Var:
			if seen.Insert(t.ID) {
				out = append(out, t)
			}
		case *App:
			walk(t.Fun)
			walk(t.Arg)
		case *Arrow:
			walk(t.From)
			walk(t.To)
		case *Record:
			for _, ft := range t.FieldTypes() {
				walk(ft)
			}
			if t.Tail != nil {
				walk(t.Tail)
			}
		case *Forall:
			bound := set.New[int](len(t.Vars))
			for _, v := range t.Vars {
				bound.Insert(v.ID)
			}
			for _, v := range Vars(t.Body) {
				if !bound.Contains(v.ID) && seen.Insert(v.ID) {
					out = append(out, v)
				}
			}
		case *Constrained:
			for _, p := range t.Preds {
				walk(p.Type)
			}
			walk(t.Body)
		}
	}
	walk(t)
	return out
}

// FreeVars returns the IDs of the free type variables of ts.
func FreeVars(ts ...Type) *set.Set[int] {
	out := set.New[int](8)
	for _, t := range ts {
		for _, v := range Vars(t) {
			out.Insert(v.ID)
		}
	}
	return out
}

// Occurs reports whether the variable id appears in t.
func Occurs(id int, t Type) bool {
	return FreeVars(t).Contains(id)
}

// Fresh hands out unification variables. One Fresh is shared by all the
// bindings of a module so variable IDs never collide.
type Fresh struct {
	next int
}

// NewFresh returns a supply whose variables are numbered after base.
func NewFresh(base int) *Fresh {
	return &Fresh{next: base}
}

func (f *Fresh) Var(k Kind) *Var {
	f.next++
	if k == nil {
		k = Star
	}
	return &Var{ID: f.next, Kind: k}
}

func (f *Fresh) Star() *Var { return f.Var(Star) }
