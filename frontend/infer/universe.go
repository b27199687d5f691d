// Package infer implements constraint-based type and effect inference over
// kernel terms: row-polymorphic records, algebraic data types, type classes
// elaborated into dictionary passing, higher-kinded types and Effect E A.
package infer

import (
	"sort"
	"strings"
	"unicode"

	"github.com/benbjohnson/immutable"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/types"
)

// CtorInfo describes a data constructor.
type CtorInfo struct {
	Name string
	// TypeName is the type the constructor builds.
	TypeName string
	// Scheme is `forall params. arg1 -> ... -> argN -> T params`.
	Scheme   types.Type
	Arity    int
	Siblings int
	Span     ast.Range
}

// ClassDef is a single-parameter type class.
type ClassDef struct {
	Name  string
	Param *types.Var
	// Methods maps each method to its type, which mentions Param.
	Methods map[string]types.Type
	Span    ast.Range
}

// MethodNames returns the methods in a stable order; dictionaries are
// records so the order only matters for printing.
func (c *ClassDef) MethodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for name := range c.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instance is `instance Context => Class Head`. Vars are the type
// variables of Head, instantiated afresh at every use.
type Instance struct {
	Class    string
	Vars     []*types.Var
	Context  []types.Pred
	Head     types.Type
	DictName string
	Span     ast.Range
}

// DictName is the binding name of an instance's dictionary. A head whose
// arguments are all variables is named by its constructor alone; any other
// head is spelled out so `C (List Int)` and `C (List Text)` stay distinct.
func DictName(class string, head types.Type) string {
	con, args := types.Spine(head)
	if c, ok := con.(*types.Con); ok {
		simple := true
		for _, arg := range args {
			if _, ok := arg.(*types.Var); !ok {
				simple = false
				break
			}
		}
		if simple {
			return class + "$" + c.Name
		}
	}
	words := strings.FieldsFunc(types.Show(head), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return class + "$" + strings.Join(words, "_")
}

// Universe is the global environment a module is checked in: the prelude,
// imported exports and the module's own declarations. It is persistent;
// every With method returns a new Universe.
type Universe struct {
	types     *immutable.Map[string, types.TypeDef]
	ctors     *immutable.Map[string, *CtorInfo]
	values    *immutable.Map[string, types.Type]
	classes   *immutable.Map[string, *ClassDef]
	methods   *immutable.Map[string, string]
	instances *immutable.Map[string, []*Instance]
	domains   *domain.Table
}

func NewUniverse() *Universe {
	u := &Universe{
		types:     immutable.NewMap[string, types.TypeDef](nil),
		ctors:     immutable.NewMap[string, *CtorInfo](nil),
		values:    immutable.NewMap[string, types.Type](nil),
		classes:   immutable.NewMap[string, *ClassDef](nil),
		methods:   immutable.NewMap[string, string](nil),
		instances: immutable.NewMap[string, []*Instance](nil),
		domains:   domain.NewTable(),
	}
	for name, k := range types.BuiltinKinds {
		u.types = u.types.Set(name, types.TypeDef{Con: &types.Con{Name: name, Kind: k}})
	}
	return u
}

func (u *Universe) clone() *Universe {
	c := *u
	return &c
}

func (u *Universe) WithType(name string, def types.TypeDef) *Universe {
	c := u.clone()
	c.types = c.types.Set(name, def)
	return c
}

func (u *Universe) WithCtor(info *CtorInfo) *Universe {
	c := u.clone()
	c.ctors = c.ctors.Set(info.Name, info)
	return c
}

func (u *Universe) WithValue(name string, scheme types.Type) *Universe {
	c := u.clone()
	c.values = c.values.Set(name, scheme)
	return c
}

// WithClass registers a class along with its methods, which become global
// values of type `forall p. Class p => method type`.
func (u *Universe) WithClass(def *ClassDef) *Universe {
	c := u.clone()
	c.classes = c.classes.Set(def.Name, def)
	for name, t := range def.Methods {
		c.methods = c.methods.Set(name, def.Name)
		c.values = c.values.Set(name, MethodScheme(def, t))
	}
	return c
}

// MethodScheme quantifies a method type over the class parameter first.
func MethodScheme(def *ClassDef, t types.Type) types.Type {
	vars := []*types.Var{def.Param}
	for _, v := range types.Vars(t) {
		if v.ID != def.Param.ID {
			vars = append(vars, v)
		}
	}
	return types.Quantify(vars, []types.Pred{{Class: def.Name, Type: def.Param}}, t)
}

func (u *Universe) WithInstance(inst *Instance) *Universe {
	c := u.clone()
	existing, _ := c.instances.Get(inst.Class)
	c.instances = c.instances.Set(inst.Class, append(append([]*Instance(nil), existing...), inst))
	return c
}

func (u *Universe) WithDomains(table *domain.Table) *Universe {
	c := u.clone()
	c.domains = c.domains.Merge(table)
	return c
}

// Merge adds everything other declares. Entries of other win.
func (u *Universe) Merge(other *Universe) *Universe {
	c := u.clone()
	c.types = mergeMap(c.types, other.types)
	c.ctors = mergeMap(c.ctors, other.ctors)
	c.values = mergeMap(c.values, other.values)
	c.classes = mergeMap(c.classes, other.classes)
	c.methods = mergeMap(c.methods, other.methods)
	itr := other.instances.Iterator()
	for !itr.Done() {
		class, insts, _ := itr.Next()
		existing, _ := c.instances.Get(class)
		merged := append([]*Instance(nil), existing...)
		for _, inst := range insts {
			if !containsInstance(merged, inst) {
				merged = append(merged, inst)
			}
		}
		c.instances = c.instances.Set(class, merged)
	}
	c.domains = c.domains.Merge(other.domains)
	return c
}

func containsInstance(insts []*Instance, inst *Instance) bool {
	for _, i := range insts {
		if i == inst || i.DictName == inst.DictName {
			return true
		}
	}
	return false
}

func mergeMap[V any](into, from *immutable.Map[string, V]) *immutable.Map[string, V] {
	itr := from.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		into = into.Set(k, v)
	}
	return into
}

func (u *Universe) LookupType(name string) (types.TypeDef, bool) {
	return u.types.Get(name)
}

func (u *Universe) LookupCtor(name string) (*CtorInfo, bool) {
	return u.ctors.Get(name)
}

func (u *Universe) LookupValue(name string) (types.Type, bool) {
	return u.values.Get(name)
}

func (u *Universe) LookupClass(name string) (*ClassDef, bool) {
	return u.classes.Get(name)
}

// MethodClass returns the class declaring method name.
func (u *Universe) MethodClass(name string) (string, bool) {
	return u.methods.Get(name)
}

func (u *Universe) Instances(class string) []*Instance {
	insts, _ := u.instances.Get(class)
	return insts
}

func (u *Universe) Domains() *domain.Table {
	return u.domains
}

// Constructor implements desugar.Env.
func (u *Universe) Constructor(name string) (int, int, bool) {
	info, ok := u.ctors.Get(name)
	if !ok {
		return 0, 0, false
	}
	return info.Arity, info.Siblings, true
}

// IsGlobal implements desugar.Env.
func (u *Universe) IsGlobal(name string) bool {
	if _, ok := u.values.Get(name); ok {
		return true
	}
	_, ok := u.ctors.Get(name)
	return ok
}

// DictType is the record type of the dictionary for pred: one field per
// method, with the class parameter replaced by the predicate's type.
func (u *Universe) DictType(pred types.Pred) types.Type {
	def, ok := u.classes.Get(pred.Class)
	if !ok {
		return types.Error{}
	}
	s := types.NewSubst().Extend(def.Param.ID, pred.Type)
	fields := make(map[string]types.Type, len(def.Methods))
	for name, t := range def.Methods {
		var rest []*types.Var
		for _, v := range types.Vars(t) {
			if v.ID != def.Param.ID {
				rest = append(rest, v)
			}
		}
		fields[name] = types.Quantify(rest, nil, s.Apply(t))
	}
	return types.NewRecord(fields, nil)
}
