package infer

import (
	"sync"

	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// preludeVars hands out the quantified variables of prelude schemes. They
// use negative IDs so they never meet the variables of a module.
type preludeVars struct{ next int }

func (p *preludeVars) v(k types.Kind) *types.Var {
	p.next--
	if k == nil {
		k = types.Star
	}
	return &types.Var{ID: p.next, Kind: k}
}

var (
	preludeOnce sync.Once
	prelude     *Universe
)

// Prelude returns the universe every module starts from.
func Prelude() *Universe {
	preludeOnce.Do(func() { prelude = buildPrelude() })
	return prelude
}

func buildPrelude() *Universe {
	u := NewUniverse()
	pv := &preludeVars{}
	fn := types.Fn

	ctor := func(typeName string, siblings int, name string, vars []*types.Var, args ...types.Type) {
		params := make([]types.Type, len(vars))
		for i, v := range vars {
			params[i] = v
		}
		con, _ := u.LookupType(typeName)
		result := types.Apply(con.Con, params...)
		body := result
		if len(args) > 0 {
			body = fn(append(append([]types.Type(nil), args...), result)...)
		}
		u = u.WithCtor(&CtorInfo{
			Name:     name,
			TypeName: typeName,
			Scheme:   types.Quantify(vars, nil, body),
			Arity:    len(args),
			Siblings: siblings,
		})
	}
	ctor("Bool", 2, "True", nil)
	ctor("Bool", 2, "False", nil)
	ctor("Unit", 1, "Unit", nil)
	a := pv.v(nil)
	ctor("List", 2, "Nil", []*types.Var{a})
	ctor("List", 2, "Cons", []*types.Var{a}, a, types.List(a))
	ctor("Option", 2, "None", []*types.Var{a})
	ctor("Option", 2, "Some", []*types.Var{a}, a)
	e := pv.v(nil)
	ctor("Result", 2, "Err", []*types.Var{e, a}, e)
	ctor("Result", 2, "Ok", []*types.Var{e, a}, a)

	value := func(name string, vars []*types.Var, t types.Type) {
		u = u.WithValue(name, types.Quantify(vars, nil, t))
	}
	b, k, e2 := pv.v(nil), pv.v(nil), pv.v(nil)
	vs := func(vars ...*types.Var) []*types.Var { return vars }

	value("List.map", vs(a, b), fn(fn(a, b), types.List(a), types.List(b)))
	value("List.length", vs(a), fn(types.List(a), types.Int))
	value("Map.empty", vs(k, a), types.Map(k, a))
	value("Map.map", vs(k, a, b), fn(fn(a, b), types.Map(k, a), types.Map(k, b)))
	value("Map.mapWithKey", vs(k, a, b), fn(fn(k, a, b), types.Map(k, a), types.Map(k, b)))
	value("Map.insert", vs(k, a), fn(k, a, types.Map(k, a), types.Map(k, a)))
	value("Map.update", vs(k, a), fn(k, fn(a, a), types.Map(k, a), types.Map(k, a)))
	value("Map.remove", vs(k, a), fn(k, types.Map(k, a), types.Map(k, a)))
	value("mapOption", vs(a, b), fn(fn(a, b), types.Option(a), types.Option(b)))
	value("mapResult", vs(e, a, b), fn(fn(a, b), types.Result(e, a), types.Result(e, b)))
	value("attempt", vs(e, e2, a), fn(types.Effect(e, a), types.Effect(e2, types.Result(e, a))))
	value("unreachable", vs(a), a)
	value("pure", vs(e, a), fn(a, types.Effect(e, a)))
	value("fail", vs(e, a), fn(e, types.Effect(e, a)))
	value("print", vs(e), fn(types.Text, types.Effect(e, types.Unit)))

	class := func(name string, param *types.Var, methods map[string]types.Type) {
		u = u.WithClass(&ClassDef{Name: name, Param: param, Methods: methods})
	}
	num := pv.v(nil)
	class("Num", num, map[string]types.Type{
		"+": fn(num, num, num),
		"-": fn(num, num, num),
		"*": fn(num, num, num),
		"/": fn(num, num, num),
	})
	eq := pv.v(nil)
	class("Eq", eq, map[string]types.Type{
		"==": fn(eq, eq, types.Bool),
		"!=": fn(eq, eq, types.Bool),
	})
	ord := pv.v(nil)
	class("Ord", ord, map[string]types.Type{
		"<":  fn(ord, ord, types.Bool),
		">":  fn(ord, ord, types.Bool),
		"<=": fn(ord, ord, types.Bool),
		">=": fn(ord, ord, types.Bool),
	})
	show := pv.v(nil)
	class("Show", show, map[string]types.Type{
		"show": fn(show, types.Text),
	})
	f := pv.v(types.ArrowKind(1))
	class("Functor", f, map[string]types.Type{
		"map": fn(fn(a, b), types.Apply(f, a), types.Apply(f, b)),
	})

	instance := func(class string, head types.Type, vars []*types.Var, context ...types.Pred) {
		u = u.WithInstance(&Instance{
			Class:    class,
			Vars:     vars,
			Context:  context,
			Head:     head,
			DictName: DictName(class, head),
		})
	}
	for _, t := range []types.Type{types.Int, types.Float} {
		instance("Num", t, nil)
	}
	for _, t := range []types.Type{types.Int, types.Float, types.Text, types.Bool, types.Unit} {
		instance("Eq", t, nil)
	}
	for _, t := range []types.Type{types.Int, types.Float, types.Text} {
		instance("Ord", t, nil)
	}
	for _, t := range []types.Type{types.Int, types.Float, types.Text, types.Bool} {
		instance("Show", t, nil)
	}
	elem := pv.v(nil)
	instance("Show", types.List(elem), []*types.Var{elem}, types.Pred{Class: "Show", Type: elem})
	instance("Functor", types.ListCon, nil)
	instance("Functor", types.OptionCon, nil)
	return u
}

// PreludeDictionaries returns the dictionary bindings of the prelude
// instances. Their methods are primitives named `prim:<Dict>.<method>`.
func PreludeDictionaries(ids *kernel.IDGen) []kernel.Binding {
	u := Prelude()
	b := kernel.NewBuilder(ids)
	var out []kernel.Binding
	for _, class := range []string{"Num", "Eq", "Ord", "Show", "Functor"} {
		def, _ := u.LookupClass(class)
		for _, inst := range u.Instances(class) {
			fields := make([]kernel.Field, 0, len(def.Methods))
			for _, m := range def.MethodNames() {
				fields = append(fields, kernel.Field{Label: m, Value: b.Var("prim:" + inst.DictName + "." + m)})
			}
			var value kernel.Term = b.Record(fields...)
			if len(inst.Context) > 0 {
				value = b.Lam(b.Fresh("dict"), value)
			}
			out = append(out, kernel.Binding{Name: inst.DictName, Value: value})
		}
	}
	return out
}
