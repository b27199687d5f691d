package infer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/infer"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

type fixture struct {
	ids         *kernel.IDGen
	b           *kernel.Builder
	u           *infer.Universe
	annotations map[kernel.NodeID]ast.TypeExpr
	checker     *infer.Checker
}

func newFixture() *fixture {
	ids := &kernel.IDGen{}
	f := &fixture{
		ids:         ids,
		b:           kernel.NewBuilder(ids),
		u:           infer.Prelude(),
		annotations: map[kernel.NodeID]ast.TypeExpr{},
	}
	return f
}

func (f *fixture) check(probe bool, bs ...infer.Binding) *infer.GroupResult {
	if f.checker == nil {
		f.checker = infer.NewChecker(f.u, f.ids, f.annotations)
	}
	return f.checker.CheckGroup(bs, probe)
}

func (f *fixture) one(value kernel.Term) *infer.GroupResult {
	return f.check(false, infer.Binding{Name: "it", Value: value})
}

func (f *fixture) fresh() *types.Fresh {
	if f.checker == nil {
		f.checker = infer.NewChecker(f.u, f.ids, f.annotations)
	}
	return f.checker.Fresh()
}

func field(label string, value kernel.Term) kernel.Field {
	return kernel.Field{Label: label, Value: value}
}

func requireType(t *testing.T, r *infer.GroupResult, want string) {
	t.Helper()
	require.NoError(t, asError(r.Err))
	assert.Equal(t, want, types.Show(r.Bindings[0].Scheme))
}

func requireCode(t *testing.T, r *infer.GroupResult, code ilerr.ErrCode) {
	t.Helper()
	require.NotNil(t, r.Err, "expected %v", code)
	assert.Equal(t, code, r.Err.Code(), ilerr.FormatWithCode(r.Err))
}

func asError(err ilerr.IleError) error {
	if err == nil {
		return nil
	}
	return err
}

func varNames(t kernel.Term) []string {
	var out []string
	kernel.Walk(t, func(n kernel.Term) bool {
		if v, ok := n.(*kernel.Var); ok {
			out = append(out, v.Name)
		}
		return true
	})
	return out
}

func TestRows(t *testing.T) {
	t.Run("projection opens the row", func(t *testing.T) {
		f := newFixture()
		b := f.b
		requireType(t, f.one(b.Lam("r", b.Project(b.Var("r"), "a"))), "forall a b. {a: a | b} -> a")
	})

	t.Run("open row accepts a record with more fields", func(t *testing.T) {
		f := newFixture()
		b := f.b
		get := b.Lam("r", b.Project(b.Var("r"), "a"))
		r := f.one(b.App(get, b.Record(field("a", b.Int(1)), field("b", b.Text("x")))))
		requireType(t, r, "Int")
	})

	t.Run("closed row lacking the field", func(t *testing.T) {
		f := newFixture()
		b := f.b
		requireCode(t, f.one(b.Project(b.Record(field("b", b.Int(1))), "a")), ilerr.RowFieldConflict)
	})

	t.Run("delete shrinks the row", func(t *testing.T) {
		f := newFixture()
		b := f.b
		r := f.one(b.Delete(b.Record(field("a", b.Int(1)), field("b", b.Text("x"))), "a"))
		requireType(t, r, "{b: Text}")
	})

	t.Run("deleting then projecting the same field fails", func(t *testing.T) {
		f := newFixture()
		b := f.b
		deleted := b.Delete(b.Record(field("a", b.Int(1)), field("b", b.Text("x"))), "a")
		requireCode(t, f.one(b.Project(deleted, "a")), ilerr.RowFieldConflict)
	})

	t.Run("update may change the field type", func(t *testing.T) {
		f := newFixture()
		b := f.b
		r := f.one(b.Update(b.Record(field("a", b.Int(1))), "a", b.Lam("x", b.Text("s"))))
		requireType(t, r, "{a: Text}")
	})

	t.Run("duplicate labels in a literal", func(t *testing.T) {
		f := newFixture()
		b := f.b
		requireCode(t, f.one(b.Record(field("a", b.Int(1)), field("a", b.Int(2)))), ilerr.RowFieldConflict)
	})
}

func TestOccursCheck(t *testing.T) {
	f := newFixture()
	b := f.b
	requireCode(t, f.one(b.Lam("x", b.App(b.Var("x"), b.Var("x")))), ilerr.OccursCheck)
}

func TestConstructorsAndCases(t *testing.T) {
	f := newFixture()
	b := f.b
	value := b.Lam("o", b.Case(b.Var("o"),
		kernel.Alt{Pattern: b.PCtor("Some", b.PVar("x")), Body: b.Var("x")},
		kernel.Alt{Pattern: b.PCtor("None"), Body: b.Int(0)},
	))
	requireType(t, f.one(value), "Option Int -> Int")

	requireCode(t, newFixture().one(b.Ctor("Nope")), ilerr.UndefinedConstructor)
	requireCode(t, newFixture().one(b.Ctor("Some")), ilerr.ConstructorArity)
	requireCode(t, newFixture().one(b.Var("missing")), ilerr.UndefinedVariable)
}

func TestEffects(t *testing.T) {
	t.Run("bind shares the error type", func(t *testing.T) {
		f := newFixture()
		b := f.b
		value := b.Bind(b.Fail(b.Text("e")), b.Lam("_", b.Fail(b.Int(1))))
		requireCode(t, f.one(value), ilerr.UnifyMismatch)
	})

	t.Run("bind chains", func(t *testing.T) {
		f := newFixture()
		b := f.b
		value := b.Bind(b.Pure(b.Int(1)), b.Lam("x", b.Call("print", b.Text("done"))))
		requireType(t, f.one(value), "forall a. Effect a Unit")
	})

	t.Run("attempt frees the outer error type", func(t *testing.T) {
		f := newFixture()
		b := f.b
		requireType(t, f.one(b.Call("attempt", b.Fail(b.Text("boom")))), "forall a b. Effect a (Result Text b)")
	})
}

func TestLetPolymorphism(t *testing.T) {
	f := newFixture()
	b := f.b
	body := b.Record(
		field("a", b.Call("id", b.Int(1))),
		field("b", b.Call("id", b.Text("s"))),
	)
	value := b.Let("id", b.Lam("x", b.Var("x")), body)
	r := f.one(value)
	requireType(t, r, "{a: Int, b: Text}")

	let := r.Bindings[0].Term.(*kernel.Let)
	_, isAbs := let.Value.(*kernel.TypeAbs)
	assert.True(t, isAbs, kernel.Show(let.Value))
	var applied int
	kernel.Walk(let.Body, func(n kernel.Term) bool {
		if _, ok := n.(*kernel.TypeApp); ok {
			applied++
		}
		return true
	})
	assert.Equal(t, 2, applied)
}

func TestMutualRecursion(t *testing.T) {
	f := newFixture()
	b := f.b
	r := f.check(false,
		infer.Binding{Name: "ping", Value: b.Lam("n", b.Call("pong", b.Var("n")))},
		infer.Binding{Name: "pong", Value: b.Lam("n", b.Call("ping", b.Var("n")))},
	)
	require.NoError(t, asError(r.Err))
	for _, s := range r.Bindings {
		assert.Equal(t, "forall a b. a -> b", types.Show(s.Scheme))
	}
}

func TestClasses(t *testing.T) {
	t.Run("constraints on generalised variables become parameters", func(t *testing.T) {
		f := newFixture()
		b := f.b
		r := f.one(b.Lam("x", b.Call("+", b.Var("x"), b.Var("x"))))
		requireType(t, r, "forall a. Num a => a -> a")

		abs, ok := r.Bindings[0].Term.(*kernel.TypeAbs)
		require.True(t, ok, kernel.Show(r.Bindings[0].Term))
		dict, ok := abs.Body.(*kernel.Lam)
		require.True(t, ok)
		var projected bool
		kernel.Walk(dict.Body, func(n kernel.Term) bool {
			if p, ok := n.(*kernel.Project); ok && p.Label == "+" {
				projected = p.Record.(*kernel.Var).Name == dict.Param
			}
			return true
		})
		assert.True(t, projected, kernel.Show(abs))
	})

	t.Run("ground constraints use instances", func(t *testing.T) {
		f := newFixture()
		b := f.b
		r := f.one(b.Call("+", b.Int(1), b.Int(2)))
		requireType(t, r, "Int")
		assert.Contains(t, varNames(r.Bindings[0].Term), "Num$Int")
	})

	t.Run("instance contexts build sub-dictionaries", func(t *testing.T) {
		f := newFixture()
		b := f.b
		list := b.Ctor("Cons", b.Int(1), b.Ctor("Nil"))
		r := f.one(b.Call("show", list))
		requireType(t, r, "Text")
		names := varNames(r.Bindings[0].Term)
		assert.Contains(t, names, "Show$List")
		assert.Contains(t, names, "Show$Int")
	})

	t.Run("no instance", func(t *testing.T) {
		f := newFixture()
		b := f.b
		requireCode(t, f.one(b.Call("show", b.Lam("x", b.Var("x")))), ilerr.NoInstance)
	})

	t.Run("overlapping instances", func(t *testing.T) {
		f := newFixture()
		a := &types.Var{ID: -9000, Kind: types.Star}
		f.u = f.u.WithInstance(&infer.Instance{Class: "Show", Vars: []*types.Var{a}, Head: a, DictName: "Show$any"})
		b := f.b
		requireCode(t, f.one(b.Call("show", b.Int(1))), ilerr.AmbiguousInstance)
	})

	t.Run("higher-kinded class", func(t *testing.T) {
		f := newFixture()
		b := f.b
		list := b.Ctor("Cons", b.Int(1), b.Ctor("Nil"))
		r := f.one(b.Call("map", b.Lam("x", b.Text("s")), list))
		requireType(t, r, "List Text")
		assert.Contains(t, varNames(r.Bindings[0].Term), "Functor$List")
	})
}

func TestAmbiguousClassConstraint(t *testing.T) {
	a := &types.Var{ID: -9001, Kind: types.Star}
	fromInt := types.Quantify([]*types.Var{a}, []types.Pred{{Class: "Num", Type: a}}, types.Fn(types.Int, a))

	t.Run("non-function binding", func(t *testing.T) {
		f := newFixture()
		f.u = f.u.WithValue("fromInt", fromInt)
		b := f.b
		requireCode(t, f.one(b.Call("fromInt", b.Int(1))), ilerr.AmbiguousClassConstraint)
	})

	t.Run("function binding is generalised", func(t *testing.T) {
		f := newFixture()
		f.u = f.u.WithValue("fromInt", fromInt)
		b := f.b
		requireType(t, f.one(b.Lam("n", b.Call("fromInt", b.Var("n")))), "forall a. Num a => Int -> a")
	})

	t.Run("an annotation fixes the type", func(t *testing.T) {
		f := newFixture()
		f.u = f.u.WithValue("fromInt", fromInt)
		b := f.b
		call := b.Call("fromInt", b.Int(1))
		f.annotations[call.NodeID()] = &ast.TypeName{Name: "Float"}
		requireType(t, f.one(call), "Float")
	})

	t.Run("probing rounds do not report it", func(t *testing.T) {
		f := newFixture()
		f.u = f.u.WithValue("fromInt", fromInt)
		b := f.b
		r := f.check(true, infer.Binding{Name: "it", Value: b.Call("fromInt", b.Int(1))})
		assert.Nil(t, r.Err)
	})
}

func TestKinds(t *testing.T) {
	f := newFixture()
	b := f.b
	value := b.Int(1)
	f.annotations[value.NodeID()] = &ast.TypeApply{Head: &ast.TypeName{Name: "Int"}, Args: []ast.TypeExpr{&ast.TypeName{Name: "Int"}}}
	requireCode(t, f.one(value), ilerr.KindMismatch)

	f = newFixture()
	functor, _ := f.u.LookupClass("Functor")
	require.NotNil(t, functor)
	r := infer.NewChecker(f.u, f.ids, nil).CheckInstance(&infer.Instance{Class: "Functor", Head: types.Int, DictName: "Functor$Int"}, nil)
	requireCode(t, r, ilerr.KindMismatch)
}

func TestSignatures(t *testing.T) {
	t.Run("signature variables are rigid", func(t *testing.T) {
		f := newFixture()
		b := f.b
		a := f.fresh().Star()
		sig := types.Quantify([]*types.Var{a}, nil, types.Fn(a, a))
		r := f.check(false, infer.Binding{Name: "bad", Value: b.Lam("x", b.Int(1)), Sig: sig})
		requireCode(t, r, ilerr.UnifyMismatch)
	})

	t.Run("signature predicates are assumed", func(t *testing.T) {
		f := newFixture()
		b := f.b
		a := f.fresh().Star()
		sig := types.Quantify([]*types.Var{a}, []types.Pred{{Class: "Show", Type: a}}, types.Fn(a, types.Text))
		r := f.check(false, infer.Binding{Name: "describe", Value: b.Lam("x", b.Call("show", b.Var("x"))), Sig: sig})
		requireType(t, r, "forall a. Show a => a -> Text")

		abs := r.Bindings[0].Term.(*kernel.TypeAbs)
		_, ok := abs.Body.(*kernel.Lam)
		assert.True(t, ok)
	})

	t.Run("missing predicate", func(t *testing.T) {
		f := newFixture()
		b := f.b
		a := f.fresh().Star()
		sig := types.Quantify([]*types.Var{a}, nil, types.Fn(a, types.Text))
		r := f.check(false, infer.Binding{Name: "describe", Value: b.Lam("x", b.Call("show", b.Var("x"))), Sig: sig})
		requireCode(t, r, ilerr.NoInstance)
	})
}

func TestInstances(t *testing.T) {
	f := newFixture()
	b := f.b
	checker := infer.NewChecker(f.u, f.ids, nil)
	a := checker.Fresh().Star()
	inst := &infer.Instance{
		Class:    "Show",
		Vars:     []*types.Var{a},
		Context:  []types.Pred{{Class: "Show", Type: a}},
		Head:     types.Option(a),
		DictName: infer.DictName("Show", types.Option(a)),
	}
	show := b.Lam("o", b.Case(b.Var("o"),
		kernel.Alt{Pattern: b.PCtor("Some", b.PVar("x")), Body: b.Call("show", b.Var("x"))},
		kernel.Alt{Pattern: b.PWild(), Body: b.Text("None")},
	))
	r := checker.CheckInstance(inst, map[string]kernel.Term{"show": show})
	require.NoError(t, asError(r.Err))
	require.Len(t, r.Bindings, 1)
	assert.Equal(t, "Show$Option", r.Bindings[0].Name)

	abs, ok := r.Bindings[0].Term.(*kernel.TypeAbs)
	require.True(t, ok, kernel.Show(r.Bindings[0].Term))
	lam := abs.Body.(*kernel.Lam)
	record, ok := lam.Body.(*kernel.RecordLit)
	require.True(t, ok)
	assert.Equal(t, "show", record.Fields[0].Label)

	r = checker.CheckInstance(&infer.Instance{Class: "Eq", Head: types.Text, DictName: "Eq$Text"}, map[string]kernel.Term{
		"==": b.Lam("x", b.Lam("y", b.Var("x"))),
	})
	require.NotNil(t, r.Err)
}

func TestProbeTypesSites(t *testing.T) {
	f := newFixture()
	b := f.b
	sites := kernel.NewSites()
	site := sites.New(kernel.Site{Kind: kernel.SiteDomainOp, Op: "+", Arity: 2})
	call := b.App(b.Site(site), b.Var("date"), b.Int(1))
	value := b.Lam("date", call)

	r := f.check(true, infer.Binding{Name: "later", Value: value})
	require.NoError(t, asError(r.Err))
	lam := value
	paramT, ok := r.TypeOf(lam.NodeID())
	require.True(t, ok)
	assert.IsType(t, &types.Arrow{}, paramT)

	assert.True(t, r.Unifiable(types.Int, f.fresh().Star()))
	assert.False(t, r.Unifiable(types.Int, types.Text))
}
