package frontend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"github.com/aivi-lang/aivi/frontend"
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

func ident(name string) *ast.Ident       { return &ast.Ident{Name: name} }
func intLit(v int64) *ast.IntLit         { return &ast.IntLit{Value: v} }
func textLit(v string) *ast.TextLit      { return &ast.TextLit{Value: v} }
func tname(name string) *ast.TypeName    { return &ast.TypeName{Name: name} }
func tvar(name string) *ast.TypeVarRef   { return &ast.TypeVarRef{Name: name} }
func field(name string) *ast.FieldSeg    { return &ast.FieldSeg{Name: name} }
func delta(text string) *ast.DeltaLit    { return &ast.DeltaLit{Text: text} }
func def(name string, e ast.Expr) *ast.Def { return &ast.Def{Name: name, Expr: e} }

func lambda(params []string, body ast.Expr) *ast.Lambda {
	ps := make([]ast.Pattern, len(params))
	for i, p := range params {
		ps[i] = &ast.VarPat{Name: p}
	}
	return &ast.Lambda{Params: ps, Body: body}
}

func call(fn string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Func: ident(fn), Args: args}
}

func binary(op string, l, r ast.Expr) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func arrow(ts ...ast.TypeExpr) ast.TypeExpr {
	out := ts[len(ts)-1]
	for i := len(ts) - 2; i >= 0; i-- {
		out = &ast.TypeArrow{From: ts[i], To: out}
	}
	return out
}

func increment() *ast.Lambda {
	return lambda([]string{"v"}, binary("+", ident("v"), intLit(1)))
}

func record(kv ...any) *ast.Record {
	r := &ast.Record{}
	for i := 0; i < len(kv); i += 2 {
		r.Fields = append(r.Fields, ast.RecordField{Label: kv[i].(string), Value: kv[i+1].(ast.Expr)})
	}
	return r
}

func patch(target ast.Expr, fields ...ast.PatchField) *ast.Patch {
	return &ast.Patch{Target: target, Fields: fields}
}

// calendar declares `Date` and the Calendar domain over it.
func calendar() []ast.Decl {
	date := &ast.TypeDecl{Name: "Date", Alias: &ast.TypeRecord{Fields: []ast.TypeField{
		{Label: "year", Type: tname("Int")},
		{Label: "month", Type: tname("Int")},
		{Label: "day", Type: tname("Int")},
	}}}
	deltaType := &ast.TypeDecl{Name: "Delta", Ctors: []ast.CtorDecl{
		{Name: "Day", Args: []ast.TypeExpr{tname("Int")}},
		{Name: "Month", Args: []ast.TypeExpr{tname("Int")}},
		{Name: "Year", Args: []ast.TypeExpr{tname("Int")}},
	}}
	plus := &ast.Def{
		Name: "+",
		Sig:  arrow(tname("Date"), tname("Delta"), tname("Date")),
		Expr: lambda([]string{"d", "delta"}, ident("d")),
	}
	return []ast.Decl{date, &ast.DomainDecl{
		Name:    "Calendar",
		Carrier: tname("Date"),
		Delta:   deltaType,
		Ops:     []*ast.Def{plus},
		Literals: []ast.DeltaLiteralDecl{
			{Text: "1d", Ctor: "Day", Args: []ast.Expr{intLit(1)}},
			{Text: "1m", Ctor: "Month", Args: []ast.Expr{intLit(1)}},
			{Text: "1y", Ctor: "Year", Args: []ast.Expr{intLit(1)}},
		},
	}}
}

func compile(t *testing.T, mod *ast.Module, imports map[string]*frontend.Result) *frontend.Result {
	t.Helper()
	return frontend.CompileModule(mod, imports, frontend.DefaultConfig())
}

func binding(t *testing.T, r *frontend.Result, name string) *frontend.TypedBinding {
	t.Helper()
	b, ok := r.Kernel.Lookup(name)
	require.True(t, ok, "binding %s", name)
	return b
}

func requireScheme(t *testing.T, r *frontend.Result, name, want string) {
	t.Helper()
	b := binding(t, r, name)
	require.Equal(t, frontend.Solved, b.State, "%s: %v", name, r.Diagnostics.Diagnostics())
	assert.Equal(t, want, types.Show(b.Scheme))
}

func codes(r *frontend.Result) []ilerr.ErrCode {
	var out []ilerr.ErrCode
	for _, d := range r.Diagnostics.Diagnostics() {
		out = append(out, d.Code)
	}
	return out
}

func names(t kernel.Term) (vars, ctors []string, ints []int64) {
	kernel.Walk(t, func(n kernel.Term) bool {
		switch n := n.(type) {
		case *kernel.Var:
			vars = append(vars, n.Name)
		case *kernel.Constructor:
			ctors = append(ctors, n.Name)
		case *kernel.Lit:
			if n.Kind == kernel.LitInt {
				ints = append(ints, n.Int)
			}
		}
		return true
	})
	return vars, ctors, ints
}

func TestCalendarDomain(t *testing.T) {
	const dateT = "{day: Int, month: Int, year: Int}"
	mod := &ast.Module{Name: "app", Decls: append(calendar(),
		def("tomorrow", lambda([]string{"date"}, binary("+", ident("date"), delta("1d")))),
		def("nextYear", lambda([]string{"date"}, binary("+", ident("date"), delta("12m")))),
		def("bad", binary("+", intLit(5), delta("1m"))),
		def("sum", binary("+", intLit(1), intLit(2))),
		def("leapDay", binary("+", record("year", intLit(2024), "month", intLit(2), "day", intLit(28)), call("Day", intLit(1)))),
		def("leapLiteral", binary("+", record("year", intLit(2024), "month", intLit(2), "day", intLit(28)), delta("1d"))),
	)}
	r := compile(t, mod, nil)

	requireScheme(t, r, "Calendar.(+)", dateT+" -> Delta -> "+dateT)
	requireScheme(t, r, "tomorrow", dateT+" -> "+dateT)
	requireScheme(t, r, "sum", "Int")

	vars, ctors, ints := names(binding(t, r, "tomorrow").Term)
	assert.Contains(t, vars, "Calendar.(+)")
	assert.Equal(t, []string{"Day"}, ctors)
	assert.Equal(t, []int64{1}, ints)
	assert.False(t, kernel.HasSites(binding(t, r, "tomorrow").Term))

	_, ctors, ints = names(binding(t, r, "nextYear").Term)
	assert.Equal(t, []string{"Month"}, ctors)
	assert.Equal(t, []int64{12}, ints)

	vars, _, _ = names(binding(t, r, "sum").Term)
	assert.NotContains(t, vars, "Calendar.(+)")

	for _, name := range []string{"leapDay", "leapLiteral"} {
		requireScheme(t, r, name, dateT)
		vars, ctors, ints := names(binding(t, r, name).Term)
		assert.Contains(t, vars, "Calendar.(+)", name)
		assert.Equal(t, []string{"Day"}, ctors, name)
		assert.ElementsMatch(t, []int64{2024, 2, 28, 1}, ints, name)
	}

	assert.Equal(t, frontend.Failed, binding(t, r, "bad").State)
	assert.Equal(t, []ilerr.ErrCode{ilerr.NoMatchingDomain}, codes(r))

	_, ok := r.Domains.Lookup("Calendar")
	assert.True(t, ok)
}

func TestDependencyOrder(t *testing.T) {
	mod := &ast.Module{Name: "parity", Decls: []ast.Decl{
		def("main", call("isEven", intLit(10))),
		def("isEven", lambda([]string{"n"}, call("isOdd", ident("n")))),
		def("isOdd", lambda([]string{"n"}, call("isEven", ident("n")))),
	}}
	r := compile(t, mod, nil)
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())

	var order []string
	for _, b := range r.Kernel.Bindings {
		order = append(order, b.Name)
	}
	assert.Equal(t, []string{"isEven", "isOdd", "main"}, order)
	requireScheme(t, r, "isEven", "forall a b. a -> b")
	requireScheme(t, r, "main", "forall a. a")
}

func TestFaultIsolation(t *testing.T) {
	mod := &ast.Module{Name: "faults", Decls: []ast.Decl{
		def("broken", ident("nowhere")),
		def("usesBroken", call("broken", intLit(1))),
		def("fine", intLit(1)),
		def("mismatch", call("fine", intLit(1))),
	}}
	r := compile(t, mod, nil)

	assert.Equal(t, frontend.Failed, binding(t, r, "broken").State)
	assert.Equal(t, types.Error{}, binding(t, r, "broken").Scheme)
	requireScheme(t, r, "fine", "Int")
	assert.Equal(t, frontend.Solved, binding(t, r, "usesBroken").State)
	assert.Equal(t, frontend.Failed, binding(t, r, "mismatch").State)
	assert.ElementsMatch(t, []ilerr.ErrCode{ilerr.UndefinedVariable, ilerr.UnifyMismatch}, codes(r))

	assert.Contains(t, r.Signatures, "fine")
	assert.NotContains(t, r.Signatures, "broken")
	_, exported := r.Exports.LookupValue("broken")
	assert.False(t, exported)
}

func TestPatches(t *testing.T) {
	point := func() *ast.Record { return record("x", intLit(1), "y", intLit(2)) }
	set := func(path string, value ast.Expr) ast.PatchField {
		return ast.PatchField{Path: []ast.PathSeg{field(path)}, Value: value}
	}
	mod := &ast.Module{Name: "patches", Decls: []ast.Decl{
		def("once", patch(point(), set("x", intLit(10)))),
		def("twice", patch(patch(point(), set("x", intLit(10))), set("x", intLit(10)))),
		def("both", patch(point(), set("x", intLit(10)), set("y", textLit("moved")))),
		def("nested", patch(record("a", record("b", intLit(1))), ast.PatchField{
			Path:  []ast.PathSeg{field("a"), field("b")},
			Value: lambda([]string{"n"}, binary("*", ident("n"), intLit(2))),
		})),
		def("lifted", patch(record("o", call("Some", &ast.ListLit{Items: []ast.Expr{intLit(1)}})),
			set("o", lambda([]string{"xs"}, call("List.length", ident("xs")))))),
		def("removed", patch(point(), ast.PatchField{Path: []ast.PathSeg{field("y")}, Instr: ast.InstrRemove})),
		def("bumped", patch(call("Ok", intLit(1)), ast.PatchField{
			Path:  []ast.PathSeg{&ast.PrismSeg{Ctor: "Ok"}, field("value")},
			Value: increment(),
		})),
		def("bumpedPayload", patch(call("Ok", intLit(1)), ast.PatchField{
			Path:  []ast.PathSeg{&ast.PrismSeg{Ctor: "Ok"}},
			Value: increment(),
		})),
		def("payloadField", patch(call("Some", record("value", intLit(1))), ast.PatchField{
			Path:  []ast.PathSeg{&ast.PrismSeg{Ctor: "Some"}, field("value"), field("value")},
			Value: textLit("one"),
		})),
	}}
	r := compile(t, mod, nil)
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())

	requireScheme(t, r, "once", "{x: Int, y: Int}")
	requireScheme(t, r, "twice", "{x: Int, y: Int}")
	requireScheme(t, r, "both", "{x: Int, y: Text}")
	requireScheme(t, r, "nested", "{a: {b: Int}}")
	requireScheme(t, r, "lifted", "{o: Option Int}")
	requireScheme(t, r, "removed", "{x: Int}")
	requireScheme(t, r, "bumped", "forall a. Result a Int")
	requireScheme(t, r, "bumpedPayload", "forall a. Result a Int")
	requireScheme(t, r, "payloadField", "Option {value: Text}")

	vars, _, _ := names(binding(t, r, "lifted").Term)
	assert.Contains(t, vars, "mapOption")
	for _, b := range r.Kernel.Bindings {
		assert.False(t, kernel.HasSites(b.Term), b.Name)
	}
}

func TestGenerators(t *testing.T) {
	gen := &ast.Block{Kind: ast.GenerateBlock, Items: []ast.BlockItem{
		&ast.BindItem{Pattern: &ast.VarPat{Name: "x"}, Expr: &ast.ListLit{Items: []ast.Expr{intLit(1), intLit(2)}}},
		&ast.YieldItem{Expr: binary("+", ident("x"), intLit(1))},
	}}
	r := compile(t, &ast.Module{Name: "gen", Decls: []ast.Decl{def("incremented", gen)}}, nil)
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())
	requireScheme(t, r, "incremented", "forall a. (a -> Int -> a) -> a -> a")

	var folds int
	kernel.Walk(binding(t, r, "incremented").Term, func(n kernel.Term) bool {
		if _, ok := n.(*kernel.Fold); ok {
			folds++
		}
		return true
	})
	assert.Equal(t, 1, folds)
}

func TestImports(t *testing.T) {
	lib := &ast.Module{Name: "lib", Decls: []ast.Decl{
		&ast.ClassDecl{Name: "Describe", Param: "a", Methods: []ast.MethodSig{
			{Name: "describe", Type: arrow(tvar("a"), tname("Text"))},
		}},
		&ast.InstanceDecl{Class: "Describe", Head: tname("Int"), Methods: []*ast.Def{
			def("describe", lambda([]string{"n"}, textLit("an int"))),
		}},
		def("double", lambda([]string{"x"}, binary("+", ident("x"), ident("x")))),
	}}
	libResult := compile(t, lib, nil)
	require.False(t, libResult.Failed(), libResult.Diagnostics.Diagnostics())
	requireScheme(t, libResult, "double", "forall a. Num a => a -> a")

	dict := binding(t, libResult, "Describe$Int")
	assert.Equal(t, frontend.Solved, dict.State)
	_, isRecord := dict.Term.(*kernel.RecordLit)
	assert.True(t, isRecord, kernel.Show(dict.Term))
	require.Len(t, libResult.Instances, 1)

	app := &ast.Module{Name: "app", Uses: []ast.Use{{Module: "lib"}}, Decls: []ast.Decl{
		def("four", call("double", intLit(2))),
		def("label", call("describe", intLit(4))),
	}}
	r := compile(t, app, map[string]*frontend.Result{"lib": libResult})
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())
	requireScheme(t, r, "four", "Int")
	requireScheme(t, r, "label", "Text")

	vars, _, _ := names(binding(t, r, "label").Term)
	assert.Contains(t, vars, "Describe$Int")

	missing := compile(t, &ast.Module{Name: "lost", Uses: []ast.Use{{Module: "nowhere"}}}, nil)
	assert.Equal(t, []ilerr.ErrCode{ilerr.UnknownModule}, codes(missing))
}

func TestSignaturesAndAnnotations(t *testing.T) {
	mod := &ast.Module{Name: "sigs", Decls: []ast.Decl{
		&ast.Def{Name: "id", Sig: arrow(tvar("a"), tvar("a")), Expr: lambda([]string{"x"}, ident("x"))},
		&ast.Def{Name: "notId", Sig: arrow(tvar("a"), tvar("a")), Expr: lambda([]string{"x"}, intLit(1))},
		&ast.Def{Name: "badSig", Sig: tname("Nope"), Expr: intLit(1)},
		def("half", &ast.Annot{Expr: binary("/", &ast.FloatLit{Value: 1}, &ast.FloatLit{Value: 2}), Type: tname("Float")}),
	}}
	r := compile(t, mod, nil)
	requireScheme(t, r, "id", "forall a. a -> a")
	requireScheme(t, r, "half", "Float")
	assert.Equal(t, frontend.Failed, binding(t, r, "notId").State)
	assert.Equal(t, frontend.Failed, binding(t, r, "badSig").State)
	assert.ElementsMatch(t, []ilerr.ErrCode{ilerr.UnifyMismatch, ilerr.UndefinedType}, codes(r))
}

func TestInvalidDomain(t *testing.T) {
	decls := calendar()
	dom := decls[1].(*ast.DomainDecl)
	dom.Literals = append(dom.Literals, ast.DeltaLiteralDecl{Text: "1w", Ctor: "Some", Args: []ast.Expr{intLit(7)}})
	r := compile(t, &ast.Module{Name: "cal", Decls: decls}, nil)
	assert.Equal(t, []ilerr.ErrCode{ilerr.InvalidDomain}, codes(r))
	d, ok := r.Domains.Lookup("Calendar")
	require.True(t, ok)
	assert.NotContains(t, d.DeltaLiterals, "1w")
}

func TestResolutionRoundBudget(t *testing.T) {
	mod := &ast.Module{Name: "app", Decls: append(calendar(),
		def("tomorrow", lambda([]string{"date"}, binary("+", ident("date"), delta("1d")))),
	)}
	r := frontend.CompileModule(mod, nil, frontend.Config{MaxResolutionRounds: 1})
	requireScheme(t, r, "tomorrow", "{day: Int, month: Int, year: Int} -> {day: Int, month: Int, year: Int}")
}

func TestContentHash(t *testing.T) {
	src := []byte("answer = 42")
	r := compile(t, &ast.Module{Name: "m", Source: src, Decls: []ast.Decl{def("answer", intLit(42))}}, nil)
	assert.Equal(t, xxh3.Hash(src), r.Hash)

	r = compile(t, &ast.Module{Name: "m", Decls: []ast.Decl{def("answer", intLit(42))}}, nil)
	assert.Zero(t, r.Hash)
}

func TestMapKeyPatches(t *testing.T) {
	key := func() []ast.PathSeg { return []ast.PathSeg{&ast.IndexSeg{Expr: textLit("a")}} }
	mod := &ast.Module{Name: "maps", Decls: []ast.Decl{
		def("scores", call("Map.insert", textLit("a"), intLit(1), ident("Map.empty"))),
		def("bumped", patch(ident("scores"), ast.PatchField{Path: key(), Value: increment()})),
		def("reset", patch(ident("scores"), ast.PatchField{Path: key(), Value: intLit(0)})),
		def("dropped", patch(ident("scores"), ast.PatchField{Path: key(), Instr: ast.InstrRemove})),
		def("nested", patch(call("Map.insert", textLit("a"), record("n", intLit(1)), ident("Map.empty")), ast.PatchField{
			Path:  []ast.PathSeg{&ast.IndexSeg{Expr: textLit("a")}, field("n")},
			Value: increment(),
		})),
	}}
	r := compile(t, mod, nil)
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())

	tests := []struct {
		name, scheme, call string
	}{
		{"bumped", "Map Text Int", "Map.update"},
		{"reset", "Map Text Int", "Map.insert"},
		{"dropped", "Map Text Int", "Map.remove"},
		{"nested", "Map Text {n: Int}", "Map.update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireScheme(t, r, tt.name, tt.scheme)
			vars, _, _ := names(binding(t, r, tt.name).Term)
			assert.Contains(t, vars, tt.call)
			assert.False(t, kernel.HasSites(binding(t, r, tt.name).Term))
		})
	}
}

// describeClass declares `class Describe a` with one instance per head.
func describeClass(heads ...ast.TypeExpr) []ast.Decl {
	decls := []ast.Decl{&ast.ClassDecl{Name: "Describe", Param: "a", Methods: []ast.MethodSig{
		{Name: "describe", Type: arrow(tvar("a"), tname("Text"))},
	}}}
	for _, head := range heads {
		decls = append(decls, &ast.InstanceDecl{Class: "Describe", Head: head, Methods: []*ast.Def{
			def("describe", lambda([]string{"x"}, textLit("described"))),
		}})
	}
	return decls
}

func listOf(elem string) ast.TypeExpr {
	return &ast.TypeApply{Head: tname("List"), Args: []ast.TypeExpr{tname(elem)}}
}

func TestInstancesOnConcreteHeads(t *testing.T) {
	t.Run("constraint waits for a later use", func(t *testing.T) {
		body := &ast.Block{Kind: ast.PlainBlock, Items: []ast.BlockItem{
			&ast.LetItem{Pattern: &ast.VarPat{Name: "n"}, Expr: call("List.length", ident("xs"))},
			&ast.LetItem{Pattern: &ast.VarPat{Name: "s"}, Expr: call("describe", ident("xs"))},
			&ast.ExprItem{Expr: record("s", ident("s"), "ys", call("Cons", intLit(1), ident("xs")))},
		}}
		mod := &ast.Module{Name: "late", Decls: append(describeClass(listOf("Int")), def("late", lambda([]string{"xs"}, body)))}
		r := compile(t, mod, nil)
		require.False(t, r.Failed(), r.Diagnostics.Diagnostics())
		requireScheme(t, r, "late", "List Int -> {s: Text, ys: List Int}")

		vars, _, _ := names(binding(t, r, "late").Term)
		assert.Contains(t, vars, "Describe$List_Int")
	})

	t.Run("dictionaries are named by the whole head", func(t *testing.T) {
		mod := &ast.Module{Name: "heads", Decls: append(describeClass(listOf("Int"), listOf("Text")),
			def("ints", call("describe", &ast.ListLit{Items: []ast.Expr{intLit(1)}})),
			def("texts", call("describe", &ast.ListLit{Items: []ast.Expr{textLit("x")}})),
		)}
		r := compile(t, mod, nil)
		require.False(t, r.Failed(), r.Diagnostics.Diagnostics())

		require.Len(t, r.Instances, 2)
		assert.Equal(t, "Describe$List_Int", r.Instances[0].DictName)
		assert.Equal(t, "Describe$List_Text", r.Instances[1].DictName)
		binding(t, r, "Describe$List_Int")
		binding(t, r, "Describe$List_Text")

		ints, _, _ := names(binding(t, r, "ints").Term)
		texts, _, _ := names(binding(t, r, "texts").Term)
		assert.Contains(t, ints, "Describe$List_Int")
		assert.NotContains(t, ints, "Describe$List_Text")
		assert.Contains(t, texts, "Describe$List_Text")
		assert.NotContains(t, texts, "Describe$List_Int")
	})

	t.Run("methods must match the class", func(t *testing.T) {
		extra := &ast.InstanceDecl{Class: "Describe", Head: tname("Int"), Methods: []*ast.Def{
			def("describe", lambda([]string{"x"}, textLit("int"))),
			def("summarise", lambda([]string{"x"}, textLit("int"))),
		}}
		missing := &ast.InstanceDecl{Class: "Describe", Head: tname("Text")}
		r := compile(t, &ast.Module{Name: "methods", Decls: append(describeClass(), extra, missing)}, nil)
		assert.Equal(t, []ilerr.ErrCode{ilerr.InstanceMethod, ilerr.InstanceMethod}, codes(r))

		var messages []string
		for _, d := range r.Diagnostics.Diagnostics() {
			messages = append(messages, d.Message)
		}
		assert.ElementsMatch(t, []string{
			"'summarise' is not a method of class 'Describe'",
			"instance 'Describe$Text' does not define method 'describe'",
		}, messages)
	})
}

func TestTypeApplicationsAreGround(t *testing.T) {
	mod := &ast.Module{Name: "ground", Decls: []ast.Decl{
		def("n", call("List.length", &ast.ListLit{Items: []ast.Expr{textLit("x")}})),
		def("shown", call("show", &ast.ListLit{Items: []ast.Expr{intLit(1)}})),
	}}
	r := compile(t, mod, nil)
	require.False(t, r.Failed(), r.Diagnostics.Diagnostics())

	for _, name := range []string{"n", "shown"} {
		var apps int
		kernel.Walk(binding(t, r, name).Term, func(n kernel.Term) bool {
			if app, ok := n.(*kernel.TypeApp); ok {
				apps++
				for _, ty := range app.Types {
					assert.True(t, types.IsGround(ty), "%s: %s", name, types.Show(ty))
				}
			}
			return true
		})
		assert.NotZero(t, apps, name)
	}
}
