package desugar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/desugar"
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
)

type ctorInfo struct{ arity, siblings int }

type fakeEnv struct {
	ctors   map[string]ctorInfo
	globals map[string]bool
}

func (e fakeEnv) Constructor(name string) (int, int, bool) {
	c, ok := e.ctors[name]
	return c.arity, c.siblings, ok
}

func (e fakeEnv) IsGlobal(name string) bool { return e.globals[name] }

var env = fakeEnv{
	ctors: map[string]ctorInfo{
		"True": {0, 2}, "False": {0, 2},
		"Unit": {0, 1},
		"None": {0, 2}, "Some": {1, 2},
		"Ok": {1, 2}, "Err": {1, 2},
		"Nil": {0, 2}, "Cons": {2, 2},
		"Wrap": {1, 1},
		"Pair": {2, 1},
	},
	globals: map[string]bool{"print": true, "+": true, ">": true, "==": true},
}

func newDesugarer(domains *domain.Table) (*desugar.Desugarer, *kernel.Sites) {
	sites := kernel.NewSites()
	return desugar.New(env, domains, &kernel.IDGen{}, sites), sites
}

func ident(name string) *ast.Ident   { return &ast.Ident{Name: name} }
func intLit(v int64) *ast.IntLit     { return &ast.IntLit{Value: v} }
func varPat(name string) *ast.VarPat { return &ast.VarPat{Name: name} }

func codes(errs *ilerr.Errors) []ilerr.ErrCode {
	var out []ilerr.ErrCode
	for _, e := range errs.Errors() {
		out = append(out, e.Code())
	}
	return out
}

func TestMatchWithoutGuardsIsSingleCase(t *testing.T) {
	d, _ := newDesugarer(nil)
	e := &ast.Match{
		Scrutinee: ident("x"),
		Arms: []ast.MatchArm{
			{Pattern: &ast.CtorPat{Name: "Some", Args: []ast.Pattern{varPat("v")}}, Body: ident("v")},
			{Pattern: &ast.CtorPat{Name: "None"}, Body: intLit(0)},
		},
	}
	term, errs := d.Expr(e)
	require.False(t, errs.HasError())

	c, ok := term.(*kernel.Case)
	require.True(t, ok, "expected a case, got %s", kernel.Show(term))
	require.Len(t, c.Alts, 3)
	assert.Equal(t, "Some", c.Alts[0].Pattern.(*kernel.PCtor).Name)
	assert.Equal(t, "None", c.Alts[1].Pattern.(*kernel.PCtor).Name)
	assert.IsType(t, &kernel.PWild{}, c.Alts[2].Pattern)
	assert.Equal(t, desugar.NameUnreachable, c.Alts[2].Body.(*kernel.Var).Name)
}

func TestMatchEndingInCatchAllHasNoFailAlternative(t *testing.T) {
	d, _ := newDesugarer(nil)
	e := &ast.Match{
		Scrutinee: ident("x"),
		Arms: []ast.MatchArm{
			{Pattern: &ast.CtorPat{Name: "None"}, Body: intLit(0)},
			{Pattern: &ast.WildcardPat{}, Body: intLit(1)},
		},
	}
	term, errs := d.Expr(e)
	require.False(t, errs.HasError())
	c := term.(*kernel.Case)
	assert.Len(t, c.Alts, 2)
}

func TestGuardsFallThroughToLaterArms(t *testing.T) {
	d, _ := newDesugarer(nil)
	e := &ast.Match{
		Scrutinee: ident("x"),
		Arms: []ast.MatchArm{
			{
				Pattern: &ast.CtorPat{Name: "Some", Args: []ast.Pattern{varPat("v")}},
				Guard:   &ast.Binary{Op: ">", Left: ident("v"), Right: intLit(0)},
				Body:    ident("v"),
			},
			{Pattern: &ast.WildcardPat{}, Body: intLit(0)},
		},
	}
	term, errs := d.Expr(e)
	require.False(t, errs.HasError())

	let, ok := term.(*kernel.Let)
	require.True(t, ok, "expected a continuation, got %s", kernel.Show(term))
	_, isLam := let.Value.(*kernel.Lam)
	assert.True(t, isLam)

	c, ok := let.Body.(*kernel.Case)
	require.True(t, ok)
	assert.Equal(t, "x", c.Scrutinee.(*kernel.Var).Name)
	require.Len(t, c.Alts, 2)
	// the failure alternative calls the continuation
	fallback, ok := c.Alts[1].Body.(*kernel.App)
	require.True(t, ok)
	assert.Equal(t, let.Name, fallback.Fun.(*kernel.Var).Name)
}

func TestLiteralPatternsBecomeEqualityGuards(t *testing.T) {
	d, _ := newDesugarer(nil)
	e := &ast.Match{
		Scrutinee: ident("n"),
		Arms: []ast.MatchArm{
			{Pattern: &ast.IntPat{Value: 0}, Body: &ast.TextLit{Value: "zero"}},
			{Pattern: &ast.WildcardPat{}, Body: &ast.TextLit{Value: "other"}},
		},
	}
	term, errs := d.Expr(e)
	require.False(t, errs.HasError())

	var sawEq bool
	kernel.Walk(term, func(n kernel.Term) bool {
		if v, ok := n.(*kernel.Var); ok && v.Name == desugar.NameEq {
			sawEq = true
		}
		return true
	})
	assert.True(t, sawEq, kernel.Show(term))
}

func TestDeepRecordPatternsMergeSharedPrefixes(t *testing.T) {
	d, _ := newDesugarer(nil)
	e := &ast.Lambda{
		Params: []ast.Pattern{&ast.RecordPat{Fields: []ast.RecordPatField{
			{Path: []string{"a", "b"}, Pattern: varPat("x")},
			{Path: []string{"a", "c"}},
		}}},
		Body: ident("c"),
	}
	term, errs := d.Expr(e)
	require.False(t, errs.HasError())

	lam := term.(*kernel.Lam)
	c := lam.Body.(*kernel.Case)
	rec := c.Alts[0].Pattern.(*kernel.PRecord)
	require.Len(t, rec.Fields, 1)
	assert.Equal(t, "a", rec.Fields[0].Label)
	nested := rec.Fields[0].Pattern.(*kernel.PRecord)
	assert.True(t, nested.Open)
	require.Len(t, nested.Fields, 2)
	assert.Equal(t, "b", nested.Fields[0].Label)
	assert.Equal(t, "c", nested.Fields[1].Label)
	assert.Equal(t, "c", nested.Fields[1].Pattern.(*kernel.PVar).Name)
}

func TestNonTotalBindings(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want bool
	}{
		{
			name: "refutable let",
			expr: &ast.Block{Items: []ast.BlockItem{
				&ast.LetItem{Pattern: &ast.CtorPat{Name: "Some", Args: []ast.Pattern{varPat("v")}}, Expr: ident("x")},
				&ast.ExprItem{Expr: ident("v")},
			}},
			want: true,
		},
		{
			name: "single constructor let",
			expr: &ast.Block{Items: []ast.BlockItem{
				&ast.LetItem{Pattern: &ast.CtorPat{Name: "Pair", Args: []ast.Pattern{varPat("a"), varPat("b")}}, Expr: ident("x")},
				&ast.ExprItem{Expr: ident("a")},
			}},
		},
		{
			name: "literal lambda parameter",
			expr: &ast.Lambda{Params: []ast.Pattern{&ast.IntPat{Value: 1}}, Body: intLit(1)},
			want: true,
		},
		{
			name: "effect bind",
			expr: &ast.Block{Kind: ast.EffectBlock, Items: []ast.BlockItem{
				&ast.BindItem{Pattern: &ast.CtorPat{Name: "Ok", Args: []ast.Pattern{varPat("v")}}, Expr: ident("x")},
			}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDesugarer(nil)
			_, errs := d.Expr(tt.expr)
			if tt.want {
				assert.Contains(t, codes(errs), ilerr.NonTotalBinding)
			} else {
				assert.False(t, errs.HasError())
			}
		})
	}
}

func TestMultiClauseFunction(t *testing.T) {
	d, _ := newDesugarer(nil)
	def := &ast.Def{
		Name: "describe",
		Clauses: []ast.Clause{
			{Params: []ast.Pattern{&ast.CtorPat{Name: "None"}}, Body: &ast.TextLit{Value: "none"}},
			{Params: []ast.Pattern{&ast.CtorPat{Name: "Some", Args: []ast.Pattern{&ast.WildcardPat{}}}}, Body: &ast.TextLit{Value: "some"}},
		},
	}
	term, errs := d.Def(def)
	require.False(t, errs.HasError())
	lam, ok := term.(*kernel.Lam)
	require.True(t, ok)
	c, ok := lam.Body.(*kernel.Case)
	require.True(t, ok)
	assert.Equal(t, lam.Param, c.Scrutinee.(*kernel.Var).Name)
	assert.Len(t, c.Alts, 3)
}

func TestEffectBlock(t *testing.T) {
	d, _ := newDesugarer(nil)
	block := &ast.Block{Kind: ast.EffectBlock, Items: []ast.BlockItem{
		&ast.BindItem{Pattern: varPat("x"), Expr: ident("load")},
		&ast.ExprItem{Expr: &ast.Call{Func: ident("print"), Args: []ast.Expr{ident("x")}}},
		&ast.ExprItem{Expr: &ast.Call{Func: ident("pure"), Args: []ast.Expr{ident("x")}}},
	}}
	term, errs := d.Expr(block)
	require.False(t, errs.HasError())

	bind, ok := term.(*kernel.EffectBind)
	require.True(t, ok, kernel.Show(term))
	assert.Equal(t, "load", bind.Effect.(*kernel.Var).Name)
	fn := bind.Fn.(*kernel.Lam)
	assert.Equal(t, "x", fn.Param)

	second, ok := fn.Body.(*kernel.EffectBind)
	require.True(t, ok)
	_, isPure := second.Fn.(*kernel.Lam).Body.(*kernel.EffectPure)
	assert.True(t, isPure)
}

func TestEffectBindOrFallback(t *testing.T) {
	d, _ := newDesugarer(nil)
	block := &ast.Block{Kind: ast.EffectBlock, Items: []ast.BlockItem{
		&ast.BindItem{Pattern: varPat("x"), Expr: ident("load"), Or: &ast.OrFallback{Fallback: intLit(0)}},
		&ast.ExprItem{Expr: &ast.Call{Func: ident("pure"), Args: []ast.Expr{ident("x")}}},
	}}
	term, errs := d.Expr(block)
	require.False(t, errs.HasError())

	outer := term.(*kernel.EffectBind)
	recovered, ok := outer.Effect.(*kernel.EffectBind)
	require.True(t, ok, kernel.Show(term))
	head, args := kernel.Spine(recovered.Effect)
	assert.Equal(t, desugar.NameAttempt, head.(*kernel.Var).Name)
	require.Len(t, args, 1)
}

func TestInvalidBlockItems(t *testing.T) {
	tests := []struct {
		name  string
		block *ast.Block
	}{
		{"filter in effect", &ast.Block{Kind: ast.EffectBlock, Items: []ast.BlockItem{&ast.FilterItem{Expr: ident("ok")}}}},
		{"yield in do", &ast.Block{Kind: ast.DoBlock, Items: []ast.BlockItem{&ast.YieldItem{Expr: intLit(1)}}}},
		{"bind in plain block", &ast.Block{Items: []ast.BlockItem{&ast.BindItem{Pattern: varPat("x"), Expr: ident("e")}, &ast.ExprItem{Expr: ident("x")}}}},
		{"expression before the end of a plain block", &ast.Block{Items: []ast.BlockItem{&ast.ExprItem{Expr: intLit(1)}, &ast.ExprItem{Expr: intLit(2)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDesugarer(nil)
			_, errs := d.Expr(tt.block)
			assert.Contains(t, codes(errs), ilerr.InvalidBlockItem)
		})
	}
}

func TestGeneratorBindLeavesSourceSite(t *testing.T) {
	d, sites := newDesugarer(nil)
	block := &ast.Block{Kind: ast.GenerateBlock, Items: []ast.BlockItem{
		&ast.BindItem{Pattern: varPat("x"), Expr: ident("xs")},
		&ast.FilterItem{Expr: &ast.Binary{Op: ">", Left: ident("x"), Right: intLit(1)}},
		&ast.YieldItem{Expr: ident("x")},
	}}
	term, errs := d.Expr(block)
	require.False(t, errs.HasError())

	found := sites.In(term)
	require.Len(t, found, 1)
	assert.Equal(t, kernel.SiteGenSource, found[0].Kind)

	outer := term.(*kernel.Lam)
	_, isLam := outer.Body.(*kernel.Lam)
	assert.True(t, isLam)
}

func TestPatchLowering(t *testing.T) {
	t.Run("nested field updates go through a lift site", func(t *testing.T) {
		d, sites := newDesugarer(nil)
		patch := &ast.Patch{Target: ident("r"), Fields: []ast.PatchField{{
			Path:  []ast.PathSeg{&ast.FieldSeg{Name: "a"}, &ast.FieldSeg{Name: "b"}},
			Value: intLit(1),
		}}}
		term, errs := d.Expr(patch)
		require.False(t, errs.HasError())

		update := term.(*kernel.Update)
		assert.Equal(t, "a", update.Label)
		found := sites.In(term)
		require.Len(t, found, 2)
		assert.Equal(t, ast.InstrTransform, found[0].Instr)
		assert.Equal(t, ast.InstrReplace, found[1].Instr)
	})

	t.Run("remove deletes the last field", func(t *testing.T) {
		d, _ := newDesugarer(nil)
		patch := &ast.Patch{Target: ident("r"), Fields: []ast.PatchField{{
			Path:  []ast.PathSeg{&ast.FieldSeg{Name: "a"}},
			Instr: ast.InstrRemove,
		}}}
		term, errs := d.Expr(patch)
		require.False(t, errs.HasError())
		assert.Equal(t, "a", term.(*kernel.Delete).Label)
	})

	t.Run("fields apply left to right", func(t *testing.T) {
		d, _ := newDesugarer(nil)
		patch := &ast.Patch{Target: ident("r"), Fields: []ast.PatchField{
			{Path: []ast.PathSeg{&ast.FieldSeg{Name: "a"}}, Value: intLit(1)},
			{Path: []ast.PathSeg{&ast.FieldSeg{Name: "b"}}, Value: intLit(2)},
		}}
		term, errs := d.Expr(patch)
		require.False(t, errs.HasError())
		outer := term.(*kernel.Update)
		assert.Equal(t, "b", outer.Label)
		assert.Equal(t, "a", outer.Record.(*kernel.Update).Label)
	})

	t.Run("predicate selectors read fields of the element", func(t *testing.T) {
		d, sites := newDesugarer(nil)
		patch := &ast.Patch{Target: ident("r"), Fields: []ast.PatchField{{
			Path: []ast.PathSeg{
				&ast.FieldSeg{Name: "items"},
				&ast.IndexSeg{Expr: &ast.Binary{Op: ">", Left: ident("price"), Right: intLit(80)}},
				&ast.FieldSeg{Name: "price"},
			},
			Value: intLit(0),
		}}}
		term, errs := d.Expr(patch)
		require.False(t, errs.HasError())

		var traverse *kernel.Site
		for _, s := range sites.In(term) {
			if s.Kind == kernel.SiteTraverse {
				traverse = s
			}
		}
		require.NotNil(t, traverse)
		assert.True(t, traverse.Predicate)
		assert.Equal(t, 3, traverse.Arity)

		var projected bool
		kernel.Walk(term, func(n kernel.Term) bool {
			if p, ok := n.(*kernel.Project); ok && p.Label == "price" {
				projected = true
			}
			return true
		})
		assert.True(t, projected)
	})

	t.Run("prism", func(t *testing.T) {
		d, _ := newDesugarer(nil)
		patch := &ast.Patch{Target: ident("r"), Fields: []ast.PatchField{{
			Path:  []ast.PathSeg{&ast.PrismSeg{Ctor: "Some"}},
			Value: intLit(1),
		}}}
		term, errs := d.Expr(patch)
		require.False(t, errs.HasError())
		c := term.(*kernel.Case)
		require.Len(t, c.Alts, 2)
		assert.Equal(t, "Some", c.Alts[0].Body.(*kernel.Constructor).Name)
	})
}

func TestInvalidPatchPaths(t *testing.T) {
	tests := []struct {
		name  string
		field ast.PatchField
	}{
		{"empty path", ast.PatchField{Value: intLit(1)}},
		{"remove under traversal", ast.PatchField{
			Path:  []ast.PathSeg{&ast.FieldSeg{Name: "items"}, &ast.AllSeg{}, &ast.FieldSeg{Name: "a"}},
			Instr: ast.InstrRemove,
		}},
		{"prism of a constant constructor", ast.PatchField{
			Path:  []ast.PathSeg{&ast.PrismSeg{Ctor: "None"}},
			Value: intLit(1),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDesugarer(nil)
			_, errs := d.Expr(&ast.Patch{Target: ident("r"), Fields: []ast.PatchField{tt.field}})
			assert.Contains(t, codes(errs), ilerr.InvalidPatchPath)
		})
	}
}

func TestDomainOperatorsBecomeSites(t *testing.T) {
	table := domain.NewTable(&domain.DomainDef{
		Name:      "Calendar",
		Operators: map[string]domain.FunctionRef{"+": {Name: domain.OperatorName("Calendar", "+")}},
		DeltaLiterals: map[string]domain.ConstructorRef{
			"1d": {Ctor: "Day", Args: []*kernel.Lit{{Kind: kernel.LitInt, Int: 1}}},
		},
	})
	d, sites := newDesugarer(table)
	term, errs := d.Expr(&ast.Binary{Op: "+", Left: ident("date"), Right: &ast.DeltaLit{Text: "1d"}})
	require.False(t, errs.HasError())

	found := sites.In(term)
	require.Len(t, found, 2)
	op, delta := found[0], found[1]
	assert.Equal(t, kernel.SiteDomainOp, op.Kind)
	assert.Equal(t, kernel.SiteDelta, delta.Kind)
	assert.Equal(t, delta.ID, op.Right)

	// operators no domain defines stay plain applications
	term, errs = d.Expr(&ast.Binary{Op: "*", Left: ident("a"), Right: ident("b")})
	require.False(t, errs.HasError())
	assert.Empty(t, sites.In(term))
}

func TestPipeAndBooleanOperators(t *testing.T) {
	d, _ := newDesugarer(nil)
	term, errs := d.Expr(&ast.Binary{Op: "|>", Left: ident("x"), Right: ident("f")})
	require.False(t, errs.HasError())
	app := term.(*kernel.App)
	assert.Equal(t, "f", app.Fun.(*kernel.Var).Name)
	assert.Equal(t, "x", app.Arg.(*kernel.Var).Name)

	term, _ = d.Expr(&ast.Binary{Op: "&&", Left: ident("a"), Right: ident("b")})
	c := term.(*kernel.Case)
	assert.Equal(t, "False", c.Alts[1].Body.(*kernel.Constructor).Name)
}

func TestConstructorsAreSaturated(t *testing.T) {
	d, _ := newDesugarer(nil)
	term, errs := d.Expr(ident("Some"))
	require.False(t, errs.HasError())
	lam := term.(*kernel.Lam)
	ctor := lam.Body.(*kernel.Constructor)
	assert.Equal(t, "Some", ctor.Name)
	require.Len(t, ctor.Args, 1)

	term, _ = d.Expr(&ast.ListLit{Items: []ast.Expr{intLit(1), intLit(2)}})
	assert.Equal(t, "Cons 1 (Cons 2 Nil)", kernel.Show(term))
}
