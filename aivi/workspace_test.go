package aivi_test

import (
	"context"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/aivi"
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/astio"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/aivi-lang/aivi/internal/dag"
)

const (
	mathSrc = `module: math
decls:
  - def: double
    value: {lambda: [x], body: {"+": [x, x]}}
`
	textSrc = `module: text
decls:
  - def: greeting
    value: "hello"
`
	appSrc = `module: app
uses: [math, text]
decls:
  - def: four
    value: {call: double, args: [2]}
  - def: hi
    value: greeting
`
)

func parse(t *testing.T, srcs ...string) []*ast.Module {
	t.Helper()
	fset := token.NewFileSet()
	out := make([]*ast.Module, len(srcs))
	for i, src := range srcs {
		mod, err := astio.Decode(fset, "module.yaml", []byte(src))
		require.NoError(t, err)
		out[i] = mod
	}
	return out
}

func newWorkspace(parallelism int) *aivi.Workspace {
	cfg := aivi.DefaultConfig()
	cfg.Parallelism = parallelism
	return aivi.New(cfg)
}

func TestCheckOrdersByImports(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		w := newWorkspace(parallelism)
		build, err := w.Check(context.Background(), parse(t, appSrc, textSrc, mathSrc))
		require.NoError(t, err)
		require.False(t, build.Failed(), build.Diagnostics().Diagnostics())

		assert.Equal(t, [][]string{{"math", "text"}, {"app"}}, build.Levels)
		app := build.Results["app"]
		assert.Equal(t, "Int", types.Show(app.Signatures["four"]))
		assert.Equal(t, "Text", types.Show(app.Signatures["hi"]))
		assert.NotZero(t, build.Keys["app"])
	}
}

func TestMemoisation(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(2)

	first, err := w.Check(ctx, parse(t, mathSrc, textSrc, appSrc))
	require.NoError(t, err)
	hits, misses := w.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(3), misses)
	assert.Equal(t, 3, w.Len())

	second, err := w.Check(ctx, parse(t, mathSrc, textSrc, appSrc))
	require.NoError(t, err)
	hits, misses = w.Stats()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(3), misses)
	assert.Same(t, first.Results["app"], second.Results["app"])
	assert.Equal(t, first.Keys, second.Keys)

	// Changing math invalidates app through its key but leaves text alone.
	changed := `module: math
decls:
  - def: double
    value: {lambda: [x], body: {"*": [x, 2]}}
`
	third, err := w.Check(ctx, parse(t, changed, textSrc, appSrc))
	require.NoError(t, err)
	hits, misses = w.Stats()
	assert.Equal(t, int64(4), hits)
	assert.Equal(t, int64(5), misses)
	assert.Same(t, first.Results["text"], third.Results["text"])
	assert.NotEqual(t, first.Keys["app"], third.Keys["app"])

	r, ok := w.Lookup(third.Keys["math"])
	require.True(t, ok)
	assert.Same(t, third.Results["math"], r)
}

func TestMemoKeyIncludesModuleName(t *testing.T) {
	mods := parse(t, textSrc, textSrc)
	mods[1].Name = "copy"

	build, err := newWorkspace(2).Check(context.Background(), mods)
	require.NoError(t, err)
	require.False(t, build.Failed(), build.Diagnostics().Diagnostics())
	assert.NotEqual(t, build.Keys["text"], build.Keys["copy"])
	require.NotSame(t, build.Results["text"], build.Results["copy"])
	assert.Equal(t, "text", build.Results["text"].Module.Name)
	assert.Equal(t, "copy", build.Results["copy"].Module.Name)
}

func TestModulesWithoutSourceAreNotMemoised(t *testing.T) {
	mod := &ast.Module{Name: "inline", Decls: []ast.Decl{&ast.Def{Name: "one", Expr: &ast.IntLit{Value: 1}}}}
	w := newWorkspace(1)
	for range 2 {
		build, err := w.Check(context.Background(), []*ast.Module{mod})
		require.NoError(t, err)
		assert.Zero(t, build.Keys["inline"])
	}
	hits, misses := w.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(2), misses)
	assert.Zero(t, w.Len())
}

func TestFailuresStayInTheirModule(t *testing.T) {
	broken := `module: broken
uses: [nowhere]
decls:
  - def: oops
    value: missing
`
	build, err := newWorkspace(2).Check(context.Background(), parse(t, broken, mathSrc))
	require.NoError(t, err)
	assert.True(t, build.Failed())
	assert.False(t, build.Results["math"].Failed())

	var codes []ilerr.ErrCode
	for _, d := range build.Diagnostics().Diagnostics() {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []ilerr.ErrCode{ilerr.UnknownModule, ilerr.UndefinedVariable}, codes)
}

func TestCheckErrors(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		a := `module: a
uses: [b]
decls: []
`
		b := `module: b
uses: [a]
decls: []
`
		_, err := newWorkspace(1).Check(context.Background(), parse(t, a, b))
		var cycle *dag.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Len(t, cycle.Path, 3)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := newWorkspace(1).Check(context.Background(), parse(t, mathSrc, mathSrc))
		assert.ErrorContains(t, err, `module "math" is defined more than once`)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := newWorkspace(1)
		_, err := w.Check(ctx, parse(t, mathSrc))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, w.Len())
	})
}
