package aivi_test

import (
	"context"
	"go/token"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/aivi"
)

func TestLoadDir(t *testing.T) {
	fsys := fstest.MapFS{
		"src/math.yaml":        {Data: []byte(mathSrc)},
		"src/text.yml":         {Data: []byte(textSrc)},
		"src/app.yaml":         {Data: []byte(appSrc)},
		"src/README.md":        {Data: []byte("not a module")},
		"src/nested/skip.yaml": {Data: []byte("module: [")},
	}
	fset := token.NewFileSet()
	mods, err := aivi.LoadDir(fsys, "src", fset)
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.Equal(t, "app", mods[0].Name)

	build, err := newWorkspace(2).Check(context.Background(), mods)
	require.NoError(t, err)
	assert.Equal(t, "module math\n  double : forall a. Num a => a -> a\n"+
		"module text\n  greeting : Text\n"+
		"module app\n  four : Int\n  hi : Text\n", build.DisplayTypes())

	_, err = aivi.LoadDir(fsys, "src/nested/none", fset)
	assert.ErrorContains(t, err, "reading directory")

	_, err = aivi.LoadDir(fstest.MapFS{"x.txt": {}}, ".", fset)
	assert.ErrorContains(t, err, "no modules found")
}

func TestCheckAndShowTypes(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "module math\n  double : forall a. Num a => a -> a\n",
		aivi.CheckAndShowTypes(ctx, "math.yaml", []byte(mathSrc)))

	out := aivi.CheckAndShowTypes(ctx, "oops.yaml", []byte("module: oops\ndecls:\n  - def: oops\n    value: missing\n"))
	assert.Contains(t, out, "the program has the following errors:")
	assert.Contains(t, out, "oops.yaml:4:12: error[E015 UndefinedVariable]")

	out = aivi.CheckAndShowTypes(ctx, "bad.yaml", []byte("module: ["))
	assert.Contains(t, out, "the compiler encountered a failure")
}
