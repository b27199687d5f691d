package cmd_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/cmd"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "aivi", PersistentPreRunE: cmd.Configure, SilenceUsage: true}
	cmd.RegisterFlags(root.PersistentFlags())
	root.AddCommand(cmd.NewCheckCmd(), cmd.NewKernelCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--color=never"))
	err := root.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	math := write(t, dir, "math.yaml", `module: math
decls:
  - def: double
    value: {lambda: [x], body: {"+": [x, x]}}
`)
	app := write(t, dir, "app.yaml", `module: app
uses: [math]
decls:
  - def: four
    value: {call: double, args: [2]}
`)

	out, err := run(t, "check", app, math)
	require.NoError(t, err)
	assert.Contains(t, out, "forall a. Num a => a -> a")
	assert.Contains(t, out, "four")
	assert.Contains(t, out, "solved")
	assert.NotContains(t, out, "error")

	broken := write(t, dir, "broken.yaml", `module: broken
decls:
  - def: oops
    value: missing
`)
	out, err = run(t, "check", "--quiet", broken)
	assert.ErrorIs(t, err, cmd.ErrCompilation)
	assert.Contains(t, out, "broken.yaml:4:12: error[E015 UndefinedVariable]: variable 'missing' is not defined")
	assert.NotContains(t, out, "oops")

	_, err = run(t, "check", filepath.Join(dir, "absent.yaml"))
	assert.ErrorContains(t, err, "reading module")
}

func TestKernel(t *testing.T) {
	dir := t.TempDir()
	mod := write(t, dir, "shapes.yaml", `module: shapes
decls:
  - def: area
    value: {lambda: [s], body: {"*": [{get: width, from: s}, {get: height, from: s}]}}
`)
	out, err := run(t, "kernel", mod)
	require.NoError(t, err)
	assert.Contains(t, out, "area : forall")
	assert.Contains(t, out, "area = ")
	assert.NotContains(t, out, "Num$Int =")

	out, err = run(t, "kernel", "--prelude", mod)
	require.NoError(t, err)
	assert.Contains(t, out, "Num$Int = {")
}

func TestConfigFlags(t *testing.T) {
	dir := t.TempDir()
	mod := write(t, dir, "one.yaml", "module: one\ndecls:\n  - def: one\n    value: 1\n")

	_, err := run(t, "check", "--parallelism=0", mod)
	assert.ErrorContains(t, err, "parallelism must be at least 1")

	cfg := write(t, dir, "aivi.yaml", "max_resolution_rounds: 0\n")
	_, err = run(t, "check", "--config", cfg, mod)
	assert.ErrorContains(t, err, "max_resolution_rounds must be at least 1")

	_, err = run(t, "check", "--max-resolution-rounds=2", "--config", cfg, mod)
	assert.NoError(t, err)
}
