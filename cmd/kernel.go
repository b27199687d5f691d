package cmd

import (
	"fmt"
	"go/token"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aivi-lang/aivi/aivi"
	"github.com/aivi-lang/aivi/frontend"
	"github.com/aivi-lang/aivi/frontend/infer"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

func NewKernelCmd() *cobra.Command {
	var prelude bool
	c := &cobra.Command{
		Use:   "kernel FILE [IMPORT...]",
		Short: "Print the typed kernel of a module",
		Long: "Compile FILE, with the modules it uses given as further arguments, and print " +
			"every top-level binding of FILE with its type and elaborated kernel term.",
		RunE: func(c *cobra.Command, args []string) error {
			return runKernel(c, args, prelude)
		},
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
	}
	c.Flags().BoolVar(&prelude, "prelude", false, "also print the prelude dictionaries")
	return c
}

func runKernel(c *cobra.Command, args []string, prelude bool) error {
	fset := token.NewFileSet()
	mods, err := loadModules(fset, args)
	if err != nil {
		return err
	}
	build, err := aivi.New(workspaceConfig()).Check(c.Context(), mods)
	if err != nil {
		return err
	}
	out := c.OutOrStdout()
	writeDiagnostics(out, fset, build, useColor(out))

	r, ok := build.Results[mods[0].Name]
	if !ok {
		return errors.Errorf("module %s was not compiled", mods[0].Name)
	}
	if prelude {
		for _, b := range infer.PreludeDictionaries(&kernel.IDGen{}) {
			_, _ = fmt.Fprintf(out, "%s = %s\n", b.Name, kernel.Show(b.Value))
		}
		_, _ = fmt.Fprintln(out)
	}
	writeKernel(out, r.Kernel)
	if r.Failed() {
		return ErrCompilation
	}
	return nil
}

func writeKernel(w io.Writer, k *frontend.TypedKernel) {
	for _, group := range [][]*frontend.TypedBinding{k.Bindings, k.Dictionaries} {
		for _, b := range group {
			if b.State != frontend.Solved {
				_, _ = fmt.Fprintf(w, "%s : <%s>\n\n", b.Name, b.State)
				continue
			}
			_, _ = fmt.Fprintf(w, "%s : %s\n%s = %s\n\n", b.Name, types.Show(b.Scheme), b.Name, kernel.Show(b.Term))
		}
	}
}
