package cmd

import (
	"fmt"
	"go/token"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aivi-lang/aivi/aivi"
	"github.com/aivi-lang/aivi/frontend"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/types"
)

func NewCheckCmd() *cobra.Command {
	var quiet bool
	c := &cobra.Command{
		Use:   "check FILE...",
		Short: "Type check AIVI modules",
		Long:  "Type check the given modules in import order and print their diagnostics and the type of every top-level binding.",
		RunE: func(c *cobra.Command, args []string) error {
			return runCheck(c, args, quiet)
		},
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
	}
	c.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print diagnostics")
	return c
}

// ErrCompilation is returned when a module has diagnostics.
var ErrCompilation = errors.New("compilation failed")

func runCheck(c *cobra.Command, args []string, quiet bool) error {
	fset := token.NewFileSet()
	mods, err := loadModules(fset, args)
	if err != nil {
		return err
	}
	w := aivi.New(workspaceConfig())
	build, err := w.Check(c.Context(), mods)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	color := useColor(out)
	writeDiagnostics(out, fset, build, color)
	if !quiet {
		writeBindings(out, build, color)
	}
	if build.Failed() {
		return ErrCompilation
	}
	return nil
}

// useColor decides colouring from the color setting. In auto mode the
// output must be a terminal and NO_COLOR unset.
func useColor(w io.Writer) bool {
	switch settings.Color {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func severityColor(s ilerr.Severity) text.Colors {
	switch s {
	case ilerr.SeverityError:
		return text.Colors{text.FgRed, text.Bold}
	case ilerr.SeverityWarning:
		return text.Colors{text.FgYellow}
	}
	return text.Colors{text.FgCyan}
}

func writeDiagnostics(w io.Writer, fset *token.FileSet, build *aivi.Build, color bool) {
	for _, d := range build.Diagnostics().Diagnostics() {
		severity := d.Severity.String()
		if color {
			severity = severityColor(d.Severity).Sprint(severity)
		}
		_, _ = fmt.Fprintf(w, "%s: %s[E%03d %v]: %s\n", d.PrimarySpan.Format(fset), severity, int(d.Code), d.Code, d.Message)
		for _, span := range d.SecondarySpans {
			_, _ = fmt.Fprintf(w, "    see %s\n", span.Format(fset))
		}
	}
}

func stateCell(s frontend.BindingState, color bool) string {
	if !color {
		return s.String()
	}
	if s == frontend.Solved {
		return text.FgGreen.Sprint(s.String())
	}
	return text.FgRed.Sprint(s.String())
}

func writeBindings(w io.Writer, build *aivi.Build, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Module", "Binding", "Type", "State"})
	rows := 0
	for _, level := range build.Levels {
		for _, name := range level {
			r := build.Results[name]
			for _, group := range [][]*frontend.TypedBinding{r.Kernel.Bindings, r.Kernel.Dictionaries} {
				for _, b := range group {
					t.AppendRow(table.Row{name, b.Name, types.Show(b.Scheme), stateCell(b.State, color)})
					rows++
				}
			}
		}
	}
	if rows == 0 {
		_, _ = fmt.Fprintln(w, "(no bindings)")
		return
	}
	t.Render()
}
