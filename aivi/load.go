package aivi

import (
	"context"
	"fmt"
	"go/token"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/astio"
	"github.com/aivi-lang/aivi/frontend/types"
)

// LoadDir decodes every .yaml or .yml module directly under dir in fsys.
// Subdirectories are ignored and files are read in name order.
func LoadDir(fsys fs.FS, dir string, fset *token.FileSet) ([]*ast.Module, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading directory %s", dir)
	}
	var mods []*ast.Module
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p := path.Join(dir, e.Name())
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading module %s", p)
		}
		mod, err := astio.Decode(fset, p, src)
		if err != nil {
			return nil, err
		}
		workspaceLogger.Debug("loaded module", "path", p, "module", mod.Name)
		mods = append(mods, mod)
	}
	if len(mods) == 0 {
		return nil, errors.Errorf("no modules found in %s", dir)
	}
	return mods, nil
}

// DisplayTypes lists the signature of every top-level binding of the build,
// one module after the other in check order.
func (b *Build) DisplayTypes() string {
	var sb strings.Builder
	for _, level := range b.Levels {
		for _, name := range level {
			r := b.Results[name]
			names := make([]string, 0, len(r.Signatures))
			for n := range r.Signatures {
				names = append(names, n)
			}
			slices.Sort(names)
			_, _ = fmt.Fprintf(&sb, "module %s\n", name)
			for _, n := range names {
				_, _ = fmt.Fprintf(&sb, "  %s : %s\n", n, types.Show(r.Signatures[n]))
			}
		}
	}
	return sb.String()
}

// CheckAndShowTypes checks a single module given as YAML source and renders
// either its diagnostics or the types of its bindings.
func CheckAndShowTypes(ctx context.Context, filename string, src []byte) string {
	fset := token.NewFileSet()
	mod, err := astio.Decode(fset, filename, src)
	if err != nil {
		return fmt.Sprintf("the compiler encountered a failure:\n\n%s", err)
	}
	build, err := New(DefaultConfig()).Check(ctx, []*ast.Module{mod})
	if err != nil {
		return fmt.Sprintf("the compiler encountered a failure:\n\n%s", err)
	}
	if build.Failed() {
		var sb strings.Builder
		sb.WriteString("the program has the following errors:\n")
		for _, d := range build.Diagnostics().Diagnostics() {
			_, _ = fmt.Fprintf(&sb, "%s: %s[E%03d %v]: %s\n", d.PrimarySpan.Format(fset), d.Severity, int(d.Code), d.Code, d.Message)
		}
		return sb.String()
	}
	return build.DisplayTypes()
}
