// Package astio reads surface trees from their YAML interchange form.
//
// A module is a mapping with the keys module, uses and decls. Scalars
// stand for the leaves of the tree: plain words are identifiers (or
// pattern variables, or type names), quoted strings are Text, numbers are
// numbers and words such as 1d or 12m are delta literals. Every other
// node is a mapping whose first key names its form, for instance
//
//	- def: tomorrow
//	  value: {lambda: [date], body: {"+": [date, 1d]}}
package astio

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/aivi-lang/aivi/frontend/ast"
)

var (
	deltaPattern    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[A-Za-z_][A-Za-z0-9_]*$`)
	operatorPattern = regexp.MustCompile(`^[-+*/<>=!&|^%.:@$?~]+$`)
)

// ReadFile decodes the module stored at path.
func ReadFile(fset *token.FileSet, path string) (*ast.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading module %s", path)
	}
	return Decode(fset, path, src)
}

// Decode decodes a module. Node positions are registered in fset under
// filename. A module without a name is named after its file.
func Decode(fset *token.FileSet, filename string, src []byte) (*ast.Module, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filename)
	}
	file := fset.AddFile(filename, -1, len(src))
	file.SetLinesForContent(src)
	d := &decoder{file: file}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, errors.Errorf("%s: empty module", filename)
		}
		root = root.Content[0]
	}
	mod, err := d.module(root)
	if err != nil {
		return nil, err
	}
	if mod.Name == "" {
		mod.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	mod.Source = src
	return mod, nil
}

type decoder struct {
	file *token.File
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func (d *decoder) pos(n *yaml.Node) token.Pos {
	if n == nil || n.Line < 1 || n.Line > d.file.LineCount() {
		return token.NoPos
	}
	p := int(d.file.LineStart(n.Line)) + n.Column - 1
	if limit := d.file.Base() + d.file.Size(); p > limit {
		p = limit
	}
	return token.Pos(p)
}

func (d *decoder) end(n *yaml.Node) token.Pos {
	n = deref(n)
	if n == nil {
		return token.NoPos
	}
	if len(n.Content) > 0 {
		return d.end(n.Content[len(n.Content)-1])
	}
	start := d.pos(n)
	if !start.IsValid() {
		return start
	}
	p := int(start) + len(n.Value)
	if limit := d.file.Base() + d.file.Size(); p > limit {
		p = limit
	}
	return token.Pos(p)
}

func (d *decoder) rng(n *yaml.Node) ast.Range {
	return ast.Range{PosStart: d.pos(n), PosEnd: d.end(n)}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return errors.Errorf("%s: %s", d.file.Position(d.pos(n)), fmt.Sprintf(format, args...))
}

// entry is one key/value pair of a mapping.
type entry struct {
	key, value *yaml.Node
}

func (d *decoder) entries(n *yaml.Node, allowed ...string) ([]entry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make([]entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := deref(n.Content[i]), deref(n.Content[i+1])
		if len(allowed) > 0 && !slices.Contains(allowed, key.Value) {
			return nil, d.errorf(key, "unexpected key %q", key.Value)
		}
		out = append(out, entry{key, value})
	}
	return out, nil
}

// form splits a mapping into its form keyword and its named fields.
func (d *decoder) form(n *yaml.Node) (string, *yaml.Node, map[string]*yaml.Node, error) {
	es, err := d.entries(n)
	if err != nil {
		return "", nil, nil, err
	}
	if len(es) == 0 {
		return "", nil, nil, d.errorf(n, "empty mapping")
	}
	fields := make(map[string]*yaml.Node, len(es)-1)
	for _, e := range es[1:] {
		if _, dup := fields[e.key.Value]; dup {
			return "", nil, nil, d.errorf(e.key, "duplicate key %q", e.key.Value)
		}
		fields[e.key.Value] = e.value
	}
	return es[0].key.Value, es[0].value, fields, nil
}

func (d *decoder) only(n *yaml.Node, form string, fields map[string]*yaml.Node, allowed ...string) error {
	for k := range fields {
		if !slices.Contains(allowed, k) {
			return d.errorf(n, "unexpected key %q in %s", k, form)
		}
	}
	return nil
}

func (d *decoder) require(n *yaml.Node, form string, fields map[string]*yaml.Node, key string) (*yaml.Node, error) {
	v, ok := fields[key]
	if !ok {
		return nil, d.errorf(n, "%s needs %q", form, key)
	}
	return v, nil
}

func (d *decoder) name(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", d.errorf(n, "expected a name")
	}
	return n.Value, nil
}

func (d *decoder) names(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.ScalarNode {
		s, err := d.name(n)
		return []string{s}, err
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list of names")
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := d.name(deref(item))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) seq(n *yaml.Node) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list")
	}
	out := make([]*yaml.Node, len(n.Content))
	for i, item := range n.Content {
		out[i] = deref(item)
	}
	return out, nil
}

func quoted(n *yaml.Node) bool {
	return n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0
}

func (d *decoder) module(n *yaml.Node) (*ast.Module, error) {
	es, err := d.entries(n, "module", "uses", "decls")
	if err != nil {
		return nil, err
	}
	mod := &ast.Module{Range: d.rng(n)}
	for _, e := range es {
		switch e.key.Value {
		case "module":
			if mod.Name, err = d.name(e.value); err != nil {
				return nil, err
			}
		case "uses":
			items, err := d.seq(e.value)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				name, err := d.name(item)
				if err != nil {
					return nil, err
				}
				mod.Uses = append(mod.Uses, ast.Use{Range: d.rng(item), Module: name})
			}
		case "decls":
			items, err := d.seq(e.value)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				decl, err := d.decl(item)
				if err != nil {
					return nil, err
				}
				mod.Decls = append(mod.Decls, decl)
			}
		}
	}
	return mod, nil
}
