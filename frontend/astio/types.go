package astio

import (
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/aivi-lang/aivi/frontend/ast"
)

// typeExpr reads a type. Capitalised words are type names and other words
// are type variables. A list applies its head to the rest, and the
// mappings are {fn: [A, B, R]}, {record: {label: T}, open: bool} and
// {type: T, where: [{Class: T}]}.
func (d *decoder) typeExpr(n *yaml.Node) (ast.TypeExpr, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		name, err := d.name(n)
		if err != nil {
			return nil, err
		}
		if r, _ := utf8.DecodeRuneInString(name); unicode.IsLower(r) {
			return &ast.TypeVarRef{Range: d.rng(n), Name: name}, nil
		}
		return &ast.TypeName{Range: d.rng(n), Name: name}, nil
	case yaml.SequenceNode:
		ts, err := d.typeExprs(n)
		if err != nil {
			return nil, err
		}
		if len(ts) < 2 {
			return nil, d.errorf(n, "a type application needs a head and arguments")
		}
		return &ast.TypeApply{Range: d.rng(n), Head: ts[0], Args: ts[1:]}, nil
	}

	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	switch form {
	case "fn":
		if err := d.only(n, form, fields); err != nil {
			return nil, err
		}
		ts, err := d.typeExprs(head)
		if err != nil {
			return nil, err
		}
		if len(ts) < 2 {
			return nil, d.errorf(n, "a function type needs a parameter and a result")
		}
		out := ts[len(ts)-1]
		for i := len(ts) - 2; i >= 0; i-- {
			out = &ast.TypeArrow{Range: ast.RangeBetween(ts[i], out), From: ts[i], To: out}
		}
		return out, nil
	case "record":
		if err := d.only(n, form, fields, "open"); err != nil {
			return nil, err
		}
		rec := &ast.TypeRecord{Range: d.rng(n)}
		if open, ok := fields["open"]; ok {
			rec.Open = open.Value == "true"
		}
		es, err := d.entries(head)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			t, err := d.typeExpr(e.value)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, ast.TypeField{
				Range: ast.Range{PosStart: d.pos(e.key), PosEnd: d.end(e.value)},
				Label: e.key.Value,
				Type:  t,
			})
		}
		return rec, nil
	case "type":
		if err := d.only(n, form, fields, "where"); err != nil {
			return nil, err
		}
		t, err := d.typeExpr(head)
		if err != nil {
			return nil, err
		}
		where, ok := fields["where"]
		if !ok {
			return t, nil
		}
		preds, err := d.preds(where)
		if err != nil {
			return nil, err
		}
		return &ast.TypeQualified{Range: d.rng(n), Preds: preds, Type: t}, nil
	}
	return nil, d.errorf(n, "unknown type form %q", form)
}

func (d *decoder) typeExprs(n *yaml.Node) ([]ast.TypeExpr, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.TypeExpr, 0, len(items))
	for _, item := range items {
		t, err := d.typeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// preds reads a list of {Class: T} constraints.
func (d *decoder) preds(n *yaml.Node) ([]ast.PredExpr, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.PredExpr, 0, len(items))
	for _, item := range items {
		es, err := d.entries(item)
		if err != nil {
			return nil, err
		}
		if len(es) != 1 {
			return nil, d.errorf(item, "a constraint is written {Class: T}")
		}
		t, err := d.typeExpr(es[0].value)
		if err != nil {
			return nil, err
		}
		out = append(out, ast.PredExpr{Range: d.rng(item), Class: es[0].key.Value, Type: t})
	}
	return out, nil
}
