package astio

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/aivi-lang/aivi/frontend/ast"
)

func (d *decoder) decl(n *yaml.Node) (ast.Decl, error) {
	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	switch form {
	case "def":
		return d.def(n, head, fields)
	case "type":
		return d.typeDecl(n, head, fields)
	case "domain":
		return d.domain(n, head, fields)
	case "class":
		return d.class(n, head, fields)
	case "instance":
		return d.instance(n, head, fields)
	}
	return nil, d.errorf(n, "unknown declaration %q", form)
}

func (d *decoder) defNode(n *yaml.Node) (*ast.Def, error) {
	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	if form != "def" {
		return nil, d.errorf(n, "expected a def, found %q", form)
	}
	return d.def(n, head, fields)
}

// def reads `{def: name, sig: T, value: E}` or, for multi-clause
// functions, `{def: name, clauses: [{params: [P], guard: E, body: E}]}`.
func (d *decoder) def(n, head *yaml.Node, fields map[string]*yaml.Node) (*ast.Def, error) {
	if err := d.only(n, "def", fields, "sig", "value", "clauses"); err != nil {
		return nil, err
	}
	name, err := d.name(head)
	if err != nil {
		return nil, err
	}
	def := &ast.Def{Range: d.rng(n), Name: name}
	if sig, ok := fields["sig"]; ok {
		if def.Sig, err = d.typeExpr(sig); err != nil {
			return nil, err
		}
	}
	value, hasValue := fields["value"]
	clauses, hasClauses := fields["clauses"]
	switch {
	case hasValue && hasClauses:
		return nil, d.errorf(n, "def %s has both a value and clauses", name)
	case hasValue:
		def.Expr, err = d.expr(value)
		return def, err
	case hasClauses:
		items, err := d.seq(clauses)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			c, err := d.clause(item)
			if err != nil {
				return nil, err
			}
			def.Clauses = append(def.Clauses, c)
		}
		return def, nil
	}
	return nil, d.errorf(n, "def %s needs a value or clauses", name)
}

func (d *decoder) clause(n *yaml.Node) (ast.Clause, error) {
	es, err := d.entries(n, "params", "guard", "body")
	if err != nil {
		return ast.Clause{}, err
	}
	c := ast.Clause{Range: d.rng(n)}
	for _, e := range es {
		switch e.key.Value {
		case "params":
			if c.Params, err = d.patterns(e.value); err != nil {
				return c, err
			}
		case "guard":
			if c.Guard, err = d.expr(e.value); err != nil {
				return c, err
			}
		case "body":
			if c.Body, err = d.expr(e.value); err != nil {
				return c, err
			}
		}
	}
	if c.Body == nil {
		return c, d.errorf(n, "clause needs a body")
	}
	return c, nil
}

// typeDecl reads `{type: Name, params: [a], ctors: [None, {Some: [a]}]}`
// or `{type: Name, alias: T}`.
func (d *decoder) typeDecl(n, head *yaml.Node, fields map[string]*yaml.Node) (*ast.TypeDecl, error) {
	if err := d.only(n, "type", fields, "params", "ctors", "alias"); err != nil {
		return nil, err
	}
	name, err := d.name(head)
	if err != nil {
		return nil, err
	}
	td := &ast.TypeDecl{Range: d.rng(n), Name: name}
	if params, ok := fields["params"]; ok {
		if td.Params, err = d.names(params); err != nil {
			return nil, err
		}
	}
	if alias, ok := fields["alias"]; ok {
		if _, both := fields["ctors"]; both {
			return nil, d.errorf(n, "type %s has both an alias and constructors", name)
		}
		td.Alias, err = d.typeExpr(alias)
		return td, err
	}
	ctors, ok := fields["ctors"]
	if !ok {
		return nil, d.errorf(n, "type %s needs ctors or an alias", name)
	}
	items, err := d.seq(ctors)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		ctor, err := d.ctor(item)
		if err != nil {
			return nil, err
		}
		td.Ctors = append(td.Ctors, ctor)
	}
	return td, nil
}

func (d *decoder) ctor(n *yaml.Node) (ast.CtorDecl, error) {
	if n.Kind == yaml.ScalarNode {
		name, err := d.name(n)
		return ast.CtorDecl{Range: d.rng(n), Name: name}, err
	}
	es, err := d.entries(n)
	if err != nil {
		return ast.CtorDecl{}, err
	}
	if len(es) != 1 {
		return ast.CtorDecl{}, d.errorf(n, "a constructor is a name or {Name: [args]}")
	}
	ctor := ast.CtorDecl{Range: d.rng(n), Name: es[0].key.Value}
	ctor.Args, err = d.typeExprs(es[0].value)
	return ctor, err
}

// domain reads
//
//	{domain: Calendar, over: Date, delta: {type: Delta, ctors: [...]},
//	 ops: [{def: "+", sig: ..., value: ...}],
//	 literals: [{literal: 1d, ctor: Day, args: [1]}]}
func (d *decoder) domain(n, head *yaml.Node, fields map[string]*yaml.Node) (*ast.DomainDecl, error) {
	if err := d.only(n, "domain", fields, "over", "delta", "ops", "literals"); err != nil {
		return nil, err
	}
	name, err := d.name(head)
	if err != nil {
		return nil, err
	}
	dd := &ast.DomainDecl{Range: d.rng(n), Name: name}
	over, err := d.require(n, "domain", fields, "over")
	if err != nil {
		return nil, err
	}
	if dd.Carrier, err = d.typeExpr(over); err != nil {
		return nil, err
	}
	if delta, ok := fields["delta"]; ok {
		decl, err := d.decl(delta)
		if err != nil {
			return nil, err
		}
		td, ok := decl.(*ast.TypeDecl)
		if !ok {
			return nil, d.errorf(delta, "the delta of domain %s must be a type", name)
		}
		dd.Delta = td
	}
	if ops, ok := fields["ops"]; ok {
		items, err := d.seq(ops)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			op, err := d.defNode(item)
			if err != nil {
				return nil, err
			}
			dd.Ops = append(dd.Ops, op)
		}
	}
	if lits, ok := fields["literals"]; ok {
		items, err := d.seq(lits)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			lit, err := d.literal(item)
			if err != nil {
				return nil, err
			}
			dd.Literals = append(dd.Literals, lit)
		}
	}
	return dd, nil
}

func (d *decoder) literal(n *yaml.Node) (ast.DeltaLiteralDecl, error) {
	es, err := d.entries(n, "literal", "ctor", "args")
	if err != nil {
		return ast.DeltaLiteralDecl{}, err
	}
	lit := ast.DeltaLiteralDecl{Range: d.rng(n)}
	for _, e := range es {
		switch e.key.Value {
		case "literal":
			lit.Text, err = d.name(e.value)
		case "ctor":
			lit.Ctor, err = d.name(e.value)
		case "args":
			lit.Args, err = d.exprs(e.value)
		}
		if err != nil {
			return lit, err
		}
	}
	if lit.Text == "" || lit.Ctor == "" {
		return lit, d.errorf(n, "a delta literal needs literal and ctor")
	}
	return lit, nil
}

// class reads `{class: Show, param: a, arity: 0, methods: {show: T}}`.
func (d *decoder) class(n, head *yaml.Node, fields map[string]*yaml.Node) (*ast.ClassDecl, error) {
	if err := d.only(n, "class", fields, "param", "arity", "methods"); err != nil {
		return nil, err
	}
	name, err := d.name(head)
	if err != nil {
		return nil, err
	}
	cd := &ast.ClassDecl{Range: d.rng(n), Name: name}
	param, err := d.require(n, "class", fields, "param")
	if err != nil {
		return nil, err
	}
	if cd.Param, err = d.name(param); err != nil {
		return nil, err
	}
	if arity, ok := fields["arity"]; ok {
		if cd.ParamArity, err = strconv.Atoi(arity.Value); err != nil || cd.ParamArity < 0 {
			return nil, d.errorf(arity, "arity must be a natural number")
		}
	}
	if methods, ok := fields["methods"]; ok {
		es, err := d.entries(methods)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			t, err := d.typeExpr(e.value)
			if err != nil {
				return nil, err
			}
			cd.Methods = append(cd.Methods, ast.MethodSig{
				Range: ast.Range{PosStart: d.pos(e.key), PosEnd: d.end(e.value)},
				Name:  e.key.Value,
				Type:  t,
			})
		}
	}
	return cd, nil
}

// instance reads `{instance: Show, head: [List, a], context: [{Show: a}],
// methods: [{def: show, value: ...}]}`.
func (d *decoder) instance(n, head *yaml.Node, fields map[string]*yaml.Node) (*ast.InstanceDecl, error) {
	if err := d.only(n, "instance", fields, "head", "context", "methods"); err != nil {
		return nil, err
	}
	class, err := d.name(head)
	if err != nil {
		return nil, err
	}
	id := &ast.InstanceDecl{Range: d.rng(n), Class: class}
	h, err := d.require(n, "instance", fields, "head")
	if err != nil {
		return nil, err
	}
	if id.Head, err = d.typeExpr(h); err != nil {
		return nil, err
	}
	if ctx, ok := fields["context"]; ok {
		if id.Context, err = d.preds(ctx); err != nil {
			return nil, err
		}
	}
	if methods, ok := fields["methods"]; ok {
		items, err := d.seq(methods)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			m, err := d.defNode(item)
			if err != nil {
				return nil, err
			}
			id.Methods = append(id.Methods, m)
		}
	}
	return id, nil
}
