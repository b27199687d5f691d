package astio

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/aivi-lang/aivi/frontend/ast"
)

var blockKinds = map[string]ast.BlockKind{
	"block":    ast.PlainBlock,
	"effect":   ast.EffectBlock,
	"do":       ast.DoBlock,
	"generate": ast.GenerateBlock,
}

var instrKinds = map[string]ast.InstrKind{
	"auto":      ast.InstrAuto,
	"replace":   ast.InstrReplace,
	"transform": ast.InstrTransform,
	"remove":    ast.InstrRemove,
	"force":     ast.InstrForce,
}

func (d *decoder) expr(n *yaml.Node) (ast.Expr, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		items, err := d.exprs(n)
		if err != nil {
			return nil, err
		}
		return &ast.ListLit{Range: d.rng(n), Items: items}, nil
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expected an expression")
	}

	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	if operatorPattern.MatchString(form) {
		return d.binary(n, form, head, fields)
	}
	if kind, ok := blockKinds[form]; ok {
		return d.block(n, kind, head, fields)
	}
	switch form {
	case "lambda":
		return d.lambda(n, head, fields)
	case "call":
		return d.call(n, head, fields)
	case "get":
		if err := d.only(n, form, fields, "from"); err != nil {
			return nil, err
		}
		label, err := d.name(head)
		if err != nil {
			return nil, err
		}
		from, err := d.require(n, form, fields, "from")
		if err != nil {
			return nil, err
		}
		base, err := d.expr(from)
		if err != nil {
			return nil, err
		}
		return &ast.FieldAccess{Range: d.rng(n), Base: base, Field: label}, nil
	case "record":
		if err := d.only(n, form, fields); err != nil {
			return nil, err
		}
		return d.record(n, head)
	case "match":
		return d.match(n, head, fields)
	case "if":
		return d.ifExpr(n, head, fields)
	case "patch":
		return d.patch(n, head, fields)
	case "or":
		return d.resultOr(n, head, fields)
	case "annot":
		if err := d.only(n, form, fields, "type"); err != nil {
			return nil, err
		}
		e, err := d.expr(head)
		if err != nil {
			return nil, err
		}
		tn, err := d.require(n, form, fields, "type")
		if err != nil {
			return nil, err
		}
		t, err := d.typeExpr(tn)
		if err != nil {
			return nil, err
		}
		return &ast.Annot{Range: d.rng(n), Expr: e, Type: t}, nil
	case "delta":
		if err := d.only(n, form, fields, "qualifier"); err != nil {
			return nil, err
		}
		text, err := d.name(head)
		if err != nil {
			return nil, err
		}
		lit := &ast.DeltaLit{Range: d.rng(n), Text: text}
		if q, ok := fields["qualifier"]; ok {
			if lit.Qualifier, err = d.name(q); err != nil {
				return nil, err
			}
		}
		return lit, nil
	case "text":
		if err := d.only(n, form, fields); err != nil {
			return nil, err
		}
		return &ast.TextLit{Range: d.rng(n), Value: head.Value}, nil
	}
	return nil, d.errorf(n, "unknown expression form %q", form)
}

func (d *decoder) scalar(n *yaml.Node) (ast.Expr, error) {
	r := d.rng(n)
	if quoted(n) {
		return &ast.TextLit{Range: r, Value: n.Value}, nil
	}
	switch n.ShortTag() {
	case "!!int":
		v, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid integer %q", n.Value)
		}
		return &ast.IntLit{Range: r, Value: v}, nil
	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid number %q", n.Value)
		}
		return &ast.FloatLit{Range: r, Value: v}, nil
	case "!!bool":
		if n.Value == "true" {
			return &ast.Ident{Range: r, Name: "True"}, nil
		}
		return &ast.Ident{Range: r, Name: "False"}, nil
	case "!!null":
		return nil, d.errorf(n, "expected an expression")
	}
	if deltaPattern.MatchString(n.Value) {
		return &ast.DeltaLit{Range: r, Text: n.Value}, nil
	}
	return &ast.Ident{Range: r, Name: n.Value}, nil
}

func (d *decoder) exprs(n *yaml.Node) ([]ast.Expr, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Expr, 0, len(items))
	for _, item := range items {
		e, err := d.expr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// binary reads {op: [left, right]}.
func (d *decoder) binary(n *yaml.Node, op string, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, op, fields); err != nil {
		return nil, err
	}
	args, err := d.exprs(head)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, d.errorf(n, "operator %s takes two operands", op)
	}
	return &ast.Binary{Range: d.rng(n), Op: op, Left: args[0], Right: args[1]}, nil
}

// lambda reads {lambda: [params], body: E}.
func (d *decoder) lambda(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "lambda", fields, "body"); err != nil {
		return nil, err
	}
	var params []ast.Pattern
	var err error
	if head.Kind == yaml.SequenceNode {
		params, err = d.patterns(head)
	} else {
		var p ast.Pattern
		p, err = d.pattern(head)
		params = []ast.Pattern{p}
	}
	if err != nil {
		return nil, err
	}
	body, err := d.require(n, "lambda", fields, "body")
	if err != nil {
		return nil, err
	}
	b, err := d.expr(body)
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Range: d.rng(n), Params: params, Body: b}, nil
}

// call reads {call: F, args: [E]}.
func (d *decoder) call(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "call", fields, "args"); err != nil {
		return nil, err
	}
	fn, err := d.expr(head)
	if err != nil {
		return nil, err
	}
	c := &ast.Call{Range: d.rng(n), Func: fn}
	if args, ok := fields["args"]; ok {
		if c.Args, err = d.exprs(args); err != nil {
			return nil, err
		}
	}
	if len(c.Args) == 0 {
		return nil, d.errorf(n, "a call needs arguments")
	}
	return c, nil
}

func (d *decoder) record(n, body *yaml.Node) (ast.Expr, error) {
	es, err := d.entries(body)
	if err != nil {
		return nil, err
	}
	rec := &ast.Record{Range: d.rng(n)}
	for _, e := range es {
		v, err := d.expr(e.value)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, ast.RecordField{
			Range: ast.Range{PosStart: d.pos(e.key), PosEnd: d.end(e.value)},
			Label: e.key.Value,
			Value: v,
		})
	}
	return rec, nil
}

// match reads {match: E, arms: [...]}. A null scrutinee makes the match a
// function of one argument.
func (d *decoder) match(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "match", fields, "arms"); err != nil {
		return nil, err
	}
	m := &ast.Match{Range: d.rng(n)}
	if head.ShortTag() != "!!null" {
		var err error
		if m.Scrutinee, err = d.expr(head); err != nil {
			return nil, err
		}
	}
	arms, err := d.require(n, "match", fields, "arms")
	if err != nil {
		return nil, err
	}
	m.Arms, err = d.arms(arms)
	return m, err
}

func (d *decoder) arms(n *yaml.Node) ([]ast.MatchArm, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.MatchArm, 0, len(items))
	for _, item := range items {
		es, err := d.entries(item, "pattern", "guard", "body")
		if err != nil {
			return nil, err
		}
		arm := ast.MatchArm{Range: d.rng(item)}
		for _, e := range es {
			switch e.key.Value {
			case "pattern":
				arm.Pattern, err = d.pattern(e.value)
			case "guard":
				arm.Guard, err = d.expr(e.value)
			case "body":
				arm.Body, err = d.expr(e.value)
			}
			if err != nil {
				return nil, err
			}
		}
		if arm.Pattern == nil || arm.Body == nil {
			return nil, d.errorf(item, "an arm needs a pattern and a body")
		}
		out = append(out, arm)
	}
	return out, nil
}

func (d *decoder) ifExpr(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "if", fields, "then", "else"); err != nil {
		return nil, err
	}
	cond, err := d.expr(head)
	if err != nil {
		return nil, err
	}
	out := &ast.If{Range: d.rng(n), Cond: cond}
	thenN, err := d.require(n, "if", fields, "then")
	if err != nil {
		return nil, err
	}
	elseN, err := d.require(n, "if", fields, "else")
	if err != nil {
		return nil, err
	}
	if out.Then, err = d.expr(thenN); err != nil {
		return nil, err
	}
	if out.Else, err = d.expr(elseN); err != nil {
		return nil, err
	}
	return out, nil
}

// resultOr reads {or: E, fallback: E} or {or: E, arms: [...]}.
func (d *decoder) resultOr(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "or", fields, "fallback", "arms"); err != nil {
		return nil, err
	}
	base, err := d.expr(head)
	if err != nil {
		return nil, err
	}
	out := &ast.ResultOr{Range: d.rng(n), Base: base}
	fb, hasFallback := fields["fallback"]
	arms, hasArms := fields["arms"]
	if hasFallback == hasArms {
		return nil, d.errorf(n, "or needs either a fallback or arms")
	}
	if hasFallback {
		out.Fallback, err = d.expr(fb)
	} else {
		out.Arms, err = d.arms(arms)
	}
	return out, err
}

// patch reads {patch: E, with: [{path: P, instr: kind, value: E}]}.
func (d *decoder) patch(n, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, "patch", fields, "with"); err != nil {
		return nil, err
	}
	target, err := d.expr(head)
	if err != nil {
		return nil, err
	}
	p := &ast.Patch{Range: d.rng(n), Target: target}
	with, err := d.require(n, "patch", fields, "with")
	if err != nil {
		return nil, err
	}
	items, err := d.seq(with)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		f, err := d.patchField(item)
		if err != nil {
			return nil, err
		}
		p.Fields = append(p.Fields, f)
	}
	return p, nil
}

func (d *decoder) patchField(n *yaml.Node) (ast.PatchField, error) {
	es, err := d.entries(n, "path", "instr", "value")
	if err != nil {
		return ast.PatchField{}, err
	}
	f := ast.PatchField{Range: d.rng(n)}
	for _, e := range es {
		switch e.key.Value {
		case "path":
			f.Path, err = d.path(e.value)
		case "instr":
			kind, ok := instrKinds[e.value.Value]
			if !ok {
				return f, d.errorf(e.value, "unknown patch instruction %q", e.value.Value)
			}
			f.Instr = kind
		case "value":
			f.Value, err = d.expr(e.value)
		}
		if err != nil {
			return f, err
		}
	}
	if f.Value == nil && f.Instr != ast.InstrRemove {
		return f, d.errorf(n, "a patch field needs a value")
	}
	return f, nil
}

// path reads a dotted string such as items[*].price or a list whose
// elements are segment strings or {index: E} selectors.
func (d *decoder) path(n *yaml.Node) ([]ast.PathSeg, error) {
	if n.Kind == yaml.ScalarNode {
		return d.pathString(n)
	}
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	var out []ast.PathSeg
	for _, item := range items {
		if item.Kind == yaml.ScalarNode {
			segs, err := d.pathString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, segs...)
			continue
		}
		es, err := d.entries(item, "index")
		if err != nil {
			return nil, err
		}
		if len(es) != 1 {
			return nil, d.errorf(item, "a selector is written {index: E}")
		}
		e, err := d.expr(es[0].value)
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.IndexSeg{Range: d.rng(item), Expr: e})
	}
	return out, nil
}

func (d *decoder) pathString(n *yaml.Node) ([]ast.PathSeg, error) {
	r := d.rng(n)
	var out []ast.PathSeg
	for _, part := range strings.Split(n.Value, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			if first, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(first) {
				out = append(out, &ast.PrismSeg{Range: r, Ctor: name})
			} else {
				out = append(out, &ast.FieldSeg{Range: r, Name: name})
			}
		}
		for rest != "" {
			sel, after, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, d.errorf(n, "unclosed selector in path %q", n.Value)
			}
			if seg := d.selector(r, sel); seg != nil {
				out = append(out, seg)
			} else {
				return nil, d.errorf(n, "selector [%s] needs the {index: E} form", sel)
			}
			rest = strings.TrimPrefix(after, "[")
		}
	}
	if len(out) == 0 {
		return nil, d.errorf(n, "empty patch path")
	}
	return out, nil
}

// selector reads the selectors that fit in a path string: [*], integer
// indices and quoted keys.
func (d *decoder) selector(r ast.Range, sel string) ast.PathSeg {
	if sel == "*" {
		return &ast.AllSeg{Range: r}
	}
	if v, err := strconv.ParseInt(sel, 10, 64); err == nil {
		return &ast.IndexSeg{Range: r, Expr: &ast.IntLit{Range: r, Value: v}}
	}
	if s, err := strconv.Unquote(sel); err == nil {
		return &ast.IndexSeg{Range: r, Expr: &ast.TextLit{Range: r, Value: s}}
	}
	return nil
}

// block reads {effect: [items]} and the other block kinds. Items are
// {bind: P, from: E, or: E | arms: [...]}, {let: P, be: E}, {filter: E},
// {yield: E} and {expr: E}.
func (d *decoder) block(n *yaml.Node, kind ast.BlockKind, head *yaml.Node, fields map[string]*yaml.Node) (ast.Expr, error) {
	if err := d.only(n, kind.String(), fields); err != nil {
		return nil, err
	}
	items, err := d.seq(head)
	if err != nil {
		return nil, err
	}
	b := &ast.Block{Range: d.rng(n), Kind: kind}
	for _, item := range items {
		bi, err := d.blockItem(item)
		if err != nil {
			return nil, err
		}
		b.Items = append(b.Items, bi)
	}
	return b, nil
}

func (d *decoder) blockItem(n *yaml.Node) (ast.BlockItem, error) {
	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	r := d.rng(n)
	switch form {
	case "bind":
		if err := d.only(n, form, fields, "from", "or", "arms"); err != nil {
			return nil, err
		}
		p, err := d.pattern(head)
		if err != nil {
			return nil, err
		}
		from, err := d.require(n, form, fields, "from")
		if err != nil {
			return nil, err
		}
		e, err := d.expr(from)
		if err != nil {
			return nil, err
		}
		item := &ast.BindItem{Range: r, Pattern: p, Expr: e}
		if fb, ok := fields["or"]; ok {
			item.Or = &ast.OrFallback{Range: d.rng(fb)}
			if item.Or.Fallback, err = d.expr(fb); err != nil {
				return nil, err
			}
		}
		if arms, ok := fields["arms"]; ok {
			if item.Or != nil {
				return nil, d.errorf(n, "bind takes either or or arms")
			}
			item.Or = &ast.OrFallback{Range: d.rng(arms)}
			if item.Or.Arms, err = d.arms(arms); err != nil {
				return nil, err
			}
		}
		return item, nil
	case "let":
		if err := d.only(n, form, fields, "be"); err != nil {
			return nil, err
		}
		p, err := d.pattern(head)
		if err != nil {
			return nil, err
		}
		be, err := d.require(n, form, fields, "be")
		if err != nil {
			return nil, err
		}
		e, err := d.expr(be)
		if err != nil {
			return nil, err
		}
		return &ast.LetItem{Range: r, Pattern: p, Expr: e}, nil
	}

	if err := d.only(n, form, fields); err != nil {
		return nil, err
	}
	e, err := d.expr(head)
	if err != nil {
		return nil, err
	}
	switch form {
	case "filter":
		return &ast.FilterItem{Range: r, Expr: e}, nil
	case "yield":
		return &ast.YieldItem{Range: r, Expr: e}, nil
	case "expr":
		return &ast.ExprItem{Range: r, Expr: e}, nil
	}
	return nil, d.errorf(n, "unknown block item %q", form)
}

// pattern reads a pattern: _ is a wildcard, capitalised words are
// constructors without arguments, other words bind variables. The
// mappings are {Ctor: [P]}, {record: {a.b: P}, open: bool} and
// {as: name, pattern: P}.
func (d *decoder) pattern(n *yaml.Node) (ast.Pattern, error) {
	n = deref(n)
	r := d.rng(n)
	if n.Kind == yaml.ScalarNode {
		switch {
		case quoted(n):
			return &ast.TextPat{Range: r, Value: n.Value}, nil
		case n.ShortTag() == "!!int":
			v, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				return nil, d.errorf(n, "invalid integer %q", n.Value)
			}
			return &ast.IntPat{Range: r, Value: v}, nil
		case n.Value == "_":
			return &ast.WildcardPat{Range: r}, nil
		case ast.IsConstructorName(n.Value):
			return &ast.CtorPat{Range: r, Name: n.Value}, nil
		}
		name, err := d.name(n)
		if err != nil {
			return nil, err
		}
		return &ast.VarPat{Range: r, Name: name}, nil
	}

	form, head, fields, err := d.form(n)
	if err != nil {
		return nil, err
	}
	switch {
	case form == "record":
		if err := d.only(n, form, fields, "open"); err != nil {
			return nil, err
		}
		rp := &ast.RecordPat{Range: r}
		if open, ok := fields["open"]; ok {
			rp.Open = open.Value == "true"
		}
		es, err := d.entries(head)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			p, err := d.pattern(e.value)
			if err != nil {
				return nil, err
			}
			rp.Fields = append(rp.Fields, ast.RecordPatField{
				Range:   ast.Range{PosStart: d.pos(e.key), PosEnd: d.end(e.value)},
				Path:    strings.Split(e.key.Value, "."),
				Pattern: p,
			})
		}
		return rp, nil
	case form == "as":
		if err := d.only(n, form, fields, "pattern"); err != nil {
			return nil, err
		}
		name, err := d.name(head)
		if err != nil {
			return nil, err
		}
		pn, err := d.require(n, form, fields, "pattern")
		if err != nil {
			return nil, err
		}
		p, err := d.pattern(pn)
		if err != nil {
			return nil, err
		}
		return &ast.AsPat{Range: r, Name: name, Pattern: p}, nil
	case ast.IsConstructorName(form):
		if err := d.only(n, form, fields); err != nil {
			return nil, err
		}
		cp := &ast.CtorPat{Range: r, Name: form}
		if head.Kind == yaml.SequenceNode {
			cp.Args, err = d.patterns(head)
		} else {
			var p ast.Pattern
			p, err = d.pattern(head)
			cp.Args = []ast.Pattern{p}
		}
		return cp, err
	}
	return nil, d.errorf(n, "unknown pattern form %q", form)
}

func (d *decoder) patterns(n *yaml.Node) ([]ast.Pattern, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Pattern, 0, len(items))
	for _, item := range items {
		p, err := d.pattern(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
