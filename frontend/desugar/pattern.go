package desugar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
)

// arm is one row of a match: patterns for each scrutinee column, an
// optional guard, and a body lowered in the scope the patterns bind.
type arm struct {
	span  ast.Range
	pats  []ast.Pattern
	guard ast.Expr
	lower func(sc scope) kernel.Term
}

// litTest is an equality test introduced by a literal pattern.
type litTest struct {
	name string
	lit  func(b *kernel.Builder) kernel.Term
}

func (d *Desugarer) matchArms(arms []ast.MatchArm, wrap func(*kernel.Builder, kernel.Term) kernel.Term) []arm {
	out := make([]arm, len(arms))
	for i, a := range arms {
		body := a.Body
		span := a.Range
		out[i] = arm{
			span:  span,
			pats:  []ast.Pattern{a.Pattern},
			guard: a.Guard,
			lower: func(sc scope) kernel.Term {
				t := d.expr(body, sc)
				if wrap != nil {
					t = wrap(d.at(span), t)
				}
				return t
			},
		}
	}
	return out
}

func (d *Desugarer) match(e *ast.Match, sc scope) kernel.Term {
	b := d.at(e)
	arms := d.matchArms(e.Arms, nil)
	if e.Scrutinee == nil {
		x := b.Fresh("x")
		return b.Lam(x, d.compileArms(b, []string{x}, arms, sc.with(x), unreachable))
	}
	scrutinee := d.expr(e.Scrutinee, sc)
	if !d.needsNames(arms) {
		return d.simpleCase(b, scrutinee, arms, sc)
	}
	if v, ok := scrutinee.(*kernel.Var); ok && v.Site == 0 {
		return d.compileArms(b, []string{v.Name}, arms, sc, unreachable)
	}
	s := b.Fresh("s")
	return b.Let(s, scrutinee, d.compileArms(b, []string{s}, arms, sc.with(s), unreachable))
}

func unreachable(b *kernel.Builder) kernel.Term {
	return b.Var(NameUnreachable)
}

// clauses lowers a multi-clause function. Columns are matched left to
// right; a clause that fails falls through to the next one.
func (d *Desugarer) clauses(def *ast.Def, sc scope) kernel.Term {
	b := d.at(def)
	n := len(def.Clauses[0].Params)
	params := make([]string, n)
	for i := range params {
		params[i] = b.Fresh("a")
	}
	arms := make([]arm, 0, len(def.Clauses))
	for _, c := range def.Clauses {
		if len(c.Params) != n {
			d.fail(ilerr.New(ilerr.Unclassified{
				From:       fmt.Errorf("clause of '%s' has %d parameters, expected %d", def.Name, len(c.Params), n),
				Positioner: c.Range,
			}))
			continue
		}
		body := c.Body
		arms = append(arms, arm{
			span:  c.Range,
			pats:  c.Params,
			guard: c.Guard,
			lower: func(sc scope) kernel.Term { return d.expr(body, sc) },
		})
	}
	inner := sc.with(params...)
	if n == 1 && !d.needsNames(arms) {
		return b.Lam(params[0], d.simpleCase(b, b.Var(params[0]), arms, inner))
	}
	return b.Lams(params, d.compileArms(b, params, arms, inner, unreachable))
}

// needsNames reports whether the arms need more than a single case:
// guards and literal patterns both fall through to later arms.
func (d *Desugarer) needsNames(arms []arm) bool {
	for _, a := range arms {
		if a.guard != nil || len(a.pats) != 1 || hasLiteral(a.pats[0]) {
			return true
		}
	}
	return false
}

// simpleCase lowers guard-free, single-column arms into one case with
// the alternatives in source order.
func (d *Desugarer) simpleCase(b *kernel.Builder, scrutinee kernel.Term, arms []arm, sc scope) kernel.Term {
	alts := make([]kernel.Alt, 0, len(arms)+1)
	for _, a := range arms {
		var tests []litTest
		p := d.pattern(a.pats[0], &tests)
		alts = append(alts, kernel.Alt{Pattern: p, Body: a.lower(sc.with(patternNames(a.pats[0])...))})
	}
	if len(alts) == 0 || !kernel.Irrefutable(alts[len(alts)-1].Pattern) {
		alts = append(alts, kernel.Alt{Pattern: b.PWild(), Body: unreachable(b)})
	}
	return b.Case(scrutinee, alts...)
}

// compileArms matches the variables scrutinees against arms in order.
// Every arm but the last gets a continuation `k` holding the remaining
// arms, so failing a pattern or guard calls `k Unit`.
func (d *Desugarer) compileArms(b *kernel.Builder, scrutinees []string, arms []arm, sc scope, fail func(*kernel.Builder) kernel.Term) kernel.Term {
	if len(arms) == 0 {
		return fail(b)
	}
	rest := d.armTerm(b, scrutinees, arms[len(arms)-1], sc, fail)
	for i := len(arms) - 2; i >= 0; i-- {
		k := b.Fresh("k")
		onFail := func(b *kernel.Builder) kernel.Term {
			return b.App(b.Var(k), b.Ctor("Unit"))
		}
		current := d.armTerm(b, scrutinees, arms[i], sc, onFail)
		rest = b.Let(k, b.Lam(b.Fresh("_"), rest), current)
	}
	return rest
}

func (d *Desugarer) armTerm(b *kernel.Builder, scrutinees []string, a arm, sc scope, onFail func(*kernel.Builder) kernel.Term) kernel.Term {
	ab := d.at(a.span)
	var tests []litTest
	pats := make([]kernel.Pattern, len(a.pats))
	inner := sc
	for i, p := range a.pats {
		pats[i] = d.pattern(p, &tests)
		inner = inner.with(patternNames(p)...)
	}
	for _, t := range tests {
		inner = inner.with(t.name)
	}
	body := a.lower(inner)
	if a.guard != nil {
		body = ab.If(d.expr(a.guard, inner), body, onFail(ab))
	}
	for i := len(tests) - 1; i >= 0; i-- {
		t := tests[i]
		cond := ab.App(ab.Var(NameEq), ab.Var(t.name), t.lit(ab))
		body = ab.If(cond, body, onFail(ab))
	}
	for i := len(pats) - 1; i >= 0; i-- {
		scrutinee := ab.Var(scrutinees[i])
		switch p := pats[i].(type) {
		case *kernel.PWild:
		case *kernel.PVar:
			if p.Name != scrutinees[i] {
				body = ab.Let(p.Name, scrutinee, body)
			}
		default:
			alts := []kernel.Alt{{Pattern: p, Body: body}}
			if !kernel.Irrefutable(p) {
				alts = append(alts, kernel.Alt{Pattern: ab.PWild(), Body: onFail(ab)})
			}
			body = ab.Case(scrutinee, alts...)
		}
	}
	return body
}

// bindPattern binds a total pattern to value around body.
func (d *Desugarer) bindPattern(b *kernel.Builder, p ast.Pattern, value kernel.Term, body kernel.Term) kernel.Term {
	var tests []litTest
	kp := d.pattern(p, &tests)
	switch kp := kp.(type) {
	case *kernel.PVar:
		return b.Let(kp.Name, value, body)
	case *kernel.PWild:
		return body
	}
	return b.Case(value, kernel.Alt{Pattern: kp, Body: body})
}

// pattern converts a surface pattern. Literal sub-patterns become fresh
// variables plus equality tests appended to tests.
func (d *Desugarer) pattern(p ast.Pattern, tests *[]litTest) kernel.Pattern {
	r := ast.RangeOf(p)
	switch p := p.(type) {
	case *ast.VarPat:
		return &kernel.PVar{Range: r, Name: p.Name}
	case *ast.WildcardPat:
		return &kernel.PWild{Range: r}
	case *ast.CtorPat:
		args := make([]kernel.Pattern, len(p.Args))
		for i, a := range p.Args {
			args[i] = d.pattern(a, tests)
		}
		return &kernel.PCtor{Range: r, Name: p.Name, Args: args}
	case *ast.AsPat:
		return &kernel.PAs{Range: r, Name: p.Name, Pattern: d.pattern(p.Pattern, tests)}
	case *ast.IntPat:
		name := d.b.Fresh("lit")
		v := p.Value
		*tests = append(*tests, litTest{name: name, lit: func(b *kernel.Builder) kernel.Term { return b.Int(v) }})
		return &kernel.PVar{Range: r, Name: name}
	case *ast.TextPat:
		name := d.b.Fresh("lit")
		v := p.Value
		*tests = append(*tests, litTest{name: name, lit: func(b *kernel.Builder) kernel.Term { return b.Text(v) }})
		return &kernel.PVar{Range: r, Name: name}
	case *ast.RecordPat:
		return d.recordPattern(p, tests)
	}
	d.fail(ilerr.New(ilerr.Unclassified{From: fmt.Errorf("unsupported pattern %T", p), Positioner: r}))
	return &kernel.PWild{Range: r}
}

// fieldTree collects record pattern fields by path so `{a.b: x, a.c: y}`
// becomes `{a: {b: x, c: y}}`.
type fieldTree struct {
	label    string
	span     ast.Range
	leaf     kernel.Pattern
	children []*fieldTree
}

func (t *fieldTree) child(label string, span ast.Range) *fieldTree {
	for _, c := range t.children {
		if c.label == label {
			return c
		}
	}
	c := &fieldTree{label: label, span: span}
	t.children = append(t.children, c)
	return c
}

func (d *Desugarer) recordPattern(p *ast.RecordPat, tests *[]litTest) kernel.Pattern {
	root := &fieldTree{span: p.Range}
	for _, f := range p.Fields {
		if len(f.Path) == 0 {
			continue
		}
		node := root
		for _, label := range f.Path {
			node = node.child(label, f.Range)
		}
		var leaf kernel.Pattern
		if f.Pattern == nil {
			leaf = &kernel.PVar{Range: f.Range, Name: f.Path[len(f.Path)-1]}
		} else {
			leaf = d.pattern(f.Pattern, tests)
		}
		if node.leaf != nil {
			d.fail(ilerr.New(ilerr.Unclassified{
				From:       fmt.Errorf("field '%s' is matched twice", strings.Join(f.Path, ".")),
				Positioner: f.Range,
			}))
			continue
		}
		node.leaf = leaf
	}
	return d.treePattern(root, p.Open)
}

func (d *Desugarer) treePattern(t *fieldTree, open bool) kernel.Pattern {
	fields := make([]kernel.PField, 0, len(t.children))
	for _, c := range t.children {
		fields = append(fields, kernel.PField{Label: c.label, Pattern: d.subtreePattern(c)})
	}
	return &kernel.PRecord{Range: t.span, Fields: fields, Open: open}
}

func (d *Desugarer) subtreePattern(t *fieldTree) kernel.Pattern {
	if len(t.children) == 0 {
		return t.leaf
	}
	nested := d.treePattern(t, true)
	switch leaf := t.leaf.(type) {
	case nil, *kernel.PWild:
		return nested
	case *kernel.PVar:
		return &kernel.PAs{Range: t.span, Name: leaf.Name, Pattern: nested}
	}
	d.fail(ilerr.New(ilerr.Unclassified{
		From:       fmt.Errorf("field '%s' has both a pattern and nested field patterns", t.label),
		Positioner: t.span,
	}))
	return nested
}

func hasLiteral(p ast.Pattern) bool {
	switch p := p.(type) {
	case *ast.IntPat, *ast.TextPat:
		return true
	case *ast.CtorPat:
		for _, a := range p.Args {
			if hasLiteral(a) {
				return true
			}
		}
	case *ast.AsPat:
		return hasLiteral(p.Pattern)
	case *ast.RecordPat:
		for _, f := range p.Fields {
			if f.Pattern != nil && hasLiteral(f.Pattern) {
				return true
			}
		}
	}
	return false
}

// patternNames lists the variables a surface pattern binds.
func patternNames(p ast.Pattern) []string {
	var out []string
	var walk func(ast.Pattern)
	walk = func(p ast.Pattern) {
		switch p := p.(type) {
		case *ast.VarPat:
			out = append(out, p.Name)
		case *ast.CtorPat:
			for _, a := range p.Args {
				walk(a)
			}
		case *ast.AsPat:
			out = append(out, p.Name)
			walk(p.Pattern)
		case *ast.RecordPat:
			for _, f := range p.Fields {
				if f.Pattern == nil {
					if len(f.Path) > 0 {
						out = append(out, f.Path[len(f.Path)-1])
					}
					continue
				}
				walk(f.Pattern)
			}
		}
	}
	walk(p)
	return out
}

// total reports whether p matches every value of its type: variables,
// wildcards, records of total patterns, and single-constructor types.
func (d *Desugarer) total(p ast.Pattern) bool {
	switch p := p.(type) {
	case *ast.VarPat, *ast.WildcardPat:
		return true
	case *ast.AsPat:
		return d.total(p.Pattern)
	case *ast.RecordPat:
		for _, f := range p.Fields {
			if f.Pattern != nil && !d.total(f.Pattern) {
				return false
			}
		}
		return true
	case *ast.CtorPat:
		_, siblings, ok := d.env.Constructor(p.Name)
		if ok && siblings != 1 {
			return false
		}
		for _, a := range p.Args {
			if !d.total(a) {
				return false
			}
		}
		return true
	}
	return false
}

func (d *Desugarer) checkTotal(p ast.Pattern) bool {
	if d.total(p) {
		return true
	}
	d.fail(ilerr.New(ilerr.NewNonTotalBinding{Positioner: ast.RangeOf(p), Pattern: PatternString(p)}))
	return false
}

// PatternString renders a surface pattern for diagnostics.
func PatternString(p ast.Pattern) string {
	var sb strings.Builder
	writePattern(&sb, p, false)
	return sb.String()
}

func writePattern(sb *strings.Builder, p ast.Pattern, nested bool) {
	switch p := p.(type) {
	case *ast.VarPat:
		sb.WriteString(p.Name)
	case *ast.WildcardPat:
		sb.WriteByte('_')
	case *ast.IntPat:
		sb.WriteString(strconv.FormatInt(p.Value, 10))
	case *ast.TextPat:
		sb.WriteString(strconv.Quote(p.Value))
	case *ast.AsPat:
		sb.WriteString(p.Name + "@")
		writePattern(sb, p.Pattern, true)
	case *ast.CtorPat:
		if len(p.Args) == 0 {
			sb.WriteString(p.Name)
			return
		}
		if nested {
			sb.WriteByte('(')
		}
		sb.WriteString(p.Name)
		for _, a := range p.Args {
			sb.WriteByte(' ')
			writePattern(sb, a, true)
		}
		if nested {
			sb.WriteByte(')')
		}
	case *ast.RecordPat:
		sb.WriteByte('{')
		for i, f := range p.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strings.Join(f.Path, "."))
			if f.Pattern != nil {
				sb.WriteString(": ")
				writePattern(sb, f.Pattern, false)
			}
		}
		if p.Open {
			sb.WriteString(", ...")
		}
		sb.WriteByte('}')
	}
}
