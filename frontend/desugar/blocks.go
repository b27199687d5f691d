package desugar

import (
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

func (d *Desugarer) block(e *ast.Block, sc scope) kernel.Term {
	switch e.Kind {
	case ast.EffectBlock, ast.DoBlock:
		return d.effectItems(e, e.Items, sc)
	case ast.GenerateBlock:
		return d.generateItems(e, e.Items, sc)
	}
	return d.plainItems(e, e.Items, sc)
}

func (d *Desugarer) invalidItem(block *ast.Block, item ast.BlockItem) {
	d.fail(ilerr.New(ilerr.NewInvalidBlockItem{Positioner: ast.RangeOf(item), Item: item.Describe(), Block: block.Describe()}))
}

// plainItems lowers `{ let ...; expr }` into nested lets.
func (d *Desugarer) plainItems(block *ast.Block, items []ast.BlockItem, sc scope) kernel.Term {
	b := d.at(block)
	if len(items) == 0 {
		return b.Ctor("Unit")
	}
	switch item := items[0].(type) {
	case *ast.LetItem:
		value := d.expr(item.Expr, sc)
		d.checkTotal(item.Pattern)
		rest := d.plainItems(block, items[1:], sc.with(patternNames(item.Pattern)...))
		return d.bindPattern(d.at(item), item.Pattern, value, rest)
	case *ast.ExprItem:
		if len(items) == 1 {
			return d.expr(item.Expr, sc)
		}
	}
	d.invalidItem(block, items[0])
	return d.plainItems(block, items[1:], sc)
}

// effectItems lowers an effect block into pure/bind/fail.
//
//	x <- e; rest    bind e (\x. rest)
//	e; rest         bind e (\_. rest)
//	x = e; rest     let x = e in rest
//	e               e
func (d *Desugarer) effectItems(block *ast.Block, items []ast.BlockItem, sc scope) kernel.Term {
	b := d.at(block)
	if len(items) == 0 {
		return b.Pure(b.Ctor("Unit"))
	}
	last := len(items) == 1
	switch item := items[0].(type) {
	case *ast.BindItem:
		ib := d.at(item)
		eff := d.expr(item.Expr, sc)
		if item.Or != nil {
			eff = d.orEffect(ib, eff, item.Or, sc)
		}
		d.checkTotal(item.Pattern)
		inner := sc.with(patternNames(item.Pattern)...)
		var rest kernel.Term
		if last {
			rest = ib.Pure(ib.Ctor("Unit"))
		} else {
			rest = d.effectItems(block, items[1:], inner)
		}
		return ib.Bind(eff, d.patternLam(ib, item.Pattern, rest))
	case *ast.LetItem:
		value := d.expr(item.Expr, sc)
		d.checkTotal(item.Pattern)
		rest := d.effectItems(block, items[1:], sc.with(patternNames(item.Pattern)...))
		return d.bindPattern(d.at(item), item.Pattern, value, rest)
	case *ast.ExprItem:
		e := d.expr(item.Expr, sc)
		if last {
			return e
		}
		ib := d.at(item)
		return ib.Bind(e, ib.Lam(ib.Fresh("_"), d.effectItems(block, items[1:], sc)))
	}
	d.invalidItem(block, items[0])
	return d.effectItems(block, items[1:], sc)
}

// patternLam abstracts body over a total pattern.
func (d *Desugarer) patternLam(b *kernel.Builder, p ast.Pattern, body kernel.Term) kernel.Term {
	switch p := p.(type) {
	case *ast.VarPat:
		return b.Lam(p.Name, body)
	case *ast.WildcardPat:
		return b.Lam(b.Fresh("_"), body)
	}
	x := b.Fresh("p")
	return b.Lam(x, d.bindPattern(b, p, b.Var(x), body))
}

// orEffect recovers from the failure of eff. With a plain fallback every
// error is replaced; with arms, errors no arm matches are raised again.
func (d *Desugarer) orEffect(b *kernel.Builder, eff kernel.Term, or *ast.OrFallback, sc scope) kernel.Term {
	ob := d.at(or)
	r, v := ob.Fresh("r"), ob.Fresh("v")
	okAlt := kernel.Alt{Pattern: ob.PCtor("Ok", ob.PVar(v)), Body: ob.Pure(ob.Var(v))}
	var errAlt kernel.Alt
	if len(or.Arms) == 0 {
		errAlt = kernel.Alt{Pattern: ob.PCtor("Err", ob.PWild()), Body: ob.Pure(d.expr(or.Fallback, sc))}
	} else {
		errName := ob.Fresh("err")
		pure := func(b *kernel.Builder, t kernel.Term) kernel.Term { return b.Pure(t) }
		handled := d.compileArms(ob, []string{errName}, d.matchArms(or.Arms, pure), sc.with(errName), func(b *kernel.Builder) kernel.Term {
			return b.Fail(b.Var(errName))
		})
		errAlt = kernel.Alt{Pattern: ob.PCtor("Err", ob.PVar(errName)), Body: handled}
	}
	return ob.Bind(ob.Call(NameAttempt, eff), ob.Lam(r, ob.Case(ob.Var(r), okAlt, errAlt)))
}

// generateItems lowers a generator block into a fold function
// `\k. \z. ...` that threads the accumulator z through every yield.
func (d *Desugarer) generateItems(block *ast.Block, items []ast.BlockItem, sc scope) kernel.Term {
	b := d.at(block)
	k, z := b.Fresh("k"), b.Fresh("z")
	if len(items) == 0 {
		return b.Lams([]string{k, z}, b.Var(z))
	}
	item := items[0]
	ib := d.at(item)
	restOf := func(sc scope) kernel.Term {
		return d.generateItems(block, items[1:], sc)
	}
	switch item := item.(type) {
	case *ast.YieldItem:
		value := d.expr(item.Expr, sc)
		acc := ib.App(ib.Var(k), ib.Var(z), value)
		return ib.Lams([]string{k, z}, ib.App(restOf(sc.with(k, z)), ib.Var(k), acc))
	case *ast.BindItem:
		if item.Or != nil {
			d.invalidItem(block, item)
		}
		src := d.expr(item.Expr, sc)
		site := d.sites.New(kernel.Site{Kind: kernel.SiteGenSource, Span: item.Range, Arity: 1, Operand: src.NodeID()})
		acc, x := ib.Fresh("acc"), ib.Fresh("x")
		inner := sc.with(k, z, acc).with(patternNames(item.Pattern)...)
		rest := ib.App(restOf(inner), ib.Var(k), ib.Var(acc))
		var step kernel.Term
		switch p := item.Pattern.(type) {
		case *ast.VarPat:
			step = ib.Lams([]string{acc, p.Name}, rest)
		default:
			var tests []litTest
			kp := d.pattern(item.Pattern, &tests)
			if len(tests) > 0 {
				d.fail(ilerr.New(ilerr.NewNonTotalBinding{Positioner: item.Pattern, Pattern: PatternString(item.Pattern)}))
			}
			body := ib.Case(ib.Var(x),
				kernel.Alt{Pattern: kp, Body: rest},
				kernel.Alt{Pattern: ib.PWild(), Body: ib.Var(acc)},
			)
			step = ib.Lams([]string{acc, x}, body)
		}
		return ib.Lams([]string{k, z}, ib.App(ib.Site(site), src, step, ib.Var(z)))
	case *ast.FilterItem:
		cond := d.expr(item.Expr, sc)
		inner := sc.with(k, z)
		pass := ib.App(restOf(inner), ib.Var(k), ib.Var(z))
		return ib.Lams([]string{k, z}, ib.If(cond, pass, ib.Var(z)))
	case *ast.LetItem:
		value := d.expr(item.Expr, sc)
		d.checkTotal(item.Pattern)
		rest := restOf(sc.with(patternNames(item.Pattern)...))
		return d.bindPattern(ib, item.Pattern, value, rest)
	case *ast.ExprItem:
		// A nested generator: its yields go to the same accumulator.
		g := d.expr(item.Expr, sc)
		acc := ib.App(g, ib.Var(k), ib.Var(z))
		return ib.Lams([]string{k, z}, ib.App(restOf(sc.with(k, z)), ib.Var(k), acc))
	}
	d.invalidItem(block, item)
	return restOf(sc)
}

// ResolveGenSource decides the source of a generator bind. A List is
// folded; anything else is already a generator.
func ResolveGenSource(site *kernel.Site, o kernel.Oracle, final bool) (kernel.Expansion, ilerr.IleError) {
	source, ok := o.TypeOf(site.Operand)
	if isUnknown(source, ok) && !final {
		return nil, nil
	}
	if name, known := types.HeadName(source); known && name == types.ListCon.Name {
		return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
			k, z := b.Fresh("k"), b.Fresh("z")
			return b.Lams([]string{k, z}, b.Fold(b.Var(k), b.Var(z), args[0]))
		}, nil
	}
	return func(_ *kernel.Builder, args []kernel.Term) kernel.Term {
		return args[0]
	}, nil
}
