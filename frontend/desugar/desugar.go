// Package desugar lowers surface expressions into kernel terms. Lowering
// that depends on static types is left behind as resolution sites.
package desugar

import (
	"fmt"
	"log/slog"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/internal/log"
	"github.com/benbjohnson/immutable"
)

var logger = log.DefaultLogger.With("section", "desugar")

// Env answers the questions lowering asks about the global scope.
type Env interface {
	// Constructor returns the arity of a constructor and the number of
	// constructors of its type.
	Constructor(name string) (arity int, siblings int, ok bool)
	IsGlobal(name string) bool
}

// Names the lowering refers to. They are bound by the prelude.
const (
	NameUnreachable = "unreachable"
	NameAttempt     = "attempt"
	NameEq          = "=="
	NameListMap     = "List.map"
	NameMapMap      = "Map.map"
	NameMapWithKey  = "Map.mapWithKey"
	NameMapInsert   = "Map.insert"
	NameMapUpdate   = "Map.update"
	NameMapRemove   = "Map.remove"
	NameMapOption   = "mapOption"
	NameMapResult   = "mapResult"
)

// scope is the persistent set of locally bound names.
type scope struct {
	names *immutable.Map[string, struct{}]
}

func emptyScope() scope {
	return scope{names: immutable.NewMap[string, struct{}](nil)}
}

func (s scope) with(names ...string) scope {
	m := s.names
	for _, n := range names {
		m = m.Set(n, struct{}{})
	}
	return scope{names: m}
}

func (s scope) has(name string) bool {
	_, ok := s.names.Get(name)
	return ok
}

// Desugarer lowers the declarations of one module. It shares node IDs and
// sites with the rest of the module pipeline.
type Desugarer struct {
	env     Env
	domains *domain.Table
	sites   *kernel.Sites
	b       *kernel.Builder
	errs    *ilerr.Errors
	logger  *slog.Logger

	// implicit is the element variable of a patch predicate; names that
	// are not in scope become fields of it.
	implicit string

	// Annotations holds the type annotations of lowered nodes.
	Annotations map[kernel.NodeID]ast.TypeExpr
}

func New(env Env, domains *domain.Table, ids *kernel.IDGen, sites *kernel.Sites) *Desugarer {
	if domains == nil {
		domains = domain.NewTable()
	}
	return &Desugarer{
		env:         env,
		domains:     domains,
		sites:       sites,
		b:           kernel.NewBuilder(ids),
		logger:      logger,
		Annotations: map[kernel.NodeID]ast.TypeExpr{},
	}
}

func (d *Desugarer) at(p ast.Positioner) *kernel.Builder {
	return d.b.At(p)
}

func (d *Desugarer) fail(err ilerr.IleError) {
	d.errs = d.errs.With(err)
}

func (d *Desugarer) takeErrors() *ilerr.Errors {
	errs := d.errs
	d.errs = nil
	return errs
}

// Def lowers a top-level definition (or a domain operator, or an
// instance method) into a single term.
func (d *Desugarer) Def(def *ast.Def) (kernel.Term, *ilerr.Errors) {
	d.logger.Debug("desugaring definition", "name", def.Name)
	var t kernel.Term
	if len(def.Clauses) > 0 {
		t = d.clauses(def, emptyScope())
	} else {
		t = d.expr(def.Expr, emptyScope())
	}
	return t, d.takeErrors()
}

// Expr lowers a standalone expression.
func (d *Desugarer) Expr(e ast.Expr) (kernel.Term, *ilerr.Errors) {
	t := d.expr(e, emptyScope())
	return t, d.takeErrors()
}

func (d *Desugarer) isCtor(name string) (int, bool) {
	arity, _, ok := d.env.Constructor(name)
	return arity, ok
}

func (d *Desugarer) expr(e ast.Expr, sc scope) kernel.Term {
	b := d.at(e)
	switch e := e.(type) {
	case *ast.Ident:
		return d.ident(e, sc)
	case *ast.IntLit:
		return b.Int(e.Value)
	case *ast.FloatLit:
		return b.Float(e.Value)
	case *ast.TextLit:
		return b.Text(e.Value)
	case *ast.DeltaLit:
		return d.deltaSite(e)
	case *ast.Lambda:
		return d.lambda(e, sc)
	case *ast.Call:
		return d.call(e, sc)
	case *ast.Binary:
		return d.binary(e, sc)
	case *ast.Record:
		fields := make([]kernel.Field, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = kernel.Field{Label: f.Label, Value: d.expr(f.Value, sc)}
		}
		return b.Record(fields...)
	case *ast.FieldAccess:
		return b.Project(d.expr(e.Base, sc), e.Field)
	case *ast.ListLit:
		var list kernel.Term = b.Ctor("Nil")
		for i := len(e.Items) - 1; i >= 0; i-- {
			list = d.at(e.Items[i]).Ctor("Cons", d.expr(e.Items[i], sc), list)
		}
		return list
	case *ast.Match:
		return d.match(e, sc)
	case *ast.If:
		return b.If(d.expr(e.Cond, sc), d.expr(e.Then, sc), d.expr(e.Else, sc))
	case *ast.Patch:
		return d.patch(e, sc)
	case *ast.Block:
		return d.block(e, sc)
	case *ast.ResultOr:
		return d.resultOr(e, sc)
	case *ast.Annot:
		inner := d.expr(e.Expr, sc)
		d.Annotations[inner.NodeID()] = e.Type
		return inner
	case nil:
		d.fail(ilerr.New(ilerr.Unclassified{From: fmt.Errorf("missing expression"), Positioner: ast.Range{}}))
		return b.Var(NameUnreachable)
	}
	d.fail(ilerr.New(ilerr.Unclassified{From: fmt.Errorf("unsupported expression %T", e), Positioner: ast.RangeOf(e)}))
	return b.Var(NameUnreachable)
}

func (d *Desugarer) ident(e *ast.Ident, sc scope) kernel.Term {
	b := d.at(e)
	if d.implicit != "" {
		if e.Name == "_" {
			return b.Var(d.implicit)
		}
		if !sc.has(e.Name) && !d.env.IsGlobal(e.Name) && !ast.IsConstructorName(e.Name) {
			return b.Project(b.Var(d.implicit), e.Name)
		}
	}
	if !sc.has(e.Name) {
		if arity, ok := d.isCtor(e.Name); ok {
			return d.etaCtor(b, e.Name, arity, nil)
		}
	}
	return b.Var(e.Name)
}

// etaCtor saturates a constructor, abstracting over missing arguments.
func (d *Desugarer) etaCtor(b *kernel.Builder, name string, arity int, args []kernel.Term) kernel.Term {
	if len(args) >= arity {
		return b.App(b.Ctor(name, args[:arity]...), args[arity:]...)
	}
	var params []string
	full := append([]kernel.Term(nil), args...)
	for len(full) < arity {
		p := b.Fresh("c")
		params = append(params, p)
		full = append(full, b.Var(p))
	}
	return b.Lams(params, b.Ctor(name, full...))
}

func (d *Desugarer) lambda(e *ast.Lambda, sc scope) kernel.Term {
	b := d.at(e)
	params := make([]string, len(e.Params))
	type destructure struct {
		param string
		pat   ast.Pattern
	}
	var pending []destructure
	inner := sc
	for i, p := range e.Params {
		if v, ok := p.(*ast.VarPat); ok {
			params[i] = v.Name
			inner = inner.with(v.Name)
			continue
		}
		if _, ok := p.(*ast.WildcardPat); ok {
			params[i] = b.Fresh("_")
			continue
		}
		d.checkTotal(p)
		params[i] = b.Fresh("p")
		pending = append(pending, destructure{param: params[i], pat: p})
		inner = inner.with(patternNames(p)...)
	}
	body := d.expr(e.Body, inner)
	for i := len(pending) - 1; i >= 0; i-- {
		body = d.bindPattern(b, pending[i].pat, b.Var(pending[i].param), body)
	}
	return b.Lams(params, body)
}

func (d *Desugarer) call(e *ast.Call, sc scope) kernel.Term {
	b := d.at(e)
	args := make([]kernel.Term, len(e.Args))
	for i, a := range e.Args {
		args[i] = d.expr(a, sc)
	}
	if id, ok := e.Func.(*ast.Ident); ok && !sc.has(id.Name) {
		switch {
		case id.Name == "pure" && len(args) == 1:
			return b.Pure(args[0])
		case id.Name == "fail" && len(args) == 1:
			return b.Fail(args[0])
		}
		if arity, ok := d.isCtor(id.Name); ok {
			return d.etaCtor(b, id.Name, arity, args)
		}
	}
	return b.App(d.expr(e.Func, sc), args...)
}

func (d *Desugarer) binary(e *ast.Binary, sc scope) kernel.Term {
	b := d.at(e)
	switch e.Op {
	case "|>":
		return b.App(d.expr(e.Right, sc), d.expr(e.Left, sc))
	case "&&":
		return b.If(d.expr(e.Left, sc), d.expr(e.Right, sc), b.Ctor("False"))
	case "||":
		return b.If(d.expr(e.Left, sc), b.Ctor("True"), d.expr(e.Right, sc))
	}
	left := d.expr(e.Left, sc)
	if !d.domains.DefinesOperator(e.Op) {
		if delta, ok := e.Right.(*ast.DeltaLit); ok {
			// Only a domain gives meaning to a delta literal operand; with
			// no domain implementing the operator nothing can.
			d.fail(ilerr.New(ilerr.NewNoMatchingDomain{Positioner: e.Range, Subject: e.Op + " " + delta.Text}))
		}
		return b.App(b.Var(e.Op), left, d.expr(e.Right, sc))
	}
	site := d.sites.New(kernel.Site{
		Kind:    kernel.SiteDomainOp,
		Span:    e.Range,
		Arity:   2,
		Operand: left.NodeID(),
		Op:      e.Op,
	})
	var right kernel.Term
	if delta, ok := e.Right.(*ast.DeltaLit); ok {
		dv := d.deltaSite(delta)
		site.Right = dv.Site
		right = dv
	} else {
		right = d.expr(e.Right, sc)
	}
	return b.App(b.Site(site), left, right)
}

func (d *Desugarer) deltaSite(e *ast.DeltaLit) *kernel.Var {
	site := d.sites.New(kernel.Site{
		Kind:      kernel.SiteDelta,
		Span:      e.Range,
		Literal:   e.Text,
		Qualifier: e.Qualifier,
	})
	v := d.at(e).Site(site)
	v.Name = e.Text
	site.Operand = v.NodeID()
	return v
}

func (d *Desugarer) resultOr(e *ast.ResultOr, sc scope) kernel.Term {
	b := d.at(e)
	v := b.Fresh("ok")
	okAlt := kernel.Alt{Pattern: b.PCtor("Ok", b.PVar(v)), Body: b.Var(v)}
	if len(e.Arms) == 0 {
		return b.Case(d.expr(e.Base, sc), okAlt,
			kernel.Alt{Pattern: b.PCtor("Err", b.PWild()), Body: d.expr(e.Fallback, sc)})
	}
	errName := b.Fresh("err")
	handled := d.compileArms(b, []string{errName}, d.matchArms(e.Arms, nil), sc, func(b *kernel.Builder) kernel.Term {
		return b.Var(NameUnreachable)
	})
	return b.Case(d.expr(e.Base, sc), okAlt,
		kernel.Alt{Pattern: b.PCtor("Err", b.PVar(errName)), Body: handled})
}
