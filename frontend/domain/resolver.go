package domain

import (
	"log/slog"

	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/aivi-lang/aivi/internal/log"
)

var resolverLogger = log.DefaultLogger.With("section", "domain")

// Resolver decides domain operator and delta literal sites. Its methods
// return a nil expansion and a nil error while a site is still undecided.
type Resolver struct {
	table *Table
	// inScope reports whether a plain (class method) operator is bound.
	inScope func(name string) bool
	logger  *slog.Logger
}

func NewResolver(table *Table, inScope func(string) bool) *Resolver {
	return &Resolver{table: table, inScope: inScope, logger: resolverLogger}
}

func (r *Resolver) Table() *Table { return r.table }

// unknown reports whether t gives no information for disambiguation.
func unknown(t types.Type, ok bool) bool {
	if !ok || t == nil {
		return true
	}
	_, isVar := t.(*types.Var)
	return isVar
}

func isError(t types.Type) bool {
	_, ok := t.(types.Error)
	return ok
}

// ResolveOperator decides an operator site. When the right operand is a
// delta literal site, that site is decided as well and its expansion is
// returned second.
//
// The order is: delta lookup, carrier disambiguation against the left
// operand, delta expansion, operator resolution.
func (r *Resolver) ResolveOperator(site *kernel.Site, delta *kernel.Site, o kernel.Oracle, final bool) (kernel.Expansion, kernel.Expansion, ilerr.IleError) {
	left, leftOk := o.TypeOf(site.Operand)
	logger := r.logger.With("op", site.Op, "final", final)

	if leftOk && isError(left) {
		return r.fallback(site.Op), r.errorDelta(), nil
	}

	if delta != nil {
		cands := r.table.Candidates(delta.Literal, delta.Qualifier)
		if len(cands) == 0 {
			return nil, nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: delta.Span, Subject: delta.Literal})
		}
		if delta.Qualifier == "" && !unknown(left, leftOk) {
			cands = filterCandidates(cands, func(c Candidate) bool { return o.Unifiable(left, c.Domain.Carrier) })
			if len(cands) == 0 {
				return nil, nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: site.Span, Subject: delta.Literal, Carrier: left})
			}
		}
		if len(cands) > 1 {
			if !final && unknown(left, leftOk) {
				return nil, nil, nil
			}
			return nil, nil, ambiguous(site, delta.Literal, candidateDomains(cands))
		}
		chosen := cands[0]
		fn, ok := chosen.Domain.Operators[site.Op]
		if !ok {
			return nil, nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: site.Span, Subject: site.Op, Carrier: chosen.Domain.Carrier})
		}
		logger.Debug("resolved operator with delta", "domain", chosen.Domain.Name, "literal", delta.Literal)
		return call(fn), construct(chosen.Value), nil
	}

	domains := r.table.OperatorDomains(site.Op)
	if unknown(left, leftOk) {
		if !final {
			return nil, nil, nil
		}
		if r.inScope(site.Op) {
			logger.Debug("polymorphic carrier, falling back to class operator")
			return r.fallback(site.Op), nil, nil
		}
		if len(domains) == 1 {
			return call(domains[0].Operators[site.Op]), nil, nil
		}
		return nil, nil, ambiguous(site, site.Op, domains)
	}
	matching := filterDomains(domains, func(d *DomainDef) bool { return o.Unifiable(left, d.Carrier) })
	switch len(matching) {
	case 0:
		if r.inScope(site.Op) {
			return r.fallback(site.Op), nil, nil
		}
		return nil, nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: site.Span, Subject: site.Op, Carrier: left})
	case 1:
		logger.Debug("resolved operator", "domain", matching[0].Name)
		return call(matching[0].Operators[site.Op]), nil, nil
	}
	return nil, nil, ambiguous(site, site.Op, matching)
}

// ResolveLiteral decides a delta literal that is not the right operand of
// a domain operator, using the type expected for the literal itself.
func (r *Resolver) ResolveLiteral(site *kernel.Site, o kernel.Oracle, final bool) (kernel.Expansion, ilerr.IleError) {
	cands := r.table.Candidates(site.Literal, site.Qualifier)
	if len(cands) == 0 {
		return nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: site.Span, Subject: site.Literal})
	}
	if len(cands) == 1 {
		return construct(cands[0].Value), nil
	}
	own, ok := o.TypeOf(site.Operand)
	if unknown(own, ok) {
		if !final {
			return nil, nil
		}
		return nil, ambiguous(site, site.Literal, candidateDomains(cands))
	}
	if isError(own) {
		return construct(cands[0].Value), nil
	}
	cands = filterCandidates(cands, func(c Candidate) bool { return o.Unifiable(own, c.Domain.Delta) })
	switch len(cands) {
	case 0:
		return nil, ilerr.New(ilerr.NewNoMatchingDomain{Positioner: site.Span, Subject: site.Literal, Carrier: own})
	case 1:
		return construct(cands[0].Value), nil
	}
	return nil, ambiguous(site, site.Literal, candidateDomains(cands))
}

func (r *Resolver) fallback(op string) kernel.Expansion {
	return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
		return b.App(b.Var(op), args...)
	}
}

// errorDelta stands in for a delta literal next to an ill-typed operand.
func (r *Resolver) errorDelta() kernel.Expansion {
	return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
		return b.Var("unreachable")
	}
}

func call(fn FunctionRef) kernel.Expansion {
	return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
		return b.App(b.Var(fn.Name), args...)
	}
}

func construct(ref ConstructorRef) kernel.Expansion {
	return func(b *kernel.Builder, _ []kernel.Term) kernel.Term {
		args := make([]kernel.Term, len(ref.Args))
		for i, lit := range ref.Args {
			switch lit.Kind {
			case kernel.LitInt:
				args[i] = b.Int(lit.Int)
			case kernel.LitFloat:
				args[i] = b.Float(lit.Float)
			default:
				args[i] = b.Text(lit.Text)
			}
		}
		return b.Ctor(ref.Ctor, args...)
	}
}

func ambiguous(site *kernel.Site, subject string, domains []*DomainDef) ilerr.IleError {
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = d.Name
	}
	err := ilerr.NewAmbiguousDomain{Positioner: site.Span, Subject: subject, Candidates: names}
	for _, d := range domains {
		err.Spans = append(err.Spans, d.Span)
	}
	return ilerr.New(err)
}

func filterCandidates(cands []Candidate, keep func(Candidate) bool) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func filterDomains(ds []*DomainDef, keep func(*DomainDef) bool) []*DomainDef {
	var out []*DomainDef
	for _, d := range ds {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func candidateDomains(cands []Candidate) []*DomainDef {
	out := make([]*DomainDef, len(cands))
	for i, c := range cands {
		out[i] = c.Domain
	}
	return out
}
