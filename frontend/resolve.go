package frontend

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/desugar"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
)

// resolve decides the resolution sites left in terms. Each round probes
// the terms with inference, decides what the inferred types allow and
// expands the decided sites in place. Once no progress is made, or the
// round budget is spent, the remaining sites are decided with final set.
//
// On failure it returns the index of the term holding the failed site.
func (c *compilation) resolve(terms []*kernel.Term, probe func() kernel.Oracle) (int, ilerr.IleError) {
	final := false
	for round := 1; ; round++ {
		pending := c.pendingSites(terms)
		if len(pending) == 0 {
			return 0, nil
		}
		if round > c.cfg.MaxResolutionRounds {
			final = true
		}
		oracle := probe()
		decided := map[kernel.SiteID]kernel.Expansion{}
		for _, site := range pending {
			if err := c.decide(site, oracle, final, decided); err != nil {
				return c.owner(terms, site.ID), err
			}
		}
		c.logger.Debug("resolution round", "round", round, "pending", len(pending), "decided", len(decided), "final", final)
		if len(decided) == 0 {
			if final {
				site := pending[0]
				return c.owner(terms, site.ID), ilerr.New(ilerr.Unclassified{
					From:       fmt.Errorf("could not decide %v site", site.Kind),
					Positioner: site.Span,
				})
			}
			final = true
			continue
		}
		for _, t := range terms {
			*t = kernel.ExpandSites(*t, c.sites, decided, c.ids)
		}
	}
}

// pendingSites lists the open sites of terms. A delta literal that is the
// right operand of a domain operator is decided together with it.
func (c *compilation) pendingSites(terms []*kernel.Term) []*kernel.Site {
	var all []*kernel.Site
	owned := map[kernel.SiteID]bool{}
	for _, t := range terms {
		for _, site := range c.sites.In(*t) {
			all = append(all, site)
			if site.Kind == kernel.SiteDomainOp && site.Right != 0 {
				owned[site.Right] = true
			}
		}
	}
	out := all[:0]
	for _, site := range all {
		if !owned[site.ID] {
			out = append(out, site)
		}
	}
	return out
}

func (c *compilation) decide(site *kernel.Site, o kernel.Oracle, final bool, decided map[kernel.SiteID]kernel.Expansion) ilerr.IleError {
	var (
		exp kernel.Expansion
		err ilerr.IleError
	)
	switch site.Kind {
	case kernel.SiteDomainOp:
		var delta *kernel.Site
		if site.Right != 0 {
			delta, _ = c.sites.Get(site.Right)
		}
		var lit kernel.Expansion
		exp, lit, err = c.resolver.ResolveOperator(site, delta, o, final)
		if lit != nil && delta != nil {
			decided[delta.ID] = lit
		}
	case kernel.SiteDelta:
		exp, err = c.resolver.ResolveLiteral(site, o, final)
	case kernel.SitePatchFocus:
		exp, err = desugar.ResolveFocus(site, o, final)
	case kernel.SiteTraverse:
		exp, err = desugar.ResolveTraverse(site, o, final)
	case kernel.SiteGenSource:
		exp, err = desugar.ResolveGenSource(site, o, final)
	default:
		err = ilerr.New(ilerr.Unclassified{From: fmt.Errorf("unknown site kind %v", site.Kind), Positioner: site.Span})
	}
	if err != nil {
		return err
	}
	if exp != nil {
		decided[site.ID] = exp
	}
	return nil
}

// owner returns the index of the term containing the site.
func (c *compilation) owner(terms []*kernel.Term, id kernel.SiteID) int {
	for i, t := range terms {
		found := false
		kernel.Walk(*t, func(n kernel.Term) bool {
			if v, ok := n.(*kernel.Var); ok && v.Site == id {
				found = true
			}
			return !found
		})
		if found {
			return i
		}
	}
	return 0
}
