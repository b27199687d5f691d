package kernel

import (
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/types"
)

// SiteID identifies a resolution site. Zero means "not a site".
type SiteID int

type SiteKind int

const (
	// SiteDomainOp is an infix operator that a domain may interpret.
	SiteDomainOp SiteKind = iota + 1
	// SiteDelta is a delta literal awaiting its domain.
	SiteDelta
	// SitePatchFocus decides replace/transform and Option/Result lifting
	// for the updater of one patch field.
	SitePatchFocus
	// SiteTraverse picks List or Map functions for `[*]` and `[pred]`.
	SiteTraverse
	// SiteGenSource turns a List source of a generator bind into a generator.
	SiteGenSource
)

func (k SiteKind) String() string {
	switch k {
	case SiteDomainOp:
		return "domain-op"
	case SiteDelta:
		return "delta"
	case SitePatchFocus:
		return "patch-focus"
	case SiteTraverse:
		return "traverse"
	case SiteGenSource:
		return "gen-source"
	}
	return "site"
}

// Site is a lowering decision that depends on static types. The
// desugarer leaves a Var carrying the site ID, applied to Arity arguments;
// once decided, the whole application is replaced by an expansion.
type Site struct {
	ID    SiteID
	Kind  SiteKind
	Span  ast.Range
	Arity int

	// Operand is the node whose type drives the decision: the left
	// operand of a domain operator, the delta literal itself, the
	// application of a patch focus, the traversed container, or the
	// generator source.
	Operand NodeID
	// Value is the instruction node of a patch focus.
	Value NodeID

	Op        string
	Literal   string
	Qualifier string
	// Right is the delta site of a domain operator's right operand.
	Right SiteID

	Instr     ast.InstrKind
	Predicate bool
	// Path is the rendered patch path, for diagnostics.
	Path string
}

// Expansion builds the term that replaces a site applied to args.
type Expansion func(b *Builder, args []Term) Term

// Oracle answers type questions for site resolution, using the types
// inferred in the latest round.
type Oracle interface {
	TypeOf(NodeID) (types.Type, bool)
	// Unifiable reports whether a and b unify without committing anything.
	Unifiable(a, b types.Type) bool
}

// Sites is the set of resolution sites of one module.
type Sites struct {
	next SiteID
	byID map[SiteID]*Site
}

func NewSites() *Sites {
	return &Sites{byID: map[SiteID]*Site{}}
}

// New registers a site and assigns its ID.
func (s *Sites) New(site Site) *Site {
	s.next++
	site.ID = s.next
	stored := &site
	s.byID[site.ID] = stored
	return stored
}

func (s *Sites) Get(id SiteID) (*Site, bool) {
	site, ok := s.byID[id]
	return site, ok
}

// In returns the sites still present in t, in pre-order.
func (s *Sites) In(t Term) []*Site {
	var out []*Site
	Walk(t, func(n Term) bool {
		if v, ok := n.(*Var); ok && v.Site != 0 {
			if site, ok := s.byID[v.Site]; ok {
				out = append(out, site)
			}
		}
		return true
	})
	return out
}

// ExpandSites replaces every decided site application in t. Arguments are
// expanded before the site that consumes them.
func ExpandSites(t Term, sites *Sites, decided map[SiteID]Expansion, ids *IDGen) Term {
	var walk func(Term) Term
	walk = func(t Term) Term {
		head, args := Spine(t)
		if v, ok := head.(*Var); ok && v.Site != 0 {
			site, known := sites.Get(v.Site)
			expand, isDecided := decided[v.Site]
			if known && isDecided && len(args) >= site.Arity {
				expanded := make([]Term, len(args))
				for i, a := range args {
					expanded[i] = walk(a)
				}
				b := NewBuilder(ids).At(ast.RangeOf(t))
				out := expand(b, expanded[:site.Arity])
				return b.App(out, expanded[site.Arity:]...)
			}
		}
		return MapChildren(t, walk)
	}
	return walk(t)
}

// HasSites reports whether any resolution site remains in t.
func HasSites(t Term) bool {
	found := false
	Walk(t, func(n Term) bool {
		if v, ok := n.(*Var); ok && v.Site != 0 {
			found = true
		}
		return !found
	})
	return found
}
