// Package frontend compiles one AIVI module: it registers the module's
// declarations, lowers its definitions into the kernel calculus, resolves
// the type-directed lowering sites and infers and elaborates every binding.
package frontend

import (
	"fmt"
	"log/slog"

	"github.com/zeebo/xxh3"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/desugar"
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/infer"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/aivi-lang/aivi/internal/log"
)

var packageLogger = log.DefaultLogger.With("section", "module")

// Config tunes the module pipeline.
type Config struct {
	// MaxResolutionRounds bounds the probe/resolve rounds of one binding
	// group. Sites still open afterwards are decided with the types known
	// at that point.
	MaxResolutionRounds int
}

func DefaultConfig() Config {
	return Config{MaxResolutionRounds: 8}
}

// BindingState tracks a top-level binding through the pipeline.
type BindingState int

const (
	Collecting BindingState = iota
	Solving
	Solved
	Failed
)

func (s BindingState) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Solving:
		return "solving"
	case Solved:
		return "solved"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("BindingState(%d)", int(s))
}

// TypedBinding is a top-level binding of the typed kernel. A failed
// binding has the Error scheme and may have no term.
type TypedBinding struct {
	Name   string
	Scheme types.Type
	Term   kernel.Term
	State  BindingState
	Span   ast.Range
}

// TypedKernel is the elaborated module: bindings in dependency order,
// instance dictionaries, and the type of every kernel node.
type TypedKernel struct {
	Bindings     []*TypedBinding
	Dictionaries []*TypedBinding
	Types        map[kernel.NodeID]types.Type
}

// Lookup finds a binding or dictionary by name.
func (k *TypedKernel) Lookup(name string) (*TypedBinding, bool) {
	for _, group := range [][]*TypedBinding{k.Bindings, k.Dictionaries} {
		for _, b := range group {
			if b.Name == name {
				return b, true
			}
		}
	}
	return nil, false
}

// Result is the outcome of compiling one module. It is immutable once
// returned.
type Result struct {
	Module      *ast.Module
	Kernel      *TypedKernel
	Diagnostics *ilerr.Errors
	// Signatures holds the schemes of the solved bindings.
	Signatures map[string]types.Type
	Domains    *domain.Table
	Instances  []*infer.Instance
	// Exports is what importers see: the module's declarations and the
	// schemes of its solved bindings.
	Exports *infer.Universe
	// Hash is the content hash of the module source, zero when the
	// module was not built from source text.
	Hash uint64
}

// State returns the state of a top-level binding.
func (r *Result) State(name string) (BindingState, bool) {
	b, ok := r.Kernel.Lookup(name)
	if !ok {
		return Collecting, false
	}
	return b.State, true
}

func (r *Result) Failed() bool { return r.Diagnostics.HasError() }

// binding is a top-level definition on its way through the pipeline.
// Domain operator implementations are bindings too, named after
// domain.OperatorName.
type binding struct {
	name  string
	def   *ast.Def
	sig   types.Type
	term  kernel.Term
	state BindingState

	scheme types.Type
	errs   *ilerr.Errors
}

type instanceDecl struct {
	decl    *ast.InstanceDecl
	inst    *infer.Instance
	names   []string
	methods []kernel.Term
	failed  bool
}

func (d *instanceDecl) methodMap() map[string]kernel.Term {
	out := make(map[string]kernel.Term, len(d.names))
	for i, name := range d.names {
		out[name] = d.methods[i]
	}
	return out
}

// compilation holds the state of one CompileModule call.
type compilation struct {
	mod    *ast.Module
	cfg    Config
	logger *slog.Logger

	ids         *kernel.IDGen
	sites       *kernel.Sites
	annotations map[kernel.NodeID]ast.TypeExpr
	checker     *infer.Checker
	resolver    *domain.Resolver

	// u is the scope of the module; exports only holds what the module
	// itself declares.
	u       *infer.Universe
	exports *infer.Universe

	bindings  []*binding
	byName    map[string]*binding
	instances []*instanceDecl
	domains   []*domain.DomainDef

	checked []*binding
	dicts   []*TypedBinding
	types   map[kernel.NodeID]types.Type
	errs    *ilerr.Errors
}

// CompileModule compiles mod against the results of the modules it uses.
// It never fails as a whole: ill-typed bindings are reported in the
// diagnostics, get the Error type and do not affect the others.
func CompileModule(mod *ast.Module, imports map[string]*Result, cfg Config) *Result {
	if cfg.MaxResolutionRounds <= 0 {
		cfg.MaxResolutionRounds = DefaultConfig().MaxResolutionRounds
	}
	c := &compilation{
		mod:         mod,
		cfg:         cfg,
		logger:      packageLogger.With("module", mod.Name),
		ids:         &kernel.IDGen{},
		sites:       kernel.NewSites(),
		annotations: map[kernel.NodeID]ast.TypeExpr{},
		exports:     infer.NewUniverse(),
		byName:      map[string]*binding{},
		types:       map[kernel.NodeID]types.Type{},
	}
	c.importPhase(imports)
	c.checker = infer.NewChecker(c.u, c.ids, c.annotations)
	c.declarePhase()
	c.resolver = domain.NewResolver(c.u.Domains(), func(name string) bool {
		_, ok := c.checker.Universe().LookupValue(name)
		return ok
	})
	c.desugarPhase()
	c.inferencePhase()
	c.instancePhase()
	return c.result()
}

func (c *compilation) importPhase(imports map[string]*Result) {
	c.u = infer.Prelude()
	for _, use := range c.mod.Uses {
		imp, ok := imports[use.Module]
		if !ok || imp == nil {
			c.fail(ilerr.New(ilerr.NewUnknownModule{Positioner: use.Range, Name: use.Module}))
			continue
		}
		c.u = c.u.Merge(imp.Exports)
	}
}

func (c *compilation) fail(err ilerr.IleError) {
	c.errs = c.errs.With(err)
}

// failBinding marks b failed. Later groups see it with the Error type so
// its failure does not cascade.
func (c *compilation) failBinding(b *binding, errs *ilerr.Errors) {
	b.state = Failed
	b.scheme = types.Error{}
	b.errs = b.errs.Merge(errs)
	c.logger.Debug("binding failed", "name", b.name, "errors", errs)
}

func (c *compilation) result() *Result {
	k := &TypedKernel{Types: c.types, Dictionaries: c.dicts}
	sigs := map[string]types.Type{}
	errs := c.errs
	for _, b := range c.checked {
		errs = errs.Merge(b.errs)
		k.Bindings = append(k.Bindings, &TypedBinding{
			Name:   b.name,
			Scheme: b.scheme,
			Term:   b.term,
			State:  b.state,
			Span:   b.def.Range,
		})
		if b.state == Solved {
			sigs[b.name] = b.scheme
		}
	}
	insts := make([]*infer.Instance, 0, len(c.instances))
	for _, d := range c.instances {
		if d.inst != nil {
			insts = append(insts, d.inst)
		}
	}
	r := &Result{
		Module:      c.mod,
		Kernel:      k,
		Diagnostics: errs,
		Signatures:  sigs,
		Domains:     domain.NewTable(c.domains...),
		Instances:   insts,
		Exports:     c.exports,
	}
	if len(c.mod.Source) > 0 {
		r.Hash = xxh3.Hash(c.mod.Source)
	}
	c.logger.Info("compiled module", "bindings", len(k.Bindings), "dictionaries", len(k.Dictionaries), "errors", errs.Len())
	return r
}

// moduleEnv is the scope seen by the desugarer: the universe plus the
// names of the module's own bindings, which are not in the universe
// until they are checked.
type moduleEnv struct {
	u     *infer.Universe
	names map[string]*binding
}

var _ desugar.Env = moduleEnv{}

func (e moduleEnv) Constructor(name string) (int, int, bool) {
	return e.u.Constructor(name)
}

func (e moduleEnv) IsGlobal(name string) bool {
	if _, ok := e.names[name]; ok {
		return true
	}
	return e.u.IsGlobal(name)
}
