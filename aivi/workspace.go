// Package aivi checks sets of AIVI modules.
//
// A Workspace orders modules by their imports and compiles each level of
// the import graph in parallel. Module results are memoised: a module is
// compiled again only when its source, or the result of one of its
// imports, changed.
package aivi

import (
	"context"
	"encoding/binary"
	"slices"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/aivi-lang/aivi/frontend"
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/internal/dag"
	"github.com/aivi-lang/aivi/internal/log"
)

var workspaceLogger = log.DefaultLogger.With("section", "workspace")

type Config struct {
	Frontend frontend.Config
	// Parallelism bounds how many modules are compiled at once.
	Parallelism int
}

func DefaultConfig() Config {
	return Config{Frontend: frontend.DefaultConfig(), Parallelism: 4}
}

// Workspace compiles modules and keeps their results for later builds.
// It is safe for concurrent use.
type Workspace struct {
	cfg Config

	// cache maps memo keys to results. It is replaced as a whole, so a
	// reader sees either all of a result or none of it.
	cache atomic.Pointer[immutable.Map[uint64, *frontend.Result]]

	hits, misses atomic.Int64
}

func New(cfg Config) *Workspace {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	w := &Workspace{cfg: cfg}
	w.cache.Store(immutable.NewMap[uint64, *frontend.Result](nil))
	return w
}

// Build is the outcome of one Check.
type Build struct {
	// Levels lists the modules by import level: every module comes after
	// the modules it uses.
	Levels  [][]string
	Results map[string]*frontend.Result
	// Keys holds the memo key of each module, zero for modules that are
	// not memoised.
	Keys map[string]uint64
}

// Diagnostics collects the errors of all modules, in level order.
func (b *Build) Diagnostics() *ilerr.Errors {
	var out *ilerr.Errors
	for _, level := range b.Levels {
		for _, name := range level {
			// Results are shared with the cache and must not be appended to.
			if errs := b.Results[name].Diagnostics.Errors(); len(errs) > 0 {
				out = out.With(slices.Clone(errs)...)
			}
		}
	}
	return out
}

func (b *Build) Failed() bool {
	for _, r := range b.Results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Check compiles modules in import order. Uses of modules outside the set
// are reported by the module that has them. Check returns an error for
// duplicate module names, import cycles and cancellation of ctx; compile
// errors are diagnostics of the build.
func (w *Workspace) Check(ctx context.Context, modules []*ast.Module) (*Build, error) {
	g := dag.NewGraph[*ast.Module]()
	for _, mod := range modules {
		if _, dup := g.Node(mod.Name); dup {
			return nil, errors.Errorf("module %q is defined more than once", mod.Name)
		}
		g.AddNode(mod.Name, mod)
	}
	for _, mod := range modules {
		for _, use := range mod.Uses {
			if _, ok := g.Node(use.Module); ok {
				_ = g.AddEdge(use.Module, mod.Name)
			}
		}
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, errors.Wrap(err, "ordering modules")
	}

	build := &Build{
		Levels:  levels,
		Results: make(map[string]*frontend.Result, len(modules)),
		Keys:    make(map[string]uint64, len(modules)),
	}
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		workspaceLogger.Debug("checking level", "level", i, "modules", level)
		results := make([]*frontend.Result, len(level))
		keys := make([]uint64, len(level))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(w.cfg.Parallelism)
		for j, name := range level {
			mod, _ := g.Node(name)
			workspaceLogger.Debug("checking module", "module", name, "upstream", g.Upstream(name))
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				results[j], keys[j] = w.compile(mod, build)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		// Modules of one level do not use each other, so their results
		// are recorded only once the level is done.
		for j, name := range level {
			build.Results[name] = results[j]
			build.Keys[name] = keys[j]
		}
	}
	workspaceLogger.Info("checked modules", "modules", len(modules), "levels", len(levels), "failed", build.Failed())
	return build, nil
}

// compile returns the result of mod, from the cache when possible. It
// only reads the results of earlier levels from build.
func (w *Workspace) compile(mod *ast.Module, build *Build) (*frontend.Result, uint64) {
	imports := make(map[string]*frontend.Result, len(mod.Uses))
	for _, use := range mod.Uses {
		if r, ok := build.Results[use.Module]; ok {
			imports[use.Module] = r
		}
	}

	key, cacheable := w.key(mod, build)
	if cacheable {
		if r, ok := w.cache.Load().Get(key); ok {
			w.hits.Add(1)
			workspaceLogger.Debug("memoised module", "module", mod.Name, "key", key)
			return r, key
		}
	}
	w.misses.Add(1)
	r := frontend.CompileModule(mod, imports, w.cfg.Frontend)
	if !cacheable {
		return r, 0
	}
	w.publish(key, r)
	return r, key
}

// key derives the memo key of mod from its name, its content hash and the
// keys of its imports. Modules built without source text, or using a module that
// is not memoised, are not cacheable.
func (w *Workspace) key(mod *ast.Module, build *Build) (uint64, bool) {
	if len(mod.Source) == 0 {
		return 0, false
	}
	h := xxh3.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	_, _ = h.WriteString(mod.Name)
	write(xxh3.Hash(mod.Source))
	write(uint64(w.cfg.Frontend.MaxResolutionRounds))

	uses := make([]string, 0, len(mod.Uses))
	for _, use := range mod.Uses {
		uses = append(uses, use.Module)
	}
	slices.Sort(uses)
	for _, name := range slices.Compact(uses) {
		_, _ = h.WriteString(name)
		k, ok := build.Keys[name]
		if !ok {
			// Not part of the workspace: the module reports it, and the
			// missing import is part of its key.
			write(0)
			continue
		}
		if k == 0 {
			return 0, false
		}
		write(k)
	}
	return h.Sum64(), true
}

func (w *Workspace) publish(key uint64, r *frontend.Result) {
	for {
		old := w.cache.Load()
		if w.cache.CompareAndSwap(old, old.Set(key, r)) {
			return
		}
	}
}

// Lookup returns a memoised result by key.
func (w *Workspace) Lookup(key uint64) (*frontend.Result, bool) {
	return w.cache.Load().Get(key)
}

// Stats reports the number of memo hits and misses so far.
func (w *Workspace) Stats() (hits, misses int64) {
	return w.hits.Load(), w.misses.Load()
}

// Len returns the number of memoised results.
func (w *Workspace) Len() int {
	return w.cache.Load().Len()
}
