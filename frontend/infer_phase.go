package frontend

import (
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/infer"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/aivi-lang/aivi/internal/dag"
)

// inferencePhase checks the bindings group by group: the strongly
// connected components of the reference graph, dependencies first.
func (c *compilation) inferencePhase() {
	g := dag.NewGraph[*binding]()
	for _, b := range c.bindings {
		g.AddNode(b.name, b)
	}
	for _, b := range c.bindings {
		for _, dep := range c.references(b) {
			if _, ok := c.byName[dep]; ok {
				_ = g.AddEdge(dep, b.name)
			}
		}
	}
	for _, names := range g.Components() {
		group := make([]*binding, len(names))
		for i, name := range names {
			group[i], _ = g.Node(name)
		}
		c.logger.Debug("binding group", "members", names, "recursive", len(names) > 1 || g.Recursive(names[0]))
		c.checkGroup(group)
	}
}

// references returns the globals b may refer to. A domain operator site
// may become a call to any implementation of its operator.
func (c *compilation) references(b *binding) []string {
	if b.term == nil {
		return nil
	}
	refs := kernel.FreeVars(b.term).Slice()
	for _, site := range c.sites.In(b.term) {
		if site.Kind != kernel.SiteDomainOp {
			continue
		}
		for _, d := range c.domains {
			if _, ok := d.Operators[site.Op]; ok {
				refs = append(refs, domain.OperatorName(d.Name, site.Op))
			}
		}
	}
	return refs
}

func (c *compilation) checkGroup(group []*binding) {
	var live []*binding
	for _, b := range group {
		c.checked = append(c.checked, b)
		if b.state == Failed {
			c.checker.Define(b.name, types.Error{})
			continue
		}
		b.state = Solving
		live = append(live, b)
	}

	for len(live) > 0 {
		terms := make([]*kernel.Term, len(live))
		for i, b := range live {
			terms[i] = &b.term
		}
		bad, err := c.resolve(terms, func() kernel.Oracle {
			return c.checker.CheckGroup(c.inferBindings(live), true)
		})
		if err == nil {
			break
		}
		c.failBinding(live[bad], errorsOf(err))
		c.checker.Define(live[bad].name, types.Error{})
		live = append(live[:bad:bad], live[bad+1:]...)
	}
	if len(live) == 0 {
		return
	}

	res := c.checker.CheckGroup(c.inferBindings(live), false)
	for id, t := range res.Types {
		c.types[id] = t
	}
	if res.Failed() {
		// The group is checked as a whole, so its members fail together.
		// The diagnostic is reported once, on the first of them.
		c.failBinding(live[0], errorsOf(res.Err))
		for _, b := range live {
			c.failBinding(b, nil)
			c.checker.Define(b.name, types.Error{})
		}
		return
	}
	for i, b := range live {
		solved := res.Bindings[i]
		b.state = Solved
		b.scheme = solved.Scheme
		b.term = solved.Term
		c.checker.Define(b.name, b.scheme)
		c.exports = c.exports.WithValue(b.name, b.scheme)
		c.logger.Debug("solved binding", "name", b.name, "type", types.Show(b.scheme))
	}
}

func (c *compilation) inferBindings(group []*binding) []infer.Binding {
	out := make([]infer.Binding, len(group))
	for i, b := range group {
		out[i] = infer.Binding{Name: b.name, Value: b.term, Sig: b.sig, Span: b.def.Range}
	}
	return out
}

// instancePhase checks instance methods and builds their dictionaries.
// It runs after the bindings so that methods may use them.
func (c *compilation) instancePhase() {
	for _, d := range c.instances {
		if d.failed {
			continue
		}
		terms := make([]*kernel.Term, len(d.methods))
		for i := range d.methods {
			terms[i] = &d.methods[i]
		}
		if _, err := c.resolve(terms, func() kernel.Oracle {
			return c.checker.CheckInstance(d.inst, d.methodMap())
		}); err != nil {
			c.fail(err)
			continue
		}
		res := c.checker.CheckInstance(d.inst, d.methodMap())
		for id, t := range res.Types {
			c.types[id] = t
		}
		if res.Failed() {
			c.fail(res.Err)
			c.dicts = append(c.dicts, &TypedBinding{Name: d.inst.DictName, Scheme: types.Error{}, State: Failed, Span: d.decl.Range})
			continue
		}
		solved := res.Bindings[0]
		c.dicts = append(c.dicts, &TypedBinding{Name: solved.Name, Scheme: solved.Scheme, Term: solved.Term, State: Solved, Span: d.decl.Range})
	}
}
