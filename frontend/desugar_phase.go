package frontend

import (
	"github.com/aivi-lang/aivi/frontend/desugar"
)

// desugarPhase lowers every definition, domain operator and instance
// method into a kernel term. A definition that fails to lower is failed
// and takes no further part.
func (c *compilation) desugarPhase() {
	d := desugar.New(moduleEnv{u: c.u, names: c.byName}, c.u.Domains(), c.ids, c.sites)
	d.Annotations = c.annotations

	for _, b := range c.bindings {
		if b.state == Failed {
			continue
		}
		term, errs := d.Def(b.def)
		b.term = term
		if errs.HasError() {
			c.failBinding(b, errs)
		}
	}

	for _, inst := range c.instances {
		if inst.failed {
			continue
		}
		for _, m := range inst.decl.Methods {
			term, errs := d.Def(m)
			inst.methods = append(inst.methods, term)
			if errs.HasError() {
				c.errs = c.errs.Merge(errs)
				inst.failed = true
			}
		}
	}
}
