package frontend

import (
	"fmt"
	"slices"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/domain"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/infer"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// add applies a declaration to both the module scope and its exports.
func (c *compilation) add(f func(*infer.Universe) *infer.Universe) {
	c.u = f(c.u)
	c.exports = f(c.exports)
	c.checker.SetUniverse(c.u)
}

// declarePhase registers the declarations of the module. Type names come
// first so that any declaration may mention any type of the module.
func (c *compilation) declarePhase() {
	var typeDecls []*ast.TypeDecl
	for _, decl := range c.mod.Decls {
		switch decl := decl.(type) {
		case *ast.TypeDecl:
			typeDecls = append(typeDecls, decl)
		case *ast.DomainDecl:
			if decl.Delta != nil {
				typeDecls = append(typeDecls, decl.Delta)
			}
		}
	}
	for _, td := range typeDecls {
		c.declareTypeName(td)
	}
	for _, td := range typeDecls {
		c.declareCtors(td)
	}
	for _, decl := range c.mod.Decls {
		if cd, ok := decl.(*ast.ClassDecl); ok {
			c.declareClass(cd)
		}
	}
	for _, decl := range c.mod.Decls {
		switch decl := decl.(type) {
		case *ast.InstanceDecl:
			c.declareInstance(decl)
		case *ast.DomainDecl:
			c.declareDomain(decl)
		case *ast.Def:
			c.declareDef(decl.Name, decl)
		}
	}
	c.logger.Debug("declared module",
		"bindings", len(c.bindings),
		"instances", len(c.instances),
		"domains", len(c.domains))
}

func (c *compilation) declareTypeName(td *ast.TypeDecl) {
	def := types.TypeDef{Params: td.Params}
	if td.IsAlias() {
		def.Alias = td.Alias
	} else {
		def.Con = &types.Con{Name: td.Name, Kind: types.ArrowKind(len(td.Params))}
	}
	c.add(func(u *infer.Universe) *infer.Universe { return u.WithType(td.Name, def) })
}

func (c *compilation) declareCtors(td *ast.TypeDecl) {
	if td.IsAlias() {
		return
	}
	def, _ := c.u.LookupType(td.Name)
	bound := make(map[string]*types.Var, len(td.Params))
	vars := make([]*types.Var, len(td.Params))
	params := make([]types.Type, len(td.Params))
	for i, p := range td.Params {
		vars[i] = c.checker.Fresh().Star()
		bound[p], params[i] = vars[i], vars[i]
	}
	result := types.Apply(def.Con, params...)

	for _, ctor := range td.Ctors {
		args := make([]types.Type, 0, len(ctor.Args)+1)
		ok := true
		for _, arg := range ctor.Args {
			t, err := c.checker.Convert(arg, bound)
			if err != nil {
				c.fail(err)
				ok = false
				break
			}
			args = append(args, t)
		}
		if ok && len(bound) > len(td.Params) {
			c.fail(ilerr.New(ilerr.NewUndefinedType{
				Positioner: ctor.Range,
				Message:    fmt.Sprintf("constructor '%s' mentions a type variable that is not a parameter of '%s'", ctor.Name, td.Name),
			}))
			for name := range bound {
				if !slices.Contains(td.Params, name) {
					delete(bound, name)
				}
			}
			ok = false
		}
		if !ok {
			continue
		}
		info := &infer.CtorInfo{
			Name:     ctor.Name,
			TypeName: td.Name,
			Scheme:   types.Quantify(vars, nil, types.Fn(append(args, result)...)),
			Arity:    len(ctor.Args),
			Siblings: len(td.Ctors),
			Span:     ctor.Range,
		}
		c.add(func(u *infer.Universe) *infer.Universe { return u.WithCtor(info) })
	}
}

func (c *compilation) declareClass(cd *ast.ClassDecl) {
	param := c.checker.Fresh().Var(types.ArrowKind(cd.ParamArity))
	def := &infer.ClassDef{Name: cd.Name, Param: param, Methods: map[string]types.Type{}, Span: cd.Range}
	for _, m := range cd.Methods {
		t, err := c.checker.Convert(m.Type, map[string]*types.Var{cd.Param: param})
		if err != nil {
			c.fail(err)
			continue
		}
		def.Methods[m.Name] = t
	}
	c.add(func(u *infer.Universe) *infer.Universe { return u.WithClass(def) })
}

func (c *compilation) declareInstance(id *ast.InstanceDecl) {
	d := &instanceDecl{decl: id}
	c.instances = append(c.instances, d)
	if _, ok := c.u.LookupClass(id.Class); !ok {
		c.fail(ilerr.New(ilerr.NewUndefinedType{Positioner: id.Range, Message: fmt.Sprintf("class '%s' is not defined", id.Class)}))
		d.failed = true
		return
	}
	bound := map[string]*types.Var{}
	head, err := c.checker.Convert(id.Head, bound)
	if err != nil {
		c.fail(err)
		d.failed = true
		return
	}
	context, err := c.checker.ConvertPreds(id.Context, bound)
	if err != nil {
		c.fail(err)
		d.failed = true
		return
	}
	d.inst = &infer.Instance{
		Class:    id.Class,
		Vars:     types.Vars(head),
		Context:  context,
		Head:     head,
		DictName: infer.DictName(id.Class, head),
		Span:     id.Range,
	}
	for _, m := range id.Methods {
		d.names = append(d.names, m.Name)
	}
	c.add(func(u *infer.Universe) *infer.Universe { return u.WithInstance(d.inst) })
}

// declareDomain registers a domain and declares its operators as bindings.
func (c *compilation) declareDomain(dd *ast.DomainDecl) {
	invalid := func(at ast.Positioner, reason string) {
		c.fail(ilerr.New(ilerr.NewInvalidDomain{Positioner: ast.RangeOf(at), Domain: dd.Name, Reason: reason}))
	}
	if dd.Delta == nil {
		invalid(dd, "a domain needs a Delta type")
		return
	}
	if len(dd.Delta.Params) > 0 || dd.Delta.IsAlias() {
		invalid(dd.Delta, "the Delta type must be a data type without parameters")
		return
	}
	carrier, err := c.checker.Convert(dd.Carrier, map[string]*types.Var{})
	if err != nil {
		c.fail(err)
		return
	}
	deltaDef, _ := c.u.LookupType(dd.Delta.Name)
	def := &domain.DomainDef{
		Name:          dd.Name,
		Carrier:       carrier,
		Delta:         deltaDef.Con,
		Operators:     map[string]domain.FunctionRef{},
		DeltaLiterals: map[string]domain.ConstructorRef{},
		Span:          dd.Range,
	}

	for _, op := range dd.Ops {
		name := domain.OperatorName(dd.Name, op.Name)
		b := c.declareDef(name, op)
		def.Operators[op.Name] = domain.FunctionRef{Name: name, Type: b.sig, Span: op.Range}
	}

	lits := kernel.NewBuilder(c.ids)
	for _, lit := range dd.Literals {
		info, ok := c.u.LookupCtor(lit.Ctor)
		if !ok || info.TypeName != dd.Delta.Name {
			invalid(lit, fmt.Sprintf("literal '%s' must build a constructor of '%s'", lit.Text, dd.Delta.Name))
			continue
		}
		if len(lit.Args) != info.Arity {
			invalid(lit, fmt.Sprintf("literal '%s' gives %d arguments to '%s', which takes %d", lit.Text, len(lit.Args), lit.Ctor, info.Arity))
			continue
		}
		ref := domain.ConstructorRef{Ctor: lit.Ctor, Span: lit.Range}
		constant := true
		for _, arg := range lit.Args {
			b := lits.At(arg)
			switch arg := arg.(type) {
			case *ast.IntLit:
				ref.Args = append(ref.Args, b.Int(arg.Value))
			case *ast.FloatLit:
				ref.Args = append(ref.Args, b.Float(arg.Value))
			case *ast.TextLit:
				ref.Args = append(ref.Args, b.Text(arg.Value))
			default:
				constant = false
			}
		}
		if !constant {
			invalid(lit, fmt.Sprintf("literal '%s' must apply '%s' to constants", lit.Text, lit.Ctor))
			continue
		}
		def.DeltaLiterals[lit.Text] = ref
	}

	c.domains = append(c.domains, def)
	table := domain.NewTable(def)
	c.add(func(u *infer.Universe) *infer.Universe { return u.WithDomains(table) })
}

func (c *compilation) declareDef(name string, def *ast.Def) *binding {
	b := &binding{name: name, def: def, state: Collecting}
	if _, dup := c.byName[name]; dup {
		c.fail(ilerr.New(ilerr.Unclassified{From: fmt.Errorf("'%s' is defined more than once", name), Positioner: def.Range}))
		return b
	}
	c.bindings = append(c.bindings, b)
	c.byName[name] = b
	if def.Sig != nil {
		sig, err := c.checker.Scheme(def.Sig)
		if err != nil {
			c.failBinding(b, errorsOf(err))
			return b
		}
		b.sig = sig
	}
	return b
}

func errorsOf(errs ...ilerr.IleError) *ilerr.Errors {
	var out *ilerr.Errors
	return out.With(errs...)
}
