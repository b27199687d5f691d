package desugar

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
)

// patch lowers `target <| { ... }`. Fields apply left to right, each to
// the result of the previous one.
func (d *Desugarer) patch(e *ast.Patch, sc scope) kernel.Term {
	subject := d.expr(e.Target, sc)
	for _, f := range e.Fields {
		subject = d.patchField(f, subject, sc)
	}
	return subject
}

func (d *Desugarer) invalidPath(f ast.PatchField, at ast.Positioner, reason string) {
	d.fail(ilerr.New(ilerr.NewInvalidPatchPath{Positioner: ast.RangeOf(at), Path: ast.PathString(f.Path), Reason: reason}))
}

func (d *Desugarer) patchField(f ast.PatchField, subject kernel.Term, sc scope) kernel.Term {
	if len(f.Path) == 0 {
		d.invalidPath(f, f.Range, "empty path")
		return subject
	}
	if f.Instr == ast.InstrRemove {
		for _, seg := range f.Path {
			switch seg := seg.(type) {
			case *ast.AllSeg, *ast.PrismSeg:
				d.invalidPath(f, seg, "cannot remove through "+seg.String())
				return subject
			case *ast.IndexSeg:
				if d.isPredicate(seg.Expr, sc) {
					d.invalidPath(f, seg, "cannot remove through a predicate selector")
					return subject
				}
			}
		}
	} else if f.Value == nil {
		d.invalidPath(f, f.Range, "missing instruction")
		return subject
	}
	var value kernel.Term
	if f.Value != nil {
		value = d.expr(f.Value, sc)
	}
	return d.applyPath(f, 0, subject, value, sc)
}

// effectiveKind decides what it can of an auto instruction from its shape:
// a lambda transforms, a literal replaces.
func effectiveKind(f ast.PatchField) ast.InstrKind {
	if f.Instr != ast.InstrAuto {
		return f.Instr
	}
	switch f.Value.(type) {
	case *ast.Lambda:
		return ast.InstrTransform
	case *ast.IntLit, *ast.FloatLit, *ast.TextLit, *ast.DeltaLit, *ast.Record, *ast.ListLit:
		return ast.InstrReplace
	}
	return ast.InstrAuto
}

// applyPath rewrites subject at f.Path[i:].
func (d *Desugarer) applyPath(f ast.PatchField, i int, subject kernel.Term, value kernel.Term, sc scope) kernel.Term {
	seg := f.Path[i]
	last := i == len(f.Path)-1
	b := d.at(seg)
	switch seg := seg.(type) {
	case *ast.FieldSeg:
		if last && f.Instr == ast.InstrRemove {
			return b.Delete(subject, seg.Name)
		}
		return b.Update(subject, seg.Name, d.focus(f, i+1, value, sc))

	case *ast.AllSeg:
		site := d.sites.New(kernel.Site{Kind: kernel.SiteTraverse, Span: seg.Range, Arity: 2, Path: ast.PathString(f.Path)})
		site.Operand = subject.NodeID()
		return b.App(b.Site(site), d.element(f, i+1, value, sc), subject)

	case *ast.IndexSeg:
		if d.isPredicate(seg.Expr, sc) {
			it := b.Fresh("it")
			outer := d.implicit
			d.implicit = it
			pred := b.Lam(it, d.expr(seg.Expr, sc.with(it)))
			d.implicit = outer
			site := d.sites.New(kernel.Site{Kind: kernel.SiteTraverse, Span: seg.Range, Arity: 3, Predicate: true, Path: ast.PathString(f.Path)})
			site.Operand = subject.NodeID()
			return b.App(b.Site(site), pred, d.element(f, i+1, value, sc), subject)
		}
		key := d.expr(seg.Expr, sc)
		if !last {
			y := b.Fresh("y")
			return b.Call(NameMapUpdate, key, b.Lam(y, d.applyPath(f, i+1, b.Var(y), value, sc)), subject)
		}
		switch effectiveKind(f) {
		case ast.InstrRemove:
			return b.Call(NameMapRemove, key, subject)
		case ast.InstrReplace, ast.InstrForce:
			return b.Call(NameMapInsert, key, value, subject)
		}
		return b.Call(NameMapUpdate, key, d.instruction(f, value), subject)

	case *ast.PrismSeg:
		arity, _, ok := d.env.Constructor(seg.Ctor)
		if !ok {
			d.invalidPath(f, seg, fmt.Sprintf("unknown constructor '%s'", seg.Ctor))
			return subject
		}
		if arity != 1 {
			d.invalidPath(f, seg, fmt.Sprintf("constructor '%s' has %d fields, a prism needs exactly one", seg.Ctor, arity))
			return subject
		}
		y := b.Fresh("y")
		other := b.Fresh("o")
		next := payloadFocus(f.Path, i+1)
		var inner kernel.Term
		if next == len(f.Path) {
			inner = b.App(d.instruction(f, value), b.Var(y))
		} else {
			inner = d.applyPath(f, next, b.Var(y), value, sc)
		}
		return b.Case(subject,
			kernel.Alt{Pattern: b.PCtor(seg.Ctor, b.PVar(y)), Body: b.Ctor(seg.Ctor, inner)},
			kernel.Alt{Pattern: b.PVar(other), Body: b.Var(other)},
		)
	}
	d.invalidPath(f, seg, "unsupported segment")
	return subject
}

// payloadFocus skips the `value` segment that names the payload right
// after a prism, as in `Ok.value`. A payload field called value is reached
// with `Ok.value.value`.
func payloadFocus(path []ast.PathSeg, next int) int {
	if next < len(path) {
		if seg, ok := path[next].(*ast.FieldSeg); ok && seg.Name == "value" {
			return next + 1
		}
	}
	return next
}

// focus builds the updater for a record field whose remaining path starts
// at f.Path[next]. Intermediate updaters go through a focus site of their
// own so they can be lifted over Option and Result fields.
func (d *Desugarer) focus(f ast.PatchField, next int, value kernel.Term, sc scope) kernel.Term {
	if next == len(f.Path) {
		return d.instruction(f, value)
	}
	b := d.at(f.Path[next])
	y := b.Fresh("y")
	inner := b.Lam(y, d.applyPath(f, next, b.Var(y), value, sc))
	instr := ast.InstrTransform
	if f.Instr == ast.InstrRemove {
		instr = ast.InstrRemove
	}
	return d.focusSite(b, f, instr, inner)
}

// element builds the function applied to each traversed element.
func (d *Desugarer) element(f ast.PatchField, next int, value kernel.Term, sc scope) kernel.Term {
	if next == len(f.Path) {
		return d.instruction(f, value)
	}
	b := d.at(f.Path[next])
	y := b.Fresh("y")
	return b.Lam(y, d.applyPath(f, next, b.Var(y), value, sc))
}

// instruction wraps the lowered instruction in the focus site that decides
// between replacing and transforming, and whether to lift.
func (d *Desugarer) instruction(f ast.PatchField, value kernel.Term) kernel.Term {
	return d.focusSite(d.at(f), f, effectiveKind(f), value)
}

func (d *Desugarer) focusSite(b *kernel.Builder, f ast.PatchField, instr ast.InstrKind, value kernel.Term) kernel.Term {
	site := d.sites.New(kernel.Site{
		Kind:  kernel.SitePatchFocus,
		Span:  b.Span(),
		Arity: 1,
		Instr: instr,
		Value: value.NodeID(),
		Path:  ast.PathString(f.Path),
	})
	app := b.App(b.Site(site), value)
	site.Operand = app.NodeID()
	return app
}

// isPredicate reports whether a selector expression is an element
// predicate: it mentions `_` or a name bound nowhere.
func (d *Desugarer) isPredicate(e ast.Expr, sc scope) bool {
	found := false
	walkIdents(e, sc, func(id *ast.Ident, sc scope) {
		if id.Name == "_" {
			found = true
			return
		}
		if !sc.has(id.Name) && !d.env.IsGlobal(id.Name) && !ast.IsConstructorName(id.Name) {
			found = true
		}
	})
	return found
}

// walkIdents visits the identifiers of e with the scope they occur in.
func walkIdents(e ast.Expr, sc scope, visit func(*ast.Ident, scope)) {
	var walk func(ast.Expr, scope)
	walk = func(e ast.Expr, sc scope) {
		switch e := e.(type) {
		case *ast.Ident:
			visit(e, sc)
		case *ast.Lambda:
			inner := sc
			for _, p := range e.Params {
				inner = inner.with(patternNames(p)...)
			}
			walk(e.Body, inner)
		case *ast.Call:
			walk(e.Func, sc)
			for _, a := range e.Args {
				walk(a, sc)
			}
		case *ast.Binary:
			walk(e.Left, sc)
			walk(e.Right, sc)
		case *ast.Record:
			for _, f := range e.Fields {
				walk(f.Value, sc)
			}
		case *ast.FieldAccess:
			walk(e.Base, sc)
		case *ast.ListLit:
			for _, item := range e.Items {
				walk(item, sc)
			}
		case *ast.If:
			walk(e.Cond, sc)
			walk(e.Then, sc)
			walk(e.Else, sc)
		case *ast.Match:
			if e.Scrutinee != nil {
				walk(e.Scrutinee, sc)
			}
			for _, a := range e.Arms {
				inner := sc.with(patternNames(a.Pattern)...)
				if a.Guard != nil {
					walk(a.Guard, inner)
				}
				walk(a.Body, inner)
			}
		case *ast.Annot:
			walk(e.Expr, sc)
		case *ast.ResultOr:
			walk(e.Base, sc)
			if e.Fallback != nil {
				walk(e.Fallback, sc)
			}
		}
	}
	walk(e, sc)
}

func liftOf(field types.Type) (string, types.Type) {
	head, args := types.Spine(field)
	con, ok := head.(*types.Con)
	if !ok {
		return "", nil
	}
	switch {
	case con.Name == types.OptionCon.Name && len(args) == 1:
		return NameMapOption, args[0]
	case con.Name == types.ResultCon.Name && len(args) == 2:
		return NameMapResult, args[1]
	}
	return "", nil
}

func isUnknown(t types.Type, ok bool) bool {
	if !ok || t == nil {
		return true
	}
	_, isVar := t.(*types.Var)
	return isVar
}

func replaceWith(b *kernel.Builder, args []kernel.Term) kernel.Term {
	return b.Lam(b.Fresh("_"), args[0])
}

func transformWith(_ *kernel.Builder, args []kernel.Term) kernel.Term {
	return args[0]
}

func lifted(name string, inner kernel.Expansion) kernel.Expansion {
	return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
		return b.Call(name, inner(b, args))
	}
}

// ResolveFocus decides a patch focus site from the field type F and the
// instruction type V. A replacement becomes `\_. v`, a transformation `v`
// itself, and either is wrapped in mapOption or mapResult when it fits the
// payload of an Option or Result field instead of the field.
func ResolveFocus(site *kernel.Site, o kernel.Oracle, final bool) (kernel.Expansion, ilerr.IleError) {
	fallback := kernel.Expansion(replaceWith)
	if site.Instr == ast.InstrTransform || site.Instr == ast.InstrRemove {
		fallback = transformWith
	}
	appT, ok := o.TypeOf(site.Operand)
	if ok {
		if _, isErr := appT.(types.Error); isErr {
			return fallback, nil
		}
	}
	arrow, isArrow := appT.(*types.Arrow)
	if !ok || !isArrow || isUnknown(arrow.From, true) {
		if final {
			return fallback, nil
		}
		return nil, nil
	}
	field := arrow.From
	if _, isErr := field.(types.Error); isErr {
		return fallback, nil
	}
	liftName, payload := liftOf(field)
	value, valueOk := o.TypeOf(site.Value)

	kind := site.Instr
	if kind == ast.InstrAuto {
		if isUnknown(value, valueOk) {
			if final {
				return replaceWith, nil
			}
			return nil, nil
		}
		_, valueIsFn := value.(*types.Arrow)
		_, fieldIsFn := field.(*types.Arrow)
		kind = ast.InstrReplace
		if valueIsFn && !fieldIsFn {
			kind = ast.InstrTransform
		}
	}

	unliftable := func(reason string) ilerr.IleError {
		return ilerr.New(ilerr.NewUnliftableInstruction{Positioner: site.Span, Path: site.Path, FieldType: field, Reason: reason})
	}

	switch kind {
	case ast.InstrReplace, ast.InstrForce:
		if liftName == "" {
			return replaceWith, nil
		}
		if isUnknown(value, valueOk) {
			if final {
				return replaceWith, nil
			}
			return nil, nil
		}
		if o.Unifiable(value, field) {
			return replaceWith, nil
		}
		if o.Unifiable(value, payload) {
			return lifted(liftName, replaceWith), nil
		}
		return replaceWith, nil
	}

	if liftName == "" {
		return transformWith, nil
	}
	fn, valueIsFn := value.(*types.Arrow)
	if !valueIsFn || isUnknown(fn.From, true) {
		if !final && isUnknown(value, valueOk) {
			return nil, nil
		}
		return transformWith, nil
	}
	if o.Unifiable(fn.From, field) {
		return transformWith, nil
	}
	if o.Unifiable(fn.From, payload) {
		if kind == ast.InstrRemove {
			return nil, unliftable("a removal cannot reach through an optional value")
		}
		return lifted(liftName, transformWith), nil
	}
	return nil, unliftable("the function accepts neither the field nor its payload")
}

// ResolveTraverse decides a `[*]` or `[pred]` site from the container type:
// List and Map get their map functions; a predicate leaves non-matching
// elements unchanged.
func ResolveTraverse(site *kernel.Site, o kernel.Oracle, final bool) (kernel.Expansion, ilerr.IleError) {
	container, ok := o.TypeOf(site.Operand)
	name, known := "", false
	if ok {
		if _, isErr := container.(types.Error); isErr {
			name, known = types.ListCon.Name, true
		} else {
			name, known = types.HeadName(container)
		}
	}
	if !known {
		if isUnknown(container, ok) && !final {
			return nil, nil
		}
		if isUnknown(container, ok) {
			name = types.ListCon.Name
		} else {
			return nil, ilerr.New(ilerr.NewInvalidPatchPath{
				Positioner: site.Span,
				Path:       site.Path,
				Reason:     fmt.Sprintf("cannot traverse a value of type '%s'", types.Show(container)),
			})
		}
	}
	switch name {
	case types.ListCon.Name:
		if !site.Predicate {
			return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
				return b.Call(NameListMap, args[0], args[1])
			}, nil
		}
		return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
			pred, fn, list := args[0], args[1], args[2]
			e := b.Fresh("e")
			guarded := b.Lam(e, b.If(b.App(pred, b.Var(e)), b.App(fn, b.Var(e)), b.Var(e)))
			return b.Call(NameListMap, guarded, list)
		}, nil
	case types.MapCon.Name:
		if !site.Predicate {
			return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
				return b.Call(NameMapMap, args[0], args[1])
			}, nil
		}
		return func(b *kernel.Builder, args []kernel.Term) kernel.Term {
			pred, fn, m := args[0], args[1], args[2]
			k, v := b.Fresh("k"), b.Fresh("v")
			entry := b.Record(kernel.Field{Label: "key", Value: b.Var(k)}, kernel.Field{Label: "value", Value: b.Var(v)})
			body := b.If(b.App(pred, entry), b.App(fn, b.Var(v)), b.Var(v))
			return b.Call(NameMapWithKey, b.Lams([]string{k, v}, body), m)
		}, nil
	}
	return nil, ilerr.New(ilerr.NewInvalidPatchPath{
		Positioner: site.Span,
		Path:       site.Path,
		Reason:     fmt.Sprintf("cannot traverse a value of type '%s'", types.Show(container)),
	})
}
