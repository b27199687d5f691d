package types

import (
	"fmt"

	"github.com/aivi-lang/aivi/frontend/ast"
)

// TypeDef describes a named type visible to the converter: either a
// constructor with Arity parameters, or an alias expanding to Alias.
type TypeDef struct {
	Con    *Con
	Params []string
	Alias  ast.TypeExpr
}

// TypeScope resolves type names.
type TypeScope interface {
	LookupType(name string) (TypeDef, bool)
}

// ConvertError is returned for type expressions that cannot be converted.
type ConvertError struct {
	ast.Range
	Msg string
	// Kind is set when the failure is an ill-kinded application.
	Kind *KindError
}

func (e *ConvertError) Error() string {
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Msg
}

// Converter turns surface type expressions into Types. Type variables are
// created on first mention through NewVar and reused afterwards.
type Converter struct {
	Scope TypeScope
	// NewVar creates the type standing for a type variable of the given
	// kind; signatures use rigid constructors, annotations fresh variables.
	NewVar func(name string, k Kind) Type

	vars  map[string]Type
	depth int
}

func NewConverter(scope TypeScope, newVar func(string, Kind) Type) *Converter {
	return &Converter{Scope: scope, NewVar: newVar, vars: map[string]Type{}}
}

// Bind pre-binds a type variable name.
func (c *Converter) Bind(name string, t Type) {
	c.vars[name] = t
}

// Vars returns the type variables created so far.
func (c *Converter) Vars() map[string]Type {
	return c.vars
}

const maxAliasDepth = 32

func (c *Converter) Convert(e ast.TypeExpr) (Type, error) {
	t, err := c.convert(e, 0)
	if err != nil {
		return nil, err
	}
	if _, err := KindOf(t); err != nil {
		if ke, ok := err.(*KindError); ok {
			return nil, &ConvertError{Range: ast.RangeOf(e), Kind: ke}
		}
		return nil, err
	}
	return t, nil
}

// ConvertPreds converts class predicates such as the context of an instance.
func (c *Converter) ConvertPreds(preds []ast.PredExpr) ([]Pred, error) {
	out := make([]Pred, 0, len(preds))
	for _, p := range preds {
		t, err := c.convert(p.Type, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, Pred{Class: p.Class, Type: t})
	}
	return out, nil
}

func (c *Converter) typeVar(name string, k Kind, at ast.Positioner) (Type, error) {
	if t, ok := c.vars[name]; ok {
		if got, err := KindOf(t); err == nil && !KindEqual(got, k) {
			return nil, &ConvertError{Range: ast.RangeOf(at), Kind: &KindError{Type: t, Expected: k, Actual: got}}
		}
		return t, nil
	}
	t := c.NewVar(name, k)
	c.vars[name] = t
	return t, nil
}

func (c *Converter) convert(e ast.TypeExpr, arity int) (Type, error) {
	switch e := e.(type) {
	case *ast.TypeVarRef:
		return c.typeVar(e.Name, ArrowKind(arity), e)
	case *ast.TypeName:
		return c.named(e, e.Name, nil)
	case *ast.TypeApply:
		args := make([]Type, len(e.Args))
		for i, a := range e.Args {
			t, err := c.convert(a, 0)
			if err != nil {
				return nil, err
			}
			args[i] = t
		}
		switch head := e.Head.(type) {
		case *ast.TypeName:
			return c.named(e, head.Name, args)
		default:
			ht, err := c.convert(e.Head, len(args))
			if err != nil {
				return nil, err
			}
			return Apply(ht, args...), nil
		}
	case *ast.TypeArrow:
		from, err := c.convert(e.From, 0)
		if err != nil {
			return nil, err
		}
		to, err := c.convert(e.To, 0)
		if err != nil {
			return nil, err
		}
		return &Arrow{From: from, To: to}, nil
	case *ast.TypeRecord:
		fields := make(map[string]Type, len(e.Fields))
		for _, f := range e.Fields {
			if _, dup := fields[f.Label]; dup {
				return nil, &ConvertError{Range: f.Range, Msg: fmt.Sprintf("duplicate field '%s' in record type", f.Label)}
			}
			t, err := c.convert(f.Type, 0)
			if err != nil {
				return nil, err
			}
			fields[f.Label] = t
		}
		var tail *Var
		if e.Open {
			v, ok := c.NewVar("", Star).(*Var)
			if !ok {
				return nil, &ConvertError{Range: e.Range, Msg: "open record types are not allowed in signatures"}
			}
			tail = v
		}
		return NewRecord(fields, tail), nil
	case *ast.TypeQualified:
		body, err := c.convert(e.Type, 0)
		if err != nil {
			return nil, err
		}
		preds, err := c.ConvertPreds(e.Preds)
		if err != nil {
			return nil, err
		}
		return &Constrained{Preds: preds, Body: body}, nil
	case nil:
		return nil, &ConvertError{Msg: "missing type"}
	}
	return nil, &ConvertError{Range: ast.RangeOf(e), Msg: fmt.Sprintf("unsupported type expression %T", e)}
}

func (c *Converter) named(at ast.Positioner, name string, args []Type) (Type, error) {
	def, ok := c.Scope.LookupType(name)
	if !ok {
		return nil, &ConvertError{Range: ast.RangeOf(at), Msg: fmt.Sprintf("type '%s' is not defined", name)}
	}
	if def.Alias == nil {
		return Apply(def.Con, args...), nil
	}
	if len(args) != len(def.Params) {
		return nil, &ConvertError{Range: ast.RangeOf(at), Msg: fmt.Sprintf("type alias '%s' expects %d arguments, got %d", name, len(def.Params), len(args))}
	}
	if c.depth >= maxAliasDepth {
		return nil, &ConvertError{Range: ast.RangeOf(at), Msg: fmt.Sprintf("type alias '%s' expands recursively", name)}
	}
	inner := &Converter{Scope: c.Scope, NewVar: c.NewVar, vars: map[string]Type{}, depth: c.depth + 1}
	for i, p := range def.Params {
		inner.vars[p] = args[i]
	}
	return inner.convert(def.Alias, 0)
}
