package types

import (
	"fmt"
	"strings"
)

// Kind classifies types: * for inhabited types, k1 -> k2 for type
// constructors awaiting an argument.
type Kind interface {
	fmt.Stringer
	kindNode()
}

type KStar struct{}

type KArrow struct {
	From Kind
	To   Kind
}

func (KStar) kindNode()   {}
func (*KArrow) kindNode() {}

func (KStar) String() string { return "*" }
func (k *KArrow) String() string {
	var sb strings.Builder
	if _, nested := k.From.(*KArrow); nested {
		sb.WriteString("(" + k.From.String() + ")")
	} else {
		sb.WriteString(k.From.String())
	}
	sb.WriteString(" -> ")
	sb.WriteString(k.To.String())
	return sb.String()
}

var Star Kind = KStar{}

// ArrowKind returns * -> ... -> * taking n arguments.
func ArrowKind(n int) Kind {
	var k Kind = Star
	for range n {
		k = &KArrow{From: Star, To: k}
	}
	return k
}

func KindEqual(a, b Kind) bool {
	if a == nil {
		a = Star
	}
	if b == nil {
		b = Star
	}
	switch a := a.(type) {
	case KStar:
		_, ok := b.(KStar)
		return ok
	case *KArrow:
		b, ok := b.(*KArrow)
		return ok && KindEqual(a.From, b.From) && KindEqual(a.To, b.To)
	}
	return false
}

// KindError reports an ill-kinded type application.
type KindError struct {
	Type     Type
	Expected Kind
	Actual   Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("type '%s' has kind %s but kind %s was expected", Show(e.Type), e.Actual, e.Expected)
}

// BuiltinKinds is the kind signature table of the built-in type constructors.
var BuiltinKinds = map[string]Kind{
	"Int":    Star,
	"Float":  Star,
	"Text":   Star,
	"Bool":   Star,
	"Unit":   Star,
	"List":   ArrowKind(1),
	"Option": ArrowKind(1),
	"Result": ArrowKind(2),
	"Map":    ArrowKind(2),
	"Effect": ArrowKind(2),
}

// KindOf computes the kind of t. Constructors carry their own kind and
// variables default to *.
func KindOf(t Type) (Kind, error) {
	switch t := t.(type) {
	case *Var:
		if t.Kind == nil {
			return Star, nil
		}
		return t.Kind, nil
	case *Con:
		if t.Kind == nil {
			return Star, nil
		}
		return t.Kind, nil
	case *App:
		fk, err := KindOf(t.Fun)
		if err != nil {
			return nil, err
		}
		arrow, ok := fk.(*KArrow)
		if !ok {
			return nil, &KindError{Type: t.Fun, Expected: &KArrow{From: Star, To: Star}, Actual: fk}
		}
		ak, err := KindOf(t.Arg)
		if err != nil {
			return nil, err
		}
		if !KindEqual(arrow.From, ak) {
			return nil, &KindError{Type: t.Arg, Expected: arrow.From, Actual: ak}
		}
		return arrow.To, nil
	case *Arrow:
		for _, part := range []Type{t.From, t.To} {
			if err := expectStar(part); err != nil {
				return nil, err
			}
		}
		return Star, nil
	case *Record:
		for _, ft := range t.FieldTypes() {
			if err := expectStar(ft); err != nil {
				return nil, err
			}
		}
		return Star, nil
	case *Forall:
		return KindOf(t.Body)
	case *Constrained:
		return KindOf(t.Body)
	}
	return Star, nil
}

func expectStar(t Type) error {
	k, err := KindOf(t)
	if err != nil {
		return err
	}
	if !KindEqual(k, Star) {
		return &KindError{Type: t, Expected: Star, Actual: k}
	}
	return nil
}
