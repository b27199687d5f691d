package ast

import "strings"

type InstrKind int

const (
	// InstrAuto is decided from the instruction's shape, then its type.
	InstrAuto InstrKind = iota
	InstrReplace
	InstrTransform
	InstrRemove
	// InstrForce is `:=`, always a replacement even for function values.
	InstrForce
)

func (k InstrKind) String() string {
	switch k {
	case InstrReplace:
		return "replace"
	case InstrTransform:
		return "transform"
	case InstrRemove:
		return "remove"
	case InstrForce:
		return "force"
	default:
		return "auto"
	}
}

// PatchField is one `path: instruction` entry of a patch literal.
// Value is nil for InstrRemove.
type PatchField struct {
	Range
	Path  []PathSeg
	Instr InstrKind
	Value Expr
}

type PathSeg interface {
	Positioner
	pathSeg()
	String() string
}

var (
	_ PathSeg = (*FieldSeg)(nil)
	_ PathSeg = (*AllSeg)(nil)
	_ PathSeg = (*IndexSeg)(nil)
	_ PathSeg = (*PrismSeg)(nil)
)

type FieldSeg struct {
	Range
	Name string
}

// AllSeg is `[*]`.
type AllSeg struct {
	Range
}

// IndexSeg is `[expr]`: a map key selector, or an element predicate when
// expr mentions names that are not in scope.
type IndexSeg struct {
	Range
	Expr Expr
}

// PrismSeg focuses the payload of one constructor, as in `Ok.value`.
type PrismSeg struct {
	Range
	Ctor string
}

func (*FieldSeg) pathSeg() {}
func (*AllSeg) pathSeg()   {}
func (*IndexSeg) pathSeg() {}
func (*PrismSeg) pathSeg() {}

func (s *FieldSeg) String() string { return s.Name }
func (*AllSeg) String() string     { return "[*]" }
func (*IndexSeg) String() string   { return "[...]" }
func (s *PrismSeg) String() string { return s.Ctor }

// PathString renders a path for diagnostics.
func PathString(path []PathSeg) string {
	var sb strings.Builder
	for i, seg := range path {
		switch seg.(type) {
		case *AllSeg, *IndexSeg:
		default:
			if i > 0 {
				sb.WriteByte('.')
			}
		}
		sb.WriteString(seg.String())
	}
	return sb.String()
}
