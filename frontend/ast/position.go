package ast

import (
	"fmt"
	"go/token"
)

// Positioner allows finding the location in the original source file.
type Positioner interface {
	Pos() token.Pos // position of first character belonging to the node
	End() token.Pos // position of first character immediately after the node
}

// Range represents a range of positions in the source code.
// Nodes embed it to become Positioners.
type Range struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

// Pos returns the starting position of the range.
func (r Range) Pos() token.Pos { return r.PosStart }

// End returns the ending position of the range.
func (r Range) End() token.Pos { return r.PosEnd }

// IsZero reports whether the range carries no position information.
func (r Range) IsZero() bool { return r.PosStart == token.NoPos && r.PosEnd == token.NoPos }

// Contains reports whether other lies within r.
func (r Range) Contains(other Positioner) bool {
	return r.PosStart <= other.Pos() && other.End() <= r.PosEnd
}

// String returns a string representation of the range.
func (r Range) String() string {
	if r.PosStart == r.PosEnd {
		return fmt.Sprintf("%v", r.PosStart)
	}
	return fmt.Sprintf("%v-%v", r.PosStart, r.PosEnd)
}

// Format renders the range as file:line:col using fset, falling back to
// the raw offsets when the range does not belong to fset.
func (r Range) Format(fset *token.FileSet) string {
	if fset == nil || !r.PosStart.IsValid() {
		return r.String()
	}
	return fset.Position(r.PosStart).String()
}

// RangeBetween creates a Range between two Positioners.
func RangeBetween(fst, snd Positioner) Range {
	return Range{fst.Pos(), snd.End()}
}

// RangeOf creates a Range from a Positioner.
func RangeOf(expr Positioner) Range {
	if expr == nil {
		return Range{}
	}
	if asRange, ok := expr.(*Range); ok {
		return *asRange
	}
	if asRange, ok := expr.(Range); ok {
		return asRange
	}
	return Range{expr.Pos(), expr.End()}
}
