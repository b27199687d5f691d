package kernel

import (
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/hashicorp/go-set/v3"
)

// Pattern is a kernel pattern. Literal patterns never reach the kernel;
// they are compiled to equality guards.
type Pattern interface {
	ast.Positioner
	patternNode()
}

var (
	_ Pattern = (*PVar)(nil)
	_ Pattern = (*PWild)(nil)
	_ Pattern = (*PCtor)(nil)
	_ Pattern = (*PRecord)(nil)
	_ Pattern = (*PAs)(nil)
)

type PVar struct {
	ast.Range
	Name string
}

type PWild struct {
	ast.Range
}

type PCtor struct {
	ast.Range
	Name string
	Args []Pattern
}

type PField struct {
	Label   string
	Pattern Pattern
}

type PRecord struct {
	ast.Range
	Fields []PField
	Open   bool
}

type PAs struct {
	ast.Range
	Name    string
	Pattern Pattern
}

func (*PVar) patternNode()    {}
func (*PWild) patternNode()   {}
func (*PCtor) patternNode()   {}
func (*PRecord) patternNode() {}
func (*PAs) patternNode()     {}

// PatternVars returns the variables bound by p.
func PatternVars(p Pattern) *set.Set[string] {
	out := set.New[string](4)
	var walk func(Pattern)
	walk = func(p Pattern) {
		switch p := p.(type) {
		case *PVar:
			out.Insert(p.Name)
		case *PCtor:
			for _, a := range p.Args {
				walk(a)
			}
		case *PRecord:
			for _, f := range p.Fields {
				walk(f.Pattern)
			}
		case *PAs:
			out.Insert(p.Name)
			walk(p.Pattern)
		}
	}
	walk(p)
	return out
}

// Irrefutable reports whether p matches every value of its type without
// inspecting constructors.
func Irrefutable(p Pattern) bool {
	switch p := p.(type) {
	case *PVar, *PWild:
		return true
	case *PAs:
		return Irrefutable(p.Pattern)
	case *PRecord:
		for _, f := range p.Fields {
			if !Irrefutable(f.Pattern) {
				return false
			}
		}
		return true
	}
	return false
}
