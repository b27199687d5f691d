package ast

var (
	_ Pattern = (*VarPat)(nil)
	_ Pattern = (*WildcardPat)(nil)
	_ Pattern = (*CtorPat)(nil)
	_ Pattern = (*RecordPat)(nil)
	_ Pattern = (*AsPat)(nil)
	_ Pattern = (*IntPat)(nil)
	_ Pattern = (*TextPat)(nil)
)

type VarPat struct {
	Range
	Name string
}

type WildcardPat struct {
	Range
}

type CtorPat struct {
	Range
	Name string
	Args []Pattern
}

// RecordPat matches records. Open patterns accept extra fields.
type RecordPat struct {
	Range
	Fields []RecordPatField
	Open   bool
}

// RecordPatField matches the value at Path (`a.b.c`). A nil Pattern binds
// the last label of the path as a variable.
type RecordPatField struct {
	Range
	Path    []string
	Pattern Pattern
}

// AsPat is `name@pattern`.
type AsPat struct {
	Range
	Name    string
	Pattern Pattern
}

type IntPat struct {
	Range
	Value int64
}

type TextPat struct {
	Range
	Value string
}

func (*VarPat) patternNode()      {}
func (*WildcardPat) patternNode() {}
func (*CtorPat) patternNode()     {}
func (*RecordPat) patternNode()   {}
func (*AsPat) patternNode()       {}
func (*IntPat) patternNode()      {}
func (*TextPat) patternNode()     {}
