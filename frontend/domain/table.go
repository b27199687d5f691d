// Package domain holds the domain table and the resolver that turns
// domain-interpretable operators and delta literals into ordinary calls.
package domain

import (
	"strconv"
	"strings"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/kernel"
	"github.com/aivi-lang/aivi/frontend/types"
	"github.com/benbjohnson/immutable"
)

// FunctionRef names the top-level binding implementing a domain operator.
type FunctionRef struct {
	Name string
	Type types.Type
	Span ast.Range
}

// ConstructorRef is the value a delta literal denotes: a constructor of
// the domain's delta type applied to constants.
type ConstructorRef struct {
	Ctor string
	Args []*kernel.Lit
	Span ast.Range
}

type DomainDef struct {
	Name          string
	Carrier       types.Type
	Delta         types.Type
	Operators     map[string]FunctionRef
	DeltaLiterals map[string]ConstructorRef
	Span          ast.Range
}

// OperatorName is the binding name of a domain's implementation of op.
func OperatorName(domain, op string) string {
	return domain + ".(" + op + ")"
}

// Table is the immutable set of domains visible to a module.
type Table struct {
	domains *immutable.SortedMap[string, *DomainDef]
}

func NewTable(defs ...*DomainDef) *Table {
	t := &Table{domains: immutable.NewSortedMap[string, *DomainDef](nil)}
	return t.With(defs...)
}

// With returns a table extended with defs. Later definitions replace
// earlier ones of the same name.
func (t *Table) With(defs ...*DomainDef) *Table {
	m := t.domains
	for _, d := range defs {
		m = m.Set(d.Name, d)
	}
	return &Table{domains: m}
}

func (t *Table) Merge(other *Table) *Table {
	if other == nil {
		return t
	}
	return t.With(other.Domains()...)
}

func (t *Table) Lookup(name string) (*DomainDef, bool) {
	return t.domains.Get(name)
}

func (t *Table) Len() int { return t.domains.Len() }

// Domains returns all domains sorted by name.
func (t *Table) Domains() []*DomainDef {
	out := make([]*DomainDef, 0, t.domains.Len())
	itr := t.domains.Iterator()
	for !itr.Done() {
		_, d, _ := itr.Next()
		out = append(out, d)
	}
	return out
}

// OperatorDomains returns the domains implementing op.
func (t *Table) OperatorDomains(op string) []*DomainDef {
	var out []*DomainDef
	for _, d := range t.Domains() {
		if _, ok := d.Operators[op]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (t *Table) DefinesOperator(op string) bool {
	return len(t.OperatorDomains(op)) > 0
}

// Candidate is one reading of a delta literal.
type Candidate struct {
	Domain *DomainDef
	Value  ConstructorRef
}

// Candidates returns every domain that can read the literal text. A
// qualifier restricts the search to that domain. Besides exact entries,
// `<n><suffix>` is read through the `1<suffix>` template.
func (t *Table) Candidates(text, qualifier string) []Candidate {
	var out []Candidate
	for _, d := range t.Domains() {
		if qualifier != "" && d.Name != qualifier {
			continue
		}
		if ref, ok := d.DeltaLiterals[text]; ok {
			out = append(out, Candidate{Domain: d, Value: ref})
			continue
		}
		if ref, ok := generalise(d, text); ok {
			out = append(out, Candidate{Domain: d, Value: ref})
		}
	}
	return out
}

func generalise(d *DomainDef, text string) (ConstructorRef, bool) {
	number, suffix := splitNumeric(text)
	if number == "" || suffix == "" {
		return ConstructorRef{}, false
	}
	template, ok := d.DeltaLiterals["1"+suffix]
	if !ok {
		return ConstructorRef{}, false
	}
	args := make([]*kernel.Lit, len(template.Args))
	copy(args, template.Args)
	for i, arg := range template.Args {
		switch arg.Kind {
		case kernel.LitInt:
			n, err := strconv.ParseInt(number, 10, 64)
			if err != nil {
				return ConstructorRef{}, false
			}
			lit := *arg
			lit.Int = n
			args[i] = &lit
		case kernel.LitFloat:
			f, err := strconv.ParseFloat(number, 64)
			if err != nil {
				return ConstructorRef{}, false
			}
			lit := *arg
			lit.Float = f
			args[i] = &lit
		default:
			continue
		}
		return ConstructorRef{Ctor: template.Ctor, Args: args, Span: template.Span}, true
	}
	return ConstructorRef{}, false
}

// splitNumeric splits "12.5kg" into "12.5" and "kg".
func splitNumeric(text string) (string, string) {
	i := strings.IndexFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if i <= 0 {
		return "", ""
	}
	return text[:i], text[i:]
}
