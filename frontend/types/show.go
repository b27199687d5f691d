package types

import (
	"strings"
)

// Printer renders types, naming variables a, b, c, ... in order of first
// appearance. Reusing one Printer across types keeps the names consistent.
type Printer struct {
	names map[int]string
}

func NewPrinter() *Printer {
	return &Printer{names: map[int]string{}}
}

func Show(t Type) string {
	return NewPrinter().Show(t)
}

func (p *Printer) Show(t Type) string {
	var sb strings.Builder
	p.write(&sb, t, precTop)
	return sb.String()
}

const (
	precTop = iota
	precArrow
	precApp
)

func (p *Printer) varName(v *Var) string {
	if name, ok := p.names[v.ID]; ok {
		return name
	}
	n := len(p.names)
	name := string(rune('a' + n%26))
	if n >= 26 {
		name += itoa(n / 26)
	}
	p.names[v.ID] = name
	return name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (p *Printer) write(sb *strings.Builder, t Type, prec int) {
	switch t := t.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Var:
		sb.WriteString(p.varName(t))
	case *Con:
		sb.WriteString(t.Name)
	case Error:
		sb.WriteString("<error>")
	case *App:
		head, args := Spine(t)
		if prec >= precApp {
			sb.WriteByte('(')
		}
		p.write(sb, head, precApp)
		for _, arg := range args {
			sb.WriteByte(' ')
			p.write(sb, arg, precApp)
		}
		if prec >= precApp {
			sb.WriteByte(')')
		}
	case *Arrow:
		if prec >= precArrow {
			sb.WriteByte('(')
		}
		p.write(sb, t.From, precArrow)
		sb.WriteString(" -> ")
		p.write(sb, t.To, precTop)
		if prec >= precArrow {
			sb.WriteByte(')')
		}
	case *Record:
		sb.WriteByte('{')
		for i, label := range t.Labels() {
			if i > 0 {
				sb.WriteString(", ")
			}
			ft, _ := t.Field(label)
			sb.WriteString(label)
			sb.WriteString(": ")
			p.write(sb, ft, precTop)
		}
		if t.Tail != nil {
			if t.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString("| ")
			sb.WriteString(p.varName(t.Tail))
		}
		sb.WriteByte('}')
	case *Forall:
		if prec > precTop {
			sb.WriteByte('(')
		}
		sb.WriteString("forall")
		for _, v := range t.Vars {
			sb.WriteByte(' ')
			sb.WriteString(p.varName(v))
		}
		sb.WriteString(". ")
		p.write(sb, t.Body, precTop)
		if prec > precTop {
			sb.WriteByte(')')
		}
	case *Constrained:
		for i, pred := range t.Preds {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(pred.Class)
			sb.WriteByte(' ')
			p.write(sb, pred.Type, precApp)
		}
		sb.WriteString(" => ")
		p.write(sb, t.Body, precTop)
	}
}

// ShowPred renders `Class Type`.
func ShowPred(pred Pred) string {
	p := NewPrinter()
	var sb strings.Builder
	sb.WriteString(pred.Class)
	sb.WriteByte(' ')
	p.write(&sb, pred.Type, precApp)
	return sb.String()
}
