package kernel

import (
	"strconv"
	"strings"

	"github.com/aivi-lang/aivi/frontend/types"
)

// Show renders a term on a single line:
//
//	\x. case x of { Some v -> v; _ -> 0 }
func Show(t Term) string {
	var sb strings.Builder
	show(&sb, t, precLow)
	return sb.String()
}

const (
	precLow = iota
	precApp
	precAtom
)

func show(sb *strings.Builder, t Term, prec int) {
	paren := func(need int, body func()) {
		if prec > need {
			sb.WriteByte('(')
			body()
			sb.WriteByte(')')
			return
		}
		body()
	}
	switch t := t.(type) {
	case *Var:
		if t.Site != 0 {
			sb.WriteString("?" + t.Name + "#" + strconv.Itoa(int(t.Site)))
			return
		}
		sb.WriteString(t.Name)
	case *Lit:
		switch t.Kind {
		case LitInt:
			sb.WriteString(strconv.FormatInt(t.Int, 10))
		case LitFloat:
			sb.WriteString(strconv.FormatFloat(t.Float, 'g', -1, 64))
		case LitText:
			sb.WriteString(strconv.Quote(t.Text))
		}
	case *Lam:
		paren(precLow, func() {
			sb.WriteString("\\" + t.Param + ". ")
			show(sb, t.Body, precLow)
		})
	case *App:
		paren(precApp, func() {
			show(sb, t.Fun, precApp)
			sb.WriteByte(' ')
			show(sb, t.Arg, precAtom)
		})
	case *Let:
		paren(precLow, func() {
			sb.WriteString("let " + t.Name + " = ")
			show(sb, t.Value, precLow)
			sb.WriteString(" in ")
			show(sb, t.Body, precLow)
		})
	case *LetRec:
		paren(precLow, func() {
			sb.WriteString("letrec ")
			for i, b := range t.Bindings {
				if i > 0 {
					sb.WriteString("; ")
				}
				sb.WriteString(b.Name + " = ")
				show(sb, b.Value, precLow)
			}
			sb.WriteString(" in ")
			show(sb, t.Body, precLow)
		})
	case *Constructor:
		if len(t.Args) == 0 {
			sb.WriteString(t.Name)
			return
		}
		paren(precApp, func() {
			sb.WriteString(t.Name)
			for _, a := range t.Args {
				sb.WriteByte(' ')
				show(sb, a, precAtom)
			}
		})
	case *Case:
		paren(precLow, func() {
			sb.WriteString("case ")
			show(sb, t.Scrutinee, precLow)
			sb.WriteString(" of { ")
			for i, alt := range t.Alts {
				if i > 0 {
					sb.WriteString("; ")
				}
				showPattern(sb, alt.Pattern, false)
				sb.WriteString(" -> ")
				show(sb, alt.Body, precLow)
			}
			sb.WriteString(" }")
		})
	case *RecordLit:
		sb.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Label + " = ")
			show(sb, f.Value, precLow)
		}
		sb.WriteByte('}')
	case *Project:
		show(sb, t.Record, precAtom)
		sb.WriteString("." + t.Label)
	case *Update:
		paren(precApp, func() {
			sb.WriteString("update ")
			show(sb, t.Record, precAtom)
			sb.WriteString(" " + strconv.Quote(t.Label) + " ")
			show(sb, t.Fn, precAtom)
		})
	case *Delete:
		paren(precApp, func() {
			sb.WriteString("delete ")
			show(sb, t.Record, precAtom)
			sb.WriteString(" " + strconv.Quote(t.Label))
		})
	case *Fold:
		paren(precApp, func() {
			sb.WriteString("fold ")
			show(sb, t.Step, precAtom)
			sb.WriteByte(' ')
			show(sb, t.Init, precAtom)
			sb.WriteByte(' ')
			show(sb, t.Over, precAtom)
		})
	case *EffectPure:
		paren(precApp, func() {
			sb.WriteString("pure ")
			show(sb, t.Value, precAtom)
		})
	case *EffectBind:
		paren(precApp, func() {
			sb.WriteString("bind ")
			show(sb, t.Effect, precAtom)
			sb.WriteByte(' ')
			show(sb, t.Fn, precAtom)
		})
	case *EffectFail:
		paren(precApp, func() {
			sb.WriteString("fail ")
			show(sb, t.Err, precAtom)
		})
	case *TypeAbs:
		paren(precLow, func() {
			p := types.NewPrinter()
			sb.WriteString("/\\")
			for _, v := range t.Vars {
				sb.WriteString(" " + p.Show(v))
			}
			sb.WriteString(". ")
			show(sb, t.Body, precLow)
		})
	case *TypeApp:
		paren(precApp, func() {
			show(sb, t.Term, precAtom)
			sb.WriteString(" @[")
			p := types.NewPrinter()
			for i, ty := range t.Types {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(p.Show(ty))
			}
			sb.WriteByte(']')
		})
	}
}

// ShowPattern renders a kernel pattern.
func ShowPattern(p Pattern) string {
	var sb strings.Builder
	showPattern(&sb, p, false)
	return sb.String()
}

func showPattern(sb *strings.Builder, p Pattern, nested bool) {
	switch p := p.(type) {
	case *PVar:
		sb.WriteString(p.Name)
	case *PWild:
		sb.WriteByte('_')
	case *PCtor:
		if len(p.Args) == 0 {
			sb.WriteString(p.Name)
			return
		}
		if nested {
			sb.WriteByte('(')
		}
		sb.WriteString(p.Name)
		for _, a := range p.Args {
			sb.WriteByte(' ')
			showPattern(sb, a, true)
		}
		if nested {
			sb.WriteByte(')')
		}
	case *PRecord:
		sb.WriteByte('{')
		for i, f := range p.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Label + ": ")
			showPattern(sb, f.Pattern, false)
		}
		if p.Open {
			if len(p.Fields) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("..")
		}
		sb.WriteByte('}')
	case *PAs:
		sb.WriteString(p.Name + "@")
		showPattern(sb, p.Pattern, true)
	}
}
