package ilerr

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aivi-lang/aivi/frontend/ast"
)

// Errors accumulates IleErrors. A nil *Errors is a valid empty collection.
type Errors struct {
	errs []IleError
}

func (r *Errors) With(err ...IleError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []IleError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) Len() int {
	if r == nil {
		return 0
	}
	return len(r.errs)
}

// Diagnostics reports every error, sorted by position.
func (r *Errors) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, r.Len())
	for _, e := range r.Errors() {
		out = append(out, Report(e))
	}
	slices.SortStableFunc(out, func(a, b Diagnostic) int {
		return int(a.PrimarySpan.PosStart) - int(b.PrimarySpan.PosStart)
	})
	return out
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}

type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return "unknown"
}

// Diagnostic is what editors and the CLI consume.
type Diagnostic struct {
	Code           ErrCode
	Message        string
	PrimarySpan    ast.Range
	SecondarySpans []ast.Range
	Severity       Severity
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%v: %s (E%03d %v) %s", d.PrimarySpan, d.Severity, d.Code, d.Code, d.Message)
}

// Report converts an error into a Diagnostic.
func Report(e IleError) Diagnostic {
	d := Diagnostic{
		Code:        e.Code(),
		Message:     e.Error(),
		PrimarySpan: ast.RangeOf(e),
		Severity:    SeverityError,
	}
	if rel, ok := e.(related); ok {
		d.SecondarySpans = rel.Related()
	}
	return d
}
