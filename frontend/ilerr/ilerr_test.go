package ilerr_test

import (
	"go/token"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/ilerr"
	"github.com/aivi-lang/aivi/frontend/types"
)

func at(start, end int) ast.Range {
	return ast.Range{PosStart: token.Pos(start), PosEnd: token.Pos(end)}
}

func TestErrorsCollection(t *testing.T) {
	var errs *ilerr.Errors
	assert.False(t, errs.HasError())
	assert.Zero(t, errs.Len())
	assert.Empty(t, errs.Diagnostics())

	errs = errs.With(ilerr.New(ilerr.NewUndefinedVariable{Positioner: at(20, 21), Name: "b"}))
	errs = errs.Merge(nil)
	other := (*ilerr.Errors)(nil).With(ilerr.New(ilerr.NewUndefinedVariable{Positioner: at(5, 6), Name: "a"}))
	errs = errs.Merge(other)
	require.Equal(t, 2, errs.Len())
	assert.True(t, errs.HasError())

	diags := errs.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "variable 'a' is not defined", diags[0].Message)
	assert.Equal(t, "variable 'b' is not defined", diags[1].Message)
	assert.Equal(t, ilerr.SeverityError, diags[0].Severity)
	assert.Equal(t, at(5, 6), diags[0].PrimarySpan)

	assert.Equal(t, slog.KindGroup, errs.LogValue().Kind())
}

func TestCodes(t *testing.T) {
	tests := []struct {
		err      ilerr.IleError
		code     ilerr.ErrCode
		category string
		message  string
	}{
		{ilerr.NewUndefinedVariable{Name: "x"}, ilerr.UndefinedVariable, "TypeError", "variable 'x' is not defined"},
		{ilerr.NewConstructorArity{Name: "Some", Expected: 1, Found: 2}, ilerr.ConstructorArity, "TypeError", "constructor 'Some' takes 1 arguments, but 2 were given"},
		{ilerr.NewInstanceMethod{Instance: "Show$Int", Class: "Show", Method: "show", Missing: true}, ilerr.InstanceMethod, "TypeError", "instance 'Show$Int' does not define method 'show'"},
		{ilerr.NewNoMatchingDomain{Subject: "1d"}, ilerr.NoMatchingDomain, "DomainError", "no domain in scope interprets '1d'"},
		{ilerr.NewNoMatchingDomain{Subject: "+", Carrier: types.List(types.Int)}, ilerr.NoMatchingDomain, "DomainError", "no domain in scope interprets '+' on values of type 'List Int'"},
		{ilerr.NewInvalidDomain{Domain: "Calendar", Reason: "no carrier"}, ilerr.InvalidDomain, "DomainError", "invalid domain 'Calendar': no carrier"},
		{ilerr.NewUnknownModule{Name: "nowhere"}, ilerr.UnknownModule, "ModuleError", "module 'nowhere' is not part of the workspace"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.category, tt.code.Category())
			assert.EqualError(t, tt.err, tt.message)
		})
	}

	assert.Equal(t, "(E015 UndefinedVariable) variable 'x' is not defined", ilerr.FormatWithCode(tests[0].err))
	assert.Equal(t, "Unclassified", ilerr.None.String())
	assert.Equal(t, "ErrCode(999)", ilerr.ErrCode(999).String())
	assert.Equal(t, "DesugarError", ilerr.InvalidPatchPath.Category())
}

func TestRelatedSpans(t *testing.T) {
	err := ilerr.New(ilerr.NewAmbiguousDomain{
		Positioner: at(10, 12),
		Subject:    "1d",
		Candidates: []string{"Calendar", "Duration"},
		Spans:      []ast.Range{at(1, 2), at(3, 4)},
	})
	d := ilerr.Report(err)
	assert.Equal(t, ilerr.AmbiguousDomain, d.Code)
	assert.Equal(t, []ast.Range{at(1, 2), at(3, 4)}, d.SecondarySpans)
	assert.Contains(t, d.Message, "could belong to domains Calendar, Duration")
	assert.Contains(t, d.String(), "error (E006 AmbiguousDomain)")
}
