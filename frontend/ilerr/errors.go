package ilerr

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/types"
)

// DebugStacks makes errors capture and print the stack where they were created.
var DebugStacks = false

type ErrCode int

const (
	None ErrCode = iota

	NonTotalBinding
	InvalidPatchPath
	UnliftableInstruction
	InvalidBlockItem

	NoMatchingDomain
	AmbiguousDomain
	InvalidDomain

	UnifyMismatch
	RowFieldConflict
	KindMismatch
	AmbiguousClassConstraint
	NoInstance
	AmbiguousInstance
	OccursCheck
	UndefinedVariable
	UndefinedType
	UndefinedConstructor
	ConstructorArity
	InstanceMethod

	UnknownModule
)

var codeNames = map[ErrCode]string{
	None:                     "Unclassified",
	NonTotalBinding:          "NonTotalBinding",
	InvalidPatchPath:         "InvalidPatchPath",
	UnliftableInstruction:    "UnliftableInstruction",
	InvalidBlockItem:         "InvalidBlockItem",
	NoMatchingDomain:         "NoMatchingDomain",
	AmbiguousDomain:          "AmbiguousDomain",
	InvalidDomain:            "InvalidDomain",
	UnifyMismatch:            "UnifyMismatch",
	RowFieldConflict:         "RowFieldConflict",
	KindMismatch:             "KindMismatch",
	AmbiguousClassConstraint: "AmbiguousClassConstraint",
	NoInstance:               "NoInstance",
	AmbiguousInstance:        "AmbiguousInstance",
	OccursCheck:              "OccursCheck",
	UndefinedVariable:        "UndefinedVariable",
	UndefinedType:            "UndefinedType",
	UndefinedConstructor:     "UndefinedConstructor",
	ConstructorArity:         "ConstructorArity",
	InstanceMethod:           "InstanceMethod",
	UnknownModule:            "UnknownModule",
}

func (c ErrCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrCode(%d)", int(c))
}

// Category groups codes the way diagnostics are reported.
func (c ErrCode) Category() string {
	switch {
	case c >= NonTotalBinding && c <= InvalidBlockItem:
		return "DesugarError"
	case c >= NoMatchingDomain && c <= InvalidDomain:
		return "DomainError"
	case c >= UnifyMismatch && c <= InstanceMethod:
		return "TypeError"
	case c == UnknownModule:
		return "ModuleError"
	}
	return "Unclassified"
}

type IleError interface {
	Error() string
	Code() ErrCode
	ast.Positioner

	withStack([]byte) IleError
	getStack() []byte
}

// related is implemented by errors that point at more than one place.
type related interface {
	Related() []ast.Range
}

func FormatWithCode(e IleError) string {
	if DebugStacks && e.getStack() != nil {
		lines := strings.Split(string(e.getStack()), "\n")
		frame := ""
		if len(lines) > 6 {
			frame = strings.TrimSpace(lines[6])
		}
		return fmt.Sprintf("%s:(E%03d %v) %s", frame, e.Code(), e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d %v) %s", e.Code(), e.Code(), e.Error())
}

func New[E IleError](err E) IleError {
	if !DebugStacks {
		return err
	}
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From error
	ast.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewNonTotalBinding struct {
	ast.Positioner
	Pattern string
	stack   []byte
}

func (e NewNonTotalBinding) Error() string {
	return fmt.Sprintf("pattern '%s' can fail to match, but bindings with '=' or '<-' must be total; use '?' to match instead", e.Pattern)
}
func (e NewNonTotalBinding) Code() ErrCode    { return NonTotalBinding }
func (e NewNonTotalBinding) getStack() []byte { return e.stack }
func (e NewNonTotalBinding) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidPatchPath struct {
	ast.Positioner
	Path   string
	Reason string
	stack  []byte
}

func (e NewInvalidPatchPath) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid patch path: %s", e.Reason)
	}
	return fmt.Sprintf("invalid patch path '%s': %s", e.Path, e.Reason)
}
func (e NewInvalidPatchPath) Code() ErrCode    { return InvalidPatchPath }
func (e NewInvalidPatchPath) getStack() []byte { return e.stack }
func (e NewInvalidPatchPath) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnliftableInstruction struct {
	ast.Positioner
	Path      string
	FieldType types.Type
	Reason    string
	stack     []byte
}

func (e NewUnliftableInstruction) Error() string {
	if e.FieldType != nil {
		return fmt.Sprintf("instruction for '%s' cannot be lifted over field type '%s': %s", e.Path, types.Show(e.FieldType), e.Reason)
	}
	return fmt.Sprintf("instruction for '%s' cannot be lifted: %s", e.Path, e.Reason)
}
func (e NewUnliftableInstruction) Code() ErrCode    { return UnliftableInstruction }
func (e NewUnliftableInstruction) getStack() []byte { return e.stack }
func (e NewUnliftableInstruction) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidBlockItem struct {
	ast.Positioner
	Item  string
	Block string
	stack []byte
}

func (e NewInvalidBlockItem) Error() string {
	return fmt.Sprintf("%s is not allowed in a %s", e.Item, e.Block)
}
func (e NewInvalidBlockItem) Code() ErrCode    { return InvalidBlockItem }
func (e NewInvalidBlockItem) getStack() []byte { return e.stack }
func (e NewInvalidBlockItem) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewNoMatchingDomain struct {
	ast.Positioner
	// Subject is the operator or literal that needed a domain.
	Subject string
	Carrier types.Type
	stack   []byte
}

func (e NewNoMatchingDomain) Error() string {
	if e.Carrier != nil {
		return fmt.Sprintf("no domain in scope interprets '%s' on values of type '%s'", e.Subject, types.Show(e.Carrier))
	}
	return fmt.Sprintf("no domain in scope interprets '%s'", e.Subject)
}
func (e NewNoMatchingDomain) Code() ErrCode    { return NoMatchingDomain }
func (e NewNoMatchingDomain) getStack() []byte { return e.stack }
func (e NewNoMatchingDomain) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAmbiguousDomain struct {
	ast.Positioner
	Subject    string
	Candidates []string
	Spans      []ast.Range
	stack      []byte
}

func (e NewAmbiguousDomain) Error() string {
	return fmt.Sprintf("'%s' is ambiguous: it could belong to domains %s; add a type annotation or qualify it", e.Subject, strings.Join(e.Candidates, ", "))
}
func (e NewAmbiguousDomain) Related() []ast.Range { return e.Spans }
func (e NewAmbiguousDomain) Code() ErrCode        { return AmbiguousDomain }
func (e NewAmbiguousDomain) getStack() []byte     { return e.stack }
func (e NewAmbiguousDomain) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidDomain struct {
	ast.Positioner
	Domain string
	Reason string
	stack  []byte
}

func (e NewInvalidDomain) Error() string {
	return fmt.Sprintf("invalid domain '%s': %s", e.Domain, e.Reason)
}
func (e NewInvalidDomain) Code() ErrCode    { return InvalidDomain }
func (e NewInvalidDomain) getStack() []byte { return e.stack }
func (e NewInvalidDomain) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewTypeMismatch struct {
	ast.Positioner
	Expected types.Type
	Found    types.Type
	stack    []byte
}

func (e NewTypeMismatch) Error() string {
	p := types.NewPrinter()
	return fmt.Sprintf("type mismatch: expected '%s', but found '%s'", p.Show(e.Expected), p.Show(e.Found))
}
func (e NewTypeMismatch) Code() ErrCode    { return UnifyMismatch }
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewRowFieldConflict struct {
	ast.Positioner
	Label  string
	Record types.Type
	// Present is set when the field exists but must be absent.
	Present bool
	stack   []byte
}

func (e NewRowFieldConflict) Error() string {
	if e.Present {
		return fmt.Sprintf("record '%s' already has field '%s'", types.Show(e.Record), e.Label)
	}
	return fmt.Sprintf("closed record '%s' has no field '%s'", types.Show(e.Record), e.Label)
}
func (e NewRowFieldConflict) Code() ErrCode    { return RowFieldConflict }
func (e NewRowFieldConflict) getStack() []byte { return e.stack }
func (e NewRowFieldConflict) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewKindMismatch struct {
	ast.Positioner
	Type     types.Type
	Expected types.Kind
	Actual   types.Kind
	stack    []byte
}

func (e NewKindMismatch) Error() string {
	return fmt.Sprintf("kind mismatch: '%s' has kind %v, but kind %v was expected", types.Show(e.Type), e.Actual, e.Expected)
}
func (e NewKindMismatch) Code() ErrCode    { return KindMismatch }
func (e NewKindMismatch) getStack() []byte { return e.stack }
func (e NewKindMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAmbiguousClassConstraint struct {
	ast.Positioner
	Binding string
	Pred    types.Pred
	stack   []byte
}

func (e NewAmbiguousClassConstraint) Error() string {
	return fmt.Sprintf("constraint '%s' of '%s' is ambiguous: the binding is not a function so it cannot take the constraint as a parameter; add a type annotation", types.ShowPred(e.Pred), e.Binding)
}
func (e NewAmbiguousClassConstraint) Code() ErrCode    { return AmbiguousClassConstraint }
func (e NewAmbiguousClassConstraint) getStack() []byte { return e.stack }
func (e NewAmbiguousClassConstraint) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewNoInstance struct {
	ast.Positioner
	Pred  types.Pred
	stack []byte
}

func (e NewNoInstance) Error() string {
	return fmt.Sprintf("no instance for '%s'", types.ShowPred(e.Pred))
}
func (e NewNoInstance) Code() ErrCode    { return NoInstance }
func (e NewNoInstance) getStack() []byte { return e.stack }
func (e NewNoInstance) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAmbiguousInstance struct {
	ast.Positioner
	Pred      types.Pred
	Instances []string
	Spans     []ast.Range
	stack     []byte
}

func (e NewAmbiguousInstance) Error() string {
	return fmt.Sprintf("overlapping instances for '%s': %s", types.ShowPred(e.Pred), strings.Join(e.Instances, ", "))
}
func (e NewAmbiguousInstance) Related() []ast.Range { return e.Spans }
func (e NewAmbiguousInstance) Code() ErrCode        { return AmbiguousInstance }
func (e NewAmbiguousInstance) getStack() []byte     { return e.stack }
func (e NewAmbiguousInstance) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewOccursCheck struct {
	ast.Positioner
	Var   *types.Var
	Type  types.Type
	stack []byte
}

func (e NewOccursCheck) Error() string {
	p := types.NewPrinter()
	return fmt.Sprintf("infinite type: '%s' occurs in '%s'", p.Show(e.Var), p.Show(e.Type))
}
func (e NewOccursCheck) Code() ErrCode    { return OccursCheck }
func (e NewOccursCheck) getStack() []byte { return e.stack }
func (e NewOccursCheck) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUndefinedVariable struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewUndefinedVariable) Code() ErrCode { return UndefinedVariable }
func (e NewUndefinedVariable) Error() string {
	return fmt.Sprintf("variable '%s' is not defined", e.Name)
}
func (e NewUndefinedVariable) getStack() []byte { return e.stack }
func (e NewUndefinedVariable) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUndefinedType struct {
	ast.Positioner
	Message string
	stack   []byte
}

func (e NewUndefinedType) Code() ErrCode    { return UndefinedType }
func (e NewUndefinedType) Error() string    { return e.Message }
func (e NewUndefinedType) getStack() []byte { return e.stack }
func (e NewUndefinedType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUndefinedConstructor struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewUndefinedConstructor) Code() ErrCode { return UndefinedConstructor }
func (e NewUndefinedConstructor) Error() string {
	return fmt.Sprintf("constructor '%s' is not defined", e.Name)
}
func (e NewUndefinedConstructor) getStack() []byte { return e.stack }
func (e NewUndefinedConstructor) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewConstructorArity struct {
	ast.Positioner
	Name     string
	Expected int
	Found    int
	stack    []byte
}

func (e NewConstructorArity) Code() ErrCode { return ConstructorArity }
func (e NewConstructorArity) Error() string {
	return fmt.Sprintf("constructor '%s' takes %d arguments, but %d were given", e.Name, e.Expected, e.Found)
}
func (e NewConstructorArity) getStack() []byte { return e.stack }
func (e NewConstructorArity) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

// NewInstanceMethod is an instance whose methods do not line up with its
// class: Missing marks a class method the instance leaves out, otherwise
// the instance defines a method the class does not have.
type NewInstanceMethod struct {
	ast.Positioner
	Instance string
	Class    string
	Method   string
	Missing  bool
	stack    []byte
}

func (e NewInstanceMethod) Code() ErrCode { return InstanceMethod }
func (e NewInstanceMethod) Error() string {
	if e.Missing {
		return fmt.Sprintf("instance '%s' does not define method '%s'", e.Instance, e.Method)
	}
	return fmt.Sprintf("'%s' is not a method of class '%s'", e.Method, e.Class)
}
func (e NewInstanceMethod) getStack() []byte { return e.stack }
func (e NewInstanceMethod) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnknownModule struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewUnknownModule) Code() ErrCode { return UnknownModule }
func (e NewUnknownModule) Error() string {
	return fmt.Sprintf("module '%s' is not part of the workspace", e.Name)
}
func (e NewUnknownModule) getStack() []byte { return e.stack }
func (e NewUnknownModule) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
