// Package expr is the in-process, typed expression tree that queries are
// composed from and rebuilt into.
//
// Every node carries its static type. Nodes are built through the New*
// and Make* constructors, which check operand types the way a compiler
// would and fail with TYPE_MISMATCH errors; a tree that was constructed
// successfully is well typed. Nodes are immutable after construction.
//
// Parameters are identities: two *Parameter values with the same name are
// different variables.
package expr

import (
	"fmt"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

// Kind identifies a node kind. Its string form is the wire tag.
type Kind int

const (
	KindBinary Kind = iota
	KindUnary
	KindCall
	KindConditional
	KindConstant
	KindInvoke
	KindLambda
	KindListInit
	KindMemberAccess
	KindMemberInit
	KindNew
	KindNewArray
	KindParameter
	KindTypeIs
)

var kindNames = [...]string{
	KindBinary:       "binary",
	KindUnary:        "unary",
	KindCall:         "call",
	KindConditional:  "conditional",
	KindConstant:     "constant",
	KindInvoke:       "invoke",
	KindLambda:       "lambda",
	KindListInit:     "list_init",
	KindMemberAccess: "member_access",
	KindMemberInit:   "member_init",
	KindNew:          "new",
	KindNewArray:     "new_array",
	KindParameter:    "parameter",
	KindTypeIs:       "type_is",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Expr is a typed expression node.
type Expr interface {
	Kind() Kind
	Type() *types.Type
}

// Binary applies a binary operator.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
	typ         *types.Type
}

// Unary applies a unary operator. For Convert, ConvertChecked and TypeAs
// the node's type is the conversion target.
type Unary struct {
	Op      UnaryOp
	Operand Expr
	typ     *types.Type
}

// Call invokes a catalog operation. Receiver is nil for static operations.
type Call struct {
	Op       *catalog.Instance
	Receiver Expr
	Args     []Expr
}

// Conditional is test ? IfTrue : IfFalse.
type Conditional struct {
	Test, IfTrue, IfFalse Expr
}

// Constant is a literal value.
type Constant struct {
	Value any
	typ   *types.Type
}

// Invoke calls a function-typed value.
type Invoke struct {
	Func Expr
	Args []Expr
	typ  *types.Type
}

// Lambda is a function literal.
type Lambda struct {
	Params []*Parameter
	Body   Expr
	typ    *types.Type
}

// Parameter is a lambda parameter. Identity is the pointer.
type Parameter struct {
	Name string
	typ  *types.Type
}

// MemberAccess reads a record field or a catalog property. Exactly one of
// Field and Property is set.
type MemberAccess struct {
	Object   Expr
	Member   string
	Field    *types.Field
	Property *catalog.Instance
}

// New constructs a record. Args are assigned positionally to Members; with
// no members the record is zero valued.
type New struct {
	Members []types.Field
	Args    []Expr
	typ     *types.Type
}

// Binding assigns one field in a member initializer.
type Binding struct {
	Field types.Field
	Value Expr
}

// MemberInit constructs a record and then assigns fields.
type MemberInit struct {
	New      *New
	Bindings []Binding
}

// ElementInit appends Args to a list through its add method.
type ElementInit struct {
	Method string
	Args   []Expr
}

// ListInit constructs a sequence and then appends elements.
type ListInit struct {
	New   *New
	Inits []ElementInit
}

// NewArrayOp distinguishes element lists from bounds.
type NewArrayOp string

const (
	ArrayInit   NewArrayOp = "Init"
	ArrayBounds NewArrayOp = "Bounds"
)

// NewArray builds a sequence from elements (ArrayInit) or a zero-filled
// sequence of a given length (ArrayBounds).
type NewArray struct {
	Op    NewArrayOp
	Elem  *types.Type
	Exprs []Expr
}

// TypeIs tests whether a value has the target type at runtime.
type TypeIs struct {
	Operand Expr
	Target  *types.Type
}

func (*Binary) Kind() Kind       { return KindBinary }
func (*Unary) Kind() Kind        { return KindUnary }
func (*Call) Kind() Kind         { return KindCall }
func (*Conditional) Kind() Kind  { return KindConditional }
func (*Constant) Kind() Kind     { return KindConstant }
func (*Invoke) Kind() Kind       { return KindInvoke }
func (*Lambda) Kind() Kind       { return KindLambda }
func (*Parameter) Kind() Kind    { return KindParameter }
func (*MemberAccess) Kind() Kind { return KindMemberAccess }
func (*New) Kind() Kind          { return KindNew }
func (*MemberInit) Kind() Kind   { return KindMemberInit }
func (*ListInit) Kind() Kind     { return KindListInit }
func (*NewArray) Kind() Kind     { return KindNewArray }
func (*TypeIs) Kind() Kind       { return KindTypeIs }

func (e *Binary) Type() *types.Type      { return e.typ }
func (e *Unary) Type() *types.Type       { return e.typ }
func (e *Call) Type() *types.Type        { return e.Op.Result }
func (e *Conditional) Type() *types.Type { return e.IfTrue.Type() }
func (e *Constant) Type() *types.Type    { return e.typ }
func (e *Invoke) Type() *types.Type      { return e.typ }
func (e *Lambda) Type() *types.Type      { return e.typ }
func (e *Parameter) Type() *types.Type   { return e.typ }
func (e *New) Type() *types.Type         { return e.typ }
func (e *MemberInit) Type() *types.Type  { return e.New.typ }
func (e *ListInit) Type() *types.Type    { return e.New.typ }
func (e *NewArray) Type() *types.Type    { return types.Seq(e.Elem) }
func (e *TypeIs) Type() *types.Type      { return types.Bool }

func (e *MemberAccess) Type() *types.Type {
	if e.Property != nil {
		return e.Property.Result
	}
	return e.Field.Type
}

// Signature returns the lambda's Func type arguments.
func (e *Lambda) Signature() (params []*types.Type, result *types.Type) {
	params, result, _ = e.typ.Signature()
	return params, result
}

func mismatch(k Kind, format string, args ...any) error {
	return qerr.NewTypeMismatch(format, args...).WithNode(k.String())
}

func missing(k Kind, what string) error {
	return qerr.NewMalformedNode(k.String(), "missing %s", what)
}
