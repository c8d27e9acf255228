package queryir

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/remoteq/internal/ir"
)

// Kind identifies the grammar production of a Node.
type Kind string

const (
	KindBinary       Kind = "binary"
	KindUnary        Kind = "unary"
	KindCall         Kind = "call"
	KindConditional  Kind = "conditional"
	KindConstant     Kind = "constant"
	KindInvoke       Kind = "invoke"
	KindLambda       Kind = "lambda"
	KindListInit     Kind = "list_init"
	KindMemberAccess Kind = "member_access"
	KindMemberInit   Kind = "member_init"
	KindNew          Kind = "new"
	KindNewArray     Kind = "new_array"
	KindParameter    Kind = "parameter"
	KindTypeIs       Kind = "type_is"
)

// Kinds lists every kind of the grammar in wire-tag order of the table in
// the package documentation.
var Kinds = []Kind{
	KindBinary, KindUnary, KindCall, KindConditional, KindConstant,
	KindInvoke, KindLambda, KindListInit, KindMemberAccess, KindMemberInit,
	KindNew, KindNewArray, KindParameter, KindTypeIs,
}

// Valid reports whether k is part of the grammar.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// MembersName is the operation name of the member list node that opens the
// children of a new node.
const MembersName = "Members"

// Node is one element of a captured expression tree.
//
// Nodes are created once during capture and consumed once during rebuild.
// Nothing mutates a node after capture returns it.
type Node struct {
	// Kind selects the grammar production.
	Kind Kind

	// DeclaredTypeName is the registry name of the node's static result
	// type, e.g. "bool" or "Func[TestData,bool]".
	DeclaredTypeName string

	// OperationName names the operator, operation, member or parameter,
	// depending on Kind.
	OperationName string

	// LiteralValue is the value of a constant node and nil otherwise.
	LiteralValue ir.IRValue

	// Children holds ordered sub-nodes. A nil entry is only legal as the
	// receiver slot of a call.
	Children []*Node
}

// wireNode is the JSON shape of a Node. literal_value stays raw so that a
// null literal survives the round trip as an explicit null.
type wireNode struct {
	Kind             Kind            `json:"kind"`
	DeclaredTypeName string          `json:"declared_type_name,omitempty"`
	OperationName    string          `json:"operation_name,omitempty"`
	LiteralValue     json.RawMessage `json:"literal_value,omitempty"`
	Children         []*Node         `json:"children,omitempty"`
}

// MarshalJSON encodes the node with snake_case keys.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{
		Kind:             n.Kind,
		DeclaredTypeName: n.DeclaredTypeName,
		OperationName:    n.OperationName,
		Children:         n.Children,
	}
	if n.LiteralValue != nil {
		raw, err := ir.MarshalIRValue(n.LiteralValue)
		if err != nil {
			return nil, fmt.Errorf("encoding literal of %s node: %w", n.Kind, err)
		}
		w.LiteralValue = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a node. Literals decode through
// ir.UnmarshalIRValue so integers and floats stay distinct.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{
		Kind:             w.Kind,
		DeclaredTypeName: w.DeclaredTypeName,
		OperationName:    w.OperationName,
		Children:         w.Children,
	}
	if len(w.LiteralValue) > 0 {
		v, err := ir.UnmarshalIRValue(w.LiteralValue)
		if err != nil {
			return fmt.Errorf("decoding literal of %s node: %w", w.Kind, err)
		}
		n.LiteralValue = v
	}
	return nil
}

// Child returns the i-th child, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Depth returns the height of the tree rooted at n. A leaf has depth 1.
func (n *Node) Depth() int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Walk calls fn for n and each non-nil descendant in depth-first order.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
