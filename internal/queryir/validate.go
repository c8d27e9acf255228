package queryir

import (
	"github.com/roach88/remoteq/internal/qerr"
)

// Limits bounds the size of an accepted tree. Zero means unlimited.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// Validate checks the structural invariants of the tree rooted at n:
//
//  1. every kind is part of the grammar (UNSUPPORTED_NODE_KIND otherwise)
//  2. literal_value appears on constants only, and every constant has one
//  3. operation_name is present exactly where the kind requires it
//  4. child counts and child kinds match the kind's production
//  5. the only nil child is the receiver slot of a call
//  6. the tree stays within limits (LIMIT_EXCEEDED otherwise)
//
// Shape violations are MALFORMED_NODE errors naming the offending kind.
// Validate does not resolve types or operations; that is rebuild's job.
func Validate(n *Node, limits Limits) error {
	if n == nil {
		return qerr.NewMalformedNode("", "missing node")
	}
	if limits.MaxDepth > 0 {
		if d := n.Depth(); d > limits.MaxDepth {
			return qerr.NewLimitExceeded("max_depth", d, limits.MaxDepth)
		}
	}
	v := &validator{}
	if err := v.node(n); err != nil {
		return err
	}
	if limits.MaxNodes > 0 && v.count > limits.MaxNodes {
		return qerr.NewLimitExceeded("max_nodes", v.count, limits.MaxNodes)
	}
	return nil
}

// ValidateFilterSortPage validates every node of a record request and
// rejects negative skip or take counts.
func ValidateFilterSortPage(req *FilterSortPageRequest, limits Limits) error {
	if req == nil {
		return qerr.NewMalformedNode("", "missing request")
	}
	if req.Filter != nil {
		if err := Validate(req.Filter, limits); err != nil {
			return err
		}
	}
	if req.Sort != nil {
		if !req.Sort.Direction.Valid() {
			return qerr.NewMalformedNode("", "unknown sort direction %q", req.Sort.Direction)
		}
		if req.Sort.KeySelector == nil {
			return qerr.NewMalformedNode("", "sort without key selector")
		}
		if err := Validate(req.Sort.KeySelector, limits); err != nil {
			return err
		}
	}
	if req.Skip != nil && *req.Skip < 0 {
		return qerr.NewMalformedNode("", "negative skip %d", *req.Skip)
	}
	if req.Take != nil && *req.Take < 0 {
		return qerr.NewMalformedNode("", "negative take %d", *req.Take)
	}
	return nil
}

// ValidateCount validates a count request.
func ValidateCount(req *CountRequest, limits Limits) error {
	if req == nil {
		return qerr.NewMalformedNode("", "missing request")
	}
	if req.Filter == nil {
		return nil
	}
	return Validate(req.Filter, limits)
}

// validator walks a tree and counts its nodes.
type validator struct {
	count int
}

func (v *validator) node(n *Node) error {
	v.count++
	if !n.Kind.Valid() {
		return qerr.NewUnsupportedNodeKind(string(n.Kind), "not part of the node grammar")
	}
	if err := v.attributes(n); err != nil {
		return err
	}
	if err := v.shape(n); err != nil {
		return err
	}
	for i, c := range n.Children {
		if c == nil {
			if n.Kind == KindCall && i == 0 {
				continue
			}
			return malformed(n, "nil child at position %d", i)
		}
		if err := v.node(c); err != nil {
			return err
		}
	}
	return nil
}

// attributes checks the scalar attributes a kind allows.
func (v *validator) attributes(n *Node) error {
	if n.Kind == KindConstant {
		if n.LiteralValue == nil {
			return malformed(n, "constant without literal_value")
		}
		if n.OperationName != "" {
			return malformed(n, "constant with operation_name %q", n.OperationName)
		}
	} else if n.LiteralValue != nil {
		return malformed(n, "literal_value on a non-constant node")
	}

	if n.DeclaredTypeName == "" && !isMemberList(n) {
		return malformed(n, "missing declared_type_name")
	}

	switch n.Kind {
	case KindBinary, KindUnary, KindCall, KindMemberAccess, KindParameter, KindTypeIs:
		if n.OperationName == "" {
			return malformed(n, "missing operation_name")
		}
	case KindConditional, KindConstant, KindInvoke, KindLambda, KindListInit:
		if n.OperationName != "" {
			return malformed(n, "unexpected operation_name %q", n.OperationName)
		}
	case KindNewArray:
		if n.OperationName != "Init" && n.OperationName != "Bounds" {
			return malformed(n, "operation_name must be Init or Bounds, got %q", n.OperationName)
		}
	}
	return nil
}

// shape checks child counts and the kinds of positional children.
func (v *validator) shape(n *Node) error {
	c := len(n.Children)
	switch n.Kind {
	case KindConstant, KindParameter:
		return exactly(n, 0)
	case KindUnary, KindMemberAccess, KindTypeIs:
		return exactly(n, 1)
	case KindBinary:
		return exactly(n, 2)
	case KindConditional:
		return exactly(n, 3)
	case KindCall, KindInvoke:
		if c < 1 {
			return malformed(n, "want at least 1 child, got 0")
		}
		if n.Kind == KindInvoke && n.Children[0] == nil {
			return malformed(n, "missing function")
		}
	case KindLambda:
		if c < 1 {
			return malformed(n, "missing body")
		}
		for i, p := range n.Children[:c-1] {
			if p != nil && p.Kind != KindParameter {
				return malformed(n, "child %d is %s, want parameter", i, p.Kind)
			}
		}
	case KindListInit:
		if err := leadingNew(n); err != nil {
			return err
		}
		for i, e := range n.Children[1:] {
			if e != nil && e.Kind != KindCall {
				return malformed(n, "element init %d is %s, want call", i, e.Kind)
			}
		}
	case KindMemberInit:
		if n.OperationName != "" {
			// A binding leaf: the member name plus at most one value.
			if c > 1 {
				return malformed(n, "binding %q has %d children", n.OperationName, c)
			}
			return nil
		}
		if err := leadingNew(n); err != nil {
			return err
		}
		for i, b := range n.Children[1:] {
			if b != nil && (b.Kind != KindMemberInit || b.OperationName == "") {
				return malformed(n, "binding %d is not a named member_init", i)
			}
		}
	case KindNew:
		if isMemberList(n) {
			for i, m := range n.Children {
				if m != nil && (m.Kind != KindMemberInit || m.OperationName == "" || len(m.Children) != 0) {
					return malformed(n, "member %d is not a named member_init leaf", i)
				}
			}
			return nil
		}
		if n.OperationName != "" {
			return malformed(n, "unexpected operation_name %q", n.OperationName)
		}
		if c < 1 || n.Children[0] == nil || !isMemberList(n.Children[0]) {
			return malformed(n, "first child must be the member list")
		}
		if members := len(n.Children[0].Children); members > 0 && members != c-1 {
			return malformed(n, "%d members but %d arguments", members, c-1)
		}
	case KindNewArray:
		if n.OperationName == "Bounds" {
			return exactly(n, 1)
		}
	}
	return nil
}

func isMemberList(n *Node) bool {
	return n.Kind == KindNew && n.OperationName == MembersName
}

func leadingNew(n *Node) error {
	if len(n.Children) < 1 || n.Children[0] == nil || n.Children[0].Kind != KindNew {
		return malformed(n, "first child must be a new node")
	}
	return nil
}

func exactly(n *Node, want int) error {
	if len(n.Children) != want {
		return malformed(n, "want %d children, got %d", want, len(n.Children))
	}
	return nil
}

func malformed(n *Node, format string, args ...any) error {
	return qerr.NewMalformedNode(string(n.Kind), format, args...)
}
