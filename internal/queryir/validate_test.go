package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
)

func param(name string) *Node {
	return &Node{Kind: KindParameter, DeclaredTypeName: "TestData", OperationName: name}
}

func constant(v ir.IRValue) *Node {
	return &Node{Kind: KindConstant, DeclaredTypeName: "int", LiteralValue: v}
}

func TestValidate_Valid(t *testing.T) {
	members := &Node{
		Kind:          KindNew,
		OperationName: MembersName,
		Children: []*Node{
			{Kind: KindMemberInit, DeclaredTypeName: "string", OperationName: "Name"},
		},
	}
	newPoint := &Node{
		Kind:             KindNew,
		DeclaredTypeName: "Point",
		Children:         []*Node{members, constant(ir.IRInt(1))},
	}
	empty := &Node{
		Kind:             KindNew,
		DeclaredTypeName: "Seq[int]",
		Children:         []*Node{{Kind: KindNew, OperationName: MembersName}},
	}

	tests := []struct {
		name string
		node *Node
	}{
		{"lambda with call", containsFilter()},
		{"constant null", &Node{Kind: KindConstant, DeclaredTypeName: "any", LiteralValue: ir.IRNull{}}},
		{"binary", &Node{Kind: KindBinary, DeclaredTypeName: "int", OperationName: "Add",
			Children: []*Node{constant(ir.IRInt(1)), constant(ir.IRInt(2))}}},
		{"conditional", &Node{Kind: KindConditional, DeclaredTypeName: "int",
			Children: []*Node{constant(ir.IRBool(true)), constant(ir.IRInt(1)), constant(ir.IRInt(2))}}},
		{"new with members", newPoint},
		{"member init", &Node{Kind: KindMemberInit, DeclaredTypeName: "Point", Children: []*Node{
			newPoint,
			{Kind: KindMemberInit, DeclaredTypeName: "int", OperationName: "X", Children: []*Node{constant(ir.IRInt(3))}},
		}}},
		{"list init", &Node{Kind: KindListInit, DeclaredTypeName: "Seq[int]", Children: []*Node{
			empty,
			{Kind: KindCall, DeclaredTypeName: "any", OperationName: "Add", Children: []*Node{nil, constant(ir.IRInt(1))}},
		}}},
		{"array bounds", &Node{Kind: KindNewArray, DeclaredTypeName: "Seq[int]", OperationName: "Bounds",
			Children: []*Node{constant(ir.IRInt(3))}}},
		{"array init", &Node{Kind: KindNewArray, DeclaredTypeName: "Seq[int]", OperationName: "Init",
			Children: []*Node{constant(ir.IRInt(3)), constant(ir.IRInt(4))}}},
		{"type is", &Node{Kind: KindTypeIs, DeclaredTypeName: "bool", OperationName: "string",
			Children: []*Node{constant(ir.IRInt(3))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.node, Limits{}))
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		code qerr.Code
		kind string
	}{
		{"nil root", nil, qerr.CodeMalformedNode, ""},
		{"unknown kind", &Node{Kind: "extension", DeclaredTypeName: "int"},
			qerr.CodeUnsupportedNodeKind, "extension"},
		{"constant without literal", &Node{Kind: KindConstant, DeclaredTypeName: "int"},
			qerr.CodeMalformedNode, "constant"},
		{"constant with operation", &Node{Kind: KindConstant, DeclaredTypeName: "int",
			OperationName: "Add", LiteralValue: ir.IRInt(1)}, qerr.CodeMalformedNode, "constant"},
		{"literal on parameter", &Node{Kind: KindParameter, DeclaredTypeName: "int",
			OperationName: "x", LiteralValue: ir.IRInt(1)}, qerr.CodeMalformedNode, "parameter"},
		{"missing type", &Node{Kind: KindParameter, OperationName: "x"},
			qerr.CodeMalformedNode, "parameter"},
		{"parameter without name", &Node{Kind: KindParameter, DeclaredTypeName: "int"},
			qerr.CodeMalformedNode, "parameter"},
		{"binary with one child", &Node{Kind: KindBinary, DeclaredTypeName: "int", OperationName: "Add",
			Children: []*Node{constant(ir.IRInt(1))}}, qerr.CodeMalformedNode, "binary"},
		{"nil operand", &Node{Kind: KindBinary, DeclaredTypeName: "int", OperationName: "Add",
			Children: []*Node{nil, constant(ir.IRInt(1))}}, qerr.CodeMalformedNode, "binary"},
		{"call without children", &Node{Kind: KindCall, DeclaredTypeName: "int", OperationName: "F"},
			qerr.CodeMalformedNode, "call"},
		{"nil argument", &Node{Kind: KindCall, DeclaredTypeName: "int", OperationName: "F",
			Children: []*Node{nil, nil}}, qerr.CodeMalformedNode, "call"},
		{"lambda without body", &Node{Kind: KindLambda, DeclaredTypeName: "Func[int]"},
			qerr.CodeMalformedNode, "lambda"},
		{"lambda with constant param", &Node{Kind: KindLambda, DeclaredTypeName: "Func[int,int]",
			Children: []*Node{constant(ir.IRInt(1)), constant(ir.IRInt(1))}}, qerr.CodeMalformedNode, "lambda"},
		{"conditional with operation", &Node{Kind: KindConditional, DeclaredTypeName: "int", OperationName: "If",
			Children: []*Node{constant(ir.IRBool(true)), constant(ir.IRInt(1)), constant(ir.IRInt(2))}},
			qerr.CodeMalformedNode, "conditional"},
		{"bad array op", &Node{Kind: KindNewArray, DeclaredTypeName: "Seq[int]", OperationName: "Grow"},
			qerr.CodeMalformedNode, "new_array"},
		{"new without member list", &Node{Kind: KindNew, DeclaredTypeName: "Point",
			Children: []*Node{constant(ir.IRInt(1))}}, qerr.CodeMalformedNode, "new"},
		{"list init without new", &Node{Kind: KindListInit, DeclaredTypeName: "Seq[int]",
			Children: []*Node{constant(ir.IRInt(1))}}, qerr.CodeMalformedNode, "list_init"},
		{"nested unknown kind", &Node{Kind: KindUnary, DeclaredTypeName: "bool", OperationName: "Not",
			Children: []*Node{{Kind: "mystery", DeclaredTypeName: "bool"}}}, qerr.CodeUnsupportedNodeKind, "mystery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node, Limits{})
			require.Error(t, err)
			assert.True(t, qerr.Is(err, tt.code), "got %v", err)

			var qe *qerr.Error
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.kind, qe.NodeKind)
		})
	}
}

func TestValidate_Limits(t *testing.T) {
	n := containsFilter()

	assert.NoError(t, Validate(n, Limits{MaxDepth: 4, MaxNodes: 6}))

	err := Validate(n, Limits{MaxDepth: 3})
	assert.True(t, qerr.Is(err, qerr.CodeLimitExceeded))
	assert.ErrorContains(t, err, "max_depth 4 exceeds limit 3")

	err = Validate(n, Limits{MaxNodes: 5})
	assert.True(t, qerr.Is(err, qerr.CodeLimitExceeded))
}

func TestValidateRequests(t *testing.T) {
	assert.NoError(t, ValidateFilterSortPage(&FilterSortPageRequest{}, Limits{}))
	assert.NoError(t, ValidateCount(&CountRequest{}, Limits{}))
	assert.NoError(t, ValidateFilterSortPage(&FilterSortPageRequest{
		Filter: containsFilter(),
		Sort:   &SortClause{Direction: Ascending, KeySelector: containsFilter()},
		Skip:   Int(0),
		Take:   Int(5),
	}, Limits{}))

	bad := []*FilterSortPageRequest{
		nil,
		{Skip: Int(-1)},
		{Take: Int(-2)},
		{Sort: &SortClause{Direction: "up", KeySelector: containsFilter()}},
		{Sort: &SortClause{Direction: Ascending}},
		{Filter: &Node{Kind: KindConstant, DeclaredTypeName: "bool"}},
	}
	for i, req := range bad {
		err := ValidateFilterSortPage(req, Limits{})
		assert.True(t, qerr.Is(err, qerr.CodeMalformedNode), "case %d: %v", i, err)
	}

	err := ValidateCount(&CountRequest{Filter: containsFilter()}, Limits{MaxDepth: 2})
	assert.True(t, qerr.Is(err, qerr.CodeLimitExceeded))
}
