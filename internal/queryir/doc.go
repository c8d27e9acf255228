// Package queryir defines the portable node model carried between a query
// client and a query endpoint.
//
// A captured query is a small tree of Nodes plus a request envelope naming
// the pipeline stages that were present (filter, sort, skip, take, count).
// The model is deliberately flat: every node has the same five attributes,
// and the kind alone decides which of them are meaningful.
//
// ARCHITECTURE:
//
//	[expr.Expr] → capture → [queryir request] → JSON → rebuild → [expr.Expr]
//
// The client never ships live values. Operations are transmitted by name,
// types by registry name, and literals as ir.IRValue scalars. The endpoint
// resolves names against its own registry and catalog, so both sides only
// have to agree on this package's wire format.
//
// CLOSED GRAMMAR:
//
// Kind is a closed enumeration of fourteen tags. The tags are the
// compatibility contract and never change meaning:
//
//	binary          [left, right]               operation_name = operator
//	unary           [operand]                   operation_name = operator
//	call            [receiver|null, args...]    operation_name = operation
//	conditional     [test, if_true, if_false]
//	constant        no children                 literal_value set
//	invoke          [function, args...]
//	lambda          [params..., body]
//	list_init       [new, element_inits...]
//	member_access   [object]                    operation_name = member
//	member_init     [new, bindings...]
//	new             [members, args...]
//	new_array       elements or bounds          operation_name = Init|Bounds
//	parameter       no children                 operation_name = name
//	type_is         [operand]                   operation_name = tested type
//
// Validate enforces these shapes before anything is rebuilt. A decoded tree
// that passes Validate may still fail to rebuild (unknown operation, type
// mismatch), but it never has a child in the wrong position.
//
// LITERALS:
//
// Constants carry ir.IRValue scalars: null, bool, integer, float and
// string. Integers and floats are distinct on the wire (a float always has
// a fraction or exponent), so the rebuilt constant keeps its declared type.
//
// HASHING:
//
// Requests convert to ir.IRObject via ToIR, giving them a canonical JSON
// form and a content hash (ir.RequestHash) that the request journal uses
// to group identical queries.
package queryir
