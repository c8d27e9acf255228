package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

type testData struct {
	ID  string
	Tag int
	Xs  []int
}

func setup(t *testing.T) (*Builder, *types.Type) {
	t.Helper()
	reg := types.NewRegistry()
	rec, err := types.Struct[testData](reg, "TestData")
	require.NoError(t, err)
	return NewBuilder(reg, catalog.Standard()), rec
}

func constant(t *testing.T, v any, typ *types.Type) *Constant {
	t.Helper()
	c, err := NewConstant(v, typ)
	require.NoError(t, err)
	return c
}

func TestKindTags(t *testing.T) {
	assert.Equal(t, "member_access", KindMemberAccess.String())
	assert.Equal(t, "type_is", KindTypeIs.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestMakeBinary(t *testing.T) {
	one := constant(t, 1, types.Int)
	half := constant(t, 0.5, types.Float64)
	yes := constant(t, true, types.Bool)
	s := constant(t, "a", types.String)
	xs := constant(t, []int{1}, types.Seq(types.Int))

	tests := []struct {
		name    string
		op      BinaryOp
		l, r    Expr
		want    *types.Type
		wantErr bool
	}{
		{"int add", Add, one, one, types.Int, false},
		{"string concat", Add, s, s, types.String, false},
		{"mixed add", Add, one, half, nil, true},
		{"checked needs numeric", AddChecked, s, s, nil, true},
		{"power float", Power, half, half, types.Float64, false},
		{"power int", Power, one, one, nil, true},
		{"bitwise int", And, one, one, types.Int, false},
		{"logical bool", And, yes, yes, types.Bool, false},
		{"andalso", AndAlso, yes, yes, types.Bool, false},
		{"andalso int", AndAlso, one, one, nil, true},
		{"equal", Equal, one, one, types.Bool, false},
		{"equal mismatch", Equal, one, s, nil, true},
		{"less string", LessThan, s, s, types.Bool, false},
		{"less bool", LessThan, yes, yes, nil, true},
		{"shift", LeftShift, one, one, types.Int, false},
		{"index", ArrayIndex, xs, one, types.Int, false},
		{"index scalar", ArrayIndex, one, one, nil, true},
		{"coalesce non-nilable", Coalesce, one, one, nil, true},
		{"unknown", BinaryOp("Spaceship"), one, one, nil, true},
		{"nil operand", Add, one, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MakeBinary(tt.op, tt.l, tt.r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got.Type())
		})
	}
}

func TestMakeBinaryErrorCarriesNodeKind(t *testing.T) {
	_, err := MakeBinary(Add, constant(t, 1, types.Int), constant(t, "a", types.String))
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.CodeTypeMismatch))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "binary", qe.NodeKind)
}

func TestMakeUnary(t *testing.T) {
	one := constant(t, 1, types.Int)
	x := NewParameter(types.Int, "x")
	lambda, err := NewLambda(x, x)
	require.NoError(t, err)

	conv, err := MakeUnary(Convert, one, types.Float64)
	require.NoError(t, err)
	assert.Same(t, types.Float64, conv.Type())

	_, err = MakeUnary(Convert, one, types.String)
	assert.True(t, qerr.Is(err, qerr.CodeTypeMismatch))

	_, err = MakeUnary(Convert, one, nil)
	assert.True(t, qerr.Is(err, qerr.CodeMalformedNode))

	q, err := MakeUnary(Quote, lambda, nil)
	require.NoError(t, err)
	assert.Equal(t, "Expr[Func[int,int]]", q.Type().Name())

	_, err = MakeUnary(Quote, one, nil)
	assert.Error(t, err)

	n, err := MakeUnary(ArrayLength, constant(t, []int{}, types.Seq(types.Int)), nil)
	require.NoError(t, err)
	assert.Same(t, types.Int, n.Type())

	_, err = MakeUnary(TypeAs, one, types.Int)
	assert.Error(t, err, "int cannot hold nil")

	_, err = MakeUnary(Not, constant(t, "a", types.String), nil)
	assert.Error(t, err)
}

func TestParseOps(t *testing.T) {
	op, ok := ParseBinaryOp("GreaterThanOrEqual")
	assert.True(t, ok)
	assert.Equal(t, GreaterThanOrEqual, op)
	_, ok = ParseBinaryOp("Nope")
	assert.False(t, ok)

	u, ok := ParseUnaryOp("ConvertChecked")
	assert.True(t, ok)
	assert.True(t, u.TakesTarget())
	assert.False(t, Not.TakesTarget())
}

func TestNewConstant(t *testing.T) {
	_, err := NewConstant(nil, types.Int)
	assert.Error(t, err)

	c, err := NewConstant(nil, types.Seq(types.Int))
	require.NoError(t, err)
	assert.Nil(t, c.Value)

	_, err = NewConstant("19", types.Int)
	assert.True(t, qerr.Is(err, qerr.CodeTypeMismatch))

	c, err = NewConstant(19, types.Any)
	require.NoError(t, err)
	assert.Equal(t, 19, c.Value)
}

func TestNewLambda(t *testing.T) {
	x := NewParameter(types.Int, "x")
	y := NewParameter(types.Int, "y")
	sum, err := MakeBinary(Add, x, y)
	require.NoError(t, err)

	l, err := NewLambda(sum, x, y)
	require.NoError(t, err)
	assert.Equal(t, "Func[int,int,int]", l.Type().Name())
	params, result := l.Signature()
	assert.Equal(t, []*types.Type{types.Int, types.Int}, params)
	assert.Same(t, types.Int, result)

	_, err = NewLambda(sum, x, x)
	assert.True(t, qerr.Is(err, qerr.CodeParameterBindingConflict))

	inv, err := NewInvoke(l, constant(t, 1, types.Int), constant(t, 2, types.Int))
	require.NoError(t, err)
	assert.Same(t, types.Int, inv.Type())

	_, err = NewInvoke(l, constant(t, 1, types.Int))
	assert.Error(t, err)
	_, err = NewInvoke(constant(t, 1, types.Int))
	assert.Error(t, err)
}

func TestNewConditional(t *testing.T) {
	yes := constant(t, true, types.Bool)
	one := constant(t, 1, types.Int)

	c, err := NewConditional(yes, one, one)
	require.NoError(t, err)
	assert.Same(t, types.Int, c.Type())

	_, err = NewConditional(one, one, one)
	assert.Error(t, err)
	_, err = NewConditional(yes, one, yes)
	assert.Error(t, err)
}

func TestConstruction(t *testing.T) {
	_, rec := setup(t)
	id, _ := rec.Field("ID")
	tag, _ := rec.Field("Tag")

	n, err := NewNew(rec, []types.Field{id}, constant(t, "Test1", types.String))
	require.NoError(t, err)
	assert.Same(t, rec, n.Type())

	_, err = NewNew(rec, []types.Field{id})
	assert.Error(t, err, "arity")
	_, err = NewNew(rec, []types.Field{tag}, constant(t, "x", types.String))
	assert.Error(t, err, "field type")
	_, err = NewNew(types.Int, nil)
	assert.Error(t, err)

	mi, err := NewMemberInit(n, Binding{Field: tag, Value: constant(t, 12, types.Int)})
	require.NoError(t, err)
	assert.Same(t, rec, mi.Type())

	_, err = NewMemberInit(n, Binding{Field: tag, Value: constant(t, "12", types.String)})
	assert.Error(t, err)

	seq, err := NewNew(types.Seq(types.Int), nil)
	require.NoError(t, err)
	li, err := NewListInit(seq, ElementInit{Method: "Add", Args: []Expr{constant(t, 1, types.Int)}})
	require.NoError(t, err)
	assert.Equal(t, "Seq[int]", li.Type().Name())

	_, err = NewListInit(seq, ElementInit{Method: "Push", Args: []Expr{constant(t, 1, types.Int)}})
	assert.Error(t, err)
	_, err = NewListInit(n)
	assert.Error(t, err, "record is not a sequence")
}

func TestNewArray(t *testing.T) {
	arr, err := NewArrayInit(types.Int, constant(t, 1, types.Int), constant(t, 2, types.Int))
	require.NoError(t, err)
	assert.Equal(t, "Seq[int]", arr.Type().Name())
	assert.Equal(t, ArrayInit, arr.Op)

	_, err = NewArrayInit(types.Int, constant(t, "a", types.String))
	assert.Error(t, err)

	b, err := NewArrayBounds(types.String, constant(t, 3, types.Int))
	require.NoError(t, err)
	assert.Equal(t, "Seq[string]", b.Type().Name())

	_, err = NewArrayBounds(types.String, constant(t, "3", types.String))
	assert.Error(t, err)
}

func TestBuilderPredicate(t *testing.T) {
	b, rec := setup(t)

	x := b.Param(rec, "x")
	pred := b.Lambda(b.Call("Contains", b.Field(x, "Xs"), b.Const(19)), x)
	require.NoError(t, b.Err())
	assert.Equal(t, "Func[TestData,bool]", pred.Type().Name())

	body := pred.(*Lambda).Body.(*Call)
	assert.Equal(t, "Enumerable.Contains[int](Seq[int], int) bool", body.Op.String())
	assert.Nil(t, body.Receiver)

	access := body.Args[0].(*MemberAccess)
	require.NotNil(t, access.Field)
	assert.Same(t, x, access.Object)
}

func TestBuilderMethodsAndProperties(t *testing.T) {
	b, rec := setup(t)

	x := b.Param(rec, "x")
	lower := b.Method(b.Field(x, "ID"), "ToLower")
	has := b.Method(lower, "Contains", b.Const("est"))
	n := b.Field(b.Field(x, "Xs"), "Length")
	require.NoError(t, b.Err())

	assert.Same(t, types.Bool, has.Type())
	access := n.(*MemberAccess)
	assert.Nil(t, access.Field)
	require.NotNil(t, access.Property)
	assert.Equal(t, catalog.OwnerSeq, access.Property.Op.Owner)
}

func TestBuilderPipeline(t *testing.T) {
	b, rec := setup(t)

	src := b.ConstOf([]testData{{ID: "Test1"}}, types.Queryable(rec))
	x := b.Param(rec, "x")
	where := b.Stage("Where", src, b.Quote(b.Lambda(b.Binary(GreaterThan, b.Field(x, "Tag"), b.Const(10)), x)))
	y := b.Param(rec, "y")
	sorted := b.Stage("OrderByDescending", where, b.Quote(b.Lambda(b.Field(y, "Tag"), y)))
	page := b.Stage("Take", b.Stage("Skip", sorted, b.Const(1)), b.Const(2))
	require.NoError(t, b.Err())

	assert.Equal(t, "Queryable[TestData]", page.Type().Name())
	assert.Equal(t, "OrderByDescending", sorted.(*Call).Op.Op.Name)
}

func TestBuilderErrorIsSticky(t *testing.T) {
	b, rec := setup(t)

	x := b.Param(rec, "x")
	bad := b.Field(x, "Missing")
	assert.Nil(t, bad)
	require.Error(t, b.Err())
	assert.True(t, qerr.Is(b.Err(), qerr.CodeTypeMismatch))
	first := b.Err()

	assert.Nil(t, b.Const(1))
	assert.Nil(t, b.Call("Contains", bad, b.Const(19)))
	assert.Same(t, first, b.Err())
}

func TestBuilderUnresolvedCall(t *testing.T) {
	b, _ := setup(t)

	b.Call("Contains", b.Const([]int{1}), b.Const("x"))
	assert.True(t, qerr.Is(b.Err(), qerr.CodeOperationNotFound))
}

func TestBuilderNilOperand(t *testing.T) {
	b, _ := setup(t)

	var absent *Parameter
	b.Binary(Add, absent, b.Const(1))
	assert.ErrorContains(t, b.Err(), "nil operand")
}
