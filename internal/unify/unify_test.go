package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

type testData struct {
	Name string
	Tag  int
	Xs   []int
}

func fixture(t *testing.T) (*catalog.Catalog, *types.Type) {
	t.Helper()
	rec, err := types.Struct[testData](types.NewRegistry(), "TestData")
	require.NoError(t, err)
	return catalog.Standard(), rec
}

func noop(*catalog.Instance, any, []any) (any, error) { return nil, nil }

func TestBindingsChain(t *testing.T) {
	T := types.NewSlot("T")
	K := types.NewSlot("K")

	var root *Bindings
	_, ok := root.Lookup(T)
	assert.False(t, ok)

	b1 := root.Bind(T, types.Int)
	b2 := b1.Bind(K, types.String)
	alt := b1.Bind(K, types.Bool)

	got, ok := b2.Lookup(K)
	require.True(t, ok)
	assert.Same(t, types.String, got)

	got, _ = alt.Lookup(K)
	assert.Same(t, types.Bool, got, "siblings do not share bindings")

	_, ok = b1.Lookup(K)
	assert.False(t, ok, "children do not leak into parents")

	assert.Equal(t, map[*types.Type]*types.Type{T: types.Int, K: types.String}, b2.Map())
}

func TestPipelineWhere(t *testing.T) {
	cat, rec := fixture(t)

	inst, err := ResolveIn(cat, catalog.OwnerQueryable, "Where",
		[]*types.Type{types.Queryable(rec), types.Expr(types.Func(rec, types.Bool))}, SingleMatch)
	require.NoError(t, err)

	assert.Equal(t, "Queryable.Where[TestData](Queryable[TestData], Expr[Func[TestData,bool]]) Queryable[TestData]", inst.String())
	assert.Same(t, rec, inst.TypeArgs[0])
}

func TestIndexedWhereSelectedByArity(t *testing.T) {
	cat, rec := fixture(t)

	inst, err := ResolveIn(cat, catalog.OwnerQueryable, "Where",
		[]*types.Type{types.Queryable(rec), types.Expr(types.Func(rec, types.Int, types.Bool))}, SingleMatch)
	require.NoError(t, err)
	assert.Same(t, cat.InOwner(catalog.OwnerQueryable, "Where")[1], inst.Op)
}

func TestOrderByBindsKey(t *testing.T) {
	cat, rec := fixture(t)

	inst, err := ResolveIn(cat, catalog.OwnerQueryable, "OrderBy",
		[]*types.Type{types.Queryable(rec), types.Expr(types.Func(rec, types.Int))}, FirstMatch)
	require.NoError(t, err)
	require.Len(t, inst.TypeArgs, 2)
	assert.Same(t, rec, inst.TypeArgs[0])
	assert.Same(t, types.Int, inst.TypeArgs[1])
}

func TestContainsThroughSeq(t *testing.T) {
	cat, _ := fixture(t)

	inst, err := ResolveStatic(cat, "Contains", []*types.Type{types.Seq(types.Int), types.Int}, SingleMatch)
	require.NoError(t, err)
	assert.Equal(t, "Enumerable.Contains[int](Seq[int], int) bool", inst.String())
}

func TestBoundSlotRejectsMismatch(t *testing.T) {
	cat, _ := fixture(t)

	_, err := ResolveStatic(cat, "Contains", []*types.Type{types.Seq(types.Int), types.String}, FirstMatch)
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.CodeOperationNotFound))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, []string{"Seq[int]", "string"}, qe.ArgTypes)
	assert.Equal(t, "Contains", qe.Operation)
}

func TestArgumentTriedAsBaseType(t *testing.T) {
	cat, rec := fixture(t)

	// Any(Seq[T]) accepts a Queryable[T] through its base.
	inst, err := ResolveStatic(cat, "Any", []*types.Type{types.Queryable(rec)}, SingleMatch)
	require.NoError(t, err)
	assert.Equal(t, "Seq[TestData]", inst.Params[0].Name())
}

func TestParameterCountMismatch(t *testing.T) {
	cat, rec := fixture(t)

	_, err := ResolveIn(cat, catalog.OwnerQueryable, "Skip", []*types.Type{types.Queryable(rec)}, FirstMatch)
	assert.True(t, qerr.Is(err, qerr.CodeOperationNotFound))
}

func TestPolicies(t *testing.T) {
	cat, rec := fixture(t)
	args := []*types.Type{types.Queryable(rec)}

	// Queryable.Count and Enumerable.Count (via the Seq base) both apply.
	inst, err := ResolveStatic(cat, "Count", args, FirstMatch)
	require.NoError(t, err)
	assert.Equal(t, catalog.OwnerQueryable, inst.Op.Owner, "declaration order wins")

	_, err = ResolveStatic(cat, "Count", args, SingleMatch)
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.CodeAmbiguousOperation))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, qe.Details["candidates"], "Queryable.Count[TestData]")
	assert.Contains(t, qe.Details["candidates"], "Enumerable.Count[TestData]")
}

func TestMethodAndPropertyResolution(t *testing.T) {
	cat, _ := fixture(t)

	inst, err := ResolveMethod(cat, types.String, "ToLower", nil, SingleMatch)
	require.NoError(t, err)
	assert.Same(t, types.String, inst.Result)

	inst, err = ResolveMethod(cat, types.String, "Contains", []*types.Type{types.String}, SingleMatch)
	require.NoError(t, err)
	assert.Same(t, types.Bool, inst.Result)

	_, err = ResolveMethod(cat, types.Int, "ToLower", nil, SingleMatch)
	assert.True(t, qerr.Is(err, qerr.CodeOperationNotFound))

	inst, err = ResolveProperty(cat, types.Seq(types.String), "Length", SingleMatch)
	require.NoError(t, err)
	assert.Equal(t, catalog.OwnerSeq, inst.Op.Owner)

	inst, err = ResolveProperty(cat, types.String, "Length", SingleMatch)
	require.NoError(t, err)
	assert.Equal(t, catalog.OwnerString, inst.Op.Owner)
}

func TestStaticRejectsReceiverAndMethodNeedsOne(t *testing.T) {
	cat, _ := fixture(t)

	contains := cat.Static("Contains")[0]
	assert.Empty(t, Candidates(contains, types.String, []*types.Type{types.Int}))

	lower := cat.Methods("ToLower")[0]
	assert.Empty(t, Candidates(lower, nil, nil))
}

func TestUnboundSlotRejected(t *testing.T) {
	T := types.NewSlot("T")
	K := types.NewSlot("K")
	// K appears only in the result, so no argument can ever bind it.
	op := &catalog.Operation{
		Name: "Odd", Owner: "Test", Slots: []*types.Type{T, K},
		Params: []*types.Type{T}, Result: K, Impl: noop,
	}

	assert.Empty(t, Candidates(op, nil, []*types.Type{types.Int}))
}

func TestShapeArgumentsAreInvariant(t *testing.T) {
	T := types.NewSlot("T")
	op := &catalog.Operation{
		Name: "First", Owner: "Test", Slots: []*types.Type{T},
		Params: []*types.Type{types.Func(types.Seq(T))}, Result: T, Impl: noop,
	}

	assert.Len(t, Candidates(op, nil, []*types.Type{types.Func(types.Seq(types.Int))}), 1)
	assert.Empty(t, Candidates(op, nil, []*types.Type{types.Func(types.Queryable(types.Int))}),
		"bases are only tried for top-level arguments")
}

func TestSlotBoundBeforeLaterParameter(t *testing.T) {
	cat, rec := fixture(t)

	// T is bound by the first parameter; the lambda must then agree.
	_, err := ResolveIn(cat, catalog.OwnerQueryable, "Where",
		[]*types.Type{types.Queryable(rec), types.Expr(types.Func(types.String, types.Bool))}, FirstMatch)
	assert.True(t, qerr.Is(err, qerr.CodeOperationNotFound))
}

func TestDeterminism(t *testing.T) {
	cat, rec := fixture(t)
	args := []*types.Type{types.Queryable(rec), types.Expr(types.Func(rec, types.String))}

	first, err := ResolveIn(cat, catalog.OwnerQueryable, "OrderByDescending", args, SingleMatch)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		again, err := ResolveIn(cat, catalog.OwnerQueryable, "OrderByDescending", args, SingleMatch)
		require.NoError(t, err)
		assert.True(t, first.Same(again))
		assert.Equal(t, first.String(), again.String())
	}
}

func TestDuplicateInstantiationsCollapse(t *testing.T) {
	T := types.NewSlot("T")
	op := &catalog.Operation{
		Name: "Wide", Owner: "Test", Slots: []*types.Type{T},
		Params: []*types.Type{types.Seq(T), types.Any}, Result: types.Int, Impl: noop,
	}

	// The second argument matches any as itself and through its base.
	got := Candidates(op, nil, []*types.Type{types.Seq(types.Int), types.Queryable(types.Int)})
	assert.Len(t, got, 1)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "first-match", FirstMatch.String())
	assert.Equal(t, "single-match", SingleMatch.String())
}
