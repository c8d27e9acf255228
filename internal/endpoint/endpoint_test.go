package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/query"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/rebuild"
	"github.com/roach88/remoteq/internal/store"
	"github.com/roach88/remoteq/internal/testutil"
)

type record = testutil.TestData

type fixture struct {
	env query.Env
	rb  *rebuild.Rebuilder
}

func setup(t *testing.T) fixture {
	t.Helper()
	reg, rec := testutil.Registry(t)
	cat := catalog.Standard()
	return fixture{
		env: query.Env{Registry: reg, Catalog: cat, Elem: rec},
		rb:  rebuild.New(reg, cat),
	}
}

func (f fixture) executor(t *testing.T, data []record, opts ...Option) *Executor[record] {
	t.Helper()
	x, err := NewExecutor(f.rb, f.env.Elem, data, opts...)
	require.NoError(t, err)
	return x
}

// wireEndpoint sends every request through JSON before executing it.
type wireEndpoint[T any] struct {
	ep QueryEndpoint[T]
}

func (w wireEndpoint[T]) ExecuteCount(ctx context.Context, req *queryir.CountRequest) (int, error) {
	var out queryir.CountRequest
	if err := roundTrip(req, &out); err != nil {
		return 0, err
	}
	return w.ep.ExecuteCount(ctx, &out)
}

func (w wireEndpoint[T]) ExecuteSortFilterPage(ctx context.Context, req *queryir.FilterSortPageRequest) ([]T, error) {
	var out queryir.FilterSortPageRequest
	if err := roundTrip(req, &out); err != nil {
		return nil, err
	}
	return w.ep.ExecuteSortFilterPage(ctx, &out)
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func containsXs(n int) query.Lambda {
	return func(b *expr.Builder, x expr.Expr) expr.Expr {
		return b.Call("Contains", b.Field(x, "Xs"), b.Const(n))
	}
}

func byTag(b *expr.Builder, x expr.Expr) expr.Expr { return b.Field(x, "Tag") }

func TestScenarios(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		data  []record
		build func(q query.Queryable[record]) query.Queryable[record]
		want  []string
	}{
		{
			name:  "filter contains",
			data:  testutil.Sample(),
			build: func(q query.Queryable[record]) query.Queryable[record] { return q.Where(containsXs(19)) },
			want:  []string{"Test2"},
		},
		{
			name:  "sort ascending",
			data:  testutil.SampleWithCoronary(),
			build: func(q query.Queryable[record]) query.Queryable[record] { return q.OrderBy(byTag) },
			want:  []string{"Test1", "Coronary", "Test2"},
		},
		{
			name:  "sort descending",
			data:  testutil.SampleWithCoronary(),
			build: func(q query.Queryable[record]) query.Queryable[record] { return q.OrderByDescending(byTag) },
			want:  []string{"Test2", "Coronary", "Test1"},
		},
		{
			name: "filter sort page",
			data: testutil.SampleWithCoronary(),
			build: func(q query.Queryable[record]) query.Queryable[record] {
				return q.Where(containsXs(35)).OrderByDescending(byTag).Skip(1).Take(1)
			},
			want: []string{"Test1"},
		},
		{
			name: "filter after sort",
			data: testutil.SampleWithCoronary(),
			build: func(q query.Queryable[record]) query.Queryable[record] {
				return q.OrderByDescending(byTag).Where(containsXs(35))
			},
			want: []string{"Test2", "Test1"},
		},
		{
			name: "method chain",
			data: testutil.SampleWithCoronary(),
			build: func(q query.Queryable[record]) query.Queryable[record] {
				return q.Where(func(b *expr.Builder, x expr.Expr) expr.Expr {
					return b.Method(b.Method(b.Field(x, "Name"), "ToLower"), "Contains", b.Const("est"))
				})
			},
			want: []string{"Test1", "Test2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, err := tt.build(query.From(f.env, tt.data)).ToSlice(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, testutil.Names(local))

			client := NewClient[record](wireEndpoint[record]{ep: f.executor(t, tt.data)})
			remote, err := tt.build(client.Query(f.env)).ToSlice(ctx)
			require.NoError(t, err)
			assert.Equal(t, local, remote)
		})
	}
}

func TestCountScenarios(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := NewClient[record](wireEndpoint[record]{ep: f.executor(t, testutil.Sample())})

	n, err := client.Query(f.env).Where(containsXs(19)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = client.Query(f.env).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = client.Query(f.env).CountWhere(ctx, containsXs(35))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExecutor_EmptyAndNilData(t *testing.T) {
	f := setup(t)
	x := f.executor(t, nil)

	got, err := x.ExecuteSortFilterPage(context.Background(), &queryir.FilterSortPageRequest{})
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := x.ExecuteCount(context.Background(), &queryir.CountRequest{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewExecutor_RequiresTypes(t *testing.T) {
	_, err := NewExecutor[record](nil, nil, nil)
	assert.Error(t, err)
}

// frobnicate is a filter calling an operation no catalog defines.
func frobnicate() *queryir.Node {
	x := func() *queryir.Node {
		return &queryir.Node{Kind: queryir.KindParameter, DeclaredTypeName: testutil.TestDataName, OperationName: "x"}
	}
	return &queryir.Node{
		Kind:             queryir.KindLambda,
		DeclaredTypeName: "Func[TestData,bool]",
		Children: []*queryir.Node{
			x(),
			{
				Kind:             queryir.KindCall,
				DeclaredTypeName: "bool",
				OperationName:    "Frobnicate",
				Children: []*queryir.Node{
					nil,
					{Kind: queryir.KindMemberAccess, DeclaredTypeName: "int", OperationName: "Tag", Children: []*queryir.Node{x()}},
				},
			},
		},
	}
}

func TestExecutor_Errors(t *testing.T) {
	f := setup(t)
	x := f.executor(t, testutil.Sample(), WithLimits(Limits{MaxDepth: 8, MaxTake: 10}))
	ctx := context.Background()

	deep := &queryir.Node{Kind: queryir.KindConstant, DeclaredTypeName: "bool", LiteralValue: ir.IRBool(true)}
	for i := 0; i < 8; i++ {
		deep = &queryir.Node{Kind: queryir.KindUnary, DeclaredTypeName: "bool", OperationName: "Not", Children: []*queryir.Node{deep}}
	}
	deepFilter := &queryir.Node{
		Kind:             queryir.KindLambda,
		DeclaredTypeName: "Func[TestData,bool]",
		Children: []*queryir.Node{
			{Kind: queryir.KindParameter, DeclaredTypeName: testutil.TestDataName, OperationName: "x"},
			deep,
		},
	}

	tests := []struct {
		name string
		req  *queryir.FilterSortPageRequest
		code qerr.Code
	}{
		{"nil request", nil, qerr.CodeMalformedNode},
		{"take above limit", &queryir.FilterSortPageRequest{Take: queryir.Int(11)}, qerr.CodeLimitExceeded},
		{"negative skip", &queryir.FilterSortPageRequest{Skip: queryir.Int(-1)}, qerr.CodeMalformedNode},
		{"too deep", &queryir.FilterSortPageRequest{Filter: deepFilter}, qerr.CodeLimitExceeded},
		{"unknown operation", &queryir.FilterSortPageRequest{Filter: frobnicate()}, qerr.CodeOperationNotFound},
		{"unknown kind", &queryir.FilterSortPageRequest{Filter: &queryir.Node{Kind: "quote"}}, qerr.CodeUnsupportedNodeKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := x.ExecuteSortFilterPage(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, qerr.CodeOf(err), err.Error())
		})
	}

	got, err := x.ExecuteSortFilterPage(ctx, &queryir.FilterSortPageRequest{Take: queryir.Int(10)})
	require.NoError(t, err)
	assert.Len(t, got, 2, "take at the limit is allowed")

	_, err = x.ExecuteCount(ctx, &queryir.CountRequest{Filter: frobnicate()})
	assert.True(t, qerr.Is(err, qerr.CodeOperationNotFound))
}

func TestExecutor_Cancelled(t *testing.T) {
	f := setup(t)
	x := f.executor(t, testutil.Sample())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := x.ExecuteSortFilterPage(ctx, &queryir.FilterSortPageRequest{Take: queryir.Int(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func openJournal(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecutor_Journal(t *testing.T) {
	f := setup(t)
	j := openJournal(t)
	x := f.executor(t, testutil.Sample(),
		WithJournal(j),
		WithIDGenerator(testutil.NewSequentialIDs("req")),
		WithClock(testutil.NewDeterministicClock()),
	)
	ctx := context.Background()
	client := NewClient[record](x)

	got, err := client.Query(f.env).Where(containsXs(19)).ToSlice(ctx)
	require.NoError(t, err)
	n, err := client.Query(f.env).Count(ctx)
	require.NoError(t, err)
	_, err = x.ExecuteCount(ctx, &queryir.CountRequest{Filter: frobnicate()})
	require.Error(t, err)

	records, err := j.ListRequests(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	rendered, err := RecordsToIR(f.env.Elem, got)
	require.NoError(t, err)
	wantHash, err := ir.ResultHash(rendered)
	require.NoError(t, err)

	q := records[0]
	assert.Equal(t, "req-0001", q.ID)
	assert.Equal(t, queryir.RequestKindQuery, q.Kind)
	assert.Equal(t, store.OutcomeOK, q.Outcome)
	assert.Equal(t, 1, q.ResultCount)
	assert.Equal(t, wantHash, q.ResultHash)
	assert.Equal(t, testutil.Epoch, q.CreatedAt)

	decoded, err := q.FilterSortPage()
	require.NoError(t, err)
	assert.Equal(t, "x => Contains(x.Xs, 19)", queryir.Format(decoded.Filter))

	c := records[1]
	assert.Equal(t, queryir.RequestKindCount, c.Kind)
	assert.Equal(t, n, c.ResultCount)
	assert.Equal(t, `{}`, c.Request)

	e := records[2]
	assert.Equal(t, store.OutcomeError, e.Outcome)
	assert.Equal(t, string(qerr.CodeOperationNotFound), e.ErrorCode)
	assert.Contains(t, e.ErrorMessage, "Frobnicate")
	assert.Empty(t, e.ResultHash)
}

func TestExecutor_JournalFailureFailsRequest(t *testing.T) {
	f := setup(t)
	j := openJournal(t)
	require.NoError(t, j.Close())
	x := f.executor(t, testutil.Sample(), WithJournal(j))

	_, err := x.ExecuteCount(context.Background(), &queryir.CountRequest{})
	assert.ErrorContains(t, err, "journal")
}

func TestExecutor_ConcurrentRequests(t *testing.T) {
	f := setup(t)
	x := f.executor(t, testutil.SampleWithCoronary(), WithJournal(openJournal(t)))
	client := NewClient[record](wireEndpoint[record]{ep: x})

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			got, err := client.Query(f.env).OrderBy(byTag).Skip(i % 3).ToSlice(ctx)
			if err != nil {
				return err
			}
			want := []int{12, 8921, 76789}[i%3:]
			if fmt.Sprint(testutil.Tags(got)) != fmt.Sprint(want) {
				return fmt.Errorf("skip %d: got %v, want %v", i%3, testutil.Tags(got), want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// nullAsBool is x => Convert(null as any, bool) AndAlso true.
func nullAsBool() *queryir.Node {
	null := &queryir.Node{Kind: queryir.KindConstant, DeclaredTypeName: "any", LiteralValue: ir.IRNull{}}
	return &queryir.Node{
		Kind:             queryir.KindLambda,
		DeclaredTypeName: "Func[TestData,bool]",
		Children: []*queryir.Node{
			{Kind: queryir.KindParameter, DeclaredTypeName: testutil.TestDataName, OperationName: "x"},
			{
				Kind:             queryir.KindBinary,
				DeclaredTypeName: "bool",
				OperationName:    "AndAlso",
				Children: []*queryir.Node{
					{Kind: queryir.KindUnary, DeclaredTypeName: "bool", OperationName: "Convert", Children: []*queryir.Node{null}},
					{Kind: queryir.KindConstant, DeclaredTypeName: "bool", LiteralValue: ir.IRBool(true)},
				},
			},
		},
	}
}

func TestExecutor_IllTypedFilterFails(t *testing.T) {
	f := setup(t)
	x := f.executor(t, testutil.Sample())
	ctx := context.Background()

	require.NotPanics(t, func() {
		_, err := x.ExecuteSortFilterPage(ctx, &queryir.FilterSortPageRequest{Filter: nullAsBool()})
		require.Error(t, err)
		assert.Equal(t, qerr.CodeEvaluationFailed, qerr.CodeOf(err), err.Error())
	})
	require.NotPanics(t, func() {
		_, err := x.ExecuteCount(ctx, &queryir.CountRequest{Filter: nullAsBool()})
		require.Error(t, err)
		assert.Equal(t, qerr.CodeEvaluationFailed, qerr.CodeOf(err), err.Error())
	})
}
