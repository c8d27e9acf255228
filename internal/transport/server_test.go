package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/query"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/rebuild"
	"github.com/roach88/remoteq/internal/testutil"
)

type record = testutil.TestData

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	env      query.Env
	registry *prometheus.Registry
	server   *httptest.Server
	client   *endpoint.Client[record]
}

func setup(t *testing.T, data []record, opts ...endpoint.Option) fixture {
	t.Helper()
	reg, rec := testutil.Registry(t)
	cat := catalog.Standard()

	x, err := endpoint.NewExecutor(rebuild.New(reg, cat), rec, data, opts...)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	srv := httptest.NewServer(NewServer[record](x, rec, WithRegistry(promReg)).Handler())
	t.Cleanup(srv.Close)

	return fixture{
		env:      query.Env{Registry: reg, Catalog: cat, Elem: rec},
		registry: promReg,
		server:   srv,
		client:   endpoint.NewClient[record](NewClient[record](srv.URL, srv.Client())),
	}
}

func containsXs(n int) query.Lambda {
	return func(b *expr.Builder, x expr.Expr) expr.Expr {
		return b.Call("Contains", b.Field(x, "Xs"), b.Const(n))
	}
}

func byTag(b *expr.Builder, x expr.Expr) expr.Expr { return b.Field(x, "Tag") }

func TestHTTP_Query(t *testing.T) {
	f := setup(t, testutil.SampleWithCoronary())
	ctx := context.Background()

	got, err := f.client.Query(f.env).Where(containsXs(19)).ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record{{Name: "Test2", Tag: 76789, Xs: []int{35, 18, 19}}}, got)

	asc, err := f.client.Query(f.env).OrderBy(byTag).ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 8921, 76789}, testutil.Tags(asc))

	desc, err := f.client.Query(f.env).OrderByDescending(byTag).Take(2).ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{76789, 8921}, testutil.Tags(desc))

	none, err := f.client.Query(f.env).Where(containsXs(-1)).ToSlice(ctx)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestHTTP_Count(t *testing.T) {
	f := setup(t, testutil.Sample())
	ctx := context.Background()

	n, err := f.client.Query(f.env).Where(containsXs(19)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.client.Query(f.env).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHTTP_ErrorsKeepTheirCode(t *testing.T) {
	f := setup(t, testutil.Sample(), endpoint.WithLimits(endpoint.Limits{MaxTake: 5}))
	ctx := context.Background()

	_, err := f.client.Query(f.env).Take(6).ToSlice(ctx)
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.CodeLimitExceeded), err.Error())

	remote := NewClient[record](f.server.URL, nil)
	_, err = remote.ExecuteCount(ctx, &queryir.CountRequest{Filter: &queryir.Node{Kind: "quote"}})
	require.Error(t, err)

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerr.CodeUnsupportedNodeKind, qe.Code)
	assert.Equal(t, "quote", qe.NodeKind)
}

func TestHTTP_RawRequests(t *testing.T) {
	f := setup(t, testutil.Sample())

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"count all", PathCount, `{}`, http.StatusOK, `{"status":"ok","data":{"count":2}}`},
		{"take one", PathQuery, `{"take":1}`, http.StatusOK, `"records":[{"Name":"Test1","Tag":12,"Xs":[35,66,2567]}]`},
		{"bad json", PathQuery, `{"take":`, http.StatusBadRequest, `"code":"MALFORMED_NODE"`},
		{"unknown field", PathQuery, `{"limit":1}`, http.StatusBadRequest, `"code":"MALFORMED_NODE"`},
		{"bad direction", PathQuery, `{"sort":{"direction":"sideways"}}`, http.StatusBadRequest, `"status":"error"`},
		{"negative take", PathQuery, `{"take":-1}`, http.StatusBadRequest, `negative take`},
		{
			"unknown type", PathCount,
			`{"filter":{"kind":"lambda","declared_type_name":"Func[Nope,bool]","children":[` +
				`{"kind":"parameter","declared_type_name":"Nope","operation_name":"x"},` +
				`{"kind":"constant","declared_type_name":"bool","literal_value":true}]}}`,
			http.StatusUnprocessableEntity, `"code":"TYPE_RESOLUTION_FAILED"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	f := setup(t, testutil.Sample())

	resp, err := http.Get(f.server.URL + PathHealth)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = f.client.Query(f.env).Count(context.Background())
	require.NoError(t, err)
	_, err = f.client.Query(f.env).Take(-1).ToSlice(context.Background())
	require.Error(t, err)

	resp, err = http.Get(f.server.URL + PathMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `remoteq_endpoint_requests_total{code="ok",route="/v1/count"} 1`)
	assert.Contains(t, text, `remoteq_endpoint_requests_total{code="MALFORMED_NODE",route="/v1/query"} 1`)
	assert.Contains(t, text, "remoteq_endpoint_request_duration_seconds_bucket")
}

func TestErrorBodyRoundTrip(t *testing.T) {
	orig := qerr.NewOperationNotFound("Frobnicate", []string{"int"}).WithNode("call").WithDetail("owner", "Enumerable")

	body := errorBody(orig)
	assert.Equal(t, "OPERATION_NOT_FOUND", body.Code)
	assert.Equal(t, map[string]string{"node_kind": "call", "operation": "Frobnicate", "owner": "Enumerable"}, body.Details)

	var qe *qerr.Error
	require.ErrorAs(t, body.toError(), &qe)
	assert.Equal(t, orig.Code, qe.Code)
	assert.Equal(t, orig.Message, qe.Message)
	assert.Equal(t, "call", qe.NodeKind)
	assert.Equal(t, "Frobnicate", qe.Operation)
	assert.Equal(t, map[string]string{"owner": "Enumerable"}, qe.Details)

	internal := errorBody(io.ErrUnexpectedEOF)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}
