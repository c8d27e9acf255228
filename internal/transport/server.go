package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/queryir"
	"github.com/roach88/remoteq/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves a QueryEndpoint over HTTP.
type Server[T any] struct {
	ep      endpoint.QueryEndpoint[T]
	elem    *types.Type
	router  *gin.Engine
	metrics *metrics
	log     *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverSettings)

type serverSettings struct {
	registry *prometheus.Registry
	log      *slog.Logger
}

// WithRegistry sets the Prometheus registry metrics are registered in and
// /metrics exposes. Default: a fresh registry per server.
func WithRegistry(r *prometheus.Registry) ServerOption {
	return func(s *serverSettings) { s.registry = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *serverSettings) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer builds the router for ep, whose records are of type elem.
func NewServer[T any](ep endpoint.QueryEndpoint[T], elem *types.Type, opts ...ServerOption) *Server[T] {
	s := serverSettings{log: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	srv := &Server[T]{
		ep:      ep,
		elem:    elem,
		metrics: newMetrics(s.registry),
		log:     s.log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST(PathQuery, srv.handleQuery)
	router.POST(PathCount, srv.handleCount)
	router.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	srv.router = router
	return srv
}

// Handler returns the HTTP handler.
func (s *Server[T]) Handler() http.Handler { return s.router }

func (s *Server[T]) handleQuery(c *gin.Context) {
	start := time.Now()
	var req queryir.FilterSortPageRequest
	if err := decode(c, &req); err != nil {
		s.fail(c, PathQuery, start, err)
		return
	}

	out, err := s.ep.ExecuteSortFilterPage(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, PathQuery, start, err)
		return
	}
	records, err := endpoint.RecordsToIR(s.elem, out)
	if err != nil {
		s.fail(c, PathQuery, start, err)
		return
	}

	s.metrics.results.WithLabelValues(PathQuery).Observe(float64(len(out)))
	s.ok(c, PathQuery, start, QueryData{Records: records})
}

func (s *Server[T]) handleCount(c *gin.Context) {
	start := time.Now()
	var req queryir.CountRequest
	if err := decode(c, &req); err != nil {
		s.fail(c, PathCount, start, err)
		return
	}

	n, err := s.ep.ExecuteCount(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, PathCount, start, err)
		return
	}

	s.metrics.results.WithLabelValues(PathCount).Observe(float64(n))
	s.ok(c, PathCount, start, CountData{Count: n})
}

// decode reads a JSON request body. Unknown fields are rejected so that a
// newer client's stages are never silently dropped.
func decode(c *gin.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return qerr.NewMalformedNode("", "reading request body: %v", err)
	}
	if len(body) > maxBodyBytes {
		return qerr.NewLimitExceeded("max_body_bytes", len(body), maxBodyBytes)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return qerr.NewMalformedNode("", "decoding request: %v", err)
	}
	return nil
}

func (s *Server[T]) ok(c *gin.Context, route string, start time.Time, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.fail(c, route, start, fmt.Errorf("encoding response: %w", err))
		return
	}
	s.metrics.requests.WithLabelValues(route, "ok").Inc()
	s.metrics.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	c.JSON(http.StatusOK, Response{Status: "ok", Data: raw})
}

func (s *Server[T]) fail(c *gin.Context, route string, start time.Time, err error) {
	body := errorBody(err)
	status := statusOf(err)
	s.metrics.requests.WithLabelValues(route, body.Code).Inc()
	s.metrics.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "route", route, "error", err)
	} else {
		s.log.Debug("request rejected", "route", route, "code", body.Code, "error", err)
	}
	c.JSON(status, Response{Status: "error", Error: body})
}
