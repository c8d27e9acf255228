package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/remoteq/internal/endpoint"
	"github.com/roach88/remoteq/internal/queryir"
)

// Client calls a remote Server. It implements endpoint.QueryEndpoint, so
// an endpoint.Client over it sends composed pipelines across HTTP.
type Client[T any] struct {
	base string
	http *http.Client
}

var _ endpoint.QueryEndpoint[struct{}] = (*Client[struct{}])(nil)

// NewClient creates a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient[T any](baseURL string, hc *http.Client) *Client[T] {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client[T]{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// ExecuteSortFilterPage posts req to /v1/query.
func (c *Client[T]) ExecuteSortFilterPage(ctx context.Context, req *queryir.FilterSortPageRequest) ([]T, error) {
	var data struct {
		Records []T `json:"records"`
	}
	if err := c.post(ctx, PathQuery, req, &data); err != nil {
		return nil, err
	}
	if data.Records == nil {
		data.Records = []T{}
	}
	return data.Records, nil
}

// ExecuteCount posts req to /v1/count.
func (c *Client[T]) ExecuteCount(ctx context.Context, req *queryir.CountRequest) (int, error) {
	var data CountData
	if err := c.post(ctx, PathCount, req, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

func (c *Client[T]) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response (HTTP %d): %w", path, resp.StatusCode, err)
	}
	if envelope.Status != "ok" {
		if envelope.Error == nil {
			return fmt.Errorf("%s: HTTP %d without error body", path, resp.StatusCode)
		}
		return envelope.Error.toError()
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
