package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/types"
)

// readRequest decodes a request file into dst. The file may be YAML or
// JSON; either way it is re-encoded as JSON and decoded with the HTTP
// binding's codec, so unknown fields are rejected the same way a server
// rejects them. A path of "-" reads in.
func readRequest(in io.Reader, path string, dst any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse request %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{} // empty file: the unconstrained request
	}
	wire, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode request %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(wire))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request %s: %w", path, err)
	}
	return nil
}

// formatRecord renders a record on one line with sorted field names.
func formatRecord(rec types.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, formatValue(rec[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue renders one field value. Values go through the portable
// literal domain first so typed slices print like decoded JSON arrays.
func formatValue(v any) string {
	if iv, err := ir.FromGo(v); err == nil {
		v = ir.ToGo(iv)
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
