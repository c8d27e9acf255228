package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/remoteq/internal/types"
)

// LoadDataset reads a YAML (or JSON) list of records of type elem.
func LoadDataset[T any](path string, elem *types.Type) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset[T](data, elem)
}

// ParseDataset decodes a YAML list of mappings and coerces each entry to
// elem.
func ParseDataset[T any](data []byte, elem *types.Type) ([]T, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	out := make([]T, 0, len(raw))
	for i, m := range raw {
		v, err := types.Coerce(elem, m)
		if err != nil {
			return nil, fmt.Errorf("dataset record %d: %w", i, err)
		}
		rec, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("dataset record %d: %s decodes to %T, not %T", i, elem, v, rec)
		}
		out = append(out, rec)
	}
	return out, nil
}
