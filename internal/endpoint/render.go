package endpoint

import (
	"fmt"

	"github.com/roach88/remoteq/internal/ir"
	"github.com/roach88/remoteq/internal/types"
)

// RecordsToIR renders records of type elem as an array of objects keyed by
// field name. The rendering is what result hashes are computed over and
// what the HTTP binding sends.
func RecordsToIR[T any](elem *types.Type, records []T) (ir.IRArray, error) {
	out := make(ir.IRArray, len(records))
	for i, rec := range records {
		v, err := valueToIR(elem, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func valueToIR(t *types.Type, v any) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}
	switch {
	case t.Kind() == types.KindRecord:
		obj := make(ir.IRObject, len(t.Fields()))
		for _, f := range t.Fields() {
			fv, err := f.Get(v)
			if err != nil {
				return nil, err
			}
			if obj[f.Name], err = valueToIR(f.Type, fv); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
		}
		return obj, nil
	case t.Elem() != nil && t.Elem().Kind() == types.KindRecord:
		return nil, fmt.Errorf("nested record sequences are not portable")
	}
	return ir.FromGo(v)
}
