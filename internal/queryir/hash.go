package queryir

import (
	"github.com/roach88/remoteq/internal/ir"
)

// ToIR converts n to an ir.IRObject with the same keys as its JSON form.
// Absent attributes are omitted; a nil child becomes IRNull.
func (n *Node) ToIR() ir.IRObject {
	obj := ir.IRObject{"kind": ir.IRString(n.Kind)}
	if n.DeclaredTypeName != "" {
		obj["declared_type_name"] = ir.IRString(n.DeclaredTypeName)
	}
	if n.OperationName != "" {
		obj["operation_name"] = ir.IRString(n.OperationName)
	}
	if n.LiteralValue != nil {
		obj["literal_value"] = n.LiteralValue
	}
	if len(n.Children) > 0 {
		children := make(ir.IRArray, len(n.Children))
		for i, c := range n.Children {
			if c == nil {
				children[i] = ir.IRNull{}
				continue
			}
			children[i] = c.ToIR()
		}
		obj["children"] = children
	}
	return obj
}

// ToIR converts the request to its canonical envelope.
func (r *FilterSortPageRequest) ToIR() ir.IRObject {
	obj := ir.IRObject{}
	if r.Filter != nil {
		obj["filter"] = r.Filter.ToIR()
	}
	if r.Sort != nil {
		sort := ir.IRObject{"direction": ir.IRString(r.Sort.Direction)}
		if r.Sort.KeySelector != nil {
			sort["key_selector"] = r.Sort.KeySelector.ToIR()
		}
		obj["sort"] = sort
	}
	if r.Skip != nil {
		obj["skip"] = ir.IRInt(*r.Skip)
	}
	if r.Take != nil {
		obj["take"] = ir.IRInt(*r.Take)
	}
	return obj
}

// ToIR converts the request to its canonical envelope.
func (r *CountRequest) ToIR() ir.IRObject {
	obj := ir.IRObject{}
	if r.Filter != nil {
		obj["filter"] = r.Filter.ToIR()
	}
	return obj
}

// Hash returns the content hash of the request's canonical form.
func (r *FilterSortPageRequest) Hash() (string, error) {
	return ir.RequestHash(RequestKindQuery, r.ToIR())
}

// Hash returns the content hash of the request's canonical form.
func (r *CountRequest) Hash() (string, error) {
	return ir.RequestHash(RequestKindCount, r.ToIR())
}
