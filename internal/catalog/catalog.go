// Package catalog holds the operations a rebuilt query may call.
//
// The catalog is an explicit table built at startup; nothing is discovered
// at runtime. Each Operation declares its generic slots and its parameter
// patterns over those slots, and carries the implementation the
// interpreter invokes once the slots are bound.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/remoteq/internal/types"
)

// OpKind distinguishes how an operation is invoked.
type OpKind int

const (
	// Static operations take no receiver; calls carry the "no receiver"
	// sentinel and all operands are arguments.
	Static OpKind = iota
	// Method operations are called on a receiver value.
	Method
	// Property operations read a named member of a receiver value.
	Property
)

func (k OpKind) String() string {
	switch k {
	case Static:
		return "static"
	case Method:
		return "method"
	case Property:
		return "property"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Impl executes an instantiated operation. recv is nil for static
// operations.
type Impl func(inst *Instance, recv any, args []any) (any, error)

// Operation describes one overload.
type Operation struct {
	Name  string
	Owner string
	Kind  OpKind

	// Slots are the operation's own generic type parameters.
	Slots []*types.Type

	// Receiver is the receiver pattern of methods and properties.
	Receiver *types.Type

	// Params are the argument patterns, excluding the receiver.
	Params []*types.Type

	// Result is the result pattern.
	Result *types.Type

	Impl Impl
}

// Signature renders the operation for diagnostics, e.g.
// "Queryable.Where[T](Queryable[T], Expr[Func[T,bool]]) Queryable[T]".
func (op *Operation) Signature() string {
	var b strings.Builder
	b.WriteString(op.Owner)
	b.WriteByte('.')
	b.WriteString(op.Name)
	if len(op.Slots) > 0 {
		b.WriteByte('[')
		for i, s := range op.Slots {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s.Name())
		}
		b.WriteByte(']')
	}
	if op.Kind == Property {
		fmt.Fprintf(&b, " %s", op.Result)
		return b.String()
	}
	b.WriteByte('(')
	b.WriteString(joinTypes(op.Params))
	b.WriteByte(')')
	fmt.Fprintf(&b, " %s", op.Result)
	return b.String()
}

// Instance is an operation whose slots are bound to concrete types.
type Instance struct {
	Op       *Operation
	TypeArgs []*types.Type
	Receiver *types.Type
	Params   []*types.Type
	Result   *types.Type
}

// Instantiate binds the operation's slots. Every slot must be bound.
func (op *Operation) Instantiate(bindings map[*types.Type]*types.Type) (*Instance, error) {
	inst := &Instance{Op: op}
	for _, s := range op.Slots {
		b, ok := bindings[s]
		if !ok {
			return nil, fmt.Errorf("%s: slot %s is unbound", op.Signature(), s.Name())
		}
		inst.TypeArgs = append(inst.TypeArgs, b)
	}
	if op.Receiver != nil {
		inst.Receiver = types.Substitute(op.Receiver, bindings)
	}
	inst.Params = make([]*types.Type, len(op.Params))
	for i, p := range op.Params {
		inst.Params[i] = types.Substitute(p, bindings)
	}
	inst.Result = types.Substitute(op.Result, bindings)
	return inst, nil
}

// Invoke runs the instance's implementation.
func (inst *Instance) Invoke(recv any, args []any) (any, error) {
	return inst.Op.Impl(inst, recv, args)
}

// Same reports whether two instances are the same operation with the same
// type arguments.
func (inst *Instance) Same(other *Instance) bool {
	if inst.Op != other.Op || len(inst.TypeArgs) != len(other.TypeArgs) {
		return false
	}
	for i := range inst.TypeArgs {
		if !types.Identical(inst.TypeArgs[i], other.TypeArgs[i]) {
			return false
		}
	}
	return true
}

// String renders the instance, e.g. "Enumerable.Contains[int](Seq[int], int) bool".
func (inst *Instance) String() string {
	var b strings.Builder
	b.WriteString(inst.Op.Owner)
	b.WriteByte('.')
	b.WriteString(inst.Op.Name)
	if len(inst.TypeArgs) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(typeNames(inst.TypeArgs), ","))
	}
	if inst.Op.Kind != Property {
		fmt.Fprintf(&b, "(%s)", joinTypes(inst.Params))
	}
	fmt.Fprintf(&b, " %s", inst.Result)
	return b.String()
}

// Catalog is an ordered table of operations. Lookups return operations in
// declaration order, which resolution policies depend on.
type Catalog struct {
	ops []*Operation
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Add validates and appends an operation.
func (c *Catalog) Add(op *Operation) error {
	if op.Name == "" || op.Owner == "" {
		return fmt.Errorf("operation needs a name and an owner")
	}
	if op.Result == nil {
		return fmt.Errorf("%s.%s: missing result type", op.Owner, op.Name)
	}
	if op.Impl == nil {
		return fmt.Errorf("%s: missing implementation", op.Signature())
	}
	if (op.Kind == Static) != (op.Receiver == nil) {
		return fmt.Errorf("%s: receiver must be set exactly for methods and properties", op.Signature())
	}
	if op.Kind == Property && len(op.Params) > 0 {
		return fmt.Errorf("%s: properties take no parameters", op.Signature())
	}
	inputs := op.Params
	if op.Receiver != nil {
		inputs = append([]*types.Type{op.Receiver}, op.Params...)
	}
	for _, s := range op.Slots {
		if !s.IsSlot() {
			return fmt.Errorf("%s: %s is not a slot", op.Signature(), s)
		}
		if !slices.ContainsFunc(inputs, func(p *types.Type) bool { return mentions(p, s) }) {
			return fmt.Errorf("%s: slot %s does not appear in any parameter", op.Signature(), s)
		}
	}
	c.ops = append(c.ops, op)
	return nil
}

// MustAdd is like Add but panics on error. Use for static tables.
func (c *Catalog) MustAdd(op *Operation) {
	if err := c.Add(op); err != nil {
		panic(err)
	}
}

// All returns every operation in declaration order.
func (c *Catalog) All() []*Operation {
	return slices.Clone(c.ops)
}

// Static returns the static operations named name across all owners.
func (c *Catalog) Static(name string) []*Operation {
	return c.filter(func(op *Operation) bool {
		return op.Kind == Static && op.Name == name
	})
}

// InOwner returns the static operations of one owner named name.
func (c *Catalog) InOwner(owner, name string) []*Operation {
	return c.filter(func(op *Operation) bool {
		return op.Kind == Static && op.Owner == owner && op.Name == name
	})
}

// Methods returns the method operations named name.
func (c *Catalog) Methods(name string) []*Operation {
	return c.filter(func(op *Operation) bool {
		return op.Kind == Method && op.Name == name
	})
}

// Properties returns the property operations named name.
func (c *Catalog) Properties(name string) []*Operation {
	return c.filter(func(op *Operation) bool {
		return op.Kind == Property && op.Name == name
	})
}

func (c *Catalog) filter(keep func(*Operation) bool) []*Operation {
	var out []*Operation
	for _, op := range c.ops {
		if keep(op) {
			out = append(out, op)
		}
	}
	return out
}

func mentions(t, slot *types.Type) bool {
	if t == slot {
		return true
	}
	for _, a := range t.Args() {
		if mentions(a, slot) {
			return true
		}
	}
	return false
}

func typeNames(ts []*types.Type) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

func joinTypes(ts []*types.Type) string {
	return strings.Join(typeNames(ts), ", ")
}
