// Package unify resolves overloaded, generically parameterized operations
// against concrete argument types.
//
// For one candidate, parameters are unified left to right. Each step
// commits slot bindings before the next parameter is examined, and every
// argument is tried as itself and then as each of its base types, each
// alternative on its own child binding set. Continuations collect every
// binding set that survives all parameters; each one whose slots are all
// bound becomes an instantiated operation.
package unify

import (
	"github.com/roach88/remoteq/internal/catalog"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

// Policy decides how many successful candidates a call site tolerates.
type Policy int

const (
	// FirstMatch takes the first successful candidate in declaration order.
	FirstMatch Policy = iota
	// SingleMatch requires exactly one successful candidate.
	SingleMatch
)

func (p Policy) String() string {
	if p == SingleMatch {
		return "single-match"
	}
	return "first-match"
}

// Bindings is an immutable chain of slot bindings. Bind returns a child, so
// alternatives explored from the same point never see each other's
// bindings. The zero value (nil) is the empty set.
type Bindings struct {
	parent *Bindings
	slot   *types.Type
	bound  *types.Type
}

// Lookup returns the binding of slot, searching towards the root.
func (b *Bindings) Lookup(slot *types.Type) (*types.Type, bool) {
	for n := b; n != nil; n = n.parent {
		if n.slot == slot {
			return n.bound, true
		}
	}
	return nil, false
}

// Bind returns a child binding set with slot bound to t.
func (b *Bindings) Bind(slot, t *types.Type) *Bindings {
	return &Bindings{parent: b, slot: slot, bound: t}
}

// Map flattens the chain. Inner bindings shadow outer ones.
func (b *Bindings) Map() map[*types.Type]*types.Type {
	m := make(map[*types.Type]*types.Type)
	for n := b; n != nil; n = n.parent {
		if _, seen := m[n.slot]; !seen {
			m[n.slot] = n.bound
		}
	}
	return m
}

// Candidates returns every instantiation of op applicable to the given
// receiver and argument types, in discovery order and without duplicates.
// recv must be nil for static operations and non-nil otherwise.
func Candidates(op *catalog.Operation, recv *types.Type, args []*types.Type) []*catalog.Instance {
	params := op.Params
	actual := args
	if op.Kind == catalog.Static {
		if recv != nil {
			return nil
		}
	} else {
		if recv == nil {
			return nil
		}
		params = append([]*types.Type{op.Receiver}, op.Params...)
		actual = append([]*types.Type{recv}, args...)
	}
	if len(params) != len(actual) {
		return nil
	}

	var out []*catalog.Instance
	unifyList(params, actual, nil, func(b *Bindings) {
		inst, err := op.Instantiate(b.Map())
		if err != nil {
			// some slot stayed unbound
			return
		}
		out = appendUnique(out, inst)
	})
	return out
}

// unifyList unifies params[i] with args[i] in order, threading bindings.
func unifyList(params, args []*types.Type, b *Bindings, k func(*Bindings)) {
	if len(params) == 0 {
		k(b)
		return
	}
	unifyArg(params[0], args[0], b, func(next *Bindings) {
		unifyList(params[1:], args[1:], next, k)
	})
}

// unifyArg tries the argument as itself, then as each base type.
func unifyArg(param, arg *types.Type, b *Bindings, k func(*Bindings)) {
	unifyType(param, arg, b, k)
	for _, base := range arg.Bases() {
		unifyArg(param, base, b, k)
	}
}

// unifyType is the per-position case analysis.
func unifyType(param, arg *types.Type, b *Bindings, k func(*Bindings)) {
	switch {
	case param.IsSlot():
		if bound, ok := b.Lookup(param); ok {
			if types.AssignableFrom(bound, arg) {
				k(b)
			}
			return
		}
		k(b.Bind(param, arg))

	case !types.ContainsSlots(param):
		if types.AssignableFrom(param, arg) {
			k(b)
		}

	case param.Kind() == types.KindShape && arg.Kind() == types.KindShape &&
		param.Shape() == arg.Shape() && len(param.Args()) == len(arg.Args()):
		unifyShapeArgs(param.Args(), arg.Args(), b, k)
	}
}

// unifyShapeArgs unifies the type arguments of two instances of the same
// shape. Type arguments are invariant, so bases are not tried here.
func unifyShapeArgs(params, args []*types.Type, b *Bindings, k func(*Bindings)) {
	if len(params) == 0 {
		k(b)
		return
	}
	unifyType(params[0], args[0], b, func(next *Bindings) {
		unifyShapeArgs(params[1:], args[1:], next, k)
	})
}

func appendUnique(list []*catalog.Instance, inst *catalog.Instance) []*catalog.Instance {
	for _, have := range list {
		if have.Same(inst) {
			return list
		}
	}
	return append(list, inst)
}

// Resolve tries every overload independently, in declaration order, and
// applies the policy to the successful candidates.
func Resolve(name string, ops []*catalog.Operation, recv *types.Type, args []*types.Type, policy Policy) (*catalog.Instance, error) {
	var found []*catalog.Instance
	for _, op := range ops {
		for _, inst := range Candidates(op, recv, args) {
			found = appendUnique(found, inst)
		}
	}

	switch {
	case len(found) == 0:
		return nil, qerr.NewOperationNotFound(name, argNames(recv, args))
	case len(found) > 1 && policy == SingleMatch:
		names := make([]string, len(found))
		for i, inst := range found {
			names[i] = inst.String()
		}
		return nil, qerr.NewAmbiguousOperation(name, argNames(recv, args), names)
	}
	return found[0], nil
}

// ResolveStatic resolves a receiver-less call against the static
// operations of every owner.
func ResolveStatic(cat *catalog.Catalog, name string, args []*types.Type, policy Policy) (*catalog.Instance, error) {
	return Resolve(name, cat.Static(name), nil, args, policy)
}

// ResolveIn resolves a static call against one owner's operations.
func ResolveIn(cat *catalog.Catalog, owner, name string, args []*types.Type, policy Policy) (*catalog.Instance, error) {
	return Resolve(name, cat.InOwner(owner, name), nil, args, policy)
}

// ResolveMethod resolves a method call on a receiver.
func ResolveMethod(cat *catalog.Catalog, recv *types.Type, name string, args []*types.Type, policy Policy) (*catalog.Instance, error) {
	return Resolve(name, cat.Methods(name), recv, args, policy)
}

// ResolveProperty resolves a catalog property of a receiver.
func ResolveProperty(cat *catalog.Catalog, recv *types.Type, name string, policy Policy) (*catalog.Instance, error) {
	return Resolve(name, cat.Properties(name), recv, nil, policy)
}

func argNames(recv *types.Type, args []*types.Type) []string {
	var names []string
	if recv != nil {
		names = append(names, "recv "+recv.Name())
	}
	for _, a := range args {
		names = append(names, a.Name())
	}
	return names
}
