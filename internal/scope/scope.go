// Package scope binds lambda parameter names to parameter identities while
// a portable tree is rebuilt.
//
// A Scope covers one lambda's lexical extent and chains to the scope of
// the enclosing lambda. Scopes are request-local values threaded through
// the rebuild call tree; leaving a lambda is just returning to the parent
// value, so every exit path, errors included, restores it.
package scope

import (
	"github.com/roach88/remoteq/internal/expr"
	"github.com/roach88/remoteq/internal/qerr"
	"github.com/roach88/remoteq/internal/types"
)

// Scope is one level of the symbol table.
type Scope struct {
	parent *Scope
	params map[string]*expr.Parameter
	order  []*expr.Parameter
}

// New returns an empty root scope.
func New() *Scope {
	return &Scope{params: make(map[string]*expr.Parameter)}
}

// Enter returns a child scope for a nested lambda.
func (s *Scope) Enter() *Scope {
	child := New()
	child.parent = s
	return child
}

// Parent returns the enclosing scope, nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Lookup finds name in this scope or any enclosing one.
func (s *Scope) Lookup(name string) (*expr.Parameter, bool) {
	for n := s; n != nil; n = n.parent {
		if p, ok := n.params[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// Declare introduces a lambda's own parameter in this scope. It shadows
// any outer parameter of the same name; a second declaration in the same
// scope is a conflict.
func (s *Scope) Declare(t *types.Type, name string) (*expr.Parameter, error) {
	if existing, ok := s.params[name]; ok {
		return nil, qerr.NewParameterBindingConflict(name, existing.Type().Name(), t.Name()).
			WithDetail("reason", "declared twice in one lambda")
	}
	return s.bind(t, name), nil
}

// ResolveOrDeclare returns the parameter bound to name anywhere in the
// chain, or declares a new one of type t in this scope. A found binding
// of a different type is a conflict.
func (s *Scope) ResolveOrDeclare(t *types.Type, name string) (*expr.Parameter, error) {
	if p, ok := s.Lookup(name); ok {
		if !types.Identical(p.Type(), t) {
			return nil, qerr.NewParameterBindingConflict(name, p.Type().Name(), t.Name())
		}
		return p, nil
	}
	return s.bind(t, name), nil
}

func (s *Scope) bind(t *types.Type, name string) *expr.Parameter {
	p := expr.NewParameter(t, name)
	s.params[name] = p
	s.order = append(s.order, p)
	return p
}

// Declared returns the parameters bound in this scope, in declaration
// order.
func (s *Scope) Declared() []*expr.Parameter {
	return s.order
}

// Close checks that everything bound in this scope is one of the lambda's
// own parameters. Anything else was referenced without being declared by
// this lambda or an enclosing one.
func (s *Scope) Close(own []*expr.Parameter) error {
	for _, p := range s.order {
		if !contains(own, p) {
			return qerr.NewUnboundParameter(p.Name)
		}
	}
	return nil
}

func contains(ps []*expr.Parameter, p *expr.Parameter) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}
