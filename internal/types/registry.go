package types

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/remoteq/internal/qerr"
)

// Registry maps stable type names to descriptors. It is populated once at
// startup and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	named map[string]*Type
	byGo  map[reflect.Type]*Type
}

// FieldSpec declares one field of a schema-backed record.
// Type is any name Resolve accepts, e.g. "int" or "Seq[string]".
type FieldSpec struct {
	Name string
	Type string
}

// NewRegistry returns a registry holding the builtin scalars.
func NewRegistry() *Registry {
	r := &Registry{
		named: make(map[string]*Type),
		byGo:  make(map[reflect.Type]*Type),
	}
	for _, t := range builtins {
		r.named[t.name] = t
		r.byGo[t.goType] = t
	}
	return r
}

// Struct registers the Go struct type T under name.
func Struct[T any](r *Registry, name string) (*Type, error) {
	return r.RegisterStruct(name, reflect.TypeFor[T]())
}

// RegisterStruct registers a Go struct type as a record. Exported fields
// become record fields; nested struct types are registered under their Go
// names. Registering the same struct twice returns the existing type.
func (r *Registry) RegisterStruct(name string, rt reflect.Type) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerStructLocked(name, rt)
}

func (r *Registry) registerStructLocked(name string, rt reflect.Type) (*Type, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("register %s: %s is not a struct", name, rt)
	}
	if err := validRecordName(name); err != nil {
		return nil, err
	}
	if existing, ok := r.byGo[rt]; ok {
		if existing.name != name {
			return nil, fmt.Errorf("register %s: %s already registered as %s", name, rt, existing.name)
		}
		return existing, nil
	}
	if _, taken := r.named[name]; taken {
		return nil, fmt.Errorf("register %s: name already in use", name)
	}

	// Insert before resolving fields so self-referencing structs terminate.
	t := &Type{name: name, kind: KindRecord, goType: rt}
	r.named[name] = t
	r.byGo[rt] = t

	for _, sf := range reflect.VisibleFields(rt) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		ft, err := r.typeOfLocked(sf.Type)
		if err != nil {
			delete(r.named, name)
			delete(r.byGo, rt)
			return nil, fmt.Errorf("register %s: field %s: %w", name, sf.Name, err)
		}
		t.addField(Field{Name: sf.Name, Type: ft, index: sf.Index})
	}
	return t, nil
}

// RegisterSchema registers a map-backed record whose values are Record.
func (r *Registry) RegisterSchema(name string, fields []FieldSpec) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validRecordName(name); err != nil {
		return nil, err
	}
	if _, taken := r.named[name]; taken {
		return nil, fmt.Errorf("register %s: name already in use", name)
	}

	t := &Type{name: name, kind: KindRecord, goType: recordType}
	r.named[name] = t
	for _, fs := range fields {
		if _, dup := t.fieldIndex[fs.Name]; dup {
			delete(r.named, name)
			return nil, fmt.Errorf("register %s: duplicate field %s", name, fs.Name)
		}
		ft, err := r.resolveLocked(fs.Type)
		if err != nil {
			delete(r.named, name)
			return nil, fmt.Errorf("register %s: field %s: %w", name, fs.Name, err)
		}
		if ContainsSlots(ft) || ft.goType == nil {
			delete(r.named, name)
			return nil, fmt.Errorf("register %s: field %s: type %s has no runtime form", name, fs.Name, ft)
		}
		t.addField(Field{Name: fs.Name, Type: ft})
	}
	return t, nil
}

// Lookup returns a registered scalar or record by name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.named[name]
	return t, ok
}

// Resolve parses a type name such as "Expr[Func[TestData,bool]]" and
// returns its descriptor. Unknown names fail with TYPE_RESOLUTION_FAILED.
func (r *Registry) Resolve(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (*Type, error) {
	p := &nameParser{src: name, reg: r}
	t, err := p.parse()
	if err != nil {
		return nil, qerr.NewTypeResolutionFailed(name, err)
	}
	return t, nil
}

// TypeOf maps a Go type to its descriptor: registered scalars and records,
// and slices as Seq of their element type.
func (r *Registry) TypeOf(rt reflect.Type) (*Type, error) {
	r.mu.RLock()
	t, ok := r.byGo[rt]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typeOfLocked(rt)
}

func (r *Registry) typeOfLocked(rt reflect.Type) (*Type, error) {
	if t, ok := r.byGo[rt]; ok {
		return t, nil
	}
	switch rt.Kind() {
	case reflect.Slice:
		elem, err := r.typeOfLocked(rt.Elem())
		if err != nil {
			return nil, err
		}
		return Seq(elem), nil
	case reflect.Struct:
		if rt.Name() == "" {
			return nil, fmt.Errorf("anonymous struct %s cannot be registered", rt)
		}
		return r.registerStructLocked(rt.Name(), rt)
	}
	return nil, fmt.Errorf("go type %s has no registered descriptor", rt)
}

func validRecordName(name string) error {
	if name == "" || strings.ContainsAny(name, "[], ") {
		return fmt.Errorf("invalid record name %q", name)
	}
	switch name {
	case ShapeSeq, ShapeQueryable, ShapeFunc, ShapeExpr:
		return fmt.Errorf("record name %q collides with a shape", name)
	}
	return nil
}

// nameParser is a recursive descent parser over
//
//	type = ident [ "[" type { "," type } "]" ]
type nameParser struct {
	src string
	pos int
	reg *Registry
}

func (p *nameParser) parse() (*Type, error) {
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return t, nil
}

func (p *nameParser) parseType() (*Type, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("[], ", rune(p.src[p.pos])) {
		p.pos++
	}
	ident := p.src[start:p.pos]
	if ident == "" {
		return nil, fmt.Errorf("expected type name at offset %d", start)
	}

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '[' {
		if t, ok := p.reg.named[ident]; ok {
			return t, nil
		}
		if isShape(ident) {
			return nil, fmt.Errorf("shape %s needs type arguments", ident)
		}
		return nil, fmt.Errorf("unknown type %s", ident)
	}

	if !isShape(ident) {
		return nil, fmt.Errorf("unknown shape %s", ident)
	}
	p.pos++ // '['
	var args []*Type
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated type arguments of %s", ident)
		}
		c := p.src[p.pos]
		p.pos++
		if c == ']' {
			break
		}
		if c != ',' {
			return nil, fmt.Errorf("unexpected %q in type arguments of %s", c, ident)
		}
	}

	switch ident {
	case ShapeSeq, ShapeQueryable:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes 1 type argument, got %d", ident, len(args))
		}
	case ShapeExpr:
		if len(args) != 1 || !args[0].Is(ShapeFunc) {
			return nil, fmt.Errorf("Expr takes one Func type argument")
		}
	}
	return shape(ident, args...), nil
}

func (p *nameParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func isShape(name string) bool {
	switch name {
	case ShapeSeq, ShapeQueryable, ShapeFunc, ShapeExpr:
		return true
	}
	return false
}
