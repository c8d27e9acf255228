package types

import (
	"fmt"
	"reflect"
)

var recordType = reflect.TypeFor[Record]()

// Field is one member of a record type.
type Field struct {
	Name string
	Type *Type

	// index is the struct field path; nil for schema-declared records.
	index []int
}

// Fields returns the record's fields in declaration order.
func (t *Type) Fields() []Field {
	return t.fields
}

// Field looks up a record field by name.
func (t *Type) Field(name string) (Field, bool) {
	if t.kind != KindRecord {
		return Field{}, false
	}
	i, ok := t.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Get reads the field from a record value: a struct (or pointer to one)
// for struct-backed records, a Record for schema-declared ones.
func (f Field) Get(recv any) (any, error) {
	if f.index == nil {
		rec, ok := recv.(Record)
		if !ok {
			return nil, fmt.Errorf("field %s: want Record, got %T", f.Name, recv)
		}
		if v, ok := rec[f.Name]; ok {
			return v, nil
		}
		return Zero(f.Type), nil
	}

	rv := reflect.ValueOf(recv)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("field %s: nil record", f.Name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("field %s: want struct, got %T", f.Name, recv)
	}
	return rv.FieldByIndex(f.index).Interface(), nil
}

// Zero returns the zero value of t, or nil when t has no runtime
// representation yet.
func Zero(t *Type) any {
	if t.goType == nil || t.kind == KindAny {
		return nil
	}
	return reflect.Zero(t.goType).Interface()
}

func (t *Type) addField(f Field) {
	if t.fieldIndex == nil {
		t.fieldIndex = make(map[string]int)
	}
	t.fieldIndex[f.Name] = len(t.fields)
	t.fields = append(t.fields, f)
}

// Build constructs a record value of t from field values. Missing fields
// take their zero value. Values must already have the field's Go type.
func Build(t *Type, values map[string]any) (any, error) {
	if t.kind != KindRecord {
		return nil, fmt.Errorf("build %s: not a record", t.name)
	}
	for name := range values {
		if _, ok := t.fieldIndex[name]; !ok {
			return nil, fmt.Errorf("build %s: unknown field %q", t.name, name)
		}
	}

	if t.goType == recordType {
		rec := make(Record, len(t.fields))
		for _, f := range t.fields {
			if v, ok := values[f.Name]; ok {
				rec[f.Name] = v
			} else {
				rec[f.Name] = Zero(f.Type)
			}
		}
		return rec, nil
	}

	rv := reflect.New(t.goType).Elem()
	for _, f := range t.fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		val := reflect.ValueOf(v)
		dst := rv.FieldByIndex(f.index)
		if !val.Type().AssignableTo(dst.Type()) {
			return nil, fmt.Errorf("build %s: field %s wants %s, got %T", t.name, f.Name, dst.Type(), v)
		}
		dst.Set(val)
	}
	return rv.Interface(), nil
}
