// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package values

import (
	"fmt"
	"reflect"
	"sort"
)

// Record is the field-access capability behind @name segments. Two
// implementations ship here: Object (map-backed, mutable) and the
// reflect-backed struct adapter returned by AsRecord.
//
// SetField and DeleteField return the resulting record; an immutable
// implementation returns a rebuilt record that the caller writes back
// into the parent container.
type Record interface {
	// Fields lists field names in a deterministic order.
	Fields() []string
	// Field returns the named field's value.
	Field(name string) (any, bool)
	// SetField assigns a field and returns the resulting record.
	SetField(name string, val any) (Record, error)
	// DeleteField removes a field and returns the resulting record.
	DeleteField(name string) (Record, error)
}

// Tuple is a copy-on-write sequence. It never equals a []any of the
// same elements; the two are distinct kinds.
type Tuple []any

// ===== Object =====

// Object is a mutable record with insertion-ordered fields, the default
// container synthesized for @name segments on missing structure.
type Object struct {
	fields map[string]any
	order  []string
}

// NewObject builds an empty Object.
func NewObject() *Object {
	return &Object{fields: map[string]any{}}
}

// ObjectOf builds an Object from alternating name/value pairs.
func ObjectOf(pairs ...any) *Object {
	o := NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		o.fields[pairs[i].(string)] = pairs[i+1]
		o.order = append(o.order, pairs[i].(string))
	}
	return o
}

func (o *Object) Fields() []string { return o.order }

func (o *Object) Field(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

func (o *Object) SetField(name string, val any) (Record, error) {
	if _, ok := o.fields[name]; !ok {
		o.order = append(o.order, name)
	}
	o.fields[name] = val
	return o, nil
}

func (o *Object) DeleteField(name string) (Record, error) {
	if _, ok := o.fields[name]; !ok {
		return o, nil
	}
	delete(o.fields, name)
	for i, f := range o.order {
		if f == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return o, nil
}

func (o *Object) String() string {
	return fmt.Sprintf("Object%v", o.fields)
}

// ===== Struct adapter =====

// structRecord adapts a struct (or pointer to struct) via reflection.
// Pointer targets mutate in place; value structs rebuild on SetField.
type structRecord struct {
	val reflect.Value // struct value, addressable when backed by a pointer
	ptr bool
}

// AsRecord returns the Record view of v: Record implementations pass
// through, structs and struct pointers get a reflect adapter.
func AsRecord(v any) (Record, bool) {
	if r, ok := v.(Record); ok {
		return r, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		return &structRecord{val: rv.Elem(), ptr: true}, true
	}
	if rv.Kind() == reflect.Struct {
		return &structRecord{val: rv}, true
	}
	return nil, false
}

// RecordValue unwraps a struct adapter back to the underlying Go value
// so results read naturally; other Records return themselves.
func RecordValue(r Record) any {
	if sr, ok := r.(*structRecord); ok {
		if sr.ptr {
			return sr.val.Addr().Interface()
		}
		return sr.val.Interface()
	}
	return r
}

func (s *structRecord) Fields() []string {
	t := s.val.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *structRecord) Field(name string) (any, bool) {
	f := s.val.FieldByName(name)
	if !f.IsValid() {
		return nil, false
	}
	sf, ok := s.val.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, false
	}
	return f.Interface(), true
}

func (s *structRecord) SetField(name string, val any) (Record, error) {
	target := s.val
	rebuilt := false
	if !s.ptr {
		// value struct: rebuild a settable copy
		cp := reflect.New(s.val.Type()).Elem()
		cp.Set(s.val)
		target = cp
		rebuilt = true
	}
	f := target.FieldByName(name)
	if !f.IsValid() || !f.CanSet() {
		return nil, fmt.Errorf("record %s has no settable field %q", s.val.Type(), name)
	}
	rv := reflect.ValueOf(val)
	if val == nil {
		f.Set(reflect.Zero(f.Type()))
	} else if rv.Type().AssignableTo(f.Type()) {
		f.Set(rv)
	} else if rv.Type().ConvertibleTo(f.Type()) {
		f.Set(rv.Convert(f.Type()))
	} else {
		return nil, fmt.Errorf("cannot assign %T to field %s.%s", val, s.val.Type(), name)
	}
	if rebuilt {
		return &structRecord{val: target}, nil
	}
	return s, nil
}

func (s *structRecord) DeleteField(name string) (Record, error) {
	return nil, fmt.Errorf("cannot delete field %q from struct %s", name, s.val.Type())
}
