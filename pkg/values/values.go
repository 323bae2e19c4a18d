// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package values classifies and manipulates the generic value trees the
// path engine traverses: maps, sequences, sets, records, and scalars.
//
// Values are plain Go data (map[string]any, []any, scalars) plus a few
// container types defined here (Tuple, Set, Object). Every container kind
// carries an explicit mutability: in-place kinds mutate destructively,
// copy-on-write kinds rebuild on every logical mutation. Mutating
// operations on the capability views always return the resulting
// container so callers can write it back into the parent uniformly.
package values

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Kind tags every value the engine can encounter.
type Kind int

const (
	// KindOpaque marks values the engine treats as terminal scalars
	// (anything it has no container capability for).
	KindOpaque Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	// KindSeq is an in-place-mutable sequence ([]any).
	KindSeq
	// KindTuple is a copy-on-write sequence (Tuple).
	KindTuple
	// KindMap covers map[string]any and map[any]any.
	KindMap
	// KindSet is the ordered Set container.
	KindSet
	// KindRecord covers Record implementations and (via reflection)
	// struct and pointer-to-struct values.
	KindRecord
)

// String returns the lowercase name used by type restrictions (:int, :str).
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "list"
	case KindTuple:
		return "tuple"
	case KindMap:
		return "dict"
	case KindSet:
		return "set"
	case KindRecord:
		return "record"
	}
	return "opaque"
}

// KindOf classifies v. Integer widths collapse to KindInt and float32
// to KindFloat; structs and struct pointers classify as KindRecord.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	case []byte:
		return KindBytes
	case Tuple:
		return KindTuple
	case []any:
		return KindSeq
	case map[string]any, map[any]any:
		return KindMap
	case *Set:
		return KindSet
	case Record:
		return KindRecord
	default:
		rv := reflect.ValueOf(t)
		if rv.Kind() == reflect.Struct {
			return KindRecord
		}
		if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
			return KindRecord
		}
		return KindOpaque
	}
}

// IsContainer reports whether v can be navigated into.
func IsContainer(v any) bool {
	switch KindOf(v) {
	case KindSeq, KindTuple, KindMap, KindSet, KindRecord:
		return true
	}
	return false
}

// IsTerminal reports whether v is a leaf for traversal purposes.
// Strings and bytes are terminal: slices address them, keys do not.
func IsTerminal(v any) bool {
	return !IsContainer(v)
}

// ===== Numeric canonicalization =====

// AsInt converts any Go integer width to int64. ok is false for
// non-integers, including integral floats.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// AsFloat converts any numeric value to float64.
func AsFloat(v any) (float64, bool) {
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// NormalizeKey canonicalizes a key value: integer widths become int64,
// float32 becomes float64. Everything else passes through. Int and
// float keys stay distinct kinds; addressing a float-valued key that
// happens to be integral requires an explicitly float key.
func NormalizeKey(v any) any {
	if i, ok := AsInt(v); ok {
		return i
	}
	if f, ok := v.(float32); ok {
		return float64(f)
	}
	return v
}

// ===== Equality and ordering =====

// Equal compares two values structurally. Numbers compare across
// int/float kinds (1 == 1.0); container kinds never equal a different
// container kind (a Seq is not a Tuple).
func Equal(a, b any) bool {
	return equal(a, b, 0)
}

func equal(a, b any, depth int) bool {
	if depth > maxEqualDepth {
		return false
	}
	ka, kb := KindOf(a), KindOf(b)
	if (ka == KindInt || ka == KindFloat) && (kb == KindInt || kb == KindFloat) {
		ia, aok := AsInt(a)
		ib, bok := AsInt(b)
		if aok && bok {
			return ia == ib
		}
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		return fa == fb
	}
	if ka != kb {
		return false
	}
	switch ka {
	case KindNull:
		return true
	case KindBool:
		return a.(bool) == b.(bool)
	case KindString:
		return a.(string) == b.(string)
	case KindBytes:
		ab, bb := a.([]byte), b.([]byte)
		if len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	case KindSeq, KindTuple:
		sa, sb := asElems(a), asElems(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !equal(sa[i], sb[i], depth+1) {
				return false
			}
		}
		return true
	case KindMap:
		mka := MapKeys(a)
		mkb := MapKeys(b)
		if len(mka) != len(mkb) {
			return false
		}
		for _, k := range mka {
			va, _ := MapGet(a, k)
			vb, ok := MapGet(b, k)
			if !ok || !equal(va, vb, depth+1) {
				return false
			}
		}
		return true
	case KindSet:
		sa, sb := a.(*Set), b.(*Set)
		if sa.Len() != sb.Len() {
			return false
		}
		for _, m := range sa.Members() {
			if !sb.Has(m) {
				return false
			}
		}
		return true
	case KindRecord:
		ra, aok := AsRecord(a)
		rb, bok := AsRecord(b)
		if !aok || !bok {
			return false
		}
		fa, fb := ra.Fields(), rb.Fields()
		if len(fa) != len(fb) {
			return false
		}
		for _, f := range fa {
			va, _ := ra.Field(f)
			vb, ok := rb.Field(f)
			if !ok || !equal(va, vb, depth+1) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// maxEqualDepth bounds structural comparison on pathological inputs.
const maxEqualDepth = 1000

func asElems(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case Tuple:
		return s
	}
	return nil
}

// Compare orders two values. ok is false when the kinds are not
// mutually orderable; callers treat that as a silent non-match.
func Compare(a, b any) (int, bool) {
	ka, kb := KindOf(a), KindOf(b)
	if (ka == KindInt || ka == KindFloat) && (kb == KindInt || kb == KindFloat) {
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ka != kb {
		return 0, false
	}
	switch ka {
	case KindString:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	case KindBytes:
		sa, sb := string(a.([]byte)), string(b.([]byte))
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	case KindBool:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0, true
		}
		if !ba {
			return -1, true
		}
		return 1, true
	case KindSeq, KindTuple:
		sa, sb := asElems(a), asElems(b)
		n := len(sa)
		if len(sb) < n {
			n = len(sb)
		}
		for i := 0; i < n; i++ {
			c, ok := Compare(sa[i], sb[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		switch {
		case len(sa) < len(sb):
			return -1, true
		case len(sa) > len(sb):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ===== Identity =====

// Identity returns a stable identity for container values, used by
// recursive descent to detect self-reference. ok is false for values
// without a well-defined identity (scalars, copy-on-write rebuilds).
func Identity(v any) (uintptr, bool) {
	switch t := v.(type) {
	case *Set:
		return uintptr(reflect.ValueOf(t).Pointer()), true
	case *Object:
		return uintptr(reflect.ValueOf(t).Pointer()), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

// ===== Map helpers =====

func kindRank(v any) int {
	switch KindOf(v) {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindBytes:
		return 4
	}
	return 5
}

// SortedKeys orders arbitrary key sets deterministically: by kind class
// first, then numerically or lexically within a class. Go map iteration
// order is random, so every mapping enumeration in the engine goes
// through this.
func SortedKeys(keys []any) []any {
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		ra, rb := kindRank(a), kindRank(b)
		if ra != rb {
			return ra < rb
		}
		if c, ok := Compare(a, b); ok {
			return c < 0
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	})
	return keys
}

// MapKeys returns the keys of a mapping value in deterministic order.
func MapKeys(v any) []any {
	switch m := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out
	case map[any]any:
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, NormalizeKey(k))
		}
		return SortedKeys(keys)
	}
	return nil
}

// MapGet looks a key up in a mapping value.
func MapGet(v any, key any) (any, bool) {
	key = NormalizeKey(key)
	switch m := v.(type) {
	case map[string]any:
		s, ok := key.(string)
		if !ok {
			return nil, false
		}
		val, ok := m[s]
		return val, ok
	case map[any]any:
		val, ok := m[key]
		if ok {
			return val, true
		}
		// int64 keys may have been stored at a narrower width
		for k, kv := range m {
			if Equal(NormalizeKey(k), key) && KindOf(k) == KindOf(key) {
				return kv, true
			}
		}
		return nil, false
	}
	return nil, false
}

// MapSet stores key=val in a mapping value, widening map[string]any to
// map[any]any when the key is not a string. Returns the resulting map.
func MapSet(v any, key, val any) any {
	key = NormalizeKey(key)
	switch m := v.(type) {
	case map[string]any:
		if s, ok := key.(string); ok {
			m[s] = val
			return m
		}
		wide := make(map[any]any, len(m)+1)
		for k, kv := range m {
			wide[k] = kv
		}
		wide[key] = val
		return wide
	case map[any]any:
		m[key] = val
		return m
	}
	return v
}

// MapDelete removes a key from a mapping value. Returns the map.
func MapDelete(v any, key any) any {
	key = NormalizeKey(key)
	switch m := v.(type) {
	case map[string]any:
		if s, ok := key.(string); ok {
			delete(m, s)
		}
		return m
	case map[any]any:
		delete(m, key)
		return m
	}
	return v
}

// MapMake returns an empty mapping of the same kind as v.
func MapMake(v any) any {
	switch v.(type) {
	case map[any]any:
		return map[any]any{}
	}
	return map[string]any{}
}

// IsMap reports whether v is a mapping value.
func IsMap(v any) bool {
	return KindOf(v) == KindMap
}

// ===== Deep copy =====

// DeepCopy clones a value tree. Shared containers stay shared within
// the copy (one clone per identity), which also keeps cycles safe.
func DeepCopy(v any) any {
	return deepCopy(v, map[uintptr]any{})
}

func deepCopy(v any, memo map[uintptr]any) any {
	if id, ok := Identity(v); ok {
		if c, seen := memo[id]; seen {
			return c
		}
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		if id, ok := Identity(v); ok {
			memo[id] = out
		}
		for i, e := range t {
			out[i] = deepCopy(e, memo)
		}
		return out
	case Tuple:
		out := make(Tuple, len(t))
		for i, e := range t {
			out[i] = deepCopy(e, memo)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		if id, ok := Identity(v); ok {
			memo[id] = out
		}
		for k, e := range t {
			out[k] = deepCopy(e, memo)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		if id, ok := Identity(v); ok {
			memo[id] = out
		}
		for k, e := range t {
			out[k] = deepCopy(e, memo)
		}
		return out
	case *Set:
		out := NewSet()
		out.frozen = t.frozen
		if id, ok := Identity(v); ok {
			memo[id] = out
		}
		for _, m := range t.Members() {
			out.add(deepCopy(m, memo))
		}
		return out
	case *Object:
		out := NewObject()
		if id, ok := Identity(v); ok {
			memo[id] = out
		}
		for _, f := range t.Fields() {
			fv, _ := t.Field(f)
			out.fields[f] = deepCopy(fv, memo)
			out.order = append(out.order, f)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// IsNaN reports whether v is a floating NaN; NaN keys are rejected at
// the API boundary since they break equality.
func IsNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}
