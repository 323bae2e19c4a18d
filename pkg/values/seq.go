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

import "strings"

// Sequence helpers. All mutators return the resulting sequence value;
// []any mutates in place where it can, Tuple/string/bytes rebuild.
// Negative indices count from the end.

// IsSeq reports whether v supports positional addressing. Strings and
// bytes qualify for slicing even though they are terminal for key
// traversal.
func IsSeq(v any) bool {
	switch KindOf(v) {
	case KindSeq, KindTuple, KindString, KindBytes:
		return true
	}
	return false
}

// SeqLen returns the element count of a sequence value.
func SeqLen(v any) (int, bool) {
	switch s := v.(type) {
	case []any:
		return len(s), true
	case Tuple:
		return len(s), true
	case string:
		return len(s), true
	case []byte:
		return len(s), true
	}
	return 0, false
}

func normIndex(i int64, length int) (int, bool) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}

// SeqAt returns the element at index i (negative counts from the end).
// String elements are one-character strings; byte elements are int64.
func SeqAt(v any, i int64) (any, bool) {
	length, ok := SeqLen(v)
	if !ok {
		return nil, false
	}
	idx, ok := normIndex(i, length)
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []any:
		return s[idx], true
	case Tuple:
		return s[idx], true
	case string:
		return s[idx : idx+1], true
	case []byte:
		return int64(s[idx]), true
	}
	return nil, false
}

// SeqElems materializes the elements of a sequence value.
func SeqElems(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case Tuple:
		return s, true
	case string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i : i+1]
		}
		return out, true
	case []byte:
		out := make([]any, len(s))
		for i, b := range s {
			out[i] = int64(b)
		}
		return out, true
	}
	return nil, false
}

// SeqSet assigns index i, appending when i == len. Returns the
// resulting sequence.
func SeqSet(v any, i int64, val any) (any, bool) {
	length, lok := SeqLen(v)
	if !lok {
		return v, false
	}
	if i == int64(length) || (i >= 0 && i > int64(length)) {
		// out-of-range non-negative index appends (padding is the
		// slice splicer's job, plain sets clamp to append)
		return SeqAppend(v, val)
	}
	idx, ok := normIndex(i, length)
	if !ok {
		return v, false
	}
	switch s := v.(type) {
	case []any:
		s[idx] = val
		return s, true
	case Tuple:
		out := make(Tuple, len(s))
		copy(out, s)
		out[idx] = val
		return out, true
	case string:
		sv, sok := val.(string)
		if !sok {
			return v, false
		}
		return s[:idx] + sv + s[idx+1:], true
	case []byte:
		b, bok := AsInt(val)
		if !bok {
			return v, false
		}
		out := make([]byte, len(s))
		copy(out, s)
		out[idx] = byte(b)
		return out, true
	}
	return v, false
}

// SeqAppend appends val and returns the resulting sequence.
func SeqAppend(v any, val any) (any, bool) {
	switch s := v.(type) {
	case []any:
		return append(s, val), true
	case Tuple:
		out := make(Tuple, len(s), len(s)+1)
		copy(out, s)
		return append(out, val), true
	case string:
		sv, ok := val.(string)
		if !ok {
			return v, false
		}
		return s + sv, true
	case []byte:
		if b, ok := AsInt(val); ok {
			return append(append([]byte{}, s...), byte(b)), true
		}
		if bs, ok := val.([]byte); ok {
			return append(append([]byte{}, s...), bs...), true
		}
		return v, false
	}
	return v, false
}

// SeqContains reports membership by structural equality.
func SeqContains(v any, val any) bool {
	if s, ok := val.(string); ok {
		if str, sok := v.(string); sok {
			return strings.Contains(str, s)
		}
	}
	elems, ok := SeqElems(v)
	if !ok {
		return false
	}
	for _, e := range elems {
		if Equal(e, val) {
			return true
		}
	}
	return false
}

// SeqDelete removes index i and returns the resulting sequence.
func SeqDelete(v any, i int64) (any, bool) {
	length, lok := SeqLen(v)
	if !lok {
		return v, false
	}
	idx, ok := normIndex(i, length)
	if !ok {
		return v, false
	}
	switch s := v.(type) {
	case []any:
		return append(s[:idx], s[idx+1:]...), true
	case Tuple:
		out := make(Tuple, 0, len(s)-1)
		out = append(out, s[:idx]...)
		return append(out, s[idx+1:]...), true
	case string:
		return s[:idx] + s[idx+1:], true
	case []byte:
		out := make([]byte, 0, len(s)-1)
		out = append(out, s[:idx]...)
		return append(out, s[idx+1:]...), true
	}
	return v, false
}

// SeqOfSameKind rebuilds elems into the same sequence kind as proto.
// String and bytes protos join their element forms back together.
func SeqOfSameKind(proto any, elems []any) any {
	switch proto.(type) {
	case Tuple:
		out := make(Tuple, len(elems))
		copy(out, elems)
		return out
	case string:
		var b strings.Builder
		for _, e := range elems {
			if s, ok := e.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	case []byte:
		out := make([]byte, 0, len(elems))
		for _, e := range elems {
			if n, ok := AsInt(e); ok {
				out = append(out, byte(n))
			} else if bs, ok := e.([]byte); ok {
				out = append(out, bs...)
			}
		}
		return out
	default:
		out := make([]any, len(elems))
		copy(out, elems)
		return out
	}
}

// ===== Slices =====

// SliceIndices resolves optional start/stop/step against a length the
// way sequence slicing conventionally clamps them. step never resolves
// to zero.
func SliceIndices(start, stop, step *int64, length int) (int, int, int) {
	st := int64(1)
	if step != nil && *step != 0 {
		st = *step
	}
	var lo, hi int64
	if st > 0 {
		lo, hi = 0, int64(length)
	} else {
		lo, hi = int64(length)-1, -1
	}
	clamp := func(i int64, low, high int64) int64 {
		if i < 0 {
			i += int64(length)
		}
		if i < low {
			return low
		}
		if i > high {
			return high
		}
		return i
	}
	if start != nil {
		if st > 0 {
			lo = clamp(*start, 0, int64(length))
		} else {
			if *start < 0 && *start+int64(length) < 0 {
				lo = -1
			} else {
				lo = clamp(*start, -1, int64(length)-1)
			}
		}
	}
	if stop != nil {
		if st > 0 {
			hi = clamp(*stop, 0, int64(length))
		} else {
			if *stop < 0 && *stop+int64(length) < 0 {
				hi = -1
			} else {
				hi = clamp(*stop, -1, int64(length)-1)
			}
		}
	}
	return int(lo), int(hi), int(st)
}

// SliceRange expands resolved slice bounds to concrete indices.
func SliceRange(start, stop *int64, step *int64, length int) []int {
	lo, hi, st := SliceIndices(start, stop, step, length)
	var out []int
	if st > 0 {
		for i := lo; i < hi; i += st {
			out = append(out, i)
		}
	} else {
		for i := lo; i > hi; i += st {
			out = append(out, i)
		}
	}
	return out
}

// SeqSliceGet extracts a subsequence of the same kind.
func SeqSliceGet(v any, start, stop, step *int64) (any, bool) {
	length, ok := SeqLen(v)
	if !ok {
		return nil, false
	}
	elems, _ := SeqElems(v)
	var picked []any
	for _, i := range SliceRange(start, stop, step, length) {
		picked = append(picked, elems[i])
	}
	return SeqOfSameKind(v, picked), true
}

// SeqSliceSet splices vals over the slice region. A unit-step splice
// may grow or shrink the sequence; extended-step splices assign
// elementwise over the selected indices (extra vals are dropped,
// missing positions keep their old value).
func SeqSliceSet(v any, start, stop, step *int64, vals []any) (any, bool) {
	length, ok := SeqLen(v)
	if !ok {
		return v, false
	}
	elems, _ := SeqElems(v)
	lo, hi, st := SliceIndices(start, stop, step, length)
	if st == 1 {
		if hi < lo {
			hi = lo
		}
		out := make([]any, 0, len(elems)-(hi-lo)+len(vals))
		out = append(out, elems[:lo]...)
		out = append(out, vals...)
		out = append(out, elems[hi:]...)
		return SeqOfSameKind(v, out), true
	}
	idxs := SliceRange(start, stop, step, length)
	out := append([]any{}, elems...)
	for i, idx := range idxs {
		if i >= len(vals) {
			break
		}
		out[idx] = vals[i]
	}
	return SeqOfSameKind(v, out), true
}

// SeqSliceDelete removes the slice region.
func SeqSliceDelete(v any, start, stop, step *int64) (any, bool) {
	length, ok := SeqLen(v)
	if !ok {
		return v, false
	}
	elems, _ := SeqElems(v)
	drop := map[int]bool{}
	for _, i := range SliceRange(start, stop, step, length) {
		drop[i] = true
	}
	var out []any
	for i, e := range elems {
		if !drop[i] {
			out = append(out, e)
		}
	}
	return SeqOfSameKind(v, out), true
}
