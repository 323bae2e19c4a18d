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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"int", 7, KindInt},
		{"int64", int64(7), KindInt},
		{"uint8", uint8(7), KindInt},
		{"float", 7.5, KindFloat},
		{"string", "x", KindString},
		{"bytes", []byte("x"), KindBytes},
		{"seq", []any{1}, KindSeq},
		{"tuple", Tuple{1}, KindTuple},
		{"map_str", map[string]any{}, KindMap},
		{"map_any", map[any]any{}, KindMap},
		{"set", NewSet(1), KindSet},
		{"object", NewObject(), KindRecord},
		{"struct", struct{ A int }{}, KindRecord},
		{"struct_ptr", &struct{ A int }{}, KindRecord},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.in))
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int_float", int64(1), 1.0, true},
		{"int_widths", 7, int64(7), true},
		{"string", "a", "a", true},
		{"string_bytes", "a", []byte("a"), false},
		{"seq", []any{1, 2}, []any{int64(1), 2.0}, true},
		{"seq_vs_tuple", []any{1}, Tuple{1}, false},
		{"map", map[string]any{"a": 1}, map[string]any{"a": int64(1)}, true},
		{"map_kinds", map[string]any{"a": 1}, map[any]any{"a": 1}, true},
		{"set", NewSet(1, 2), NewSet(2, 1), true},
		{"nested", map[string]any{"a": []any{1}}, map[string]any{"a": []any{2}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
		})
	}
}

func TestCompare(t *testing.T) {
	c, ok := Compare(int64(3), 4.5)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("b", "a")
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare("a", 1)
	assert.False(t, ok)

	_, ok = Compare(map[string]any{}, map[string]any{})
	assert.False(t, ok)
}

func TestSortedKeysDeterministic(t *testing.T) {
	keys := []any{"b", int64(10), "a", int64(2), true, nil}
	got := SortedKeys(keys)
	assert.Equal(t, []any{nil, true, int64(2), int64(10), "a", "b"}, got)
}

func TestMapWidening(t *testing.T) {
	m := any(map[string]any{"a": 1})
	m = MapSet(m, int64(7), "x")
	wide, ok := m.(map[any]any)
	require.True(t, ok, "string map should widen for non-string key")
	assert.Equal(t, 1, wide["a"])
	v, found := MapGet(m, 7)
	require.True(t, found)
	assert.Equal(t, "x", v)
}

func TestDeepCopyIndependent(t *testing.T) {
	src := map[string]any{"a": []any{1, map[string]any{"b": 2}}}
	cp := DeepCopy(src).(map[string]any)
	cp["a"].([]any)[1].(map[string]any)["b"] = 99
	assert.Equal(t, 2, src["a"].([]any)[1].(map[string]any)["b"])
}

func TestDeepCopyCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	cp := DeepCopy(m).(map[string]any)
	// the copy points at itself, not at the original
	assert.NotPanics(t, func() {
		inner := cp["self"].(map[string]any)
		_, same := inner["self"]
		assert.True(t, same)
	})
}

func TestSeqOps(t *testing.T) {
	t.Run("set_in_place", func(t *testing.T) {
		s := []any{1, 2, 3}
		out, ok := SeqSet(s, -1, "z")
		require.True(t, ok)
		assert.Equal(t, []any{1, 2, "z"}, out)
		assert.Equal(t, "z", s[2], "[]any mutates in place")
	})
	t.Run("tuple_copy_on_write", func(t *testing.T) {
		tp := Tuple{1, 2}
		out, ok := SeqSet(tp, 0, "a")
		require.True(t, ok)
		assert.Equal(t, Tuple{"a", 2}, out)
		assert.Equal(t, 1, tp[0], "tuples never mutate")
	})
	t.Run("set_at_len_appends", func(t *testing.T) {
		out, ok := SeqSet([]any{1}, 1, 2)
		require.True(t, ok)
		assert.Equal(t, []any{1, 2}, out)
	})
	t.Run("string_rebuild", func(t *testing.T) {
		out, ok := SeqSet("abc", 1, "X")
		require.True(t, ok)
		assert.Equal(t, "aXc", out)
	})
	t.Run("delete", func(t *testing.T) {
		out, ok := SeqDelete([]any{1, 2, 3}, 1)
		require.True(t, ok)
		assert.Equal(t, []any{1, 3}, out)
	})
}

func TestSlices(t *testing.T) {
	seq := []any{0, 1, 2, 3, 4}
	i64 := func(n int64) *int64 { return &n }

	t.Run("get", func(t *testing.T) {
		out, ok := SeqSliceGet(seq, i64(1), i64(4), nil)
		require.True(t, ok)
		assert.Equal(t, []any{1, 2, 3}, out)
	})
	t.Run("get_negative_step", func(t *testing.T) {
		out, ok := SeqSliceGet(seq, nil, nil, i64(-2))
		require.True(t, ok)
		assert.Equal(t, []any{4, 2, 0}, out)
	})
	t.Run("splice_grows", func(t *testing.T) {
		out, ok := SeqSliceSet([]any{0, 1, 2}, i64(1), i64(2), nil, []any{"a", "b"})
		require.True(t, ok)
		assert.Equal(t, []any{0, "a", "b", 2}, out)
	})
	t.Run("delete_region", func(t *testing.T) {
		out, ok := SeqSliceDelete([]any{0, 1, 2, 3}, i64(1), i64(3), nil)
		require.True(t, ok)
		assert.Equal(t, []any{0, 3}, out)
	})
	t.Run("string_slice", func(t *testing.T) {
		out, ok := SeqSliceGet("hello", i64(1), i64(4), nil)
		require.True(t, ok)
		assert.Equal(t, "ell", out)
	})
}

func TestSet(t *testing.T) {
	s := NewSet(1, 2, 2, 3)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(2.0), "numeric membership crosses int/float")

	frozen := NewFrozenSet(1, 2)
	grown := frozen.Add(3)
	assert.Equal(t, 2, frozen.Len(), "frozen set never mutates")
	assert.Equal(t, 3, grown.Len())

	shrunk := frozen.Remove(1)
	assert.Equal(t, 2, frozen.Len())
	assert.Equal(t, 1, shrunk.Len())
}

func TestRecordObject(t *testing.T) {
	o := NewObject()
	r, err := o.SetField("name", "ada")
	require.NoError(t, err)
	assert.Same(t, o, r.(*Object), "objects mutate in place")

	v, ok := o.Field("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	_, err = o.DeleteField("name")
	require.NoError(t, err)
	_, ok = o.Field("name")
	assert.False(t, ok)
}

func TestRecordStruct(t *testing.T) {
	type point struct {
		X int
		Y int
	}

	t.Run("pointer_mutates", func(t *testing.T) {
		p := &point{X: 1}
		r, ok := AsRecord(p)
		require.True(t, ok)
		_, err := r.SetField("X", 9)
		require.NoError(t, err)
		assert.Equal(t, 9, p.X)
	})
	t.Run("value_rebuilds", func(t *testing.T) {
		p := point{X: 1}
		r, ok := AsRecord(p)
		require.True(t, ok)
		r2, err := r.SetField("X", 9)
		require.NoError(t, err)
		assert.Equal(t, 1, p.X)
		got := RecordValue(r2).(point)
		assert.Equal(t, 9, got.X)
	})
	t.Run("delete_fails", func(t *testing.T) {
		r, ok := AsRecord(&point{})
		require.True(t, ok)
		_, err := r.DeleteField("X")
		assert.Error(t, err)
	})
}

func TestIdentity(t *testing.T) {
	m := map[string]any{}
	id1, ok := Identity(m)
	require.True(t, ok)
	id2, _ := Identity(m)
	assert.Equal(t, id1, id2)

	_, ok = Identity("scalar")
	assert.False(t, ok)
}
