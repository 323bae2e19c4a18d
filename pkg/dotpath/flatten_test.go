// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dotpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpack(t *testing.T) {
	d := map[string]any{
		"a": map[string]any{"b": []any{1, 2, 3}},
		"c": 4,
		"e": map[string]any{},
	}
	flat := Unpack(d)
	assert.Equal(t, map[string]any{
		"a.b": []any{1, 2, 3},
		"c":   4,
		"e":   map[string]any{},
	}, flat)
}

func TestUnpackQuotesKeys(t *testing.T) {
	d := map[string]any{"a.b": 1, "has space": 2}
	flat := Unpack(d)
	assert.Equal(t, map[string]any{"'a.b'": 1, "'has space'": 2}, flat)
}

func TestUnpackRoundTrip(t *testing.T) {
	d := map[string]any{
		"a":   map[string]any{"b": 1, "c.d": 2},
		"top": "v",
	}
	got, err := UpdateMultiMap(Auto, Unpack(d))
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestExpand(t *testing.T) {
	d := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "x": 3}
	got, err := Expand(d, "a.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b", "a.c"}, got)

	got, err = Expand(d, "a.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b"}, got)
}

func TestWalk(t *testing.T) {
	d := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "x": 3}

	var keys []string
	var vals []any
	for k, v := range Walk(d, "a.*") {
		keys = append(keys, k)
		vals = append(vals, v)
	}
	assert.Equal(t, []string{"a.b", "a.c"}, keys)
	assert.Equal(t, []any{1, 2}, vals)

	// breaking stops the traversal after the first yield
	n := 0
	for range Walk(d, "*") {
		n++
		break
	}
	assert.Equal(t, 1, n)

	// transforms apply per yielded value
	for _, v := range Walk(d, "a.b|str") {
		assert.Equal(t, "1", v)
	}

	// malformed keys yield nothing
	for range Walk(d, "a[") {
		t.Fatal("unexpected yield")
	}
}

func TestPluck(t *testing.T) {
	d := map[string]any{"a": map[string]any{"b": 1, "c": 2}}
	got, err := Pluck(d, "a.*")
	require.NoError(t, err)
	assert.Equal(t, []KV{{Key: "a.b", Value: 1}, {Key: "a.c", Value: 2}}, got)

	got, err = Pluck(d, "a.b")
	require.NoError(t, err)
	assert.Equal(t, []KV{{Key: "a.b", Value: 1}}, got)

	got, err = Pluck(d, "a.nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPluckMulti(t *testing.T) {
	d := map[string]any{"a": 1, "b": 2}
	got, err := PluckMulti(d, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []KV{{Key: "b", Value: 2}, {Key: "a", Value: 1}}, got)
}

func TestApply(t *testing.T) {
	got, err := Apply(map[string]any{"n": "41"}, "n|int")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(41)}, got)

	// no transforms means no rewrites
	got, err = Apply(map[string]any{"n": "41"}, "n")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": "41"}, got)

	got, err = Apply(map[string]any{"a": " x ", "b": " y "}, "*|strip")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "x", "b": "y"}, got)
}

func TestApplyRoot(t *testing.T) {
	got, err := Apply("41", "|int")
	require.NoError(t, err)
	assert.Equal(t, int64(41), got)
}

func TestApplyMulti(t *testing.T) {
	got, err := ApplyMulti(map[string]any{"n": "1", "s": " pad "}, []string{"n|int", "s|strip"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(1), "s": "pad"}, got)
}

func TestItems(t *testing.T) {
	t.Run("map sorted", func(t *testing.T) {
		got := Items(map[string]any{"b": 2, "a": 1})
		assert.Equal(t, []KV{{Key: "a", Value: 1}, {Key: "b", Value: 2}}, got)
	})
	t.Run("list slots", func(t *testing.T) {
		got := Items([]any{10, 20})
		assert.Equal(t, []KV{{Key: "[0]", Value: 10}, {Key: "[1]", Value: 20}}, got)
	})
	t.Run("record attrs", func(t *testing.T) {
		type point struct {
			X int
			Y int
		}
		got := Items(point{X: 1, Y: 2}, WithAttrs())
		assert.Equal(t, []KV{{Key: "@X", Value: 1}, {Key: "@Y", Value: 2}}, got)
	})
	t.Run("terminal", func(t *testing.T) {
		assert.Empty(t, Items(5))
	})
}

func TestKeysValues(t *testing.T) {
	d := map[string]any{"b": 2, "a": 1}
	assert.Equal(t, []string{"a", "b"}, Keys(d))
	assert.Equal(t, []any{1, 2}, Values(d))
	assert.Equal(t, []string{"[0]", "[1]"}, Keys([]any{"x", "y"}))
}
