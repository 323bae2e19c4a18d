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

	"github.com/AleutianAI/dotpath/pkg/values"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"hello": map[string]any{
			"there": map[string]any{"stuff": 1},
			"world": 2,
		},
		"items": []any{10, 20, 30, 40},
	}
}

func TestGetConcrete(t *testing.T) {
	d := sampleDoc()
	tests := []struct {
		name string
		key  string
		want any
	}{
		{"nested key", "hello.there.stuff", 1},
		{"shallow key", "hello.world", 2},
		{"slot", "items[1]", 20},
		{"negative slot", "items[-1]", 40},
		{"missing", "hello.nope", nil},
		{"slice", "items[1:3]", []any{20, 30}},
		{"slice step", "items[::2]", []any{10, 30}},
		{"empty key is root", "", d},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(d, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetDefaults(t *testing.T) {
	d := sampleDoc()
	got, err := Get(d, "hello.nope", WithDefault("fallback"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	got, err = Get(d, "hello.*.missing", WithPatternDefault("none matched"))
	require.NoError(t, err)
	assert.Equal(t, "none matched", got)
}

func TestGetStrict(t *testing.T) {
	d := sampleDoc()
	_, err := Get(d, "hello.nope", WithStrict())
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := Get(d, "hello.world", WithStrict())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestGetPatterns(t *testing.T) {
	d := sampleDoc()
	tests := []struct {
		name string
		key  string
		want values.Tuple
	}{
		{"wildcard sorted", "hello.*", values.Tuple{map[string]any{"stuff": 1}, 2}},
		{"slot wildcard", "items[*]", values.Tuple{10, 20, 30, 40}},
		{"regex", "hello./w.*/", values.Tuple{2}},
		{"no match", "hello.*.nope", values.Tuple{}},
		{"chained", "hello.*.stuff", values.Tuple{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(d, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetRecursive(t *testing.T) {
	d := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
		"x": 2,
	}
	got, err := Get(d, "**.c")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{1}, got)

	// *key follows chains of the same key, not arbitrary paths
	chain := map[string]any{"n": map[string]any{"n": map[string]any{"v": 3}}}
	got, err = Get(chain, "*n")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{
		map[string]any{"n": map[string]any{"v": 3}},
		map[string]any{"v": 3},
	}, got)

	got, err = Get(chain, "*n.v")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{3}, got)
}

func TestGetRecursiveDepth(t *testing.T) {
	d := map[string]any{"a": map[string]any{"b": 1}, "c": 2}

	// -1 selects leaves, parent-before-children left-to-right
	got, err := Get(d, "**:-1")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{1, 2}, got)

	got, err = Get(d, "**:0")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{map[string]any{"b": 1}, 2}, got)
}

func TestGetRecursiveCycle(t *testing.T) {
	d := map[string]any{"a": map[string]any{"v": 1}}
	d["self"] = d

	got, err := Get(d, "**.v")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{1}, got)
}

func TestGetContainerPatterns(t *testing.T) {
	tests := []struct {
		name string
		obj  any
		key  string
		want any
	}{
		{"glob middle", map[string]any{"a": []any{1, 2, 3}}, "a=[1, ..., 3]", []any{1, 2, 3}},
		{"glob empty middle", map[string]any{"a": []any{1, 3}}, "a=[1, ..., 3]", []any{1, 3}},
		{"glob repeat", map[string]any{"a": []any{1, 2, 2, 3}}, "a=[1, ..., 3]", []any{1, 2, 2, 3}},
		{"glob mismatch", map[string]any{"a": []any{1, 2, 4}}, "a=[1, ..., 3]", nil},
		{"exact list", map[string]any{"a": []any{1, 2}}, "a=[1, 2]", []any{1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(tc.obj, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetGuards(t *testing.T) {
	tests := []struct {
		name string
		obj  any
		key  string
		want any
	}{
		{"eq pass", map[string]any{"a": 1}, "a=1", 1},
		{"eq fail", map[string]any{"a": 2}, "a=1", nil},
		{"gt pass", map[string]any{"n": 5}, "n>3", 5},
		{"gt fail", map[string]any{"n": 2}, "n>3", nil},
		{"ne none", map[string]any{"a": 7}, "a!=None", 7},
		{"transform tests only", map[string]any{"a": " x "}, "a|strip='x'", " x "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(tc.obj, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetFilters(t *testing.T) {
	users := map[string]any{
		"users": []any{
			map[string]any{"name": "amy", "age": 30},
			map[string]any{"name": "bob", "age": 20},
		},
	}
	got, err := Get(users, "users[age>=25]")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "amy", "age": 30}}, got)

	got, err = Get(users, "users[*].name")
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{"amy", "bob"}, got)

	withX := map[string]any{"a": map[string]any{"x": 1, "y": 2}}
	got, err = Get(withX, "a&x=1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, got)

	got, err = Get(withX, "a&x=2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetTransforms(t *testing.T) {
	got, err := Get(5, "|str")
	require.NoError(t, err)
	assert.Equal(t, "5", got)

	got, err = Get(map[string]any{"a": 1}, "a|add:10")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)

	got, err = Get(map[string]any{"a": " pad "}, "a|strip|uppercase")
	require.NoError(t, err)
	assert.Equal(t, "PAD", got)
}

func TestGetReferences(t *testing.T) {
	d := map[string]any{"key": "a", "a": 42}
	got, err := Get(d, "$$(key)")
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	eq := map[string]any{"a": 5, "b": 5}
	got, err = Get(eq, "a=$$(b)")
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	ne := map[string]any{"a": 5, "b": 6}
	got, err = Get(ne, "a=$$(b)")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetGroups(t *testing.T) {
	d := map[string]any{"a": 1, "b": 2}
	tests := []struct {
		name string
		key  string
		want values.Tuple
	}{
		{"or group", "(a,b)", values.Tuple{1, 2}},
		{"first match", "(nope,b)?", values.Tuple{2}},
		{"hard cut", "(a#,b)", values.Tuple{1}},
		{"soft cut dedups", "(a##,*)", values.Tuple{1, 2}},
		{"no cut repeats", "(a,*)", values.Tuple{1, 1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(d, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetTypeRestrictions(t *testing.T) {
	t.Run("gate passes", func(t *testing.T) {
		got, err := Get(map[string]any{"x": map[string]any{"y": 1}}, "x:dict.y")
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})
	t.Run("gate blocks", func(t *testing.T) {
		got, err := Get(map[string]any{"x": 1}, "x:list", WithDefault("missing"))
		require.NoError(t, err)
		assert.Equal(t, "missing", got)
	})
	t.Run("list slot", func(t *testing.T) {
		got, err := Get([]any{10, 20}, "[0]:list")
		require.NoError(t, err)
		assert.Equal(t, 10, got)
	})
	t.Run("tuple slot", func(t *testing.T) {
		got, err := Get(values.Tuple{10, 20}, "[0]:tuple")
		require.NoError(t, err)
		assert.Equal(t, 10, got)
	})
	t.Run("dict children only", func(t *testing.T) {
		d := map[string]any{"a": map[string]any{"b": 1}, "c": []any{1, 2}, "d": "hello"}
		kvs, err := Pluck(d, "*:dict.*")
		require.NoError(t, err)
		assert.Equal(t, []KV{{Key: "a.b", Value: 1}}, kvs)
	})
	t.Run("recursive restriction", func(t *testing.T) {
		d := map[string]any{"a": map[string]any{"b": 1}, "c": "hello"}
		got, err := Get(d, "**:!(str, bytes)")
		require.NoError(t, err)
		assert.Equal(t, values.Tuple{map[string]any{"b": 1}, 1, "hello"}, got)
	})
}

func TestHas(t *testing.T) {
	d := sampleDoc()
	assert.True(t, Has(d, "hello.there.stuff"))
	assert.True(t, Has(d, "items[2]"))
	assert.False(t, Has(d, "hello.nope"))
	assert.False(t, Has(d, "$0"))
}

func TestGetMulti(t *testing.T) {
	d := sampleDoc()
	got, err := GetMulti(d, []string{"hello.world", "items[0]"})
	require.NoError(t, err)
	assert.Equal(t, values.Tuple{2, 10}, got)
}
