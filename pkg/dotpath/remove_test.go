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

func TestRemove(t *testing.T) {
	tests := []struct {
		name string
		obj  any
		key  string
		opts []Option
		want any
	}{
		{"map key", map[string]any{"a": 1, "b": 2}, "a", nil,
			map[string]any{"b": 2}},
		{"nested key", map[string]any{"a": map[string]any{"b": 1, "c": 2}}, "a.b", nil,
			map[string]any{"a": map[string]any{"c": 2}}},
		{"list slot", map[string]any{"l": []any{1, 2, 3}}, "l[1]", nil,
			map[string]any{"l": []any{1, 3}}},
		{"absent is fine", map[string]any{"a": 1}, "nope.deep", nil,
			map[string]any{"a": 1}},
		{"value match", map[string]any{"a": 1, "b": 2}, "a", []Option{WithValue(1)},
			map[string]any{"b": 2}},
		{"value mismatch", map[string]any{"a": 1, "b": 2}, "a", []Option{WithValue(9)},
			map[string]any{"a": 1, "b": 2}},
		{"wildcard with value", map[string]any{"a": 1, "b": 2, "c": 1}, "*", []Option{WithValue(1)},
			map[string]any{"b": 2}},
		{"guarded", map[string]any{"a": 1, "b": 2}, "a=1", nil,
			map[string]any{"b": 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Remove(tc.obj, tc.key, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRemoveMulti(t *testing.T) {
	got, err := RemoveMulti(map[string]any{"a": 1, "b": 2, "c": 3}, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 2}, got)

	got, err = RemoveMultiPairs(map[string]any{"a": 1, "b": 2}, []KV{
		{Key: "a", Value: 1},
		{Key: "b", Value: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 2}, got)
}

func TestRemoveIf(t *testing.T) {
	got, err := RemoveIf(map[string]any{"a": 1}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = RemoveIf(map[string]any{"a": 1}, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	got, err = RemoveIf(map[string]any{"a": 1}, "a", func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)
}

func TestRemoveInverted(t *testing.T) {
	got, err := Remove(map[string]any{"y": 2}, "-x", WithValue(1))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": 2, "x": 1}, got)
}

func TestRemoveNop(t *testing.T) {
	got, err := Remove(map[string]any{"a": map[string]any{"b": 1}}, "~a.b")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, got)
}

func TestRemoveRecursive(t *testing.T) {
	d := map[string]any{
		"a": map[string]any{"tmp": 1, "keep": 2},
		"b": map[string]any{"tmp": 3},
	}
	got, err := Remove(d, "**.tmp")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"keep": 2},
		"b": map[string]any{},
	}, got)
}
