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

func TestUpdateScaffolds(t *testing.T) {
	tests := []struct {
		name string
		obj  any
		key  string
		val  any
		want any
	}{
		{"nested keys", map[string]any{}, "a.b", 1,
			map[string]any{"a": map[string]any{"b": 1}}},
		{"existing overwrite", map[string]any{"a": 1}, "a", 2,
			map[string]any{"a": 2}},
		{"slot in fresh list", map[string]any{}, "l[0]", "x",
			map[string]any{"l": []any{"x"}}},
		{"mixed depth", map[string]any{}, "a.b[1].c", 1,
			map[string]any{"a": map[string]any{"b": []any{nil, map[string]any{"c": 1}}}}},
		{"slot leaf", map[string]any{}, "a.b.c[2]", "x",
			map[string]any{"a": map[string]any{"b": map[string]any{"c": []any{nil, nil, "x"}}}}},
		{"list root", []any{10}, "[0]", 20, []any{20}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Update(tc.obj, tc.key, tc.val)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUpdatePattern(t *testing.T) {
	got, err := Update(map[string]any{"a": 1, "b": 2}, "*", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 0, "b": 0}, got)
}

func TestUpdateStrictLeaf(t *testing.T) {
	got, err := Update(map[string]any{"a": 1}, "b", 9, WithStrict())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = Update(map[string]any{"a": 1}, "a", 9, WithStrict())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 9}, got)
}

func TestUpdateNonContainerRoot(t *testing.T) {
	_, err := Update(5, "a.b", 1)
	assert.ErrorIs(t, err, ErrStructure)
}

func TestBuild(t *testing.T) {
	got, err := Build(map[string]any{}, "items[2]")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{nil, nil, nil}}, got)

	got, err = Build(map[string]any{}, "a.b")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": nil}}, got)
}

func TestUpdateAppenders(t *testing.T) {
	got, err := Update(map[string]any{"l": []any{1}}, "l[+]", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"l": []any{1, 2}}, got)

	got, err = Update(map[string]any{"l": []any{1, 2}}, "l[+?]", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"l": []any{1, 2}}, got)

	got, err = Update(map[string]any{}, "l[+]", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"l": []any{1}}, got)
}

func TestUpdateNop(t *testing.T) {
	got, err := Update(map[string]any{"a": 1}, "~a", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	// ~ on a parent segment blocks scaffolding but not descent
	got, err = Update(map[string]any{"a": map[string]any{"b": 1}}, "~a.b", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 9}}, got)

	got, err = Update(map[string]any{}, "~a.b", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)
}

func TestUpdateInverted(t *testing.T) {
	got, err := Update(map[string]any{"a": map[string]any{"b": 1, "c": 2}}, "-a.b", Any)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"c": 2}}, got)
}

func TestUpdateTypeGated(t *testing.T) {
	got, err := Update(map[string]any{"x": map[string]any{"y": 1}}, "x:dict.y", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": map[string]any{"y": 9}}, got)

	got, err = Update(map[string]any{"x": map[string]any{"y": 1}}, "x:list.y", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": map[string]any{"y": 1}}, got)
}

func TestUpdateMulti(t *testing.T) {
	got, err := UpdateMulti(Auto, []KV{
		{Key: "a.b", Value: 1},
		{Key: "a.c", Value: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1, "c": 2}}, got)

	got, err = UpdateMulti(Auto, []KV{{Key: "[0]", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, got)
}

func TestUpdateIf(t *testing.T) {
	got, err := UpdateIf(map[string]any{"a": 1}, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = UpdateIf(map[string]any{"a": 1}, "b", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got)

	got, err = UpdateIf(map[string]any{}, "b", nil, func(string, any) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": nil}, got)
}

func TestSetDefault(t *testing.T) {
	got, err := SetDefault(map[string]any{"a": 1}, "a", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = SetDefault(map[string]any{"a": 1}, "b.c", 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": map[string]any{"c": 9}}, got)
}

func TestUpdateImmutable(t *testing.T) {
	orig := map[string]any{"a": map[string]any{"b": 1}}
	got, err := Update(orig, "a.b", 9, Immutable())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 9}}, got)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, orig)

	orig = map[string]any{"a": map[string]any{"b": 1}}
	got, err = Remove(orig, "a.b", Immutable())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{}}, got)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, orig)
}

func TestUpdateTemplateRejected(t *testing.T) {
	_, err := Update(map[string]any{}, "a.$0", 1)
	assert.ErrorIs(t, err, ErrUnresolved)
}
