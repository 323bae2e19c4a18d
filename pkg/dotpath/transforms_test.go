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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dotpath/pkg/values"
)

func TestBuiltinTransforms(t *testing.T) {
	tests := []struct {
		name string
		obj  any
		key  string
		want any
	}{
		{"str int", 5, "|str", "5"},
		{"str nil", nil, "|str", "None"},
		{"str bool", true, "|str", "True"},
		{"int from string", "42", "|int", int64(42)},
		{"int from float string", "4.7", "|int", int64(4)},
		{"int from float", 4.7, "|int", int64(4)},
		{"int from bool", true, "|int", int64(1)},
		{"float from string", "1.5", "|float", 1.5},
		{"none from null word", "null", "|none", nil},
		{"none passthrough", "x", "|none", "x"},
		{"strip", "  pad  ", "|strip", "pad"},
		{"len list", []any{1, 2, 3}, "|len", int64(3)},
		{"len map", map[string]any{"a": 1}, "|len", int64(1)},
		{"lowercase", "ABC", "|lowercase", "abc"},
		{"uppercase", "abc", "|uppercase", "ABC"},
		{"add ints", 1, "|add:2", int64(3)},
		{"add strings", "ab", "|add:'cd'", "abcd"},
		{"list from tuple", values.Tuple{1, 2}, "|list", []any{1, 2}},
		{"tuple from list", []any{1, 2}, "|tuple", values.Tuple{1, 2}},
		{"chained", " ab ", "|strip|uppercase", "AB"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Get(tc.obj, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransformSet(t *testing.T) {
	got, err := Get([]any{1, 2, 2}, "|set")
	require.NoError(t, err)
	s, ok := got.(*values.Set)
	require.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestTransformFailurePassesThrough(t *testing.T) {
	got, err := Get(map[string]any{"a": "xyz"}, "a|int")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)
}

func TestTransformRaises(t *testing.T) {
	_, err := Get(map[string]any{"a": "xyz"}, "a|int:raises")
	assert.Error(t, err)

	got, err := Get(map[string]any{"a": "41"}, "a|int:raises")
	require.NoError(t, err)
	assert.Equal(t, int64(41), got)
}

func TestTransformUnknown(t *testing.T) {
	_, err := Get(5, "|nosuch")
	assert.Error(t, err)
}

func TestRegisterPackageTransform(t *testing.T) {
	Register("tripled", func(v any, _ ...any) (any, error) {
		n, ok := values.AsInt(v)
		if !ok {
			return nil, fmt.Errorf("not a number")
		}
		return n * 3, nil
	})
	got, err := Get(2, "|tripled")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)
}

func TestPrivateRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double", func(v any, _ ...any) (any, error) {
		n, ok := values.AsInt(v)
		if !ok {
			return nil, fmt.Errorf("not a number")
		}
		return n * 2, nil
	})
	got, err := Get(5, "|double", WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)

	// the private registry does not leak into the package default
	_, err = Get(5, "|double")
	assert.Error(t, err)
}

func TestGuardUsesCallRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("half", func(v any, _ ...any) (any, error) {
		n, ok := values.AsInt(v)
		if !ok {
			return nil, fmt.Errorf("not a number")
		}
		return n / 2, nil
	})
	got, err := Get(map[string]any{"a": 10}, "a|half=5", WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}
