// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dotpath/pkg/dotpath"
	"github.com/AleutianAI/dotpath/pkg/values"
)

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
		want string
	}{
		{"yaml extension", "a: 1", "doc.yaml", formatYAML},
		{"yml extension", "a: 1", "doc.yml", formatYAML},
		{"json extension", "{}", "doc.json", formatJSON},
		{"json object", `  {"a": 1}`, "", formatJSON},
		{"json array", `[1, 2]`, "", formatJSON},
		{"yaml fallback", "a: 1\nb: 2", "", formatYAML},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sniffFormat([]byte(tc.raw), tc.path))
		})
	}
}

func TestDecodeJSONNumbers(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"count": 3, "ratio": 1.5, "items": [1, 2]}`), formatJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"count": int64(3),
		"ratio": 1.5,
		"items": []any{int64(1), int64(2)},
	}, doc)

	// integer decode means slot paths address json documents directly
	got, err := dotpath.Get(doc, "items[1]")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestDecodeYAML(t *testing.T) {
	doc, err := decodeDocument([]byte("a:\n  b: 1\nlist:\n  - x\n"), formatYAML)
	require.NoError(t, err)
	got, err := dotpath.Get(doc, "a.b")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	got, err = dotpath.Get(doc, "list[0]")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestDecodeErrors(t *testing.T) {
	_, err := decodeDocument([]byte("{"), formatJSON)
	assert.Error(t, err)
	_, err = decodeDocument([]byte("a: 1"), "toml")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"integer", "7", int64(7)},
		{"float", "7.5", 7.5},
		{"bool", "true", true},
		{"null", "null", nil},
		{"json object", `{"x": 1}`, map[string]any{"x": int64(1)}},
		{"json array", "[1, 2]", []any{int64(1), int64(2)}},
		{"quoted string", `"7"`, "7"},
		{"bare string", "hello world", "hello world"},
		{"almost json", "{oops", "{oops"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseValue(tc.in))
		})
	}
}

func TestEncodable(t *testing.T) {
	v := encodable(map[string]any{
		"t": values.Tuple{1, 2},
		"s": values.NewSet("a"),
		"m": map[any]any{1: "one"},
	})
	assert.Equal(t, map[string]any{
		"t": []any{1, 2},
		"s": []any{"a"},
		"m": map[string]any{"1": "one"},
	}, v)
}
