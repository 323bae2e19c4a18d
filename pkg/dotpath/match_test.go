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

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		key     string
		opts    []Option
		want    string
		ok      bool
	}{
		{"wildcard", "hello.*", "hello.there", nil, "hello.there", true},
		{"concrete", "a.b", "a.b", nil, "a.b", true},
		{"shorter pattern", "hello.*", "hello.there.bye", nil, "hello.there.bye", true},
		{"exact rejects tail", "hello.*", "hello.there.bye", []Option{Exact()}, "", false},
		{"exact same length", "hello.*", "hello.there", []Option{Exact()}, "hello.there", true},
		{"pattern longer", "*.*", "abc", nil, "", false},
		{"mismatch", "hello.*", "goodbye.there", nil, "", false},
		{"slot pattern", "a[*]", "a[3]", nil, "a[3]", true},
		{"regex", "/h.*/.x", "hello.x", nil, "hello.x", true},
		{"wildcard covers first", "*", "*?", nil, "*?", true},
		{"first not covers wildcard", "*?", "*", nil, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := Match(tc.pattern, tc.key, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchGroups(t *testing.T) {
	t.Run("all segments", func(t *testing.T) {
		_, groups, ok, err := MatchGroups("hello.*", "hello.there.bye")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, values.Tuple{"hello", "there.bye"}, groups)
	})
	t.Run("patterns only", func(t *testing.T) {
		_, groups, ok, err := MatchGroups("hello.*", "hello.there.bye", WithGroupMode(GroupPatterns))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, values.Tuple{"there.bye"}, groups)
	})
	t.Run("slot capture keeps type", func(t *testing.T) {
		_, groups, ok, err := MatchGroups("*[*]", "a[3]")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, values.Tuple{"a", int64(3)}, groups)
	})
}

func TestMatchMulti(t *testing.T) {
	got, err := MatchMulti("a.*", []string{"a.b", "a.c.d", "x.y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b", "a.c.d"}, got)
}

func TestTranslate(t *testing.T) {
	t.Run("first match wins", func(t *testing.T) {
		out, ok, err := Translate("a.b", []Rule{
			{Pattern: "x.*", Template: "never.$0"},
			{Pattern: "a.*", Template: "first.$0"},
			{Pattern: "*.*", Template: "second.$0"},
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "first.b", out)
	})
	t.Run("unresolved capture skips rule", func(t *testing.T) {
		out, ok, err := Translate("a.b", []Rule{
			{Pattern: "a.*", Template: "bad.$1"},
			{Pattern: "a.*", Template: "good.$0"},
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "good.b", out)
	})
	t.Run("no rule matches", func(t *testing.T) {
		out, ok, err := Translate("z", []Rule{{Pattern: "a.*", Template: "x.$0"}})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", out)
	})
}
