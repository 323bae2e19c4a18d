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

func TestReplace(t *testing.T) {
	tests := []struct {
		name     string
		template string
		bindings any
		want     string
	}{
		{"positional", "new.$0", []any{"leaf"}, "new.leaf"},
		{"splices verbatim", "new.$0", []any{"a.b.c"}, "new.a.b.c"},
		{"named", "x.$(name)", map[string]any{"name": "y"}, "x.y"},
		{"string slice", "$0.$1", []string{"a", "b"}, "a.b"},
		{"numeric binding", "l[$0]", []any{3}, "l[3]"},
		{"transform arg", "a|str:$0", []string{"hello"}, "a|str:hello"},
		{"type restriction survives", "$0:dict", []any{"items"}, "items:dict"},
		{"binding transforms", "$(num|int)", map[string]any{"num": "7"}, "7"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Replace(tc.template, tc.bindings)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestReplacePartial(t *testing.T) {
	out, err := Replace("a.$0.$1", []any{"x"}, Partial())
	require.NoError(t, err)
	assert.Equal(t, "a.x.$1", out)
	assert.True(t, IsTemplate(out))
}

func TestReplaceUnbound(t *testing.T) {
	_, err := Replace("a.$1", []any{"x"})
	assert.ErrorIs(t, err, ErrUnresolved)

	_, err = Replace("a.$(missing)", map[string]any{"name": "y"})
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestTemplateKeysRejectedByReads(t *testing.T) {
	_, err := Get(map[string]any{"a": 1}, "a.$0")
	assert.ErrorIs(t, err, ErrUnresolved)
}
