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

func TestAssembleRoundTrip(t *testing.T) {
	keys := []string{
		"hello",
		"hello.there",
		"a.b.c",
		"*",
		"*?",
		"**",
		"a.*.c",
		"a[0]",
		"[0]",
		"[-1]",
		"[1:3]",
		"[:3]",
		"[1:]",
		"[::2]",
		"[:]",
		"[+]",
		"[+?]",
		"[]",
		"@name",
		"a@b",
		"'has space'",
		"#'7.2'",
		"111",
		"0x1F",
		"1_000",
		"1e3",
		"07a",
		"a[*]",
		"/ab?c/",
		"$0",
		"$(name)",
		"a.$1",
		"$(num|int)",
		"$$(key)",
		"$$(^a.b)",
		"$$(^^a)",
		"a+b",
		"a=7",
		"a!=None",
		"count>3",
		"a&x=1",
		"[x=1]",
		"a|int",
		"a|add:5",
		"a.b|str|strip",
		"**:2",
		"*foo",
		"-a.b",
		"~a",
		"a.~b",
		"a:int",
		"a:!int",
	}
	for _, k := range keys {
		t.Run(k, func(t *testing.T) {
			out, err := Assemble(k)
			require.NoError(t, err)
			assert.Equal(t, k, out)
		})
	}
}

func TestAssembleCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a,b", "(a,b)"},
		{"a&b", "(a&b)"},
		{"!a", "(!a)"},
		{"a:(int,str)", "a:(int, str)"},
		{"**:dict", "*(*:dict)"},
		{"**:dict:0", "*(*:dict):0"},
		{"*(*, [*]):!(str, bytes)", "*(*:!(str, bytes), [*]:!(str, bytes))"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			out, err := Assemble(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestParseErrors(t *testing.T) {
	keys := []string{
		"a.",
		"a[",
		"(a,b",
		"a,b&c",
		"$(a.b)",
	}
	for _, k := range keys {
		t.Run(k, func(t *testing.T) {
			_, err := Parse(k)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseCacheReuse(t *testing.T) {
	a, err := Parse("cache.hit[0]")
	require.NoError(t, err)
	b, err := Parse("cache.hit[0]")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestIsPattern(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"a.b", false},
		{"a[0]", false},
		{"a.*", true},
		{"**", true},
		{"a[*]", true},
		{"/re/", true},
		{"a[1:3]", false},
		{"(a,b)", true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPattern(tc.key))
		})
	}
}

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate("$0"))
	assert.True(t, IsTemplate("a.$(name)"))
	assert.True(t, IsTemplate("a|str:$0"))
	assert.False(t, IsTemplate("a.b"))
	assert.False(t, IsTemplate("$$(key)"))
}

func TestIsInverted(t *testing.T) {
	assert.True(t, IsInverted("-a.b"))
	assert.False(t, IsInverted("a.b"))
	assert.False(t, IsInverted("-1"))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"bare word", "hello", "hello"},
		{"space ok", "has space", "has space"},
		{"dot ok", "has.dot", "has.dot"},
		{"reserved", "has[bracket", "'has[bracket'"},
		{"numeric look", "7", "'7'"},
		{"empty", "", "''"},
		{"int", 7, "7"},
		{"float", 7.2, "#'7.2'"},
		{"bool", true, "True"},
		{"nil", nil, "None"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Quote(tc.in))
		})
	}
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "7.2", QuoteValue(7.2))
	assert.Equal(t, "'x'", QuoteValue("x"))
	assert.Equal(t, "None", QuoteValue(nil))
}
