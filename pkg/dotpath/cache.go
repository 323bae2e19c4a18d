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
	lru "github.com/hashicorp/golang-lru/v2"
)

// parseCacheSize bounds the memoized parse table. Path expressions in
// practice come from a small fixed vocabulary, so a modest LRU absorbs
// nearly all repeat compiles.
const parseCacheSize = 300

var parseCache, _ = lru.New[string, *Chain](parseCacheSize)

// Parse compiles notation into a chain, memoizing successful parses.
// Chains are immutable, so cached values are shared freely across
// goroutines.
func Parse(src string) (*Chain, error) {
	if c, ok := parseCache.Get(src); ok {
		return c, nil
	}
	c, err := parseNotation(src)
	if err != nil {
		return nil, err
	}
	parseCache.Add(src, c)
	return c, nil
}

// MustParse is Parse for known-good notation; it panics on error.
func MustParse(src string) *Chain {
	c, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return c
}
