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

// Container literal patterns for filter and guard value position:
//
//	[1, ..., 3]      list/tuple shape
//	{a: 1, ...: *}   dict shape
//	{1, 2, ...}      set shape
//	"pre"..."suf"    string glob
//	b"pre"...b"suf"  bytes glob
//
// An unprefixed literal matches loosely across kinds ([] matches list
// or tuple); a type prefix pins the kind (l[...], t[...], d{...},
// s{...}, fs{...}).

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// globMatcher is the ... element: zero or more values, optionally
// constrained by an element pattern and a count range.
type globMatcher struct {
	pattern  matcher // nil means unconstrained
	min      int64
	max      *int64 // nil means unbounded
}

func (m *globMatcher) isPattern() bool            { return true }
func (m *globMatcher) concreteValue() (any, bool) { return nil, false }

func (m *globMatcher) matchOne(v any) (any, bool) {
	if elementMatches(m.pattern, v) {
		return v, true
	}
	return nil, false
}

func (m *globMatcher) matchableBy(other matcher, specials bool) bool { return false }

func (m *globMatcher) notation(asKey bool) string {
	var b strings.Builder
	b.WriteString("...")
	if m.pattern != nil {
		b.WriteString(m.pattern.notation(false))
	}
	switch {
	case m.min == 0 && m.max == nil:
	case m.min == 0:
		b.WriteString(strconv.FormatInt(*m.max, 10))
	case m.max == nil:
		b.WriteString(strconv.FormatInt(m.min, 10))
		b.WriteByte(':')
	default:
		b.WriteString(strconv.FormatInt(m.min, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(*m.max, 10))
	}
	return b.String()
}

func (m *globMatcher) resolve(rc *resolveCtx) (matcher, error) {
	if m.pattern == nil {
		return m, nil
	}
	p, err := m.pattern.resolve(rc)
	if err != nil {
		return nil, err
	}
	if p == m.pattern {
		return m, nil
	}
	return &globMatcher{pattern: p, min: m.min, max: m.max}, nil
}

func elementMatches(pat matcher, v any) bool {
	if pat == nil {
		return true
	}
	_, ok := pat.matchOne(v)
	return ok
}

// ===== List patterns =====

type containerListMatcher struct {
	elems  []matcher
	prefix string // "", "l", or "t"
}

func (m *containerListMatcher) isPattern() bool            { return true }
func (m *containerListMatcher) concreteValue() (any, bool) { return nil, false }

func (m *containerListMatcher) typeOK(v any) bool {
	k := values.KindOf(v)
	switch m.prefix {
	case "l":
		return k == values.KindSeq
	case "t":
		return k == values.KindTuple
	default:
		return k == values.KindSeq || k == values.KindTuple
	}
}

func (m *containerListMatcher) matchOne(v any) (any, bool) {
	if !m.typeOK(v) {
		return nil, false
	}
	elems, ok := values.SeqElems(v)
	if !ok {
		return nil, false
	}
	if matchListElems(m.elems, elems, 0, 0) {
		return v, true
	}
	return nil, false
}

// matchListElems runs recursive backtracking over glob elements.
func matchListElems(pats []matcher, actual []any, pi, ai int) bool {
	if pi == len(pats) {
		return ai == len(actual)
	}
	if g, isGlob := pats[pi].(*globMatcher); isGlob {
		lo := int(g.min)
		hi := len(actual) - ai
		if g.max != nil && int(*g.max) < hi {
			hi = int(*g.max)
		}
		if lo > len(actual)-ai {
			return false
		}
		for count := lo; count <= hi; count++ {
			ok := true
			for _, c := range actual[ai : ai+count] {
				if !elementMatches(g.pattern, c) {
					ok = false
					break
				}
			}
			if ok && matchListElems(pats, actual, pi+1, ai+count) {
				return true
			}
		}
		return false
	}
	if ai >= len(actual) {
		return false
	}
	if elementMatches(pats[pi], actual[ai]) {
		return matchListElems(pats, actual, pi+1, ai+1)
	}
	return false
}

func (m *containerListMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *containerListMatcher) notation(asKey bool) string {
	parts := make([]string, len(m.elems))
	for i, e := range m.elems {
		parts[i] = elemNotation(e)
	}
	return m.prefix + "[" + strings.Join(parts, ", ") + "]"
}

func elemNotation(e matcher) string {
	if e == nil {
		return "..."
	}
	return e.notation(false)
}

func (m *containerListMatcher) resolve(rc *resolveCtx) (matcher, error) {
	elems, changed, err := resolveMatcherSlice(m.elems, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return m, nil
	}
	return &containerListMatcher{elems: elems, prefix: m.prefix}, nil
}

func resolveMatcherSlice(in []matcher, rc *resolveCtx) ([]matcher, bool, error) {
	changed := false
	out := make([]matcher, len(in))
	for i, e := range in {
		if e == nil {
			continue
		}
		r, err := e.resolve(rc)
		if err != nil {
			return nil, false, err
		}
		if r != e {
			changed = true
		}
		out[i] = r
	}
	return out, changed, nil
}

// ===== Dict patterns =====

// dictEntry is one entry of a dict pattern: a concrete key/value pair,
// or a key glob with a value constraint (...: *).
type dictEntry struct {
	key  matcher
	val  matcher // nil means unconstrained
	glob *globMatcher
}

type containerDictMatcher struct {
	entries []dictEntry
	prefix  string // "" or "d"
}

func (m *containerDictMatcher) isPattern() bool            { return true }
func (m *containerDictMatcher) concreteValue() (any, bool) { return nil, false }

func (m *containerDictMatcher) matchOne(v any) (any, bool) {
	if !values.IsMap(v) {
		return nil, false
	}
	var concrete, globs []dictEntry
	for _, e := range m.entries {
		if e.glob != nil {
			globs = append(globs, e)
		} else {
			concrete = append(concrete, e)
		}
	}
	keys := values.MapKeys(v)
	consumed := make([]bool, len(keys))
	for _, e := range concrete {
		found := false
		for i, k := range keys {
			if consumed[i] {
				continue
			}
			kv, _ := values.MapGet(v, k)
			if elementMatches(e.key, k) && elementMatches(e.val, kv) {
				consumed[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	var remaining []any
	for i, k := range keys {
		if !consumed[i] {
			remaining = append(remaining, k)
		}
	}
	if len(globs) == 0 {
		if len(remaining) != 0 {
			return nil, false
		}
		return v, true
	}
	if matchDictGlobs(globs, 0, remaining, v) {
		return v, true
	}
	return nil, false
}

func dictEntryMatches(e dictEntry, k, kv any) bool {
	if !elementMatches(e.glob.pattern, k) {
		return false
	}
	return elementMatches(e.val, kv)
}

// matchDictGlobs partitions the remaining keys among the glob entries
// by backtracking.
func matchDictGlobs(globs []dictEntry, gi int, remaining []any, node any) bool {
	if gi == len(globs) {
		return len(remaining) == 0
	}
	e := globs[gi]
	var eligible []any
	for _, k := range remaining {
		kv, _ := values.MapGet(node, k)
		if dictEntryMatches(e, k, kv) {
			eligible = append(eligible, k)
		} else if gi == len(globs)-1 && len(globs) == 1 {
			// a single glob must cover every remaining key
			return false
		}
	}
	lo := int(e.glob.min)
	hi := len(remaining)
	if e.glob.max != nil && int(*e.glob.max) < hi {
		hi = int(*e.glob.max)
	}
	if len(eligible) < lo {
		return false
	}
	if hi > len(eligible) {
		hi = len(eligible)
	}
	for count := lo; count <= hi; count++ {
		if pickCombos(eligible, count, func(combo []any) bool {
			leftover := subtractKeys(remaining, combo)
			return matchDictGlobs(globs, gi+1, leftover, node)
		}) {
			return true
		}
	}
	return false
}

// pickCombos enumerates combinations of size count, invoking try for
// each; the first success wins.
func pickCombos(items []any, count int, try func([]any) bool) bool {
	combo := make([]any, 0, count)
	var rec func(start int) bool
	rec = func(start int) bool {
		if len(combo) == count {
			return try(combo)
		}
		for i := start; i < len(items); i++ {
			combo = append(combo, items[i])
			if rec(i + 1) {
				return true
			}
			combo = combo[:len(combo)-1]
		}
		return false
	}
	return rec(0)
}

func subtractKeys(all, taken []any) []any {
	var out []any
	for _, k := range all {
		found := false
		for _, t := range taken {
			if values.Equal(k, t) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, k)
		}
	}
	return out
}

func (m *containerDictMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *containerDictMatcher) notation(asKey bool) string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		if e.glob != nil {
			s := e.glob.notation(false)
			if e.val != nil {
				s += ": " + e.val.notation(false)
			}
			parts[i] = s
			continue
		}
		s := e.key.notation(false)
		if e.val != nil {
			s += ": " + e.val.notation(false)
		} else {
			s += ": *"
		}
		parts[i] = s
	}
	return m.prefix + "{" + strings.Join(parts, ", ") + "}"
}

func (m *containerDictMatcher) resolve(rc *resolveCtx) (matcher, error) {
	changed := false
	out := make([]dictEntry, len(m.entries))
	for i, e := range m.entries {
		ne := e
		if e.key != nil {
			k, err := e.key.resolve(rc)
			if err != nil {
				return nil, err
			}
			if k != e.key {
				changed = true
			}
			ne.key = k
		}
		if e.val != nil {
			v, err := e.val.resolve(rc)
			if err != nil {
				return nil, err
			}
			if v != e.val {
				changed = true
			}
			ne.val = v
		}
		out[i] = ne
	}
	if !changed {
		return m, nil
	}
	return &containerDictMatcher{entries: out, prefix: m.prefix}, nil
}

// ===== Set patterns =====

type containerSetMatcher struct {
	elems  []matcher
	prefix string // "", "s", or "fs"
}

func (m *containerSetMatcher) isPattern() bool            { return true }
func (m *containerSetMatcher) concreteValue() (any, bool) { return nil, false }

func (m *containerSetMatcher) typeOK(v any) bool {
	s, ok := v.(*values.Set)
	if !ok {
		return false
	}
	switch m.prefix {
	case "s":
		return !s.Frozen()
	case "fs":
		return s.Frozen()
	default:
		return true
	}
}

func (m *containerSetMatcher) matchOne(v any) (any, bool) {
	if !m.typeOK(v) {
		return nil, false
	}
	members := v.(*values.Set).Members()
	var concrete []matcher
	var globs []*globMatcher
	for _, e := range m.elems {
		if g, isGlob := e.(*globMatcher); isGlob {
			globs = append(globs, g)
		} else {
			concrete = append(concrete, e)
		}
	}
	remaining := append([]any{}, members...)
	for _, pat := range concrete {
		found := -1
		for i, member := range remaining {
			if elementMatches(pat, member) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, false
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	if len(globs) == 0 {
		if len(remaining) != 0 {
			return nil, false
		}
		return v, true
	}
	if matchSetGlobs(globs, 0, remaining) {
		return v, true
	}
	return nil, false
}

func matchSetGlobs(globs []*globMatcher, gi int, remaining []any) bool {
	if gi == len(globs) {
		return len(remaining) == 0
	}
	g := globs[gi]
	var eligible []any
	for _, member := range remaining {
		if elementMatches(g.pattern, member) {
			eligible = append(eligible, member)
		} else if len(globs) == 1 {
			return false
		}
	}
	lo := int(g.min)
	hi := len(remaining)
	if g.max != nil && int(*g.max) < hi {
		hi = int(*g.max)
	}
	if len(eligible) < lo {
		return false
	}
	if hi > len(eligible) {
		hi = len(eligible)
	}
	for count := lo; count <= hi; count++ {
		if pickCombos(eligible, count, func(combo []any) bool {
			return matchSetGlobs(globs, gi+1, subtractKeys(remaining, combo))
		}) {
			return true
		}
	}
	return false
}

func (m *containerSetMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *containerSetMatcher) notation(asKey bool) string {
	parts := make([]string, len(m.elems))
	for i, e := range m.elems {
		parts[i] = elemNotation(e)
	}
	return m.prefix + "{" + strings.Join(parts, ", ") + "}"
}

func (m *containerSetMatcher) resolve(rc *resolveCtx) (matcher, error) {
	elems, changed, err := resolveMatcherSlice(m.elems, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return m, nil
	}
	return &containerSetMatcher{elems: elems, prefix: m.prefix}, nil
}

// ===== String and bytes globs =====

// stringGlobMatcher matches quoted fragments joined by ... globs:
// "hello"..."world".
type stringGlobMatcher struct {
	parts []any // string or *globMatcher
	bytes bool
	re    *regexp.Regexp
}

func newStringGlobMatcher(parts []any, isBytes bool) (*stringGlobMatcher, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, p := range parts {
		switch t := p.(type) {
		case string:
			b.WriteString(regexp.QuoteMeta(t))
		case []byte:
			b.WriteString(regexp.QuoteMeta(string(t)))
		case *globMatcher:
			charPat := "."
			if rm, ok := t.pattern.(*regexMatcher); ok {
				charPat = "(?:" + rm.src + ")"
			}
			switch {
			case t.min == 0 && t.max == nil:
				b.WriteString(charPat + "*")
			case t.min == 0:
				b.WriteString(charPat + "{0," + strconv.FormatInt(*t.max, 10) + "}")
			case t.max == nil:
				b.WriteString(charPat + "{" + strconv.FormatInt(t.min, 10) + ",}")
			default:
				b.WriteString(charPat + "{" + strconv.FormatInt(t.min, 10) + "," + strconv.FormatInt(*t.max, 10) + "}")
			}
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, parseErrorf(b.String(), 0, "bad glob pattern: %v", err)
	}
	return &stringGlobMatcher{parts: parts, bytes: isBytes, re: re}, nil
}

func (m *stringGlobMatcher) isPattern() bool            { return true }
func (m *stringGlobMatcher) concreteValue() (any, bool) { return nil, false }

func (m *stringGlobMatcher) matchOne(v any) (any, bool) {
	if m.bytes {
		b, ok := v.([]byte)
		if ok && m.re.Match(b) {
			return v, true
		}
		return nil, false
	}
	s, ok := v.(string)
	if ok && m.re.MatchString(s) {
		return v, true
	}
	return nil, false
}

func (m *stringGlobMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *stringGlobMatcher) notation(asKey bool) string {
	var b strings.Builder
	for _, p := range m.parts {
		switch t := p.(type) {
		case string:
			b.WriteString(quoteString(t))
		case []byte:
			b.WriteString("b" + quoteString(string(t)))
		case *globMatcher:
			b.WriteString(t.notation(false))
		}
	}
	return b.String()
}

func (m *stringGlobMatcher) resolve(rc *resolveCtx) (matcher, error) { return m, nil }
