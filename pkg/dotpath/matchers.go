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
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// matcher is the match-op side of a segment: given an enumerated key
// or candidate value, does it match, and what does it capture.
type matcher interface {
	// isPattern reports whether the matcher can accept many values.
	isPattern() bool

	// concreteValue returns the single value a concrete matcher
	// addresses; ok is false for patterns.
	concreteValue() (any, bool)

	// matchOne tests a candidate, returning the captured value.
	matchOne(v any) (any, bool)

	// matchableBy reports whether this matcher may structurally
	// consume the other matcher in pattern-vs-path comparison.
	// specials widens wildcards to consume special ops too.
	matchableBy(other matcher, specials bool) bool

	// notation renders the matcher; asKey selects the key-position
	// form (floats become quoted-numeric, strings quote as needed).
	notation(asKey bool) string

	// resolve substitutes placeholders.
	resolve(rc *resolveCtx) (matcher, error)
}

// resolveCtx carries substitution bindings and, during traversal, the
// runtime context references resolve against.
type resolveCtx struct {
	bindings map[string]any
	partial  bool
	registry *Registry

	// runtime reference resolution
	runtime bool
	st      *state
	node    any
	parents []any
}

// matcherFirst reports whether the matcher stops at its first match.
func matcherFirst(m matcher) bool {
	switch t := m.(type) {
	case *wildcardMatcher:
		return t.first
	case *regexMatcher:
		return t.first
	}
	return false
}

// matchKeys filters enumerated keys through a matcher, honoring
// first-only variants.
func matchKeys(m matcher, keys []any) []any {
	var out []any
	first := matcherFirst(m)
	for _, k := range keys {
		if mv, ok := m.matchOne(k); ok {
			out = append(out, mv)
			if first {
				break
			}
		}
	}
	return out
}

// stringify renders a value the way regex matching and substitution
// coercion see it.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		if i, ok := values.AsInt(v); ok {
			return strconv.FormatInt(i, 10)
		}
		return fmt.Sprint(v)
	}
}

// ===== Quoting =====

const reservedChars = ".[]*:|+?/=,@&()!~#{}<>^$'\"\\"

var numericLook = regexp.MustCompile(`^-?(\d[\d_]*(\.\d*)?([eE][+-]?\d+)?|0[xX][0-9a-fA-F_]+|0[oO][0-7_]+|0[bB][01_]+|\.\d+)$`)

func wordNeedsQuote(s string) bool {
	if s == "" || s == "True" || s == "False" || s == "None" {
		return true
	}
	if strings.ContainsAny(s, reservedChars) || strings.ContainsAny(s, " \t\n\r") {
		return true
	}
	return numericLook.MatchString(s)
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// quoteValue renders an arbitrary concrete value in notation form.
// asKey picks key-position rules: floats become quoted-numeric and
// strings only quote when they have to.
func quoteValue(v any, asKey bool) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		return stringify(t)
	case string:
		if asKey && !wordNeedsQuote(t) {
			return t
		}
		return quoteString(t)
	case []byte:
		return "b" + quoteString(string(t))
	case float64:
		raw := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(raw, ".eE") {
			raw += ".0"
		}
		if asKey {
			return "#'" + raw + "'"
		}
		return raw
	default:
		if i, ok := values.AsInt(v); ok {
			return strconv.FormatInt(i, 10)
		}
		return fmt.Sprint(v)
	}
}

// ===== Concrete matchers =====

type constMatcher struct {
	val any
	// raw preserves source spelling (hex literals, quoted strings);
	// empty means render from the value.
	raw string
	// quoted forces string-literal rendering even in key position.
	quoted bool
}

func newConstMatcher(v any) *constMatcher {
	return &constMatcher{val: values.NormalizeKey(v)}
}

func (m *constMatcher) isPattern() bool            { return false }
func (m *constMatcher) concreteValue() (any, bool) { return m.val, true }

func (m *constMatcher) matchOne(v any) (any, bool) {
	if values.Equal(m.val, v) {
		return v, true
	}
	return nil, false
}

func (m *constMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *constMatcher) notation(asKey bool) string {
	if m.raw != "" {
		if _, isFloat := m.val.(float64); isFloat && asKey && m.quoted {
			return "#'" + m.raw + "'"
		}
		return m.raw
	}
	if m.quoted {
		if s, ok := m.val.(string); ok {
			return quoteString(s)
		}
	}
	return quoteValue(m.val, asKey)
}

func (m *constMatcher) resolve(rc *resolveCtx) (matcher, error) { return m, nil }

// ===== Wildcards =====

type wildcardMatcher struct {
	first bool
}

func (m *wildcardMatcher) isPattern() bool            { return true }
func (m *wildcardMatcher) concreteValue() (any, bool) { return nil, false }

func (m *wildcardMatcher) matchOne(v any) (any, bool) { return v, true }

func (m *wildcardMatcher) matchableBy(other matcher, specials bool) bool {
	if _, ok := other.concreteValue(); ok {
		return true
	}
	if !specials {
		return false
	}
	if m.first {
		switch t := other.(type) {
		case *wildcardMatcher:
			return t.first
		case *regexMatcher:
			return t.first
		case *appenderMatcher:
			return true
		}
		return false
	}
	return true
}

func (m *wildcardMatcher) notation(bool) string {
	if m.first {
		return "*?"
	}
	return "*"
}

func (m *wildcardMatcher) resolve(rc *resolveCtx) (matcher, error) { return m, nil }

// ===== Regex =====

type regexMatcher struct {
	re    *regexp.Regexp
	src   string
	first bool
}

func newRegexMatcher(src string, first bool) (*regexMatcher, error) {
	re, err := regexp.Compile("^(?:" + src + ")$")
	if err != nil {
		return nil, fmt.Errorf("bad regex /%s/: %w", src, err)
	}
	return &regexMatcher{re: re, src: src, first: first}, nil
}

func (m *regexMatcher) isPattern() bool            { return true }
func (m *regexMatcher) concreteValue() (any, bool) { return nil, false }

func (m *regexMatcher) matchOne(v any) (any, bool) {
	if m.re.MatchString(stringify(v)) {
		return v, true
	}
	return nil, false
}

func (m *regexMatcher) matchableBy(other matcher, specials bool) bool {
	if cv, ok := other.concreteValue(); ok {
		_, matched := m.matchOne(cv)
		return matched
	}
	if !specials {
		return false
	}
	switch t := other.(type) {
	case *regexMatcher:
		return !m.first || t.first
	case *appenderMatcher:
		return true
	}
	return false
}

func (m *regexMatcher) notation(bool) string {
	if m.first {
		return "/" + m.src + "/?"
	}
	return "/" + m.src + "/"
}

func (m *regexMatcher) resolve(rc *resolveCtx) (matcher, error) { return m, nil }

// ===== Appenders =====

type appenderMatcher struct {
	unique bool
}

func (m *appenderMatcher) isPattern() bool            { return false }
func (m *appenderMatcher) concreteValue() (any, bool) { return nil, false }
func (m *appenderMatcher) matchOne(v any) (any, bool) { return nil, false }

func (m *appenderMatcher) matchableBy(other matcher, specials bool) bool {
	o, ok := other.(*appenderMatcher)
	return ok && o.unique == m.unique
}

func (m *appenderMatcher) notation(bool) string {
	if m.unique {
		return "+?"
	}
	return "+"
}

func (m *appenderMatcher) resolve(rc *resolveCtx) (matcher, error) { return m, nil }

// ===== Substitutions =====

// substMatcher is a $0 / $(name|transforms) placeholder. Resolution
// coerces the bound value to its string form, since it lands in a path
// position.
type substMatcher struct {
	name       string
	transforms []transformCall
}

func (m *substMatcher) isPattern() bool            { return true }
func (m *substMatcher) concreteValue() (any, bool) { return nil, false }
func (m *substMatcher) matchOne(v any) (any, bool) { return nil, false }

func (m *substMatcher) matchableBy(other matcher, specials bool) bool { return false }

func (m *substMatcher) notation(bool) string {
	if len(m.transforms) == 0 {
		if isDigits(m.name) {
			return "$" + m.name
		}
		return "$(" + m.name + ")"
	}
	parts := []string{m.name}
	for _, t := range m.transforms {
		parts = append(parts, t.notation())
	}
	return "$(" + strings.Join(parts, "|") + ")"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (m *substMatcher) resolve(rc *resolveCtx) (matcher, error) {
	if rc == nil || rc.bindings == nil {
		if rc != nil && rc.partial {
			return m, nil
		}
		return nil, unresolvedErrorf("no binding for $%s", m.name)
	}
	v, ok := rc.bindings[m.name]
	if !ok {
		if rc.partial {
			return m, nil
		}
		return nil, unresolvedErrorf("no binding for $%s", m.name)
	}
	reg := rc.registry
	if reg == nil {
		reg = defaultRegistry
	}
	v, err := applyTransformCalls(reg, v, m.transforms)
	if err != nil {
		return nil, err
	}
	// resolved text splices into the notation verbatim, so a bound
	// "a.b.c" re-parses as three segments
	s := stringify(v)
	return &constMatcher{val: s, raw: s}, nil
}

// ===== References =====

// refMatcher is a $$(path) reference resolved against the document at
// traversal time. depth selects the resolution base: 0 the root, 1 the
// current node, 2 its parent, and so on up the ancestor chain.
type refMatcher struct {
	depth int
	ops   []op
	src   string
	// pattern mirrors the inner path: a reference through a concrete
	// path addresses exactly one key.
	pattern bool
}

func (m *refMatcher) isPattern() bool            { return m.pattern }
func (m *refMatcher) concreteValue() (any, bool) { return nil, false }
func (m *refMatcher) matchOne(v any) (any, bool) { return nil, false }

func (m *refMatcher) matchableBy(other matcher, specials bool) bool { return false }

func (m *refMatcher) notation(bool) string {
	return "$$(" + strings.Repeat("^", m.depth) + m.src + ")"
}

func (m *refMatcher) resolve(rc *resolveCtx) (matcher, error) {
	if rc == nil || !rc.runtime {
		if rc != nil && (rc.partial || rc.bindings != nil) {
			return m, nil
		}
		return nil, unresolvedErrorf("reference %s outside a document", m.notation(false))
	}
	var base any
	switch {
	case m.depth == 0:
		base = rc.st.root
	case m.depth == 1:
		base = rc.node
	default:
		up := m.depth - 1
		if up > len(rc.parents) {
			return nil, unresolvedErrorf("reference %s: not enough ancestors", m.notation(false))
		}
		base = rc.parents[len(rc.parents)-up]
	}
	vals, _, _, err := collectValues(m.ops, base, rc.st, false)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		// a dangling reference matches nothing rather than failing
		return &neverMatcher{orig: m}, nil
	}
	return &constMatcher{val: values.NormalizeKey(vals[0])}, nil
}

// ===== Concatenation =====

// concatPart is one operand of a key concatenation, with transforms
// applied to its resolved value before the + reduction.
type concatPart struct {
	m          matcher
	transforms []transformCall
}

// concatMatcher joins parts with +: string parts concatenate, numeric
// parts add. It addresses a single concrete key once every part has
// resolved.
type concatMatcher struct {
	parts []concatPart
}

func (m *concatMatcher) isPattern() bool { return false }

func (m *concatMatcher) concreteValue() (any, bool) {
	vals := make([]any, 0, len(m.parts))
	for _, p := range m.parts {
		v, ok := p.m.concreteValue()
		if !ok {
			return nil, false
		}
		v, err := applyTransformCalls(defaultRegistry, v, p.transforms)
		if err != nil {
			return nil, false
		}
		vals = append(vals, v)
	}
	v, err := concatReduce(vals)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (m *concatMatcher) matchOne(v any) (any, bool) {
	target, ok := m.concreteValue()
	if !ok {
		return nil, false
	}
	if values.Equal(target, v) {
		return v, true
	}
	return nil, false
}

func (m *concatMatcher) matchableBy(other matcher, specials bool) bool {
	_, ok := other.concreteValue()
	return ok
}

func (m *concatMatcher) notation(asKey bool) string {
	parts := make([]string, len(m.parts))
	for i, p := range m.parts {
		s := p.m.notation(true)
		for _, t := range p.transforms {
			s += "|" + t.notation()
		}
		parts[i] = s
	}
	return strings.Join(parts, "+")
}

func (m *concatMatcher) resolve(rc *resolveCtx) (matcher, error) {
	reg := defaultRegistry
	if rc != nil && rc.registry != nil {
		reg = rc.registry
	}
	changed := false
	allConcrete := true
	out := make([]concatPart, len(m.parts))
	for i, p := range m.parts {
		r, err := p.m.resolve(rc)
		if err != nil {
			return nil, err
		}
		if _, never := r.(*neverMatcher); never {
			return r, nil
		}
		if r != p.m {
			changed = true
		}
		out[i] = concatPart{m: r, transforms: p.transforms}
		if _, ok := r.concreteValue(); !ok {
			allConcrete = false
		}
	}
	if !changed {
		return m, nil
	}
	if allConcrete {
		vals := make([]any, len(out))
		for i, p := range out {
			v, _ := p.m.concreteValue()
			v, err := applyTransformCalls(reg, v, p.transforms)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		v, err := concatReduce(vals)
		if err != nil {
			return nil, err
		}
		if rc != nil && rc.runtime {
			return &constMatcher{val: values.NormalizeKey(v)}, nil
		}
		return &constMatcher{val: stringify(v)}, nil
	}
	return &concatMatcher{parts: out}, nil
}

// concatReduce folds values with +. Strings concatenate; integers and
// floats add; mixing kinds is an error.
func concatReduce(vals []any) (any, error) {
	if len(vals) == 0 {
		return nil, unresolvedErrorf("empty concatenation")
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		switch a := acc.(type) {
		case string:
			s, ok := v.(string)
			if !ok {
				return nil, unresolvedErrorf("cannot concatenate %T and %T", acc, v)
			}
			acc = a + s
		case float64:
			switch b := v.(type) {
			case float64:
				acc = a + b
			default:
				if i, ok := values.AsInt(v); ok {
					acc = a + float64(i)
				} else {
					return nil, unresolvedErrorf("cannot concatenate %T and %T", acc, v)
				}
			}
		default:
			ai, aok := values.AsInt(acc)
			if !aok {
				return nil, unresolvedErrorf("cannot concatenate %T and %T", acc, v)
			}
			if f, ok := v.(float64); ok {
				acc = float64(ai) + f
				continue
			}
			bi, bok := values.AsInt(v)
			if !bok {
				return nil, unresolvedErrorf("cannot concatenate %T and %T", acc, v)
			}
			acc = ai + bi
		}
	}
	return acc, nil
}

// ===== Value groups =====

// valueGroupMatcher matches when any alternative matches, used in
// guard and filter value position: k=(1, 2).
type valueGroupMatcher struct {
	alts []matcher
}

func (m *valueGroupMatcher) isPattern() bool            { return true }
func (m *valueGroupMatcher) concreteValue() (any, bool) { return nil, false }

func (m *valueGroupMatcher) matchOne(v any) (any, bool) {
	for _, alt := range m.alts {
		if mv, ok := alt.matchOne(v); ok {
			return mv, true
		}
	}
	return nil, false
}

func (m *valueGroupMatcher) matchableBy(other matcher, specials bool) bool {
	for _, alt := range m.alts {
		if alt.matchableBy(other, specials) {
			return true
		}
	}
	return false
}

func (m *valueGroupMatcher) notation(asKey bool) string {
	parts := make([]string, len(m.alts))
	for i, alt := range m.alts {
		parts[i] = alt.notation(false)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (m *valueGroupMatcher) resolve(rc *resolveCtx) (matcher, error) {
	changed := false
	out := make([]matcher, len(m.alts))
	for i, alt := range m.alts {
		r, err := alt.resolve(rc)
		if err != nil {
			return nil, err
		}
		if r != alt {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return m, nil
	}
	return &valueGroupMatcher{alts: out}, nil
}
