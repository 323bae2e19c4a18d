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

import "strings"

// filter tests one enumerated child value, as in a[x=1] or
// items[age>=18]. Filter keys are themselves small op chains, so
// dotted and slotted filter keys come for free.
type filter interface {
	matches(candidate any, st *state) (bool, error)
	firstOnly() bool
	notation() string
	resolve(rc *resolveCtx) (filter, error)
}

// filterCond is the key<pred>value condition.
type filterCond struct {
	keyOps     []op
	pred       predKind
	val        matcher
	transforms []transformCall
	first      bool
}

func (f *filterCond) matches(candidate any, st *state) (bool, error) {
	vals, err := filterKeyValues(f.keyOps, candidate, st)
	if err != nil {
		return false, err
	}
	reg := defaultRegistry
	if st != nil && st.registry != nil {
		reg = st.registry
	}
	if f.pred == predNe {
		// no found value may equal
		for _, v := range vals {
			v, err = applyTransformCalls(reg, v, f.transforms)
			if err != nil {
				return false, err
			}
			if predMatch(predEq, v, f.val) {
				return false, nil
			}
		}
		return true, nil
	}
	for _, v := range vals {
		v, err = applyTransformCalls(reg, v, f.transforms)
		if err != nil {
			return false, err
		}
		if predMatch(f.pred, v, f.val) {
			return true, nil
		}
	}
	return false, nil
}

func (f *filterCond) firstOnly() bool { return f.first }

func (f *filterCond) notation() string {
	var b strings.Builder
	b.WriteString(assembleOps(f.keyOps, true))
	for _, t := range f.transforms {
		b.WriteByte('|')
		b.WriteString(t.notation())
	}
	b.WriteString(f.pred.notation())
	b.WriteString(f.val.notation(false))
	if f.first {
		b.WriteByte('?')
	}
	return b.String()
}

func (f *filterCond) resolve(rc *resolveCtx) (filter, error) {
	v, err := f.val.resolve(rc)
	if err != nil {
		return nil, err
	}
	keyOps, changed, err := resolveOps(f.keyOps, rc)
	if err != nil {
		return nil, err
	}
	ts, tchanged, err := resolveTransformCalls(f.transforms, rc)
	if err != nil {
		return nil, err
	}
	if v == f.val && !changed && !tchanged {
		return f, nil
	}
	out := *f
	out.val = v
	out.keyOps = keyOps
	out.transforms = ts
	return &out, nil
}

// filterKeyValues evaluates a filter key chain against a candidate.
func filterKeyValues(ops []op, candidate any, st *state) ([]any, error) {
	vals, _, _, err := collectValues(ops, candidate, st, false)
	return vals, err
}

// filterAnd requires every condition (& within one bracket).
type filterAnd struct {
	fs []filter
}

func (f *filterAnd) matches(candidate any, st *state) (bool, error) {
	for _, sub := range f.fs {
		ok, err := sub.matches(candidate, st)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (f *filterAnd) firstOnly() bool {
	for _, sub := range f.fs {
		if sub.firstOnly() {
			return true
		}
	}
	return false
}

func (f *filterAnd) notation() string {
	parts := make([]string, len(f.fs))
	for i, sub := range f.fs {
		parts[i] = sub.notation()
	}
	return strings.Join(parts, "&")
}

func (f *filterAnd) resolve(rc *resolveCtx) (filter, error) {
	changed := false
	out := make([]filter, len(f.fs))
	for i, sub := range f.fs {
		r, err := sub.resolve(rc)
		if err != nil {
			return nil, err
		}
		if r != sub {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return f, nil
	}
	return &filterAnd{fs: out}, nil
}

// filterOr passes when any condition does (comma within one bracket).
type filterOr struct {
	fs []filter
}

func (f *filterOr) matches(candidate any, st *state) (bool, error) {
	for _, sub := range f.fs {
		ok, err := sub.matches(candidate, st)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *filterOr) firstOnly() bool {
	for _, sub := range f.fs {
		if sub.firstOnly() {
			return true
		}
	}
	return false
}

func (f *filterOr) notation() string {
	parts := make([]string, len(f.fs))
	for i, sub := range f.fs {
		parts[i] = sub.notation()
	}
	return strings.Join(parts, ",")
}

func (f *filterOr) resolve(rc *resolveCtx) (filter, error) {
	changed := false
	out := make([]filter, len(f.fs))
	for i, sub := range f.fs {
		r, err := sub.resolve(rc)
		if err != nil {
			return nil, err
		}
		if r != sub {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return f, nil
	}
	return &filterOr{fs: out}, nil
}

// filterGroup keeps explicit parentheses for round-tripping.
type filterGroup struct {
	f filter
}

func (f *filterGroup) matches(candidate any, st *state) (bool, error) {
	return f.f.matches(candidate, st)
}

func (f *filterGroup) firstOnly() bool { return f.f.firstOnly() }

func (f *filterGroup) notation() string { return "(" + f.f.notation() + ")" }

func (f *filterGroup) resolve(rc *resolveCtx) (filter, error) {
	r, err := f.f.resolve(rc)
	if err != nil {
		return nil, err
	}
	if r == f.f {
		return f, nil
	}
	return &filterGroup{f: r}, nil
}

// filterFirst stops at the first passing entry: [x=1?].
type filterFirst struct {
	f filter
}

func (f *filterFirst) matches(candidate any, st *state) (bool, error) {
	return f.f.matches(candidate, st)
}

func (f *filterFirst) firstOnly() bool { return true }

func (f *filterFirst) notation() string { return f.f.notation() + "?" }

func (f *filterFirst) resolve(rc *resolveCtx) (filter, error) {
	r, err := f.f.resolve(rc)
	if err != nil {
		return nil, err
	}
	if r == f.f {
		return f, nil
	}
	return &filterFirst{f: r}, nil
}

// filterNot inverts a condition (! prefix).
type filterNot struct {
	f filter
}

func (f *filterNot) matches(candidate any, st *state) (bool, error) {
	ok, err := f.f.matches(candidate, st)
	return !ok, err
}

func (f *filterNot) firstOnly() bool { return f.f.firstOnly() }

func (f *filterNot) notation() string { return "!" + f.f.notation() }

func (f *filterNot) resolve(rc *resolveCtx) (filter, error) {
	r, err := f.f.resolve(rc)
	if err != nil {
		return nil, err
	}
	if r == f.f {
		return f, nil
	}
	return &filterNot{f: r}, nil
}

// ===== Shared helpers for filtered ops =====

// applyFilters keeps the entries every filter accepts, honoring
// first-only filters.
func applyFilters(ents []entry, filters []filter, st *state) ([]entry, error) {
	if len(filters) == 0 {
		return ents, nil
	}
	first := false
	for _, f := range filters {
		if f.firstOnly() {
			first = true
		}
	}
	var out []entry
	for _, e := range ents {
		pass := true
		for _, f := range filters {
			ok, err := f.matches(e.val, st)
			if err != nil {
				return nil, err
			}
			if !ok {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, e)
			if first {
				break
			}
		}
	}
	return out, nil
}

func filtersNotation(filters []filter) string {
	if len(filters) == 0 {
		return ""
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.notation()
	}
	return "&" + strings.Join(parts, "&")
}

func resolveFilters(filters []filter, rc *resolveCtx) ([]filter, bool, error) {
	changed := false
	out := make([]filter, len(filters))
	for i, f := range filters {
		r, err := f.resolve(rc)
		if err != nil {
			return nil, false, err
		}
		if r != f {
			changed = true
		}
		out[i] = r
	}
	return out, changed, nil
}

// resolveOps resolves placeholders across an op slice.
func resolveOps(ops []op, rc *resolveCtx) ([]op, bool, error) {
	changed := false
	out := make([]op, len(ops))
	for i, o := range ops {
		r, err := o.resolve(rc)
		if err != nil {
			return nil, false, err
		}
		if r != o {
			changed = true
		}
		out[i] = r
	}
	return out, changed, nil
}
