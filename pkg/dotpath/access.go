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
	"strconv"
	"strings"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// neverMatcher replaces a reference that resolved to nothing: the
// segment silently matches no children instead of failing the call.
type neverMatcher struct {
	orig matcher
}

func (m *neverMatcher) isPattern() bool                                 { return true }
func (m *neverMatcher) concreteValue() (any, bool)                      { return nil, false }
func (m *neverMatcher) matchOne(v any) (any, bool)                      { return nil, false }
func (m *neverMatcher) matchableBy(other matcher, specials bool) bool   { return false }
func (m *neverMatcher) notation(asKey bool) string                      { return m.orig.notation(asKey) }
func (m *neverMatcher) resolve(rc *resolveCtx) (matcher, error)         { return m, nil }

// runtimeCtx builds the resolution context for reference matchers at a
// traversal position.
func runtimeCtx(node any, parents []any, st *state) *resolveCtx {
	var reg *Registry
	if st != nil {
		reg = st.registry
	}
	return &resolveCtx{runtime: true, st: st, node: node, parents: parents, registry: reg}
}

// assembleOps renders an op slice back to notation.
func assembleOps(ops []op, _ bool) string {
	var b strings.Builder
	top := true
	for _, o := range ops {
		b.WriteString(o.operator(top))
		if _, inv := o.(*invertOp); !inv {
			top = false
		}
	}
	return b.String()
}

// ===== Empty =====

// emptyOp is the empty path: it addresses the root itself.
type emptyOp struct{}

func (o *emptyOp) isPattern() bool       { return false }
func (o *emptyOp) operator(top bool) string { return "" }
func (o *emptyOp) concrete(key any) op   { return o }

func (o *emptyOp) items(node any, st *state) ([]entry, error) {
	return []entry{{key: "", val: node}}, nil
}

func (o *emptyOp) defaultContainer() any { return map[string]any{} }

func (o *emptyOp) setChild(node any, key, val any) (any, error) { return val, nil }

func (o *emptyOp) upsert(node, val any, st *state) (any, error) { return val, nil }

func (o *emptyOp) pop(node any, st *state) (any, error) { return nil, nil }

func (o *emptyOp) removeValue(node, val any, st *state) (any, error) {
	if _, isAny := val.(anySentinel); isAny || values.Equal(node, val) {
		return nil, nil
	}
	return node, nil
}

func (o *emptyOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return simplePushChildren(o, stk, fr, st, paths)
}

func (o *emptyOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	if len(tail) == 0 {
		if uc.nop {
			return node, nil
		}
		return val, nil
	}
	return updates(tail, node, val, uc, st)
}

func (o *emptyOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	if len(tail) == 0 {
		if nop {
			return node, nil
		}
		return o.removeValue(node, val, st)
	}
	return removes(tail, node, val, nop, st)
}

func (o *emptyOp) match(other op, specials bool) ([]any, bool) {
	_, ok := other.(*emptyOp)
	if !ok {
		return nil, false
	}
	return []any{""}, true
}

func (o *emptyOp) resolve(rc *resolveCtx) (op, error) { return o, nil }

// ===== Key =====

// keyOp addresses mapping entries by key: "a.b". Outside strict mode a
// concrete integer key also reaches into sequences.
type keyOp struct {
	m       matcher
	filters []filter
}

func (o *keyOp) isPattern() bool { return o.m.isPattern() }

func (o *keyOp) operator(top bool) string {
	s := o.m.notation(true) + filtersNotation(o.filters)
	if top {
		return s
	}
	return "." + s
}

func (o *keyOp) concrete(key any) op { return &keyOp{m: newConstMatcher(key)} }

func (o *keyOp) enumerate(node any, st *state) []entry {
	if values.IsMap(node) {
		matched := matchKeys(o.m, values.MapKeys(node))
		ents := make([]entry, 0, len(matched))
		for _, k := range matched {
			v, _ := values.MapGet(node, k)
			ents = append(ents, entry{key: k, val: v})
		}
		return ents
	}
	if st != nil && st.strict {
		return nil
	}
	if values.IsSeq(node) {
		if cv, ok := o.m.concreteValue(); ok {
			if i, iok := values.AsInt(cv); iok {
				if v, vok := values.SeqAt(node, i); vok {
					return []entry{{key: i, val: v}}
				}
			}
		}
	}
	return nil
}

func (o *keyOp) items(node any, st *state) ([]entry, error) {
	return applyFilters(o.enumerate(node, st), o.filters, st)
}

func (o *keyOp) defaultContainer() any {
	cv, ok := o.m.concreteValue()
	if !ok {
		return map[string]any{}
	}
	var inner any
	if len(o.filters) > 0 {
		inner = map[string]any{}
	}
	if s, sok := cv.(string); sok {
		return map[string]any{s: inner}
	}
	return map[any]any{cv: inner}
}

func (o *keyOp) setChild(node any, key, val any) (any, error) {
	if values.IsMap(node) {
		return values.MapSet(node, key, val), nil
	}
	if i, ok := values.AsInt(key); ok {
		if out, sok := values.SeqSet(node, i, val); sok {
			return out, nil
		}
	}
	return nil, structureError(node, o.operator(true))
}

func (o *keyOp) upsert(node, val any, st *state) (any, error) {
	if cv, ok := o.m.concreteValue(); ok {
		return o.setChild(node, cv, val)
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		node, err = o.setChild(node, e.key, val)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *keyOp) pop(node any, st *state) (any, error) {
	cv, ok := o.m.concreteValue()
	if !ok {
		return node, nil
	}
	if values.IsMap(node) {
		return values.MapDelete(node, cv), nil
	}
	if i, iok := values.AsInt(cv); iok {
		if out, sok := values.SeqDelete(node, i); sok {
			return out, nil
		}
	}
	return node, nil
}

func (o *keyOp) removeValue(node, val any, st *state) (any, error) {
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	_, isAny := val.(anySentinel)
	var doomed []any
	for _, e := range ents {
		if isAny || values.Equal(e.val, val) {
			doomed = append(doomed, e.key)
		}
	}
	return deleteKeys(node, doomed), nil
}

func (o *keyOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	return simplePushChildren(ro, stk, fr, st, paths)
}

func (o *keyOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return genericDoUpdate(ro, tail, node, val, uc, st)
}

func (o *keyOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return genericDoRemove(ro, tail, node, val, nop, st)
}

func (o *keyOp) match(other op, specials bool) ([]any, bool) {
	var om matcher
	switch t := other.(type) {
	case *keyOp:
		om = t.m
	case *slotOp:
		om = t.m
	default:
		return nil, false
	}
	return matchMatchers(o.m, om, specials)
}

func (o *keyOp) resolve(rc *resolveCtx) (op, error) {
	m, err := o.m.resolve(rc)
	if err != nil {
		return nil, err
	}
	fs, changed, err := resolveFilters(o.filters, rc)
	if err != nil {
		return nil, err
	}
	if m == o.m && !changed {
		return o, nil
	}
	return &keyOp{m: m, filters: fs}, nil
}

// matchMatchers structurally compares a pattern matcher against the
// other side's matcher, capturing the concrete value when available.
func matchMatchers(pat, other matcher, specials bool) ([]any, bool) {
	if cv, ok := other.concreteValue(); ok {
		if mv, mok := pat.matchOne(cv); mok {
			return []any{mv}, true
		}
		return nil, false
	}
	if pat.matchableBy(other, specials) {
		return []any{other.notation(true)}, true
	}
	return nil, false
}

// deleteKeys removes keys from a container, deleting sequence indices
// from the back so earlier positions stay valid.
func deleteKeys(node any, keys []any) any {
	if values.IsMap(node) {
		for _, k := range keys {
			node = values.MapDelete(node, k)
		}
		return node
	}
	var idxs []int64
	for _, k := range keys {
		if i, ok := values.AsInt(k); ok {
			idxs = append(idxs, i)
		}
	}
	if n, ok := values.SeqLen(node); ok {
		for i := range idxs {
			if idxs[i] < 0 {
				idxs[i] += int64(n)
			}
		}
	}
	for i := len(idxs) - 1; i >= 0; i-- {
		if out, ok := values.SeqDelete(node, idxs[i]); ok {
			node = out
		}
	}
	return node
}

// ===== Attr =====

// attrOp addresses record fields: "obj@name".
type attrOp struct {
	m       matcher
	filters []filter
}

func (o *attrOp) isPattern() bool { return o.m.isPattern() }

func (o *attrOp) operator(top bool) string {
	return "@" + o.m.notation(true) + filtersNotation(o.filters)
}

func (o *attrOp) concrete(key any) op { return &attrOp{m: newConstMatcher(key)} }

func (o *attrOp) items(node any, st *state) ([]entry, error) {
	rec, ok := values.AsRecord(node)
	if !ok {
		return nil, nil
	}
	fields := rec.Fields()
	keys := make([]any, len(fields))
	for i, f := range fields {
		keys[i] = f
	}
	var ents []entry
	for _, k := range matchKeys(o.m, keys) {
		name := k.(string)
		if v, found := rec.Field(name); found {
			ents = append(ents, entry{key: name, val: v})
		}
	}
	return applyFilters(ents, o.filters, st)
}

func (o *attrOp) defaultContainer() any { return values.NewObject() }

func (o *attrOp) setChild(node any, key, val any) (any, error) {
	rec, ok := values.AsRecord(node)
	if !ok {
		return nil, structureError(node, o.operator(true))
	}
	name, ok := key.(string)
	if !ok {
		name = stringify(key)
	}
	out, err := rec.SetField(name, val)
	if err != nil {
		return nil, err
	}
	return values.RecordValue(out), nil
}

func (o *attrOp) upsert(node, val any, st *state) (any, error) {
	if cv, ok := o.m.concreteValue(); ok {
		return o.setChild(node, cv, val)
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		node, err = o.setChild(node, e.key, val)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *attrOp) pop(node any, st *state) (any, error) {
	rec, ok := values.AsRecord(node)
	if !ok {
		return node, nil
	}
	cv, cok := o.m.concreteValue()
	if !cok {
		return node, nil
	}
	out, err := rec.DeleteField(stringify(cv))
	if err != nil {
		return nil, err
	}
	return values.RecordValue(out), nil
}

func (o *attrOp) removeValue(node, val any, st *state) (any, error) {
	rec, ok := values.AsRecord(node)
	if !ok {
		return node, nil
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	_, isAny := val.(anySentinel)
	for _, e := range ents {
		if isAny || values.Equal(e.val, val) {
			out, derr := rec.DeleteField(e.key.(string))
			if derr != nil {
				return nil, derr
			}
			rec = out
		}
	}
	return values.RecordValue(rec), nil
}

func (o *attrOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	return simplePushChildren(ro, stk, fr, st, paths)
}

func (o *attrOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return genericDoUpdate(o, tail, node, val, uc, st)
}

func (o *attrOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return genericDoRemove(o, tail, node, val, nop, st)
}

func (o *attrOp) match(other op, specials bool) ([]any, bool) {
	t, ok := other.(*attrOp)
	if !ok {
		return nil, false
	}
	return matchMatchers(o.m, t.m, specials)
}

func (o *attrOp) resolve(rc *resolveCtx) (op, error) {
	m, err := o.m.resolve(rc)
	if err != nil {
		return nil, err
	}
	fs, changed, err := resolveFilters(o.filters, rc)
	if err != nil {
		return nil, err
	}
	if m == o.m && !changed {
		return o, nil
	}
	return &attrOp{m: m, filters: fs}, nil
}

// ===== Slot =====

// slotOp addresses sequence positions (and, outside strict mode,
// mapping keys): "[0]", "[*]", "['key']".
type slotOp struct {
	m       matcher
	filters []filter
}

func (o *slotOp) isPattern() bool { return o.m.isPattern() }

func (o *slotOp) operator(top bool) string {
	return "[" + o.m.notation(true) + filtersNotation(o.filters) + "]"
}

func (o *slotOp) concrete(key any) op { return &slotOp{m: newConstMatcher(key)} }

func (o *slotOp) intIndex() (int64, bool) {
	cv, ok := o.m.concreteValue()
	if !ok {
		return 0, false
	}
	return values.AsInt(cv)
}

func (o *slotOp) enumerate(node any, st *state) []entry {
	if values.IsMap(node) {
		if st != nil && st.strict {
			return nil
		}
		return (&keyOp{m: o.m}).enumerateMapOnly(node)
	}
	if !values.IsSeq(node) {
		return nil
	}
	if o.m.isPattern() {
		n, _ := values.SeqLen(node)
		keys := make([]any, n)
		for i := 0; i < n; i++ {
			keys[i] = int64(i)
		}
		var ents []entry
		for _, k := range matchKeys(o.m, keys) {
			i, _ := values.AsInt(k)
			v, _ := values.SeqAt(node, i)
			ents = append(ents, entry{key: i, val: v})
		}
		return ents
	}
	cv, _ := o.m.concreteValue()
	if i, ok := values.AsInt(cv); ok {
		if v, vok := values.SeqAt(node, i); vok {
			return []entry{{key: i, val: v}}
		}
	}
	return nil
}

// enumerateMapOnly enumerates mapping entries without the sequence
// fallback, for slot-on-dict duck addressing.
func (o *keyOp) enumerateMapOnly(node any) []entry {
	matched := matchKeys(o.m, values.MapKeys(node))
	ents := make([]entry, 0, len(matched))
	for _, k := range matched {
		v, _ := values.MapGet(node, k)
		ents = append(ents, entry{key: k, val: v})
	}
	return ents
}

func (o *slotOp) items(node any, st *state) ([]entry, error) {
	return applyFilters(o.enumerate(node, st), o.filters, st)
}

func (o *slotOp) defaultContainer() any {
	if _, ok := o.intIndex(); ok {
		return []any{}
	}
	return (&keyOp{m: o.m, filters: o.filters}).defaultContainer()
}

func (o *slotOp) setChild(node any, key, val any) (any, error) {
	if values.IsMap(node) {
		return values.MapSet(node, key, val), nil
	}
	if i, ok := values.AsInt(key); ok {
		if out, sok := values.SeqSet(node, i, val); sok {
			return out, nil
		}
	}
	return nil, structureError(node, o.operator(true))
}

func (o *slotOp) upsert(node, val any, st *state) (any, error) {
	if cv, ok := o.m.concreteValue(); ok {
		return o.setChild(node, cv, val)
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		node, err = o.setChild(node, e.key, val)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *slotOp) pop(node any, st *state) (any, error) {
	cv, ok := o.m.concreteValue()
	if !ok {
		return node, nil
	}
	if values.IsMap(node) {
		return values.MapDelete(node, cv), nil
	}
	if i, iok := values.AsInt(cv); iok {
		if out, sok := values.SeqDelete(node, i); sok {
			return out, nil
		}
	}
	return node, nil
}

func (o *slotOp) removeValue(node, val any, st *state) (any, error) {
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	if _, isAny := val.(anySentinel); isAny {
		var doomed []any
		for _, e := range ents {
			doomed = append(doomed, e.key)
		}
		return deleteKeys(node, doomed), nil
	}
	for _, e := range ents {
		if values.Equal(e.val, val) {
			return deleteKeys(node, []any{e.key}), nil
		}
	}
	return node, nil
}

func (o *slotOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	return simplePushChildren(ro, stk, fr, st, paths)
}

func (o *slotOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return genericDoUpdate(ro, tail, node, val, uc, st)
}

func (o *slotOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return genericDoRemove(ro, tail, node, val, nop, st)
}

func (o *slotOp) match(other op, specials bool) ([]any, bool) {
	t, ok := other.(*slotOp)
	if !ok {
		return nil, false
	}
	return matchMatchers(o.m, t.m, specials)
}

func (o *slotOp) resolve(rc *resolveCtx) (op, error) {
	m, err := o.m.resolve(rc)
	if err != nil {
		return nil, err
	}
	fs, changed, err := resolveFilters(o.filters, rc)
	if err != nil {
		return nil, err
	}
	if m == o.m && !changed {
		return o, nil
	}
	return &slotOp{m: m, filters: fs}, nil
}

// ===== Empty slots =====

// emptySlotOp is "[]": it addresses nothing but scaffolds an empty
// list when structure is built through it.
type emptySlotOp struct{}

func (o *emptySlotOp) isPattern() bool          { return false }
func (o *emptySlotOp) operator(top bool) string { return "[]" }
func (o *emptySlotOp) concrete(key any) op      { return o }

func (o *emptySlotOp) items(node any, st *state) ([]entry, error) { return nil, nil }

func (o *emptySlotOp) defaultContainer() any { return []any{} }

func (o *emptySlotOp) setChild(node any, key, val any) (any, error) { return node, nil }

func (o *emptySlotOp) upsert(node, val any, st *state) (any, error) { return node, nil }

func (o *emptySlotOp) pop(node any, st *state) (any, error) { return node, nil }

func (o *emptySlotOp) removeValue(node, val any, st *state) (any, error) { return node, nil }

func (o *emptySlotOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return nil, false, nil
}

func (o *emptySlotOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return node, nil
}

func (o *emptySlotOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return node, nil
}

func (o *emptySlotOp) match(other op, specials bool) ([]any, bool) {
	if _, ok := other.(*emptySlotOp); ok {
		return []any{"[]"}, true
	}
	return nil, false
}

func (o *emptySlotOp) resolve(rc *resolveCtx) (op, error) { return o, nil }

// ===== Appender slots =====

// slotSpecialOp is "[+]" (always append) or "[+?]" (append when the
// value is not already present).
type slotSpecialOp struct {
	unique bool
}

func (o *slotSpecialOp) isPattern() bool { return false }

func (o *slotSpecialOp) operator(top bool) string {
	if o.unique {
		return "[+?]"
	}
	return "[+]"
}

func (o *slotSpecialOp) concrete(key any) op { return &slotOp{m: newConstMatcher(key)} }

func (o *slotSpecialOp) items(node any, st *state) ([]entry, error) {
	// the appender addresses the (future) last position; navigating
	// through it reads the current last element
	if v, ok := values.SeqAt(node, -1); ok {
		return []entry{{key: int64(-1), val: v}}, nil
	}
	return nil, nil
}

// isEmpty always holds: every update through an appender scaffolds a
// fresh element instead of descending into an existing one.
func (o *slotSpecialOp) isEmpty(node any, st *state) bool { return true }

func (o *slotSpecialOp) defaultContainer() any { return []any{} }

func (o *slotSpecialOp) setChild(node any, key, val any) (any, error) {
	return o.upsert(node, val, nil)
}

func (o *slotSpecialOp) upsert(node, val any, st *state) (any, error) {
	if s, ok := node.(*values.Set); ok {
		return s.Add(val), nil
	}
	if o.unique && values.SeqContains(node, val) {
		return node, nil
	}
	if out, ok := values.SeqAppend(node, val); ok {
		return out, nil
	}
	return nil, structureError(node, o.operator(true))
}

func (o *slotSpecialOp) pop(node any, st *state) (any, error) { return node, nil }

func (o *slotSpecialOp) removeValue(node, val any, st *state) (any, error) {
	return node, nil
}

func (o *slotSpecialOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return simplePushChildren(o, stk, fr, st, paths)
}

func (o *slotSpecialOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return genericDoUpdate(o, tail, node, val, uc, st)
}

func (o *slotSpecialOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return genericDoRemove(o, tail, node, val, nop, st)
}

func (o *slotSpecialOp) match(other op, specials bool) ([]any, bool) {
	t, ok := other.(*slotSpecialOp)
	if !ok || t.unique != o.unique {
		return nil, false
	}
	return []any{o.operator(true)}, true
}

func (o *slotSpecialOp) resolve(rc *resolveCtx) (op, error) { return o, nil }

// ===== Slice =====

// sliceOp addresses a subsequence: "[1:3]", "[::2]", "[1:+]" where "+"
// stands for the sequence length.
type sliceOp struct {
	start, stop, step  *int64
	plusStart, plusStop bool
}

func (o *sliceOp) isPattern() bool { return false }

func (o *sliceOp) operator(top bool) string {
	part := func(p *int64, plus bool) string {
		if plus {
			return "+"
		}
		if p == nil {
			return ""
		}
		return strconv.FormatInt(*p, 10)
	}
	s := "[" + part(o.start, o.plusStart) + ":" + part(o.stop, o.plusStop)
	if o.step != nil {
		s += ":" + strconv.FormatInt(*o.step, 10)
	}
	return s + "]"
}

func (o *sliceOp) concrete(key any) op { return o }

// bounds resolves "+" against the live sequence length.
func (o *sliceOp) bounds(node any) (start, stop *int64) {
	start, stop = o.start, o.stop
	if n, ok := values.SeqLen(node); ok {
		ln := int64(n)
		if o.plusStart {
			start = &ln
		}
		if o.plusStop {
			stop = &ln
		}
	}
	return start, stop
}

func (o *sliceOp) items(node any, st *state) ([]entry, error) {
	if !values.IsSeq(node) {
		return nil, nil
	}
	start, stop := o.bounds(node)
	sliced, ok := values.SeqSliceGet(node, start, stop, o.step)
	if !ok {
		return nil, nil
	}
	return []entry{{key: nil, val: sliced}}, nil
}

func (o *sliceOp) defaultContainer() any { return []any{} }

func (o *sliceOp) setChild(node any, key, val any) (any, error) {
	return o.upsert(node, val, nil)
}

func (o *sliceOp) upsert(node, val any, st *state) (any, error) {
	if !values.IsSeq(node) {
		return nil, structureError(node, o.operator(true))
	}
	vals, ok := values.SeqElems(val)
	if !ok {
		vals = []any{val}
	}
	start, stop := o.bounds(node)
	out, sok := values.SeqSliceSet(node, start, stop, o.step, vals)
	if !sok {
		return nil, structureError(node, o.operator(true))
	}
	return out, nil
}

func (o *sliceOp) pop(node any, st *state) (any, error) {
	start, stop := o.bounds(node)
	if out, ok := values.SeqSliceDelete(node, start, stop, o.step); ok {
		return out, nil
	}
	return node, nil
}

func (o *sliceOp) removeValue(node, val any, st *state) (any, error) {
	if !values.IsSeq(node) {
		return node, nil
	}
	if _, isAny := val.(anySentinel); !isAny {
		start, stop := o.bounds(node)
		sliced, _ := values.SeqSliceGet(node, start, stop, o.step)
		if !values.Equal(sliced, val) {
			return node, nil
		}
	}
	return o.pop(node, st)
}

func (o *sliceOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return simplePushChildren(o, stk, fr, st, paths)
}

func (o *sliceOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return genericDoUpdate(o, tail, node, val, uc, st)
}

func (o *sliceOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return genericDoRemove(o, tail, node, val, nop, st)
}

// cardinality orders slices for structural matching: a wider slice
// matches a narrower one.
func (o *sliceOp) cardinality() int64 {
	if o.start == nil && o.stop == nil && !o.plusStart && !o.plusStop {
		return int64(1) << 62
	}
	if o.start != nil && o.stop != nil {
		step := int64(1)
		if o.step != nil && *o.step != 0 {
			step = *o.step
			if step < 0 {
				step = -step
			}
		}
		d := *o.stop - *o.start
		if d < 0 {
			d = -d
		}
		return d / step
	}
	return int64(1) << 61
}

func (o *sliceOp) match(other op, specials bool) ([]any, bool) {
	t, ok := other.(*sliceOp)
	if !ok {
		return nil, false
	}
	if o.cardinality() >= t.cardinality() {
		return []any{t.operator(true)}, true
	}
	return nil, false
}

func (o *sliceOp) resolve(rc *resolveCtx) (op, error) { return o, nil }

// ===== Filter slots =====

// sliceFilterOp is "[k=v]": it narrows a sequence to the elements the
// filter accepts and hands the filtered view downstream.
type sliceFilterOp struct {
	filters []filter
}

// a filter slot narrows to one filtered view, so chains through it
// still address a single location
func (o *sliceFilterOp) isPattern() bool { return false }

func (o *sliceFilterOp) operator(top bool) string {
	parts := make([]string, len(o.filters))
	for i, f := range o.filters {
		parts[i] = f.notation()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (o *sliceFilterOp) concrete(key any) op { return &sliceOp{} }

func (o *sliceFilterOp) items(node any, st *state) ([]entry, error) {
	if !values.IsSeq(node) {
		return nil, nil
	}
	elems, _ := values.SeqElems(node)
	ents := make([]entry, len(elems))
	for i, e := range elems {
		ents[i] = entry{key: int64(i), val: e}
	}
	return applyFilters(ents, o.filters, st)
}

func (o *sliceFilterOp) defaultContainer() any { return []any{} }

func (o *sliceFilterOp) setChild(node any, key, val any) (any, error) {
	if i, ok := values.AsInt(key); ok {
		if out, sok := values.SeqSet(node, i, val); sok {
			return out, nil
		}
	}
	return nil, structureError(node, o.operator(true))
}

func (o *sliceFilterOp) upsert(node, val any, st *state) (any, error) {
	return nil, mutationErrorf("updates not supported for slice filtering")
}

func (o *sliceFilterOp) pop(node any, st *state) (any, error) { return node, nil }

func (o *sliceFilterOp) removeValue(node, val any, st *state) (any, error) {
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	_, isAny := val.(anySentinel)
	var doomed []any
	for _, e := range ents {
		if isAny || values.Equal(e.val, val) {
			doomed = append(doomed, e.key)
		}
	}
	return deleteKeys(node, doomed), nil
}

func (o *sliceFilterOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	rf := ro.(*sliceFilterOp)
	ents, err := rf.items(fr.node, st)
	if err != nil {
		return nil, false, err
	}
	picked := make([]any, len(ents))
	for i, e := range ents {
		picked[i] = e.val
	}
	var prefix []op
	if paths {
		prefix = append(append([]op{}, fr.prefix...), &sliceOp{})
	}
	stk.push(frame{
		ops:     fr.ops,
		node:    values.SeqOfSameKind(fr.node, picked),
		prefix:  prefix,
		parents: fr.childParents(st),
	})
	return nil, false, nil
}

func (o *sliceFilterOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return nil, mutationErrorf("updates not supported for slice filtering")
}

func (o *sliceFilterOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return genericDoRemove(ro, tail, node, val, nop, st)
}

func (o *sliceFilterOp) match(other op, specials bool) ([]any, bool) {
	t, ok := other.(*sliceFilterOp)
	if !ok || t.operator(true) != o.operator(true) {
		return nil, false
	}
	return []any{o.operator(true)}, true
}

func (o *sliceFilterOp) resolve(rc *resolveCtx) (op, error) {
	fs, changed, err := resolveFilters(o.filters, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	return &sliceFilterOp{filters: fs}, nil
}

// ===== Invert =====

// invertOp flips mutation: a leading "-" makes update remove and
// remove update, while navigation passes through unchanged.
type invertOp struct{}

func (o *invertOp) isPattern() bool          { return false }
func (o *invertOp) operator(top bool) string { return "-" }
func (o *invertOp) concrete(key any) op      { return o }

func (o *invertOp) items(node any, st *state) ([]entry, error) {
	return []entry{{key: nil, val: node}}, nil
}

func (o *invertOp) defaultContainer() any { return map[string]any{} }

func (o *invertOp) setChild(node any, key, val any) (any, error) { return val, nil }

func (o *invertOp) upsert(node, val any, st *state) (any, error) { return node, nil }

func (o *invertOp) pop(node any, st *state) (any, error) { return node, nil }

func (o *invertOp) removeValue(node, val any, st *state) (any, error) { return node, nil }

func (o *invertOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	stk.push(frame{ops: fr.ops, node: fr.node, prefix: fr.prefix, parents: fr.parents})
	return nil, false, nil
}

func (o *invertOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return removes(tail, node, val, uc.nop, st)
}

func (o *invertOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	if _, isAny := val.(anySentinel); isAny {
		return nil, mutationErrorf("inverted remove needs a value")
	}
	return updates(tail, node, val, updCtx{nop: nop}, st)
}

func (o *invertOp) match(other op, specials bool) ([]any, bool) {
	_, ok := other.(*invertOp)
	if !ok {
		return nil, false
	}
	return []any{"-"}, true
}

func (o *invertOp) resolve(rc *resolveCtx) (op, error) { return o, nil }
