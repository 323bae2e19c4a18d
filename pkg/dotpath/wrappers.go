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
	"strings"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// wrapped exposes the decorated op of a wrapper.
type wrapped interface {
	innerOp() op
}

// unwrapOp strips wrapper layers down to the access op.
func unwrapOp(o op) op {
	for {
		w, ok := o.(wrapped)
		if !ok {
			return o
		}
		o = w.innerOp()
	}
}

// guardFn tests a candidate value during guarded recursion.
type guardFn func(val any, st *state) (bool, error)

// recursiveLike is implemented by recursive descent so wrappers can
// thread a guard through its collection and mutation walks.
type recursiveLike interface {
	collectMatches(node any, paths bool, prefix []op, st *state, guard guardFn) ([]pathVal, error)
	updateRecursive(tail []op, node, val any, uc updCtx, st *state, guard guardFn) (any, error)
	removeRecursive(tail []op, node, val any, nop bool, st *state, guard guardFn) (any, error)
}

// ===== Nop wrap =====

// nopOp makes a segment match without ever mutating it: ~a, .~a, [~*].
type nopOp struct {
	inner op
}

func (o *nopOp) innerOp() op    { return o.inner }
func (o *nopOp) isPattern() bool { return o.inner.isPattern() }

func (o *nopOp) operator(top bool) string {
	s := o.inner.operator(top)
	switch {
	case s == "[]":
		return "[~]"
	case strings.HasPrefix(s, "["):
		return "[~" + s[1:]
	case top:
		return "~" + s
	case strings.HasPrefix(s, "."):
		return ".~" + s[1:]
	case strings.HasPrefix(s, "@"):
		return "@~" + s[1:]
	}
	return "~" + s
}

func (o *nopOp) concrete(key any) op { return o.inner.concrete(key) }

func (o *nopOp) items(node any, st *state) ([]entry, error) { return o.inner.items(node, st) }

func (o *nopOp) defaultContainer() any { return o.inner.defaultContainer() }

func (o *nopOp) setChild(node any, key, val any) (any, error) {
	return o.inner.setChild(node, key, val)
}

func (o *nopOp) upsert(node, val any, st *state) (any, error) {
	return o.inner.upsert(node, val, st)
}

func (o *nopOp) pop(node any, st *state) (any, error) { return o.inner.pop(node, st) }

func (o *nopOp) removeValue(node, val any, st *state) (any, error) {
	return o.inner.removeValue(node, val, st)
}

func (o *nopOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return o.inner.pushChildren(stk, fr, st, paths)
}

func (o *nopOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	uc.nop = true
	uc.nopFromUnwrap = true
	return o.inner.doUpdate(tail, node, val, uc, st)
}

func (o *nopOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return o.inner.doRemove(tail, node, val, true, st)
}

func (o *nopOp) match(other op, specials bool) ([]any, bool) {
	return o.inner.match(unwrapOp(other), specials)
}

func (o *nopOp) resolve(rc *resolveCtx) (op, error) {
	in, err := o.inner.resolve(rc)
	if err != nil {
		return nil, err
	}
	if in == o.inner {
		return o, nil
	}
	return &nopOp{inner: in}, nil
}

// ===== Value guards =====

// guardOp narrows a segment by its value: first=7, *>10, tags!=None.
// Transforms apply to the candidate for the test only; matched values
// flow through untouched.
type guardOp struct {
	inner      op
	pred       predKind
	guard      matcher
	transforms []transformCall
}

func (o *guardOp) innerOp() op    { return o.inner }
func (o *guardOp) isPattern() bool { return o.inner.isPattern() }

func (o *guardOp) operator(top bool) string {
	var b strings.Builder
	b.WriteString(o.inner.operator(top))
	for _, t := range o.transforms {
		b.WriteByte('|')
		b.WriteString(t.notation())
	}
	b.WriteString(o.pred.notation())
	b.WriteString(o.guard.notation(false))
	return b.String()
}

func (o *guardOp) concrete(key any) op { return o.inner.concrete(key) }

func (o *guardOp) guardMatches(val any, st *state) (bool, error) {
	reg := defaultRegistry
	if st != nil && st.registry != nil {
		reg = st.registry
	}
	val, err := applyTransformCalls(reg, val, o.transforms)
	if err != nil {
		return false, err
	}
	return predMatch(o.pred, val, o.guard), nil
}

func (o *guardOp) items(node any, st *state) ([]entry, error) {
	ents, err := o.inner.items(node, st)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, e := range ents {
		ok, gerr := o.guardMatches(e.val, st)
		if gerr != nil {
			return nil, gerr
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (o *guardOp) defaultContainer() any { return o.inner.defaultContainer() }

func (o *guardOp) setChild(node any, key, val any) (any, error) {
	return o.inner.setChild(node, key, val)
}

func (o *guardOp) upsert(node, val any, st *state) (any, error) {
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		node, err = o.inner.setChild(node, e.key, val)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *guardOp) pop(node any, st *state) (any, error) { return o.inner.pop(node, st) }

func (o *guardOp) removeValue(node, val any, st *state) (any, error) {
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
	return removeByKeys(o.inner, node, doomed)
}

func (o *guardOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	g := ro.(*guardOp)
	if rec, ok := g.inner.(recursiveLike); ok {
		matches, merr := rec.collectMatches(fr.node, paths, fr.prefix, st, g.guardMatches)
		if merr != nil {
			return nil, false, merr
		}
		parents := fr.childParents(st)
		for i := len(matches) - 1; i >= 0; i-- {
			stk.push(frame{ops: fr.ops, node: matches[i].node, prefix: matches[i].prefix, parents: parents})
		}
		return nil, false, nil
	}
	return simplePushChildren(g, stk, fr, st, paths)
}

func (o *guardOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	g := ro.(*guardOp)
	if rec, ok := g.inner.(recursiveLike); ok {
		return rec.updateRecursive(tail, node, val, uc, st, g.guardMatches)
	}
	return genericDoUpdate(g, tail, node, val, uc, st)
}

func (o *guardOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	g := ro.(*guardOp)
	if rec, ok := g.inner.(recursiveLike); ok {
		return rec.removeRecursive(tail, node, val, nop, st, g.guardMatches)
	}
	return genericDoRemove(g, tail, node, val, nop, st)
}

func (o *guardOp) match(other op, specials bool) ([]any, bool) {
	return o.inner.match(unwrapOp(other), specials)
}

func (o *guardOp) resolve(rc *resolveCtx) (op, error) {
	in, err := o.inner.resolve(rc)
	if err != nil {
		return nil, err
	}
	g, err := o.guard.resolve(rc)
	if err != nil {
		return nil, err
	}
	ts, tchanged, err := resolveTransformCalls(o.transforms, rc)
	if err != nil {
		return nil, err
	}
	if in == o.inner && g == o.guard && !tchanged {
		return o, nil
	}
	return &guardOp{inner: in, pred: o.pred, guard: g, transforms: ts}, nil
}

// removeByKeys deletes keyed entries through the right capability for
// the wrapped access op.
func removeByKeys(inner op, node any, keys []any) (any, error) {
	if _, isAttr := unwrapOp(inner).(*attrOp); isAttr {
		rec, ok := values.AsRecord(node)
		if !ok {
			return node, nil
		}
		for _, k := range keys {
			out, err := rec.DeleteField(stringify(k))
			if err != nil {
				return nil, err
			}
			rec = out
		}
		return values.RecordValue(rec), nil
	}
	return deleteKeys(node, keys), nil
}

// ===== Type restrictions =====

var typeKindNames = map[string]bool{
	"str": true, "bytes": true, "int": true, "float": true,
	"dict": true, "list": true, "tuple": true,
	"set": true, "frozenset": true, "bool": true, "none": true,
	"record": true,
}

func typeNameOf(v any) string {
	if s, ok := v.(*values.Set); ok {
		if s.Frozen() {
			return "frozenset"
		}
		return "set"
	}
	return values.KindOf(v).String()
}

// typeOp constrains the kind of node a segment enumerates: *:dict
// only enumerates when the node is a mapping, [*]:!(str, bytes) never
// decomposes strings. The value found there still flows through; the
// restriction governs traversal, not results.
type typeOp struct {
	inner  op
	types  []string
	negate bool
}

func (o *typeOp) innerOp() op    { return o.inner }
func (o *typeOp) isPattern() bool { return o.inner.isPattern() }

func (o *typeOp) suffix() string {
	inner := o.types[0]
	if len(o.types) > 1 {
		inner = "(" + strings.Join(o.types, ", ") + ")"
	}
	if o.negate {
		return ":!" + inner
	}
	return ":" + inner
}

func (o *typeOp) operator(top bool) string {
	return o.inner.operator(top) + o.suffix()
}

func (o *typeOp) concrete(key any) op { return o.inner.concrete(key) }

func (o *typeOp) allows(node any) bool {
	name := typeNameOf(node)
	found := false
	for _, t := range o.types {
		if t == name {
			found = true
			break
		}
	}
	if o.negate {
		return !found
	}
	return found
}

func (o *typeOp) items(node any, st *state) ([]entry, error) {
	if !o.allows(node) {
		return nil, nil
	}
	return o.inner.items(node, st)
}

func (o *typeOp) defaultContainer() any { return o.inner.defaultContainer() }

func (o *typeOp) setChild(node any, key, val any) (any, error) {
	return o.inner.setChild(node, key, val)
}

func (o *typeOp) upsert(node, val any, st *state) (any, error) {
	if !o.allows(node) {
		return node, nil
	}
	return o.inner.upsert(node, val, st)
}

func (o *typeOp) pop(node any, st *state) (any, error) {
	if !o.allows(node) {
		return node, nil
	}
	return o.inner.pop(node, st)
}

func (o *typeOp) removeValue(node, val any, st *state) (any, error) {
	if !o.allows(node) {
		return node, nil
	}
	return o.inner.removeValue(node, val, st)
}

func (o *typeOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	if !o.allows(fr.node) {
		return nil, false, nil
	}
	return o.inner.pushChildren(stk, fr, st, paths)
}

func (o *typeOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	if !o.allows(node) {
		return node, nil
	}
	return o.inner.doUpdate(tail, node, val, uc, st)
}

func (o *typeOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	if !o.allows(node) {
		return node, nil
	}
	return o.inner.doRemove(tail, node, val, nop, st)
}

func (o *typeOp) match(other op, specials bool) ([]any, bool) {
	return o.inner.match(unwrapOp(other), specials)
}

func (o *typeOp) resolve(rc *resolveCtx) (op, error) {
	in, err := o.inner.resolve(rc)
	if err != nil {
		return nil, err
	}
	if in == o.inner {
		return o, nil
	}
	return &typeOp{inner: in, types: o.types, negate: o.negate}, nil
}
