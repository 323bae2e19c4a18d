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

// cutKind marks what follows a branch: nothing, a hard cut (#) that
// aborts the surrounding enumeration once the branch matched, or a
// soft cut (##) that suppresses later branches on overlapping paths.
type cutKind int

const (
	cutNone cutKind = iota
	cutHard
	cutSoft
)

func (c cutKind) marker() string {
	switch c {
	case cutHard:
		return "#"
	case cutSoft:
		return "##"
	}
	return ""
}

// recBranch is one recursion accessor with its trailing cut marker.
type recBranch struct {
	acc op
	cut cutKind
}

// accKV is one enumerated child along with the accessor that produced
// it, so writes and deletes go back through the right capability.
type accKV struct {
	acc op
	key any
	val any
}

// ===== Recursive descent =====

// recursiveOp walks the whole subtree and matches its pattern at every
// level:
//
//	*key          follow chains of "key"
//	**            any dict key, any depth
//	*/re/         regex at any depth
//	*(*, [*])     descend through dict keys and list slots
//	*(*, [*], @*) descend through keys, slots, and attrs
//
// An optional depth slice (**:1:3) limits which depths yield, counted
// from the first level of children; negative depths count up from the
// leaves. Filters (&cond) further narrow yielded nodes. Descent itself
// ignores both: they only gate what is reported.
type recursiveOp struct {
	inner    matcher
	branches []recBranch // nil means dict keys only, via inner
	dStart   *int64
	dStop    *int64
	dStep    *int64
	filters  []filter
	first    bool
}

func (o *recursiveOp) isPattern() bool { return true }

func (o *recursiveOp) renderBranches() string {
	parts := make([]string, len(o.branches))
	for i, br := range o.branches {
		parts[i] = br.acc.operator(true) + br.cut.marker()
	}
	return strings.Join(parts, ", ")
}

func (o *recursiveOp) operator(top bool) string {
	var s string
	switch {
	case o.branches != nil:
		s = "*(" + o.renderBranches() + ")"
	case isPlainWildcard(o.inner):
		s = "**"
	default:
		s = "*" + o.inner.notation(true)
	}
	if o.dStart != nil || o.dStop != nil || o.dStep != nil {
		s += ":"
		if o.dStart != nil {
			s += strconv.FormatInt(*o.dStart, 10)
		}
		if o.dStop != nil || o.dStep != nil {
			s += ":"
			if o.dStop != nil {
				s += strconv.FormatInt(*o.dStop, 10)
			}
		}
		if o.dStep != nil {
			s += ":" + strconv.FormatInt(*o.dStep, 10)
		}
	}
	for _, f := range o.filters {
		s += "&" + f.notation()
	}
	if o.first {
		s += "?"
	}
	if !top {
		s = "." + s
	}
	return s
}

func (o *recursiveOp) concrete(key any) op { return &keyOp{m: newConstMatcher(key)} }

func isPlainWildcard(m matcher) bool {
	w, ok := m.(*wildcardMatcher)
	return ok && !w.first
}

// effectiveBranches defaults to dict-key descent through the inner
// pattern when no explicit accessor branches were given.
func (o *recursiveOp) effectiveBranches() []recBranch {
	if o.branches != nil {
		return o.branches
	}
	return []recBranch{{acc: &keyOp{m: o.inner}}}
}

// restrictBranches distributes a type restriction onto every accessor
// branch, materializing the default dict-key branch first. The
// restriction gates descent at each level, so a disallowed value is
// still yielded by its parent but never decomposed.
func (o *recursiveOp) restrictBranches(types []string, negate bool) {
	o.branches = o.effectiveBranches()
	for i := range o.branches {
		o.branches[i].acc = &typeOp{inner: o.branches[i].acc, types: types, negate: negate}
	}
}

// iterNode enumerates matching children of node across all accessor
// branches. A hard cut stops branch evaluation once its branch has
// matched something.
func (o *recursiveOp) iterNode(node any, st *state) ([]accKV, error) {
	var out []accKV
	for _, br := range o.effectiveBranches() {
		ents, err := br.acc.items(node, st)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			out = append(out, accKV{acc: br.acc, key: e.key, val: e.val})
		}
		if len(ents) > 0 && br.cut == cutHard {
			break
		}
	}
	return out, nil
}

func (o *recursiveOp) items(node any, st *state) ([]entry, error) {
	kvs, err := o.iterNode(node, st)
	if err != nil {
		return nil, err
	}
	ents := make([]entry, len(kvs))
	for i, kv := range kvs {
		ents[i] = entry{key: kv.key, val: kv.val}
	}
	return ents, nil
}

func (o *recursiveOp) defaultContainer() any { return map[string]any{} }

func (o *recursiveOp) setChild(node any, key, val any) (any, error) {
	return (&keyOp{}).setChild(node, key, val)
}

func (o *recursiveOp) upsert(node, val any, st *state) (any, error) { return node, nil }

func (o *recursiveOp) pop(node any, st *state) (any, error) { return node, nil }

func (o *recursiveOp) removeValue(node, val any, st *state) (any, error) { return node, nil }

func (o *recursiveOp) hasNegativeDepth() bool {
	return (o.dStart != nil && *o.dStart < 0) || (o.dStop != nil && *o.dStop < 0)
}

// inDepthRange reports whether a node at the given depth yields.
// depth counts from 0 at the first level of children; maxDTL is the
// node's distance to its deepest reachable leaf, used to resolve
// negative depths (-1 is a leaf, -2 its parent, and so on).
func (o *recursiveOp) inDepthRange(depth, maxDTL int64) bool {
	if o.dStart == nil && o.dStop == nil && o.dStep == nil {
		return true
	}
	var start, stop *int64
	if o.dStart != nil {
		v := *o.dStart
		start = &v
	}
	if o.dStop != nil {
		v := *o.dStop
		stop = &v
	}
	step := o.dStep

	if start != nil && *start < 0 {
		if maxDTL != -*start-1 {
			return false
		}
		if stop == nil && step == nil {
			return true
		}
		*start = depth
	}
	origStop := o.dStop
	if stop != nil && *stop < 0 {
		if maxDTL < -*stop-1 {
			return false
		}
		stop = nil
	}

	// only a start given means exact depth
	if stop == nil && step == nil && origStop == nil {
		return start != nil && depth == *start
	}

	var effStart int64
	if start != nil {
		effStart = *start
	}
	if step != nil {
		if *step == 0 {
			return false
		}
		if stop != nil {
			return depth >= effStart && depth <= *stop && (depth-effStart)%*step == 0
		}
		return depth >= effStart && (depth-effStart)%*step == 0
	}
	if stop != nil {
		return effStart <= depth && depth <= *stop
	}
	return depth >= effStart
}

// maxDepthToLeaf measures structural distance to the deepest leaf the
// accessors can reach, ignoring filters and the depth range. seen
// guards against self-referential values.
func (o *recursiveOp) maxDepthToLeaf(node any, seen map[uintptr]bool, st *state) (int64, error) {
	if id, ok := values.Identity(node); ok {
		if seen[id] {
			return 0, nil
		}
		seen = cloneSeen(seen)
		seen[id] = true
	}
	kvs, err := o.iterNode(node, st)
	if err != nil || len(kvs) == 0 {
		return 0, err
	}
	var deepest int64
	for _, kv := range kvs {
		d, derr := o.maxDepthToLeaf(kv.val, seen, st)
		if derr != nil {
			return 0, derr
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest + 1, nil
}

func cloneSeen(seen map[uintptr]bool) map[uintptr]bool {
	out := make(map[uintptr]bool, len(seen)+1)
	for k, v := range seen {
		out[k] = v
	}
	return out
}

// passesFilters applies the &filters to a candidate value.
func (o *recursiveOp) passesFilters(v any, st *state) (bool, error) {
	for _, f := range o.filters {
		ok, err := f.matches(v, st)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// nodeDTL computes the max depth to leaf only when a negative depth
// needs it.
func (o *recursiveOp) nodeDTL(v any, st *state) (int64, error) {
	if !o.hasNegativeDepth() {
		return 0, nil
	}
	return o.maxDepthToLeaf(v, map[uintptr]bool{}, st)
}

// collectMatches yields every matching node, parents before children.
// Nodes failing a filter, the depth range, or the guard still have
// their subtrees explored.
func (o *recursiveOp) collectMatches(node any, paths bool, prefix []op, st *state, guard guardFn) ([]pathVal, error) {
	var out []pathVal
	err := o.walkMatches(node, paths, prefix, 0, map[uintptr]bool{}, st, guard, func(pv pathVal) bool {
		out = append(out, pv)
		return true
	})
	return out, err
}

func (o *recursiveOp) walkMatches(node any, paths bool, prefix []op, depth int64, seen map[uintptr]bool, st *state, guard guardFn, emit func(pathVal) bool) error {
	if id, ok := values.Identity(node); ok {
		if seen[id] {
			return nil
		}
		seen = cloneSeen(seen)
		seen[id] = true
	}
	kvs, err := o.iterNode(node, st)
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		cp := prefix
		if paths {
			cp = append(append([]op{}, prefix...), kv.acc.concrete(kv.key))
		}
		yield, yerr := o.shouldYield(kv.val, depth, st, guard)
		if yerr != nil {
			return yerr
		}
		if yield {
			if !emit(pathVal{prefix: cp, node: kv.val}) {
				return nil
			}
		}
		if err := o.walkMatches(kv.val, paths, cp, depth+1, seen, st, guard, emit); err != nil {
			return err
		}
	}
	return nil
}

func (o *recursiveOp) shouldYield(v any, depth int64, st *state, guard guardFn) (bool, error) {
	ok, err := o.passesFilters(v, st)
	if err != nil || !ok {
		return false, err
	}
	dtl, err := o.nodeDTL(v, st)
	if err != nil {
		return false, err
	}
	if !o.inDepthRange(depth, dtl) {
		return false, nil
	}
	if guard != nil {
		return guard(v, st)
	}
	return true, nil
}

func (o *recursiveOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ro, err := o.resolve(runtimeCtx(fr.node, fr.parents, st))
	if err != nil {
		return nil, false, err
	}
	r := ro.(*recursiveOp)
	matches, err := r.collectMatches(fr.node, paths, fr.prefix, st, nil)
	if err != nil {
		return nil, false, err
	}
	if r.first && len(matches) > 1 {
		matches = matches[:1]
	}
	parents := fr.childParents(st)
	for i := len(matches) - 1; i >= 0; i-- {
		stk.push(frame{ops: fr.ops, node: matches[i].node, prefix: matches[i].prefix, parents: parents})
	}
	return nil, false, nil
}

// assign writes a child back through its accessor.
func assignBack(acc op, node any, k, v any) (any, error) {
	return acc.setChild(node, k, v)
}

// updateRecursive walks bottom-up: subtrees update first and are
// assigned back, then the node itself is tested and updated.
func (o *recursiveOp) updateRecursive(tail []op, node, val any, uc updCtx, st *state, guard guardFn) (any, error) {
	return o.updateWalk(tail, node, val, uc, 0, map[uintptr]bool{}, st, guard)
}

func (o *recursiveOp) updateWalk(tail []op, node, val any, uc updCtx, depth int64, seen map[uintptr]bool, st *state, guard guardFn) (any, error) {
	if id, ok := values.Identity(node); ok {
		if seen[id] {
			return node, nil
		}
		seen = cloneSeen(seen)
		seen[id] = true
	}
	kvs, err := o.iterNode(node, st)
	if err != nil {
		return nil, err
	}
	for _, kv := range kvs {
		v, uerr := o.updateWalk(tail, kv.val, val, uc, depth+1, seen, st, guard)
		if uerr != nil {
			return nil, uerr
		}
		node, err = assignBack(kv.acc, node, kv.key, v)
		if err != nil {
			return nil, err
		}
		yield, yerr := o.shouldYield(v, depth, st, guard)
		if yerr != nil {
			return nil, yerr
		}
		if !yield {
			continue
		}
		if len(tail) > 0 {
			sub := uc.descend(o.concrete(kv.key))
			updated, terr := updates(tail, v, val, sub, st)
			if terr != nil {
				return nil, terr
			}
			node, err = assignBack(kv.acc, node, kv.key, updated)
			if err != nil {
				return nil, err
			}
		} else if !uc.nop {
			node, err = assignBack(kv.acc, node, kv.key, val)
			if err != nil {
				return nil, err
			}
		}
	}
	return node, nil
}

func (o *recursiveOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return ro.(*recursiveOp).updateRecursive(tail, node, val, uc, st, nil)
}

// removeRecursive mirrors updateRecursive; matched leaves collect and
// delete in reverse so sequence indices stay valid.
func (o *recursiveOp) removeRecursive(tail []op, node, val any, nop bool, st *state, guard guardFn) (any, error) {
	return o.removeWalk(tail, node, val, nop, 0, map[uintptr]bool{}, st, guard)
}

func (o *recursiveOp) removeWalk(tail []op, node, val any, nop bool, depth int64, seen map[uintptr]bool, st *state, guard guardFn) (any, error) {
	if id, ok := values.Identity(node); ok {
		if seen[id] {
			return node, nil
		}
		seen = cloneSeen(seen)
		seen[id] = true
	}
	kvs, err := o.iterNode(node, st)
	if err != nil {
		return nil, err
	}
	var doomed []accKV
	for _, kv := range kvs {
		v, rerr := o.removeWalk(tail, kv.val, val, nop, depth+1, seen, st, guard)
		if rerr != nil {
			return nil, rerr
		}
		node, err = assignBack(kv.acc, node, kv.key, v)
		if err != nil {
			return nil, err
		}
		yield, yerr := o.shouldYield(v, depth, st, guard)
		if yerr != nil {
			return nil, yerr
		}
		if !yield {
			continue
		}
		if len(tail) > 0 {
			removed, terr := removes(tail, v, val, false, st)
			if terr != nil {
				return nil, terr
			}
			node, err = assignBack(kv.acc, node, kv.key, removed)
			if err != nil {
				return nil, err
			}
			continue
		}
		_, isAny := val.(anySentinel)
		if !nop && (isAny || values.Equal(v, val)) {
			doomed = append(doomed, kv)
		}
	}
	for i := len(doomed) - 1; i >= 0; i-- {
		kv := doomed[i]
		if _, isAttr := unwrapOp(kv.acc).(*attrOp); isAttr {
			node, err = removeByKeys(kv.acc, node, []any{kv.key})
		} else {
			node = deleteKeys(node, []any{kv.key})
		}
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *recursiveOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	ro, err := o.resolve(runtimeCtx(node, nil, st))
	if err != nil {
		return nil, err
	}
	return ro.(*recursiveOp).removeRecursive(tail, node, val, nop, st, nil)
}

func (o *recursiveOp) match(other op, specials bool) ([]any, bool) {
	if o.inner == nil {
		return nil, false
	}
	var om matcher
	switch t := unwrapOp(other).(type) {
	case *keyOp:
		om = t.m
	case *slotOp:
		om = t.m
	case *attrOp:
		om = t.m
	default:
		return nil, false
	}
	return matchMatchers(o.inner, om, specials)
}

func (o *recursiveOp) resolve(rc *resolveCtx) (op, error) {
	changed := false
	inner := o.inner
	if inner != nil {
		m, err := inner.resolve(rc)
		if err != nil {
			return nil, err
		}
		if m != inner {
			changed = true
			inner = m
		}
	}
	var branches []recBranch
	if o.branches != nil {
		branches = make([]recBranch, len(o.branches))
		for i, br := range o.branches {
			acc, err := br.acc.resolve(rc)
			if err != nil {
				return nil, err
			}
			if acc != br.acc {
				changed = true
			}
			branches[i] = recBranch{acc: acc, cut: br.cut}
		}
	}
	fs, fchanged, err := resolveFilters(o.filters, rc)
	if err != nil {
		return nil, err
	}
	if !changed && !fchanged {
		return o, nil
	}
	out := *o
	out.inner = inner
	if o.branches != nil {
		out.branches = branches
	}
	out.filters = fs
	return &out, nil
}
