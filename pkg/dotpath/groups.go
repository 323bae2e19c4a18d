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

// branch is one alternative inside a group, with the cut marker that
// follows it in notation.
type branch struct {
	ops []op
	cut cutKind
}

func renderBranch(b branch, top bool) string {
	var sb strings.Builder
	for j, o := range b.ops {
		sb.WriteString(o.operator(top && j == 0))
	}
	return sb.String()
}

func renderBranches(branches []branch, sep string, top, withCuts bool) string {
	parts := make([]string, len(branches))
	for i, b := range branches {
		parts[i] = renderBranch(b, top)
		if withCuts {
			parts[i] += b.cut.marker()
		}
	}
	return strings.Join(parts, sep)
}

func resolveBranches(branches []branch, rc *resolveCtx) ([]branch, bool, error) {
	changed := false
	out := make([]branch, len(branches))
	for i, b := range branches {
		ops, c, err := resolveOps(b.ops, rc)
		if err != nil {
			return nil, false, err
		}
		if c {
			changed = true
		}
		out[i] = branch{ops: ops, cut: b.cut}
	}
	return out, changed, nil
}

// groupDefault derives the scaffolding container from the first
// branch's first op, so auto-creation through a slot group builds a
// list.
func groupDefault(branches []branch) any {
	for _, b := range branches {
		if len(b.ops) == 0 {
			continue
		}
		first := unwrapOp(b.ops[0])
		switch first.(type) {
		case *slotOp, *slotSpecialOp:
			return []any{}
		}
		return b.ops[0].defaultContainer()
	}
	return map[string]any{}
}

// isConcretePath reports whether a branch chain addresses exactly one
// location, so scaffolding it into existence is meaningful.
func isConcretePath(ops []op) bool {
	for _, o := range ops {
		if unwrapOp(o).isPattern() {
			return false
		}
	}
	return true
}

// hasAnyMatch reports whether a chain yields at least one value.
func hasAnyMatch(ops []op, node any, st *state) (bool, error) {
	found := false
	err := walkOps(ops, node, st, false, func(pathVal) bool {
		found = true
		return false
	})
	return found, err
}

// disjunctionFallback handles an update where no branch matched: the
// last all-concrete branch is scaffolded into existence.
func disjunctionFallback(branches []branch, tail []op, node, val any, uc updCtx, st *state) (any, error) {
	for i := len(branches) - 1; i >= 0; i-- {
		branchOps := append(append([]op{}, branches[i].ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		if isConcretePath(branchOps) {
			return updates(branchOps, node, val, uc, st)
		}
	}
	return node, nil
}

// collectBranchPaths walks a branch chain with paths on, dropping
// results already claimed by soft-cut paths.
func collectBranchPaths(branchOps []op, node any, softcut [][]op, st *state) ([][]op, error) {
	var out [][]op
	err := walkOps(branchOps, node, st, true, func(pv pathVal) bool {
		if len(softcut) > 0 && len(pv.prefix) > 0 && pathOverlaps(softcut, pv.prefix) {
			return true
		}
		out = append(out, pv.prefix)
		return true
	})
	return out, err
}

func branchHasNop(ops []op) bool {
	for _, o := range ops {
		if _, ok := o.(*nopOp); ok {
			return true
		}
	}
	return false
}

// ===== Shared group behavior =====

// groupCommon carries the methods every group shares.
type groupCommon struct {
	branches []branch
}

func (g *groupCommon) isPattern() bool { return true }

func (g *groupCommon) concrete(key any) op { return &keyOp{m: newConstMatcher(key)} }

func (g *groupCommon) items(node any, st *state) ([]entry, error) { return nil, nil }

func (g *groupCommon) defaultContainer() any { return groupDefault(g.branches) }

func (g *groupCommon) setChild(node any, key, val any) (any, error) {
	return (&keyOp{}).setChild(node, key, val)
}

func (g *groupCommon) upsert(node, val any, st *state) (any, error) { return node, nil }

func (g *groupCommon) pop(node any, st *state) (any, error) { return node, nil }

func (g *groupCommon) removeValue(node, val any, st *state) (any, error) { return node, nil }

func (g *groupCommon) matchFirstOps(other op, specials bool) ([]any, bool) {
	for _, b := range g.branches {
		if len(b.ops) == 0 {
			continue
		}
		if vals, ok := b.ops[0].match(other, specials); ok {
			return vals, true
		}
	}
	return nil, false
}

// ===== Disjunction =====

// orGroupOp branches from a common point and yields every branch's
// matches: a(.b,[0]). A hard cut (#) stops at the first matching
// branch; a soft cut (##) lets later branches run but suppresses paths
// the cut branch already claimed.
type orGroupOp struct {
	groupCommon
}

func newOrGroup(branches []branch) *orGroupOp {
	return &orGroupOp{groupCommon{branches: branches}}
}

func (o *orGroupOp) operator(top bool) string {
	return "(" + renderBranches(o.branches, ",", top, true) + ")"
}

func (o *orGroupOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	var softcut [][]op
	var results []pathVal
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), fr.ops...)
		if len(branchOps) == 0 {
			continue
		}
		isSoft := b.cut == cutSoft
		usePaths := paths || len(softcut) > 0 || isSoft
		stk.pushLevel()
		stk.push(frame{ops: branchOps, node: fr.node, prefix: fr.prefix, parents: fr.parents})
		found := false
		_, _, err := process(stk, st, usePaths, func(pv pathVal) bool {
			if len(softcut) > 0 && len(pv.prefix) > 0 && pathOverlaps(softcut, pv.prefix) {
				return true
			}
			found = true
			if isSoft && len(pv.prefix) > 0 {
				softcut = append(softcut, pv.prefix)
			}
			if !paths {
				pv.prefix = nil
			}
			results = append(results, pv)
			return true
		})
		stk.popLevel()
		if err != nil {
			return nil, false, err
		}
		if !found {
			continue
		}
		if b.cut == cutHard {
			return results, true, nil
		}
	}
	return results, false, nil
}

func (o *orGroupOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	matchedAny := false
	var softcut [][]op
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		paths, err := collectBranchPaths(branchOps, node, softcut, st)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			continue
		}
		matchedAny = true
		if b.cut == cutSoft {
			for _, p := range paths {
				if len(p) > 0 {
					softcut = append(softcut, p)
				}
			}
		}
		if len(softcut) > 0 {
			sub := uc
			sub.nop = uc.nop || branchHasNop(b.ops)
			for _, p := range paths {
				node, err = updates(p, node, val, sub, st)
				if err != nil {
					return nil, err
				}
			}
		} else {
			node, err = updates(branchOps, node, val, uc, st)
			if err != nil {
				return nil, err
			}
		}
		if b.cut == cutHard {
			return node, nil
		}
	}
	if !matchedAny {
		return disjunctionFallback(o.branches, tail, node, val, uc, st)
	}
	return node, nil
}

func (o *orGroupOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	var softcut [][]op
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		paths, err := collectBranchPaths(branchOps, node, softcut, st)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			continue
		}
		if b.cut == cutSoft {
			for _, p := range paths {
				if len(p) > 0 {
					softcut = append(softcut, p)
				}
			}
		}
		if len(softcut) > 0 {
			for _, p := range paths {
				node, err = removes(p, node, val, false, st)
				if err != nil {
					return nil, err
				}
			}
		} else {
			node, err = removes(branchOps, node, val, false, st)
			if err != nil {
				return nil, err
			}
		}
		if b.cut == cutHard {
			return node, nil
		}
	}
	return node, nil
}

func (o *orGroupOp) match(other op, specials bool) ([]any, bool) {
	return o.matchFirstOps(other, specials)
}

func (o *orGroupOp) resolve(rc *resolveCtx) (op, error) {
	bs, changed, err := resolveBranches(o.branches, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	return newOrGroup(bs), nil
}

// ===== First match =====

// firstGroupOp tries branches in order and yields only the first
// result found: (a, b)?.
type firstGroupOp struct {
	groupCommon
}

func newFirstGroup(branches []branch) *firstGroupOp {
	return &firstGroupOp{groupCommon{branches: branches}}
}

func (o *firstGroupOp) operator(top bool) string {
	return "(" + renderBranches(o.branches, ",", top, false) + ")?"
}

func (o *firstGroupOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), fr.ops...)
		if len(branchOps) == 0 {
			continue
		}
		stk.pushLevel()
		stk.push(frame{ops: branchOps, node: fr.node, prefix: fr.prefix, parents: fr.parents})
		var first *pathVal
		_, _, err := process(stk, st, paths, func(pv pathVal) bool {
			first = &pv
			return false
		})
		stk.popLevel()
		if err != nil {
			return nil, false, err
		}
		if first != nil {
			return []pathVal{*first}, false, nil
		}
	}
	return nil, false, nil
}

func (o *firstGroupOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		found, err := hasAnyMatch(branchOps, node, st)
		if err != nil {
			return nil, err
		}
		if found {
			return updates(branchOps, node, val, uc, st)
		}
	}
	return disjunctionFallback(o.branches, tail, node, val, uc, st)
}

func (o *firstGroupOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		found, err := hasAnyMatch(branchOps, node, st)
		if err != nil {
			return nil, err
		}
		if found {
			return removes(branchOps, node, val, false, st)
		}
	}
	return node, nil
}

func (o *firstGroupOp) match(other op, specials bool) ([]any, bool) {
	return o.matchFirstOps(other, specials)
}

func (o *firstGroupOp) resolve(rc *resolveCtx) (op, error) {
	bs, changed, err := resolveBranches(o.branches, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	return newFirstGroup(bs), nil
}

// ===== Conjunction =====

// andGroupOp yields all branches' values only when every branch
// matches: x(.a&.b).
type andGroupOp struct {
	groupCommon
}

func newAndGroup(branches []branch) *andGroupOp {
	return &andGroupOp{groupCommon{branches: branches}}
}

func (o *andGroupOp) operator(top bool) string {
	return "(" + renderBranches(o.branches, "&", top, false) + ")"
}

func (o *andGroupOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	var all []pathVal
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), fr.ops...)
		if len(branchOps) == 0 {
			continue
		}
		stk.pushLevel()
		stk.push(frame{ops: branchOps, node: fr.node, prefix: fr.prefix, parents: fr.parents})
		var got []pathVal
		_, _, err := process(stk, st, paths, func(pv pathVal) bool {
			got = append(got, pv)
			return true
		})
		stk.popLevel()
		if err != nil {
			return nil, false, err
		}
		if len(got) == 0 {
			return nil, false, nil
		}
		all = append(all, got...)
	}
	return all, false, nil
}

// canUpdateBranch reports whether a conjunctive branch is updatable:
// it already matches, or it is a concrete unfiltered path that can be
// created.
func canUpdateBranch(branchOps []op, node any, st *state) (bool, error) {
	found, err := hasAnyMatch(branchOps, node, st)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	if !isConcretePath(branchOps) {
		return false, nil
	}
	if k, ok := unwrapOp(branchOps[0]).(*keyOp); ok && len(k.filters) > 0 {
		return false, nil
	}
	return true, nil
}

func (o *andGroupOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		ok, err := canUpdateBranch(branchOps, node, st)
		if err != nil {
			return nil, err
		}
		if !ok {
			return node, nil
		}
	}
	var err error
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		node, err = updates(branchOps, node, val, uc, st)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *andGroupOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		found, err := hasAnyMatch(branchOps, node, st)
		if err != nil {
			return nil, err
		}
		if !found {
			return node, nil
		}
	}
	var err error
	for _, b := range o.branches {
		branchOps := append(append([]op{}, b.ops...), tail...)
		if len(branchOps) == 0 {
			continue
		}
		node, err = removes(branchOps, node, val, false, st)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *andGroupOp) match(other op, specials bool) ([]any, bool) {
	for _, b := range o.branches {
		if len(b.ops) == 0 {
			continue
		}
		if _, ok := b.ops[0].match(other, specials); !ok {
			return nil, false
		}
	}
	return []any{o.operator(true)}, true
}

func (o *andGroupOp) resolve(rc *resolveCtx) (op, error) {
	bs, changed, err := resolveBranches(o.branches, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	return newAndGroup(bs), nil
}

// ===== Slot grouping =====

// slotGroupOp positions a group at slot level so it renders in bracket
// form: [(*#, +)]. Behavior delegates to the wrapped group.
type slotGroupOp struct {
	group op
}

func (o *slotGroupOp) innerOp() op { return o.group }

func (o *slotGroupOp) isPattern() bool { return o.group.isPattern() }

func (o *slotGroupOp) operator(top bool) string {
	s := o.group.operator(true)
	// branch ops render with their own brackets; fold them into the
	// enclosing pair
	s = strings.ReplaceAll(s, "[", "")
	s = strings.ReplaceAll(s, "]", "")
	return "[" + s + "]"
}

func (o *slotGroupOp) concrete(key any) op { return &slotOp{m: newConstMatcher(key)} }

func (o *slotGroupOp) items(node any, st *state) ([]entry, error) {
	return o.group.items(node, st)
}

func (o *slotGroupOp) defaultContainer() any { return []any{} }

func (o *slotGroupOp) setChild(node any, key, val any) (any, error) {
	return (&slotOp{}).setChild(node, key, val)
}

func (o *slotGroupOp) upsert(node, val any, st *state) (any, error) {
	return o.group.upsert(node, val, st)
}

func (o *slotGroupOp) pop(node any, st *state) (any, error) { return o.group.pop(node, st) }

func (o *slotGroupOp) removeValue(node, val any, st *state) (any, error) {
	return o.group.removeValue(node, val, st)
}

func (o *slotGroupOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	return o.group.pushChildren(stk, fr, st, paths)
}

func (o *slotGroupOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	return o.group.doUpdate(tail, node, val, uc, st)
}

func (o *slotGroupOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	return o.group.doRemove(tail, node, val, nop, st)
}

func (o *slotGroupOp) match(other op, specials bool) ([]any, bool) {
	return o.group.match(unwrapOp(other), specials)
}

func (o *slotGroupOp) resolve(rc *resolveCtx) (op, error) {
	g, err := o.group.resolve(rc)
	if err != nil {
		return nil, err
	}
	if g == o.group {
		return o, nil
	}
	return &slotGroupOp{group: g}, nil
}

// ===== Negation =====

// notGroupOp enumerates everything the inner pattern does NOT match:
// a(!.b) yields all of a's children except b. Enumeration goes through
// the inner pattern's leaf op so the right container kind is walked.
type notGroupOp struct {
	groupCommon
}

func newNotGroup(inner []op) *notGroupOp {
	return &notGroupOp{groupCommon{branches: []branch{{ops: inner}}}}
}

func (o *notGroupOp) inner() []op {
	if len(o.branches) == 0 {
		return nil
	}
	return o.branches[0].ops
}

func (o *notGroupOp) operator(top bool) string {
	return "(!" + renderBranch(branch{ops: o.inner()}, top) + ")"
}

// leafOp digs to the access op that enumerates children: groups
// recurse into their first branch.
func leafOp(o op) op {
	switch t := unwrapOp(o).(type) {
	case *orGroupOp:
		for _, b := range t.branches {
			if len(b.ops) > 0 {
				return leafOp(b.ops[0])
			}
		}
	case *firstGroupOp:
		for _, b := range t.branches {
			if len(b.ops) > 0 {
				return leafOp(b.ops[0])
			}
		}
	case *andGroupOp:
		for _, b := range t.branches {
			if len(b.ops) > 0 {
				return leafOp(b.ops[0])
			}
		}
	case *notGroupOp:
		if in := t.inner(); len(in) > 0 {
			return leafOp(in[0])
		}
	default:
		return t
	}
	return unwrapOp(o)
}

// excludedKeys collects the keys an op (or group of ops) matches on
// node.
func excludedKeys(o op, node any, st *state) (map[string]bool, error) {
	out := map[string]bool{}
	collect := func(branches []branch) error {
		for _, b := range branches {
			if len(b.ops) == 0 {
				continue
			}
			sub, err := excludedKeys(b.ops[0], node, st)
			if err != nil {
				return err
			}
			for k := range sub {
				out[k] = true
			}
		}
		return nil
	}
	switch t := unwrapOp(o).(type) {
	case *orGroupOp:
		return out, collect(t.branches)
	case *firstGroupOp:
		return out, collect(t.branches)
	case *andGroupOp:
		return out, collect(t.branches)
	case *notGroupOp:
		return out, collect(t.branches)
	default:
		ents, err := t.items(node, st)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			out[keyIdent(e.key)] = true
		}
	}
	return out, nil
}

// keyIdent normalizes a key for set membership across int widths.
func keyIdent(k any) string {
	if i, ok := values.AsInt(k); ok {
		return "i:" + stringify(i)
	}
	return "s:" + stringify(k)
}

// allItems enumerates every child of node for the access kind of the
// given op, ignoring its matcher.
func allItems(o op, node any, st *state) ([]entry, error) {
	switch unwrapOp(o).(type) {
	case *attrOp:
		return (&attrOp{m: &wildcardMatcher{}}).items(node, st)
	case *slotOp:
		return (&slotOp{m: &wildcardMatcher{}}).items(node, st)
	default:
		if values.IsMap(node) {
			return (&keyOp{m: &wildcardMatcher{}}).items(node, st)
		}
		return (&slotOp{m: &wildcardMatcher{}}).items(node, st)
	}
}

// notItems enumerates the children the inner pattern does not claim.
func (o *notGroupOp) notItems(node any, st *state) (op, []entry, error) {
	in := o.inner()
	if len(in) == 0 {
		return nil, nil, nil
	}
	leaf := leafOp(in[0])
	excluded, err := excludedKeys(in[0], node, st)
	if err != nil {
		return nil, nil, err
	}
	all, err := allItems(leaf, node, st)
	if err != nil {
		return nil, nil, err
	}
	var out []entry
	for _, e := range all {
		if !excluded[keyIdent(e.key)] {
			out = append(out, e)
		}
	}
	return leaf, out, nil
}

func (o *notGroupOp) pushChildren(stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	leaf, children, err := o.notItems(fr.node, st)
	if err != nil || leaf == nil {
		return nil, false, err
	}
	parents := fr.childParents(st)
	for i := len(children) - 1; i >= 0; i-- {
		e := children[i]
		var prefix []op
		if paths {
			prefix = append(append([]op{}, fr.prefix...), leaf.concrete(e.key))
		}
		stk.push(frame{ops: fr.ops, node: e.val, prefix: prefix, parents: parents})
	}
	return nil, false, nil
}

func (o *notGroupOp) doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error) {
	in := o.inner()
	if len(in) == 0 {
		return node, nil
	}
	leaf, children, err := o.notItems(node, st)
	if err != nil {
		return nil, err
	}
	remaining := append(append([]op{}, in[1:]...), tail...)
	for _, e := range children {
		if len(remaining) > 0 {
			sub := uc.descend(leaf.concrete(e.key))
			updated, uerr := updates(remaining, e.val, val, sub, st)
			if uerr != nil {
				return nil, uerr
			}
			node, err = leaf.setChild(node, e.key, updated)
		} else {
			node, err = leaf.setChild(node, e.key, val)
		}
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *notGroupOp) doRemove(tail []op, node, val any, nop bool, st *state) (any, error) {
	in := o.inner()
	if len(in) == 0 {
		return node, nil
	}
	leaf, children, err := o.notItems(node, st)
	if err != nil {
		return nil, err
	}
	remaining := append(append([]op{}, in[1:]...), tail...)
	for i := len(children) - 1; i >= 0; i-- {
		e := children[i]
		if len(remaining) > 0 {
			removed, rerr := removes(remaining, e.val, val, false, st)
			if rerr != nil {
				return nil, rerr
			}
			node, err = leaf.setChild(node, e.key, removed)
		} else {
			node, err = leaf.concrete(e.key).pop(node, st)
		}
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (o *notGroupOp) match(other op, specials bool) ([]any, bool) { return nil, false }

func (o *notGroupOp) resolve(rc *resolveCtx) (op, error) {
	bs, changed, err := resolveBranches(o.branches, rc)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	return &notGroupOp{groupCommon{branches: bs}}, nil
}
