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

// The traversal machine: frames carry (remaining ops, node, path
// prefix); the head op either pushes child frames or computes results
// directly. Groups open a nested stack level so their branches drain
// before outer work resumes.

// process drains frames at (or above) the entry level. emit receives
// each result and returns false to stop the enumeration early. The
// returned cut flag reports a hard cut that aborts all enclosing
// enumerations.
func process(stk *depthStack, st *state, paths bool, emit func(pathVal) bool) (stopped, cut bool, err error) {
	entry := stk.level()
	for stk.level() >= entry && !stk.currentEmpty() {
		fr := stk.pop()
		if len(fr.ops) == 0 {
			if !emit(pathVal{prefix: fr.prefix, node: fr.node}) {
				return true, false, nil
			}
			continue
		}
		head := fr.ops[0]
		results, gotCut, perr := head.pushChildren(stk, frame{
			ops:     fr.ops[1:],
			node:    fr.node,
			prefix:  fr.prefix,
			parents: fr.parents,
		}, st, paths)
		if perr != nil {
			return false, false, perr
		}
		for _, r := range results {
			if !emit(r) {
				return true, false, nil
			}
		}
		if gotCut {
			return false, true, nil
		}
	}
	return false, false, nil
}

// walkOps runs a full traversal of ops over node. Parent tracking is
// scoped to this walk: nested walks (filter keys, reference paths)
// restore the caller's setting on return.
func walkOps(ops []op, node any, st *state, paths bool, emit func(pathVal) bool) error {
	prev := st.trackParents
	st.trackParents = needsAncestors(ops)
	defer func() { st.trackParents = prev }()
	stk := &depthStack{}
	stk.pushLevel()
	stk.push(frame{ops: ops, node: node})
	_, _, err := process(stk, st, paths, emit)
	return err
}

// collectValues materializes a traversal. When paths is true the
// returned pathVals carry concrete prefixes.
func collectValues(ops []op, node any, st *state, paths bool) ([]any, []pathVal, bool, error) {
	var vals []any
	var pvs []pathVal
	err := walkOps(ops, node, st, paths, func(pv pathVal) bool {
		vals = append(vals, pv.node)
		if paths {
			pvs = append(pvs, pv)
		}
		return true
	})
	if err != nil {
		return nil, nil, false, err
	}
	return vals, pvs, false, nil
}

// ===== Reference scanning =====

// needsAncestors reports whether any reference in the chain resolves
// against an ancestor above the current node.
func needsAncestors(ops []op) bool {
	found := false
	visitMatchers(ops, func(m matcher) {
		if r, ok := m.(*refMatcher); ok && r.depth >= 2 {
			found = true
		}
	})
	return found
}

// visitMatchers walks every matcher reachable from an op slice,
// including wrapper guards, filter values, group branches, and
// recursive accessors.
func visitMatchers(ops []op, fn func(matcher)) {
	for _, o := range ops {
		visitOpMatchers(o, fn)
	}
}

func visitOpMatchers(o op, fn func(matcher)) {
	switch t := o.(type) {
	case *keyOp:
		visitMatcher(t.m, fn)
		visitFilterMatchers(t.filters, fn)
	case *slotOp:
		visitMatcher(t.m, fn)
		visitFilterMatchers(t.filters, fn)
	case *attrOp:
		visitMatcher(t.m, fn)
		visitFilterMatchers(t.filters, fn)
	case *sliceFilterOp:
		visitFilterMatchers(t.filters, fn)
	case *nopOp:
		visitOpMatchers(t.inner, fn)
	case *guardOp:
		visitOpMatchers(t.inner, fn)
		visitMatcher(t.guard, fn)
	case *typeOp:
		visitOpMatchers(t.inner, fn)
	case *orGroupOp:
		for _, br := range t.branches {
			visitMatchers(br.ops, fn)
		}
	case *firstGroupOp:
		for _, br := range t.branches {
			visitMatchers(br.ops, fn)
		}
	case *andGroupOp:
		for _, br := range t.branches {
			visitMatchers(br.ops, fn)
		}
	case *notGroupOp:
		for _, br := range t.branches {
			visitMatchers(br.ops, fn)
		}
	case *recursiveOp:
		if t.inner != nil {
			visitMatcher(t.inner, fn)
		}
		for _, br := range t.branches {
			visitOpMatchers(br.acc, fn)
		}
		visitFilterMatchers(t.filters, fn)
	}
}

func visitMatcher(m matcher, fn func(matcher)) {
	fn(m)
	switch t := m.(type) {
	case *refMatcher:
		visitMatchers(t.ops, fn)
	case *valueGroupMatcher:
		for _, alt := range t.alts {
			visitMatcher(alt, fn)
		}
	case *concatMatcher:
		for _, p := range t.parts {
			visitMatcher(p.m, fn)
		}
	}
}

func visitFilterMatchers(filters []filter, fn func(matcher)) {
	for _, f := range filters {
		switch t := f.(type) {
		case *filterCond:
			visitMatcher(t.val, fn)
			visitMatchers(t.keyOps, fn)
		case *filterAnd:
			visitFilterMatchers(t.fs, fn)
		case *filterOr:
			visitFilterMatchers(t.fs, fn)
		case *filterGroup:
			visitFilterMatchers([]filter{t.f}, fn)
		case *filterFirst:
			visitFilterMatchers([]filter{t.f}, fn)
		case *filterNot:
			visitFilterMatchers([]filter{t.f}, fn)
		}
	}
}

// ===== Structural overlap =====

// pathOverlaps reports whether a concrete path is already claimed by
// one of the soft-cut paths: every leading segment of the soft path
// must structurally match the candidate.
func pathOverlaps(soft [][]op, path []op) bool {
	if len(path) == 0 {
		return false
	}
	for _, sp := range soft {
		n := len(sp)
		if len(path) < n {
			n = len(path)
		}
		if n == 0 {
			continue
		}
		all := true
		for j := 0; j < n; j++ {
			if _, ok := sp[j].match(path[j], true); !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
