// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dotpath compiles compact path expressions ("a.b[0].*") into
// operator chains and evaluates them against nested generic data:
// navigation, pattern queries, updates, removals, structural matching,
// and scaffolding of missing structure.
package dotpath

import (
	"github.com/AleutianAI/dotpath/pkg/values"
)

// anyValue is the remove-anything marker threaded through removal so
// value-conditional removal and plain removal share one code path.
type anySentinel struct{}

var anyValue = anySentinel{}

// entry is one enumerated child of a container.
type entry struct {
	key any
	val any
}

// op is a single element of a compiled chain. Concrete access ops
// (keys, slots, slices, attrs) implement child enumeration and the
// mutation primitives; traversal ops (groups, recursive descent) drive
// the stack machine directly through pushChildren.
type op interface {
	// isPattern reports whether the op can match more than one child.
	isPattern() bool

	// operator renders the notation fragment. top is true for the
	// first op of a chain, where keys print without a leading dot.
	operator(top bool) string

	// concrete returns the concrete op addressing one enumerated key,
	// used to build result path prefixes.
	concrete(key any) op

	// items enumerates matching children of node, filters applied.
	items(node any, st *state) ([]entry, error)

	// defaultContainer returns the empty container this op scaffolds
	// when building missing structure.
	defaultContainer() any

	// setChild writes key=val into node, returning the resulting
	// container (same value for in-place kinds, a rebuild otherwise).
	setChild(node any, key, val any) (any, error)

	// upsert assigns the op's own target(s) in node to val.
	upsert(node, val any, st *state) (any, error)

	// pop removes the op's own concrete target from node.
	pop(node any, st *state) (any, error)

	// removeValue removes matching children whose value equals val
	// (or all matching children when val is the anyValue marker).
	removeValue(node, val any, st *state) (any, error)

	// pushChildren advances the traversal for one frame: either by
	// pushing child frames on the stack or by computing results
	// directly. Returned results are emitted before further frames
	// are processed; cut=true aborts the whole enumeration.
	pushChildren(stk *depthStack, fr frame, st *state, paths bool) (results []pathVal, cut bool, err error)

	// doUpdate applies an update through this op with the given tail.
	doUpdate(tail []op, node, val any, uc updCtx, st *state) (any, error)

	// doRemove applies a removal through this op with the given tail.
	doRemove(tail []op, node, val any, nop bool, st *state) (any, error)

	// match structurally compares this (pattern) op against a concrete
	// op, returning captured values on success. specials widens what
	// wildcards may consume (used for path overlap checks).
	match(other op, specials bool) ([]any, bool)

	// resolve substitutes placeholders, returning the op unchanged
	// when nothing applies.
	resolve(rc *resolveCtx) (op, error)
}

// state carries call-scoped context through a traversal.
type state struct {
	root     any
	strict   bool
	registry *Registry
	// parents tracking is enabled only when some reference needs
	// ancestors; see needsAncestors.
	trackParents bool
}

func newState(root any, strict bool, reg *Registry) *state {
	if reg == nil {
		reg = defaultRegistry
	}
	return &state{root: root, strict: strict, registry: reg}
}

// updCtx carries update-recursion context.
type updCtx struct {
	// hasDefaults is set once scaffolding has begun: structure checks
	// relax because the caller is building into a synthesized default.
	hasDefaults bool
	// nop suppresses the actual write at the leaf (match-only wrap).
	nop bool
	// nopFromUnwrap distinguishes a nop introduced by ~ on this very
	// segment from one inherited from an ancestor segment.
	nopFromUnwrap bool
	// path accumulates concrete ops for error messages.
	path []op
}

func (uc updCtx) descend(seg op) updCtx {
	out := uc
	out.path = append(append([]op{}, uc.path...), seg)
	out.nopFromUnwrap = false
	return out
}

// pathVal is one traversal result: the concrete path prefix (nil when
// paths were not requested) and the value found there.
type pathVal struct {
	prefix []op
	node   any
}

// frame is one pending traversal step.
type frame struct {
	ops     []op
	node    any
	prefix  []op
	parents []any
}

func (f frame) childParents(st *state) []any {
	if !st.trackParents {
		return nil
	}
	return append(append([]any{}, f.parents...), f.node)
}

// depthStack is a stack of frame levels. Groups open a fresh level so
// their branch traversal drains independently of outer pending work.
type depthStack struct {
	levels [][]frame
}

func (s *depthStack) level() int { return len(s.levels) }

func (s *depthStack) pushLevel() { s.levels = append(s.levels, nil) }

func (s *depthStack) popLevel() {
	if len(s.levels) > 0 {
		s.levels = s.levels[:len(s.levels)-1]
	}
}

func (s *depthStack) push(fr frame) {
	if len(s.levels) == 0 {
		s.pushLevel()
	}
	top := len(s.levels) - 1
	s.levels[top] = append(s.levels[top], fr)
}

func (s *depthStack) currentEmpty() bool {
	if len(s.levels) == 0 {
		return true
	}
	return len(s.levels[len(s.levels)-1]) == 0
}

func (s *depthStack) pop() frame {
	top := len(s.levels) - 1
	frames := s.levels[top]
	fr := frames[len(frames)-1]
	s.levels[top] = frames[:len(frames)-1]
	return fr
}

// ===== Shared op behavior =====

// simplePushChildren descends into each matching child, pushing frames
// in reverse so enumeration order is preserved on the stack.
func simplePushChildren(o op, stk *depthStack, fr frame, st *state, paths bool) ([]pathVal, bool, error) {
	ents, err := o.items(fr.node, st)
	if err != nil {
		return nil, false, err
	}
	parents := fr.childParents(st)
	for i := len(ents) - 1; i >= 0; i-- {
		e := ents[i]
		var prefix []op
		if paths {
			prefix = append(append([]op{}, fr.prefix...), o.concrete(e.key))
		}
		stk.push(frame{ops: fr.ops, node: e.val, prefix: prefix, parents: parents})
	}
	return nil, false, nil
}

// emptiable lets an op override the no-matches test; appender slots
// report empty so updates always scaffold a fresh element.
type emptiable interface {
	isEmpty(node any, st *state) bool
}

// opIsEmpty reports whether the op matches nothing in node.
func opIsEmpty(o op, node any, st *state) bool {
	if e, ok := o.(emptiable); ok {
		return e.isEmpty(node, st)
	}
	ents, err := o.items(node, st)
	return err == nil && len(ents) == 0
}

// genericDoUpdate is the shared update recursion. At the leaf it
// upserts; on missing structure it scaffolds defaults from the tail
// and grafts the built subtree in.
func genericDoUpdate(o op, tail []op, node, val any, uc updCtx, st *state) (any, error) {
	if len(tail) == 0 {
		if uc.nop {
			return node, nil
		}
		if st != nil && st.strict && opIsEmpty(o, node, st) {
			return node, nil
		}
		return o.upsert(node, val, st)
	}
	if opIsEmpty(o, node, st) && !uc.hasDefaults {
		scaffold := buildDefault(tail)
		sub := uc.descend(o)
		sub.hasDefaults = true
		built, err := updates(tail, scaffold, val, sub, st)
		if err != nil {
			return nil, err
		}
		if uc.nop || leadsWithNop(tail) {
			return node, nil
		}
		return o.upsert(node, built, st)
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		child := e.val
		sub := uc.descend(o.concrete(e.key))
		sub.nop = uc.nop && !uc.nopFromUnwrap
		if child == nil {
			child = buildDefault(tail)
			sub.hasDefaults = true
		}
		updated, err := updates(tail, child, val, sub, st)
		if err != nil {
			return nil, err
		}
		node, err = o.setChild(node, e.key, updated)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// genericDoRemove is the shared removal recursion.
func genericDoRemove(o op, tail []op, node, val any, nop bool, st *state) (any, error) {
	if len(tail) == 0 {
		if nop {
			return node, nil
		}
		return o.removeValue(node, val, st)
	}
	ents, err := o.items(node, st)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		child, err := removes(tail, e.val, val, nop, st)
		if err != nil {
			return nil, err
		}
		node, err = o.setChild(node, e.key, child)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func leadsWithNop(ops []op) bool {
	if len(ops) == 0 {
		return false
	}
	_, ok := ops[0].(*nopOp)
	return ok
}

// ===== Update / remove entry points =====

// updates applies head-op recursion for an update.
func updates(ops []op, node, val any, uc updCtx, st *state) (any, error) {
	if len(ops) == 0 {
		return val, nil
	}
	if !values.IsContainer(node) && !uc.hasDefaults {
		return nil, structureError(node, assembleOps(uc.path, false))
	}
	return ops[0].doUpdate(ops[1:], node, val, uc, st)
}

// removes applies head-op recursion for a removal. Absence is not an
// error: removing through a terminal leaves it untouched.
func removes(ops []op, node, val any, nop bool, st *state) (any, error) {
	if len(ops) == 0 {
		return node, nil
	}
	if !values.IsContainer(node) {
		return node, nil
	}
	return ops[0].doRemove(ops[1:], node, val, nop, st)
}

// buildDefault synthesizes the minimal structure a chain implies:
// numeric slots build lists long enough to hold the index, keys build
// mappings, attrs build records.
func buildDefault(ops []op) any {
	if len(ops) == 0 {
		return nil
	}
	cur, rest := ops[0], ops[1:]
	if s, ok := cur.(*slotOp); ok {
		// numeric slots size the list up front; descent fills the
		// addressed element through the nil-child path
		if idx, iok := s.intIndex(); iok && idx >= 0 {
			return make([]any, idx+1)
		}
	}
	if len(rest) == 0 {
		return cur.defaultContainer()
	}
	base := cur.defaultContainer()
	built, err := cur.upsert(base, buildDefault(rest), nil)
	if err != nil {
		return base
	}
	return built
}
