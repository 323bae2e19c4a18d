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

// Chain is a compiled path expression: the operator sequence plus any
// trailing result transforms (a.b.c|int). Chains are immutable and
// safe to share across goroutines.
type Chain struct {
	ops        []op
	transforms []transformCall
}

// IsPattern reports whether the chain can address more than one
// location.
func (c *Chain) IsPattern() bool {
	for _, o := range c.ops {
		if o.isPattern() {
			return true
		}
	}
	return false
}

// IsInverted reports whether the chain starts with the mutation
// inverter "-".
func (c *Chain) IsInverted() bool {
	if len(c.ops) == 0 {
		return false
	}
	_, ok := c.ops[0].(*invertOp)
	return ok
}

// Assemble renders the chain back to notation.
func (c *Chain) Assemble() string {
	var b strings.Builder
	b.WriteString(assembleOps(c.ops, true))
	for _, t := range c.transforms {
		b.WriteByte('|')
		b.WriteString(t.notation())
	}
	return b.String()
}

func (c *Chain) String() string { return c.Assemble() }

// Len reports the number of operators.
func (c *Chain) Len() int { return len(c.ops) }

// slice returns the sub-chain starting at op index i, sharing the
// backing ops.
func (c *Chain) slice(i int) *Chain {
	if i < 0 {
		i = 0
	}
	if i > len(c.ops) {
		i = len(c.ops)
	}
	return &Chain{ops: c.ops[i:], transforms: c.transforms}
}

// resolveWith substitutes bindings, collapsing the chain to concrete
// form. In partial mode unbound placeholders survive.
func (c *Chain) resolveWith(bindings map[string]any, partial bool, reg *Registry) (*Chain, error) {
	rc := &resolveCtx{bindings: bindings, partial: partial, registry: reg}
	ops, changed, err := resolveOps(c.ops, rc)
	if err != nil {
		return nil, err
	}
	ts, tchanged, err := resolveTransformCalls(c.transforms, rc)
	if err != nil {
		return nil, err
	}
	if !changed && !tchanged {
		return c, nil
	}
	return &Chain{ops: ops, transforms: ts}, nil
}

// hasUnresolved reports whether any substitution placeholder remains.
func (c *Chain) hasUnresolved() bool {
	found := false
	visitMatchers(c.ops, func(m matcher) {
		if _, ok := m.(*substMatcher); ok {
			found = true
		}
	})
	for _, t := range c.transforms {
		for _, a := range t.args {
			if _, ok := a.(substArg); ok {
				found = true
			}
		}
	}
	return found
}

// applyChainTransforms runs the chain's trailing transforms on one
// result value.
func (c *Chain) applyChainTransforms(v any, reg *Registry) (any, error) {
	if len(c.transforms) == 0 {
		return v, nil
	}
	if reg == nil {
		reg = defaultRegistry
	}
	return applyTransformCalls(reg, v, c.transforms)
}
