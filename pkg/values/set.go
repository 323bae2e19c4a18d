// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package values

// Set is a membership container with stable insertion order, so pattern
// enumeration over sets is deterministic. A frozen Set is copy-on-write:
// mutations rebuild a new Set instead of modifying in place.
type Set struct {
	members []any
	frozen  bool
}

// NewSet builds a mutable set from the given members, dropping
// duplicates while preserving first-seen order.
func NewSet(members ...any) *Set {
	s := &Set{}
	for _, m := range members {
		s.add(m)
	}
	return s
}

// NewFrozenSet builds a frozen (copy-on-write) set.
func NewFrozenSet(members ...any) *Set {
	s := NewSet(members...)
	s.frozen = true
	return s
}

// Frozen reports whether mutations rebuild rather than modify.
func (s *Set) Frozen() bool { return s.frozen }

// Len returns the member count.
func (s *Set) Len() int { return len(s.members) }

// Members returns the members in insertion order. The slice is shared;
// callers must not modify it.
func (s *Set) Members() []any { return s.members }

// Has reports membership using structural equality.
func (s *Set) Has(v any) bool {
	for _, m := range s.members {
		if Equal(m, v) {
			return true
		}
	}
	return false
}

func (s *Set) add(v any) {
	if !s.Has(v) {
		s.members = append(s.members, NormalizeKey(v))
	}
}

// Add inserts v and returns the resulting set (a rebuild when frozen).
func (s *Set) Add(v any) *Set {
	if s.Has(v) {
		return s
	}
	if s.frozen {
		out := &Set{members: append(append([]any{}, s.members...), NormalizeKey(v)), frozen: true}
		return out
	}
	s.members = append(s.members, NormalizeKey(v))
	return s
}

// Remove drops v if present and returns the resulting set.
func (s *Set) Remove(v any) *Set {
	idx := -1
	for i, m := range s.members {
		if Equal(m, v) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}
	if s.frozen {
		out := &Set{frozen: true}
		out.members = append(out.members, s.members[:idx]...)
		out.members = append(out.members, s.members[idx+1:]...)
		return out
	}
	s.members = append(s.members[:idx], s.members[idx+1:]...)
	return s
}

// Union returns a set containing the members of both sets, preserving
// the receiver's mutability.
func (s *Set) Union(other *Set) *Set {
	out := NewSet(s.members...)
	for _, m := range other.Members() {
		out.add(m)
	}
	out.frozen = s.frozen
	return out
}
