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
	"errors"
	"fmt"
)

// Sentinel error kinds. Concrete errors wrap one of these, so callers
// classify with errors.Is and drill into detail with errors.As.
var (
	// ErrParse marks notation that does not parse.
	ErrParse = errors.New("parse error")
	// ErrStructure marks a structural mismatch: mutating through a
	// terminal value, or building structure where none can exist.
	ErrStructure = errors.New("structural mismatch")
	// ErrMutation marks an operation the target op cannot support,
	// such as updating through a filter view.
	ErrMutation = errors.New("unsupported mutation")
	// ErrUnresolved marks a substitution or reference that could not
	// be resolved outside partial mode.
	ErrUnresolved = errors.New("unresolved placeholder")
	// ErrNotFound marks a strict lookup that matched nothing.
	ErrNotFound = errors.New("not found")
)

// ParseError reports where in the notation parsing failed.
type ParseError struct {
	Src string
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q at offset %d: %s", e.Src, e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

func parseErrorf(src string, pos int, format string, args ...any) error {
	return &ParseError{Src: src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// StructureError names the value kind and the path prefix where a
// mutation hit a non-container.
type StructureError struct {
	Value any
	Path  string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("cannot update %T at %q: not a dict, list, or other container", e.Value, e.Path)
}

func (e *StructureError) Unwrap() error { return ErrStructure }

func structureError(val any, path string) error {
	return &StructureError{Value: val, Path: path}
}

func mutationErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrMutation)
}

func unresolvedErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnresolved)
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
