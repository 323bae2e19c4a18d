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

import "github.com/AleutianAI/dotpath/pkg/values"

// predKind is a comparison operator in guard or filter position.
type predKind int

const (
	predEq predKind = iota
	predNe
	predLt
	predGt
	predLe
	predGe
)

func (p predKind) notation() string {
	switch p {
	case predNe:
		return "!="
	case predLt:
		return "<"
	case predGt:
		return ">"
	case predLe:
		return "<="
	case predGe:
		return ">="
	}
	return "="
}

// predMatch tests a candidate against a reference matcher. Equality
// delegates to the matcher so patterns (regexes, container literals,
// value groups) keep their match semantics; ordering requires a
// concrete comparable reference and silently fails otherwise.
func predMatch(p predKind, actual any, ref matcher) bool {
	switch p {
	case predEq:
		_, ok := ref.matchOne(actual)
		return ok
	case predNe:
		_, ok := ref.matchOne(actual)
		return !ok
	}
	rv, ok := ref.concreteValue()
	if !ok {
		return false
	}
	c, ok := values.Compare(actual, rv)
	if !ok {
		return false
	}
	switch p {
	case predLt:
		return c < 0
	case predGt:
		return c > 0
	case predLe:
		return c <= 0
	case predGe:
		return c >= 0
	}
	return false
}
