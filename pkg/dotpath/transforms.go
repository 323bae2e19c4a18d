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
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// TransformFunc converts one matched value. Errors normally degrade to
// pass-through; a |name:raises call turns them into hard failures.
type TransformFunc func(val any, args ...any) (any, error)

// Registry maps transform names to functions. The zero registry is not
// usable; NewRegistry seeds the builtin set. Registration is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]TransformFunc
}

// NewRegistry returns a registry preloaded with the builtin transforms
// (str, int, float, none, strip, len, lowercase, uppercase, add, list,
// tuple, set).
func NewRegistry() *Registry {
	r := &Registry{fns: map[string]TransformFunc{}}
	for name, fn := range builtinTransforms {
		r.fns[name] = fn
	}
	return r
}

// defaultRegistry backs the package-level API.
var defaultRegistry = NewRegistry()

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn TransformFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Lookup returns the named transform.
func (r *Registry) Lookup(name string) (TransformFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// transformCall is one |name:arg:... application in notation.
type transformCall struct {
	name   string
	args   []any
	raises bool
}

// substArg is an unresolved $N or $(name) placeholder in transform
// argument position, as in a|str:$0.
type substArg struct {
	name string
}

func (a substArg) notation() string {
	if isDigits(a.name) {
		return "$" + a.name
	}
	return "$(" + a.name + ")"
}

func (t transformCall) notation() string {
	var b strings.Builder
	b.WriteString(t.name)
	for _, a := range t.args {
		b.WriteByte(':')
		b.WriteString(transformArgNotation(a))
	}
	if t.raises {
		b.WriteString(":raises")
	}
	return b.String()
}

// transformArgNotation renders one argument; bare words stay bare so
// parsed calls round-trip.
func transformArgNotation(a any) string {
	switch t := a.(type) {
	case substArg:
		return t.notation()
	case string:
		if !wordNeedsQuote(t) {
			return t
		}
		return quoteString(t)
	}
	return quoteValue(a, false)
}

// resolveTransformCalls substitutes placeholder arguments from the
// binding set. Unbound placeholders survive in partial mode and error
// otherwise.
func resolveTransformCalls(calls []transformCall, rc *resolveCtx) ([]transformCall, bool, error) {
	changed := false
	out := make([]transformCall, len(calls))
	for i, c := range calls {
		nc := c
		var args []any
		for _, a := range c.args {
			sa, ok := a.(substArg)
			if !ok {
				args = append(args, a)
				continue
			}
			v, bound := any(nil), false
			if rc != nil && rc.bindings != nil {
				v, bound = rc.bindings[sa.name]
			}
			if !bound {
				if rc != nil && rc.partial {
					args = append(args, a)
					continue
				}
				return nil, false, unresolvedErrorf("no binding for $%s", sa.name)
			}
			args = append(args, stringify(v))
			changed = true
		}
		nc.args = args
		out[i] = nc
	}
	return out, changed, nil
}

// applyTransformCalls runs a transform pipeline. An unknown name is
// always an error; a failing conversion passes the value through
// unchanged unless the call is in raises mode.
func applyTransformCalls(reg *Registry, val any, calls []transformCall) (any, error) {
	for _, c := range calls {
		fn, ok := reg.Lookup(c.name)
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", c.name)
		}
		out, err := fn(val, c.args...)
		if err != nil {
			if c.raises {
				return nil, fmt.Errorf("transform %s failed: %w", c.name, err)
			}
			continue
		}
		val = out
	}
	return val, nil
}

// ===== Builtins =====

var builtinTransforms = map[string]TransformFunc{
	"str": func(v any, _ ...any) (any, error) {
		return stringify(v), nil
	},
	"int": func(v any, _ ...any) (any, error) {
		switch t := v.(type) {
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(strings.TrimSpace(t), 64)
				if ferr != nil {
					return nil, err
				}
				return int64(f), nil
			}
			return n, nil
		case bool:
			if t {
				return int64(1), nil
			}
			return int64(0), nil
		}
		if i, ok := values.AsInt(v); ok {
			return i, nil
		}
		if f, ok := values.AsFloat(v); ok {
			return int64(f), nil
		}
		return nil, fmt.Errorf("cannot convert %T to int", v)
	},
	"float": func(v any, _ ...any) (any, error) {
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		if f, ok := values.AsFloat(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert %T to float", v)
	},
	"none": func(v any, _ ...any) (any, error) {
		switch t := v.(type) {
		case nil:
			return nil, nil
		case string:
			s := strings.TrimSpace(t)
			if s == "" || s == "None" || s == "none" || s == "null" {
				return nil, nil
			}
		}
		return v, nil
	},
	"strip": func(v any, _ ...any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot strip %T", v)
		}
		return strings.TrimSpace(s), nil
	},
	"len": func(v any, _ ...any) (any, error) {
		if n, ok := values.SeqLen(v); ok {
			return int64(n), nil
		}
		if values.IsMap(v) {
			return int64(len(values.MapKeys(v))), nil
		}
		if s, ok := v.(*values.Set); ok {
			return int64(s.Len()), nil
		}
		return nil, fmt.Errorf("%T has no length", v)
	},
	"lowercase": func(v any, _ ...any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot lowercase %T", v)
		}
		return strings.ToLower(s), nil
	},
	"uppercase": func(v any, _ ...any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot uppercase %T", v)
		}
		return strings.ToUpper(s), nil
	},
	"add": func(v any, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("add needs an argument")
		}
		arg := args[0]
		if s, ok := v.(string); ok {
			if as, ok := arg.(string); ok {
				return s + as, nil
			}
			return nil, fmt.Errorf("cannot add %T to string", arg)
		}
		vi, viok := values.AsInt(v)
		ai, aiok := values.AsInt(arg)
		if viok && aiok {
			return vi + ai, nil
		}
		vf, vfok := values.AsFloat(v)
		af, afok := values.AsFloat(arg)
		if vfok && afok {
			return vf + af, nil
		}
		return nil, fmt.Errorf("cannot add %T and %T", v, arg)
	},
	"list": func(v any, _ ...any) (any, error) {
		if elems, ok := values.SeqElems(v); ok {
			return append([]any{}, elems...), nil
		}
		if s, ok := v.(*values.Set); ok {
			return append([]any{}, s.Members()...), nil
		}
		return nil, fmt.Errorf("cannot convert %T to list", v)
	},
	"tuple": func(v any, _ ...any) (any, error) {
		if elems, ok := values.SeqElems(v); ok {
			out := make(values.Tuple, len(elems))
			copy(out, elems)
			return out, nil
		}
		if s, ok := v.(*values.Set); ok {
			out := make(values.Tuple, s.Len())
			copy(out, s.Members())
			return out, nil
		}
		return nil, fmt.Errorf("cannot convert %T to tuple", v)
	},
	"set": func(v any, _ ...any) (any, error) {
		if elems, ok := values.SeqElems(v); ok {
			return values.NewSet(elems...), nil
		}
		if s, ok := v.(*values.Set); ok {
			return s, nil
		}
		return nil, fmt.Errorf("cannot convert %T to set", v)
	},
}
