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
	"iter"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/dotpath/pkg/values"
)

// ===== Sentinels and shared types =====

// Any is the remove-anything marker: removal conditioned on Any drops
// matching entries regardless of their value.
var Any any = anyValue

type autoSentinel struct{}

// Auto stands in for the root object in multi-key updates; the real
// root container is inferred from the first key's leading segment.
var Auto any = autoSentinel{}

// KV pairs an assembled key with its value.
type KV struct {
	Key   string
	Value any
}

// GroupMode selects which matched segments produce captures.
type GroupMode int

const (
	// GroupAll captures a value for every pattern segment position.
	GroupAll GroupMode = iota
	// GroupPatterns captures only at segments that are patterns.
	GroupPatterns
)

// Rule maps a match pattern to a rewrite template for Translate.
type Rule struct {
	Pattern  string
	Template string
}

// ===== Options =====

type config struct {
	def           any
	hasDef        bool
	patternDef    any
	hasPatternDef bool
	val           any
	hasVal        bool
	strict        bool
	immutable     bool
	exact         bool
	partial       bool
	attrs         bool
	groupMode     GroupMode
	registry      *Registry
}

// Option adjusts one call's behavior.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithDefault supplies the value returned when a concrete key is
// absent.
func WithDefault(v any) Option {
	return func(c *config) { c.def = v; c.hasDef = true }
}

// WithPatternDefault supplies the value returned when a pattern key
// matches nothing. Without it an empty Tuple is returned.
func WithPatternDefault(v any) Option {
	return func(c *config) { c.patternDef = v; c.hasPatternDef = true }
}

// WithValue conditions a removal on the entry's value.
func WithValue(v any) Option {
	return func(c *config) { c.val = v; c.hasVal = true }
}

// WithStrict makes absent concrete keys an error on reads and stops
// updates from scaffolding missing structure.
func WithStrict() Option {
	return func(c *config) { c.strict = true }
}

// Immutable deep-copies the root before any mutation, so the caller's
// original value is never touched even through in-place container
// kinds.
func Immutable() Option {
	return func(c *config) { c.immutable = true }
}

// Exact requires pattern and key to have the same number of segments
// when matching.
func Exact() Option {
	return func(c *config) { c.exact = true }
}

// Partial lets unbound placeholders survive template resolution.
func Partial() Option {
	return func(c *config) { c.partial = true }
}

// WithAttrs includes record fields (as @name keys) in enumeration.
func WithAttrs() Option {
	return func(c *config) { c.attrs = true }
}

// WithGroupMode selects the capture mode for MatchGroups.
func WithGroupMode(m GroupMode) Option {
	return func(c *config) { c.groupMode = m }
}

// WithRegistry routes transforms through a private registry instead of
// the package default.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// ===== Inspection =====

// IsPattern reports whether the key can address more than one
// location. Unparseable keys report false.
func IsPattern(key string) bool {
	c, err := Parse(key)
	return err == nil && c.IsPattern()
}

// IsTemplate reports whether the key still carries unresolved $N or
// $(name) placeholders.
func IsTemplate(key string) bool {
	c, err := Parse(key)
	return err == nil && c.hasUnresolved()
}

// IsInverted reports whether the key starts with the mutation
// inverter "-".
func IsInverted(key string) bool {
	c, err := Parse(key)
	return err == nil && c.IsInverted()
}

// Assemble parses a key and renders it back in canonical form.
func Assemble(key string) (string, error) {
	c, err := Parse(key)
	if err != nil {
		return "", err
	}
	return c.Assemble(), nil
}

// ===== Quoting =====

// lenientReserved is the character set that forces quoting of a
// standalone key segment. Dots and spaces are allowed: Quote serves
// display and unpacked-key construction, where "a.b" is a legal
// two-segment key.
var lenientReserved = strings.ReplaceAll(reservedChars, ".", "")

func lenientNeedsQuote(s string) bool {
	if s == "" || s == "True" || s == "False" || s == "None" {
		return true
	}
	if strings.ContainsAny(s, lenientReserved) || strings.ContainsAny(s, "\t\n\r") {
		return true
	}
	return numericLook.MatchString(s)
}

// Quote renders a value as a key segment, quoting strings only when
// the bare text would parse as something else. Floats take the
// quoted-numeric form so they survive a round trip through Parse.
func Quote(v any) string {
	if s, ok := v.(string); ok {
		if !lenientNeedsQuote(s) {
			return s
		}
		return quoteString(s)
	}
	return quoteValue(v, true)
}

// QuoteValue renders a value in value position, where numbers print
// bare and strings always quote.
func QuoteValue(v any) string {
	return quoteValue(v, false)
}

// ===== Reads =====

// compileConcrete parses a key and rejects unresolved templates.
func compileConcrete(key string) (*Chain, error) {
	c, err := Parse(key)
	if err != nil {
		return nil, err
	}
	if c.hasUnresolved() {
		return nil, unresolvedErrorf("key %q is a template; bind its placeholders first", key)
	}
	return c, nil
}

// Get evaluates a key against obj. Concrete keys yield the single
// value (or the default when absent); pattern keys yield a Tuple of
// every match. Trailing transforms apply to each result.
func Get(obj any, key string, opts ...Option) (any, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	st := newState(obj, cfg.strict, cfg.registry)
	vals, _, _, err := collectValues(c.ops, obj, st, false)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out, terr := c.applyChainTransforms(v, st.registry)
		if terr != nil {
			return nil, terr
		}
		vals[i] = out
	}
	if c.IsPattern() {
		if len(vals) == 0 {
			if cfg.hasPatternDef {
				return cfg.patternDef, nil
			}
			return values.Tuple{}, nil
		}
		out := make(values.Tuple, len(vals))
		copy(out, vals)
		return out, nil
	}
	if len(vals) == 0 {
		if cfg.strict {
			return nil, notFoundErrorf("key %q", key)
		}
		if cfg.hasDef {
			return cfg.def, nil
		}
		return nil, nil
	}
	return vals[0], nil
}

// GetMulti evaluates several keys, returning one result per key.
func GetMulti(obj any, keys []string, opts ...Option) (values.Tuple, error) {
	out := make(values.Tuple, 0, len(keys))
	for _, k := range keys {
		v, err := Get(obj, k, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Has reports whether the key addresses at least one location in obj.
func Has(obj any, key string) bool {
	c, err := Parse(key)
	if err != nil || c.hasUnresolved() {
		return false
	}
	st := newState(obj, false, nil)
	found := false
	err = walkOps(c.ops, obj, st, false, func(pv pathVal) bool {
		found = true
		return false
	})
	return err == nil && found
}

// ===== Writes =====

// Update assigns val at every location the key addresses, scaffolding
// missing structure along concrete segments. Inverted keys remove
// instead. The (possibly rebuilt) root is returned.
func Update(obj any, key string, val any, opts ...Option) (any, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	if len(c.ops) == 0 {
		return val, nil
	}
	if cfg.immutable {
		obj = values.DeepCopy(obj)
	}
	st := newState(obj, cfg.strict, cfg.registry)
	return updates(c.ops, obj, val, updCtx{}, st)
}

// SetDefault assigns val only when the key addresses nothing yet; an
// existing location is left as it is. The (possibly rebuilt) root is
// returned either way.
func SetDefault(obj any, key string, val any, opts ...Option) (any, error) {
	if Has(obj, key) {
		return obj, nil
	}
	return Update(obj, key, val, opts...)
}

// Build scaffolds the structure a key implies without assigning a
// value: Build(nil-ish, "items[2]") yields a three-slot list.
func Build(obj any, key string, opts ...Option) (any, error) {
	return Update(obj, key, nil, opts...)
}

// UpdateMulti applies key/value pairs in order. Pass Auto as obj to
// infer the root container from the first key.
func UpdateMulti(obj any, pairs []KV, opts ...Option) (any, error) {
	var err error
	for _, p := range pairs {
		if obj, err = autoRoot(obj, p.Key); err != nil {
			return nil, err
		}
		if obj, err = Update(obj, p.Key, p.Value, opts...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// UpdateMultiMap is UpdateMulti over a flat key-to-value map, applied
// in sorted key order so rebuilds are deterministic. It is the inverse
// of Unpack.
func UpdateMultiMap(obj any, flat map[string]any, opts ...Option) (any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]KV, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, KV{Key: k, Value: flat[k]})
	}
	return UpdateMulti(obj, pairs, opts...)
}

func autoRoot(obj any, key string) (any, error) {
	if obj != Auto {
		return obj, nil
	}
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	if len(c.ops) == 0 {
		return nil, mutationErrorf("cannot infer a root container from an empty key")
	}
	return c.ops[0].defaultContainer(), nil
}

// UpdateIf updates only when the predicate accepts the pair; the
// default predicate skips nil values.
func UpdateIf(obj any, key string, val any, pred ...func(key string, val any) bool) (any, error) {
	ok := val != nil
	if len(pred) > 0 && pred[0] != nil {
		ok = pred[0](key, val)
	}
	if !ok {
		return obj, nil
	}
	return Update(obj, key, val)
}

// UpdateIfMulti applies UpdateIf across pairs.
func UpdateIfMulti(obj any, pairs []KV, pred ...func(key string, val any) bool) (any, error) {
	var err error
	for _, p := range pairs {
		if obj, err = autoRoot(obj, p.Key); err != nil {
			return nil, err
		}
		if obj, err = UpdateIf(obj, p.Key, p.Value, pred...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Remove deletes every location the key addresses. WithValue narrows
// removal to entries holding that value. Absent locations are left
// untouched; inverted keys update instead.
func Remove(obj any, key string, opts ...Option) (any, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	if len(c.ops) == 0 {
		return obj, nil
	}
	if cfg.immutable {
		obj = values.DeepCopy(obj)
	}
	val := any(anyValue)
	if cfg.hasVal {
		val = cfg.val
	}
	st := newState(obj, cfg.strict, cfg.registry)
	return removes(c.ops, obj, val, false, st)
}

// RemoveMulti removes each key in order.
func RemoveMulti(obj any, keys []string, opts ...Option) (any, error) {
	var err error
	for _, k := range keys {
		if obj, err = Remove(obj, k, opts...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// RemoveMultiPairs removes each key conditioned on its paired value.
func RemoveMultiPairs(obj any, pairs []KV, opts ...Option) (any, error) {
	var err error
	for _, p := range pairs {
		o := append(append([]Option{}, opts...), WithValue(p.Value))
		if obj, err = Remove(obj, p.Key, o...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// RemoveIf removes only when the predicate accepts the key; the
// default predicate skips empty keys.
func RemoveIf(obj any, key string, pred ...func(key string) bool) (any, error) {
	ok := key != ""
	if len(pred) > 0 && pred[0] != nil {
		ok = pred[0](key)
	}
	if !ok {
		return obj, nil
	}
	return Remove(obj, key)
}

// RemoveIfMulti applies RemoveIf across keys.
func RemoveIfMulti(obj any, keys []string, pred ...func(key string) bool) (any, error) {
	var err error
	for _, k := range keys {
		if obj, err = RemoveIf(obj, k, pred...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// ===== Structural matching =====

// Match structurally compares a pattern key against a concrete (or
// less general) key. On success it returns the matched key in
// canonical form. By default the pattern may be shorter than the key;
// Exact requires equal lengths.
func Match(pattern, key string, opts ...Option) (string, bool, error) {
	m, _, ok, err := matchChains(pattern, key, newConfig(opts), false)
	return m, ok, err
}

// MatchGroups is Match plus the captured segment values: key names as
// strings, slot indices as their typed values. In GroupPatterns mode
// only pattern segments capture.
func MatchGroups(pattern, key string, opts ...Option) (string, values.Tuple, bool, error) {
	return matchChains(pattern, key, newConfig(opts), true)
}

// MatchMulti returns the canonical form of every key the pattern
// matches.
func MatchMulti(pattern string, keys []string, opts ...Option) ([]string, error) {
	cfg := newConfig(opts)
	var out []string
	for _, k := range keys {
		m, _, ok, err := matchChains(pattern, k, cfg, false)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func matchChains(pattern, key string, cfg *config, wantGroups bool) (string, values.Tuple, bool, error) {
	pc, err := Parse(pattern)
	if err != nil {
		return "", nil, false, err
	}
	kc, err := Parse(key)
	if err != nil {
		return "", nil, false, err
	}
	pops, kops := pc.ops, kc.ops
	if len(pops) > len(kops) {
		return "", nil, false, nil
	}
	if cfg.exact && len(pops) != len(kops) {
		return "", nil, false, nil
	}
	var groups values.Tuple
	lastCaptured := false
	for i, po := range pops {
		caps, ok := po.match(kops[i], true)
		if !ok {
			return "", nil, false, nil
		}
		include := cfg.groupMode == GroupAll || po.isPattern()
		lastCaptured = include && len(caps) > 0
		if wantGroups && include {
			groups = append(groups, caps...)
		}
	}
	if tail := kops[len(pops):]; len(tail) > 0 && len(pops) > 0 {
		// a trailing pattern segment swallows the unmatched remainder
		last := pops[len(pops)-1]
		if wantGroups && last.isPattern() && lastCaptured && len(groups) > 0 {
			groups[len(groups)-1] = stringify(groups[len(groups)-1]) + assembleTail(tail)
		}
	}
	return assembleOps(kops, true), groups, true, nil
}

// assembleTail renders ops as a continuation of an existing path, so
// keys keep their leading dot.
func assembleTail(ops []op) string {
	var b strings.Builder
	for _, o := range ops {
		b.WriteString(o.operator(false))
	}
	return b.String()
}

// ===== Pattern expansion =====

// Expand lists the concrete keys a pattern addresses in obj.
func Expand(obj any, key string, opts ...Option) ([]string, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	st := newState(obj, cfg.strict, cfg.registry)
	_, pvs, _, err := collectValues(c.ops, obj, st, true)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{}
	for _, pv := range pvs {
		k := assembleOps(pv.prefix, true)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// Walk lazily yields (concrete key, value) for every location the key
// addresses, with trailing transforms applied. The sequence is finite
// and single-pass; breaking out of the range stops the traversal. A
// malformed key or a failing transform ends the sequence early.
func Walk(obj any, key string, opts ...Option) iter.Seq2[string, any] {
	cfg := newConfig(opts)
	return func(yield func(string, any) bool) {
		c, err := compileConcrete(key)
		if err != nil {
			return
		}
		st := newState(obj, cfg.strict, cfg.registry)
		_ = walkOps(c.ops, obj, st, true, func(pv pathVal) bool {
			v, terr := c.applyChainTransforms(pv.node, st.registry)
			if terr != nil {
				return false
			}
			return yield(assembleOps(pv.prefix, true), v)
		})
	}
}

// Pluck returns (key, value) pairs for every location the key
// addresses, with trailing transforms applied to the values. Missing
// locations yield no pairs.
func Pluck(obj any, key string, opts ...Option) ([]KV, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	st := newState(obj, cfg.strict, cfg.registry)
	_, pvs, _, err := collectValues(c.ops, obj, st, true)
	if err != nil {
		return nil, err
	}
	var out []KV
	for _, pv := range pvs {
		v, terr := c.applyChainTransforms(pv.node, st.registry)
		if terr != nil {
			return nil, terr
		}
		out = append(out, KV{Key: assembleOps(pv.prefix, true), Value: v})
	}
	return out, nil
}

// PluckMulti concatenates Pluck results across keys.
func PluckMulti(obj any, keys []string, opts ...Option) ([]KV, error) {
	var out []KV
	for _, k := range keys {
		kvs, err := Pluck(obj, k, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, kvs...)
	}
	return out, nil
}

// Apply rewrites every value the key addresses through the key's
// trailing transforms, writing results back in place. A key with no
// transforms leaves obj untouched.
func Apply(obj any, key string, opts ...Option) (any, error) {
	cfg := newConfig(opts)
	c, err := compileConcrete(key)
	if err != nil {
		return nil, err
	}
	if len(c.transforms) == 0 {
		return obj, nil
	}
	if cfg.immutable {
		obj = values.DeepCopy(obj)
	}
	st := newState(obj, cfg.strict, cfg.registry)
	_, pvs, _, err := collectValues(c.ops, obj, st, true)
	if err != nil {
		return nil, err
	}
	for _, pv := range pvs {
		nv, terr := c.applyChainTransforms(pv.node, st.registry)
		if terr != nil {
			return nil, terr
		}
		if len(pv.prefix) == 0 {
			obj = nv
			continue
		}
		if obj, err = updates(pv.prefix, obj, nv, updCtx{}, st); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// ApplyMulti applies each key in order.
func ApplyMulti(obj any, keys []string, opts ...Option) (any, error) {
	var err error
	for _, k := range keys {
		if obj, err = Apply(obj, k, opts...); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// ===== Transforms =====

// Register adds a named transform to the package registry.
func Register(name string, fn TransformFunc) {
	defaultRegistry.Register(name, fn)
}

// ===== Templates =====

// Replace binds $N and $(name) placeholders in a template key.
// Bindings may be a map[string]any, or a slice/Tuple for positional
// placeholders. Resolved values splice into the notation verbatim, so
// a binding of "a.b" contributes two segments. Unbound placeholders
// error unless Partial is set.
func Replace(template string, bindings any, opts ...Option) (string, error) {
	cfg := newConfig(opts)
	c, err := Parse(template)
	if err != nil {
		return "", err
	}
	rc, err := c.resolveWith(bindingMap(bindings), cfg.partial, cfg.registry)
	if err != nil {
		return "", err
	}
	return rc.Assemble(), nil
}

func bindingMap(bindings any) map[string]any {
	switch t := bindings.(type) {
	case nil:
		return nil
	case map[string]any:
		return t
	case values.Tuple:
		return positionalBindings(t)
	case []any:
		return positionalBindings(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return positionalBindings(out)
	}
	return nil
}

func positionalBindings(vals []any) map[string]any {
	m := make(map[string]any, len(vals))
	for i, v := range vals {
		m[strconv.Itoa(i)] = v
	}
	return m
}

// Translate rewrites a key through the first rule whose pattern
// matches it. Captures come from pattern segments only, so rule
// templates index them positionally. A template referencing a capture
// the pattern did not produce skips to the next rule.
func Translate(key string, rules []Rule, opts ...Option) (string, bool, error) {
	cfg := newConfig(opts)
	mc := *cfg
	mc.groupMode = GroupPatterns
	for _, r := range rules {
		_, groups, ok, err := matchChains(r.Pattern, key, &mc, true)
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}
		out, err := Replace(r.Template, []any(groups), WithRegistry(cfg.registry))
		if err != nil {
			if errors.Is(err, ErrUnresolved) {
				continue
			}
			return "", false, err
		}
		return out, true, nil
	}
	return "", false, nil
}

// ===== Flattening =====

// Unpack flattens nested mappings into dotted-key form. Only mappings
// unpack; sequences and everything else stay as leaf values. The
// result round-trips through UpdateMultiMap(Auto, ...).
func Unpack(obj any) map[string]any {
	out := map[string]any{}
	unpackInto(out, "", obj)
	return out
}

func unpackInto(out map[string]any, prefix string, v any) {
	if values.IsMap(v) {
		keys := values.MapKeys(v)
		if len(keys) == 0 {
			if prefix != "" {
				out[prefix] = v
			}
			return
		}
		for _, k := range keys {
			child, _ := values.MapGet(v, k)
			seg := quoteValue(k, true)
			if prefix != "" {
				seg = prefix + "." + seg
			}
			unpackInto(out, seg, child)
		}
		return
	}
	if prefix != "" {
		out[prefix] = v
	}
}

// ===== Enumeration =====

// Items lists the immediate children of a container as key/value
// pairs: mapping keys in sorted order, sequence indices as [N] slots,
// and, with WithAttrs, record fields as @name keys.
func Items(obj any, opts ...Option) []KV {
	cfg := newConfig(opts)
	var out []KV
	switch {
	case values.IsMap(obj):
		for _, k := range values.MapKeys(obj) {
			v, _ := values.MapGet(obj, k)
			out = append(out, KV{Key: quoteValue(k, true), Value: v})
		}
	default:
		if elems, ok := values.SeqElems(obj); ok {
			for i, v := range elems {
				out = append(out, KV{Key: "[" + strconv.Itoa(i) + "]", Value: v})
			}
		}
	}
	if cfg.attrs {
		if rec, ok := values.AsRecord(obj); ok {
			for _, f := range rec.Fields() {
				v, _ := rec.Field(f)
				out = append(out, KV{Key: "@" + f, Value: v})
			}
		}
	}
	return out
}

// Keys lists the keys Items would produce.
func Keys(obj any, opts ...Option) []string {
	items := Items(obj, opts...)
	out := make([]string, len(items))
	for i, kv := range items {
		out[i] = kv.Key
	}
	return out
}

// Values lists the values Items would produce.
func Values(obj any, opts ...Option) []any {
	items := Items(obj, opts...)
	out := make([]any, len(items))
	for i, kv := range items {
		out[i] = kv.Value
	}
	return out
}
