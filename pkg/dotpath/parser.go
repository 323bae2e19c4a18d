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
	"math"
	"strconv"
	"strings"
)

// ===== Notation parser =====

// parser is a hand-rolled recursive descent scanner over the notation
// source. Ambiguous slot contents (slice vs filter vs matcher) are
// settled by tentative parses with position restore.
type parser struct {
	src string
	pos int
}

// matchPos selects position-dependent scanning rules: dotted keys only
// admit integer numerics, slots admit floats and wildcards, and so on.
type matchPos int

const (
	posKey matchPos = iota
	posSlot
	posAttr
	posFilterKey
)

func parseNotation(src string) (*Chain, error) {
	if strings.TrimSpace(src) == "" {
		// the empty path addresses the root
		return &Chain{}, nil
	}
	p := &parser{src: src}
	ch, err := p.top()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errf("unexpected %q", p.src[p.pos:])
	}
	return ch, nil
}

// ===== Low-level scanning =====

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) at(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errf("expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return parseErrorf(p.src, p.pos, format, args...)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isQuote(c byte) bool { return c == '\'' || c == '"' }

// word scans a bare key: anything up to a reserved character or
// whitespace.
func (p *parser) word() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if strings.IndexByte(reservedChars, c) >= 0 || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isWordChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// quoted scans a 'single' or "double" quoted literal with backslash
// escapes.
func (p *parser) quoted() (string, error) {
	q := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			b.WriteByte(p.src[p.pos])
			p.pos++
			continue
		}
		if c == q {
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errf("unterminated string")
}

// regexLit scans /pattern/, honoring escaped slashes. allowFirst
// permits a trailing ? first-match marker in key positions.
func (p *parser) regexLit(allowFirst bool) (matcher, error) {
	p.pos++ // '/'
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\\' {
			p.pos += 2
			continue
		}
		if c == '/' {
			src := p.src[start:p.pos]
			p.pos++
			first := false
			if allowFirst && p.peek() == '?' {
				p.pos++
				first = true
			}
			m, err := newRegexMatcher(src, first)
			if err != nil {
				return nil, p.errf("%v", err)
			}
			return m, nil
		}
		p.pos++
	}
	return nil, p.errf("unterminated regex")
}

// escapedWord scans \-prefixed literal keys; the first character after
// the backslash is always taken verbatim, so \$0 is the key "$0".
func (p *parser) escapedWord() (matcher, error) {
	p.pos++ // '\'
	if p.eof() {
		return nil, p.errf("dangling escape")
	}
	var b strings.Builder
	b.WriteByte(p.src[p.pos])
	p.pos++
	for !p.eof() {
		c := p.src[p.pos]
		if strings.IndexByte(".[]@|=,&<>", c) >= 0 || c == ' ' || c == '\t' {
			break
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			b.WriteByte(p.src[p.pos])
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return &constMatcher{val: b.String()}, nil
}

// ===== Numeric scanning =====

// tryNumber scans a numeric literal. allowDot admits floats; dotted
// key position keeps the dot as a segment separator so 111.0.x is
// three keys. Extended spellings (hex, octal, binary, underscores,
// scientific) collapse to ints when exact.
func (p *parser) tryNumber(allowDot bool) (matcher, bool) {
	save := p.pos
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	if !isDigit(p.peek()) {
		p.pos = save
		return nil, false
	}
	isFloat := false
	sci := false
	prefixed := false
	c0, c1 := p.peek(), p.at(1)
	if c0 == '0' && (c1 == 'x' || c1 == 'X' || c1 == 'o' || c1 == 'O' || c1 == 'b' || c1 == 'B') {
		p.pos += 2
		n := 0
		for isHexish(p.peek()) {
			p.pos++
			n++
		}
		if n == 0 {
			p.pos = save
			return nil, false
		}
		prefixed = true
	} else {
		for isDigit(p.peek()) || p.peek() == '_' {
			p.pos++
		}
		if allowDot && p.peek() == '.' && isDigit(p.at(1)) {
			p.pos++
			isFloat = true
			for isDigit(p.peek()) || p.peek() == '_' {
				p.pos++
			}
		}
		if p.peek() == 'e' || p.peek() == 'E' {
			j := 1
			if p.at(j) == '+' || p.at(j) == '-' {
				j++
			}
			if isDigit(p.at(j)) {
				p.pos += j
				for isDigit(p.peek()) {
					p.pos++
				}
				sci = true
			}
		}
	}
	// a trailing word character means this was a word all along, as
	// in 07a
	if isWordChar(p.peek()) {
		p.pos = save
		return nil, false
	}
	raw := p.src[start:p.pos]
	clean := strings.ReplaceAll(raw, "_", "")
	switch {
	case isFloat:
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			p.pos = save
			return nil, false
		}
		return &constMatcher{val: f, raw: raw}, true
	case prefixed:
		neg := strings.HasPrefix(clean, "-")
		body := strings.TrimPrefix(clean, "-")
		n, err := strconv.ParseInt(body, 0, 64)
		if err != nil {
			p.pos = save
			return nil, false
		}
		if neg {
			n = -n
		}
		return &constMatcher{val: n, raw: raw}, true
	case sci:
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			p.pos = save
			return nil, false
		}
		if f == math.Trunc(f) && math.Abs(f) < float64(math.MaxInt64) {
			return &constMatcher{val: int64(f), raw: raw}, true
		}
		return &constMatcher{val: f, raw: raw}, true
	default:
		n, err := strconv.ParseInt(clean, 10, 64)
		if err != nil {
			p.pos = save
			return nil, false
		}
		return &constMatcher{val: n, raw: raw}, true
	}
}

func isHexish(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (p *parser) optSignedInt() *int64 {
	save := p.pos
	neg := false
	if p.peek() == '-' {
		neg = true
		p.pos++
	}
	if !isDigit(p.peek()) {
		p.pos = save
		return nil
	}
	var n int64
	for isDigit(p.peek()) {
		n = n*10 + int64(p.peek()-'0')
		p.pos++
	}
	if neg {
		n = -n
	}
	return &n
}

func (p *parser) scanUint() int64 {
	var n int64
	for isDigit(p.peek()) {
		n = n*10 + int64(p.peek()-'0')
		p.pos++
	}
	return n
}

// ===== Top level =====

func (p *parser) top() (*Chain, error) {
	p.skipSpace()
	inverted := false
	if p.peek() == '-' && !isDigit(p.at(1)) {
		p.pos++
		inverted = true
	}
	if !inverted && p.peek() == '|' {
		// bare transform chain, applied to the root value itself
		ts, err := p.transformCalls()
		if err != nil {
			return nil, err
		}
		return &Chain{transforms: ts}, nil
	}
	var branches []branch
	var chainT []transformCall
	sep := byte(0)
	for {
		p.skipSpace()
		var bops []op
		if p.peek() == '!' && p.at(1) != '=' {
			p.pos++
			inner, ct, err := p.pathOps()
			if err != nil {
				return nil, err
			}
			if ct != nil {
				return nil, p.errf("transforms must end the expression")
			}
			if len(inner) == 0 {
				return nil, p.errf("nothing to negate")
			}
			bops = []op{newNotGroup(inner)}
		} else {
			var ct []transformCall
			var err error
			bops, ct, err = p.pathOps()
			if err != nil {
				return nil, err
			}
			chainT = ct
		}
		if len(bops) == 0 {
			return nil, p.errf("empty path branch")
		}
		cut := p.cutMarker()
		branches = append(branches, branch{ops: bops, cut: cut})
		p.skipSpace()
		c := p.peek()
		if c == ',' || c == '&' {
			if chainT != nil {
				return nil, p.errf("transforms must end the expression")
			}
			if sep == 0 {
				sep = c
			} else if sep != c {
				return nil, p.errf("mixed , and & at the same level")
			}
			p.pos++
			continue
		}
		break
	}
	var ops []op
	switch {
	case len(branches) == 1 && branches[0].cut == cutNone:
		ops = branches[0].ops
	case sep == '&':
		ops = []op{newAndGroup(branches)}
	default:
		ops = []op{newOrGroup(branches)}
	}
	if inverted {
		ops = append([]op{&invertOp{}}, ops...)
	}
	return &Chain{ops: ops, transforms: chainT}, nil
}

// pathOps consumes a run of segments up to a character it cannot
// start one with. The returned transforms, when non-nil, are trailing
// result transforms that end the chain.
func (p *parser) pathOps() ([]op, []transformCall, error) {
	var ops []op
	first := true
	for !p.eof() {
		pendingNop := false
		if p.peek() == '~' {
			p.pos++
			pendingNop = true
		}
		c := p.peek()
		var seg op
		var nop bool
		var err error
		switch {
		case c == '.':
			p.pos++
			seg, nop, err = p.keySegment()
		case c == '[':
			seg, nop, err = p.slotSegment()
		case c == '@':
			p.pos++
			seg, nop, err = p.attrSegment()
		case c == '(':
			seg, err = p.groupSegment()
		case first:
			seg, nop, err = p.keySegment()
		default:
			if pendingNop {
				return nil, nil, p.errf("dangling ~")
			}
			return ops, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		nop = nop || pendingNop
		var ct []transformCall
		seg, ct, err = p.attach(seg)
		if err != nil {
			return nil, nil, err
		}
		if nop {
			seg = &nopOp{inner: seg}
		}
		ops = append(ops, seg)
		first = false
		if ct != nil {
			return ops, ct, nil
		}
	}
	return ops, nil, nil
}

// attach consumes segment suffixes: &filters, :type restrictions,
// |transforms, and =value guards. Trailing transforms with no guard
// predicate end the chain and are returned to the caller.
func (p *parser) attach(seg op) (op, []transformCall, error) {
	for {
		switch c := p.peek(); {
		case c == '&':
			save := p.pos
			p.pos++
			f, err := p.filterOrExpr()
			if err != nil {
				p.pos = save
				return seg, nil, nil
			}
			out, ok := attachFilter(seg, f)
			if !ok {
				p.pos = save
				return seg, nil, nil
			}
			seg = out
		case c == ':':
			var err error
			seg, err = p.typeRestriction(seg)
			if err != nil {
				return nil, nil, err
			}
		case c == '|':
			ts, err := p.transformCalls()
			if err != nil {
				return nil, nil, err
			}
			if pk, ok := p.predAt(); ok {
				val, err := p.valueMatcher()
				if err != nil {
					return nil, nil, err
				}
				seg = &guardOp{inner: seg, pred: pk, guard: val, transforms: ts}
				continue
			}
			return seg, ts, nil
		default:
			if pk, ok := p.predAt(); ok {
				val, err := p.valueMatcher()
				if err != nil {
					return nil, nil, err
				}
				seg = &guardOp{inner: seg, pred: pk, guard: val}
				continue
			}
			return seg, nil, nil
		}
	}
}

func attachFilter(o op, f filter) (op, bool) {
	switch t := unwrapOp(o).(type) {
	case *keyOp:
		t.filters = append(t.filters, f)
		return o, true
	case *slotOp:
		t.filters = append(t.filters, f)
		return o, true
	case *attrOp:
		t.filters = append(t.filters, f)
		return o, true
	case *sliceFilterOp:
		t.filters = append(t.filters, f)
		return o, true
	case *recursiveOp:
		t.filters = append(t.filters, f)
		return o, true
	}
	return o, false
}

func (p *parser) predAt() (predKind, bool) {
	switch p.peek() {
	case '=':
		p.pos++
		return predEq, true
	case '!':
		if p.at(1) == '=' {
			p.pos += 2
			return predNe, true
		}
	case '<':
		if p.at(1) == '=' {
			p.pos += 2
			return predLe, true
		}
		p.pos++
		return predLt, true
	case '>':
		if p.at(1) == '=' {
			p.pos += 2
			return predGe, true
		}
		p.pos++
		return predGt, true
	}
	return predEq, false
}

func (p *parser) cutMarker() cutKind {
	if p.peek() != '#' {
		return cutNone
	}
	if p.at(1) == '#' {
		p.pos += 2
		return cutSoft
	}
	p.pos++
	return cutHard
}

// ===== Segments =====

func (p *parser) keySegment() (op, bool, error) {
	nop := false
	if p.peek() == '~' {
		p.pos++
		nop = true
	}
	if p.peek() == '*' {
		o, err := p.starSegment()
		return o, nop, err
	}
	m, err := p.keyMatcher(posKey)
	if err != nil {
		return nil, false, err
	}
	return &keyOp{m: m}, nop, nil
}

func (p *parser) attrSegment() (op, bool, error) {
	nop := false
	if p.peek() == '~' {
		p.pos++
		nop = true
	}
	m, err := p.keyMatcher(posAttr)
	if err != nil {
		return nil, false, err
	}
	return &attrOp{m: m}, nop, nil
}

// starSegment handles every *-led form: plain and first-match
// wildcards, recursive descent with optional search matcher, branch
// recursion, depth specs, and type restrictions.
func (p *parser) starSegment() (op, error) {
	p.pos++ // '*'
	switch c := p.peek(); {
	case c == '?':
		p.pos++
		return &keyOp{m: &wildcardMatcher{first: true}}, nil
	case c == '*':
		p.pos++
		return p.recursiveTail(&recursiveOp{inner: &wildcardMatcher{}})
	case c == '(':
		brs, err := p.recBranches()
		if err != nil {
			return nil, err
		}
		return p.recursiveTail(&recursiveOp{inner: &wildcardMatcher{}, branches: brs})
	case c == '/':
		m, err := p.regexLit(false)
		if err != nil {
			return nil, err
		}
		return p.recursiveTail(&recursiveOp{inner: m})
	case isQuote(c):
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return p.recursiveTail(&recursiveOp{inner: &constMatcher{val: s, quoted: true}})
	default:
		w := p.word()
		if w == "" {
			return &keyOp{m: &wildcardMatcher{}}, nil
		}
		return p.recursiveTail(&recursiveOp{inner: &constMatcher{val: w}})
	}
}

func (p *parser) recursiveTail(rec *recursiveOp) (op, error) {
	for {
		switch c := p.peek(); {
		case c == ':' && (isDigit(p.at(1)) || p.at(1) == '-' || p.at(1) == ':'):
			p.pos++
			rec.dStart = p.optSignedInt()
			if p.peek() == ':' {
				p.pos++
				rec.dStop = p.optSignedInt()
				if p.peek() == ':' {
					p.pos++
					rec.dStep = p.optSignedInt()
				}
			}
		case c == ':':
			// type restrictions distribute onto the accessor branches,
			// so **:dict canonicalizes to *(*:dict)
			names, negate, err := p.typeSpec()
			if err != nil {
				return nil, err
			}
			rec.restrictBranches(names, negate)
		case c == '&':
			save := p.pos
			p.pos++
			f, err := p.filterOrExpr()
			if err != nil {
				p.pos = save
				return rec, nil
			}
			rec.filters = append(rec.filters, f)
		case c == '?':
			p.pos++
			rec.first = true
			return rec, nil
		default:
			return rec, nil
		}
	}
}

// recBranches parses the accessor list of branch recursion *(a, [0], @b).
func (p *parser) recBranches() ([]recBranch, error) {
	p.pos++ // '('
	var out []recBranch
	for {
		p.skipSpace()
		acc, err := p.recAccessor()
		if err != nil {
			return nil, err
		}
		out = append(out, recBranch{acc: acc, cut: p.cutMarker()})
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("bad recursion branch")
		}
	}
}

func (p *parser) recAccessor() (op, error) {
	if p.peek() == '.' {
		p.pos++
	}
	var seg op
	switch p.peek() {
	case '[':
		s, nop, err := p.slotSegment()
		if err != nil {
			return nil, err
		}
		if nop {
			s = &nopOp{inner: s}
		}
		seg = s
	case '@':
		p.pos++
		s, nop, err := p.attrSegment()
		if err != nil {
			return nil, err
		}
		if nop {
			s = &nopOp{inner: s}
		}
		seg = s
	default:
		m, err := p.keyMatcher(posFilterKey)
		if err != nil {
			return nil, err
		}
		seg = &keyOp{m: m}
	}
	if p.peek() == ':' {
		return p.typeRestriction(seg)
	}
	return seg, nil
}

// ===== Groups =====

func (p *parser) groupSegment() (op, error) {
	p.pos++ // '('
	var branches []branch
	sep := byte(0)
	for {
		p.skipSpace()
		var bops []op
		if p.peek() == '!' && p.at(1) != '=' {
			p.pos++
			inner, ct, err := p.pathOps()
			if err != nil {
				return nil, err
			}
			if ct != nil || len(inner) == 0 {
				return nil, p.errf("bad negation branch")
			}
			bops = []op{newNotGroup(inner)}
		} else {
			var ct []transformCall
			var err error
			bops, ct, err = p.pathOps()
			if err != nil {
				return nil, err
			}
			if ct != nil {
				return nil, p.errf("transforms are not allowed inside a group")
			}
		}
		if len(bops) == 0 {
			return nil, p.errf("empty group branch")
		}
		cut := p.cutMarker()
		branches = append(branches, branch{ops: bops, cut: cut})
		p.skipSpace()
		c := p.peek()
		if c == ',' || c == '&' {
			if sep == 0 {
				sep = c
			} else if sep != c {
				return nil, p.errf("mixed , and & inside a group")
			}
			p.pos++
			continue
		}
		if c == ')' {
			p.pos++
			break
		}
		return nil, p.errf("unterminated group")
	}
	if p.peek() == '?' {
		p.pos++
		if sep == '&' {
			return nil, p.errf("? does not apply to a conjunction")
		}
		return newFirstGroup(branches), nil
	}
	if len(branches) == 1 && branches[0].cut == cutNone && len(branches[0].ops) == 1 {
		if ng, ok := branches[0].ops[0].(*notGroupOp); ok {
			return ng, nil
		}
	}
	if sep == '&' {
		return newAndGroup(branches), nil
	}
	return newOrGroup(branches), nil
}

// ===== Slots =====

func (p *parser) slotSegment() (op, bool, error) {
	p.pos++ // '['
	if p.peek() == ']' {
		p.pos++
		return &emptySlotOp{}, false, nil
	}
	nop := false
	if p.peek() == '~' {
		p.pos++
		nop = true
		if p.peek() == ']' {
			p.pos++
			return &emptySlotOp{}, true, nil
		}
	}
	if o, ok := p.trySlice(); ok {
		return o, nop, nil
	}
	if p.peek() == '+' {
		if p.at(1) == ']' {
			p.pos += 2
			return &slotSpecialOp{}, nop, nil
		}
		if p.at(1) == '?' && p.at(2) == ']' {
			p.pos += 3
			return &slotSpecialOp{unique: true}, nop, nil
		}
	}
	save := p.pos
	if f, err := p.filterOrExpr(); err == nil && p.peek() == ']' {
		p.pos++
		return &sliceFilterOp{filters: []filter{f}}, nop, nil
	}
	p.pos = save
	if p.peek() == '(' {
		g, err := p.slotGroup()
		return g, nop, err
	}
	m, err := p.keyMatcher(posSlot)
	if err != nil {
		return nil, false, err
	}
	fs, err := p.slotFilters()
	if err != nil {
		return nil, false, err
	}
	if err := p.expect(']'); err != nil {
		return nil, false, err
	}
	return &slotOp{m: m, filters: fs}, nop, nil
}

func (p *parser) slotFilters() ([]filter, error) {
	var fs []filter
	for p.peek() == '&' {
		save := p.pos
		p.pos++
		f, err := p.filterOrExpr()
		if err != nil {
			p.pos = save
			break
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// trySlice attempts [start:stop:step] with optional + endpoints. The
// parse backs out cleanly so filter and matcher forms get their turn.
func (p *parser) trySlice() (op, bool) {
	save := p.pos
	var f [3]*int64
	var plus [3]bool
	field := func(idx int) bool {
		switch c := p.peek(); {
		case c == '+':
			plus[idx] = true
			p.pos++
		case c == '-' || isDigit(c):
			n := p.optSignedInt()
			if n == nil {
				return false
			}
			if p.peek() != ':' && p.peek() != ']' {
				return false
			}
			f[idx] = n
		}
		return true
	}
	if !field(0) || p.peek() != ':' {
		p.pos = save
		return nil, false
	}
	p.pos++
	if !field(1) {
		p.pos = save
		return nil, false
	}
	if p.peek() == ':' {
		p.pos++
		if !field(2) {
			p.pos = save
			return nil, false
		}
	}
	if p.peek() != ']' {
		p.pos = save
		return nil, false
	}
	p.pos++
	return &sliceOp{
		start: f[0], stop: f[1], step: f[2],
		plusStart: plus[0], plusStop: plus[1],
	}, true
}

// slotGroup parses [(...)] branch groups; each branch is a slot
// matcher, appender, or nop-wrapped form.
func (p *parser) slotGroup() (op, error) {
	p.pos++ // '('
	var branches []branch
	for {
		p.skipSpace()
		o, err := p.slotBranch()
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch{ops: []op{o}, cut: p.cutMarker()})
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			return &slotGroupOp{group: newOrGroup(branches)}, nil
		default:
			return nil, p.errf("bad slot group")
		}
	}
}

func (p *parser) slotBranch() (op, error) {
	nop := false
	if p.peek() == '~' {
		p.pos++
		nop = true
	}
	var o op
	if p.peek() == '+' {
		if p.at(1) == '?' {
			p.pos += 2
			o = &slotSpecialOp{unique: true}
		} else {
			p.pos++
			o = &slotSpecialOp{}
		}
	} else {
		m, err := p.keyMatcher(posSlot)
		if err != nil {
			return nil, err
		}
		fs, err := p.slotFilters()
		if err != nil {
			return nil, err
		}
		o = &slotOp{m: m, filters: fs}
	}
	if nop {
		o = &nopOp{inner: o}
	}
	return o, nil
}

// ===== Key and slot matchers =====

func (p *parser) keyMatcher(pos matchPos) (matcher, error) {
	m, err := p.keyAtom(pos)
	if err != nil {
		return nil, err
	}
	return p.maybeConcat(m, pos)
}

func (p *parser) keyAtom(pos matchPos) (matcher, error) {
	c := p.peek()
	switch {
	case isQuote(c):
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return &constMatcher{val: s, quoted: true}, nil
	case c == 'b' && isQuote(p.at(1)):
		p.pos++
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return &constMatcher{val: []byte(s)}, nil
	case c == '#' && isQuote(p.at(1)):
		return p.quotedNumeric()
	case c == '/':
		return p.regexLit(pos != posFilterKey)
	case c == '$':
		return p.dollar()
	case c == '\\':
		return p.escapedWord()
	case c == '*' && pos != posKey:
		p.pos++
		if p.peek() == '?' {
			p.pos++
			return &wildcardMatcher{first: true}, nil
		}
		return &wildcardMatcher{}, nil
	case isDigit(c) || (c == '-' && isDigit(p.at(1))):
		if m, ok := p.tryNumber(pos != posKey); ok {
			return m, nil
		}
		fallthrough
	default:
		w := p.word()
		if w == "" {
			return nil, p.errf("unexpected character %q", string(c))
		}
		switch w {
		case "None":
			return &constMatcher{val: nil}, nil
		case "True":
			return &constMatcher{val: true}, nil
		case "False":
			return &constMatcher{val: false}, nil
		}
		return &constMatcher{val: w}, nil
	}
}

func (p *parser) quotedNumeric() (matcher, error) {
	p.pos++ // '#'
	s, err := p.quoted()
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(s, ".eE") {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil, p.errf("bad quoted numeric %q", s)
		}
		return &constMatcher{val: f, raw: s, quoted: true}, nil
	}
	n, nerr := strconv.ParseInt(s, 10, 64)
	if nerr != nil {
		return nil, p.errf("bad quoted numeric %q", s)
	}
	return &constMatcher{val: n, raw: s, quoted: true}, nil
}

// maybeConcat extends an atom into a + concatenation; parts after the
// first may carry their own transforms, as in ['0'+0|str].
func (p *parser) maybeConcat(m0 matcher, pos matchPos) (matcher, error) {
	if p.peek() != '+' {
		return m0, nil
	}
	parts := []concatPart{{m: m0}}
	for p.peek() == '+' {
		p.pos++
		m, err := p.keyAtom(pos)
		if err != nil {
			return nil, err
		}
		var ts []transformCall
		if p.peek() == '|' {
			ts, err = p.transformCalls()
			if err != nil {
				return nil, err
			}
		}
		parts = append(parts, concatPart{m: m, transforms: ts})
	}
	return &concatMatcher{parts: parts}, nil
}

// dollar dispatches the $ forms: $$(path) references, $(name)
// named substitutions, and $N positional substitutions.
func (p *parser) dollar() (matcher, error) {
	if p.at(1) == '$' && p.at(2) == '(' {
		p.pos += 3
		depth := 0
		for p.peek() == '^' {
			depth++
			p.pos++
		}
		start := p.pos
		ops, ct, err := p.pathOps()
		if err != nil {
			return nil, err
		}
		if ct != nil {
			return nil, p.errf("transforms are not allowed inside a reference")
		}
		if len(ops) == 0 {
			return nil, p.errf("empty reference")
		}
		src := p.src[start:p.pos]
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		pattern := false
		for _, o := range ops {
			if o.isPattern() {
				pattern = true
			}
		}
		return &refMatcher{depth: depth, ops: ops, src: src, pattern: pattern}, nil
	}
	if p.at(1) == '(' {
		p.pos += 2
		name := p.ident()
		if name == "" {
			return nil, p.errf("expected substitution name")
		}
		var ts []transformCall
		if p.peek() == '|' {
			var err error
			ts, err = p.transformCalls()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return &substMatcher{name: name, transforms: ts}, nil
	}
	if isDigit(p.at(1)) {
		p.pos++
		start := p.pos
		for isDigit(p.peek()) {
			p.pos++
		}
		return &substMatcher{name: p.src[start:p.pos]}, nil
	}
	return nil, p.errf("bad $ expression")
}

// ===== Type restrictions =====

func (p *parser) typeRestriction(seg op) (op, error) {
	names, negate, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	return &typeOp{inner: seg, types: names, negate: negate}, nil
}

func (p *parser) typeSpec() (names []string, negate bool, err error) {
	p.pos++ // ':'
	if p.peek() == '!' {
		p.pos++
		negate = true
	}
	if p.peek() == '(' {
		p.pos++
		for {
			p.skipSpace()
			if p.peek() == '!' {
				p.pos++
				negate = true
				continue
			}
			n := p.ident()
			if n == "" {
				return nil, false, p.errf("expected type name")
			}
			names = append(names, n)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if p.peek() == ')' {
				p.pos++
				break
			}
			return nil, false, p.errf("bad type restriction")
		}
		return names, negate, nil
	}
	n := p.ident()
	if n == "" {
		return nil, false, p.errf("expected type name")
	}
	return []string{n}, negate, nil
}

// ===== Transforms =====

func (p *parser) transformCalls() ([]transformCall, error) {
	var out []transformCall
	for p.peek() == '|' {
		p.pos++
		name := p.transformName()
		if name == "" {
			return nil, p.errf("expected transform name")
		}
		tc := transformCall{name: name}
		for p.peek() == ':' {
			p.pos++
			arg, isRaises, err := p.transformArg()
			if err != nil {
				return nil, err
			}
			if isRaises {
				tc.raises = true
				break
			}
			tc.args = append(tc.args, arg)
		}
		out = append(out, tc)
	}
	return out, nil
}

func (p *parser) transformName() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if isWordChar(c) || (c == '.' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) transformArg() (any, bool, error) {
	c := p.peek()
	if c == '$' {
		p.pos++
		if p.peek() == '(' {
			p.pos++
			name := p.ident()
			if name == "" {
				return nil, false, p.errf("expected substitution name")
			}
			if err := p.expect(')'); err != nil {
				return nil, false, err
			}
			return substArg{name: name}, false, nil
		}
		start := p.pos
		for isDigit(p.peek()) {
			p.pos++
		}
		if p.pos == start {
			return nil, false, p.errf("expected substitution index")
		}
		return substArg{name: p.src[start:p.pos]}, false, nil
	}
	if isQuote(c) {
		s, err := p.quoted()
		return s, false, err
	}
	if isDigit(c) || (c == '-' && isDigit(p.at(1))) {
		if m, ok := p.tryNumber(true); ok {
			return m.(*constMatcher).val, false, nil
		}
	}
	w := p.word()
	switch w {
	case "":
		return nil, false, p.errf("expected transform argument")
	case "raises":
		return nil, true, nil
	case "None":
		return nil, false, nil
	case "True":
		return true, false, nil
	case "False":
		return false, false, nil
	}
	return w, false, nil
}

// ===== Filter expressions =====

// filterOrExpr parses comma-joined alternatives; comma binds loosest.
func (p *parser) filterOrExpr() (filter, error) {
	f, err := p.filterAndExpr()
	if err != nil {
		return nil, err
	}
	fs := []filter{f}
	for p.peek() == ',' {
		save := p.pos
		p.pos++
		p.skipSpace()
		g, err := p.filterAndExpr()
		if err != nil {
			p.pos = save
			break
		}
		fs = append(fs, g)
	}
	if len(fs) == 1 {
		return fs[0], nil
	}
	return &filterOr{fs: fs}, nil
}

func (p *parser) filterAndExpr() (filter, error) {
	f, err := p.filterUnary()
	if err != nil {
		return nil, err
	}
	fs := []filter{f}
	for p.peek() == '&' {
		save := p.pos
		p.pos++
		p.skipSpace()
		g, err := p.filterUnary()
		if err != nil {
			p.pos = save
			break
		}
		fs = append(fs, g)
	}
	if len(fs) == 1 {
		return fs[0], nil
	}
	return &filterAnd{fs: fs}, nil
}

func (p *parser) filterUnary() (filter, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '!' && p.at(1) != '=':
		p.pos++
		f, err := p.filterUnary()
		if err != nil {
			return nil, err
		}
		return &filterNot{f: f}, nil
	case c == '(':
		p.pos++
		f, err := p.filterOrExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		var out filter = &filterGroup{f: f}
		if p.peek() == '?' {
			p.pos++
			out = &filterFirst{f: out}
		}
		return out, nil
	default:
		return p.filterCondExpr()
	}
}

func (p *parser) filterCondExpr() (filter, error) {
	keyOps, err := p.filterKeyOps()
	if err != nil {
		return nil, err
	}
	if len(keyOps) == 0 {
		return nil, p.errf("expected filter key")
	}
	var ts []transformCall
	if p.peek() == '|' {
		ts, err = p.transformCalls()
		if err != nil {
			return nil, err
		}
	}
	pk, ok := p.predAt()
	if !ok {
		return nil, p.errf("expected filter predicate")
	}
	val, err := p.valueMatcher()
	if err != nil {
		return nil, err
	}
	f := &filterCond{keyOps: keyOps, pred: pk, val: val, transforms: ts}
	if p.peek() == '?' {
		p.pos++
		f.first = true
	}
	return f, nil
}

// filterKeyOps parses the mini key path on the left of a filter
// predicate: dotted keys, slots, and attrs.
func (p *parser) filterKeyOps() ([]op, error) {
	var ops []op
	first := true
	for {
		c := p.peek()
		switch {
		case c == '.' && !first:
			p.pos++
			m, err := p.keyMatcher(posFilterKey)
			if err != nil {
				return nil, err
			}
			ops = append(ops, &keyOp{m: m})
		case c == '[':
			p.pos++
			if o, ok := p.trySlice(); ok {
				ops = append(ops, o)
				break
			}
			m, err := p.keyMatcher(posSlot)
			if err != nil {
				return nil, err
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			ops = append(ops, &slotOp{m: m})
		case c == '@':
			p.pos++
			m, err := p.keyMatcher(posAttr)
			if err != nil {
				return nil, err
			}
			ops = append(ops, &attrOp{m: m})
		case first:
			m, err := p.keyMatcher(posFilterKey)
			if err != nil {
				return nil, err
			}
			ops = append(ops, &keyOp{m: m})
		default:
			return ops, nil
		}
		first = false
	}
}

// ===== Values =====

// valueMatcher parses the right side of a guard or filter predicate.
// Bare words are not values; strings must be quoted.
func (p *parser) valueMatcher() (matcher, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case isQuote(c), c == 'b' && isQuote(p.at(1)), strings.HasPrefix(p.src[p.pos:], "..."):
		return p.stringGlobValue()
	case c == '/':
		return p.regexLit(false)
	case c == '*':
		p.pos++
		if p.peek() == '?' {
			p.pos++
			return &wildcardMatcher{first: true}, nil
		}
		return &wildcardMatcher{}, nil
	case c == '$':
		return p.dollar()
	case c == '(':
		return p.valueGroup()
	case c == '[':
		return p.containerList("")
	case c == '{':
		return p.containerDictOrSet("")
	case c == 'l' && p.at(1) == '[':
		p.pos++
		return p.containerList("l")
	case c == 't' && p.at(1) == '[':
		p.pos++
		return p.containerList("t")
	case c == 'd' && p.at(1) == '{':
		p.pos++
		return p.containerDictOrSet("d")
	case c == 's' && p.at(1) == '{':
		p.pos++
		return p.containerDictOrSet("s")
	case c == 'f' && p.at(1) == 's' && p.at(2) == '{':
		p.pos += 2
		return p.containerDictOrSet("fs")
	case c == '#' && isQuote(p.at(1)):
		return p.quotedNumeric()
	case isDigit(c) || (c == '-' && isDigit(p.at(1))):
		if m, ok := p.tryNumber(true); ok {
			return m, nil
		}
		return nil, p.errf("bad numeric value")
	default:
		save := p.pos
		w := p.word()
		switch w {
		case "None":
			return &constMatcher{val: nil}, nil
		case "True":
			return &constMatcher{val: true}, nil
		case "False":
			return &constMatcher{val: false}, nil
		}
		p.pos = save
		return nil, p.errf("expected a value")
	}
}

func (p *parser) valueGroup() (matcher, error) {
	p.pos++ // '('
	var alts []matcher
	for {
		p.skipSpace()
		m, err := p.valueMatcher()
		if err != nil {
			return nil, err
		}
		alts = append(alts, m)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return &valueGroupMatcher{alts: alts}, nil
		default:
			return nil, p.errf("bad value group")
		}
	}
}

// stringGlobValue parses quoted literals joined by ... globs, like
// "hello"..."world". A lone quoted literal stays a plain constant.
func (p *parser) stringGlobValue() (matcher, error) {
	var parts []any
	isBytes := false
	gotGlob := false
	for {
		c := p.peek()
		switch {
		case isQuote(c):
			s, err := p.quoted()
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		case c == 'b' && isQuote(p.at(1)):
			p.pos++
			s, err := p.quoted()
			if err != nil {
				return nil, err
			}
			if len(parts) == 0 {
				isBytes = true
			}
			parts = append(parts, []byte(s))
		case strings.HasPrefix(p.src[p.pos:], "..."):
			p.pos += 3
			g := &globMatcher{}
			if p.peek() == '/' {
				pm, err := p.regexLit(false)
				if err != nil {
					return nil, err
				}
				g.pattern = pm
			}
			p.globCount(g)
			parts = append(parts, g)
			gotGlob = true
		default:
			goto done
		}
	}
done:
	if len(parts) == 1 && !gotGlob {
		switch t := parts[0].(type) {
		case string:
			return &constMatcher{val: t, quoted: true}, nil
		case []byte:
			return &constMatcher{val: t}, nil
		}
	}
	m, err := newStringGlobMatcher(parts, isBytes)
	if err != nil {
		return nil, p.errf("%v", err)
	}
	return m, nil
}

// globCount parses the count suffix of a ... glob: N caps the
// consumption, N:M ranges it, N: sets a floor. The bare-colon min form
// is only taken when a list or glob continuation follows, so dict
// separators stay untouched.
func (p *parser) globCount(g *globMatcher) {
	if isDigit(p.peek()) {
		n := p.scanUint()
		if p.peek() == ':' && isDigit(p.at(1)) {
			p.pos++
			m := p.scanUint()
			g.min, g.max = n, &m
			return
		}
		if p.peek() == ':' && minFormAhead(p.at(1)) {
			p.pos++
			g.min = n
			return
		}
		g.max = &n
		return
	}
	if p.peek() == ':' && isDigit(p.at(1)) {
		p.pos++
		m := p.scanUint()
		g.max = &m
	}
}

func minFormAhead(c byte) bool {
	return c == ',' || c == ']' || c == '}' || c == ')' || isQuote(c) || c == '.' || c == 0
}

// ===== Container literals =====

func (p *parser) containerElem() (matcher, error) {
	if strings.HasPrefix(p.src[p.pos:], "...") {
		p.pos += 3
		g := &globMatcher{}
		if p.peek() == '/' {
			pm, err := p.regexLit(false)
			if err != nil {
				return nil, err
			}
			g.pattern = pm
		}
		p.globCount(g)
		return g, nil
	}
	return p.valueMatcher()
}

func (p *parser) containerList(prefix string) (matcher, error) {
	p.pos++ // '['
	var elems []matcher
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			break
		}
		m, err := p.containerElem()
		if err != nil {
			return nil, err
		}
		elems = append(elems, m)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() == ']' {
			p.pos++
			break
		}
		return nil, p.errf("bad container literal")
	}
	return &containerListMatcher{elems: elems, prefix: prefix}, nil
}

// containerDictOrSet resolves {..} literals: a colon after the first
// element means dict, otherwise set. An unprefixed {} is a dict, the
// way the literal reads in most data languages.
func (p *parser) containerDictOrSet(prefix string) (matcher, error) {
	p.pos++ // '{'
	p.skipSpace()
	setPrefix := prefix == "s" || prefix == "fs"
	if p.peek() == '}' {
		p.pos++
		if setPrefix {
			return &containerSetMatcher{prefix: prefix}, nil
		}
		return &containerDictMatcher{prefix: prefix}, nil
	}
	first, err := p.containerElem()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ':' && !setPrefix {
		return p.containerDict(prefix, first)
	}
	if prefix == "d" {
		return nil, p.errf("d{ requires key: value entries")
	}
	elems := []matcher{first}
	for {
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			m, err := p.containerElem()
			if err != nil {
				return nil, err
			}
			elems = append(elems, m)
		case '}':
			p.pos++
			return &containerSetMatcher{elems: elems, prefix: prefix}, nil
		default:
			return nil, p.errf("bad set literal")
		}
	}
}

func (p *parser) containerDict(prefix string, firstKey matcher) (matcher, error) {
	var entries []dictEntry
	add := func(keym matcher) error {
		if err := p.expect(':'); err != nil {
			return err
		}
		p.skipSpace()
		v, err := p.valueMatcher()
		if err != nil {
			return err
		}
		if g, ok := keym.(*globMatcher); ok {
			entries = append(entries, dictEntry{glob: g, val: v})
		} else {
			entries = append(entries, dictEntry{key: keym, val: v})
		}
		return nil
	}
	if err := add(firstKey); err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			k, err := p.containerElem()
			if err != nil {
				return nil, err
			}
			if err := add(k); err != nil {
				return nil, err
			}
		case '}':
			p.pos++
			return &containerDictMatcher{entries: entries, prefix: prefix}, nil
		default:
			return nil, p.errf("bad dict literal")
		}
	}
}
