// Package rex decides exact containment between the languages of two regular
// expressions. It compiles both patterns to NFA programs via regexp/syntax,
// determinizes them lazily over a shared alphabet partition and walks the
// product automaton looking for a word the first pattern accepts and the
// second does not.
package rex

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"sort"
	"unicode"
)

// ErrUnsupported reports a pattern using assertions the containment check
// cannot model exactly (word boundaries, backreferences are rejected by
// regexp/syntax already).
var ErrUnsupported = errors.New("rex: unsupported assertion in pattern")

const maxRune = unicode.MaxRune

// Subset reports whether every string matched (full-string) by pattern q is
// also matched by pattern p, i.e. L(q) ⊆ L(p).
func Subset(q, p string) (bool, error) {
	qa, err := compile(q)
	if err != nil {
		return false, err
	}
	pa, err := compile(p)
	if err != nil {
		return false, err
	}

	alphabet := partition(qa, pa)

	type pair struct{ q, p string }
	start := pair{qa.start().key(), pa.start().key()}
	states := map[pair][2]stateSet{start: {qa.start(), pa.start()}}
	queue := []pair{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ss := states[cur]

		if qa.accepting(ss[0]) && !pa.accepting(ss[1]) {
			return false, nil
		}

		for _, r := range alphabet {
			nq := qa.step(ss[0], r)
			if len(nq) == 0 {
				// q cannot continue on this rune, nothing left to contain.
				continue
			}
			np := pa.step(ss[1], r)
			next := pair{nq.key(), np.key()}
			if _, seen := states[next]; !seen {
				states[next] = [2]stateSet{nq, np}
				queue = append(queue, next)
			}
		}
	}

	return true, nil
}

// automaton wraps a compiled NFA program with closure/step helpers.
type automaton struct {
	prog *syntax.Prog
}

func compile(pattern string) (*automaton, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("rex: parse %q: %w", pattern, err)
	}
	prog, err := syntax.Compile(re.Simplify())
	if err != nil {
		return nil, fmt.Errorf("rex: compile %q: %w", pattern, err)
	}

	for _, inst := range prog.Inst {
		if inst.Op == syntax.InstEmptyWidth {
			op := syntax.EmptyOp(inst.Arg)
			if op&(syntax.EmptyWordBoundary|syntax.EmptyNoWordBoundary) != 0 {
				return nil, ErrUnsupported
			}
		}
	}

	return &automaton{prog: prog}, nil
}

// stateSet is a sorted set of program counters.
type stateSet []uint32

func (s stateSet) key() string {
	b := make([]byte, 0, len(s)*4)
	for _, pc := range s {
		b = append(b, byte(pc), byte(pc>>8), byte(pc>>16), byte(pc>>24))
	}
	return string(b)
}

const (
	flagsBegin = syntax.EmptyBeginText | syntax.EmptyBeginLine
	flagsMid   = syntax.EmptyOp(0)
	flagsEnd   = syntax.EmptyEndText | syntax.EmptyEndLine
)

// start returns the ε-closure of the program entry point at text position 0.
func (a *automaton) start() stateSet {
	return a.closure([]uint32{uint32(a.prog.Start)}, flagsBegin)
}

// accepting reports whether the set reaches a Match instruction at end of
// text.
func (a *automaton) accepting(set stateSet) bool {
	closed := a.closure(set, flagsEnd)
	for _, pc := range closed {
		if a.prog.Inst[pc].Op == syntax.InstMatch {
			return true
		}
	}
	return false
}

// step consumes rune r from every state in the set and returns the ε-closed
// successor set.
func (a *automaton) step(set stateSet, r rune) stateSet {
	var out []uint32
	for _, pc := range set {
		inst := &a.prog.Inst[pc]
		switch inst.Op {
		case syntax.InstRune, syntax.InstRune1, syntax.InstRuneAny, syntax.InstRuneAnyNotNL:
			if inst.MatchRune(r) {
				out = append(out, inst.Out)
			}
		}
	}
	return a.closure(out, flagsMid)
}

// closure follows every empty-width edge reachable from the given states
// under the satisfied assertion flags and returns the sorted, de-duplicated
// result.
func (a *automaton) closure(pcs []uint32, flags syntax.EmptyOp) stateSet {
	seen := make(map[uint32]bool)
	var out []uint32

	var walk func(pc uint32)
	walk = func(pc uint32) {
		if seen[pc] {
			return
		}
		seen[pc] = true

		inst := &a.prog.Inst[pc]
		switch inst.Op {
		case syntax.InstAlt, syntax.InstAltMatch:
			walk(inst.Out)
			walk(inst.Arg)
		case syntax.InstCapture, syntax.InstNop:
			walk(inst.Out)
		case syntax.InstEmptyWidth:
			if syntax.EmptyOp(inst.Arg)&^flags == 0 {
				walk(inst.Out)
			}
		case syntax.InstFail:
			// dead end
		default:
			out = append(out, pc)
		}
	}

	for _, pc := range pcs {
		walk(pc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// partition computes one representative rune per interval of the alphabet
// partition induced by both programs' rune ranges. Transitions are constant
// within each interval, so testing the representatives is exact.
func partition(as ...*automaton) []rune {
	bounds := map[rune]bool{0: true}

	add := func(lo, hi rune) {
		bounds[lo] = true
		if hi < maxRune {
			bounds[hi+1] = true
		}
	}

	for _, a := range as {
		for i := range a.prog.Inst {
			inst := &a.prog.Inst[i]
			switch inst.Op {
			case syntax.InstRuneAny:
				add(0, maxRune)
			case syntax.InstRuneAnyNotNL:
				add(0, '\n'-1)
				add('\n'+1, maxRune)
			case syntax.InstRune, syntax.InstRune1:
				if len(inst.Rune) == 1 {
					// Single rune, possibly case-folded.
					r := inst.Rune[0]
					add(r, r)
					if syntax.Flags(inst.Arg)&syntax.FoldCase != 0 {
						for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
							add(f, f)
						}
					}
					continue
				}
				for i := 0; i+1 < len(inst.Rune); i += 2 {
					add(inst.Rune[i], inst.Rune[i+1])
				}
			}
		}
	}

	reps := make([]rune, 0, len(bounds))
	for r := range bounds {
		reps = append(reps, r)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i] < reps[j] })
	return reps
}
