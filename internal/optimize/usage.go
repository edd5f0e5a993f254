package optimize

import (
	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// markUsed recomputes used and uses with a backward pass. Dependents are roots,
// and so are comparisons when they are kept. Markers are always used. Existing
// CSkip operators are never used; emit derives its own.
func (a *analysis[T]) markUsed() {
	clear(a.used)
	clear(a.uses)
	for _, d := range a.play.Dependents() {
		v := a.rep[d]
		a.uses[v]++
		a.used[a.rnd.OpOf(v)] = true
	}
	for op := len(a.steps) - 1; op >= 0; op-- {
		s := a.steps[op]
		if a.dup[op] {
			continue
		}
		switch {
		case s.Code.Marker():
			a.used[op] = true
			continue
		case s.Code.Compare() && a.keepCompare:
			a.used[op] = true
		case s.Code == opcode.CSkip:
			continue
		}
		if !a.used[op] {
			continue
		}
		for slot := range opcode.VarSlots(s.Code, s.Args) {
			v := a.rep[s.Args[slot]]
			a.uses[v]++
			a.used[a.rnd.OpOf(v)] = true
		}
	}
}

// reach marks the emitted operators needed to compute the dependents and kept
// comparisons when the conditional expression at cexp takes the given branch.
// A negative cexp follows every branch.
func (a *analysis[T]) reach(cexp tape.OpIndex, branch bool) []bool {
	need := make([]bool, len(a.steps))
	for _, d := range a.play.Dependents() {
		need[a.rnd.OpOf(a.rep[d])] = true
	}
	for op := tape.OpIndex(len(a.steps) - 1); op >= 0; op-- {
		if !a.emitted(op) {
			continue
		}
		s := a.steps[op]
		if s.Code.Compare() {
			need[op] = true
		}
		if !need[op] {
			continue
		}
		if op == cexp {
			flags := s.Args[opcode.CondFlags]
			mark := func(bit, slot int) {
				if flags&bit != 0 {
					need[a.rnd.OpOf(a.rep[s.Args[slot]])] = true
				}
			}
			mark(opcode.FlagLeftVar, opcode.CondLeft)
			mark(opcode.FlagRightVar, opcode.CondRight)
			if branch {
				mark(opcode.FlagTrueVar, opcode.CExpTrue)
			} else {
				mark(opcode.FlagFalseVar, opcode.CExpFalse)
			}
			continue
		}
		for _, v := range a.varArgs(op) {
			need[a.rnd.OpOf(v)] = true
		}
	}
	return need
}
