package optimize

import (
	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// skipPlan is a CSkip to be emitted right after some input operator. The lists
// hold input operator indices; emit translates them once they are recorded.
type skipPlan struct {
	cexp    tape.OpIndex
	ifTrue  []tape.OpIndex
	ifFalse []tape.OpIndex
}

// planSkips finds, for every emitted conditional expression comparing at least one
// variable, the operators only one branch needs. They are listed on a CSkip placed
// right after the comparison operands are available, so a zero-order sweep can
// skip them. Operators recorded before that point cannot be listed. It returns the
// number of skips planned and of operators listed.
func (a *analysis[T]) planSkips() (skips, listed int) {
	a.skips = make(map[tape.OpIndex][]skipPlan)
	for op, s := range a.steps {
		c := tape.OpIndex(op)
		if s.Code != opcode.CExp || !a.emitted(c) {
			continue
		}
		flags := s.Args[opcode.CondFlags]
		if flags&(opcode.FlagLeftVar|opcode.FlagRightVar) == 0 {
			continue
		}
		pos := a.lastInv
		for _, bit := range [...]int{opcode.FlagLeftVar, opcode.FlagRightVar} {
			slot := opcode.CondLeft
			if bit == opcode.FlagRightVar {
				slot = opcode.CondRight
			}
			if flags&bit != 0 {
				pos = max(pos, a.rnd.OpOf(a.rep[s.Args[slot]]))
			}
		}

		onTrue, onFalse := a.reach(c, true), a.reach(c, false)
		plan := skipPlan{cexp: c}
		for t := pos + 1; t < tape.OpIndex(len(a.steps)); t++ {
			if !a.emitted(t) || a.steps[t].Code.NumRes() == 0 {
				continue
			}
			if !onTrue[t] {
				plan.ifTrue = append(plan.ifTrue, t)
			}
			if !onFalse[t] {
				plan.ifFalse = append(plan.ifFalse, t)
			}
		}
		if len(plan.ifTrue)+len(plan.ifFalse) == 0 {
			continue
		}
		a.skips[pos] = append(a.skips[pos], plan)
		skips++
		listed += len(plan.ifTrue) + len(plan.ifFalse)
	}
	return skips, listed
}
