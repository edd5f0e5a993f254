package optimize

import (
	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// emit re-records the emitted operators into a new tape.
func (a *analysis[T]) emit() (*tape.Tape[T], error) {
	r := tape.NewRecorder[T]()
	newVar := make([]tape.VarIndex, a.play.NumVar())
	newOp := make([]tape.OpIndex, len(a.steps))
	mapVar := func(v int) int { return int(newVar[a.rep[v]]) }

	type pending struct {
		start int
		plan  skipPlan
	}
	var patches []pending

	for op, s := range a.steps {
		o := tape.OpIndex(op)
		newOp[o] = -1
		if s.Code == opcode.Begin {
			newOp[o] = 0
			continue
		}
		if s.Code == opcode.End || !a.emitted(o) {
			continue
		}

		newOp[o] = tape.OpIndex(r.NumOp())
		var (
			first tape.VarIndex
			err   error
		)
		switch t := a.sums[o]; {
		case s.Code == opcode.Inv:
			first, err = r.NewIndependent()
		case t != nil:
			add := make([]int, len(t.add))
			for i, v := range t.add {
				add[i] = int(newVar[v])
			}
			sub := make([]int, len(t.sub))
			for i, v := range t.sub {
				sub[i] = int(newVar[v])
			}
			first, err = r.NewOperator(opcode.CSum, opcode.CSumArgs(r.NewParameter(t.param), add, sub)...)
		default:
			args := append([]int(nil), s.Args...)
			for slot := range opcode.VarSlots(s.Code, args) {
				args[slot] = mapVar(args[slot])
			}
			for slot := range opcode.ParamSlots(s.Code, args) {
				args[slot] = r.NewParameter(a.play.Parameter(args[slot]))
			}
			first, err = r.NewOperator(s.Code, args...)
		}
		if err != nil {
			return nil, err
		}
		for i := 0; i < s.Code.NumRes(); i++ {
			newVar[s.Var+tape.VarIndex(i)] = first + tape.VarIndex(i)
		}

		for _, plan := range a.skips[o] {
			c := a.steps[plan.cexp]
			rel, flags := opcode.Rel(c.Args[opcode.CondRel]), c.Args[opcode.CondFlags]&(opcode.FlagLeftVar|opcode.FlagRightVar)
			operand := func(bit, slot int) int {
				if flags&bit != 0 {
					return mapVar(c.Args[slot])
				}
				return r.NewParameter(a.play.Parameter(c.Args[slot]))
			}
			left := operand(opcode.FlagLeftVar, opcode.CondLeft)
			right := operand(opcode.FlagRightVar, opcode.CondRight)
			start := r.NumArg()
			// Lists are filled in once their operators have been recorded.
			args := opcode.CSkipArgs(rel, flags, left, right,
				make([]int, len(plan.ifTrue)), make([]int, len(plan.ifFalse)))
			if _, err := r.NewOperator(opcode.CSkip, args...); err != nil {
				return nil, err
			}
			patches = append(patches, pending{start: start, plan: plan})
		}
	}

	for _, p := range patches {
		for i, old := range append(append([]tape.OpIndex(nil), p.plan.ifTrue...), p.plan.ifFalse...) {
			if err := r.ReplaceArg(p.start+opcode.CSkipListSlot(i), int(newOp[old])); err != nil {
				return nil, err
			}
		}
	}

	deps := a.play.Dependents()
	out := make([]tape.VarIndex, len(deps))
	for i, d := range deps {
		out[i] = newVar[a.rep[d]]
	}
	return r.Seal(out)
}
