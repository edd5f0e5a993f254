package optimize

import (
	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// sumTerms is a flattened cumulative sum: param + sum(add) - sum(sub).
type sumTerms[T tape.Base] struct {
	param T
	add   []tape.VarIndex
	sub   []tape.VarIndex
}

// classifySums marks as members the additive operators whose single use is by
// another additive operator, then flattens every remaining additive operator that
// absorbs at least one member (or already is a CSum) into sumTerms. It returns the
// number of sums and of members.
func (a *analysis[T]) classifySums() (roots, members int) {
	addUses := make([]int, len(a.uses))
	for op, s := range a.steps {
		if !a.used[op] || a.dup[op] || !s.Code.Additive() {
			continue
		}
		for slot := range opcode.VarSlots(s.Code, s.Args) {
			addUses[a.rep[s.Args[slot]]]++
		}
	}
	for op, s := range a.steps {
		if !a.used[op] || a.dup[op] || !s.Code.Additive() {
			continue
		}
		if a.uses[s.Var] == 1 && addUses[s.Var] == 1 {
			a.member[op] = true
			members++
		}
	}

	a.sums = make(map[tape.OpIndex]*sumTerms[T])
	for op, s := range a.steps {
		if !a.emitted(tape.OpIndex(op)) || !s.Code.Additive() {
			continue
		}
		if s.Code != opcode.CSum && !a.absorbs(s) {
			continue
		}
		t := &sumTerms[T]{}
		a.flatten(tape.OpIndex(op), false, t)
		a.sums[tape.OpIndex(op)] = t
		roots++
	}
	return roots, members
}

func (a *analysis[T]) absorbs(s tape.Step) bool {
	for slot := range opcode.VarSlots(s.Code, s.Args) {
		if a.member[a.rnd.OpOf(a.rep[s.Args[slot]])] {
			return true
		}
	}
	return false
}

// flatten appends the terms of op to t, negated when neg is set, descending into
// member operands.
func (a *analysis[T]) flatten(op tape.OpIndex, neg bool, t *sumTerms[T]) {
	term := func(arg int, neg bool) {
		v := a.rep[arg]
		if m := a.rnd.OpOf(v); a.member[m] {
			a.flatten(m, neg, t)
			return
		}
		if neg {
			t.sub = append(t.sub, v)
		} else {
			t.add = append(t.add, v)
		}
	}
	constant := func(arg int, neg bool) {
		if neg {
			t.param -= a.play.Parameter(arg)
		} else {
			t.param += a.play.Parameter(arg)
		}
	}

	s := a.steps[op]
	switch s.Code {
	case opcode.AddVV:
		term(s.Args[0], neg)
		term(s.Args[1], neg)
	case opcode.AddPV:
		constant(s.Args[0], neg)
		term(s.Args[1], neg)
	case opcode.SubVV:
		term(s.Args[0], neg)
		term(s.Args[1], !neg)
	case opcode.SubPV:
		constant(s.Args[0], neg)
		term(s.Args[1], !neg)
	case opcode.SubVP:
		term(s.Args[0], neg)
		constant(s.Args[1], !neg)
	case opcode.CSum:
		param, add, sub := opcode.CSumParts(s.Args)
		constant(param, neg)
		for _, v := range add {
			term(v, neg)
		}
		for _, v := range sub {
			term(v, !neg)
		}
	}
}
