package ad

import "github.com/born-ml/adtape/internal/opcode"

// Rel is a relation between two scalars.
type Rel = opcode.Rel

// Relations accepted by CondExp.
const (
	Lt = opcode.Lt
	Le = opcode.Le
	Eq = opcode.Eq
	Ge = opcode.Ge
	Gt = opcode.Gt
	Ne = opcode.Ne
)

// compare evaluates a rel b and, when a variable is involved, records the outcome
// so a Function can report when a new point takes a different branch.
func compare[T Base](rel Rel, a, b AD[T]) bool {
	holds := opcode.Holds(rel, a.val, b.val)
	r := recordingOf(a, b)
	if r == nil {
		return holds
	}
	code, swap, ok := opcode.CompareCode(rel, a.rec != nil, b.rec != nil, holds)
	if !ok {
		return holds
	}
	if swap {
		a, b = b, a
	}
	r.record(code, r.operand(a), r.operand(b))
	return holds
}

// Lt reports a < b.
func (a AD[T]) Lt(b AD[T]) bool { return compare(Lt, a, b) }

// Le reports a <= b.
func (a AD[T]) Le(b AD[T]) bool { return compare(Le, a, b) }

// Gt reports a > b.
func (a AD[T]) Gt(b AD[T]) bool { return compare(Gt, a, b) }

// Ge reports a >= b.
func (a AD[T]) Ge(b AD[T]) bool { return compare(Ge, a, b) }

// Eq reports a == b.
func (a AD[T]) Eq(b AD[T]) bool { return compare(Eq, a, b) }

// Ne reports a != b.
func (a AD[T]) Ne(b AD[T]) bool { return compare(Ne, a, b) }

// CondExp returns ifTrue when left rel right holds and ifFalse otherwise. Unlike
// an if statement on a comparison, the choice is made again every time the
// function is evaluated, and only the chosen value is differentiated.
func CondExp[T Base](rel Rel, left, right, ifTrue, ifFalse AD[T]) AD[T] {
	holds := opcode.Holds(rel, left.val, right.val)
	r := recordingOf(left, right, ifTrue, ifFalse)
	pick := ifFalse
	if holds {
		pick = ifTrue
	}
	if r == nil || (left.rec == nil && right.rec == nil) {
		return pick
	}
	flags := 0
	for bit, x := range [...]AD[T]{left, right, ifTrue, ifFalse} {
		if x.rec != nil {
			flags |= 1 << bit
		}
	}
	idx := r.record(opcode.CExp, int(rel), flags,
		r.operand(left), r.operand(right), r.operand(ifTrue), r.operand(ifFalse))
	return r.variable(pick.val, idx)
}
