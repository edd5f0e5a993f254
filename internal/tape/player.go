package tape

import (
	"iter"
	"sync"

	"github.com/born-ml/adtape/internal/opcode"
)

// Step is one operator as seen by an iterator. Args aliases the tape and must not
// be modified.
type Step struct {
	Op   OpIndex
	Code opcode.Code
	Args []int
	Var  VarIndex // first result variable; for result-less operators, the next variable
}

// Player is a read-only view of a sealed tape. It is safe for concurrent use.
type Player[T Base] struct {
	tape *Tape[T]

	randomOnce sync.Once
	random     *Random
}

// NewPlayer wraps a sealed tape.
func NewPlayer[T Base](t *Tape[T]) *Player[T] {
	return &Player[T]{tape: t}
}

// Tape returns the underlying tape.
func (p *Player[T]) Tape() *Tape[T] { return p.tape }

// NumOp returns the number of operators.
func (p *Player[T]) NumOp() int { return len(p.tape.codes) }

// NumVar returns the number of variables.
func (p *Player[T]) NumVar() int { return p.tape.numVar }

// NumParam returns the number of parameters.
func (p *Player[T]) NumParam() int { return len(p.tape.params) }

// NumIndependent returns the number of independent variables.
func (p *Player[T]) NumIndependent() int { return p.tape.numInd }

// Dependents returns the dependent variables. The slice is shared, do not modify.
func (p *Player[T]) Dependents() []VarIndex { return p.tape.deps }

// Parameter returns the i-th constant.
func (p *Player[T]) Parameter(i int) T { return p.tape.params[i] }

// Parameters returns the parameter table. The slice is shared, do not modify.
func (p *Player[T]) Parameters() []T { return p.tape.params }

// Code returns the opcode of an operator.
func (p *Player[T]) Code(op OpIndex) opcode.Code { return p.tape.codes[op] }

// Iterator walks a tape one operator at a time, forward or backward, keeping track
// of argument offsets and result indices without any per-operator index.
type Iterator[T Base] struct {
	tape    *Tape[T]
	reverse bool
	op      OpIndex
	arg     int
	v       VarIndex
	cur     Step
}

// Forward returns an iterator positioned before Begin.
func (p *Player[T]) Forward() *Iterator[T] {
	return &Iterator[T]{tape: p.tape}
}

// Reverse returns an iterator positioned after End.
func (p *Player[T]) Reverse() *Iterator[T] {
	return &Iterator[T]{
		tape:    p.tape,
		reverse: true,
		op:      OpIndex(len(p.tape.codes) - 1),
		arg:     len(p.tape.args),
		v:       VarIndex(p.tape.numVar),
	}
}

// Next advances to the next operator in iteration order.
func (it *Iterator[T]) Next() bool {
	t := it.tape
	if it.reverse {
		if it.op < 0 {
			return false
		}
		code := t.codes[it.op]
		n := code.NumArg()
		if code.Variadic() {
			n = opcode.ArgCountBackward(code, t.args[it.arg-1])
		}
		it.arg -= n
		it.v -= VarIndex(code.NumRes())
		it.cur = Step{Op: it.op, Code: code, Args: t.args[it.arg : it.arg+n : it.arg+n], Var: it.v}
		it.op--
		return true
	}
	if int(it.op) >= len(t.codes) {
		return false
	}
	code := t.codes[it.op]
	n := opcode.ArgCount(code, t.args[it.arg:])
	it.cur = Step{Op: it.op, Code: code, Args: t.args[it.arg : it.arg+n : it.arg+n], Var: it.v}
	it.arg += n
	it.v += VarIndex(code.NumRes())
	it.op++
	return true
}

// Step returns the operator the iterator is positioned on.
func (it *Iterator[T]) Step() Step { return it.cur }

// All yields every operator in recording order.
func (p *Player[T]) All() iter.Seq2[OpIndex, Step] {
	return func(yield func(OpIndex, Step) bool) {
		it := p.Forward()
		for it.Next() {
			if !yield(it.cur.Op, it.cur) {
				return
			}
		}
	}
}

// Backward yields every operator in reverse recording order.
func (p *Player[T]) Backward() iter.Seq2[OpIndex, Step] {
	return func(yield func(OpIndex, Step) bool) {
		it := p.Reverse()
		for it.Next() {
			if !yield(it.cur.Op, it.cur) {
				return
			}
		}
	}
}
