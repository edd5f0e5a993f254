// Package tape holds the recorded operation sequence.
//
// A Tape is built once by a Recorder and is immutable after Seal. It consists of
// an operator stream, one flat argument array shared by all operators, and a
// parameter table. Operators do not store their argument offsets or result
// indices: both follow from the operator position and the opcode table, which is
// what the Player iterators reconstruct.
//
// Variable 0 is the result of Begin and is never read. Independent variables
// occupy 1..NumIndependent. Parameter 0 holds NaN.
package tape

import (
	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
)

// Base is the numeric type coefficients are computed in.
type Base interface {
	~float32 | ~float64
}

// VarIndex addresses a variable, the row of a coefficient buffer.
type VarIndex int

// OpIndex addresses an operator by its recording position.
type OpIndex int

// Tape is a sealed operation sequence.
type Tape[T Base] struct {
	codes  []opcode.Code
	args   []int
	params []T
	numVar int
	numInd int
	deps   []VarIndex
}

// NumOp returns the number of operators including Begin and End.
func (t *Tape[T]) NumOp() int { return len(t.codes) }

// NumVar returns the number of variables including the Begin phantom.
func (t *Tape[T]) NumVar() int { return t.numVar }

// NumArg returns the length of the shared argument array.
func (t *Tape[T]) NumArg() int { return len(t.args) }

// NumParam returns the length of the parameter table.
func (t *Tape[T]) NumParam() int { return len(t.params) }

// NumIndependent returns the number of independent variables.
func (t *Tape[T]) NumIndependent() int { return t.numInd }

// Dependents returns a copy of the dependent variable indices.
func (t *Tape[T]) Dependents() []VarIndex {
	return append([]VarIndex(nil), t.deps...)
}

// Parameter returns the i-th constant.
func (t *Tape[T]) Parameter(i int) T { return t.params[i] }

// Validate re-checks the structural invariants of the tape: Begin first and End
// last, independents contiguous after Begin, every argument variable strictly
// below its operator's first result, parameter indices in range, variable-arity
// payloads self-consistent and conditional-skip lists pointing forward.
func (t *Tape[T]) Validate() error {
	n := len(t.codes)
	if n < 2 || t.codes[0] != opcode.Begin || t.codes[n-1] != opcode.End {
		return errors.Wrap(ErrCorrupt, "tape must start with Begin and end with End")
	}
	arg, v, numInd, invDone := 0, 0, 0, false
	for op, code := range t.codes {
		if !code.Valid() {
			return errors.Wrapf(ErrCorrupt, "op %d: unknown code %d", op, uint8(code))
		}
		if code == opcode.Inv {
			if invDone {
				return errors.Wrapf(ErrIndependentOrder, "op %d", op)
			}
			numInd++
		} else if op > 0 {
			invDone = true
		}
		if op > 0 && code == opcode.Begin || op < n-1 && code == opcode.End {
			return errors.Wrapf(ErrCorrupt, "op %d: misplaced %s", op, code)
		}
		if code.Variadic() && arg+opcode.HeaderLen(code) > len(t.args) {
			return errors.Wrapf(ErrCorrupt, "op %d: %s payload truncated", op, code)
		}
		if code.Variadic() && !opcode.ValidHeader(code, t.args[arg:]) {
			return errors.Wrapf(ErrArgCount, "op %d: %s header", op, code)
		}
		cnt := opcode.ArgCount(code, t.args[arg:])
		if arg+cnt > len(t.args) {
			return errors.Wrapf(ErrCorrupt, "op %d: %s needs %d arguments", op, code, cnt)
		}
		args := t.args[arg : arg+cnt]
		if err := checkArgs(code, args, v, len(t.params)); err != nil {
			return errors.Wrapf(err, "op %d", op)
		}
		if code.Variadic() && opcode.ArgCountBackward(code, args[cnt-1]) != cnt {
			return errors.Wrapf(ErrCorrupt, "op %d: %s trailing count mismatch", op, code)
		}
		if code == opcode.CSkip {
			_, _, _, _, ifTrue, ifFalse := opcode.CSkipParts(args)
			for _, target := range append(append([]int(nil), ifTrue...), ifFalse...) {
				if target <= op || target >= n-1 {
					return errors.Wrapf(ErrCorrupt, "op %d: skip target %d not after skip", op, target)
				}
			}
		}
		arg += cnt
		v += code.NumRes()
	}
	if arg != len(t.args) {
		return errors.Wrapf(ErrCorrupt, "consumed %d of %d arguments", arg, len(t.args))
	}
	if numInd != t.numInd {
		return errors.Wrapf(ErrCorrupt, "counted %d independents, tape holds %d", numInd, t.numInd)
	}
	if v != t.numVar {
		return errors.Wrapf(ErrCorrupt, "counted %d variables, tape holds %d", v, t.numVar)
	}
	for _, d := range t.deps {
		if d < 1 || int(d) >= t.numVar {
			return errors.Wrapf(ErrDependent, "variable %d", d)
		}
	}
	return nil
}

// checkArgs validates argument indices of one operator whose first result will be
// variable next.
func checkArgs(code opcode.Code, args []int, next, numParam int) error {
	for slot := range opcode.VarSlots(code, args) {
		if a := args[slot]; a < 1 || a >= next {
			return errors.Wrapf(ErrDAG, "%s argument %d is variable %d, next variable is %d",
				code, slot, a, next)
		}
	}
	for slot := range opcode.ParamSlots(code, args) {
		if a := args[slot]; a < 0 || a >= numParam {
			return errors.Wrapf(ErrParameterIndex, "%s argument %d is parameter %d of %d",
				code, slot, a, numParam)
		}
	}
	if code == opcode.CExp || code == opcode.CSkip {
		if !opcode.Rel(args[opcode.CondRel]).Valid() {
			return errors.Wrapf(ErrArgCount, "%s relation %d", code, args[opcode.CondRel])
		}
	}
	return nil
}
