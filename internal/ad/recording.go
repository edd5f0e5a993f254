// Package ad records scalar computations onto a tape and turns the tape into a
// differentiable function.
//
// A computation starts with Independent, which returns a Recording and one AD
// value per independent variable. Arithmetic on AD values computes the value and,
// when an operand is a variable, appends an operator to the recording. Dependent
// ends the recording and returns a Function that evaluates Taylor coefficients and
// adjoints at new points.
//
// A Recording is an explicit handle rather than ambient state, so any number of
// recordings may be in progress at once, one per goroutine. Mixing values from two
// recordings panics with ErrForeignVariable.
package ad

import (
	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// Base is the set of scalar types a tape can be recorded in.
type Base = tape.Base

// Recording collects the operators of one computation.
type Recording[T Base] struct {
	rec   *tape.Recorder[T]
	x     []T
	ended bool
}

// Independent starts a recording with one independent variable per element of x.
// The elements are the values the computation is recorded at.
func Independent[T Base](x []T) (*Recording[T], []AD[T]) {
	r := &Recording[T]{rec: tape.NewRecorder[T](), x: append([]T(nil), x...)}
	vars := make([]AD[T], len(x))
	for i, v := range x {
		idx, err := r.rec.NewIndependent()
		if err != nil {
			panic(err)
		}
		vars[i] = AD[T]{val: v, idx: idx, rec: r}
	}
	return r, vars
}

// NumOp returns the number of operators recorded so far.
func (r *Recording[T]) NumOp() int { return r.rec.NumOp() }

// Dependent ends the recording. y lists the dependent variables; constants among
// them are recorded as parameter operators.
func (r *Recording[T]) Dependent(y []AD[T]) (*Function[T], error) {
	if r.ended {
		return nil, errors.WithStack(ErrRecordingEnded)
	}
	deps := make([]tape.VarIndex, len(y))
	for i, a := range y {
		switch {
		case a.rec == nil:
			deps[i] = r.record(opcode.Par, r.rec.NewParameter(a.val))
		case a.rec != r:
			return nil, errors.Wrapf(ErrForeignVariable, "dependent %d", i)
		default:
			deps[i] = a.idx
		}
	}
	tp, err := r.rec.Seal(deps)
	if err != nil {
		return nil, errors.Wrap(err, "ad: seal")
	}
	r.ended = true
	return newFunction(tape.NewPlayer(tp), r.x)
}

// Abort ends the recording without producing a function.
func (r *Recording[T]) Abort() {
	r.ended = true
	r.rec = nil
}

// record appends an operator. Arguments are built by this package, so a recorder
// error is a bug and panics.
func (r *Recording[T]) record(code opcode.Code, args ...int) tape.VarIndex {
	if r.ended {
		panic(errors.WithStack(ErrRecordingEnded))
	}
	v, err := r.rec.NewOperator(code, args...)
	if err != nil {
		panic(errors.Wrapf(err, "ad: record %s", code))
	}
	return v
}

// operand returns the tape argument for a: its variable index, or the index of a
// parameter holding its value.
func (r *Recording[T]) operand(a AD[T]) int {
	if a.rec == nil {
		return r.rec.NewParameter(a.val)
	}
	return int(a.idx)
}
