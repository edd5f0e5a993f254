package tape

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
)

// Recorder builds a Tape by appending operators. It has no deletion API: a tape is
// replaced wholesale, never edited.
//
// A Recorder is owned by one goroutine; it performs no locking.
type Recorder[T Base] struct {
	codes      []opcode.Code
	args       []int
	params     []T
	paramIndex map[uint64]int
	numVar     int
	numInd     int
	sealed     bool
}

// NewRecorder creates a recorder holding only the Begin operator.
func NewRecorder[T Base]() *Recorder[T] {
	r := &Recorder[T]{
		codes:      make([]opcode.Code, 0, 64),
		args:       make([]int, 0, 128),
		params:     make([]T, 0, 16),
		paramIndex: make(map[uint64]int),
	}
	r.params = append(r.params, T(math.NaN()))
	r.codes = append(r.codes, opcode.Begin)
	r.args = append(r.args, 0)
	r.numVar = opcode.Begin.NumRes()
	return r
}

// NumOp returns the number of operators recorded so far.
func (r *Recorder[T]) NumOp() int { return len(r.codes) }

// NumVar returns the index the next result variable will get.
func (r *Recorder[T]) NumVar() int { return r.numVar }

// NumArg returns the length of the argument array so far.
func (r *Recorder[T]) NumArg() int { return len(r.args) }

// NumParam returns the length of the parameter table so far.
func (r *Recorder[T]) NumParam() int { return len(r.params) }

// NumIndependent returns the number of independent variables recorded.
func (r *Recorder[T]) NumIndependent() int { return r.numInd }

// Parameter returns the i-th constant.
func (r *Recorder[T]) Parameter(i int) T { return r.params[i] }

// NewParameter stores a constant and returns its index. Values with identical bits
// share one entry, so 0 and -0 stay apart; NaN is never shared.
func (r *Recorder[T]) NewParameter(v T) int {
	if math.IsNaN(float64(v)) {
		return r.NewParameterNoDedup(v)
	}
	key := math.Float64bits(float64(v))
	if i, ok := r.paramIndex[key]; ok {
		return i
	}
	i := r.NewParameterNoDedup(v)
	r.paramIndex[key] = i
	return i
}

// NewParameterNoDedup stores a constant in a fresh slot.
func (r *Recorder[T]) NewParameterNoDedup(v T) int {
	r.params = append(r.params, v)
	return len(r.params) - 1
}

// NewIndependent records an independent variable. All independents must be recorded
// before any other operator.
func (r *Recorder[T]) NewIndependent() (VarIndex, error) {
	return r.NewOperator(opcode.Inv)
}

// NewOperator appends one operator and returns the index of its first result
// variable, or zero when the operator has no result. Argument variable indices must
// already exist; parameter indices must be in the table.
func (r *Recorder[T]) NewOperator(code opcode.Code, args ...int) (VarIndex, error) {
	if r.sealed {
		return 0, errors.Wrapf(ErrSealed, "record %s", code)
	}
	if !code.Valid() || code == opcode.Begin || code == opcode.End {
		return 0, errors.Wrapf(ErrOpcode, "code %s", code)
	}
	if code == opcode.Inv && len(r.codes) != 1+r.numInd {
		return 0, errors.Wrapf(ErrIndependentOrder, "%d operators already recorded", len(r.codes))
	}
	if err := checkCount(code, args); err != nil {
		return 0, err
	}
	if err := checkArgs(code, args, r.numVar, len(r.params)); err != nil {
		return 0, err
	}

	first := VarIndex(r.numVar)
	r.codes = append(r.codes, code)
	r.args = append(r.args, args...)
	r.numVar += code.NumRes()
	if code == opcode.Inv {
		r.numInd++
	}
	if code.NumRes() == 0 {
		return 0, nil
	}
	return first, nil
}

func checkCount(code opcode.Code, args []int) error {
	if !code.Variadic() {
		if len(args) != code.NumArg() {
			return errors.Wrapf(ErrArgCount, "%s takes %d arguments, got %d", code, code.NumArg(), len(args))
		}
		return nil
	}
	if len(args) < opcode.HeaderLen(code) {
		return errors.Wrapf(ErrArgCount, "%s payload of %d", code, len(args))
	}
	if !opcode.ValidHeader(code, args) {
		return errors.Wrapf(ErrArgCount, "%s header %v", code, args[:opcode.HeaderLen(code)])
	}
	n := opcode.ArgCount(code, args)
	if n != len(args) || opcode.ArgCountBackward(code, args[n-1]) != n {
		return errors.Wrapf(ErrArgCount, "%s payload declares %d arguments, got %d", code, n, len(args))
	}
	return nil
}

// ReplaceArg overwrites one already recorded argument. It exists so that operator
// lists inside a conditional skip can be filled in once the listed operators have
// been recorded.
func (r *Recorder[T]) ReplaceArg(slot, value int) error {
	if r.sealed {
		return errors.Wrap(ErrSealed, "replace argument")
	}
	if slot < 0 || slot >= len(r.args) {
		return errors.Wrapf(ErrArgSlot, "slot %d of %d", slot, len(r.args))
	}
	r.args[slot] = value
	return nil
}

// Seal appends End, records which variables are dependent and returns the finished
// tape. The recorder cannot be used afterwards.
func (r *Recorder[T]) Seal(dependents []VarIndex) (*Tape[T], error) {
	if r.sealed {
		return nil, errors.Wrap(ErrSealed, "seal")
	}
	for i, d := range dependents {
		if d < 1 || int(d) >= r.numVar {
			return nil, errors.Wrapf(ErrDependent, "dependent %d is variable %d of %d", i, d, r.numVar)
		}
	}
	r.codes = append(r.codes, opcode.End)
	t := &Tape[T]{
		codes:  r.codes,
		args:   r.args,
		params: r.params,
		numVar: r.numVar,
		numInd: r.numInd,
		deps:   append([]VarIndex(nil), dependents...),
	}
	if err := t.Validate(); err != nil {
		r.codes = r.codes[:len(r.codes)-1]
		return nil, err
	}
	r.sealed = true
	r.codes, r.args, r.params, r.paramIndex = nil, nil, nil, nil
	return t, nil
}
