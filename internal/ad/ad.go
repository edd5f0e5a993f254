package ad

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/tape"
)

// AD is a scalar that is either a constant or a variable of a recording. The zero
// value is the constant zero.
type AD[T Base] struct {
	val T
	idx tape.VarIndex
	rec *Recording[T]
}

// Const returns a constant.
func Const[T Base](x T) AD[T] { return AD[T]{val: x} }

// Value returns the value at the recording point.
func (a AD[T]) Value() T { return a.val }

// Variable reports whether a depends on an independent variable.
func (a AD[T]) Variable() bool { return a.rec != nil }

func (a AD[T]) String() string {
	if a.rec == nil {
		return fmt.Sprint(a.val)
	}
	return fmt.Sprintf("%v@v%d", a.val, a.idx)
}

// recordingOf returns the recording shared by the variable operands, or nil when
// all operands are constants.
func recordingOf[T Base](xs ...AD[T]) *Recording[T] {
	var r *Recording[T]
	for _, x := range xs {
		if x.rec == nil {
			continue
		}
		if r != nil && x.rec != r {
			panic(errors.WithStack(ErrForeignVariable))
		}
		r = x.rec
	}
	return r
}

func (r *Recording[T]) variable(val T, idx tape.VarIndex) AD[T] {
	return AD[T]{val: val, idx: idx, rec: r}
}
