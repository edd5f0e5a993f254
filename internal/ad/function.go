package ad

import (
	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/optimize"
	"github.com/born-ml/adtape/internal/sweep"
	"github.com/born-ml/adtape/internal/tape"
)

// Function is a recorded computation from Domain() independents to Range()
// dependents. It keeps the Taylor coefficients of the last forward sweeps, so
// Forward must be called order by order and Reverse uses the point of the last
// zero-order Forward.
//
// A Function is not safe for concurrent use; Clone gives each goroutine its own.
type Function[T Base] struct {
	play    *tape.Player[T]
	tay     *sweep.Taylor[T]
	part    *sweep.Partial[T]
	point   []T
	compare sweep.ForwardResult
}

func newFunction[T Base](play *tape.Player[T], x []T) (*Function[T], error) {
	f := &Function[T]{play: play, tay: sweep.NewTaylor[T](play.NumVar(), 1)}
	if _, err := f.Forward(0, x); err != nil {
		return nil, err
	}
	return f, nil
}

// Domain returns the number of independent variables.
func (f *Function[T]) Domain() int { return f.play.NumIndependent() }

// Range returns the number of dependent variables.
func (f *Function[T]) Range() int { return len(f.play.Dependents()) }

// NumVar returns the number of variables on the tape.
func (f *Function[T]) NumVar() int { return f.play.NumVar() }

// NumOp returns the number of operators on the tape.
func (f *Function[T]) NumOp() int { return f.play.NumOp() }

// Player returns the tape.
func (f *Function[T]) Player() *tape.Player[T] { return f.play }

// Point returns the independent values of the last zero-order Forward.
func (f *Function[T]) Point() []T { return append([]T(nil), f.point...) }

// Forward computes the order-q coefficients of the dependents given the order-q
// coefficients xq of the independents. Orders 0..q-1 must come from earlier calls;
// calling with q = 0 starts over at a new point.
func (f *Function[T]) Forward(q int, xq []T) ([]T, error) {
	if len(xq) != f.Domain() {
		return nil, errors.Wrapf(ErrSize, "forward: %d values for %d independents", len(xq), f.Domain())
	}
	if q < 0 || q > f.tay.Orders() {
		return nil, errors.Wrapf(ErrOrder, "forward order %d with %d orders computed", q, f.tay.Orders())
	}
	f.tay.Grow(q + 1)
	for j, v := range xq {
		f.tay.Set(tape.VarIndex(j+1), q, v)
	}
	res, err := sweep.Forward(f.play, q, q, f.tay)
	if err != nil {
		return nil, err
	}
	if q == 0 {
		f.compare = res
		f.point = append(f.point[:0], xq...)
	}
	y := make([]T, f.Range())
	for i, d := range f.play.Dependents() {
		y[i] = f.tay.Coef(d, q)
	}
	return y, nil
}

// Reverse returns the derivative of a weighted sum of dependent coefficients with
// respect to the coefficients of the independents, for orders 0..q-1. w has either
// Range() elements weighting order q-1, or Range()*q elements with w[i*q+k]
// weighting order k of dependent i. The result has Domain()*q elements laid out
// the same way.
func (f *Function[T]) Reverse(q int, w []T) ([]T, error) {
	m, n := f.Range(), f.Domain()
	if len(w) != m && len(w) != m*q {
		return nil, errors.Wrapf(ErrSize, "reverse: %d weights for %d dependents and %d orders", len(w), m, q)
	}
	if q < 1 || q > f.tay.Orders() {
		return nil, errors.Wrapf(ErrOrder, "reverse of %d orders with %d computed", q, f.tay.Orders())
	}
	if f.part == nil || f.part.Orders() != q {
		f.part = sweep.NewPartial[T](f.play.NumVar(), q)
	} else {
		f.part.Clear()
	}
	for i, d := range f.play.Dependents() {
		row := f.part.Row(d)
		if len(w) == m {
			row[q-1] += w[i]
			continue
		}
		for k := 0; k < q; k++ {
			row[k] += w[i*q+k]
		}
	}
	if err := sweep.Reverse(f.play, q, f.tay, f.part); err != nil {
		return nil, err
	}
	dw := make([]T, n*q)
	for j := 0; j < n; j++ {
		copy(dw[j*q:(j+1)*q], f.part.Row(tape.VarIndex(j+1)))
	}
	return dw, nil
}

// Jacobian returns the m by n matrix of first derivatives at x in row-major order.
// It uses forward mode when there are no more independents than dependents and
// reverse mode otherwise.
func (f *Function[T]) Jacobian(x []T) ([]T, error) {
	if _, err := f.Forward(0, x); err != nil {
		return nil, err
	}
	m, n := f.Range(), f.Domain()
	jac := make([]T, m*n)
	if n <= m {
		dx := make([]T, n)
		for j := 0; j < n; j++ {
			clear(dx)
			dx[j] = 1
			dy, err := f.Forward(1, dx)
			if err != nil {
				return nil, err
			}
			for i := 0; i < m; i++ {
				jac[i*n+j] = dy[i]
			}
		}
		return jac, nil
	}
	if err := f.JacobianRows(0, m, jac); err != nil {
		return nil, err
	}
	return jac, nil
}

// JacobianRows fills rows lo..hi-1 of the row-major Jacobian dst by reverse mode
// at the point of the last zero-order Forward.
func (f *Function[T]) JacobianRows(lo, hi int, dst []T) error {
	m, n := f.Range(), f.Domain()
	if len(dst) != m*n {
		return errors.Wrapf(ErrSize, "jacobian: destination of %d for %d by %d", len(dst), m, n)
	}
	w := make([]T, m)
	for i := lo; i < hi; i++ {
		clear(w)
		w[i] = 1
		dw, err := f.Reverse(1, w)
		if err != nil {
			return err
		}
		copy(dst[i*n:(i+1)*n], dw)
	}
	return nil
}

// Hessian returns the n by n matrix of second derivatives of sum(w[i] * y[i]) at
// x in row-major order.
func (f *Function[T]) Hessian(x, w []T) ([]T, error) {
	if _, err := f.Forward(0, x); err != nil {
		return nil, err
	}
	n := f.Domain()
	hes := make([]T, n*n)
	if err := f.HessianColumns(0, n, w, hes); err != nil {
		return nil, err
	}
	return hes, nil
}

// HessianColumns fills columns lo..hi-1 of the row-major Hessian dst of
// sum(w[i] * y[i]) at the point of the last zero-order Forward.
func (f *Function[T]) HessianColumns(lo, hi int, w, dst []T) error {
	n := f.Domain()
	if len(w) != f.Range() {
		return errors.Wrapf(ErrSize, "hessian: %d weights for %d dependents", len(w), f.Range())
	}
	if len(dst) != n*n {
		return errors.Wrapf(ErrSize, "hessian: destination of %d for %d by %d", len(dst), n, n)
	}
	dx := make([]T, n)
	for j := lo; j < hi; j++ {
		clear(dx)
		dx[j] = 1
		if _, err := f.Forward(1, dx); err != nil {
			return err
		}
		dw, err := f.Reverse(2, w)
		if err != nil {
			return err
		}
		for l := 0; l < n; l++ {
			dst[l*n+j] = dw[l*2]
		}
	}
	return nil
}

// CompareChange returns how many recorded comparisons came out differently at the
// point of the last zero-order Forward. Nonzero means the tape may not represent
// the function there.
func (f *Function[T]) CompareChange() int { return f.compare.CompareChange }

// CompareChangeOp returns the first comparison operator counted by CompareChange,
// or -1.
func (f *Function[T]) CompareChangeOp() tape.OpIndex { return f.compare.CompareChangeOp }

// Optimize replaces the tape with an optimized one and recomputes order zero at
// the current point. Higher orders must be recomputed.
func (f *Function[T]) Optimize(opts optimize.Options[T]) error {
	out, err := optimize.Run(f.play, opts)
	if err != nil {
		return err
	}
	f.play = tape.NewPlayer(out)
	f.tay.Resize(f.play.NumVar(), 1)
	f.part = nil
	_, err = f.Forward(0, f.point)
	return err
}

// Clone returns a Function sharing the tape, with its own buffers, positioned at
// the same point.
func (f *Function[T]) Clone() (*Function[T], error) {
	return newFunction(f.play, f.point)
}
