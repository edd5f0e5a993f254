package optimize

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/sweep"
	"github.com/born-ml/adtape/internal/tape"
)

// selfCheck evaluates both tapes at x and compares the dependents.
func selfCheck[T tape.Base](before, after *tape.Player[T], x []T, tol T) error {
	if len(x) != before.NumIndependent() {
		return errors.Wrapf(ErrSelfCheck, "check point has %d values for %d independents", len(x), before.NumIndependent())
	}
	if tol == 0 {
		tol = defaultTolerance[T]()
	}
	want, err := valueAt(before, x)
	if err != nil {
		return err
	}
	got, err := valueAt(after, x)
	if err != nil {
		return err
	}
	for i := range want {
		if !near(want[i], got[i], tol) {
			return errors.Wrapf(ErrSelfCheck, "dependent %d: %v before, %v after", i, want[i], got[i])
		}
	}
	return nil
}

func valueAt[T tape.Base](p *tape.Player[T], x []T) ([]T, error) {
	tay := sweep.NewTaylor[T](p.NumVar(), 1)
	for j, v := range x {
		tay.Set(tape.VarIndex(j+1), 0, v)
	}
	if _, err := sweep.Forward(p, 0, 0, tay); err != nil {
		return nil, err
	}
	y := make([]T, 0, len(p.Dependents()))
	for _, d := range p.Dependents() {
		y = append(y, tay.Coef(d, 0))
	}
	return y, nil
}

func near[T tape.Base](a, b, tol T) bool {
	if a == b || (math.IsNaN(float64(a)) && math.IsNaN(float64(b))) {
		return true
	}
	scale := max(1, abs(a), abs(b))
	return abs(a-b) <= tol*scale
}

func abs[T tape.Base](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func defaultTolerance[T tape.Base]() T {
	var zero T
	if unsafe.Sizeof(zero) == 4 {
		return 1e-4
	}
	return 1e-10
}
