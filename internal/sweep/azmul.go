package sweep

import "github.com/born-ml/adtape/internal/tape"

// Azmul is multiplication where zero times anything, including infinity and NaN,
// is zero. Reverse rules route every product with a possibly unbounded factor
// through it so that an adjoint that was never seeded stays zero.
func Azmul[T tape.Base](x, y T) T {
	if x == 0 {
		return 0
	}
	return x * y
}
