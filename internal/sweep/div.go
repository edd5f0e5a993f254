package sweep

import "github.com/born-ml/adtape/internal/tape"

// Division by a variable solves y*z = x for the coefficients of z. A zero divisor
// is not trapped; the results carry IEEE infinities and NaN.

func forwardDivVV[T tape.Base](lo, up int, z, x, y []T) {
	for k := lo; k <= up; k++ {
		s := x[k]
		for j := 1; j <= k; j++ {
			s -= z[k-j] * y[j]
		}
		z[k] = s / y[0]
	}
}

func forwardDivPV[T tape.Base](lo, up int, z []T, p T, y []T) {
	for k := lo; k <= up; k++ {
		var s T
		if k == 0 {
			s = p
		}
		for j := 1; j <= k; j++ {
			s -= z[k-j] * y[j]
		}
		z[k] = s / y[0]
	}
}

func forwardDivVP[T tape.Base](lo, up int, z, x []T, p T) {
	for k := lo; k <= up; k++ {
		z[k] = x[k] / p
	}
}

// reverseDivVV consumes pz, which must be a scratch copy. px is nil for DivPV.
func reverseDivVV[T tape.Base](d int, pz, px, py, y, z []T) {
	inv := 1 / y[0]
	for j := d; j >= 0; j-- {
		pz[j] = Azmul(pz[j], inv)
		if px != nil {
			px[j] += pz[j]
		}
		for k := 1; k <= j; k++ {
			pz[j-k] -= Azmul(pz[j], y[k])
			py[k] -= Azmul(pz[j], z[j-k])
		}
		py[0] -= Azmul(pz[j], z[j])
	}
}

func reverseDivVP[T tape.Base](d int, pz, px []T, p T) {
	inv := 1 / p
	for k := 0; k <= d; k++ {
		px[k] += Azmul(pz[k], inv)
	}
}
