package sweep

import "github.com/born-ml/adtape/internal/tape"

func forwardMulVV[T tape.Base](lo, up int, z, x, y []T) {
	for k := lo; k <= up; k++ {
		var s T
		for j := 0; j <= k; j++ {
			s += x[j] * y[k-j]
		}
		z[k] = s
	}
}

func forwardMulPV[T tape.Base](lo, up int, z []T, p T, y []T) {
	for k := lo; k <= up; k++ {
		z[k] = p * y[k]
	}
}

func reverseMulVV[T tape.Base](d int, pz, px, py, x, y []T) {
	for k := d; k >= 0; k-- {
		for j := 0; j <= k; j++ {
			px[j] += Azmul(pz[k], y[k-j])
			py[k-j] += Azmul(pz[k], x[j])
		}
	}
}

func reverseMulPV[T tape.Base](d int, pz []T, p T, py []T) {
	for k := 0; k <= d; k++ {
		py[k] += Azmul(pz[k], p)
	}
}

// Zmul is multiplication where a zero left operand forces a zero result.

func forwardZmulVV[T tape.Base](lo, up int, z, x, y []T) {
	for k := lo; k <= up; k++ {
		var s T
		for j := 0; j <= k; j++ {
			s += Azmul(x[j], y[k-j])
		}
		z[k] = s
	}
}

func forwardZmulPV[T tape.Base](lo, up int, z []T, p T, y []T) {
	for k := lo; k <= up; k++ {
		z[k] = Azmul(p, y[k])
	}
}

func forwardZmulVP[T tape.Base](lo, up int, z, x []T, p T) {
	for k := lo; k <= up; k++ {
		z[k] = Azmul(x[k], p)
	}
}

func reverseZmulVV[T tape.Base](d int, pz, px, py, x, y []T) {
	for k := d; k >= 0; k-- {
		for j := 0; j <= k; j++ {
			px[j] += Azmul(pz[k], y[k-j])
			py[k-j] += Azmul(x[j], pz[k])
		}
	}
}

func reverseZmulPV[T tape.Base](d int, pz []T, p T, py []T) {
	for k := 0; k <= d; k++ {
		py[k] += Azmul(p, pz[k])
	}
}

func reverseZmulVP[T tape.Base](d int, pz, px []T, p T) {
	for k := 0; k <= d; k++ {
		px[k] += Azmul(pz[k], p)
	}
}
