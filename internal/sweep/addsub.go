package sweep

import "github.com/born-ml/adtape/internal/tape"

// Addition and subtraction are linear, so every order follows the same rule and a
// parameter operand only shows up in the order-zero coefficient.

func forwardAddVV[T tape.Base](lo, up int, z, x, y []T) {
	for k := lo; k <= up; k++ {
		z[k] = x[k] + y[k]
	}
}

func forwardAddPV[T tape.Base](lo, up int, z []T, p T, y []T) {
	if lo == 0 {
		z[0] = p + y[0]
		lo = 1
	}
	for k := lo; k <= up; k++ {
		z[k] = y[k]
	}
}

func forwardSubVV[T tape.Base](lo, up int, z, x, y []T) {
	for k := lo; k <= up; k++ {
		z[k] = x[k] - y[k]
	}
}

func forwardSubPV[T tape.Base](lo, up int, z []T, p T, y []T) {
	if lo == 0 {
		z[0] = p - y[0]
		lo = 1
	}
	for k := lo; k <= up; k++ {
		z[k] = -y[k]
	}
}

func forwardSubVP[T tape.Base](lo, up int, z, x []T, p T) {
	if lo == 0 {
		z[0] = x[0] - p
		lo = 1
	}
	for k := lo; k <= up; k++ {
		z[k] = x[k]
	}
}

func reverseAdd[T tape.Base](d int, pz, px []T) {
	for k := 0; k <= d; k++ {
		px[k] += pz[k]
	}
}

func reverseSub[T tape.Base](d int, pz, py []T) {
	for k := 0; k <= d; k++ {
		py[k] -= pz[k]
	}
}

func forwardNeg[T tape.Base](lo, up int, z, x []T) {
	for k := lo; k <= up; k++ {
		z[k] = -x[k]
	}
}

// CSum: z = p + sum(add) - sum(sub).

func forwardCSum[T tape.Base](lo, up int, z []T, p T, add, sub [][]T) {
	for k := lo; k <= up; k++ {
		var s T
		if k == 0 {
			s = p
		}
		for _, x := range add {
			s += x[k]
		}
		for _, x := range sub {
			s -= x[k]
		}
		z[k] = s
	}
}
