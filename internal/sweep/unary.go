package sweep

import (
	"math"

	"github.com/born-ml/adtape/internal/tape"
)

// The unary rules below are the standard Taylor recurrences. Each derives the
// order-k coefficient of z from the lower ones through the differential equation
// z satisfies (z' = z x' for exp, x z' = x' for log and so on). Reverse rules that
// take pz as scratch overwrite it.

func forwardAbs[T tape.Base](lo, up int, z, x []T) {
	s := sign(x[0])
	for k := lo; k <= up; k++ {
		z[k] = s * x[k]
	}
}

func reverseAbs[T tape.Base](d int, pz, px, x []T) {
	s := sign(x[0])
	for k := 0; k <= d; k++ {
		px[k] += s * pz[k]
	}
}

func sign[T tape.Base](x T) T {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func forwardExp[T tape.Base](lo, up int, z, x []T) {
	for k := lo; k <= up; k++ {
		if k == 0 {
			z[0] = T(math.Exp(float64(x[0])))
			continue
		}
		var s T
		for j := 1; j <= k; j++ {
			s += T(j) * x[j] * z[k-j]
		}
		z[k] = s / T(k)
	}
}

func reverseExp[T tape.Base](d int, pz, px, x, z []T) {
	for j := d; j > 0; j-- {
		pz[j] /= T(j)
		for k := 1; k <= j; k++ {
			px[k] += Azmul(pz[j], T(k)*z[j-k])
			pz[j-k] += Azmul(pz[j], T(k)*x[k])
		}
	}
	px[0] += Azmul(pz[0], z[0])
}

func forwardLog[T tape.Base](lo, up int, z, x []T) {
	for k := lo; k <= up; k++ {
		if k == 0 {
			z[0] = T(math.Log(float64(x[0])))
			continue
		}
		var s T
		for j := 1; j < k; j++ {
			s += T(j) * z[j] * x[k-j]
		}
		z[k] = (x[k] - s/T(k)) / x[0]
	}
}

func reverseLog[T tape.Base](d int, pz, px, x, z []T) {
	inv := 1 / x[0]
	for j := d; j > 0; j-- {
		pz[j] = Azmul(pz[j], inv)
		px[0] -= Azmul(pz[j], z[j])
		px[j] += pz[j]
		pz[j] /= T(j)
		for k := 1; k < j; k++ {
			pz[k] -= Azmul(pz[j], T(k)*x[j-k])
			px[j-k] -= Azmul(pz[j], T(k)*z[k])
		}
	}
	px[0] += Azmul(pz[0], inv)
}

func forwardSqrt[T tape.Base](lo, up int, z, x []T) {
	for k := lo; k <= up; k++ {
		if k == 0 {
			z[0] = T(math.Sqrt(float64(x[0])))
			continue
		}
		s := x[k]
		for j := 1; j < k; j++ {
			s -= z[j] * z[k-j]
		}
		z[k] = s / (2 * z[0])
	}
}

func reverseSqrt[T tape.Base](d int, pz, px, z []T) {
	inv := 1 / z[0]
	for j := d; j > 0; j-- {
		pz[j] = Azmul(pz[j], inv)
		pz[0] -= Azmul(pz[j], z[j])
		px[j] += pz[j] / 2
		for k := 1; k < j; k++ {
			pz[k] -= Azmul(pz[j], z[j-k])
		}
	}
	px[0] += Azmul(pz[0], inv) / 2
}

// forwardSinCos fills s with sin(x) and c with cos(x). Sin and Cos share it with
// their result rows swapped.
func forwardSinCos[T tape.Base](lo, up int, s, c, x []T) {
	for k := lo; k <= up; k++ {
		if k == 0 {
			sn, cs := math.Sincos(float64(x[0]))
			s[0], c[0] = T(sn), T(cs)
			continue
		}
		var ss, cc T
		for j := 1; j <= k; j++ {
			ss += T(j) * x[j] * c[k-j]
			cc -= T(j) * x[j] * s[k-j]
		}
		s[k], c[k] = ss/T(k), cc/T(k)
	}
}

func reverseSinCos[T tape.Base](d int, ps, pc, px, s, c, x []T) {
	for j := d; j > 0; j-- {
		ps[j] /= T(j)
		pc[j] /= T(j)
		for k := 1; k <= j; k++ {
			px[k] += Azmul(ps[j], T(k)*c[j-k]) - Azmul(pc[j], T(k)*s[j-k])
			ps[j-k] -= Azmul(pc[j], T(k)*x[k])
			pc[j-k] += Azmul(ps[j], T(k)*x[k])
		}
	}
	px[0] += Azmul(ps[0], c[0]) - Azmul(pc[0], s[0])
}

// forwardTanh fills z with tanh(x) and y with z*z.
func forwardTanh[T tape.Base](lo, up int, z, y, x []T) {
	for k := lo; k <= up; k++ {
		if k == 0 {
			z[0] = T(math.Tanh(float64(x[0])))
		} else {
			s := x[k]
			for j := 1; j <= k; j++ {
				s -= T(j) * x[j] * y[k-j] / T(k)
			}
			z[k] = s
		}
		var q T
		for j := 0; j <= k; j++ {
			q += z[j] * z[k-j]
		}
		y[k] = q
	}
}

func reverseTanh[T tape.Base](d int, pz, py, px, z, y, x []T) {
	for j := d; j >= 0; j-- {
		for k := 0; k <= j; k++ {
			pz[k] += 2 * Azmul(py[j], z[j-k])
		}
		if j == 0 {
			px[0] += Azmul(pz[0], 1-y[0])
			break
		}
		px[j] += pz[j]
		for k := 1; k <= j; k++ {
			px[k] -= Azmul(pz[j], T(k)*y[j-k]) / T(j)
			py[j-k] -= Azmul(pz[j], T(k)*x[k]) / T(j)
		}
	}
}
