package ad

import (
	"math"

	"github.com/born-ml/adtape/internal/opcode"
)

func unary[T Base](code opcode.Code, x AD[T], f func(float64) float64) AD[T] {
	val := T(f(float64(x.val)))
	if x.rec == nil {
		return Const(val)
	}
	return x.rec.variable(val, x.rec.record(code, int(x.idx)))
}

// Exp returns e**x.
func Exp[T Base](x AD[T]) AD[T] { return unary(opcode.Exp, x, math.Exp) }

// Log returns the natural logarithm of x.
func Log[T Base](x AD[T]) AD[T] { return unary(opcode.Log, x, math.Log) }

// Sqrt returns the square root of x.
func Sqrt[T Base](x AD[T]) AD[T] { return unary(opcode.Sqrt, x, math.Sqrt) }

// Sin returns the sine of x.
func Sin[T Base](x AD[T]) AD[T] { return unary(opcode.Sin, x, math.Sin) }

// Cos returns the cosine of x.
func Cos[T Base](x AD[T]) AD[T] { return unary(opcode.Cos, x, math.Cos) }

// Tanh returns the hyperbolic tangent of x.
func Tanh[T Base](x AD[T]) AD[T] { return unary(opcode.Tanh, x, math.Tanh) }

// Abs returns the absolute value of x. Its derivative at zero is zero.
func Abs[T Base](x AD[T]) AD[T] { return unary(opcode.Abs, x, math.Abs) }

// Tan returns sin(x)/cos(x).
func Tan[T Base](x AD[T]) AD[T] { return Sin(x).Div(Cos(x)) }

// maxIntPow bounds the constant integer exponents Pow expands into products.
const maxIntPow = 1 << 20

// Pow returns x**y. A constant integer y is recorded as repeated multiplication, so
// a negative x keeps its value and derivatives. Any other y is recorded as
// exp(y*log(x)), which needs x > 0.
func Pow[T Base](x, y AD[T]) AD[T] {
	if x.rec == nil && y.rec == nil {
		return Const(T(math.Pow(float64(x.val), float64(y.val))))
	}
	if n := float64(y.val); y.rec == nil && n == math.Trunc(n) && math.Abs(n) <= maxIntPow {
		return intPow(x, int(n))
	}
	return Exp(y.Mul(Log(x)))
}

// intPow multiplies by repeated squaring.
func intPow[T Base](x AD[T], n int) AD[T] {
	if n < 0 {
		return Const[T](1).Div(intPow(x, -n))
	}
	z := Const[T](1)
	for sq := x; n > 0; n >>= 1 {
		if n&1 == 1 {
			z = z.Mul(sq)
		}
		if n > 1 {
			sq = sq.Mul(sq)
		}
	}
	return z
}
