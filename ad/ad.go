// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ad

import (
	"github.com/born-ml/adtape/internal/ad"
	"github.com/born-ml/adtape/internal/optimize"
)

// Base is the set of scalar types a computation can be recorded in.
type Base = ad.Base

// AD is a scalar that is either a constant or a recorded variable.
type AD[T Base] = ad.AD[T]

// Recording collects the operators of one computation.
type Recording[T Base] = ad.Recording[T]

// Function is a recorded computation.
type Function[T Base] = ad.Function[T]

// Rel is a relation used by CondExp.
type Rel = ad.Rel

// Relations.
const (
	Lt = ad.Lt
	Le = ad.Le
	Eq = ad.Eq
	Ge = ad.Ge
	Gt = ad.Gt
	Ne = ad.Ne
)

// OptimizeOptions control Function.Optimize.
type OptimizeOptions[T Base] = optimize.Options[T]

// Errors.
var (
	ErrRecordingEnded  = ad.ErrRecordingEnded
	ErrForeignVariable = ad.ErrForeignVariable
	ErrSize            = ad.ErrSize
	ErrOrder           = ad.ErrOrder
	ErrSelfCheck       = optimize.ErrSelfCheck
)

// Independent starts a recording at x.
//
// Example:
//
//	rec, x := ad.Independent([]float64{1, 2})
//	f, err := rec.Dependent([]ad.AD[float64]{ad.Sin(x[0]).Mul(x[1])})
func Independent[T Base](x []T) (*Recording[T], []AD[T]) {
	return ad.Independent(x)
}

// DefaultOptimizeOptions returns the options Optimize normally runs with.
func DefaultOptimizeOptions[T Base]() OptimizeOptions[T] {
	return optimize.DefaultOptions[T]()
}

// Const returns a constant.
func Const[T Base](x T) AD[T] { return ad.Const(x) }

// Exp returns e**x.
func Exp[T Base](x AD[T]) AD[T] { return ad.Exp(x) }

// Log returns the natural logarithm of x.
func Log[T Base](x AD[T]) AD[T] { return ad.Log(x) }

// Sqrt returns the square root of x.
func Sqrt[T Base](x AD[T]) AD[T] { return ad.Sqrt(x) }

// Sin returns the sine of x.
func Sin[T Base](x AD[T]) AD[T] { return ad.Sin(x) }

// Cos returns the cosine of x.
func Cos[T Base](x AD[T]) AD[T] { return ad.Cos(x) }

// Tan returns the tangent of x.
func Tan[T Base](x AD[T]) AD[T] { return ad.Tan(x) }

// Tanh returns the hyperbolic tangent of x.
func Tanh[T Base](x AD[T]) AD[T] { return ad.Tanh(x) }

// Abs returns the absolute value of x.
func Abs[T Base](x AD[T]) AD[T] { return ad.Abs(x) }

// Pow returns x**y.
func Pow[T Base](x, y AD[T]) AD[T] { return ad.Pow(x, y) }

// Azmul returns x*y, zero whenever x is zero.
func Azmul[T Base](x, y AD[T]) AD[T] { return ad.Azmul(x, y) }

// CondExp returns ifTrue when left rel right holds, ifFalse otherwise, deciding
// again at every evaluation.
func CondExp[T Base](rel Rel, left, right, ifTrue, ifFalse AD[T]) AD[T] {
	return ad.CondExp(rel, left, right, ifTrue, ifFalse)
}
