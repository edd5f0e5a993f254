// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ad provides tape-based algorithmic differentiation of scalar programs.
//
// A computation is recorded once, at a point, into an operator sequence. The
// recorded Function can then be evaluated at other points for values, Taylor
// coefficients of any order (forward mode) and derivatives of weighted sums of
// those coefficients (reverse mode), and optimized into a shorter sequence.
//
// Example:
//
//	import "github.com/born-ml/adtape/ad"
//
//	func main() {
//	    rec, x := ad.Independent([]float64{2, 3})
//	    s := x[0].Add(x[1])
//	    f, err := rec.Dependent([]ad.AD[float64]{s.Mul(s)})
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    y, _ := f.Forward(0, []float64{2, 3}) // [25]
//	    g, _ := f.Reverse(1, []float64{1})    // [10 10]
//	}
//
// Branches on AD values are fixed at recording time. Use CondExp for a choice the
// tape re-evaluates, and CompareChange to detect points where a recorded
// comparison no longer holds.
package ad
