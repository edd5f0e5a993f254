// Package dense evaluates first and second derivatives of a float64 Function as
// gonum matrices, spreading rows or columns across goroutines. Each goroutine
// works on its own clone of the Function; the tape is shared.
package dense

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/adtape/internal/ad"
	"github.com/born-ml/adtape/internal/parallel"
)

// Jacobian returns the Range by Domain matrix of first derivatives of f at x.
// Rows are computed in reverse mode. f is left at x.
func Jacobian(f *ad.Function[float64], x []float64, cfg parallel.Config) (*mat.Dense, error) {
	if _, err := f.Forward(0, x); err != nil {
		return nil, err
	}
	m, n := f.Range(), f.Domain()
	data := make([]float64, m*n)
	if err := fanOut(f, m, cfg, func(g *ad.Function[float64], lo, hi int) error {
		return g.JacobianRows(lo, hi, data)
	}); err != nil {
		return nil, err
	}
	if m == 0 || n == 0 {
		return &mat.Dense{}, nil
	}
	return mat.NewDense(m, n, data), nil
}

// Hessian returns the Domain by Domain matrix of second derivatives of
// sum(w[i] * y[i]) at x. f is left at x.
func Hessian(f *ad.Function[float64], x, w []float64, cfg parallel.Config) (*mat.SymDense, error) {
	if _, err := f.Forward(0, x); err != nil {
		return nil, err
	}
	n := f.Domain()
	data := make([]float64, n*n)
	if err := fanOut(f, n, cfg, func(g *ad.Function[float64], lo, hi int) error {
		return g.HessianColumns(lo, hi, w, data)
	}); err != nil {
		return nil, err
	}
	if n == 0 {
		return &mat.SymDense{}, nil
	}
	// Columns are exact up to rounding; symmetrize so SymDense sees one value.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			avg := (data[i*n+j] + data[j*n+i]) / 2
			data[i*n+j], data[j*n+i] = avg, avg
		}
	}
	return mat.NewSymDense(n, data), nil
}

// fanOut runs work over [0, n) in chunks. The first chunk uses f itself; the
// others use clones made before any goroutine starts.
func fanOut(f *ad.Function[float64], n int, cfg parallel.Config, work func(g *ad.Function[float64], lo, hi int) error) error {
	chunks := parallel.Chunks(n, cfg)
	fns := make([]*ad.Function[float64], chunks)
	for c := range fns {
		if c == 0 {
			fns[c] = f
			continue
		}
		g, err := f.Clone()
		if err != nil {
			return err
		}
		fns[c] = g
	}
	errs := make([]error, chunks)
	parallel.ForChunks(n, func(c, lo, hi int) {
		errs[c] = work(fns[c], lo, hi)
	}, cfg)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
