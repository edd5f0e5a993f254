// Package script records functions written in Starlark.
//
// A script defines a function taking one list argument. Record calls it with
// one ad value per independent variable; every operation on those values is
// recorded. The function returns an ad value, a number or a list of them.
//
//	def f(x):
//	    return [x[0] * x[1] + sin(x[0])]
package script

import (
	"log/slog"

	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/born-ml/adtape/internal/ad"
)

var (
	// ErrNoFunction is returned when the script does not define the requested function.
	ErrNoFunction = errors.New("script: function not defined")
	// ErrResult is returned when the function returns something other than ad values and numbers.
	ErrResult = errors.New("script: bad result")
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Record executes src and records the function named fn at x. src may be a
// string, a []byte or nil, in which case filename is read. print() output goes
// to log.
func Record(filename string, src any, fn string, x []float64, log *slog.Logger) (*ad.Function[float64], error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info(msg, "script", filename)
		},
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, Builtins())
	if err != nil {
		return nil, errors.Wrapf(err, "exec %s", filename)
	}
	callable, ok := globals[fn].(starlark.Callable)
	if !ok {
		return nil, errors.Wrapf(ErrNoFunction, "%s in %s", fn, filename)
	}

	rec, vars := ad.Independent(x)
	elems := make([]starlark.Value, len(vars))
	for i, v := range vars {
		elems[i] = Value{v}
	}
	res, err := starlark.Call(thread, callable, starlark.Tuple{starlark.NewList(elems)}, nil)
	if err != nil {
		rec.Abort()
		return nil, errors.Wrapf(err, "call %s", fn)
	}
	y, err := results(res)
	if err != nil {
		rec.Abort()
		return nil, errors.Wrapf(err, "%s returned %s", fn, res.Type())
	}
	log.Debug("recorded", "script", filename, "function", fn, "ops", rec.NumOp(), "range", len(y))
	return rec.Dependent(y)
}

func results(res starlark.Value) ([]ad.AD[float64], error) {
	if y, ok := toAD(res); ok {
		return []ad.AD[float64]{y}, nil
	}
	seq, ok := res.(starlark.Indexable)
	if !ok {
		return nil, ErrResult
	}
	y := make([]ad.AD[float64], seq.Len())
	for i := range y {
		v, ok := toAD(seq.Index(i))
		if !ok {
			return nil, errors.Wrapf(ErrResult, "element %d is %s", i, seq.Index(i).Type())
		}
		y[i] = v
	}
	return y, nil
}
