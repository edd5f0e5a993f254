package script

import (
	"github.com/pkg/errors"
	"go.starlark.net/starlark"

	"github.com/born-ml/adtape/internal/ad"
)

// Builtins returns the functions scripts can call: the elementary functions,
// pow, azmul, const and cond_exp.
func Builtins() starlark.StringDict {
	d := starlark.StringDict{
		"pow":      binaryBuiltin("pow", ad.Pow[float64]),
		"azmul":    binaryBuiltin("azmul", ad.Azmul[float64]),
		"const":    starlark.NewBuiltin("const", constBuiltin),
		"cond_exp": starlark.NewBuiltin("cond_exp", condExpBuiltin),
	}
	for name, f := range map[string]func(ad.AD[float64]) ad.AD[float64]{
		"exp":  ad.Exp[float64],
		"log":  ad.Log[float64],
		"sqrt": ad.Sqrt[float64],
		"sin":  ad.Sin[float64],
		"cos":  ad.Cos[float64],
		"tan":  ad.Tan[float64],
		"tanh": ad.Tanh[float64],
		"abs":  ad.Abs[float64],
	} {
		d[name] = unaryBuiltin(name, f)
	}
	return d
}

func scalarArg(fn string, i int, v starlark.Value) (ad.AD[float64], error) {
	x, ok := toAD(v)
	if !ok {
		return x, errors.Errorf("%s: argument %d: want number or ad, got %s", fn, i+1, v.Type())
	}
	return x, nil
}

func unaryBuiltin(name string, f func(ad.AD[float64]) ad.AD[float64]) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		x, err := scalarArg(b.Name(), 0, v)
		if err != nil {
			return nil, err
		}
		return Value{f(x)}, nil
	})
}

func binaryBuiltin(name string, f func(x, y ad.AD[float64]) ad.AD[float64]) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v, w starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &v, &w); err != nil {
			return nil, err
		}
		x, err := scalarArg(b.Name(), 0, v)
		if err != nil {
			return nil, err
		}
		y, err := scalarArg(b.Name(), 1, w)
		if err != nil {
			return nil, err
		}
		return Value{f(x, y)}, nil
	})
}

func constBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var f starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &f); err != nil {
		return nil, err
	}
	x, ok := starlark.AsFloat(f)
	if !ok {
		return nil, errors.Errorf("const: want number, got %s", f.Type())
	}
	return Value{ad.Const(x)}, nil
}

func condExpBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rel string
	var l, r, t, f starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 5, &rel, &l, &r, &t, &f); err != nil {
		return nil, err
	}
	op, err := parseRel(rel)
	if err != nil {
		return nil, err
	}
	var xs [4]ad.AD[float64]
	for i, v := range [...]starlark.Value{l, r, t, f} {
		if xs[i], err = scalarArg(b.Name(), i+1, v); err != nil {
			return nil, err
		}
	}
	return Value{ad.CondExp(op, xs[0], xs[1], xs[2], xs[3])}, nil
}

func parseRel(s string) (ad.Rel, error) {
	for _, r := range [...]ad.Rel{ad.Lt, ad.Le, ad.Eq, ad.Ge, ad.Gt, ad.Ne} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, errors.Errorf("cond_exp: unknown relation %q", s)
}
