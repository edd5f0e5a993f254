package script

import (
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/born-ml/adtape/internal/ad"
)

// Value is an AD scalar seen from Starlark. Arithmetic with numbers and other
// Values records onto the tape; comparing two Values records the outcome.
type Value struct {
	x ad.AD[float64]
}

var (
	_ starlark.HasBinary  = Value{}
	_ starlark.HasUnary   = Value{}
	_ starlark.Comparable = Value{}
)

// AD returns the wrapped scalar.
func (v Value) AD() ad.AD[float64] { return v.x }

func (v Value) String() string        { return v.x.String() }
func (v Value) Type() string          { return "ad" }
func (v Value) Freeze()               {}
func (v Value) Truth() starlark.Bool  { return v.x.Value() != 0 }
func (v Value) Hash() (uint32, error) { return 0, errors.New("unhashable type: ad") }

// Binary implements + - * and / with a Value on either side.
func (v Value) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, ok := toAD(y)
	if !ok {
		return nil, nil
	}
	l, r := v.x, other
	if side == starlark.Right {
		l, r = r, l
	}
	switch op {
	case syntax.PLUS:
		return Value{l.Add(r)}, nil
	case syntax.MINUS:
		return Value{l.Sub(r)}, nil
	case syntax.STAR:
		return Value{l.Mul(r)}, nil
	case syntax.SLASH:
		return Value{l.Div(r)}, nil
	}
	return nil, nil
}

// Unary implements unary minus and plus.
func (v Value) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return Value{v.x.Neg()}, nil
	case syntax.PLUS:
		return v, nil
	}
	return nil, nil
}

// CompareSameType compares two Values, recording the comparison. Numbers must be
// wrapped with const() first since Starlark only orders values of one type.
func (v Value) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	w := y.(Value)
	switch op {
	case syntax.LT:
		return v.x.Lt(w.x), nil
	case syntax.LE:
		return v.x.Le(w.x), nil
	case syntax.GT:
		return v.x.Gt(w.x), nil
	case syntax.GE:
		return v.x.Ge(w.x), nil
	case syntax.EQL:
		return v.x.Eq(w.x), nil
	case syntax.NEQ:
		return v.x.Ne(w.x), nil
	}
	return false, errors.Errorf("ad: unsupported comparison %s", op)
}

// toAD converts a Value or a Starlark number.
func toAD(y starlark.Value) (ad.AD[float64], bool) {
	if v, ok := y.(Value); ok {
		return v.x, true
	}
	if f, ok := starlark.AsFloat(y); ok {
		return ad.Const(f), true
	}
	return ad.AD[float64]{}, false
}
