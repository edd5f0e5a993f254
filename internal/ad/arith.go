package ad

import "github.com/born-ml/adtape/internal/opcode"

// Add returns a + b.
func (a AD[T]) Add(b AD[T]) AD[T] {
	val := a.val + b.val
	r := recordingOf(a, b)
	switch {
	case r == nil:
		return Const(val)
	case a.rec != nil && b.rec != nil:
		return r.variable(val, r.record(opcode.AddVV, int(a.idx), int(b.idx)))
	case a.rec == nil:
		if a.val == 0 {
			return b
		}
		return r.variable(val, r.record(opcode.AddPV, r.operand(a), int(b.idx)))
	default:
		if b.val == 0 {
			return a
		}
		return r.variable(val, r.record(opcode.AddPV, r.operand(b), int(a.idx)))
	}
}

// Sub returns a - b.
func (a AD[T]) Sub(b AD[T]) AD[T] {
	val := a.val - b.val
	r := recordingOf(a, b)
	switch {
	case r == nil:
		return Const(val)
	case a.rec != nil && b.rec != nil:
		return r.variable(val, r.record(opcode.SubVV, int(a.idx), int(b.idx)))
	case a.rec == nil:
		return r.variable(val, r.record(opcode.SubPV, r.operand(a), int(b.idx)))
	default:
		if b.val == 0 {
			return a
		}
		return r.variable(val, r.record(opcode.SubVP, int(a.idx), r.operand(b)))
	}
}

// Mul returns a * b. A constant factor of zero gives the constant zero whatever
// the other factor is.
func (a AD[T]) Mul(b AD[T]) AD[T] {
	val := a.val * b.val
	r := recordingOf(a, b)
	switch {
	case r == nil:
		return Const(val)
	case a.rec != nil && b.rec != nil:
		return r.variable(val, r.record(opcode.MulVV, int(a.idx), int(b.idx)))
	}
	p, v := a, b
	if b.rec == nil {
		p, v = b, a
	}
	switch p.val {
	case 0:
		return Const[T](0)
	case 1:
		return v
	}
	return r.variable(val, r.record(opcode.MulPV, r.operand(p), int(v.idx)))
}

// Div returns a / b. A constant numerator of zero gives the constant zero.
func (a AD[T]) Div(b AD[T]) AD[T] {
	val := a.val / b.val
	r := recordingOf(a, b)
	switch {
	case r == nil:
		return Const(val)
	case a.rec != nil && b.rec != nil:
		return r.variable(val, r.record(opcode.DivVV, int(a.idx), int(b.idx)))
	case a.rec == nil:
		if a.val == 0 {
			return Const[T](0)
		}
		return r.variable(val, r.record(opcode.DivPV, r.operand(a), int(b.idx)))
	default:
		if b.val == 1 {
			return a
		}
		return r.variable(val, r.record(opcode.DivVP, int(a.idx), r.operand(b)))
	}
}

// Neg returns -a.
func (a AD[T]) Neg() AD[T] {
	if a.rec == nil {
		return Const(-a.val)
	}
	return a.rec.variable(-a.val, a.rec.record(opcode.Neg, int(a.idx)))
}

// Azmul returns x * y, except that it is zero whenever x is zero, even if y is
// infinite or NaN. Derivatives keep that property.
func Azmul[T Base](x, y AD[T]) AD[T] {
	val := x.val * y.val
	if x.val == 0 {
		val = 0
	}
	r := recordingOf(x, y)
	switch {
	case r == nil:
		return Const(val)
	case x.rec != nil && y.rec != nil:
		return r.variable(val, r.record(opcode.ZmulVV, int(x.idx), int(y.idx)))
	case x.rec == nil:
		if x.val == 0 {
			return Const[T](0)
		}
		return r.variable(val, r.record(opcode.ZmulPV, r.operand(x), int(y.idx)))
	default:
		return r.variable(val, r.record(opcode.ZmulVP, int(x.idx), r.operand(y)))
	}
}
