package sweep

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// Reverse propagates adjoints for orders 0..q-1. On entry partial holds the
// weights of the dependent coefficients, row v column k weighting the order-k
// coefficient of variable v. On return every row holds the derivative of the
// weighted sum with respect to that variable's coefficients; rows of the
// independent variables are the usual gradient.
//
// tay must hold at least q orders from a forward sweep on the same tape. Operators
// skipped by that sweep, and operators whose results all have zero adjoint, are
// not visited.
func Reverse[T tape.Base](p *tape.Player[T], q int, tay *Taylor[T], partial *Partial[T]) error {
	if tay.NumVar() != p.NumVar() || partial.NumVar() != p.NumVar() {
		return errors.Wrapf(ErrBufferSize, "buffers have %d and %d rows, tape has %d variables",
			tay.NumVar(), partial.NumVar(), p.NumVar())
	}
	if q < 1 || q > tay.Orders() || q > partial.Orders() {
		return errors.Wrapf(ErrOrder, "reverse of %d orders with %d computed and %d adjoint columns",
			q, tay.Orders(), partial.Orders())
	}
	if len(tay.skip) != p.NumOp() {
		return errors.Wrapf(ErrBufferSize, "taylor buffer was filled by a tape with %d operators", len(tay.skip))
	}

	d := q - 1
	params := p.Parameters()
	row := func(v int) []T { return tay.Row(tape.VarIndex(v)) }
	adj := func(v int) []T { return partial.Row(tape.VarIndex(v)) }
	work := make([]T, 2*q)
	scratch := func(i int, src []T) []T {
		w := work[i*q : (i+1)*q]
		copy(w, src)
		return w
	}

	for _, s := range p.Backward() {
		if tay.skip[s.Op] {
			continue
		}
		nres := s.Code.NumRes()
		if nres == 0 || s.Code.Marker() || s.Code == opcode.Par {
			continue
		}
		z := int(s.Var)
		if allZero(adj(z)[:q]) && (nres == 1 || allZero(adj(z+1)[:q])) {
			continue
		}
		a := s.Args
		pz := adj(z)
		switch s.Code {
		case opcode.AddVV:
			reverseAdd(d, pz, adj(a[0]))
			reverseAdd(d, pz, adj(a[1]))
		case opcode.AddPV:
			reverseAdd(d, pz, adj(a[1]))
		case opcode.SubVV:
			reverseAdd(d, pz, adj(a[0]))
			reverseSub(d, pz, adj(a[1]))
		case opcode.SubPV:
			reverseSub(d, pz, adj(a[1]))
		case opcode.SubVP:
			reverseAdd(d, pz, adj(a[0]))
		case opcode.Neg:
			reverseSub(d, pz, adj(a[0]))

		case opcode.MulVV:
			reverseMulVV(d, pz, adj(a[0]), adj(a[1]), row(a[0]), row(a[1]))
		case opcode.MulPV:
			reverseMulPV(d, pz, params[a[0]], adj(a[1]))
		case opcode.ZmulVV:
			reverseZmulVV(d, pz, adj(a[0]), adj(a[1]), row(a[0]), row(a[1]))
		case opcode.ZmulPV:
			reverseZmulPV(d, pz, params[a[0]], adj(a[1]))
		case opcode.ZmulVP:
			reverseZmulVP(d, pz, adj(a[0]), params[a[1]])
		case opcode.DivVV:
			reverseDivVV(d, scratch(0, pz), adj(a[0]), adj(a[1]), row(a[1]), row(z))
		case opcode.DivPV:
			reverseDivVV(d, scratch(0, pz), nil, adj(a[1]), row(a[1]), row(z))
		case opcode.DivVP:
			reverseDivVP(d, pz, adj(a[0]), params[a[1]])

		case opcode.Abs:
			reverseAbs(d, pz, adj(a[0]), row(a[0]))
		case opcode.Exp:
			reverseExp(d, scratch(0, pz), adj(a[0]), row(a[0]), row(z))
		case opcode.Log:
			reverseLog(d, scratch(0, pz), adj(a[0]), row(a[0]), row(z))
		case opcode.Sqrt:
			reverseSqrt(d, scratch(0, pz), adj(a[0]), row(z))
		case opcode.Sin:
			reverseSinCos(d, scratch(0, pz), scratch(1, adj(z+1)), adj(a[0]), row(z), row(z+1), row(a[0]))
		case opcode.Cos:
			reverseSinCos(d, scratch(1, adj(z+1)), scratch(0, pz), adj(a[0]), row(z+1), row(z), row(a[0]))
		case opcode.Tanh:
			reverseTanh(d, scratch(0, pz), scratch(1, adj(z+1)), adj(a[0]), row(z), row(z+1), row(a[0]))

		case opcode.CExp:
			flags := a[opcode.CondFlags]
			left := condValue(flags&opcode.FlagLeftVar != 0, a[opcode.CondLeft], params, tay)
			right := condValue(flags&opcode.FlagRightVar != 0, a[opcode.CondRight], params, tay)
			bit, slot := opcode.FlagFalseVar, opcode.CExpFalse
			if opcode.Holds(opcode.Rel(a[opcode.CondRel]), left, right) {
				bit, slot = opcode.FlagTrueVar, opcode.CExpTrue
			}
			if flags&bit != 0 {
				reverseAdd(d, pz, adj(a[slot]))
			}

		case opcode.CSum:
			_, add, sub := opcode.CSumParts(a)
			for _, v := range add {
				reverseAdd(d, pz, adj(v))
			}
			for _, v := range sub {
				reverseSub(d, pz, adj(v))
			}

		default:
			panic(fmt.Sprintf("sweep: reverse has no rule for %s", s.Code))
		}
	}
	return nil
}

func condValue[T tape.Base](isVar bool, idx int, params []T, tay *Taylor[T]) T {
	if isVar {
		return tay.Coef(tape.VarIndex(idx), 0)
	}
	return params[idx]
}

func allZero[T tape.Base](xs []T) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}
