// Package sweep interprets a tape. Forward propagates Taylor coefficients from the
// independent variables to every recorded variable; Reverse propagates adjoints of a
// weighted sum of dependent coefficients back to all variables.
//
// Buffers are caller owned, sized with NewTaylor and NewPartial for one tape, and
// can be reused across calls. Neither sweep allocates per operator.
package sweep

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// ForwardResult reports what a forward sweep noticed besides the coefficients.
type ForwardResult struct {
	// CompareChange counts comparison operators whose recorded outcome no longer
	// holds at the current point. Only a sweep that includes order zero counts.
	CompareChange int
	// CompareChangeOp is the first such operator, or -1.
	CompareChangeOp tape.OpIndex
}

// Forward computes orders lo..up of every variable. The caller has stored the
// coefficients of the independent variables for those orders in tay; orders below
// lo must be left over from an earlier sweep on the same tape.
func Forward[T tape.Base](p *tape.Player[T], lo, up int, tay *Taylor[T]) (ForwardResult, error) {
	res := ForwardResult{CompareChangeOp: -1}
	if tay.NumVar() != p.NumVar() {
		return res, errors.Wrapf(ErrBufferSize, "taylor buffer has %d rows, tape has %d variables", tay.NumVar(), p.NumVar())
	}
	if lo < 0 || lo > up || up >= tay.Cap() {
		return res, errors.Wrapf(ErrOrder, "orders %d..%d with capacity %d", lo, up, tay.Cap())
	}
	if lo > tay.Orders() {
		return res, errors.Wrapf(ErrOrder, "order %d requested but only %d computed", lo, tay.Orders())
	}
	if lo > 0 && len(tay.skip) != p.NumOp() {
		return res, errors.Wrapf(ErrBufferSize, "taylor buffer was filled by a tape with %d operators", len(tay.skip))
	}
	if lo == 0 {
		if len(tay.skip) != p.NumOp() {
			tay.skip = make([]bool, p.NumOp())
		} else {
			clear(tay.skip)
		}
	}

	params := p.Parameters()
	row := tay.Row
	// operand returns the coefficient row of a variable or, for a parameter, a
	// constant row held in scratch.
	var pbuf [2][]T
	for i := range pbuf {
		pbuf[i] = make([]T, tay.Cap())
	}
	operand := func(buf int, isVar bool, idx int) []T {
		if isVar {
			return row(tape.VarIndex(idx))
		}
		b := pbuf[buf]
		clear(b)
		b[0] = params[idx]
		return b
	}
	var add, sub [][]T

	for _, s := range p.All() {
		if tay.skip != nil && tay.skip[s.Op] {
			continue
		}
		a := s.Args
		switch s.Code {
		case opcode.Begin, opcode.End, opcode.Inv:

		case opcode.Par:
			z := row(s.Var)
			for k := lo; k <= up; k++ {
				z[k] = 0
			}
			if lo == 0 {
				z[0] = params[a[0]]
			}

		case opcode.AddVV:
			forwardAddVV(lo, up, row(s.Var), row(tape.VarIndex(a[0])), row(tape.VarIndex(a[1])))
		case opcode.AddPV:
			forwardAddPV(lo, up, row(s.Var), params[a[0]], row(tape.VarIndex(a[1])))
		case opcode.SubVV:
			forwardSubVV(lo, up, row(s.Var), row(tape.VarIndex(a[0])), row(tape.VarIndex(a[1])))
		case opcode.SubPV:
			forwardSubPV(lo, up, row(s.Var), params[a[0]], row(tape.VarIndex(a[1])))
		case opcode.SubVP:
			forwardSubVP(lo, up, row(s.Var), row(tape.VarIndex(a[0])), params[a[1]])
		case opcode.MulVV:
			forwardMulVV(lo, up, row(s.Var), row(tape.VarIndex(a[0])), row(tape.VarIndex(a[1])))
		case opcode.MulPV:
			forwardMulPV(lo, up, row(s.Var), params[a[0]], row(tape.VarIndex(a[1])))
		case opcode.DivVV:
			forwardDivVV(lo, up, row(s.Var), row(tape.VarIndex(a[0])), row(tape.VarIndex(a[1])))
		case opcode.DivPV:
			forwardDivPV(lo, up, row(s.Var), params[a[0]], row(tape.VarIndex(a[1])))
		case opcode.DivVP:
			forwardDivVP(lo, up, row(s.Var), row(tape.VarIndex(a[0])), params[a[1]])
		case opcode.ZmulVV:
			forwardZmulVV(lo, up, row(s.Var), row(tape.VarIndex(a[0])), row(tape.VarIndex(a[1])))
		case opcode.ZmulPV:
			forwardZmulPV(lo, up, row(s.Var), params[a[0]], row(tape.VarIndex(a[1])))
		case opcode.ZmulVP:
			forwardZmulVP(lo, up, row(s.Var), row(tape.VarIndex(a[0])), params[a[1]])

		case opcode.Neg:
			forwardNeg(lo, up, row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Abs:
			forwardAbs(lo, up, row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Exp:
			forwardExp(lo, up, row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Log:
			forwardLog(lo, up, row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Sqrt:
			forwardSqrt(lo, up, row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Sin:
			forwardSinCos(lo, up, row(s.Var), row(s.Var+1), row(tape.VarIndex(a[0])))
		case opcode.Cos:
			forwardSinCos(lo, up, row(s.Var+1), row(s.Var), row(tape.VarIndex(a[0])))
		case opcode.Tanh:
			forwardTanh(lo, up, row(s.Var), row(s.Var+1), row(tape.VarIndex(a[0])))

		case opcode.EqPV, opcode.EqVV, opcode.NePV, opcode.NeVV,
			opcode.LtPV, opcode.LtVP, opcode.LtVV, opcode.LePV, opcode.LeVP, opcode.LeVV:
			if lo != 0 {
				continue
			}
			left, right := compareOperands(s.Code, a, params, tay)
			if !opcode.Holds(opcode.CompareRel(s.Code), left, right) {
				if res.CompareChange == 0 {
					res.CompareChangeOp = s.Op
				}
				res.CompareChange++
			}

		case opcode.CExp:
			flags := a[opcode.CondFlags]
			left := condValue(flags&opcode.FlagLeftVar != 0, a[opcode.CondLeft], params, tay)
			right := condValue(flags&opcode.FlagRightVar != 0, a[opcode.CondRight], params, tay)
			pick := operand(1, flags&opcode.FlagFalseVar != 0, a[opcode.CExpFalse])
			if opcode.Holds(opcode.Rel(a[opcode.CondRel]), left, right) {
				pick = operand(0, flags&opcode.FlagTrueVar != 0, a[opcode.CExpTrue])
			}
			copy(row(s.Var)[lo:up+1], pick[lo:up+1])

		case opcode.CSum:
			param, addArgs, subArgs := opcode.CSumParts(a)
			add, sub = add[:0], sub[:0]
			for _, v := range addArgs {
				add = append(add, row(tape.VarIndex(v)))
			}
			for _, v := range subArgs {
				sub = append(sub, row(tape.VarIndex(v)))
			}
			forwardCSum(lo, up, row(s.Var), params[param], add, sub)

		case opcode.CSkip:
			if lo != 0 {
				continue
			}
			rel, flags, l, r, ifTrue, ifFalse := opcode.CSkipParts(a)
			left := condValue(flags&opcode.FlagLeftVar != 0, l, params, tay)
			right := condValue(flags&opcode.FlagRightVar != 0, r, params, tay)
			list := ifFalse
			if opcode.Holds(rel, left, right) {
				list = ifTrue
			}
			for _, op := range list {
				tay.skip[op] = true
			}

		default:
			panic(fmt.Sprintf("sweep: forward has no rule for %s", s.Code))
		}
	}
	tay.orders = up + 1
	return res, nil
}

// compareOperands returns the order-zero values a comparison operator compares.
func compareOperands[T tape.Base](c opcode.Code, a []int, params []T, tay *Taylor[T]) (left, right T) {
	switch c {
	case opcode.EqPV, opcode.NePV, opcode.LtPV, opcode.LePV:
		return params[a[0]], tay.Coef(tape.VarIndex(a[1]), 0)
	case opcode.LtVP, opcode.LeVP:
		return tay.Coef(tape.VarIndex(a[0]), 0), params[a[1]]
	}
	return tay.Coef(tape.VarIndex(a[0]), 0), tay.Coef(tape.VarIndex(a[1]), 0)
}
