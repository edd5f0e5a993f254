package opcode

import (
	"cmp"
	"fmt"
	"iter"
)

// Rel is the relation evaluated by CExp and CSkip.
type Rel uint8

// Relations.
const (
	Lt Rel = iota
	Le
	Eq
	Ge
	Gt
	Ne
	numRel
)

var relNames = [numRel]string{"<", "<=", "==", ">=", ">", "!="}

// String returns the relation symbol.
func (r Rel) String() string {
	if r >= numRel {
		return fmt.Sprintf("Rel(%d)", uint8(r))
	}
	return relNames[r]
}

// Valid reports whether r is a known relation.
func (r Rel) Valid() bool {
	return r < numRel
}

// Holds evaluates left r right. Every relation except Ne is false when an operand is NaN.
func Holds[T cmp.Ordered](r Rel, left, right T) bool {
	switch r {
	case Lt:
		return left < right
	case Le:
		return left <= right
	case Eq:
		return left == right
	case Ge:
		return left >= right
	case Gt:
		return left > right
	case Ne:
		return left != right
	}
	panic(fmt.Sprintf("opcode: unknown relation %d", uint8(r)))
}

// Flag bits stored in the second argument of CExp and CSkip.
const (
	FlagLeftVar  = 1 << iota // left operand is a variable
	FlagRightVar             // right operand is a variable
	FlagTrueVar              // CExp only: value if true is a variable
	FlagFalseVar             // CExp only: value if false is a variable
)

// Fixed positions inside CExp and CSkip payloads.
const (
	CondRel   = 0
	CondFlags = 1
	CondLeft  = 2
	CondRight = 3
	CExpTrue  = 4
	CExpFalse = 5

	cskipNumTrue  = 4
	cskipNumFalse = 5
	cskipHeader   = 6

	csumParam  = 0
	csumEndAdd = 1
	csumEndSub = 2
	csumHeader = 3
)

// ArgCount returns the number of arguments of an operator whose payload starts at
// args[0]. For variable-arity operators it reads the payload header.
func ArgCount(c Code, args []int) int {
	switch c {
	case CSum:
		return args[csumEndSub] + 1
	case CSkip:
		return cskipHeader + args[cskipNumTrue] + args[cskipNumFalse] + 1
	}
	return c.NumArg()
}

// HeaderLen returns how many leading payload elements ArgCount reads.
func HeaderLen(c Code) int {
	switch c {
	case CSum:
		return csumHeader
	case CSkip:
		return cskipHeader
	}
	return c.NumArg()
}

// ValidHeader reports whether the header of a variable-arity payload describes
// lists of non-negative length. args must hold at least HeaderLen(c) elements.
func ValidHeader(c Code, args []int) bool {
	switch c {
	case CSum:
		return csumHeader <= args[csumEndAdd] && args[csumEndAdd] <= args[csumEndSub]
	case CSkip:
		return args[cskipNumTrue] >= 0 && args[cskipNumFalse] >= 0
	}
	return true
}

// ArgCountBackward returns the number of arguments of an operator given the final
// element of its payload. Only meaningful for variable-arity operators; fixed
// operators ignore last.
func ArgCountBackward(c Code, last int) int {
	switch c {
	case CSum:
		return last
	case CSkip:
		return cskipHeader + last + 1
	}
	return c.NumArg()
}

// VarSlots yields the payload positions holding variable indices.
func VarSlots(c Code, args []int) iter.Seq[int] {
	return func(yield func(int) bool) {
		switch {
		case c == CExp:
			flags := args[CondFlags]
			for bit, slot := range [...]int{CondLeft, CondRight, CExpTrue, CExpFalse} {
				if flags&(1<<bit) != 0 && !yield(slot) {
					return
				}
			}
		case c == CSkip:
			flags := args[CondFlags]
			if flags&FlagLeftVar != 0 && !yield(CondLeft) {
				return
			}
			if flags&FlagRightVar != 0 {
				yield(CondRight)
			}
		case c == CSum:
			for i := csumHeader; i < args[csumEndSub]; i++ {
				if !yield(i) {
					return
				}
			}
		case c == Begin, c == End, c == Inv, c == Par:
		case c.Unary():
			yield(0)
		default:
			left, right := operandKinds(c)
			if left && !yield(0) {
				return
			}
			if right {
				yield(1)
			}
		}
	}
}

// ParamSlots yields the payload positions holding parameter indices.
func ParamSlots(c Code, args []int) iter.Seq[int] {
	return func(yield func(int) bool) {
		switch {
		case c == CExp:
			flags := args[CondFlags]
			for bit, slot := range [...]int{CondLeft, CondRight, CExpTrue, CExpFalse} {
				if flags&(1<<bit) == 0 && !yield(slot) {
					return
				}
			}
		case c == CSkip:
			flags := args[CondFlags]
			if flags&FlagLeftVar == 0 && !yield(CondLeft) {
				return
			}
			if flags&FlagRightVar == 0 {
				yield(CondRight)
			}
		case c == CSum:
			yield(csumParam)
		case c == Begin, c == Par:
			yield(0)
		case c == End, c == Inv, c.Unary():
		default:
			left, right := operandKinds(c)
			if !left && !yield(0) {
				return
			}
			if !right {
				yield(1)
			}
		}
	}
}

// operandKinds reports whether the left and right operand of a binary or compare
// operator are variables.
func operandKinds(c Code) (left, right bool) {
	switch c {
	case AddPV, SubPV, MulPV, DivPV, ZmulPV, EqPV, NePV, LtPV, LePV:
		return false, true
	case SubVP, DivVP, ZmulVP, LtVP, LeVP:
		return true, false
	case AddVV, SubVV, MulVV, DivVV, ZmulVV, EqVV, NeVV, LtVV, LeVV:
		return true, true
	}
	panic(fmt.Sprintf("opcode: %s has no binary operand layout", c))
}

// CSumArgs builds the payload of a cumulative sum
//
//	z = parameter[param] + add[0] + ... - sub[0] - ...
func CSumArgs(param int, add, sub []int) []int {
	endAdd := csumHeader + len(add)
	endSub := endAdd + len(sub)
	args := make([]int, 0, endSub+1)
	args = append(args, param, endAdd, endSub)
	args = append(args, add...)
	args = append(args, sub...)
	return append(args, endSub+1)
}

// CSumParts splits a cumulative-sum payload. The returned slices alias args.
func CSumParts(args []int) (param int, add, sub []int) {
	return args[csumParam],
		args[csumHeader:args[csumEndAdd]],
		args[args[csumEndAdd]:args[csumEndSub]]
}

// CSkipArgs builds the payload of a conditional skip. ifTrue lists the operators
// skipped when left rel right holds, ifFalse those skipped when it does not.
func CSkipArgs(rel Rel, flags, left, right int, ifTrue, ifFalse []int) []int {
	args := make([]int, 0, cskipHeader+len(ifTrue)+len(ifFalse)+1)
	args = append(args, int(rel), flags, left, right, len(ifTrue), len(ifFalse))
	args = append(args, ifTrue...)
	args = append(args, ifFalse...)
	return append(args, len(ifTrue)+len(ifFalse))
}

// CSkipParts splits a conditional-skip payload. The returned slices alias args.
func CSkipParts(args []int) (rel Rel, flags, left, right int, ifTrue, ifFalse []int) {
	nt, nf := args[cskipNumTrue], args[cskipNumFalse]
	return Rel(args[CondRel]), args[CondFlags], args[CondLeft], args[CondRight],
		args[cskipHeader : cskipHeader+nt],
		args[cskipHeader+nt : cskipHeader+nt+nf]
}

// CSkipListSlot returns the payload position of the i-th listed operator.
func CSkipListSlot(i int) int {
	return cskipHeader + i
}

// CompareRel returns the relation a comparison operator asserts between its
// left and right operand.
func CompareRel(c Code) Rel {
	switch c {
	case EqPV, EqVV:
		return Eq
	case NePV, NeVV:
		return Ne
	case LtPV, LtVP, LtVV:
		return Lt
	case LePV, LeVP, LeVV:
		return Le
	}
	panic(fmt.Sprintf("opcode: %s is not a comparison", c))
}

// Negate returns the relation that holds exactly when r does not (NaN aside).
func (r Rel) Negate() Rel {
	switch r {
	case Lt:
		return Ge
	case Le:
		return Gt
	case Eq:
		return Ne
	case Ge:
		return Lt
	case Gt:
		return Le
	case Ne:
		return Eq
	}
	panic(fmt.Sprintf("opcode: unknown relation %d", uint8(r)))
}

// CompareCode picks the comparison operator recording that "left rel right" came
// out as holds. The recorded operator always asserts a relation that held, so a
// false Lt is recorded as Le with swapped operands. swap reports whether the
// operands must be stored in reverse order. ok is false when both operands are
// parameters and nothing needs recording.
func CompareCode(rel Rel, leftVar, rightVar, holds bool) (c Code, swap, ok bool) {
	if !leftVar && !rightVar {
		return 0, false, false
	}
	if !holds {
		rel = rel.Negate()
	}
	switch rel {
	case Ge:
		rel, swap = Le, true
	case Gt:
		rel, swap = Lt, true
	}
	if swap {
		leftVar, rightVar = rightVar, leftVar
	}
	if (rel == Eq || rel == Ne) && leftVar && !rightVar {
		swap = !swap
		leftVar, rightVar = rightVar, leftVar
	}
	var codes [3]Code // PV, VP, VV
	switch rel {
	case Eq:
		codes = [3]Code{EqPV, 0, EqVV}
	case Ne:
		codes = [3]Code{NePV, 0, NeVV}
	case Lt:
		codes = [3]Code{LtPV, LtVP, LtVV}
	case Le:
		codes = [3]Code{LePV, LeVP, LeVV}
	}
	switch {
	case leftVar && rightVar:
		return codes[2], swap, true
	case leftVar:
		return codes[1], swap, true
	default:
		return codes[0], swap, true
	}
}
