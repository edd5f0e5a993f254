// Package opcode is the static catalogue of operators that can appear on a tape.
//
// Every operator has a fixed result count and either a fixed argument count or a
// variable one. Variable-arity operators (CSum, CSkip) report NumArg zero and carry
// their true argument count inside their payload, both at the front (so a forward
// iterator can step over it) and as the final element (so a reverse iterator can).
//
// Naming follows the argument layout: a PV suffix means the left operand is a
// parameter index and the right one a variable index, VP the opposite, VV both
// variables.
package opcode

import "fmt"

// Code identifies an operator kind.
type Code uint8

// Operator codes.
const (
	Begin Code = iota
	End
	Inv
	Par
	AddPV
	AddVV
	SubPV
	SubVP
	SubVV
	MulPV
	MulVV
	DivPV
	DivVP
	DivVV
	ZmulPV
	ZmulVP
	ZmulVV
	Neg
	Abs
	Exp
	Log
	Sqrt
	Sin
	Cos
	Tanh
	EqPV
	EqVV
	NePV
	NeVV
	LtPV
	LtVP
	LtVV
	LePV
	LeVP
	LeVV
	CExp
	CSum
	CSkip
	NumCode // number of operator codes, not an operator
)

type class uint8

const (
	classMarker class = 1 << iota
	classUnary
	classBinary
	classCompare
	classCommutative
	classVariadic
)

type info struct {
	name   string
	numArg int
	numRes int
	class  class
}

var table = [NumCode]info{
	Begin:  {"Begin", 1, 1, classMarker},
	End:    {"End", 0, 0, classMarker},
	Inv:    {"Inv", 0, 1, classMarker},
	Par:    {"Par", 1, 1, 0},
	AddPV:  {"AddPV", 2, 1, classBinary},
	AddVV:  {"AddVV", 2, 1, classBinary | classCommutative},
	SubPV:  {"SubPV", 2, 1, classBinary},
	SubVP:  {"SubVP", 2, 1, classBinary},
	SubVV:  {"SubVV", 2, 1, classBinary},
	MulPV:  {"MulPV", 2, 1, classBinary},
	MulVV:  {"MulVV", 2, 1, classBinary | classCommutative},
	DivPV:  {"DivPV", 2, 1, classBinary},
	DivVP:  {"DivVP", 2, 1, classBinary},
	DivVV:  {"DivVV", 2, 1, classBinary},
	ZmulPV: {"ZmulPV", 2, 1, classBinary},
	ZmulVP: {"ZmulVP", 2, 1, classBinary},
	ZmulVV: {"ZmulVV", 2, 1, classBinary},
	Neg:    {"Neg", 1, 1, classUnary},
	Abs:    {"Abs", 1, 1, classUnary},
	Exp:    {"Exp", 1, 1, classUnary},
	Log:    {"Log", 1, 1, classUnary},
	Sqrt:   {"Sqrt", 1, 1, classUnary},
	Sin:    {"Sin", 1, 2, classUnary},
	Cos:    {"Cos", 1, 2, classUnary},
	Tanh:   {"Tanh", 1, 2, classUnary},
	EqPV:   {"EqPV", 2, 0, classCompare},
	EqVV:   {"EqVV", 2, 0, classCompare | classCommutative},
	NePV:   {"NePV", 2, 0, classCompare},
	NeVV:   {"NeVV", 2, 0, classCompare | classCommutative},
	LtPV:   {"LtPV", 2, 0, classCompare},
	LtVP:   {"LtVP", 2, 0, classCompare},
	LtVV:   {"LtVV", 2, 0, classCompare},
	LePV:   {"LePV", 2, 0, classCompare},
	LeVP:   {"LeVP", 2, 0, classCompare},
	LeVV:   {"LeVV", 2, 0, classCompare},
	CExp:   {"CExp", 6, 1, 0},
	CSum:   {"CSum", 0, 1, classVariadic},
	CSkip:  {"CSkip", 0, 0, classVariadic},
}

func init() {
	for c, in := range table {
		if in.name == "" {
			panic(fmt.Sprintf("opcode: code %d missing from table", c))
		}
	}
}

// String returns the operator name.
func (c Code) String() string {
	if c >= NumCode {
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
	return table[c].name
}

// Valid reports whether c is a known operator.
func (c Code) Valid() bool {
	return c < NumCode
}

// NumArg returns the fixed argument count, zero for variable-arity operators.
func (c Code) NumArg() int {
	return c.lookup().numArg
}

// NumRes returns the number of result variables.
func (c Code) NumRes() int {
	return c.lookup().numRes
}

// Variadic reports whether c carries a self-describing variable-length payload.
func (c Code) Variadic() bool {
	return c.lookup().class&classVariadic != 0
}

// Commutative reports whether both operands of c can be swapped.
func (c Code) Commutative() bool {
	return c.lookup().class&classCommutative != 0
}

// Compare reports whether c is a comparison operator.
func (c Code) Compare() bool {
	return c.lookup().class&classCompare != 0
}

// Unary reports whether c takes a single variable argument.
func (c Code) Unary() bool {
	return c.lookup().class&classUnary != 0
}

// Binary reports whether c is a two-operand arithmetic operator.
func (c Code) Binary() bool {
	return c.lookup().class&classBinary != 0
}

// Marker reports whether c is Begin, End or Inv.
func (c Code) Marker() bool {
	return c.lookup().class&classMarker != 0
}

// Additive reports whether c can take part in a cumulative sum.
func (c Code) Additive() bool {
	switch c {
	case AddPV, AddVV, SubPV, SubVP, SubVV, CSum:
		return true
	}
	return false
}

func (c Code) lookup() *info {
	if c >= NumCode {
		panic(fmt.Sprintf("opcode: unknown code %d", uint8(c)))
	}
	return &table[c]
}
