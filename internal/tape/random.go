package tape

import "github.com/born-ml/adtape/internal/opcode"

// Random maps between operator positions, argument offsets and variables, for
// passes that must jump to arbitrary tape positions.
type Random struct {
	opArg []int
	opVar []VarIndex
	varOp []OpIndex
}

// Random returns the random-access tables, building them on first use.
func (p *Player[T]) Random() *Random {
	p.randomOnce.Do(func() {
		t := p.tape
		r := &Random{
			opArg: make([]int, len(t.codes)),
			opVar: make([]VarIndex, len(t.codes)),
			varOp: make([]OpIndex, t.numVar),
		}
		arg, v := 0, 0
		for op, code := range t.codes {
			r.opArg[op] = arg
			r.opVar[op] = VarIndex(v)
			for k := 0; k < code.NumRes(); k++ {
				r.varOp[v+k] = OpIndex(op)
			}
			arg += opcode.ArgCount(code, t.args[arg:])
			v += code.NumRes()
		}
		p.random = r
	})
	return p.random
}

// ArgOffset returns where the arguments of op start in the argument array.
func (r *Random) ArgOffset(op OpIndex) int { return r.opArg[op] }

// FirstVar returns the first result variable of op.
func (r *Random) FirstVar(op OpIndex) VarIndex { return r.opVar[op] }

// OpOf returns the operator that produced v.
func (r *Random) OpOf(v VarIndex) OpIndex { return r.varOp[v] }

// At returns the operator at an arbitrary position.
func (p *Player[T]) At(op OpIndex) Step {
	r := p.Random()
	t := p.tape
	code := t.codes[op]
	start := r.opArg[op]
	n := opcode.ArgCount(code, t.args[start:])
	return Step{Op: op, Code: code, Args: t.args[start : start+n : start+n], Var: r.opVar[op]}
}
