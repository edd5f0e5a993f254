package optimize

import (
	"math"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

const maxFixedArgs = 6

// opKey identifies an operator by code and remapped arguments. Variable slots hold
// representative indices, parameter slots the parameter's bit pattern, so two
// parameters with equal values match even when stored twice.
type opKey struct {
	code opcode.Code
	args [maxFixedArgs]uint64
}

// dedup walks the used operators in order and points every variable of an
// operator that repeats an earlier one at the earlier results. It returns the
// number of duplicates found.
func (a *analysis[T]) dedup() int {
	seen := make(map[opKey]tape.OpIndex)
	n := 0
	for op, s := range a.steps {
		if !a.used[op] || !dedupable(s.Code) {
			continue
		}
		k := a.key(s)
		prev, ok := seen[k]
		if !ok {
			seen[k] = tape.OpIndex(op)
			continue
		}
		first := a.steps[prev].Var
		for i := 0; i < s.Code.NumRes(); i++ {
			a.rep[s.Var+tape.VarIndex(i)] = first + tape.VarIndex(i)
		}
		a.dup[op] = true
		n++
	}
	return n
}

func dedupable(c opcode.Code) bool {
	return !c.Marker() && !c.Variadic() && !c.Compare()
}

func (a *analysis[T]) key(s tape.Step) opKey {
	k := opKey{code: s.Code}
	for i, x := range s.Args {
		k.args[i] = uint64(x)
	}
	for slot := range opcode.VarSlots(s.Code, s.Args) {
		k.args[slot] = uint64(a.rep[s.Args[slot]])
	}
	for slot := range opcode.ParamSlots(s.Code, s.Args) {
		k.args[slot] = math.Float64bits(float64(a.play.Parameter(s.Args[slot])))
	}
	if s.Code.Commutative() && k.args[0] > k.args[1] {
		k.args[0], k.args[1] = k.args[1], k.args[0]
	}
	return k
}
