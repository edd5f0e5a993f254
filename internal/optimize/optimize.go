// Package optimize rewrites a sealed tape into a smaller one computing the same
// dependent values.
//
// Run applies, in order: usage analysis (operators no dependent needs are
// dropped), structural deduplication (an operator identical to an earlier one
// after argument remapping is replaced by it), cumulative-sum folding (chains of
// additions and subtractions whose intermediate results are used once become a
// single CSum), and conditional-skip insertion. The result is re-recorded into a
// fresh tape; the input is never modified.
package optimize

import (
	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

// Run returns an optimized copy of the tape played by play.
func Run[T tape.Base](play *tape.Player[T], opts Options[T]) (*tape.Tape[T], error) {
	log := opts.logger()
	a := newAnalysis(play, opts.KeepCompareOps)

	a.markUsed()
	log.Debug("usage", "ops", play.NumOp(), "used", a.countUsed())

	dups := a.dedup()
	a.markUsed()
	log.Debug("dedup", "duplicates", dups, "used", a.countUsed())

	roots, members := a.classifySums()
	log.Debug("cumulative sums", "sums", roots, "folded", members)

	if opts.EmitConditionalSkips {
		skips, listed := a.planSkips()
		log.Debug("conditional skips", "skips", skips, "listed", listed)
	}

	out, err := a.emit()
	if err != nil {
		return nil, errors.Wrap(err, "optimize: re-record")
	}
	log.Debug("emit", "ops", out.NumOp(), "vars", out.NumVar(), "params", out.NumParam())

	if opts.SelfCheck != nil {
		if err := selfCheck(play, tape.NewPlayer(out), opts.SelfCheck, opts.Tolerance); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// analysis carries the per-operator facts the passes compute. Indices are those
// of the input tape throughout; only emit produces new ones.
type analysis[T tape.Base] struct {
	play        *tape.Player[T]
	rnd         *tape.Random
	steps       []tape.Step
	keepCompare bool
	lastInv     tape.OpIndex

	rep    []tape.VarIndex // representative variable after dedup
	dup    []bool          // op duplicates an earlier op
	used   []bool          // op is needed by a dependent or a kept comparison
	uses   []int           // references to each representative variable
	member []bool          // additive op folded into the sum consuming it
	sums   map[tape.OpIndex]*sumTerms[T]
	skips  map[tape.OpIndex][]skipPlan
}

func newAnalysis[T tape.Base](play *tape.Player[T], keepCompare bool) *analysis[T] {
	a := &analysis[T]{
		play:        play,
		rnd:         play.Random(),
		steps:       make([]tape.Step, 0, play.NumOp()),
		keepCompare: keepCompare,
		rep:         make([]tape.VarIndex, play.NumVar()),
		dup:         make([]bool, play.NumOp()),
		used:        make([]bool, play.NumOp()),
		uses:        make([]int, play.NumVar()),
		member:      make([]bool, play.NumOp()),
	}
	for _, s := range play.All() {
		a.steps = append(a.steps, s)
		if s.Code == opcode.Inv {
			a.lastInv = s.Op
		}
	}
	for v := range a.rep {
		a.rep[v] = tape.VarIndex(v)
	}
	return a
}

// emitted reports whether op survives into the output tape.
func (a *analysis[T]) emitted(op tape.OpIndex) bool {
	return a.used[op] && !a.dup[op] && !a.member[op]
}

func (a *analysis[T]) countUsed() int {
	n := 0
	for op := range a.used {
		if a.used[op] && !a.dup[op] {
			n++
		}
	}
	return n
}

// varArgs returns the representative variables op reads, as the output tape will
// see them. Folded sum roots read their flattened terms.
func (a *analysis[T]) varArgs(op tape.OpIndex) []tape.VarIndex {
	if t := a.sums[op]; t != nil {
		return append(append([]tape.VarIndex(nil), t.add...), t.sub...)
	}
	s := a.steps[op]
	var vs []tape.VarIndex
	for slot := range opcode.VarSlots(s.Code, s.Args) {
		vs = append(vs, a.rep[s.Args[slot]])
	}
	return vs
}
