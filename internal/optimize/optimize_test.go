package optimize

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/sweep"
	"github.com/born-ml/adtape/internal/tape"
)

type builder struct {
	t *testing.T
	r *tape.Recorder[float64]
	x []int
}

func newBuilder(t *testing.T, numInd int) *builder {
	t.Helper()
	b := &builder{t: t, r: tape.NewRecorder[float64]()}
	for i := 0; i < numInd; i++ {
		v, err := b.r.NewIndependent()
		require.NoError(t, err)
		b.x = append(b.x, int(v))
	}
	return b
}

func (b *builder) op(c opcode.Code, args ...int) int {
	b.t.Helper()
	v, err := b.r.NewOperator(c, args...)
	require.NoError(b.t, err)
	return int(v)
}

func (b *builder) seal(deps ...int) *tape.Player[float64] {
	b.t.Helper()
	vs := make([]tape.VarIndex, len(deps))
	for i, d := range deps {
		vs[i] = tape.VarIndex(d)
	}
	tp, err := b.r.Seal(vs)
	require.NoError(b.t, err)
	return tape.NewPlayer(tp)
}

func optimize(t *testing.T, p *tape.Player[float64], opts Options[float64]) *tape.Player[float64] {
	t.Helper()
	out, err := Run(p, opts)
	require.NoError(t, err)
	return tape.NewPlayer(out)
}

func codes(p *tape.Player[float64]) []opcode.Code {
	var cs []opcode.Code
	for _, s := range p.All() {
		cs = append(cs, s.Code)
	}
	return cs
}

// evaluate returns the dependent values and, for the first dependent, the
// gradient, plus the Taylor buffer of the zero-order sweep.
func evaluate(t *testing.T, p *tape.Player[float64], x []float64) (y, grad []float64, tay *sweep.Taylor[float64]) {
	t.Helper()
	tay = sweep.NewTaylor[float64](p.NumVar(), 1)
	for j, v := range x {
		tay.Set(tape.VarIndex(j+1), 0, v)
	}
	_, err := sweep.Forward(p, 0, 0, tay)
	require.NoError(t, err)
	for _, d := range p.Dependents() {
		y = append(y, tay.Coef(d, 0))
	}
	part := sweep.NewPartial[float64](p.NumVar(), 1)
	part.Row(p.Dependents()[0])[0] = 1
	require.NoError(t, sweep.Reverse(p, 1, tay, part))
	for j := range x {
		grad = append(grad, part.Row(tape.VarIndex(j + 1))[0])
	}
	return y, grad, tay
}

func assertClose(t *testing.T, want, got []float64, msgAndArgs ...any) {
	t.Helper()
	require.Len(t, got, len(want), msgAndArgs...)
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), msgAndArgs...)
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9*math.Max(1, math.Abs(want[i])), msgAndArgs...)
	}
}

func TestRun_DedupSquare(t *testing.T) {
	b := newBuilder(t, 2)
	s1 := b.op(opcode.AddVV, b.x[0], b.x[1])
	s2 := b.op(opcode.AddVV, b.x[1], b.x[0])
	p := b.seal(b.op(opcode.MulVV, s1, s2))

	out := optimize(t, p, DefaultOptions[float64]())
	assert.Equal(t, []opcode.Code{opcode.Begin, opcode.Inv, opcode.Inv, opcode.AddVV, opcode.MulVV, opcode.End}, codes(out))

	y, g, _ := evaluate(t, out, []float64{2, 3})
	assert.Equal(t, []float64{25}, y)
	assert.Equal(t, []float64{10, 10}, g)
}

func TestRun_DropsUnusedWork(t *testing.T) {
	b := newBuilder(t, 2)
	b.op(opcode.Exp, b.x[0])
	b.op(opcode.Sin, b.op(opcode.MulVV, b.x[0], b.x[1]))
	z := b.op(opcode.MulPV, b.r.NewParameter(3), b.x[1])
	b.r.NewParameter(42)
	p := b.seal(z)

	out := optimize(t, p, DefaultOptions[float64]())
	assert.Equal(t, []opcode.Code{opcode.Begin, opcode.Inv, opcode.Inv, opcode.MulPV, opcode.End}, codes(out))
	assert.Equal(t, 2, out.NumParam(), "NaN and 3")

	y, g, _ := evaluate(t, out, []float64{5, 7})
	assert.Equal(t, []float64{21}, y)
	assert.Equal(t, []float64{0, 3}, g)
}

func TestRun_FoldsSums(t *testing.T) {
	// z = exp((((x0 + x1) - x2) + 2) - (x3 - 1)) * x0, every partial sum used once.
	b := newBuilder(t, 4)
	s := b.op(opcode.AddVV, b.x[0], b.x[1])
	s = b.op(opcode.SubVV, s, b.x[2])
	s = b.op(opcode.AddPV, b.r.NewParameter(2), s)
	d := b.op(opcode.SubVP, b.x[3], b.r.NewParameter(1))
	s = b.op(opcode.SubVV, s, d)
	p := b.seal(b.op(opcode.MulVV, b.op(opcode.Exp, s), b.x[0]))

	out := optimize(t, p, DefaultOptions[float64]())
	assert.Equal(t, []opcode.Code{
		opcode.Begin, opcode.Inv, opcode.Inv, opcode.Inv, opcode.Inv,
		opcode.CSum, opcode.Exp, opcode.MulVV, opcode.End,
	}, codes(out))

	sum := out.At(5)
	param, add, sub := opcode.CSumParts(sum.Args)
	assert.Equal(t, 3.0, out.Parameter(param))
	assert.Equal(t, []int{1, 2}, add)
	assert.Equal(t, []int{3, 4}, sub)

	x := []float64{0.5, 0.25, 1.5, 2}
	wantY, wantG, _ := evaluate(t, p, x)
	gotY, gotG, _ := evaluate(t, out, x)
	assertClose(t, wantY, gotY)
	assertClose(t, wantG, gotG)
}

func TestRun_SharedPartialSumIsNotFolded(t *testing.T) {
	b := newBuilder(t, 3)
	s := b.op(opcode.AddVV, b.x[0], b.x[1])
	u := b.op(opcode.AddVV, s, b.x[2])
	p := b.seal(b.op(opcode.MulVV, u, s))

	out := optimize(t, p, DefaultOptions[float64]())
	assert.Equal(t, []opcode.Code{
		opcode.Begin, opcode.Inv, opcode.Inv, opcode.Inv,
		opcode.AddVV, opcode.AddVV, opcode.MulVV, opcode.End,
	}, codes(out))
}

func TestRun_ConditionalSkip(t *testing.T) {
	// z = x0 < x1 ? exp(sin(x0)) : log(x1) * x1
	b := newBuilder(t, 2)
	e := b.op(opcode.Exp, b.op(opcode.Sin, b.x[0]))
	l := b.op(opcode.MulVV, b.op(opcode.Log, b.x[1]), b.x[1])
	flags := opcode.FlagLeftVar | opcode.FlagRightVar | opcode.FlagTrueVar | opcode.FlagFalseVar
	p := b.seal(b.op(opcode.CExp, int(opcode.Lt), flags, b.x[0], b.x[1], e, l))

	out := optimize(t, p, DefaultOptions[float64]())
	require.Equal(t, opcode.CSkip, out.Code(3))
	_, _, _, _, ifTrue, ifFalse := opcode.CSkipParts(out.At(3).Args)
	assert.Len(t, ifTrue, 2, "log and its product")
	assert.Len(t, ifFalse, 2, "sin and exp")

	for _, x := range [][]float64{{0.5, 2}, {3, 2}} {
		wantY, wantG, _ := evaluate(t, p, x)
		gotY, gotG, tay := evaluate(t, out, x)
		assertClose(t, wantY, gotY, "x = %v", x)
		assertClose(t, wantG, gotG, "x = %v", x)

		skipped := ifFalse
		if x[0] < x[1] {
			skipped = ifTrue
		}
		for _, op := range skipped {
			assert.True(t, tay.Skipped(tape.OpIndex(op)), "op %d at x = %v", op, x)
		}
	}

	noSkip := DefaultOptions[float64]()
	noSkip.EmitConditionalSkips = false
	assert.NotContains(t, codes(optimize(t, p, noSkip)), opcode.CSkip)
}

func TestRun_CompareOps(t *testing.T) {
	b := newBuilder(t, 2)
	b.op(opcode.LtVV, b.x[0], b.x[1])
	p := b.seal(b.op(opcode.AddVV, b.x[0], b.x[1]))

	kept := optimize(t, p, DefaultOptions[float64]())
	assert.Contains(t, codes(kept), opcode.LtVV)

	opts := DefaultOptions[float64]()
	opts.KeepCompareOps = false
	assert.NotContains(t, codes(optimize(t, p, opts)), opcode.LtVV)
}

func TestRun_SelfCheck(t *testing.T) {
	b := newBuilder(t, 1)
	p := b.seal(b.op(opcode.Sqrt, b.op(opcode.AddVV, b.x[0], b.x[0])))

	opts := DefaultOptions[float64]()
	opts.SelfCheck = []float64{2}
	_, err := Run(p, opts)
	require.NoError(t, err)

	opts.SelfCheck = []float64{1, 2}
	_, err = Run(p, opts)
	require.ErrorIs(t, err, ErrSelfCheck)
}

func TestSelfCheck_ComparesDependents(t *testing.T) {
	b := newBuilder(t, 1)
	sum := b.seal(b.op(opcode.AddVV, b.x[0], b.x[0]))
	b = newBuilder(t, 1)
	twice := b.seal(b.op(opcode.MulPV, b.r.NewParameter(2), b.x[0]))
	b = newBuilder(t, 1)
	square := b.seal(b.op(opcode.MulVV, b.x[0], b.x[0]))
	b = newBuilder(t, 1)
	logs := b.seal(b.op(opcode.Log, b.x[0]))

	require.NoError(t, selfCheck(sum, twice, []float64{3}, 0))
	err := selfCheck(sum, square, []float64{3}, 0)
	require.ErrorIs(t, err, ErrSelfCheck)
	assert.Contains(t, err.Error(), "dependent 0: 6 before, 9 after")

	// Equal at x = 2, so only the second point tells the tapes apart.
	require.NoError(t, selfCheck(sum, square, []float64{2}, 0))
	// Both NaN counts as agreement.
	require.NoError(t, selfCheck(logs, logs, []float64{-1}, 0))
	require.ErrorIs(t, selfCheck(logs, sum, []float64{-1}, 0), ErrSelfCheck)
	// A loose tolerance accepts the difference.
	require.NoError(t, selfCheck(sum, square, []float64{3}, 0.5))
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions[float64]()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := newBuilder(t, 1)
	optimize(t, b.seal(b.op(opcode.Exp, b.x[0])), opts)
	for _, pass := range []string{"usage", "dedup", "cumulative sums", "conditional skips", "emit"} {
		assert.Contains(t, buf.String(), pass)
	}
}

func TestRun_Float32(t *testing.T) {
	r := tape.NewRecorder[float32]()
	x, err := r.NewIndependent()
	require.NoError(t, err)
	a, err := r.NewOperator(opcode.Exp, int(x))
	require.NoError(t, err)
	b, err := r.NewOperator(opcode.Exp, int(x))
	require.NoError(t, err)
	z, err := r.NewOperator(opcode.AddVV, int(a), int(b))
	require.NoError(t, err)
	tp, err := r.Seal([]tape.VarIndex{z})
	require.NoError(t, err)

	opts := DefaultOptions[float32]()
	opts.SelfCheck = []float32{0.5}
	out, err := Run(tape.NewPlayer(tp), opts)
	require.NoError(t, err)
	assert.Equal(t, 5, out.NumOp())
}

// randomTape records a random mix of every operator family, including duplicates,
// sums, conditionals and comparisons.
func randomTape(t *testing.T, rng *rand.Rand) *tape.Player[float64] {
	b := newBuilder(t, 1+rng.IntN(3))
	vars := append([]int(nil), b.x...)
	pick := func() int { return vars[rng.IntN(len(vars))] }
	par := func() int { return b.r.NewParameterNoDedup(float64(rng.IntN(5)) - 2) }
	add := func(v int) { vars = append(vars, v) }

	binary := []opcode.Code{opcode.AddVV, opcode.SubVV, opcode.MulVV, opcode.ZmulVV}
	unary := []opcode.Code{opcode.Sin, opcode.Cos, opcode.Tanh, opcode.Neg, opcode.Abs}
	paramLeft := []opcode.Code{opcode.AddPV, opcode.SubPV, opcode.MulPV}

	var last []int
	for i := 0; i < 30; i++ {
		switch rng.IntN(7) {
		case 0, 1:
			c, l, r := binary[rng.IntN(len(binary))], pick(), pick()
			add(b.op(c, l, r))
			if rng.IntN(3) == 0 {
				add(b.op(c, l, r))
			}
		case 2:
			add(b.op(unary[rng.IntN(len(unary))], pick()))
		case 3:
			add(b.op(paramLeft[rng.IntN(len(paramLeft))], par(), pick()))
		case 4:
			add(b.op(opcode.SubVP, pick(), par()))
		case 5:
			flags := opcode.FlagLeftVar | opcode.FlagTrueVar | opcode.FlagFalseVar
			add(b.op(opcode.CExp, int(opcode.Rel(rng.IntN(6))), flags, pick(), par(), pick(), pick()))
		default:
			code, swap, _ := opcode.CompareCode(opcode.Lt, true, true, rng.IntN(2) == 0)
			l, r := pick(), pick()
			if swap {
				l, r = r, l
			}
			b.op(code, l, r)
		}
		if rng.IntN(4) == 0 {
			last = append(last, vars[len(vars)-1])
		}
	}
	last = append(last, vars[len(vars)-1])
	return b.seal(last...)
}

func TestRun_RandomTapesAreEquivalent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 40; trial++ {
		p := randomTape(t, rng)
		out := optimize(t, p, DefaultOptions[float64]())
		assert.LessOrEqual(t, out.NumOp(), p.NumOp()+countCExp(p))

		again := optimize(t, out, DefaultOptions[float64]())
		assert.Equal(t, out.NumOp(), again.NumOp(), "trial %d: second run changed the op count", trial)

		for k := 0; k < 3; k++ {
			x := make([]float64, p.NumIndependent())
			for j := range x {
				x[j] = 2*rng.Float64() - 1
			}
			wantY, wantG, _ := evaluate(t, p, x)
			gotY, gotG, _ := evaluate(t, out, x)
			assertClose(t, wantY, gotY, "trial %d x = %v", trial, x)
			assertClose(t, wantG, gotG, "trial %d x = %v", trial, x)
		}
	}
}

func countCExp(p *tape.Player[float64]) int {
	n := 0
	for _, s := range p.All() {
		if s.Code == opcode.CExp {
			n++
		}
	}
	return n
}

func TestRun_HigherOrdersAgree(t *testing.T) {
	b := newBuilder(t, 2)
	s := b.op(opcode.SubVV, b.op(opcode.AddVV, b.x[0], b.x[1]), b.op(opcode.Sin, b.x[1]))
	q := b.op(opcode.MulVV, s, s)
	p := b.seal(b.op(opcode.DivVV, q, b.op(opcode.Exp, b.x[0])))
	out := optimize(t, p, DefaultOptions[float64]())

	coeffs := func(p *tape.Player[float64]) []float64 {
		tay := sweep.NewTaylor[float64](p.NumVar(), 4)
		tay.Set(1, 0, 0.4)
		tay.Set(2, 0, -0.3)
		tay.Set(1, 1, 1)
		tay.Set(2, 1, 0.5)
		_, err := sweep.Forward(p, 0, 3, tay)
		require.NoError(t, err)
		return append([]float64(nil), tay.Row(p.Dependents()[0])...)
	}
	assertClose(t, coeffs(p), coeffs(out))
}
