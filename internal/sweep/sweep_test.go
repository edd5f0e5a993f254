package sweep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/adtape/internal/opcode"
	"github.com/born-ml/adtape/internal/tape"
)

type builder struct {
	t *testing.T
	r *tape.Recorder[float64]
}

func newBuilder(t *testing.T, numInd int) (builder, []int) {
	t.Helper()
	b := builder{t: t, r: tape.NewRecorder[float64]()}
	xs := make([]int, numInd)
	for i := range xs {
		v, err := b.r.NewIndependent()
		require.NoError(t, err)
		xs[i] = int(v)
	}
	return b, xs
}

func (b builder) op(c opcode.Code, args ...int) int {
	b.t.Helper()
	v, err := b.r.NewOperator(c, args...)
	require.NoError(b.t, err)
	return int(v)
}

func (b builder) par(x float64) int { return b.r.NewParameter(x) }

func (b builder) seal(deps ...int) *tape.Player[float64] {
	b.t.Helper()
	vs := make([]tape.VarIndex, len(deps))
	for i, d := range deps {
		vs[i] = tape.VarIndex(d)
	}
	tp, err := b.r.Seal(vs)
	require.NoError(b.t, err)
	return tape.NewPlayer(tp)
}

// zeroOrder runs an order-zero sweep at x and returns the dependent values.
func zeroOrder(t *testing.T, p *tape.Player[float64], tay *Taylor[float64], x []float64) []float64 {
	t.Helper()
	for j, v := range x {
		tay.Set(tape.VarIndex(j+1), 0, v)
	}
	_, err := Forward(p, 0, 0, tay)
	require.NoError(t, err)
	y := make([]float64, len(p.Dependents()))
	for i, d := range p.Dependents() {
		y[i] = tay.Coef(d, 0)
	}
	return y
}

func gradient(t *testing.T, p *tape.Player[float64], x []float64) []float64 {
	t.Helper()
	tay := NewTaylor[float64](p.NumVar(), 1)
	zeroOrder(t, p, tay, x)
	part := NewPartial[float64](p.NumVar(), 1)
	part.Row(p.Dependents()[0])[0] = 1
	require.NoError(t, Reverse(p, 1, tay, part))
	g := make([]float64, len(x))
	for j := range g {
		g[j] = part.Row(tape.VarIndex(j + 1))[0]
	}
	return g
}

func TestForward_DivSelf(t *testing.T) {
	b, x := newBuilder(t, 1)
	z := b.op(opcode.DivVV, x[0], x[0])
	p := b.seal(z)

	tay := NewTaylor[float64](p.NumVar(), 2)
	assert.Equal(t, []float64{1}, zeroOrder(t, p, tay, []float64{3}))

	tay.Set(1, 1, 1)
	_, err := Forward(p, 1, 1, tay)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tay.Coef(tape.VarIndex(z), 1))
	assert.Equal(t, 2, tay.Orders())
}

func TestForward_ExpCoefficients(t *testing.T) {
	b, x := newBuilder(t, 1)
	z := b.op(opcode.Exp, x[0])
	p := b.seal(z)

	const n = 6
	tay := NewTaylor[float64](p.NumVar(), n)
	tay.Set(1, 1, 1)
	_, err := Forward(p, 0, n-1, tay)
	require.NoError(t, err)

	fact := 1.0
	for k := 0; k < n; k++ {
		if k > 0 {
			fact *= float64(k)
		}
		assert.InDelta(t, 1/fact, tay.Coef(tape.VarIndex(z), k), 1e-15, "order %d", k)
	}
}

func TestForward_OrdersAreIncremental(t *testing.T) {
	b, x := newBuilder(t, 1)
	s := b.op(opcode.Sin, x[0])
	z := b.op(opcode.MulVV, s, x[0])
	p := b.seal(z)

	all := NewTaylor[float64](p.NumVar(), 3)
	all.Set(1, 0, 0.7)
	all.Set(1, 1, 1)
	_, err := Forward(p, 0, 2, all)
	require.NoError(t, err)

	step := NewTaylor[float64](p.NumVar(), 3)
	step.Set(1, 0, 0.7)
	step.Set(1, 1, 1)
	for k := 0; k < 3; k++ {
		_, err := Forward(p, k, k, step)
		require.NoError(t, err)
	}
	for v := 0; v < p.NumVar(); v++ {
		assert.InDeltaSlice(t, all.Row(tape.VarIndex(v)), step.Row(tape.VarIndex(v)), 1e-15)
	}
}

func TestForward_Errors(t *testing.T) {
	b, x := newBuilder(t, 1)
	p := b.seal(b.op(opcode.Exp, x[0]))

	_, err := Forward(p, 0, 0, NewTaylor[float64](p.NumVar()+1, 1))
	require.ErrorIs(t, err, ErrBufferSize)

	tay := NewTaylor[float64](p.NumVar(), 2)
	_, err = Forward(p, 0, 2, tay)
	require.ErrorIs(t, err, ErrOrder)
	_, err = Forward(p, 1, 1, tay)
	require.ErrorIs(t, err, ErrOrder, "order zero missing")
	_, err = Forward(p, 1, 0, tay)
	require.ErrorIs(t, err, ErrOrder)

	require.ErrorIs(t, Reverse(p, 1, tay, NewPartial[float64](p.NumVar(), 1)), ErrOrder)
	_, err = Forward(p, 0, 0, tay)
	require.NoError(t, err)
	require.ErrorIs(t, Reverse(p, 2, tay, NewPartial[float64](p.NumVar(), 2)), ErrOrder)
	require.ErrorIs(t, Reverse(p, 1, tay, NewPartial[float64](1, 1)), ErrBufferSize)
}

// TestRules checks every rule against the identity that holds along x(t) = x0 + t:
// the derivative of the order-k coefficient of y with respect to the order-j
// coefficient of x is (k-j+1) times the order k-j+1 coefficient of y.
func TestRules(t *testing.T) {
	unary := []struct {
		code opcode.Code
		x0   float64
	}{
		{opcode.Neg, 0.3},
		{opcode.Abs, -1.5},
		{opcode.Exp, 0.4},
		{opcode.Log, 1.7},
		{opcode.Sqrt, 2.2},
		{opcode.Sin, 0.6},
		{opcode.Cos, 0.6},
		{opcode.Tanh, 0.45},
	}
	for _, tt := range unary {
		t.Run(tt.code.String(), func(t *testing.T) {
			b, x := newBuilder(t, 1)
			p := b.seal(b.op(tt.code, x[0]))
			checkShiftIdentity(t, p, []float64{tt.x0})
		})
	}

	binary := []opcode.Code{
		opcode.AddVV, opcode.SubVV, opcode.MulVV, opcode.DivVV, opcode.ZmulVV,
		opcode.AddPV, opcode.SubPV, opcode.MulPV, opcode.DivPV, opcode.ZmulPV,
		opcode.SubVP, opcode.DivVP, opcode.ZmulVP,
	}
	for _, c := range binary {
		t.Run(c.String(), func(t *testing.T) {
			b, x := newBuilder(t, 2)
			left, right := x[0], x[1]
			switch c {
			case opcode.AddPV, opcode.SubPV, opcode.MulPV, opcode.DivPV, opcode.ZmulPV:
				left = b.par(1.25)
			case opcode.SubVP, opcode.DivVP, opcode.ZmulVP:
				right = b.par(1.25)
			}
			// Feed the operator a nonlinear operand so higher orders are non-trivial.
			e := b.op(opcode.Exp, x[1])
			if right == x[1] {
				right = e
			}
			p := b.seal(b.op(c, left, right))
			checkShiftIdentity(t, p, []float64{0.8, 0.3})
		})
	}

	t.Run("CSum", func(t *testing.T) {
		b, x := newBuilder(t, 2)
		e := b.op(opcode.Exp, x[0])
		s := b.op(opcode.Sin, x[1])
		p := b.seal(b.op(opcode.CSum, opcode.CSumArgs(b.par(2), []int{e, x[1]}, []int{s})...))
		checkShiftIdentity(t, p, []float64{0.8, 0.3})
	})
}

// checkShiftIdentity moves every independent along x0 + t, so the sum over
// independents of the adjoints obeys the identity documented on TestRules.
func checkShiftIdentity(t *testing.T, p *tape.Player[float64], x0 []float64) {
	t.Helper()
	const q = 3
	tay := NewTaylor[float64](p.NumVar(), q+1)
	for j, v := range x0 {
		tay.Set(tape.VarIndex(j+1), 0, v)
		tay.Set(tape.VarIndex(j+1), 1, 1)
	}
	_, err := Forward(p, 0, q, tay)
	require.NoError(t, err)
	y := tay.Row(p.Dependents()[0])

	part := NewPartial[float64](p.NumVar(), q)
	part.Row(p.Dependents()[0])[q-1] = 1
	require.NoError(t, Reverse(p, q, tay, part))

	for j := 0; j < q; j++ {
		var got float64
		for i := range x0 {
			got += part.Row(tape.VarIndex(i + 1))[j]
		}
		k := q - j
		assert.InDelta(t, float64(k)*y[k], got, 1e-12, "order %d", j)
	}
}

func composite(x []float64) float64 {
	return math.Sin(x[0])*math.Exp(x[1]) +
		math.Log(x[0]*x[1])/math.Sqrt(x[1]) -
		math.Tanh(x[0]-x[1]) +
		math.Cos(x[1])/x[0] +
		math.Abs(x[0]-3)
}

func recordComposite(t *testing.T) *tape.Player[float64] {
	b, x := newBuilder(t, 2)
	t1 := b.op(opcode.MulVV, b.op(opcode.Sin, x[0]), b.op(opcode.Exp, x[1]))
	t2 := b.op(opcode.DivVV, b.op(opcode.Log, b.op(opcode.MulVV, x[0], x[1])), b.op(opcode.Sqrt, x[1]))
	t3 := b.op(opcode.Tanh, b.op(opcode.SubVV, x[0], x[1]))
	t4 := b.op(opcode.DivVV, b.op(opcode.Cos, x[1]), x[0])
	t5 := b.op(opcode.Abs, b.op(opcode.SubVP, x[0], b.par(3)))
	return b.seal(b.op(opcode.CSum, opcode.CSumArgs(b.par(0), []int{t1, t2, t4, t5}, []int{t3})...))
}

func TestReverse_GradientMatchesFiniteDifference(t *testing.T) {
	p := recordComposite(t)
	for _, x := range [][]float64{{0.7, 1.3}, {2.1, 0.4}, {4.2, 2.5}} {
		tay := NewTaylor[float64](p.NumVar(), 1)
		assert.InDelta(t, composite(x), zeroOrder(t, p, tay, x)[0], 1e-12)

		want := fd.Gradient(nil, composite, x, &fd.Settings{Formula: fd.Central})
		got := gradient(t, p, x)
		assert.True(t, floats.EqualApprox(want, got, 1e-6), "want %v got %v", want, got)
	}
}

func TestReverse_HessianMatchesFiniteDifference(t *testing.T) {
	p := recordComposite(t)
	x := []float64{0.9, 1.1}
	n := len(x)

	// Differentiate the reverse-mode gradient, already checked against finite
	// differences, once more numerically.
	want := mat.NewDense(n, n, nil)
	fd.Jacobian(want, func(g, x []float64) {
		copy(g, gradient(t, p, x))
	}, x, &fd.JacobianSettings{Formula: fd.Central})

	tay := NewTaylor[float64](p.NumVar(), 2)
	for j := 0; j < n; j++ {
		zeroOrder(t, p, tay, x)
		for i := range x {
			tay.Set(tape.VarIndex(i+1), 1, 0)
		}
		tay.Set(tape.VarIndex(j+1), 1, 1)
		_, err := Forward(p, 1, 1, tay)
		require.NoError(t, err)

		part := NewPartial[float64](p.NumVar(), 2)
		part.Row(p.Dependents()[0])[1] = 1
		require.NoError(t, Reverse(p, 2, tay, part))
		for l := 0; l < n; l++ {
			assert.InDelta(t, want.At(l, j), part.Row(tape.VarIndex(l+1))[0], 1e-6, "H[%d][%d]", l, j)
		}
	}
}

// TestForwardReverseDuality checks <w, J u> computed forward equals <w J, u>
// computed in reverse.
func TestForwardReverseDuality(t *testing.T) {
	b, x := newBuilder(t, 3)
	y0 := b.op(opcode.MulVV, b.op(opcode.Sin, x[0]), x[2])
	y1 := b.op(opcode.AddVV, b.op(opcode.Exp, x[1]), b.op(opcode.DivPV, b.par(2), x[2]))
	p := b.seal(y0, y1)

	u := []float64{0.3, -1.2, 0.5}
	w := []float64{1.5, -0.25}
	tay := NewTaylor[float64](p.NumVar(), 2)
	for j := range u {
		tay.Set(tape.VarIndex(j+1), 1, u[j])
	}
	zeroOrder(t, p, tay, []float64{0.4, 0.1, 1.9})
	_, err := Forward(p, 1, 1, tay)
	require.NoError(t, err)
	var fwd float64
	for i, d := range p.Dependents() {
		fwd += w[i] * tay.Coef(d, 1)
	}

	part := NewPartial[float64](p.NumVar(), 1)
	for i, d := range p.Dependents() {
		part.Row(d)[0] = w[i]
	}
	require.NoError(t, Reverse(p, 1, tay, part))
	var rev float64
	for j := range u {
		rev += part.Row(tape.VarIndex(j + 1))[0] * u[j]
	}
	assert.InDelta(t, fwd, rev, 1e-12)
}

func TestCompareChange(t *testing.T) {
	b, x := newBuilder(t, 2)
	b.op(opcode.LtVV, x[0], x[1])
	b.op(opcode.LeVP, x[0], b.par(5))
	p := b.seal(b.op(opcode.AddVV, x[0], x[1]))

	tay := NewTaylor[float64](p.NumVar(), 2)
	for _, tt := range []struct {
		x     []float64
		n     int
		first tape.OpIndex
	}{
		{[]float64{1, 2}, 0, -1},
		{[]float64{3, 2}, 1, 3},
		{[]float64{6, 2}, 2, 3},
		{[]float64{6, 7}, 1, 4},
	} {
		for j, v := range tt.x {
			tay.Set(tape.VarIndex(j+1), 0, v)
		}
		res, err := Forward(p, 0, 0, tay)
		require.NoError(t, err)
		assert.Equal(t, tt.n, res.CompareChange, "x = %v", tt.x)
		assert.Equal(t, tt.first, res.CompareChangeOp, "x = %v", tt.x)
	}

	res, err := Forward(p, 1, 1, tay)
	require.NoError(t, err)
	assert.Zero(t, res.CompareChange, "only order zero compares")
}

func TestCondExp(t *testing.T) {
	b, x := newBuilder(t, 2)
	sq := b.op(opcode.MulVV, x[1], x[1])
	z := b.op(opcode.CExp, int(opcode.Lt), opcode.FlagLeftVar|opcode.FlagRightVar|opcode.FlagTrueVar,
		x[0], x[1], sq, b.par(7))
	p := b.seal(z)

	assert.Equal(t, []float64{9}, zeroOrder(t, p, NewTaylor[float64](p.NumVar(), 1), []float64{1, 3}))
	assert.Equal(t, []float64{0, 6}, gradient(t, p, []float64{1, 3}))

	assert.Equal(t, []float64{7}, zeroOrder(t, p, NewTaylor[float64](p.NumVar(), 1), []float64{4, 3}))
	assert.Equal(t, []float64{0, 0}, gradient(t, p, []float64{4, 3}))
}

func TestCondSkip(t *testing.T) {
	// z = x0 < x1 ? exp(x0) : log(x1), with exp skipped when false and log when true.
	b, x := newBuilder(t, 2)
	start := b.r.NumArg()
	b.op(opcode.CSkip, opcode.CSkipArgs(opcode.Lt, opcode.FlagLeftVar|opcode.FlagRightVar, x[0], x[1], []int{0}, []int{0})...)
	e := b.op(opcode.Exp, x[0]) // op 4
	l := b.op(opcode.Log, x[1]) // op 5
	require.NoError(t, b.r.ReplaceArg(start+opcode.CSkipListSlot(0), 5))
	require.NoError(t, b.r.ReplaceArg(start+opcode.CSkipListSlot(1), 4))
	flags := opcode.FlagLeftVar | opcode.FlagRightVar | opcode.FlagTrueVar | opcode.FlagFalseVar
	p := b.seal(b.op(opcode.CExp, int(opcode.Lt), flags, x[0], x[1], e, l))

	tay := NewTaylor[float64](p.NumVar(), 2)
	assert.InDelta(t, math.Exp(1), zeroOrder(t, p, tay, []float64{1, 3})[0], 1e-15)
	assert.False(t, tay.Skipped(4))
	assert.True(t, tay.Skipped(5))
	assert.InDeltaSlice(t, []float64{math.Exp(1), 0}, gradient(t, p, []float64{1, 3}), 1e-15)

	assert.InDelta(t, math.Log(3), zeroOrder(t, p, tay, []float64{4, 3})[0], 1e-15)
	assert.True(t, tay.Skipped(4))
	assert.False(t, tay.Skipped(5))
	assert.InDeltaSlice(t, []float64{0, 1.0 / 3}, gradient(t, p, []float64{4, 3}), 1e-15)

	// Skip flags survive into higher orders.
	tay.Set(1, 1, 1)
	tay.Set(2, 1, 1)
	_, err := Forward(p, 1, 1, tay)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, tay.Coef(p.Dependents()[0], 1), 1e-15)
}

func TestReverse_ZeroWeightHidesNaN(t *testing.T) {
	b, x := newBuilder(t, 2)
	z := b.op(opcode.MulVV, x[0], x[1])
	p := b.seal(z)

	tay := NewTaylor[float64](p.NumVar(), 2)
	tay.Set(1, 0, 2)
	tay.Set(2, 0, 3)
	tay.Set(1, 1, 1)
	tay.Set(2, 1, math.NaN())
	_, err := Forward(p, 0, 1, tay)
	require.NoError(t, err)
	require.True(t, math.IsNaN(tay.Coef(z, 1)))

	// Only order zero is weighted; the NaN sits in the order-one coefficients.
	part := NewPartial[float64](p.NumVar(), 2)
	part.Row(z)[0] = 1
	require.NoError(t, Reverse(p, 2, tay, part))
	assert.Equal(t, []float64{3, 0}, part.Row(1))
	assert.Equal(t, []float64{2, 0}, part.Row(2))
}

func TestReverse_UnselectedBranchHidesNaN(t *testing.T) {
	// z = x0 < x1 ? log(x1)*x0 : x0*x0, evaluated where log(x1) is NaN.
	b, x := newBuilder(t, 2)
	bad := b.op(opcode.MulVV, b.op(opcode.Log, x[1]), x[0])
	sq := b.op(opcode.MulVV, x[0], x[0])
	flags := opcode.FlagLeftVar | opcode.FlagRightVar | opcode.FlagTrueVar | opcode.FlagFalseVar
	z := b.op(opcode.CExp, int(opcode.Lt), flags, x[0], x[1], bad, sq)
	p := b.seal(z)

	tay := NewTaylor[float64](p.NumVar(), 2)
	tay.Set(1, 0, 4)
	tay.Set(2, 0, -1)
	tay.Set(1, 1, 1)
	tay.Set(2, 1, 1)
	_, err := Forward(p, 0, 1, tay)
	require.NoError(t, err)
	require.True(t, math.IsNaN(tay.Coef(tape.VarIndex(bad), 0)))
	assert.Equal(t, []float64{16, 8}, tay.Row(tape.VarIndex(z)))

	// Weight order one: y1 = 2*x0*x0', so x0 gets 2*x0' and 2*x0.
	part := NewPartial[float64](p.NumVar(), 2)
	part.Row(z)[1] = 1
	require.NoError(t, Reverse(p, 2, tay, part))
	assert.Equal(t, []float64{2, 8}, part.Row(1))
	assert.Equal(t, []float64{0, 0}, part.Row(2))
}

func TestAzmul(t *testing.T) {
	assert.Equal(t, 0.0, Azmul(0, math.Inf(1)))
	assert.Equal(t, 0.0, Azmul(0, math.NaN()))
	assert.Equal(t, 6.0, Azmul(2, 3.0))
	assert.True(t, math.IsInf(Azmul(1, math.Inf(-1)), -1))
}

func TestFloat32(t *testing.T) {
	r := tape.NewRecorder[float32]()
	x, err := r.NewIndependent()
	require.NoError(t, err)
	z, err := r.NewOperator(opcode.MulVV, int(x), int(x))
	require.NoError(t, err)
	tp, err := r.Seal([]tape.VarIndex{z})
	require.NoError(t, err)
	p := tape.NewPlayer(tp)

	tay := NewTaylor[float32](p.NumVar(), 1)
	tay.Set(x, 0, 3)
	_, err = Forward(p, 0, 0, tay)
	require.NoError(t, err)
	part := NewPartial[float32](p.NumVar(), 1)
	part.Row(z)[0] = 1
	require.NoError(t, Reverse(p, 1, tay, part))
	assert.Equal(t, float32(9), tay.Coef(z, 0))
	assert.Equal(t, float32(6), part.Row(x)[0])
}

func TestTaylorGrow(t *testing.T) {
	tay := NewTaylor[float64](3, 1)
	tay.Set(2, 0, 5)
	tay.orders = 1
	tay.Grow(4)
	assert.Equal(t, 4, tay.Cap())
	assert.Equal(t, 5.0, tay.Coef(2, 0))
	assert.Len(t, tay.Row(1), 4)
	tay.Clear()
	assert.Zero(t, tay.Orders())
	assert.Zero(t, tay.Coef(2, 0))
}
