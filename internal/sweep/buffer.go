package sweep

import (
	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/tape"
)

// Usage errors returned by the sweeps.
var (
	ErrBufferSize = errors.New("sweep: buffer not sized for this tape")
	ErrOrder      = errors.New("sweep: order out of range")
)

// Taylor holds Taylor coefficients, one row per variable and one column per
// order. It also remembers which operators the last zero-order pass marked as
// skipped, since higher orders and reverse sweeps must skip the same ones.
//
// A Taylor buffer is sized for one tape. Reusing it across calls on that tape is
// how lower orders are kept while higher ones are added; once the tape is replaced
// call Resize.
type Taylor[T tape.Base] struct {
	numVar   int
	capOrder int
	orders   int
	data     []T
	skip     []bool
}

// NewTaylor allocates a zeroed buffer for numVar variables and orders 0..capOrder-1.
func NewTaylor[T tape.Base](numVar, capOrder int) *Taylor[T] {
	b := &Taylor[T]{}
	b.Resize(numVar, capOrder)
	return b
}

// Resize reallocates the buffer for a new shape, discarding all coefficients.
func (b *Taylor[T]) Resize(numVar, capOrder int) {
	if capOrder < 1 {
		capOrder = 1
	}
	b.numVar, b.capOrder, b.orders = numVar, capOrder, 0
	b.data = make([]T, numVar*capOrder)
	b.skip = nil
}

// Clear zeroes the coefficients and forgets which orders are valid.
func (b *Taylor[T]) Clear() {
	clear(b.data)
	b.orders = 0
	b.skip = nil
}

// NumVar returns the number of rows.
func (b *Taylor[T]) NumVar() int { return b.numVar }

// Cap returns the number of orders the buffer can hold.
func (b *Taylor[T]) Cap() int { return b.capOrder }

// Orders returns how many orders, starting at zero, hold results of a forward sweep.
func (b *Taylor[T]) Orders() int { return b.orders }

// Row returns the coefficients of variable v. The slice aliases the buffer.
func (b *Taylor[T]) Row(v tape.VarIndex) []T {
	i := int(v) * b.capOrder
	return b.data[i : i+b.capOrder : i+b.capOrder]
}

// Coef returns the order-k coefficient of v.
func (b *Taylor[T]) Coef(v tape.VarIndex, k int) T { return b.data[int(v)*b.capOrder+k] }

// Set stores the order-k coefficient of v.
func (b *Taylor[T]) Set(v tape.VarIndex, k int, x T) { b.data[int(v)*b.capOrder+k] = x }

// Skipped reports whether the last zero-order pass skipped op.
func (b *Taylor[T]) Skipped(op tape.OpIndex) bool {
	return b.skip != nil && b.skip[op]
}

// Grow keeps the existing coefficients while raising the order capacity.
func (b *Taylor[T]) Grow(capOrder int) {
	if capOrder <= b.capOrder {
		return
	}
	data := make([]T, b.numVar*capOrder)
	for v := 0; v < b.numVar; v++ {
		copy(data[v*capOrder:], b.data[v*b.capOrder:v*b.capOrder+b.orders])
	}
	b.data, b.capOrder = data, capOrder
}

// Partial holds adjoints, one row per variable and one column per order being
// propagated. Reverse accumulates into it; call Clear between independent queries.
type Partial[T tape.Base] struct {
	numVar int
	orders int
	data   []T
}

// NewPartial allocates a zeroed adjoint buffer.
func NewPartial[T tape.Base](numVar, orders int) *Partial[T] {
	return &Partial[T]{numVar: numVar, orders: orders, data: make([]T, numVar*orders)}
}

// Clear zeroes every adjoint.
func (b *Partial[T]) Clear() { clear(b.data) }

// NumVar returns the number of rows.
func (b *Partial[T]) NumVar() int { return b.numVar }

// Orders returns the number of orders per row.
func (b *Partial[T]) Orders() int { return b.orders }

// Row returns the adjoints of variable v. The slice aliases the buffer.
func (b *Partial[T]) Row(v tape.VarIndex) []T {
	i := int(v) * b.orders
	return b.data[i : i+b.orders : i+b.orders]
}
