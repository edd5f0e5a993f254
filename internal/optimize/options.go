package optimize

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/born-ml/adtape/internal/tape"
)

// ErrSelfCheck is returned when the optimized tape does not reproduce the input
// tape at the self-check point.
var ErrSelfCheck = errors.New("optimize: optimized tape disagrees with input")

// Options control Run.
type Options[T tape.Base] struct {
	// KeepCompareOps keeps comparison operators so the optimized tape still
	// reports compare changes. Dropping them loses that signal.
	KeepCompareOps bool

	// EmitConditionalSkips inserts CSkip operators in front of work that only
	// one branch of a conditional expression needs.
	EmitConditionalSkips bool

	// SelfCheck, when set, is a point at which the input and output tapes are both
	// evaluated; Run fails with ErrSelfCheck if they disagree beyond Tolerance.
	SelfCheck []T

	// Tolerance is relative. Zero picks a default suited to T.
	Tolerance T

	// Logger receives one Debug record per pass. Nil discards.
	Logger *slog.Logger
}

// DefaultOptions keeps comparisons and emits conditional skips.
func DefaultOptions[T tape.Base]() Options[T] {
	return Options[T]{
		KeepCompareOps:       true,
		EmitConditionalSkips: true,
	}
}

func (o Options[T]) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
