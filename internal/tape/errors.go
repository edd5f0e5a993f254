package tape

import "github.com/pkg/errors"

// Usage errors returned by Recorder and Tape. They are wrapped with context, test
// with errors.Is.
var (
	ErrSealed           = errors.New("tape: recorder already sealed")
	ErrOpcode           = errors.New("tape: operator cannot be recorded directly")
	ErrArgCount         = errors.New("tape: argument count does not match operator")
	ErrDAG              = errors.New("tape: argument variable is not recorded before its operator")
	ErrParameterIndex   = errors.New("tape: parameter index out of range")
	ErrIndependentOrder = errors.New("tape: independent variables must directly follow begin")
	ErrDependent        = errors.New("tape: dependent variable out of range")
	ErrArgSlot          = errors.New("tape: argument slot out of range")
	ErrCorrupt          = errors.New("tape: structural invariant violated")
)
