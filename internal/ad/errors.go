package ad

import "github.com/pkg/errors"

// Usage errors.
var (
	ErrRecordingEnded  = errors.New("ad: recording has ended")
	ErrForeignVariable = errors.New("ad: variable belongs to another recording")
	ErrSize            = errors.New("ad: vector has the wrong length")
	ErrOrder           = errors.New("ad: lower orders have not been computed")
)
