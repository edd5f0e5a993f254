// Package config loads the CUE run files read by the command line tool.
package config

import (
	_ "embed"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pkg/errors"
)

// ErrInvalid is returned for a run file that is well-formed CUE but not usable.
var ErrInvalid = errors.New("config: invalid run")

//go:embed schema.cue
var schemaSrc string

// Run describes one invocation: which scripted function to record, where, and
// what to compute from it.
type Run struct {
	// Script is a path to a Starlark file, relative to the run file.
	Script string `json:"script"`
	// Source is inline Starlark, used when Script is empty.
	Source   string `json:"source"`
	Function string `json:"function"`

	X         []float64 `json:"x"`
	Order     int       `json:"order"`
	Direction []float64 `json:"direction"`
	Weights   []float64 `json:"weights"`
	Hessian   bool      `json:"hessian"`

	Optimize *Optimize `json:"optimize"`
	LogLevel string    `json:"log_level"`
}

// Optimize selects optimizer passes. A nil Optimize skips optimization.
type Optimize struct {
	KeepCompareOps       bool `json:"keep_compare_ops"`
	EmitConditionalSkips bool `json:"emit_conditional_skips"`
	SelfCheck            bool `json:"self_check"`
}

// Load reads and validates a run file. A relative Script is resolved against the
// file's directory.
func Load(path string) (*Run, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	run, err := Parse(path, content)
	if err != nil {
		return nil, err
	}
	if run.Script != "" && !filepath.IsAbs(run.Script) {
		run.Script = filepath.Join(filepath.Dir(path), run.Script)
	}
	return run, nil
}

// Parse validates CUE source against the run schema, fills defaults and decodes it.
func Parse(filename string, content []byte) (*Run, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString("close({"+schemaSrc+"})", cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(errors.Wrap(err, "config: embedded schema"))
	}

	value := ctx.CompileBytes(content, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, errors.Wrapf(err, "config: compile %s", filename)
	}
	value = schema.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Wrapf(err, "config: validate %s", filename)
	}

	run := new(Run)
	if err := value.Decode(run); err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", filename)
	}
	if err := run.check(); err != nil {
		return nil, errors.Wrapf(err, "config: %s", filename)
	}
	return run, nil
}

func (r *Run) check() error {
	if (r.Script == "") == (r.Source == "") {
		return errors.Wrap(ErrInvalid, "exactly one of script and source must be set")
	}
	if r.Direction != nil && len(r.Direction) != len(r.X) {
		return errors.Wrapf(ErrInvalid, "direction has %d elements, x has %d", len(r.Direction), len(r.X))
	}
	return nil
}
