// Package main provides the adtape command: record a Starlark function onto a
// tape and print its values and derivatives.
//
//	adtape -config run.cue
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/adtape/internal/ad"
	"github.com/born-ml/adtape/internal/config"
	"github.com/born-ml/adtape/internal/dense"
	"github.com/born-ml/adtape/internal/logs"
	"github.com/born-ml/adtape/internal/optimize"
	"github.com/born-ml/adtape/internal/parallel"
	"github.com/born-ml/adtape/internal/script"
	"github.com/born-ml/adtape/internal/tape"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "adtape: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adtape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "run.cue", "run file")
	logLevel := fs.String("log-level", "", "overrides log_level from the run file")
	dump := fs.Bool("dump", false, "print the operator sequence")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "adtape %s\n", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logs.New(stderr, level)

	var src any
	filename := cfg.Script
	if cfg.Script == "" {
		src, filename = cfg.Source, *configPath
	}
	f, err := script.Record(filename, src, cfg.Function, cfg.X, log)
	if err != nil {
		return err
	}
	log.Info("recorded", "function", cfg.Function, "ops", f.NumOp(), "vars", f.NumVar())

	if cfg.Optimize != nil {
		opts := optimize.Options[float64]{
			KeepCompareOps:       cfg.Optimize.KeepCompareOps,
			EmitConditionalSkips: cfg.Optimize.EmitConditionalSkips,
			Logger:               log,
		}
		if cfg.Optimize.SelfCheck {
			opts.SelfCheck = cfg.X
		}
		before := f.NumOp()
		if err := f.Optimize(opts); err != nil {
			return err
		}
		log.Info("optimized", "ops_before", before, "ops", f.NumOp(), "vars", f.NumVar())
	}
	if *dump {
		if err := tape.Format(stdout, f.Player()); err != nil {
			return errors.Wrap(err, "dump")
		}
	}
	return report(stdout, log, f, cfg)
}

// report prints the values at x, Taylor coefficients along the direction, the
// weighted gradient and the dense derivatives.
func report(w io.Writer, log *slog.Logger, f *ad.Function[float64], cfg *config.Run) error {
	y, err := f.Forward(0, cfg.X)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "y = %v\n", y)
	if f.CompareChange() > 0 {
		log.Warn("comparison outcome differs from the recording", "count", f.CompareChange(), "op", f.CompareChangeOp())
	}

	if cfg.Direction != nil && cfg.Order > 0 {
		xq := cfg.Direction
		zero := make([]float64, f.Domain())
		for q := 1; q <= cfg.Order; q++ {
			yq, err := f.Forward(q, xq)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "y%d = %v\n", q, yq)
			xq = zero
		}
	}

	weights := cfg.Weights
	if weights != nil {
		if _, err := f.Forward(0, cfg.X); err != nil {
			return err
		}
		dw, err := f.Reverse(1, weights)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "grad w.y = %v\n", dw)
	}

	cores := parallel.DefaultConfig()
	jac, err := dense.Jacobian(f, cfg.X, cores)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "jacobian =\n%v\n", mat.Formatted(jac, mat.Prefix("")))

	if cfg.Hessian {
		if weights == nil {
			weights = make([]float64, f.Range())
			for i := range weights {
				weights[i] = 1
			}
		}
		hess, err := dense.Hessian(f, cfg.X, weights, cores)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "hessian =\n%v\n", mat.Formatted(hess, mat.Prefix("")))
	}
	return nil
}
