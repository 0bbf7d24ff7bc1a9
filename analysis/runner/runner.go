package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"sort"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/checks"
	"github.com/cs-au-dk/symbex/analysis/engine"
	"github.com/cs-au-dk/symbex/utils"
	"github.com/cs-au-dk/symbex/utils/slices"

	"golang.org/x/sync/errgroup"
)

// ErrUnitPanicked is wrapped by the error of a unit or method whose analysis
// panicked.
var ErrUnitPanicked = errors.New("analysis panicked")

type Options struct {
	Engine engine.Options
	// Detectors default to the ones enabled by Config.
	Detectors []check.Detector
	Config    utils.Config
	// Workers bounds the number of units analyzed at the same time.
	// Zero means one per CPU.
	Workers int
	// Filter restricts the analysis to the accepted methods.
	Filter func(*cfg.Method) bool
}

func OptionsFromConfig(c utils.Config) Options {
	return Options{
		Engine:  engine.OptionsFromConfig(c),
		Config:  c,
		Workers: c.Workers,
	}
}

// UnitError records why a unit, or one of its methods if Method is set,
// was not analyzed to completion.
type UnitError struct {
	Unit   cfg.UnitID
	Name   string
	Method string
	Err    error
}

func (e *UnitError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Method, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// UnitResult holds the results of the analyzed methods of a unit, in
// method ID order.
type UnitResult struct {
	Unit     *cfg.Unit
	Results  []*engine.Result
	Findings check.FindingSet
	Faults   []check.Fault
	// Err is set if the unit is malformed or its analysis panicked.
	Err *UnitError
	// MethodErrors lists the methods whose analysis panicked. The other
	// methods of the unit are still analyzed.
	MethodErrors []*UnitError
}

// Run analyzes every unit of the program. Units are independent: a
// malformed or panicking unit is reported in its UnitResult and does not
// affect the others. If ctx is cancelled, the partial report is returned
// along with ctx.Err().
func Run(ctx context.Context, prog *cfg.Program, opts Options) (*Report, error) {
	detectors := opts.Detectors
	if detectors == nil {
		detectors = checks.Registered(opts.Config)
	}
	dispatch, err := check.NewDispatcher(detectors...)
	if err != nil {
		return nil, err
	}

	report := &Report{Units: make([]*UnitResult, len(prog.Units))}

	malformed := make([]bool, len(prog.Units))
	for i, unit := range prog.Units {
		report.Units[i] = &UnitResult{Unit: unit}
		if unit == nil || unit.ID != cfg.UnitID(i) {
			malformed[i] = true
			report.Units[i].Unit = &cfg.Unit{ID: cfg.UnitID(i)}
			report.Units[i].Err = &UnitError{Unit: cfg.UnitID(i), Name: fmt.Sprintf("unit %d", i),
				Err: &cfg.MalformedError{Unit: cfg.UnitID(i), Method: -1, Block: -1, Reason: "unit ID does not match its index"}}
			continue
		}
		if err := cfg.ValidateUnit(prog, unit.ID); err != nil {
			malformed[i] = true
			report.Units[i].Err = &UnitError{Unit: unit.ID, Name: unit.Name, Err: err}
		}
	}

	eopts := opts.Engine
	eopts.Opaque = func(m cfg.MethodID) bool {
		method := prog.Method(m)
		return method == nil || method.Unit < 0 || int(method.Unit) >= len(malformed) || malformed[method.Unit]
	}
	cache := behavior.NewCache()
	e := engine.New(prog, eopts, dispatch, cache)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range prog.Units {
		if malformed[i] {
			continue
		}
		ur := report.Units[i]
		g.Go(func() error {
			analyzeUnit(ctx, e, ur, opts.Filter)
			return nil
		})
	}
	g.Wait()

	report.Cache = cache.Totals()
	return report, ctx.Err()
}

// analyzeUnit explores the methods of a unit in ID order, stopping early if
// ctx is cancelled.
func analyzeUnit(ctx context.Context, e *engine.Engine, ur *UnitResult, filter func(*cfg.Method) bool) {
	defer func() {
		if r := recover(); r != nil {
			if utils.Opts().Verbose() {
				log.Printf("unit %s panicked: %v\n%s", ur.Unit.Name, r, debug.Stack())
			}
			ur.Err = &UnitError{Unit: ur.Unit.ID, Name: ur.Unit.Name, Err: fmt.Errorf("%w: %v", ErrUnitPanicked, r)}
		}
	}()

	prog := e.Program()
	methods := slices.Filter(ur.Unit.Methods, func(m cfg.MethodID) bool {
		return filter == nil || filter(prog.Method(m))
	})
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	for _, m := range methods {
		if ctx.Err() != nil || analyzeMethod(ctx, e, ur, m) != nil {
			return
		}
	}
}

// analyzeMethod explores m and records its result. A panic is recorded in
// ur.MethodErrors. The error is only set if ctx was cancelled.
func analyzeMethod(ctx context.Context, e *engine.Engine, ur *UnitResult, m cfg.MethodID) error {
	name := e.Program().Method(m).Name
	defer func() {
		if r := recover(); r != nil {
			if utils.Opts().Verbose() {
				log.Printf("method %s panicked: %v\n%s", name, r, debug.Stack())
			}
			ur.MethodErrors = append(ur.MethodErrors, &UnitError{
				Unit:   ur.Unit.ID,
				Name:   ur.Unit.Name,
				Method: name,
				Err:    fmt.Errorf("%w: %v", ErrUnitPanicked, r),
			})
		}
	}()

	res, err := e.Analyze(ctx, m)
	if res != nil {
		ur.Results = append(ur.Results, res)
		ur.Findings = ur.Findings.Add(res.Findings.List()...)
		ur.Faults = append(ur.Faults, res.Faults...)
	}
	return err
}
