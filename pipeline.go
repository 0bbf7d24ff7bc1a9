package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/frontend"
	"github.com/cs-au-dk/symbex/analysis/runner"
	"github.com/cs-au-dk/symbex/utils"

	"golang.org/x/tools/go/ssa"
)

// pipeline is a wrapper around the analysis pipeline.
type pipeline struct {
	prog   *ssa.Program
	local  []*ssa.Package
	config utils.Config
}

// lower translates the SSA form of the local packages into the analysis CFG.
func (p pipeline) lower() *cfg.Program {
	log.Println("Lowering SSA...")
	prog, err := frontend.FromSSA(p.prog, p.local)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Lowered %d functions in %d packages", len(prog.Methods), len(prog.Units))

	opts.OnVerbose(func() {
		fmt.Println(prog)
	})
	return prog
}

// canBuild validates every unit of the lowered program.
func (p pipeline) canBuild(prog *cfg.Program) {
	failed := 0
	for _, unit := range prog.Units {
		if err := cfg.ValidateUnit(prog, unit.ID); err != nil {
			failed++
			log.Printf("%s: %v", unit.Name, err)
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d packages are malformed", failed, len(prog.Units))
	}
	log.Println("All packages can be built")
}

// methodFilter selects the methods named by -fun. It is nil for whole
// program analysis.
func methodFilter() func(*cfg.Method) bool {
	if opts.IsWholeProgramAnalysis() {
		return nil
	}
	fun := opts.Function()
	return func(m *cfg.Method) bool {
		return m.Name == fun || strings.HasSuffix(m.Name, "."+fun)
	}
}

func (p pipeline) runnerOptions() runner.Options {
	ropts := runner.OptionsFromConfig(p.config)
	ropts.Engine.Logging = opts.LogSE()
	ropts.Engine.Metrics = opts.Metrics()
	ropts.Filter = methodFilter()
	return ropts
}

// run analyzes the program. An interrupt cancels the run, which still
// yields the results gathered so far.
func (p pipeline) run(prog *cfg.Program, ropts runner.Options) *runner.Report {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Println("Exploring...")
	report, err := runner.Run(ctx, prog, ropts)
	if report == nil {
		log.Fatalln(err)
	}
	if err != nil {
		log.Println("Exploration interrupted:", err)
	}
	return report
}

// analyze reports the findings of every unit. It returns false if any
// unit could not be analyzed.
func (p pipeline) analyze(prog *cfg.Program) bool {
	report := p.run(prog, p.runnerOptions())

	if err := report.Write(os.Stdout); err != nil {
		log.Fatalln(err)
	}
	gatherMetrics(report)

	return len(report.Errors()) == 0
}
