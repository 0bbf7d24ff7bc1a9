package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils"
	"github.com/cs-au-dk/symbex/utils/dot"

	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// selectMethod finds the method named by the -fun flag.
func selectMethod(prog *cfg.Program) *cfg.Method {
	m, ok := prog.MethodByName(opts.Function())
	if !ok {
		log.Fatalf("No function matching %q", opts.Function())
	}
	return m
}

// show renders a graph to a file, or opens it in xdot with -visualize.
func show(g *dot.DotGraph, name string) {
	if opts.Visualize() {
		if err := g.Show(); err != nil {
			log.Fatalln(err)
		}
		return
	}
	out, err := g.Render(name, opts.OutputFormat())
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Rendered", out)
}

// secondaryTask executes the tasks that inspect a single stage of the
// pipeline instead of reporting findings.
func (pl pipeline) secondaryTask(prog *cfg.Program) {
	switch {
	// cfg-to-dot : renders the block graph of the selected method.
	case task.IsCfgToDot():
		m := selectMethod(prog)
		show(m.ToDot(), "cfg-"+sanitize(m.Name))

	// exploded-graph : explores the selected method and renders the states
	// it visited.
	case task.IsExplodedGraph():
		m := selectMethod(prog)
		ropts := pl.runnerOptions()
		ropts.Engine.KeepGraph = true
		ropts.Filter = func(other *cfg.Method) bool { return other.ID == m.ID }

		report := pl.run(prog, ropts)
		for _, err := range report.Errors() {
			log.Println(err)
		}
		for _, res := range report.Results() {
			if res.Graph == nil {
				continue
			}
			log.Printf("%s: %d nodes, %s", m.Name, res.Graph.Size(), res.Outcome)
			show(res.Graph.ToDot(m.Name), "exploded-"+sanitize(m.Name))
		}

	// behaviors : prints the exit paths derived for every method.
	case task.IsBehaviors():
		ropts := pl.runnerOptions()
		report := pl.run(prog, ropts)
		for _, res := range report.Results() {
			if res.Behavior == nil {
				continue
			}
			fmt.Println(color.New(color.Bold).Sprint(res.Method.Name), res.Outcome)
			fmt.Println(res.Behavior)
		}
		for _, err := range report.Errors() {
			log.Println(err)
		}

	// positions : prints the SSA functions of the local packages with the
	// position of every instruction.
	case task.IsPosition():
		local := make(map[*ssa.Package]bool, len(pl.local))
		for _, pkg := range pl.local {
			local[pkg] = true
		}
		var funs []*ssa.Function
		for fun := range ssautil.AllFunctions(pl.prog) {
			if fun.Pkg != nil && local[fun.Pkg] && len(fun.Blocks) > 0 {
				funs = append(funs, fun)
			}
		}
		sort.Slice(funs, func(i, j int) bool {
			return funs[i].String() < funs[j].String()
		})
		for _, fun := range funs {
			opts.OnVerbose(func() { fmt.Println(utils.SSAFunString(fun)) })
			utils.PrintSSAFunWithPos(os.Stdout, pl.prog.Fset, fun)
		}
	}
}

// sanitize turns a qualified function name into a file name.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '(', ')', '*', '$':
			return '_'
		}
		return r
	}, name)
}
