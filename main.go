package main

import (
	"log"
	"os"
	"time"

	"github.com/cs-au-dk/symbex/pkgutil"
	"github.com/cs-au-dk/symbex/utils"

	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var (
	opts = utils.Opts()
	task = opts.Task()
)

func main() {
	utils.ParseArgs()
	path := utils.MakePath()

	config, err := opts.Config()
	if err != nil {
		log.Println("Invalid configuration")
		log.Fatalln(err)
	}

	// Dot labels must not contain escape sequences.
	if task.IsCfgToDot() || task.IsExplodedGraph() {
		color.NoColor = true
	}

	start := time.Now()
	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		GoPath:       opts.GoPath(),
		ModulePath:   opts.ModulePath(),
		IncludeTests: opts.IncludeTests(),
	}, path)
	if err != nil {
		log.Println("Failed pkgutil.LoadPackages")
		log.Println(err)
		os.Exit(1)
	}

	prog, initial := ssautil.AllPackages(pkgs, 0)
	prog.Build()
	opts.OnVerbose(func() { utils.TimeTrack(start, "Loading and building SSA") })

	var local []*ssa.Package
	if mains := ssautil.MainPackages(prog.AllPackages()); len(mains) > 0 {
		if local, err = pkgutil.LocalPackages(mains, pkgutil.AllPackages(prog)); err != nil {
			log.Fatalln(err)
		}
	} else {
		// Libraries are analyzed package by package.
		for _, pkg := range initial {
			if pkg != nil {
				local = append(local, pkg)
			}
		}
	}

	if len(local) == 0 {
		log.Println("No packages to analyze")
		return
	}

	pl := pipeline{prog: prog, local: local, config: config}
	cfgProg := pl.lower()

	switch {
	case task.IsCanBuild():
		pl.canBuild(cfgProg)
	case task.IsAnalyze():
		if !pl.analyze(cfgProg) {
			os.Exit(1)
		}
	default:
		pl.secondaryTask(cfgProg)
	}
}
