package utils

import (
	"flag"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"
)

type options struct {
	minlen       uint
	nodesep      float64
	function     string
	outputFormat string
	gopath       string
	modulePath   string
	task         string
	configPath   string
	strategy     string
	workers      int
	maxSteps     int
	loopBound    int
	callDepth    int
	timeout      time.Duration
	logse        bool
	metrics      bool
	noColorize   bool
	verbose      bool
	includeTests bool
	visualize    bool
	mergeStates  bool
}

const (
	_ANALYZE = iota
	_CAN_BUILD
	_CFG_TO_DOT
	_EXPLODED_GRAPH
	_BEHAVIORS
	_POSITION
)

func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	if opts.noColorize {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

var task = []struct{ flag, explanation string }{{
	"analyze",
	"Explore every method of the loaded packages and report findings",
}, {
	"check-can-build",
	"Load the packages and build SSA and the analysis CFG without exploring",
}, {
	"cfg-to-dot",
	"Render the analysis CFG of the function selected with -fun",
}, {
	"exploded-graph",
	"Explore the function selected with -fun and render its exploded graph",
}, {
	"behaviors",
	"Print the method behaviors derived for every explored method",
}, {
	"positions",
	"Print all SSA functions found, and the position of each instruction",
}}

var strategies = []struct{ flag, explanation string }{{
	"dfs",
	"Depth-first worklist",
}, {
	"bfs",
	"Breadth-first worklist",
}, {
	"rpo",
	"Priority worklist ordered by reverse post-order of the CFG blocks",
}}

var opts = &options{}

type optInterface struct{}

type taskInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) Minlen() uint {
	return opts.minlen
}
func (optInterface) Nodesep() float64 {
	return opts.nodesep
}
func (optInterface) Function() string {
	return opts.function
}
func (optInterface) OutputFormat() string {
	return opts.outputFormat
}
func (optInterface) GoPath() string {
	return opts.gopath
}
func (optInterface) ModulePath() string {
	return opts.modulePath
}
func (optInterface) ConfigPath() string {
	return opts.configPath
}
func (optInterface) LogSE() bool {
	return opts.logse
}
func (optInterface) Metrics() bool {
	return opts.metrics
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) IncludeTests() bool {
	return opts.includeTests
}
func (optInterface) Visualize() bool {
	return opts.visualize
}
func (optInterface) Task() taskInterface {
	return taskInterface{}
}
func (taskInterface) IsAnalyze() bool {
	return opts.task == task[_ANALYZE].flag
}
func (taskInterface) IsCanBuild() bool {
	return opts.task == task[_CAN_BUILD].flag
}
func (taskInterface) IsCfgToDot() bool {
	return opts.task == task[_CFG_TO_DOT].flag
}
func (taskInterface) IsExplodedGraph() bool {
	return opts.task == task[_EXPLODED_GRAPH].flag
}
func (taskInterface) IsBehaviors() bool {
	return opts.task == task[_BEHAVIORS].flag
}
func (taskInterface) IsPosition() bool {
	return opts.task == task[_POSITION].flag
}

func init() {
	taskFlag := "\n"
	for _, task := range task {
		taskFlag += task.flag + " -- " + task.explanation + "\n"
	}
	taskFlag += "\n"
	strategyFlag := "\n"
	for _, s := range strategies {
		strategyFlag += s.flag + " -- " + s.explanation + "\n"
	}
	strategyFlag += "\n"

	defaults := DefaultConfig()

	flag.UintVar(&(opts.minlen), "minlen", 2, "Minimum edge length (for wider output).")
	flag.Float64Var(&(opts.nodesep), "nodesep", 0.35, "Minimum space between two adjacent nodes in the same rank (for taller output).")
	flag.StringVar(&(opts.function), "fun", "main", "target a specific function w. r. t. the given task.\n"+
		"- Function names need not be fully qualified. The first function whose qualified name "+
		"ends with the given string is picked.\n")
	flag.StringVar(&(opts.outputFormat), "format", "svg", "output file format [svg | png | jpg | ...]")
	flag.StringVar(&(opts.gopath), "gopath", "examples", "specify GOPATH to be used for packages.Load")
	flag.StringVar(&(opts.modulePath), "modulepath", "", `specify a path to a directory containing a Go module.
- If provided this will make our code loading tools (that piggyback on Go's tools) run
in "module-aware" mode (GO111MODULE=on).`)
	flag.StringVar(&(opts.task), "task", task[_ANALYZE].flag, "Set the task to do during execution. Options:"+taskFlag)
	flag.StringVar(&(opts.configPath), "config", "", "YAML file with budgets, detectors and resource tables")
	flag.StringVar(&(opts.strategy), "strategy", defaults.Strategy, "Exploration order. Options:"+strategyFlag)
	flag.IntVar(&(opts.workers), "workers", defaults.Workers, "number of compilation units analyzed in parallel")
	flag.IntVar(&(opts.maxSteps), "max-steps", defaults.Budget.Steps, "node expansion budget per method")
	flag.DurationVar(&(opts.timeout), "timeout", defaults.Budget.Timeout, "time budget per method")
	flag.IntVar(&(opts.loopBound), "loop-bound", defaults.LoopBound, "number of distinguished loop iterations")
	flag.IntVar(&(opts.callDepth), "call-depth", defaults.CallDepth, "maximum depth of nested callee explorations")
	flag.BoolVar(&(opts.mergeStates), "merge-states", defaults.MergeStates, "join states with equal bindings at the same program point")
	flag.BoolVar(&(opts.logse), "se-logging", false, "Enable logging of specific events during exploration")
	flag.BoolVar(&(opts.metrics), "metrics", false, "Print exploration metrics per method")
	flag.BoolVar(&(opts.noColorize), "no-colorize", false, "Disable pretty printer colorization")
	flag.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	flag.BoolVar(&(opts.includeTests), "include-tests", false, "include test files in the analysis.")
	flag.BoolVar(&(opts.visualize), "visualize", false, "open visualizations with XDot instead of rendering them to a file")

	// Set up logging
	log.SetFlags(log.Ltime | log.Lshortfile)
}

func ParseArgs() {
	// Calling flag.Parse in init messes up unit tests.
	// See https://stackoverflow.com/questions/60235896/flag-provided-but-not-defined-test-v
	flag.Parse()

	validTask := false
	for _, task := range task {
		if task.flag == opts.task {
			validTask = true
			break
		}
	}

	if !validTask {
		log.Fatalf("Value \"%s\" is not valid for -task", opts.task)
	}

	if Opts().Task().IsCfgToDot() || Opts().Task().IsExplodedGraph() {
		opts.noColorize = true
	}
}

// Config loads the -config file, if any, and applies the flags that were
// set explicitly on the command line on top of it.
func (optInterface) Config() (Config, error) {
	cfg := DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = LoadConfig(opts.configPath); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Strategy = opts.strategy
		case "workers":
			cfg.Workers = opts.workers
		case "max-steps":
			cfg.Budget.Steps = opts.maxSteps
		case "timeout":
			cfg.Budget.Timeout = opts.timeout
		case "loop-bound":
			cfg.LoopBound = opts.loopBound
		case "call-depth":
			cfg.CallDepth = opts.callDepth
		case "merge-states":
			cfg.MergeStates = opts.mergeStates
		}
	})

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return cfg, cfg.Validate()
}

// IsWholeProgramAnalysis is true unless a function was selected with -fun.
func (optInterface) IsWholeProgramAnalysis() bool {
	selected := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "fun" {
			selected = true
		}
	})
	return !selected
}

func (optInterface) OnVerbose(do func()) {
	if Opts().Verbose() {
		do()
	}
}
