package engine

import (
	"time"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils"
)

type Strategy string

const (
	DFS Strategy = "dfs"
	BFS Strategy = "bfs"
	// RPO expands nodes in reverse post-order of their blocks, so join
	// points tend to be reached by all their predecessors first.
	RPO Strategy = "rpo"
)

// Budget bounds the exploration of a single method.
type Budget struct {
	// Steps is the maximum number of node expansions, callees included.
	Steps int
	// Timeout bounds the wall-clock time. Zero means no limit.
	Timeout time.Duration
}

type Options struct {
	Budget Budget
	// LoopBound caps the iteration count of program points. Literals are
	// only folded below the cap, so loops converge once it is reached.
	LoopBound int
	// CallDepth bounds the nesting of callee explorations.
	CallDepth int
	Strategy  Strategy
	// MergeAtJoins merges all states reaching the entry of a join block
	// instead of keeping them apart.
	MergeAtJoins bool
	// KeepGraph retains the exploded graph of top-level analyses.
	KeepGraph bool
	Logging   bool
	Metrics   bool
	// Opaque methods are never explored. Calls to them have unknown
	// behavior.
	Opaque func(cfg.MethodID) bool
}

func DefaultOptions() Options {
	return OptionsFromConfig(utils.DefaultConfig())
}

func OptionsFromConfig(c utils.Config) Options {
	return Options{
		Budget: Budget{
			Steps:   c.Budget.Steps,
			Timeout: c.Budget.Timeout,
		},
		LoopBound:    c.LoopBound,
		CallDepth:    c.CallDepth,
		Strategy:     Strategy(c.Strategy),
		MergeAtJoins: c.MergeStates,
	}
}
