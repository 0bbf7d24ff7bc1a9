package engine

import (
	"fmt"

	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
	"github.com/cs-au-dk/symbex/utils"
	"github.com/cs-au-dk/symbex/utils/hmap"
	"github.com/cs-au-dk/symbex/utils/worklist"
)

type ExitKind uint8

const (
	NoExit ExitKind = iota
	NormalExit
	ExceptionalExit
)

// Exit records how a path leaves the method at a node.
type Exit struct {
	Kind ExitKind
	// State after the method exit detectors ran.
	State   state.ProgramState
	Returns []symbolic.Value
}

// Node is a program point paired with the program state reaching it.
type Node struct {
	id    int
	Point defs.ProgramPoint
	State state.ProgramState

	succs    []*Node
	preds    []*Node
	findings []check.Finding
	exit     *Exit
	// Set while the node waits in the worklist.
	queued bool
}

func (n *Node) ID() int                   { return n.id }
func (n *Node) Successors() []*Node       { return n.succs }
func (n *Node) Predecessors() []*Node     { return n.preds }
func (n *Node) Findings() []check.Finding { return n.findings }
func (n *Node) Exit() *Exit               { return n.exit }
func (n *Node) IsExit() bool              { return n.exit != nil }

func (n *Node) String() string {
	return fmt.Sprintf("%d %v %v", n.id, n.Point, n.State)
}

// link adds an edge unless it exists.
func (n *Node) link(to *Node) {
	for _, s := range n.succs {
		if s == to {
			return
		}
	}
	n.succs = append(n.succs, to)
	to.preds = append(to.preds, n)
}

// reset forgets everything derived from the state of the node, so that it
// can be expanded again.
func (n *Node) reset() {
	for _, s := range n.succs {
		preds := s.preds[:0]
		for _, p := range s.preds {
			if p != n {
				preds = append(preds, p)
			}
		}
		s.preds = preds
	}
	n.succs, n.findings, n.exit = nil, nil, nil
}

type nodeKey struct {
	point defs.ProgramPoint
	state state.ProgramState
}

type nodeKeyHasher struct{}

func (nodeKeyHasher) Hash(k nodeKey) uint32 {
	return utils.HashCombine(k.point.Hash(), k.state.Hash())
}

func (nodeKeyHasher) Equal(a, b nodeKey) bool {
	return a.point == b.point && a.state.Equal(b.state)
}

// ExplodedGraph is the graph of (point, state) pairs reached while
// exploring a method.
type ExplodedGraph struct {
	entry *Node
	// Canonical node of every (point, state) pair.
	canon *hmap.Map[nodeKey, *Node]
	// Nodes whose state is merged, keyed by point.
	merged map[defs.ProgramPoint]*Node
	size   int
}

func newGraph() *ExplodedGraph {
	return &ExplodedGraph{
		canon:  hmap.NewMap[*Node](nodeKeyHasher{}),
		merged: make(map[defs.ProgramPoint]*Node),
	}
}

func (G *ExplodedGraph) newNode(p defs.ProgramPoint, s state.ProgramState) *Node {
	n := &Node{id: G.size, Point: p, State: s}
	G.size++
	return n
}

// getOrAdd returns the canonical node for (p, s). The second result is
// true if the node was created.
func (G *ExplodedGraph) getOrAdd(p defs.ProgramPoint, s state.ProgramState) (*Node, bool) {
	key := nodeKey{p, s}
	if n, found := G.canon.GetOk(key); found {
		return n, false
	}
	n := G.newNode(p, s)
	G.canon.Set(key, n)
	return n, true
}

func (G *ExplodedGraph) Entry() *Node {
	return G.entry
}

// Created is the number of nodes ever created, including nodes made
// unreachable by merging.
func (G *ExplodedGraph) Created() int {
	return G.size
}

// Size counts the nodes reachable from the entry.
func (G *ExplodedGraph) Size() (res int) {
	G.ForEach(func(*Node) { res++ })
	return
}

// ForEach visits the nodes reachable from the entry in breadth-first
// order.
func (G *ExplodedGraph) ForEach(do func(*Node)) {
	if G.entry == nil {
		return
	}
	visited := map[*Node]bool{G.entry: true}
	worklist.Start(G.entry, func(n *Node, add func(*Node)) {
		do(n)
		for _, s := range n.succs {
			if !visited[s] {
				visited[s] = true
				add(s)
			}
		}
	})
}

// Exits lists the reachable exit nodes.
func (G *ExplodedGraph) Exits() (res []*Node) {
	G.ForEach(func(n *Node) {
		if n.exit != nil {
			res = append(res, n)
		}
	})
	return
}

// Findings collects the findings of the reachable nodes.
func (G *ExplodedGraph) Findings() check.FindingSet {
	var fs []check.Finding
	G.ForEach(func(n *Node) {
		fs = append(fs, n.findings...)
	})
	return check.NewFindingSet(fs...)
}
