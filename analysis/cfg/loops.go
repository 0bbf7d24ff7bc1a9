package cfg

import (
	"github.com/cs-au-dk/symbex/utils/graph"
)

// LoopInfo summarizes the cyclic structure of a method's block graph.
// It is computed once per method and is safe for concurrent reads.
type LoopInfo struct {
	retreating map[[2]BlockID]bool
	// Strongly connected component of every block, or -1 if unreachable.
	comp   []int
	cyclic []bool
	// Reverse post-order rank of every block. Unreachable blocks rank last.
	rank []int
	// Irreducible is set if some cycle has more than one entry.
	Irreducible bool
}

// Graph exposes the block graph of a method, including handler edges.
func Graph(m *Method) graph.Graph[BlockID] {
	return graph.OfHashable(func(b BlockID) []BlockID {
		return m.Blocks[b].Succs()
	})
}

// Loops computes the loop structure of a method.
func Loops(m *Method) *LoopInfo {
	G := Graph(m)
	n := len(m.Blocks)

	info := &LoopInfo{
		retreating: make(map[[2]BlockID]bool),
		comp:       make([]int, n),
		rank:       make([]int, n),
	}

	dfs := G.DFS(0)
	for i := range info.rank {
		info.rank[i] = n
	}
	for i, b := range dfs.ReversePostorder() {
		info.rank[b] = i
	}

	doms := G.DominatorTree(0)
	for _, from := range dfs.Postorder {
		for _, to := range dfs.Retreating(from) {
			info.retreating[[2]BlockID{from, to}] = true
			if !doms.Dominates(to, from) {
				info.Irreducible = true
			}
		}
	}

	sccs := G.SCC([]BlockID{0})
	for b := range m.Blocks {
		info.comp[b] = sccs.ComponentOf(BlockID(b))
	}
	info.cyclic = make([]bool, len(sccs.Components))
	for c := range sccs.Components {
		info.cyclic[c] = sccs.Cyclic(c)
	}

	return info
}

// IsRetreating is true if the edge closes a cycle in depth-first order.
func (l *LoopInfo) IsRetreating(from, to BlockID) bool {
	return l.retreating[[2]BlockID{from, to}]
}

// InCycle is true if b lies on a cycle.
func (l *LoopInfo) InCycle(b BlockID) bool {
	c := l.comp[b]
	return c >= 0 && l.cyclic[c]
}

// SameCycle is true if a and b lie on a common cycle.
func (l *LoopInfo) SameCycle(a, b BlockID) bool {
	return l.InCycle(a) && l.comp[a] == l.comp[b]
}

// Rank orders blocks in reverse post-order.
func (l *LoopInfo) Rank(b BlockID) int {
	return l.rank[b]
}

// Reachable is true if b can be reached from the entry block.
func (l *LoopInfo) Reachable(b BlockID) bool {
	return l.comp[b] >= 0
}
