package engine

import (
	"github.com/cs-au-dk/symbex/utils/pq"
	"github.com/cs-au-dk/symbex/utils/worklist"
)

func (x *explorer) newWorklist() worklist.Worklist[*Node] {
	switch x.e.opts.Strategy {
	case BFS:
		return worklist.Empty[*Node]()
	case RPO:
		return pq.Empty(x.lessRPO)
	}
	return worklist.EmptyStack[*Node]()
}

// rank orders points by block in reverse post-order. The exceptional exit
// comes after every block.
func (x *explorer) rank(n *Node) int {
	if n.Point.IsExceptionalExit() {
		return len(x.method.Blocks) + 1
	}
	return x.info.loops.Rank(n.Point.Block)
}

func (x *explorer) lessRPO(a, b *Node) bool {
	ra, rb := x.rank(a), x.rank(b)
	switch {
	case ra != rb:
		return ra < rb
	case a.Point.Iter != b.Point.Iter:
		return a.Point.Iter < b.Point.Iter
	case a.Point.Index != b.Point.Index:
		return a.Point.Index < b.Point.Index
	}
	return a.id < b.id
}
