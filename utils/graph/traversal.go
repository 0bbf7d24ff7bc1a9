package graph

import W "github.com/cs-au-dk/symbex/utils/worklist"

type traversalFunc[T any] func(node T) (stop bool)

// Performs a breadth-first search from the provided start nodes, calling the
// provided function (f) for every reachable node, stopping early if f returns
// true.
// Returns whether the search stopped early (as a result of f returning true).
func (G Graph[T]) BFSV(f traversalFunc[T], starts ...T) bool {
	visited := G.mapFactory()
	for _, start := range starts {
		visited.Set(start, true)
	}

	done := false
	W.StartV(starts, func(node T, add func(T)) {
		if done || f(node) {
			done = true
			return
		}

		for _, next := range G.Edges(node) {
			if _, found := visited.Get(next); !found {
				visited.Set(next, true)
				add(next)
			}
		}
	})

	return done
}

// BFS is BFSV with a single start node.
func (G Graph[T]) BFS(start T, f traversalFunc[T]) bool {
	return G.BFSV(f, start)
}

// DFSResult records a depth-first traversal from a root.
type DFSResult[T any] struct {
	// Postorder lists the reachable nodes in DFS post-order.
	Postorder []T
	// retreating maps a node to the targets of its retreating edges.
	retreating Mapper[T]
}

// ReversePostorder lists the reachable nodes in reverse post-order.
func (r DFSResult[T]) ReversePostorder() []T {
	res := make([]T, len(r.Postorder))
	for i, n := range r.Postorder {
		res[len(res)-1-i] = n
	}
	return res
}

// Retreating returns the targets of the retreating edges leaving node.
// Every cycle in the graph contains at least one retreating edge.
func (r DFSResult[T]) Retreating(node T) []T {
	if ts, ok := r.retreating.Get(node); ok {
		return ts.([]T)
	}
	return nil
}

// DFS performs a depth-first traversal from root, recording post-order and the
// edges that point back to a node still on the DFS stack.
func (G Graph[T]) DFS(root T) DFSResult[T] {
	const (
		onStack = 1
		done    = 2
	)
	state := G.mapFactory()
	res := DFSResult[T]{retreating: G.mapFactory()}

	var visit func(T)
	visit = func(node T) {
		state.Set(node, onStack)
		for _, e := range G.Edges(node) {
			switch s, seen := state.Get(e); {
			case !seen:
				visit(e)
			case s.(int) == onStack:
				prev := res.Retreating(node)
				res.retreating.Set(node, append(prev, e))
			}
		}
		state.Set(node, done)
		res.Postorder = append(res.Postorder, node)
	}

	visit(root)
	return res
}
