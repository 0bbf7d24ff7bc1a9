package graph

import "fmt"

// Dominators answers dominance queries for the nodes reachable from a root.
type Dominators[T any] struct {
	postorderTime Mapper[T]
	order         []T
	doms          []int
}

// Source: https://www.cs.rice.edu/~keith/EMBED/dom.pdf

func (G Graph[T]) DominatorTree(root T) Dominators[T] {
	postorderTime := G.mapFactory()
	pred := G.mapFactory()

	// Compute DFS post-order ordering
	time := 0
	order := []T{}

	var dfs func(T)
	dfs = func(node T) {
		if _, seen := postorderTime.Get(node); seen {
			return
		}

		postorderTime.Set(node, -1)

		for _, e := range G.Edges(node) {
			var preds []T
			if predsItf, found := pred.Get(e); found {
				preds = predsItf.([]T)
			}

			pred.Set(e, append(preds, node))

			dfs(e)
		}

		postorderTime.Set(node, time)
		order = append(order, node)
		time++
	}

	dfs(root)

	// Initialize doms to "Undefined"
	doms := make([]int, time)
	for i := 0; i < time; i++ {
		doms[i] = -1
	}
	doms[time-1] = time - 1

	D := Dominators[T]{postorderTime, order, doms}

	for {
		changed := false

		// Process nodes in reverse post-order (except for root)
		for i := time - 2; i >= 0; i-- {
			node := order[i]

			newIdom := -1
			predsItf, _ := pred.Get(node)

			for _, predecessor := range predsItf.([]T) {
				jItf, _ := postorderTime.Get(predecessor)
				j := jItf.(int)

				if doms[j] != -1 {
					if newIdom == -1 {
						newIdom = j
					} else {
						newIdom = D.intersect(j, newIdom)
					}
				}
			}

			if newIdom != doms[i] {
				doms[i] = newIdom
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return D
}

func (D Dominators[T]) intersect(a, b int) int {
	for a != b {
		if a < b {
			a = D.doms[a]
		} else {
			b = D.doms[b]
		}
	}
	return a
}

func (D Dominators[T]) time(node T) int {
	iItf, found := D.postorderTime.Get(node)
	if !found {
		panic(fmt.Errorf("%v was not reachable when computing the dominator tree", node))
	}
	return iItf.(int)
}

// Common returns the closest node dominating all the given nodes.
func (D Dominators[T]) Common(nodes ...T) T {
	if len(nodes) == 0 {
		panic("Empty list of nodes for dominator computation")
	}

	dom := -1
	for _, node := range nodes {
		if i := D.time(node); dom == -1 {
			dom = i
		} else {
			dom = D.intersect(i, dom)
		}
	}

	return D.order[dom]
}

// Dominates reports whether every path from the root to b passes through a.
func (D Dominators[T]) Dominates(a, b T) bool {
	ta, tb := D.time(a), D.time(b)
	return D.intersect(ta, tb) == ta
}

// Reachable is true if node was reached from the root.
func (D Dominators[T]) Reachable(node T) bool {
	_, found := D.postorderTime.Get(node)
	return found
}
