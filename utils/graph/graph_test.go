package graph

import (
	"sync"
	"testing"
)

var edges = map[int][]int{
	0:  {1, 8},
	1:  {4, 5, 2},
	2:  {6, 3, 9},
	3:  {2, 7},
	4:  {0, 5},
	5:  {6},
	6:  {5},
	7:  {3, 6},
	8:  {},
	9:  {10, 11},
	10: {12, 13},
	11: {12, 13},
	12: {},
	13: {},
}
var _sampleGraph = OfHashable(func(i int) []int {
	return edges[i]
})

func TestBFSReachesAll(t *testing.T) {
	seen := 0
	_sampleGraph.BFS(0, func(int) bool {
		seen++
		return false
	})
	if seen != len(edges) {
		t.Errorf("expected %d nodes, visited %d", len(edges), seen)
	}

	if !_sampleGraph.BFS(0, func(n int) bool { return n == 12 }) {
		t.Error("expected early stop at node 12")
	}
}

func TestDFSRetreatingEdges(t *testing.T) {
	res := _sampleGraph.DFS(0)
	if len(res.Postorder) != len(edges) {
		t.Fatalf("expected %d nodes in post-order, got %d", len(edges), len(res.Postorder))
	}
	if rpo := res.ReversePostorder(); rpo[0] != 0 {
		t.Errorf("reverse post-order should start at the root, got %v", rpo)
	}

	count := 0
	for n := range edges {
		count += len(res.Retreating(n))
	}
	// Cycles: 0-1-4, 5-6, 2-3 (and 3-7-3 shares the 2-3 component).
	if count < 3 {
		t.Errorf("expected at least 3 retreating edges, got %d", count)
	}
	if got := res.Retreating(6); len(got) != 1 || got[0] != 5 {
		t.Errorf("expected 6 -> 5 to be retreating, got %v", got)
	}
}

func TestDominators(t *testing.T) {
	D := _sampleGraph.DominatorTree(0)
	for _, test := range []struct {
		a, b     int
		expected bool
	}{
		{0, 13, true},
		{2, 9, true},
		{9, 12, true},
		{10, 12, false},
		{1, 5, true},
		{4, 5, false},
	} {
		if got := D.Dominates(test.a, test.b); got != test.expected {
			t.Errorf("Dominates(%d, %d) = %v", test.a, test.b, got)
		}
	}

	if c := D.Common(12, 13); c != 9 {
		t.Errorf("Common(12, 13) = %d, expected 9", c)
	}
}

func TestEdgesShared(t *testing.T) {
	var mu sync.Mutex
	calls := map[int]int{}
	G := OfHashable(func(i int) []int {
		mu.Lock()
		calls[i]++
		mu.Unlock()
		return edges[i]
	})

	// Copies share the cache.
	G.Edges(1)
	H := G
	H.Edges(1)
	if calls[1] != 1 {
		t.Errorf("expected a single call for node 1, got %d", calls[1])
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range edges {
				if got := G.Edges(n); len(got) != len(edges[n]) {
					t.Errorf("node %d: expected %v, got %v", n, edges[n], got)
				}
			}
		}()
	}
	wg.Wait()
}
