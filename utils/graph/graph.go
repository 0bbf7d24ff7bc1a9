// Package graph implements graph algorithms over anything with an edge
// relation. Callers describe the successors of a node, and a map factory
// for the node type if nodes are not comparable. Block graphs, call graphs
// and exploded graphs all go through it.
package graph

import "sync"

type Mapper[K any] interface {
	Get(key K) (any, bool)
	Set(key K, value any)
}

type mapFactory[K any] func() Mapper[K]
type edgesOf[T any] func(node T) []T

// Graph is a value type. Copies share their edge cache, which may be used
// from several goroutines.
type Graph[T any] struct {
	mapFactory mapFactory[T]
	edgesOf    edgesOf[T]
	cache      *edgeCache[T]
}

type edgeCache[T any] struct {
	mu    sync.RWMutex
	edges Mapper[T]
}

// Edges returns the successors of node. The edge function is called once
// per node, so it must be pure.
func (G Graph[T]) Edges(node T) []T {
	c := G.cache
	c.mu.RLock()
	cached, found := c.edges.Get(node)
	c.mu.RUnlock()
	if found {
		return cached.([]T)
	}

	es := G.edgesOf(node)
	c.mu.Lock()
	c.edges.Set(node, es)
	c.mu.Unlock()
	return es
}

func Of[T any](mapFactory mapFactory[T], edgesOf edgesOf[T]) Graph[T] {
	return Graph[T]{
		mapFactory: mapFactory,
		edgesOf:    edgesOf,
		cache:      &edgeCache[T]{edges: mapFactory()},
	}
}

type mapMapper[K comparable] map[K]any

func (m mapMapper[K]) Get(key K) (any, bool) {
	value, ok := m[key]
	return value, ok
}

func (m mapMapper[K]) Set(key K, value any) {
	m[key] = value
}

// OfHashable builds a graph over comparable nodes, backed by builtin maps.
func OfHashable[K comparable](edgesOf edgesOf[K]) Graph[K] {
	return Of(func() Mapper[K] { return mapMapper[K]{} }, edgesOf)
}
