package hmap

import "github.com/benbjohnson/immutable"

// Map is a mutable hash map for keys that are not Go-comparable, or whose
// equality is structural. Collisions are chained. Iteration follows
// insertion order, so anything derived from it is deterministic.
type Map[K, V any] struct {
	hasher immutable.Hasher[K]
	mp     map[uint32]*entry[K, V]
	order  []*entry[K, V]
}

type entry[K, V any] struct {
	key   K
	value V
	next  *entry[K, V]
}

// Order of V and K are swapped since K can be inferred by the argument.
func NewMap[V, K any](hasher immutable.Hasher[K]) *Map[K, V] {
	return &Map[K, V]{
		hasher: hasher,
		mp:     make(map[uint32]*entry[K, V]),
	}
}

func (m *Map[K, V]) find(h uint32, key K) *entry[K, V] {
	for e := m.mp[h]; e != nil; e = e.next {
		if m.hasher.Equal(key, e.key) {
			return e
		}
	}
	return nil
}

func (m *Map[K, V]) Set(key K, value V) {
	h := m.hasher.Hash(key)
	if e := m.find(h, key); e != nil {
		e.value = value
		return
	}

	e := &entry[K, V]{key, value, m.mp[h]}
	m.mp[h] = e
	m.order = append(m.order, e)
}

// GetOrSet returns the value bound to key, binding it to value first if absent.
// The flag reports whether the key was already present.
func (m *Map[K, V]) GetOrSet(key K, value V) (V, bool) {
	h := m.hasher.Hash(key)
	if e := m.find(h, key); e != nil {
		return e.value, true
	}

	e := &entry[K, V]{key, value, m.mp[h]}
	m.mp[h] = e
	m.order = append(m.order, e)
	return value, false
}

func (m *Map[K, V]) GetOk(key K) (res V, ok bool) {
	if e := m.find(m.hasher.Hash(key), key); e != nil {
		return e.value, true
	}
	return
}

func (m *Map[K, V]) Get(key K) V {
	v, _ := m.GetOk(key)
	return v
}

func (m *Map[K, V]) Len() int {
	return len(m.order)
}

// ForEach visits the bindings in insertion order.
func (m *Map[K, V]) ForEach(f func(K, V)) {
	for _, e := range m.order {
		f(e.key, e.value)
	}
}
