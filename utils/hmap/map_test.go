package hmap

import (
	"testing"

	"github.com/benbjohnson/immutable"
)

type collidingHasher struct{}

func (collidingHasher) Hash(int) uint32     { return 7 }
func (collidingHasher) Equal(a, b int) bool { return a == b }

func TestMap(t *testing.T) {
	for _, hasher := range []immutable.Hasher[int]{immutable.NewHasher(0), collidingHasher{}} {
		m := NewMap[string](hasher)
		m.Set(1, "a")
		m.Set(2, "b")
		m.Set(1, "c")

		if v := m.Get(1); v != "c" {
			t.Errorf("Get(1) = %q", v)
		}
		if _, ok := m.GetOk(3); ok {
			t.Error("unexpected binding for 3")
		}
		if v, found := m.GetOrSet(2, "x"); !found || v != "b" {
			t.Errorf("GetOrSet(2) = %q, %v", v, found)
		}
		if v, found := m.GetOrSet(3, "d"); found || v != "d" {
			t.Errorf("GetOrSet(3) = %q, %v", v, found)
		}

		var keys []int
		m.ForEach(func(k int, _ string) { keys = append(keys, k) })
		if len(keys) != 3 || keys[0] != 1 || keys[1] != 2 || keys[2] != 3 {
			t.Errorf("insertion order not kept: %v", keys)
		}
	}
}
