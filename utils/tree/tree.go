package tree

import (
	"fmt"

	i "github.com/cs-au-dk/symbex/utils/indenter"

	"github.com/benbjohnson/immutable"
)

// Tree is a persistent key-value map. Updates return a new map that shares
// all untouched subtrees with the original, so copies are O(1) and equality,
// intersection and merging skip shared structure.
//
// The implementation is a little-endian patricia tree over key hashes:
// http://ittc.ku.edu/~andygill/papers/IntMap98.pdf
type Tree[K, V any] struct {
	hasher immutable.Hasher[K]
	root   node[K, V]
}

// NewTree constructs an empty map using hasher for keys.
func NewTree[K, V any](hasher immutable.Hasher[K]) Tree[K, V] {
	return Tree[K, V]{hasher, nil}
}

// Lookup retrieves the value bound to key.
func (tree Tree[K, V]) Lookup(key K) (V, bool) {
	return lookup(tree.root, tree.hasher.Hash(key), key, tree.hasher)
}

// Insert binds key to value, replacing any previous binding.
func (tree Tree[K, V]) Insert(key K, value V) Tree[K, V] {
	tree.root = insert(tree.root, tree.hasher.Hash(key), key, value, tree.hasher)
	return tree
}

// Remove drops the binding for key. The tree is returned as is if there was none.
func (tree Tree[K, V]) Remove(key K) Tree[K, V] {
	tree.root = remove(tree.root, tree.hasher.Hash(key), key, tree.hasher)
	return tree
}

// ForEach calls f once for every binding. The order is fixed by the key hashes.
func (tree Tree[K, V]) ForEach(f func(K, V)) {
	if tree.root != nil {
		tree.root.each(f)
	}
}

// Empty is true for a tree without bindings.
func (tree Tree[K, V]) Empty() bool {
	return tree.root == nil
}

// Size counts the bindings in linear time.
func (tree Tree[K, V]) Size() (res int) {
	tree.ForEach(func(K, V) { res++ })
	return
}

// Equal compares two maps, using eq for values.
func (tree Tree[K, V]) Equal(other Tree[K, V], eq func(a, b V) bool) bool {
	return equal(tree.root, other.root, tree.hasher, eq)
}

// Intersect keeps the keys bound in both maps. The new value for a key is f
// applied to both values; a false second result drops the key.
// f(v, v) must return (v, true), since shared subtrees are kept without calling f.
func (tree Tree[K, V]) Intersect(other Tree[K, V], f func(a, b V) (V, bool)) Tree[K, V] {
	tree.root = intersect(tree.root, other.root, tree.hasher, f)
	return tree
}

func (tree Tree[K, V]) StringFiltered(pred func(k K, v V) bool) string {
	buf := []func() string{}

	tree.ForEach(func(k K, v V) {
		if pred(k, v) {
			buf = append(buf, func() string {
				return fmt.Sprintf("%v ↦ %v", k, v)
			})
		}
	})

	return i.Indenter().Start("{").NestThunked(buf...).End("}")
}

func (tree Tree[K, V]) String() string {
	return tree.StringFiltered(func(K, V) bool { return true })
}

type node[K, V any] interface {
	each(func(K, V))
}

type branch[K, V any] struct {
	// Bits of the keys below branchBit shared by the whole subtree.
	prefix keyt
	// Exactly one bit set: the first bit on which left and right differ.
	branchBit   keyt
	left, right node[K, V]
}

func (b *branch[K, V]) each(f func(K, V)) {
	b.left.each(f)
	b.right.each(f)
}

// match is true if the key belongs in the subtree.
func (b *branch[K, V]) match(key keyt) bool {
	return mask(key, b.branchBit) == b.prefix
}

type pair[K, V any] struct {
	key   K
	value V
}

// leaf holds every binding whose key hashes to hash. More than one pair
// only occurs on hash collisions.
type leaf[K, V any] struct {
	hash  keyt
	pairs []pair[K, V]
}

func (l *leaf[K, V]) each(f func(K, V)) {
	for _, pr := range l.pairs {
		f(pr.key, pr.value)
	}
}

// mkBranch builds a branch, collapsing it when one side is empty.
func mkBranch[K, V any](prefix, bit keyt, left, right node[K, V]) node[K, V] {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return &branch[K, V]{prefix, bit, left, right}
}

// link joins two disjoint subtrees with differing prefixes p0 and p1.
func link[K, V any](p0 keyt, t0 node[K, V], p1 keyt, t1 node[K, V]) node[K, V] {
	bit := branchingBit(p0, p1)
	if zeroBit(p0, bit) {
		return &branch[K, V]{mask(p0, bit), bit, t0, t1}
	}
	return &branch[K, V]{mask(p0, bit), bit, t1, t0}
}

func prefixOf[K, V any](n node[K, V]) keyt {
	switch n := n.(type) {
	case *leaf[K, V]:
		return n.hash
	case *branch[K, V]:
		return n.prefix
	}
	panic("???")
}

func lookup[K, V any](n node[K, V], hash keyt, key K, hasher immutable.Hasher[K]) (ret V, found bool) {
	for n != nil {
		switch t := n.(type) {
		case *leaf[K, V]:
			if t.hash == hash {
				for _, pr := range t.pairs {
					if hasher.Equal(key, pr.key) {
						return pr.value, true
					}
				}
			}
			return
		case *branch[K, V]:
			if !t.match(hash) {
				return
			}
			if zeroBit(hash, t.branchBit) {
				n = t.left
			} else {
				n = t.right
			}
		default:
			panic("???")
		}
	}
	return
}

func insert[K, V any](n node[K, V], hash keyt, key K, value V, hasher immutable.Hasher[K]) node[K, V] {
	if n == nil {
		return &leaf[K, V]{hash, []pair[K, V]{{key, value}}}
	}

	switch t := n.(type) {
	case *leaf[K, V]:
		if t.hash != hash {
			break
		}
		pairs := make([]pair[K, V], len(t.pairs), len(t.pairs)+1)
		copy(pairs, t.pairs)
		for idx, pr := range pairs {
			if hasher.Equal(key, pr.key) {
				pairs[idx].value = value
				return &leaf[K, V]{hash, pairs}
			}
		}
		return &leaf[K, V]{hash, append(pairs, pair[K, V]{key, value})}

	case *branch[K, V]:
		if !t.match(hash) {
			break
		}
		if zeroBit(hash, t.branchBit) {
			return &branch[K, V]{t.prefix, t.branchBit, insert(t.left, hash, key, value, hasher), t.right}
		}
		return &branch[K, V]{t.prefix, t.branchBit, t.left, insert(t.right, hash, key, value, hasher)}

	default:
		panic("???")
	}

	return link[K, V](hash, &leaf[K, V]{hash, []pair[K, V]{{key, value}}}, prefixOf(n), n)
}

func remove[K, V any](n node[K, V], hash keyt, key K, hasher immutable.Hasher[K]) node[K, V] {
	switch t := n.(type) {
	case nil:
		return nil
	case *leaf[K, V]:
		if t.hash != hash {
			return n
		}
		var kept []pair[K, V]
		for _, pr := range t.pairs {
			if !hasher.Equal(key, pr.key) {
				kept = append(kept, pr)
			}
		}
		switch len(kept) {
		case len(t.pairs):
			return n
		case 0:
			return nil
		}
		return &leaf[K, V]{hash, kept}
	case *branch[K, V]:
		if !t.match(hash) {
			return n
		}
		left, right := t.left, t.right
		if zeroBit(hash, t.branchBit) {
			left = remove(left, hash, key, hasher)
		} else {
			right = remove(right, hash, key, hasher)
		}
		if left == t.left && right == t.right {
			return n
		}
		return mkBranch(t.prefix, t.branchBit, left, right)
	}
	panic("???")
}

func equal[K, V any](a, b node[K, V], hasher immutable.Hasher[K], eq func(a, b V) bool) bool {
	if a == b {
		return true
	} else if a == nil || b == nil {
		return false
	}

	switch a := a.(type) {
	case *leaf[K, V]:
		b, ok := b.(*leaf[K, V])
		if !ok || a.hash != b.hash || len(a.pairs) != len(b.pairs) {
			return false
		}

	FOUND:
		for _, apr := range a.pairs {
			for _, bpr := range b.pairs {
				if hasher.Equal(apr.key, bpr.key) {
					if !eq(apr.value, bpr.value) {
						return false
					}
					continue FOUND
				}
			}
			return false
		}
		return true

	case *branch[K, V]:
		b, ok := b.(*branch[K, V])
		if !ok {
			return false
		}
		return a.prefix == b.prefix && a.branchBit == b.branchBit &&
			equal(a.left, b.left, hasher, eq) && equal(a.right, b.right, hasher, eq)
	}
	panic("???")
}

// intersectLeaf keeps the pairs of lf that are also bound in other.
// If flip is set, lf came from the right-hand operand.
func intersectLeaf[K, V any](
	lf *leaf[K, V], other node[K, V], flip bool,
	hasher immutable.Hasher[K], f func(a, b V) (V, bool),
) node[K, V] {
	var kept []pair[K, V]
	for _, pr := range lf.pairs {
		ov, found := lookup(other, lf.hash, pr.key, hasher)
		if !found {
			continue
		}
		a, b := pr.value, ov
		if flip {
			a, b = b, a
		}
		if v, keep := f(a, b); keep {
			kept = append(kept, pair[K, V]{pr.key, v})
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &leaf[K, V]{lf.hash, kept}
}

func intersect[K, V any](a, b node[K, V], hasher immutable.Hasher[K], f func(a, b V) (V, bool)) node[K, V] {
	if a == b {
		return a
	} else if a == nil || b == nil {
		return nil
	}

	if lf, ok := a.(*leaf[K, V]); ok {
		return intersectLeaf(lf, b, false, hasher, f)
	}
	if lf, ok := b.(*leaf[K, V]); ok {
		return intersectLeaf(lf, a, true, hasher, f)
	}

	s, t := a.(*branch[K, V]), b.(*branch[K, V])
	switch {
	case s.branchBit == t.branchBit && s.prefix == t.prefix:
		left := intersect(s.left, t.left, hasher, f)
		right := intersect(s.right, t.right, hasher, f)
		if left == s.left && right == s.right {
			return s
		}
		return mkBranch(s.prefix, s.branchBit, left, right)

	case s.branchBit < t.branchBit && s.match(t.prefix):
		// t lies entirely on one side of s.
		if zeroBit(t.prefix, s.branchBit) {
			return intersect(s.left, b, hasher, f)
		}
		return intersect(s.right, b, hasher, f)

	case t.branchBit < s.branchBit && t.match(s.prefix):
		if zeroBit(s.prefix, t.branchBit) {
			return intersect(a, t.left, hasher, f)
		}
		return intersect(a, t.right, hasher, f)
	}

	// Disjoint key ranges.
	return nil
}
