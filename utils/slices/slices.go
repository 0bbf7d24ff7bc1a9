// Package slices holds small generic helpers over slices.
package slices

// Find returns the first element of l satisfying pred.
func Find[E ~[]T, T any](l E, pred func(T) bool) (x T, found bool) {
	for _, x = range l {
		if pred(x) {
			return x, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns a fresh slice of the elements of l satisfying pred.
func Filter[E ~[]T, T any](l E, pred func(T) bool) E {
	res := make(E, 0, len(l))
	for _, x := range l {
		if pred(x) {
			res = append(res, x)
		}
	}
	return res
}

// OneOf is true if x is among xs.
func OneOf[T comparable](x T, xs ...T) bool {
	_, found := Find(xs, func(y T) bool { return x == y })
	return found
}
