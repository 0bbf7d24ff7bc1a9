package worklist

// Worklist is the common interface of the exploration orders.
type Worklist[T any] interface {
	Add(el T)
	GetNext() T
	IsEmpty() bool
	Len() int
}

// Queue is a FIFO worklist. Exploring with it is breadth-first.
type Queue[T any] struct {
	list []T
}

// Stack is a LIFO worklist. Exploring with it is depth-first.
type Stack[T any] struct {
	list []T
}

// Start worklist execution with provided `starting` element and an iteration
// function. The iteration function exposes the next element and a function with
// which to add more elements to the worklist.
func Start[T any](start T, do func(next T, add func(el T))) {
	StartV([]T{start}, do)
}

// StartV is Start with a preloaded queue.
func StartV[T any](start []T, do func(next T, add func(el T))) {
	W := Empty[T]()
	for _, e := range start {
		W.Add(e)
	}

	Process[T](W, do)
}

// Process drains w, calling do for every element until no more are added.
func Process[T any](w Worklist[T], do func(next T, add func(el T))) {
	for !w.IsEmpty() {
		do(w.GetNext(), w.Add)
	}
}

func Empty[T any]() *Queue[T] {
	return &Queue[T]{}
}

func EmptyStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

func (w *Queue[T]) GetNext() (ret T) {
	if len(w.list) == 0 {
		return
	}
	next := w.list[0]
	// Release the reference held by the backing array.
	var zero T
	w.list[0] = zero
	w.list = w.list[1:]
	return next
}

func (w *Queue[T]) Add(el T)      { w.list = append(w.list, el) }
func (w *Queue[T]) IsEmpty() bool { return len(w.list) == 0 }
func (w *Queue[T]) Len() int      { return len(w.list) }

func (w *Stack[T]) GetNext() (ret T) {
	n := len(w.list)
	if n == 0 {
		return
	}
	next := w.list[n-1]
	var zero T
	w.list[n-1] = zero
	w.list = w.list[:n-1]
	return next
}

func (w *Stack[T]) Add(el T)      { w.list = append(w.list, el) }
func (w *Stack[T]) IsEmpty() bool { return len(w.list) == 0 }
func (w *Stack[T]) Len() int      { return len(w.list) }
