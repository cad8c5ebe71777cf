package vm

import "slices"

// ---------------------------------------------------------------------------
// Stack: typed LIFO with position-addressed operations
// ---------------------------------------------------------------------------

// Stack is a typed LIFO. Depth 0 is the top. Position arguments to Shove, Yank
// and YankDup may be any integer; they are reduced modulo the stack length.
//
// A Stack keeps a running size used for memory accounting. By default every
// item counts 1; NewSizedStack takes a function for items that are larger,
// such as Code trees measured in points.
type Stack[T any] struct {
	items  []T
	size   int
	sizeOf func(T) int
}

// NewStack creates a stack whose items each count 1 toward Size.
func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

// NewSizedStack creates a stack that measures items with sizeOf.
func NewSizedStack[T any](sizeOf func(T) int) *Stack[T] {
	return &Stack[T]{sizeOf: sizeOf}
}

func (s *Stack[T]) measure(item T) int {
	if s.sizeOf == nil {
		return 1
	}
	return s.sizeOf(item)
}

// Len returns the number of items.
func (s *Stack[T]) Len() int { return len(s.items) }

// Size returns the running total of item sizes.
func (s *Stack[T]) Size() int { return s.size }

// Push places item on top.
func (s *Stack[T]) Push(item T) {
	s.items = append(s.items, item)
	s.size += s.measure(item)
}

// Pop removes and returns the top item.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	n := len(s.items)
	if n == 0 {
		return zero, false
	}
	item := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	s.size -= s.measure(item)
	return item, true
}

// Peek returns the top item without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	return s.Nth(0)
}

// Nth returns the item at the given depth without removing it. Unlike Yank,
// the depth is not wrapped.
func (s *Stack[T]) Nth(depth int) (T, bool) {
	var zero T
	if depth < 0 || depth >= len(s.items) {
		return zero, false
	}
	return s.items[len(s.items)-1-depth], true
}

// Clear removes every item.
func (s *Stack[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
	s.size = 0
}

// Items returns a copy of the contents, bottom first.
func (s *Stack[T]) Items() []T {
	return slices.Clone(s.items)
}

// Dup pushes a copy of the top item. No effect on an empty stack.
func (s *Stack[T]) Dup() bool {
	top, ok := s.Peek()
	if !ok {
		return false
	}
	s.Push(top)
	return true
}

// Rotate pulls the third item to the top. No effect with fewer than three
// items.
func (s *Stack[T]) Rotate() bool {
	n := len(s.items)
	if n < 3 {
		return false
	}
	third := s.items[n-3]
	s.items[n-3] = s.items[n-2]
	s.items[n-2] = s.items[n-1]
	s.items[n-1] = third
	return true
}

// Swap exchanges the top two items. No effect with fewer than two items.
func (s *Stack[T]) Swap() bool {
	n := len(s.items)
	if n < 2 {
		return false
	}
	s.items[n-1], s.items[n-2] = s.items[n-2], s.items[n-1]
	return true
}

// Shove pops the top item and reinserts it position slots down. The position
// is taken modulo the length before the pop, so Shove(0) and Shove(Len()) are
// no-ops.
func (s *Stack[T]) Shove(position int64) bool {
	n := len(s.items)
	if n == 0 {
		return false
	}
	index := vecIndex(position, n)
	top := s.items[n-1]
	s.items = slices.Insert(s.items[:n-1], index, top)
	return true
}

// Yank removes the item at the given depth and pushes it on top.
func (s *Stack[T]) Yank(position int64) bool {
	n := len(s.items)
	if n == 0 {
		return false
	}
	index := vecIndex(position, n)
	item := s.items[index]
	s.items = append(slices.Delete(s.items, index, index+1), item)
	return true
}

// YankDup pushes a copy of the item at the given depth.
func (s *Stack[T]) YankDup(position int64) bool {
	n := len(s.items)
	if n == 0 {
		return false
	}
	s.Push(s.items[vecIndex(position, n)])
	return true
}

// vecIndex converts a stack depth (0 is the top) into a slice index for a stack
// of length n. Any depth is accepted and wrapped modulo n.
func vecIndex(depth int64, n int) int {
	m := int64(n)
	d := depth % m
	if d < 0 {
		d += m
	}
	return n - 1 - int(d)
}
