// Package bookheap implements the price-time priority queue (spec
// component C1): a binary heap over container/heap, generalized from the
// teacher's single-purpose orderLevelHeap (pkg/orderbook/heap.go) so the
// same type drives both the bid max-heap and the ask min-heap via an
// injected ordering function.
package bookheap

import "container/heap"

// Entry is the minimal shape a heap element must have: a price to order
// by and a timestamp to break ties within a price level (earliest first).
type Entry interface {
	HeapPrice() float64
	HeapTimestamp() int64
}

// Less compares two prices for a given side: true if a has priority over
// b. Bids want the highest price first, asks the lowest.
type Less func(a, b float64) bool

// BidLess orders the highest price first.
func BidLess(a, b float64) bool { return a > b }

// AskLess orders the lowest price first.
func AskLess(a, b float64) bool { return a < b }

// Heap is a binary heap keyed by (price, timestamp) with side-specific
// price ordering and FIFO tie-break on equal price. It satisfies
// container/heap.Interface so the stdlib algorithm drives push/pop, and
// adds RemoveFirst for the infrequent arbitrary-removal path (cancels).
type Heap[T Entry] struct {
	items []T
	less  Less
}

// New returns an empty heap ordered by less.
func New[T Entry](less Less) *Heap[T] {
	return &Heap[T]{less: less}
}

func (h *Heap[T]) Len() int { return len(h.items) }

func (h *Heap[T]) Less(i, j int) bool {
	pi, pj := h.items[i].HeapPrice(), h.items[j].HeapPrice()
	if pi == pj {
		return h.items[i].HeapTimestamp() < h.items[j].HeapTimestamp()
	}
	return h.less(pi, pj)
}

func (h *Heap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

// Push implements heap.Interface; use Heap.PushItem from outside the
// package, container/heap calls this directly.
func (h *Heap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

// Pop implements heap.Interface; use Heap.PopItem from outside the
// package, container/heap calls this directly.
func (h *Heap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero
	h.items = old[:n-1]
	return item
}

// PushItem inserts x in heap order.
func (h *Heap[T]) PushItem(x T) {
	heap.Push(h, x)
}

// PopItem removes and returns the root, or the zero value and false if
// empty. Never fails on empty.
func (h *Heap[T]) PopItem() (T, bool) {
	var zero T
	if h.Len() == 0 {
		return zero, false
	}
	return heap.Pop(h).(T), true
}

// Peek returns the root without removing it, or the zero value and false
// if empty.
func (h *Heap[T]) Peek() (T, bool) {
	var zero T
	if h.Len() == 0 {
		return zero, false
	}
	return h.items[0], true
}

// RemoveFirst scans linearly for the first item satisfying predicate,
// removes it via heap.Remove, and reports whether it found one. Acceptable
// because active depth is bounded and removal is rare (cancel path only);
// the hot matching loop only ever uses Peek/PopItem.
func (h *Heap[T]) RemoveFirst(predicate func(T) bool) bool {
	for i, item := range h.items {
		if predicate(item) {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the heap contents in heap (not fully sorted)
// order, for inspection without exposing the live backing slice.
func (h *Heap[T]) Snapshot() []T {
	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}
