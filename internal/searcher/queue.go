package searcher

import (
	"slices"

	"github.com/hupe1980/hnswgo/model"
)

// PriorityQueue implements a binary heap of model.Candidate.
// Storage is value-based and the type does NOT implement container/heap
// to avoid interface overhead.
//
// Ordering is by distance, then by row, so equal distances pop in a
// deterministic order: a min-heap pops the lowest row first and a
// max-heap pops the highest row first.
type PriorityQueue struct {
	isMaxHeap bool
	items     []model.Candidate
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]model.Candidate, 0, 16),
	}
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the heap.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (model.Candidate, bool) {
	if len(pq.items) == 0 {
		return model.Candidate{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item model.Candidate) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushItemBounded inserts an item into a heap holding at most capacity items.
// If the heap is full and the new item is not better than the top, it is skipped.
// If the heap is full and the new item is better, the top is replaced.
// It reports whether the item was kept.
func (pq *PriorityQueue) PushItemBounded(item model.Candidate, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(pq.items) < capacity {
		pq.PushItem(item)
		return true
	}

	top := pq.items[0]
	if pq.isMaxHeap {
		// Top is the worst (largest) of the kept items.
		if !item.Less(top) {
			return false
		}
	} else if !top.Less(item) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// PopItem removes and returns the top element from the heap.
func (pq *PriorityQueue) PopItem() (model.Candidate, bool) {
	n := len(pq.items)
	if n == 0 {
		return model.Candidate{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// AppendSorted appends the heap contents to dst in ascending (distance, row)
// order. The heap itself is left untouched.
func (pq *PriorityQueue) AppendSorted(dst []model.Candidate) []model.Candidate {
	start := len(dst)
	dst = append(dst, pq.items...)
	slices.SortFunc(dst[start:], compare)
	return dst
}

func compare(a, b model.Candidate) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[j].Less(pq.items[i])
	}
	return pq.items[i].Less(pq.items[j])
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && pq.less(right, left) {
			child = right
		}
		if !pq.less(child, i) {
			break
		}
		pq.items[i], pq.items[child] = pq.items[child], pq.items[i]
		i = child
	}
}
