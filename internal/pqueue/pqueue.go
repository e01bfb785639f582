package pqueue

import "container/heap"

// Item is an entry in a PriorityQueue: a payload plus the priority it was
// queued under and its current slot, which heap.Fix needs to re-sift after
// an in-place priority change.
type Item[T any] struct {
	Value    T
	Priority float64
	Index    int
}

// PriorityQueue is a min-priority queue ordered on Item.Priority. It
// implements container/heap.Interface directly rather than through a
// wrapper, matching the shape exercised by the teacher's
// priority_queue_test.go (router/algo/priority_queue_test.go): Push/Pop
// operate on *Item[T], and a changed Priority is re-sifted with heap.Fix
// using the Index the queue maintains for each element.
type PriorityQueue[T any] []*Item[T]

func (pq PriorityQueue[T]) Len() int { return len(pq) }

func (pq PriorityQueue[T]) Less(i, j int) bool {
	return pq[i].Priority < pq[j].Priority
}

func (pq PriorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue[T]) Push(x any) {
	item := x.(*Item[T])
	item.Index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *PriorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[:n-1]
	return item
}

// PushItem wraps heap.Push so callers push values instead of *Item[T].
func (pq *PriorityQueue[T]) PushItem(value T, priority float64) {
	heap.Push(pq, &Item[T]{Value: value, Priority: priority})
}

// PopItem wraps heap.Pop so callers get the value and its priority back
// directly, mirroring the "pop and inspect" loop used throughout the
// label-setting and Dijkstra passes.
func (pq *PriorityQueue[T]) PopItem() (T, float64) {
	item := heap.Pop(pq).(*Item[T])
	return item.Value, item.Priority
}
