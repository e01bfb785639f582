package pqueue_test

import (
	"container/heap"
	"testing"

	"github.com/adam-rumpf/social-transit-solver/internal/pqueue"
	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue(t *testing.T) {
	pq := make(pqueue.PriorityQueue[int], 0)
	heap.Init(&pq)
	pq.PushItem(4, 4)
	pq.PushItem(2, 2)
	pq.PushItem(1, 1)
	pq.PushItem(3, 3)

	v, p := pq.PopItem()
	assert.Equal(t, 1, v)
	assert.Equal(t, 1.0, p)
	v, p = pq.PopItem()
	assert.Equal(t, 2, v)
	assert.Equal(t, 2.0, p)
}

func TestPriorityQueueChangePriority(t *testing.T) {
	pq := make(pqueue.PriorityQueue[int], 0)
	heap.Init(&pq)
	pq.PushItem(4, 4)
	pq.PushItem(2, 2)
	pq.PushItem(1, 1)
	pq.PushItem(3, 3)

	for _, item := range pq {
		if item.Value == 3 {
			item.Priority = 0
			heap.Fix(&pq, item.Index)
		}
	}

	v, _ := pq.PopItem()
	assert.Equal(t, 3, v)
	v, _ = pq.PopItem()
	assert.Equal(t, 1, v)
	v, _ = pq.PopItem()
	assert.Equal(t, 2, v)
	v, _ = pq.PopItem()
	assert.Equal(t, 4, v)

	assert.Equal(t, 0, pq.Len())
}
