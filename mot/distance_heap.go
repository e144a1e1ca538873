package mot

import (
	"container/heap"

	"github.com/google/uuid"
)

// distanceBlob is a fresh detection paired with its nearest existing object
type distanceBlob[B Blob[B]] struct {
	underlying B
	id         uuid.UUID
	distance   float64
}

// distanceHeap is a min-heap by distance
type distanceHeap[B Blob[B]] []*distanceBlob[B]

func (h distanceHeap[B]) Len() int           { return len(h) }
func (h distanceHeap[B]) Less(i, j int) bool { return h[i].distance < h[j].distance }
func (h distanceHeap[B]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *distanceHeap[B]) Push(x any) {
	*h = append(*h, x.(*distanceBlob[B]))
}

func (h *distanceHeap[B]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// pushBlob and popBlob save type assertions at call sites
func (h *distanceHeap[B]) pushBlob(item *distanceBlob[B]) {
	heap.Push(h, item)
}

func (h *distanceHeap[B]) popBlob() *distanceBlob[B] {
	return heap.Pop(h).(*distanceBlob[B])
}
