package engine

import (
	"container/heap"
	"sync"
)

// workItem is spec.md §4.F's "work item": an address to decode as code
// (isData false) or to analyze as data (isData true).
type workItem struct {
	addr   uint64
	isData bool
}

// itemHeap orders work items by address ascending, tie-broken code-before-
// data at the same address, per spec.md §4.F.
type itemHeap []workItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].addr != h[j].addr {
		return h[i].addr < h[j].addr
	}
	return !h[i].isData && h[j].isData
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(workItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// workQueue is the priority work queue of spec.md §4.F, safe for concurrent
// Push from a control-surface caller (reanalyze) while the worker Pops it.
type workQueue struct {
	mu sync.Mutex
	h  itemHeap
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	heap.Init(&q.h)
	return q
}

// pushCode enqueues code work at addr.
func (q *workQueue) pushCode(addr uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, workItem{addr: addr})
}

// pushData enqueues data work at addr.
func (q *workQueue) pushData(addr uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, workItem{addr: addr, isData: true})
}

// pop pulls the next item, or returns ok=false when the queue is drained.
func (q *workQueue) pop() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return workItem{}, false
	}
	return heap.Pop(&q.h).(workItem), true
}
