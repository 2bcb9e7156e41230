package simulator

import (
	"container/heap"

	"github.com/jihwankim/rackrel/internal/sysstate"
)

// event is one entry in the simulation's event queue: at Time, Kind fires
// against Device (and, for a disk-repair event triggered while
// use_network is enabled, carries the cross-rack bandwidth it reserved so
// the event dispatcher can release it back to the pool on completion).
type event struct {
	Time       float64
	Kind       sysstate.EventType
	Device     uint
	RepairBwth float64
	hasBwth    bool
}

// eventHeap is a container/heap.Interface min-heap ordered by (Time, Kind),
// grounded on joeycumines-go-utilpkg/eventloop's timerHeap pattern,
// generalized from wall-clock timers to simulation-time events.
type eventHeap []event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Kind < h[j].Kind
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// eventQueue wraps eventHeap with the push/pop/peek vocabulary the
// simulators use.
type eventQueue struct {
	h eventHeap
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.h)
	return q
}

func (q *eventQueue) push(e event) {
	heap.Push(&q.h, e)
}

func (q *eventQueue) pop() event {
	return heap.Pop(&q.h).(event)
}

func (q *eventQueue) empty() bool {
	return len(q.h) == 0
}

func (q *eventQueue) peek() event {
	return q.h[0]
}
