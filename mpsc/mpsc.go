// Package mpsc implements the intrusive stub-node many-producer,
// single-consumer queue from spec §4.3: the head is swapped with an atomic
// exchange and the predecessor's next link is published afterward, so the
// consumer can detect — and wait out — a producer that has claimed a slot
// but not yet linked it (spec §4.3 "Progress").
//
// corelane uses one instance per (channel, priority, producer-NUMA-node)
// for task routing (spec §4.4) and one instance per worker/globally for the
// epoch manager's garbage queue (spec §4.5) — hence the generic value type
// instead of hard-wiring task.Task.
//
// Go interfaces and arbitrary values cannot be the target of a hardware
// CAS/xchg the way a tagged C++ pointer can, so each enqueued value is
// boxed in a node carrying an atomic.Pointer to the next node; this is the
// one place in corelane where the port trades the teacher's raw
// intrusive-pointer style for a small per-enqueue allocation, documented in
// DESIGN.md.
package mpsc

import "sync/atomic"

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is the stub-node MPSC queue. The zero value is not usable; use New.
type Queue[T any] struct {
	head atomic.Pointer[node[T]] // producers xchg here
	tail *node[T]                // consumer-owned
	stub node[T]
}

// New returns an empty queue with its stub node already published.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.head.Store(&q.stub)
	q.tail = &q.stub
	return q
}

// Push enqueues v. Safe for any number of concurrent producers.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{value: v}
	q.pushNode(n)
}

func (q *Queue[T]) pushNode(n *node[T]) {
	n.next.Store(nil) // clears a reused stub's stale link from its last cycle
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Pop dequeues the oldest value. ok is false if the queue is empty, or if a
// producer is mid-enqueue (spec §4.3: "returns null rather than observing a
// torn chain" — the caller is expected to retry on the next buffer refill,
// not spin here).
//
// Only the single designated consumer (the channel's owning worker, or the
// epoch manager thread for the garbage queue) may call Pop.
func (q *Queue[T]) Pop() (v T, ok bool) {
	tail := q.tail
	next := tail.next.Load()

	if tail == &q.stub {
		if next == nil {
			return v, false // truly empty
		}
		q.tail = next
		tail = next
		next = next.next.Load()
	}

	if next != nil {
		q.tail = next
		return tail.value, true
	}

	head := q.head.Load()
	if tail != head {
		// A producer has claimed the head slot via Swap but hasn't linked
		// its predecessor's next yet — appears empty until it does.
		return v, false
	}

	// Chain exhausted and consistent: republish the stub itself so future
	// producers have somewhere to link, then retry once.
	q.pushNode(&q.stub)
	next = tail.next.Load()
	if next != nil {
		q.tail = next
		return tail.value, true
	}
	return v, false
}

// Empty reports whether Pop would currently return ok == false. It observes
// the same race window Pop does and should only be used for diagnostics,
// not correctness decisions.
func (q *Queue[T]) Empty() bool {
	return q.tail == &q.stub && q.tail.next.Load() == nil
}
