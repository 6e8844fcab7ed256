// Package spsc implements the per-(worker, priority) single-producer,
// single-consumer task queue from spec §4.3: an ordered FIFO of tasks where
// the owning worker is both the only producer and the only consumer. Because
// both roles run on the same goroutine, sequentially, the queue needs no
// synchronization at all — that is the entire point of keeping it separate
// from mpsc.Queue.
package spsc

import "github.com/coldbrewlabs/corelane/task"

// Queue is an intrusive singly-linked FIFO built on task.Task's own Next
// link, so enqueue and dequeue never allocate a queue node.
type Queue struct {
	head task.Task
	tail task.Task
	n    int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push appends t to the tail. t must not already be linked into another
// queue (spec §9: a task's next link belongs to exactly one queue at a
// time).
func (q *Queue) Push(t task.Task) {
	t.SetNext(nil)
	if q.tail == nil {
		q.head, q.tail = t, t
	} else {
		q.tail.SetNext(t)
		q.tail = t
	}
	q.n++
}

// Pop removes and returns the head task, or nil if the queue is empty.
func (q *Queue) Pop() task.Task {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.Next()
	if q.head == nil {
		q.tail = nil
	}
	t.SetNext(nil)
	q.n--
	return t
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return q.n }

// Empty reports whether the queue has no queued tasks.
func (q *Queue) Empty() bool { return q.head == nil }
