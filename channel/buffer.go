// Package channel implements the per-worker channel and its ready task
// buffer from spec §4.4: a channel owns two priority levels, each backed by
// one spsc.Queue and one mpsc.Queue per NUMA node, plus a ready task buffer
// of capacity B that the owning worker drains via Fill/Next.
package channel

import (
	"reflect"
	"unsafe"

	"github.com/coldbrewlabs/corelane/prefetch"
	"github.com/coldbrewlabs/corelane/ringbuf"
	"github.com/coldbrewlabs/corelane/task"
)

// Buffer is the power-of-two ready task buffer (spec §3 "Task buffer", §4.4).
// Its task slots are a ringbuf.Ring[task.Task]; Buffer itself only adds the
// second parallel array of prefetch records ringbuf.Ring has no concept
// of: when a task is written at position tail, a record for it is placed
// at tail−D so the dispatcher fires its prefetch D slots before the task
// itself is popped.
type Buffer struct {
	ring     *ringbuf.Ring[task.Task]
	prefetch []task.Task
	distance int
}

// NewBuffer returns an empty buffer of the given capacity (must be a
// positive power of two) and prefetch distance (0 disables prefetching,
// spec §4.4 "D (0 disables prefetching)").
func NewBuffer(capacity, distance int) *Buffer {
	if distance < 0 || distance >= capacity {
		panic("channel: prefetch distance must be in [0, capacity)")
	}
	return &Buffer{
		ring:     ringbuf.New[task.Task](capacity),
		prefetch: make([]task.Task, capacity),
		distance: distance,
	}
}

// Push appends t to the tail. It reports false without modifying the
// buffer if the buffer is already full.
//
// When distance > 0 and the buffer already holds at least distance tasks,
// it also writes a prefetch record for t at tail−D (mod B), so that when
// the dispatcher later reaches that earlier slot it fires t's prefetch D
// slots ahead of t's own dispatch (spec §4.4 "Enqueue path on producer").
// Below that threshold the target slot doesn't yet hold a live task, so the
// record is suppressed (spec §4.4 "size − (D − pending) < 0").
func (b *Buffer) Push(t task.Task) bool {
	lenBefore := b.ring.Len()
	tailBefore := b.ring.Tail()
	if !b.ring.Push(t) {
		return false
	}
	if b.distance > 0 && lenBefore >= b.distance {
		recPos := (tailBefore - uint64(b.distance)) & b.ring.Mask()
		b.prefetch[recPos] = t
	}
	return true
}

// Next pops the task at head and fires the prefetch record left at that
// slot, if any (spec §4.4 "Dispatch (next)"). ok is false if the buffer is
// empty.
func (b *Buffer) Next() (task.Task, bool) {
	pos := b.ring.Head() & b.ring.Mask()
	t, ok := b.ring.Pop()
	if !ok {
		return nil, false
	}
	rec := b.prefetch[pos]
	b.prefetch[pos] = nil
	if rec != nil {
		touch(rec)
	}
	return t, true
}

// touch fires the L1-write prefetch for the task cell itself and the
// cacheline-range prefetch for its annotated resource, if any.
func touch(t task.Task) {
	if p := taskCellPointer(t); p != nil {
		prefetch.Task(p)
	}
	ann := t.Annotation()
	if ann.Kind == task.AnnotationResource && ann.PrefetchSize > 0 {
		prefetch.Range(ann.Resource.Address(), uintptr(ann.PrefetchSize))
	}
}

// taskCellPointer recovers the underlying pointer a task.Task interface
// wraps. Every concrete task type embeds task.Base, whose methods have
// pointer receivers, so any value satisfying Task is itself a pointer.
func taskCellPointer(t task.Task) unsafe.Pointer {
	v := reflect.ValueOf(t)
	if v.Kind() != reflect.Ptr {
		return nil
	}
	return unsafe.Pointer(v.Pointer())
}

// Len returns the number of occupied slots.
func (b *Buffer) Len() int { return b.ring.Len() }

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int { return b.ring.Cap() }

// Full reports whether the buffer has no free slots.
func (b *Buffer) Full() bool { return b.ring.Full() }

// Empty reports whether the buffer has no occupied slots.
func (b *Buffer) Empty() bool { return b.ring.Empty() }
