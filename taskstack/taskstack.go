// Package taskstack implements the per-worker save/restore buffer the
// optimistic-read retry path needs (spec §4.8 "Task state save/restore on
// optimistic read uses a per-worker TaskStack sized to the task cell").
//
// Task cells are arbitrary caller-defined struct types behind the task.Task
// interface, so there is no single concrete type to memcpy by size the way
// the teacher's byte-oriented buffers do; Stack instead captures a
// reflect-level copy of the cell's current field values and writes them
// back verbatim on Restore. This is the idiomatic-Go reading of the
// literal SSE2 byte-copy the spec describes — see DESIGN.md.
package taskstack

import (
	"reflect"

	"github.com/coldbrewlabs/corelane/task"
)

// Snapshot is an opaque copy of a task's field values at the moment of
// Save.
type Snapshot struct {
	val reflect.Value
}

// Save captures t's current state.
func Save(t task.Task) Snapshot {
	v := reflect.ValueOf(t).Elem()
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return Snapshot{val: cp}
}

// Restore overwrites t's fields with s, undoing any mutation Execute made
// since Save. t must be the same concrete type Save captured.
func Restore(t task.Task, s Snapshot) {
	reflect.ValueOf(t).Elem().Set(s.val)
}

// Stack is a single-slot, per-worker save buffer: a worker never nests
// optimistic retries, so one slot is always enough.
type Stack struct {
	snap Snapshot
	has  bool
}

// Push captures t's state.
func (s *Stack) Push(t task.Task) {
	s.snap = Save(t)
	s.has = true
}

// Pop restores the most recently pushed state onto t and clears the slot.
func (s *Stack) Pop(t task.Task) {
	if !s.has {
		return
	}
	Restore(t, s.snap)
	s.has = false
}
