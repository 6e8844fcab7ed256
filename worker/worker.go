// Package worker implements the per-core execution loop from spec §4.8:
// refill the channel's ready buffer, dispatch each task under its
// resource's synchronization primitive, route any successor back through
// the scheduler, and return removed task cells to their allocator.
package worker

import (
	"github.com/coldbrewlabs/corelane/channel"
	"github.com/coldbrewlabs/corelane/control"
	"github.com/coldbrewlabs/corelane/epoch"
	"github.com/coldbrewlabs/corelane/logcore"
	"github.com/coldbrewlabs/corelane/resource"
	"github.com/coldbrewlabs/corelane/resptr"
	"github.com/coldbrewlabs/corelane/scheduler"
	"github.com/coldbrewlabs/corelane/stats"
	"github.com/coldbrewlabs/corelane/task"
	"github.com/coldbrewlabs/corelane/taskstack"
)

// IdleObserver receives idle/busy transitions for idle-time profiling
// (spec §6 "Idle profile output format"). Worker accepts any type
// implementing it without importing the profiling package.
type IdleObserver interface {
	MarkBusy(channelID int)
	MarkIdle(channelID int)
}

// Worker owns one core's channel and drives its execution loop.
type Worker struct {
	coreID    uint32
	node      int
	ch        *channel.Channel
	sched     *scheduler.Scheduler
	epochMgr  *epoch.Manager
	epochMode epoch.Mode
	st        *stats.Registry
	stop      *control.Flag
	distance  int
	idle      IdleObserver

	stack taskstack.Stack
}

// New builds a worker for coreID, pinned to NUMA node, owning channel ch.
// idle may be nil to disable idle-time profiling.
func New(coreID uint32, node int, ch *channel.Channel, sched *scheduler.Scheduler, epochMgr *epoch.Manager, epochMode epoch.Mode, st *stats.Registry, stop *control.Flag, prefetchDistance int, idle IdleObserver) *Worker {
	return &Worker{
		coreID:    coreID,
		node:      node,
		ch:        ch,
		sched:     sched,
		epochMgr:  epochMgr,
		epochMode: epochMode,
		st:        st,
		stop:      stop,
		distance:  prefetchDistance,
		idle:      idle,
	}
}

// Run drives the loop until the shared control.Flag is stopped, then
// drains whatever remains in the ready buffer before returning (spec §7
// "each worker drains its ready buffer and exits; tasks still in backend
// queues are discarded").
func (w *Worker) Run() {
	for !w.stop.Stopped() {
		w.iterate()
	}
	w.drainReadyBuffer()
}

func (w *Worker) iterate() {
	if w.epochMode == epoch.UpdateEpochPeriodically {
		w.epochMgr.EnterPeriodic(int(w.coreID))
	}

	moved := w.ch.Fill()
	w.st.Add(stats.Fill, w.ch.ID(), int64(moved))

	for {
		if w.ch.BufferLen() <= w.distance {
			w.ch.Fill()
		}
		t, ok := w.ch.Next()
		if !ok {
			w.markIdle()
			return
		}
		w.markBusy()
		w.dispatch(t)
	}
}

func (w *Worker) drainReadyBuffer() {
	for {
		t, ok := w.ch.Next()
		if !ok {
			return
		}
		w.dispatch(t)
	}
}

func (w *Worker) markIdle() {
	if w.idle != nil {
		w.idle.MarkIdle(int(w.ch.ID()))
	}
}

func (w *Worker) markBusy() {
	if w.idle != nil {
		w.idle.MarkBusy(int(w.ch.ID()))
	}
}

func (w *Worker) dispatch(t task.Task) {
	ann := t.Annotation()

	var res task.Result
	if ann.Kind == task.AnnotationResource {
		res = w.dispatchResource(t, ann)
	} else {
		res = w.execCounted(t)
	}

	if res.Successor != nil {
		if err := w.sched.Spawn(res.Successor, w.ch.ID(), w.node); err != nil {
			logcore.Warn("worker", "dropped spawned successor: "+err.Error())
		}
	}
	if res.RemoveSelf {
		t.Release(w.coreID)
	}
}

func (w *Worker) execCounted(t task.Task) task.Result {
	res := t.Execute(w.coreID, w.ch.ID())
	w.st.Add(stats.Executed, w.ch.ID(), 1)
	if t.IsReadonly() {
		w.st.Add(stats.ExecutedReader, w.ch.ID(), 1)
	} else {
		w.st.Add(stats.ExecutedWriter, w.ch.ID(), 1)
	}
	return res
}

// dispatchResource picks the synchronization path named by the task's
// resource primitive (spec §4.8 step "Dispatch on the task's resource
// primitive").
func (w *Worker) dispatchResource(t task.Task, ann task.Annotation) task.Result {
	hdr := resource.HeaderOf(ann.Resource.Address())

	switch ann.Resource.Primitive() {
	case resptr.None, resptr.ScheduleAll:
		// Correct only because the scheduler has already guaranteed every
		// such task reaches the resource's home worker (spec §4.9).
		return w.execCounted(t)

	case resptr.ExclusiveLatch:
		hdr.Exclusive.Lock()
		defer hdr.Exclusive.Unlock()
		return w.execCounted(t)

	case resptr.ReaderWriterLatch:
		if t.IsReadonly() {
			hdr.RW.RLock()
			defer hdr.RW.RUnlock()
		} else {
			hdr.RW.Lock()
			defer hdr.RW.Unlock()
		}
		return w.execCounted(t)

	case resptr.ScheduleWriter:
		return w.dispatchOptimistic(t, ann, hdr, false)

	case resptr.OLFIT:
		return w.dispatchOptimistic(t, ann, hdr, true)

	default:
		logcore.Fatal("worker", "task annotated with an unrecognized resource primitive")
		return task.Result{}
	}
}

// dispatchOptimistic implements the ScheduleWriter/OLFIT split (spec
// §4.8): casWriter selects CAS-guarded (OLFIT) vs. plain-add (ScheduleWriter)
// version transitions on the writer path; the reader path is identical
// between the two primitives.
func (w *Worker) dispatchOptimistic(t task.Task, ann task.Annotation, hdr *resource.Header, casWriter bool) task.Result {
	if !t.IsReadonly() {
		if casWriter {
			hdr.Version.BeginWriteCAS()
			defer hdr.Version.EndWriteCAS()
		} else {
			hdr.Version.BeginWriteSingleWriter()
			defer hdr.Version.EndWriteSingleWriter()
		}
		return w.execCounted(t)
	}

	if ann.Resource.Channel() == w.ch.ID() {
		// Already on the home channel: no version check is run, for either
		// primitive (spec §4.8 "no synchronization is needed"). Under
		// ScheduleWriter every writer runs on this channel too; OLFIT
		// writers may run on other workers.
		return w.execCounted(t)
	}
	return w.dispatchOptimisticReader(t, hdr)
}

func (w *Worker) dispatchOptimisticReader(t task.Task, hdr *resource.Header) task.Result {
	for {
		if w.epochMode == epoch.UpdateEpochOnRead {
			w.epochMgr.EnterRead(int(w.coreID))
		}

		w.stack.Push(t)
		snap := hdr.Version.Read()
		res := w.execCounted(t)
		valid := hdr.Version.Validate(snap)

		if w.epochMode == epoch.UpdateEpochOnRead {
			w.epochMgr.ExitRead(int(w.coreID))
		}

		if valid {
			return res
		}
		w.stack.Pop(t)
	}
}
