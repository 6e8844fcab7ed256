// Package epoch implements the epoch-based reclamation service from spec
// §4.5: a dedicated ticker thread advances a global epoch every 50ms; each
// worker publishes a local epoch snapshot before entering a read or a
// buffer refill; and a garbage queue holds logically-deleted resources
// until every worker's local epoch has moved past the epoch they were
// deleted at.
package epoch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldbrewlabs/corelane/mpsc"
	"github.com/coldbrewlabs/corelane/resource"
)

// TickInterval is the compile-time wall-clock tick (spec §4.5 "every
// 50 ms (compile-time constant)").
const TickInterval = 50 * time.Millisecond

// Infinity is the local-epoch sentinel meaning "idle" (spec §3 "Sentinel
// '∞' means idle").
const Infinity = ^uint64(0)

// Mode selects how workers publish their local epoch (spec §4.5).
type Mode uint8

const (
	// None disables reclamation. Unsafe to use with any optimistic
	// primitive — a deleted resource's memory may be reused while a
	// reader is still validating against it.
	None Mode = iota
	// UpdateEpochOnRead publishes the local epoch around every optimistic
	// read: EnterRead before, ExitRead after.
	UpdateEpochOnRead
	// UpdateEpochPeriodically publishes the local epoch once per buffer
	// refill via EnterPeriodic; the manager uses that coarser snapshot to
	// decide reclaim eligibility.
	UpdateEpochPeriodically
)

// Manager owns the global epoch, the per-worker local epochs, and the
// garbage queue(s) (spec §3 "Epoch state", §4.5).
type Manager struct {
	mode   Mode
	global atomic.Uint64
	local  []atomic.Uint64

	// perWorkerGarbage selects between the two queue topologies spec §4.5
	// names: "a per-worker MPSC garbage queue (local mode) or a single
	// global MPSC queue (default)." queues has one entry in global mode,
	// len(local) entries in per-worker mode.
	perWorkerGarbage bool
	queues           []*mpsc.Queue[*resource.Header]

	// tickInterval overrides TickInterval for this manager's tick thread
	// (spec §6 Config "EpochTickInterval"). Set by NewWithInterval; New
	// leaves it zero, meaning Start falls back to TickInterval.
	tickInterval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a manager for workerCount workers, ticking at the default
// TickInterval. perWorkerGarbage selects the local-mode garbage-queue
// topology; the default (false) is the single global queue spec §4.5 calls
// out as the default.
func New(workerCount int, mode Mode, perWorkerGarbage bool) *Manager {
	return NewWithInterval(workerCount, mode, perWorkerGarbage, TickInterval)
}

// NewWithInterval is New with an explicit tick interval, the mechanism
// behind Config.EpochTickInterval (spec §6): a caller-supplied interval of
// zero falls back to TickInterval rather than ticking in a busy loop.
func NewWithInterval(workerCount int, mode Mode, perWorkerGarbage bool, tickInterval time.Duration) *Manager {
	if tickInterval <= 0 {
		tickInterval = TickInterval
	}
	m := &Manager{
		mode:             mode,
		local:            make([]atomic.Uint64, workerCount),
		perWorkerGarbage: perWorkerGarbage,
		tickInterval:     tickInterval,
		stop:             make(chan struct{}),
	}
	for i := range m.local {
		m.local[i].Store(Infinity)
	}
	if perWorkerGarbage {
		m.queues = make([]*mpsc.Queue[*resource.Header], workerCount)
		for i := range m.queues {
			m.queues[i] = mpsc.New[*resource.Header]()
		}
	} else {
		m.queues = []*mpsc.Queue[*resource.Header]{mpsc.New[*resource.Header]()}
	}
	return m
}

// GlobalEpoch returns the current global epoch.
func (m *Manager) GlobalEpoch() uint64 { return m.global.Load() }

// EnterRead publishes the current global epoch as workerID's local epoch
// and returns the snapshot (UpdateEpochOnRead mode, spec §4.5 "enter/leave
// around every optimistic read").
func (m *Manager) EnterRead(workerID int) uint64 {
	snap := m.global.Load()
	m.local[workerID].Store(snap)
	return snap
}

// ExitRead publishes ∞ for workerID, meaning it is no longer inside an
// optimistic read (UpdateEpochOnRead mode).
func (m *Manager) ExitRead(workerID int) {
	m.local[workerID].Store(Infinity)
}

// EnterPeriodic publishes the current global epoch as workerID's local
// epoch without an exit (UpdateEpochPeriodically mode, spec §4.5 "enter on
// each buffer refill").
func (m *Manager) EnterPeriodic(workerID int) {
	m.local[workerID].Store(m.global.Load())
}

// Retire tags h with the current global epoch and pushes it onto the
// garbage queue workerID owns (or the single global queue in default
// mode), per spec §4.5 "Deletion".
func (m *Manager) Retire(workerID int, h *resource.Header) {
	h.RemoveEpoch = m.global.Load()
	h.Garbage = true
	m.queueFor(workerID).Push(h)
}

func (m *Manager) queueFor(workerID int) *mpsc.Queue[*resource.Header] {
	if m.perWorkerGarbage {
		return m.queues[workerID]
	}
	return m.queues[0]
}

// minLocalEpoch returns the minimum local epoch across all workers,
// treating ∞ (idle) as not constraining the minimum. If every worker is
// idle, reclamation may proceed up to the current global epoch.
func (m *Manager) minLocalEpoch() uint64 {
	min := m.global.Load()
	sawActive := false
	for i := range m.local {
		v := m.local[i].Load()
		if v == Infinity {
			continue
		}
		sawActive = true
		if v < min {
			min = v
		}
	}
	if !sawActive {
		return m.global.Load()
	}
	return min
}

// reclaimPass walks every garbage queue once. Items whose RemoveEpoch is
// strictly below the minimum local epoch are reclaimed; the rest are
// re-queued for the next pass (spec §4.5 "Deletion").
func (m *Manager) reclaimPass(unconditional bool) {
	min := m.minLocalEpoch()
	for _, q := range m.queues {
		var requeue []*resource.Header
		for {
			h, ok := q.Pop()
			if !ok {
				break
			}
			if unconditional || h.RemoveEpoch < min {
				if h.OnReclaim != nil {
					h.OnReclaim()
				}
			} else {
				requeue = append(requeue, h)
			}
		}
		for _, h := range requeue {
			q.Push(h)
		}
	}
}

// Start launches the tick thread. Stop must be called exactly once to join
// it.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.global.Add(1)
				m.reclaimPass(false)
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop joins the tick thread, then performs the unconditional final sweep
// spec §4.5 requires: "At shutdown, after workers joined, all remaining
// garbage is reclaimed unconditionally."
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
	m.reclaimPass(true)
}
