// Package latch implements the three blocking/optimistic synchronization
// primitives spec §4.6 builds the selection matrix around: an exclusive
// spinlock, a reader/writer spinlock, and an optimistic version lock. None
// of them park a goroutine — spec §5 "Suspension points" only allows
// spinning at these exact points, never a blocking OS wait, so every loop
// below backs off with relax.CPU between attempts the way the teacher's
// ring24 consumer does.
package latch

import (
	"sync/atomic"

	"github.com/coldbrewlabs/corelane/relax"
)

// Exclusive is a TTAS spinlock guarding ExclusiveLatch resources (spec
// §4.6 primitive 5).
type Exclusive struct {
	state atomic.Uint32
}

func (l *Exclusive) Lock() {
	for {
		if l.state.CompareAndSwap(0, 1) {
			return
		}
		for l.state.Load() != 0 {
			relax.CPU()
		}
	}
}

func (l *Exclusive) Unlock() {
	l.state.Store(0)
}

// ReaderWriter is the R/W spinlock behind ReaderWriterLatch (spec §4.6
// primitive 6): readers share, writers exclude. The writer bit is the low
// bit of the counter; reader count occupies the remaining bits, mirroring
// the classic "biased reader count" spinlock shape.
type ReaderWriter struct {
	state atomic.Uint32 // bit 0: writer held; bits 1..: active reader count << 1
}

const rwWriterBit = 1

func (l *ReaderWriter) RLock() {
	for {
		s := l.state.Load()
		if s&rwWriterBit != 0 {
			relax.CPU()
			continue
		}
		if l.state.CompareAndSwap(s, s+2) {
			return
		}
	}
}

func (l *ReaderWriter) RUnlock() {
	l.state.Add(^uint32(1)) // -2
}

func (l *ReaderWriter) Lock() {
	for {
		s := l.state.Load()
		if s != 0 {
			relax.CPU()
			continue
		}
		if l.state.CompareAndSwap(0, rwWriterBit) {
			return
		}
	}
}

func (l *ReaderWriter) Unlock() {
	l.state.Store(0)
}

// Optimistic is the version word behind ScheduleWriter and OLFIT (spec §3
// "Resource": "a 32-bit version word (locked when bit 1 is set)"). Writers
// under ScheduleWriter own the resource's home channel exclusively, so they
// may add 2 without a CAS (spec §5 "Memory model requirements"); writers
// under OLFIT may run on any worker and must CAS.
type Optimistic struct {
	version atomic.Uint32
}

// BeginWriteSingleWriter is the ScheduleWriter writer path: the caller is
// guaranteed to be the only writer (it runs on the resource's home
// channel), so a plain add is sufficient to both mark the resource busy
// (odd version) and bump it past any concurrent readers' stale snapshot.
func (l *Optimistic) BeginWriteSingleWriter() {
	l.version.Add(1)
}

func (l *Optimistic) EndWriteSingleWriter() {
	l.version.Add(1)
}

// BeginWriteCAS is the OLFIT writer path: any worker may write, so the
// transition from an even (unlocked) version to the next odd (locked) one
// must be CAS-guarded.
func (l *Optimistic) BeginWriteCAS() {
	for {
		v := l.version.Load()
		if v&1 != 0 {
			relax.CPU()
			continue
		}
		if l.version.CompareAndSwap(v, v+1) {
			return
		}
	}
}

func (l *Optimistic) EndWriteCAS() {
	l.version.Add(1)
}

// Read returns the current version. Spin here (spec §5 "Suspension
// points") until it is even: an odd version means a writer is mid-update
// and the snapshot would be torn.
func (l *Optimistic) Read() uint32 {
	for {
		v := l.version.Load()
		if v&1 == 0 {
			return v
		}
		relax.CPU()
	}
}

// Validate reports whether the version is unchanged since a prior Read,
// meaning the read that happened in between observed a consistent
// snapshot (spec §8 property 4).
func (l *Optimistic) Validate(snapshot uint32) bool {
	return l.version.Load() == snapshot
}
