// Package resource implements the optimistic-capable object spec §3
// "Resource" describes: the thing a resptr.Ptr ultimately points at, and
// the synchronization state every primitive in the matrix dispatches
// through.
package resource

import (
	"unsafe"

	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/latch"
)

// Header is embedded at the front of every resource payload's allocation.
// The builder places it immediately before the user object and returns a
// resptr.Ptr to the address just past it; dynalloc recovers the block and
// node id from its own allocation header, which in turn sits immediately
// before Header.
//
// Header carries the synchronization state spec §3 lists: an exclusive
// spinlock, a reader/writer spinlock, an optimistic version word, and a
// remove epoch — so any primitive's dispatch path can reach the right lock
// without an extra indirection. It has no garbage-list link field: the
// epoch manager's garbage queues link headers through their own mpsc
// nodes, and Header only records the Garbage flag.
type Header struct {
	Exclusive latch.Exclusive
	RW        latch.ReaderWriter
	Version   latch.Optimistic

	// Frequency is the access-frequency class the resource was built with,
	// kept so Destroy can revoke the channel occupancy prediction Build
	// recorded (spec §3 "Channel occupancy" invariant).
	Frequency hint.Frequency

	// RemoveEpoch is the global epoch at the moment delete_resource queued
	// this header for reclamation. Valid only once Garbage is true.
	RemoveEpoch uint64
	Garbage     bool

	// OnReclaim is invoked by the epoch manager immediately before the
	// backing memory is returned to dynalloc (spec §4.5 "on_reclaim
	// invoked"). Nil means no destructor work is needed.
	OnReclaim func()
}

// PayloadOffset is the size of Header rounded up to 64 bytes, matching the
// allocator's 64-byte alignment guarantee for the object that follows it.
const PayloadOffset = (headerSize + 63) &^ 63

const headerSize = unsafe.Sizeof(Header{})

// HeaderOf recovers the Header for a payload address previously returned
// by PayloadOf (as builder.Build returns it).
func HeaderOf(payload unsafe.Pointer) *Header {
	return (*Header)(unsafe.Pointer(uintptr(payload) - PayloadOffset))
}

// PayloadOf returns the address of the object that follows h.
func (h *Header) PayloadOf() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + PayloadOffset)
}
