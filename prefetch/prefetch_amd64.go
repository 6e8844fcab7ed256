// Package prefetch issues the software prefetch hints the channel's ready
// task buffer relies on (spec §4.4): an L1-write prefetch for the task cell
// about to execute, and a cacheline-range prefetch for its annotated
// resource. Prefetch distance 0 simply means the channel buffer never calls
// Task or Range.
//
// amd64: PREFETCHW for the task cell (it will be written to almost
// immediately via TaskResult bookkeeping), PREFETCHT0 repeated across the
// resource's cacheline range.

//go:build amd64 && !noasm && !nocgo

package prefetch

/*
#include <stddef.h>

static inline void prefetch_t0(const void *p) {
    __asm__ __volatile__("prefetcht0 (%0)" :: "r"(p));
}

static inline void prefetch_w(const void *p) {
    __asm__ __volatile__("prefetchw (%0)" :: "r"(p));
}
*/
import "C"
import "unsafe"

const cacheLineSize = 64

// Task issues a write-intent prefetch (PREFETCHW) for a single task cell.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
func Task(p unsafe.Pointer) {
	if p == nil {
		return
	}
	C.prefetch_w(p)
}

// Range issues a prefetch for every cacheline covering [p, p+size).
//
//go:norace
//go:nocheckptr
//go:nosplit
func Range(p unsafe.Pointer, size uintptr) {
	if p == nil || size == 0 {
		return
	}
	base := uintptr(p)
	end := base + size
	for addr := base - (base % cacheLineSize); addr < end; addr += cacheLineSize {
		C.prefetch_t0(unsafe.Pointer(addr))
	}
}
