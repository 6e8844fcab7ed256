// Package relax provides the CPU spin-wait hint used by corelane's
// busy-wait loops: latch retry, OLFIT CAS retry, waiting out a locked
// version word before an optimistic read, and the allocators' refill/grow
// spins. The worker's own loop between buffer refills does not call it.
//
// This file covers amd64 via the PAUSE instruction.

//go:build amd64 && !noasm && !nocgo

package relax

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "This file requires x86-64 architecture"
#endif
*/
import "C"

// CPU emits the x86-64 PAUSE instruction, hinting the core that it is in a
// spin-wait so hyperthread siblings get more issue slots and power draw
// drops during contention.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func CPU() {
	C.cpu_pause()
}
