// Package globalheap is the NUMA-aware raw page source spec §2 lists as
// "GlobalHeap": the bottom of the allocator stack that dynalloc's blocks
// draw from. fixedalloc's processor-heap chunks are ordinary Go slices and
// do not come from here.
package globalheap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ChunkSize is a 16 MiB region size; dynalloc's default 256 MiB blocks
// (spec §4.2) are a small multiple of it. Alloc does not use it: each call
// maps exactly the size it is given.
const ChunkSize = 16 << 20 // 16 MiB

// Heap is the raw-page allocator for one NUMA node.
type Heap struct {
	NodeID int

	// system selects the use_system_allocator path corelane.Init exposes
	// (spec §6 "runtime::init(core_set, prefetch_distance,
	// use_system_allocator)"): Go-heap-backed regions instead of raw mmap.
	// Useful under sandboxes and test harnesses where anonymous mmap of
	// hundreds of megabytes per node is undesirable; NUMA placement hints
	// are necessarily skipped since there are no pages to bind.
	system bool
}

// Heaps returns one Heap per NUMA node, backed by anonymous mmap regions.
func Heaps(nodeCount int) []*Heap {
	heaps := make([]*Heap, nodeCount)
	for i := range heaps {
		heaps[i] = &Heap{NodeID: i}
	}
	return heaps
}

// HeapsSystem returns one Heap per NUMA node backed by the ordinary Go
// heap (spec §6's use_system_allocator=true path). No mbind/madvise hints
// are issued: the memory was never placed by the kernel's page allocator
// in the first place.
func HeapsSystem(nodeCount int) []*Heap {
	heaps := make([]*Heap, nodeCount)
	for i := range heaps {
		heaps[i] = &Heap{NodeID: i, system: true}
	}
	return heaps
}

// Alloc maps size bytes anonymously and, on Linux, hints the kernel toward
// this heap's NUMA node with mbind and toward transparent huge pages with
// madvise. Both hints are best-effort: a failure to bind or advise degrades
// to a plain anonymous mapping rather than failing the allocation — the
// runtime treats misplaced-but-present memory as acceptable, per spec §7
// ("allocation from the OS cannot fail in a recoverable way: the runtime
// aborts" refers to true OOM, not placement hints).
//
// In the use_system_allocator path the region is a plain make([]byte, size)
// instead: no syscalls, no NUMA placement, but usable anywhere Go runs.
func (h *Heap) Alloc(size int) ([]byte, error) {
	if h.system {
		return make([]byte, size), nil
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("globalheap: mmap %d bytes: %w", size, err)
	}
	adviseHugePage(mem)
	bindToNode(mem, h.NodeID)
	return mem, nil
}

// Free releases a region previously returned by Alloc.
func (h *Heap) Free(mem []byte) error {
	if h.system {
		return nil
	}
	return unix.Munmap(mem)
}
