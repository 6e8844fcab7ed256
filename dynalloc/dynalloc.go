// Package dynalloc implements the dynamic-size resource allocator from
// spec §4.2: a per-NUMA-node list of blocks, each with an address-ordered
// free list that's searched end-to-start and coalesced on free.
//
// Unlike fixedalloc, dynalloc only ever returns unsafe.Pointer: the runtime
// never needs Go's garbage collector to trace into a resource's bytes (a
// resource is manipulated purely through resptr.Ptr and the synchronization
// primitives in package latch), so its blocks are free to live on raw
// globalheap-backed memory.
package dynalloc

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/coldbrewlabs/corelane/globalheap"
	"github.com/coldbrewlabs/corelane/relax"
)

// ErrOOM is returned when the OS itself cannot satisfy a new block
// request — the one OOM path spec §7 allows to surface as an error instead
// of aborting, since it originates outside the runtime's own bookkeeping.
var ErrOOM = errors.New("dynalloc: out of memory")

// DefaultBlockSize is a block's size absent a larger request (spec §4.2
// "default 256 MiB").
const DefaultBlockSize = 256 << 20

const minFreeRemainder = 256 // spec §4.2 step 2: "remaining free bytes ≥ 256"

// AllocatedHeader sits immediately before every allocation dynalloc hands
// out (spec §4.2 step 3).
type AllocatedHeader struct {
	Size          uintptr
	UnusedBefore  uintptr
	NodeID        uint32
	BlockID       uint32
}

const headerSize = unsafe.Sizeof(AllocatedHeader{})

// freeHeader is one entry in a block's address-ordered free list.
type freeHeader struct {
	start uintptr
	size  uintptr
	prev  *freeHeader
	next  *freeHeader
}

// Block is one contiguous raw region owned by a NUMA node, plus its
// address-ordered free list (spec §4.2 "Vec<AllocationBlock>").
type Block struct {
	id     uint32
	nodeID uint32
	mem    []byte
	base   uintptr

	mu    sync.Mutex // spec §4.2 "each block has a spinlock" — sync.Mutex is the idiomatic Go reading
	freeHead *freeHeader
}

func newBlock(nodeID uint32, id uint32, mem []byte) *Block {
	b := &Block{id: id, nodeID: nodeID, mem: mem, base: uintptr(unsafe.Pointer(&mem[0]))}
	b.freeHead = &freeHeader{start: b.base, size: uintptr(len(mem))}
	return b
}

// IsFree reports whether the block has a single free header covering its
// entire extent (spec §4.2 "A block with a single free header covering its
// entire extent is is_free()").
func (b *Block) IsFree() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freeHead != nil && b.freeHead.next == nil &&
		b.freeHead.start == b.base && b.freeHead.size == uintptr(len(b.mem))
}

// tryAllocate searches the free list end-to-start for a header large
// enough, aligning the allocation to the header's end (spec §4.2 step 1).
func (b *Block) tryAllocate(size, alignment uintptr) (unsafe.Pointer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// "end-to-start": walk to the tail of the list first.
	tail := b.freeHead
	for tail != nil && tail.next != nil {
		tail = tail.next
	}

	for f := tail; f != nil; f = f.prev {
		if f.size < size+headerSize {
			continue // too small even before alignment loss; avoids uintptr underflow below
		}
		end := f.start + f.size
		allocStart := alignDown(end-size, alignment)
		allocEnd := allocStart + size
		if allocStart < f.start || allocEnd > end {
			continue // doesn't fit once aligned
		}
		headerAddr := allocStart - headerSize
		if headerAddr < f.start {
			continue // no room for the header ahead of the aligned payload
		}

		leadingGap := headerAddr - f.start
		var unusedBefore uintptr
		if leadingGap >= minFreeRemainder {
			// Big enough to stay its own free header; this allocation
			// owns none of it.
			f.size = leadingGap
		} else {
			// Too small to track separately; fold it into this
			// allocation's bookkeeping instead of leaking it.
			b.removeFree(f)
			unusedBefore = leadingGap
		}

		// alignDown(end-size, alignment) can land short of end when size
		// isn't itself a multiple of alignment, stranding end-allocEnd
		// bytes with no next free header to absorb them. There's nowhere
		// else to put that slack, so it's folded into this allocation's
		// own tracked size instead of leaking: free recomputes start/size
		// purely from the header, so whatever span Size claims here is
		// exactly what comes back on free (spec §4.2 step 1, "aligned
		// size including header is recomputed").
		trailingGap := end - allocEnd

		hdr := (*AllocatedHeader)(unsafe.Pointer(headerAddr))
		*hdr = AllocatedHeader{
			Size:         size + trailingGap,
			UnusedBefore: unusedBefore,
			NodeID:       b.nodeID,
			BlockID:      b.id,
		}
		return unsafe.Pointer(allocStart), true
	}
	return nil, false
}

func (b *Block) removeFree(f *freeHeader) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		b.freeHead = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	}
}

// free inserts a free header at ptr's logical position and coalesces with
// touching neighbors on either side (spec §4.2 "free" steps 1-2).
func (b *Block) free(hdr *AllocatedHeader, ptr unsafe.Pointer) {
	start := uintptr(ptr) - hdr.UnusedBefore - headerSize
	size := hdr.Size + headerSize + hdr.UnusedBefore

	b.mu.Lock()
	defer b.mu.Unlock()

	nf := &freeHeader{start: start, size: size}

	var prev, cur *freeHeader
	for cur = b.freeHead; cur != nil && cur.start < nf.start; cur = cur.next {
		prev = cur
	}
	nf.prev, nf.next = prev, cur
	if prev != nil {
		prev.next = nf
	} else {
		b.freeHead = nf
	}
	if cur != nil {
		cur.prev = nf
	}

	// Coalesce with the following neighbor first so the start-side merge
	// below sees nf's true, possibly-extended size.
	if nf.next != nil && nf.start+nf.size == nf.next.start {
		nf.size += nf.next.size
		nf.next = nf.next.next
		if nf.next != nil {
			nf.next.prev = nf
		}
	}
	if nf.prev != nil && nf.prev.start+nf.prev.size == nf.start {
		nf.prev.size += nf.size
		nf.prev.next = nf.next
		if nf.next != nil {
			nf.next.prev = nf.prev
		}
	}
}

func alignDown(p, alignment uintptr) uintptr {
	return p &^ (alignment - 1)
}

// Allocator is the top-level dynamic allocator: one list of blocks per
// NUMA node, grown on demand.
type Allocator struct {
	heaps  []*globalheap.Heap
	nodes  []*nodeState
}

type nodeState struct {
	mu           sync.Mutex
	blocks       []*Block
	nextBlockID  uint32
	allocatingCAS atomic.Bool
}

// New returns an allocator with one empty node list per entry in heaps.
func New(heaps []*globalheap.Heap) *Allocator {
	a := &Allocator{heaps: heaps, nodes: make([]*nodeState, len(heaps))}
	for i := range a.nodes {
		a.nodes[i] = &nodeState{}
	}
	return a
}

// Allocate returns size bytes aligned to alignment on the given NUMA node.
// On exhaustion it grows the node with a new block sized
// max(DefaultBlockSize, round_up(size+header+alignment, 64)), large enough
// to hold the request with its AllocatedHeader, and retries, per spec §4.2
// "Fail semantics" — the CAS on allocatingCAS means only one goroutine
// grows the node at a time; the rest spin until it clears.
func (a *Allocator) Allocate(node int, size, alignment uintptr) (unsafe.Pointer, error) {
	ns := a.nodes[node]
	for {
		ns.mu.Lock()
		blocks := ns.blocks
		ns.mu.Unlock()

		for _, b := range blocks {
			if ptr, ok := b.tryAllocate(size, alignment); ok {
				return ptr, nil
			}
		}

		if !ns.allocatingCAS.CompareAndSwap(false, true) {
			for ns.allocatingCAS.Load() {
				relax.CPU()
			}
			continue
		}

		grown, err := a.growNode(node, ns, size+headerSize+alignment)
		ns.allocatingCAS.Store(false)
		if err != nil {
			return nil, err
		}
		if !grown {
			continue
		}
		// Loop back around; the new block is now in ns.blocks.
	}
}

func (a *Allocator) growNode(node int, ns *nodeState, requestedSize uintptr) (bool, error) {
	blockSize := uintptr(DefaultBlockSize)
	if need := roundUp(requestedSize, 64); need > blockSize {
		blockSize = need
	}
	mem, err := a.heaps[node].Alloc(int(blockSize))
	if err != nil {
		return false, ErrOOM
	}
	ns.mu.Lock()
	b := newBlock(uint32(node), ns.nextBlockID, mem)
	ns.nextBlockID++
	ns.blocks = append(ns.blocks, b)
	ns.mu.Unlock()
	return true, nil
}

// Free recovers the owning block and node from the allocation header
// immediately before ptr and returns the memory to that block's free list
// (spec §4.2 "free" step 1).
func (a *Allocator) Free(ptr unsafe.Pointer) {
	hdr := (*AllocatedHeader)(unsafe.Pointer(uintptr(ptr) - headerSize))
	ns := a.nodes[hdr.NodeID]
	ns.mu.Lock()
	var blk *Block
	for _, b := range ns.blocks {
		if b.id == hdr.BlockID {
			blk = b
			break
		}
	}
	ns.mu.Unlock()
	if blk == nil {
		return
	}
	blk.free(hdr, ptr)
}

// Defragment removes every is_free() block on the given node, keeping at
// least one block if the node has any (spec §4.2 "defragment() removes
// such blocks and rebuilds a minimum per node").
func (a *Allocator) Defragment(node int) {
	ns := a.nodes[node]
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if len(ns.blocks) <= 1 {
		return
	}
	kept := ns.blocks[:0:0]
	for _, b := range ns.blocks {
		if !b.IsFree() {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, ns.blocks[0])
	}
	ns.blocks = kept
}

func roundUp(v, multiple uintptr) uintptr {
	return (v + multiple - 1) &^ (multiple - 1)
}
