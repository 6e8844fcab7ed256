// Package fixedalloc implements the fixed-size task allocator from spec
// §4.1: a per-NUMA processor heap of bump-indexed chunks feeding per-core
// LIFO free lists, so allocate/free on the hot path never contends.
//
// Unlike dynalloc, which only ever hands out unsafe.Pointer to raw bytes,
// fixedalloc's cells hold live Go values of the caller's task type — see
// DESIGN.md for why its chunks are backed by ordinary Go-managed slices
// rather than globalheap's raw mmap regions.
package fixedalloc

import (
	"sync/atomic"

	"github.com/coldbrewlabs/corelane/logcore"
	"github.com/coldbrewlabs/corelane/relax"
	"github.com/coldbrewlabs/corelane/task"
)

// ChunkCells is the number of cells per chunk. MaxChunksPerHeap is the K
// from spec §4.1 ("buffers up to K (=128) large chunks"); together they
// bound one NUMA node's task-cell capacity.
const (
	ChunkCells       = 16384
	MaxChunksPerHeap = 128
)

type chunk[T any] struct {
	cells []T
	bump  atomic.Uint32
}

// ProcessorHeap is the per-NUMA-node chunk source (spec §4.1 "processor
// heap"). The zero value is not usable; use NewProcessorHeap.
type ProcessorHeap[T any] struct {
	current      atomic.Pointer[chunk[T]]
	refilling    atomic.Bool
	chunksIssued atomic.Int32
}

// NewProcessorHeap returns a processor heap with its first chunk already
// allocated.
func NewProcessorHeap[T any]() *ProcessorHeap[T] {
	h := &ProcessorHeap[T]{}
	h.current.Store(h.newChunk())
	return h
}

func (h *ProcessorHeap[T]) newChunk() *chunk[T] {
	n := h.chunksIssued.Add(1)
	if n > MaxChunksPerHeap {
		logcore.Fatal("fixedalloc", "processor heap exhausted its compile-time chunk budget")
	}
	return &chunk[T]{cells: make([]T, ChunkCells)}
}

// allocate hands out the next cell, refilling the active chunk when it is
// exhausted. One thread wins the CAS on refilling and republishes a fresh
// chunk; losers spin on the flag (spec §4.1 "losers spin on the flag").
func (h *ProcessorHeap[T]) allocate() *T {
	for {
		c := h.current.Load()
		idx := c.bump.Add(1) - 1
		if idx < uint32(len(c.cells)) {
			return &c.cells[idx]
		}
		h.refill(c)
	}
}

func (h *ProcessorHeap[T]) refill(exhausted *chunk[T]) {
	if !h.refilling.CompareAndSwap(false, true) {
		for h.current.Load() == exhausted {
			relax.CPU()
		}
		return
	}
	defer h.refilling.Store(false)
	if h.current.Load() != exhausted {
		return // another goroutine already refilled between our load and CAS
	}
	h.current.Store(h.newChunk())
}

// CoreHeap is the per-worker LIFO free list cut from processor-heap chunks
// (spec §4.1 "core heap"). Touched only by its owning worker, so it needs
// no synchronization — Pool.Free pushes onto the calling core's CoreHeap,
// so a cell freed by a foreign core joins that core's free list, not the
// allocating core's.
type CoreHeap[T any] struct {
	free []*T
}

func (c *CoreHeap[T]) push(p *T) { c.free = append(c.free, p) }

func (c *CoreHeap[T]) pop() (*T, bool) {
	n := len(c.free)
	if n == 0 {
		return nil, false
	}
	p := c.free[n-1]
	c.free = c.free[:n-1]
	return p, true
}

// Pool is the full fixed-size allocator: one ProcessorHeap per NUMA node
// feeding one CoreHeap per core.
type Pool[T any] struct {
	processor []*ProcessorHeap[T]
	cores     []*CoreHeap[T]
	coreNode  []int
}

// NewPool builds a pool for a runtime with the given number of cores, where
// coreNode[i] is the NUMA node core i belongs to.
func NewPool[T any](coreNode []int, nodeCount int) *Pool[T] {
	p := &Pool[T]{
		processor: make([]*ProcessorHeap[T], nodeCount),
		cores:     make([]*CoreHeap[T], len(coreNode)),
		coreNode:  append([]int(nil), coreNode...),
	}
	for i := range p.processor {
		p.processor[i] = NewProcessorHeap[T]()
	}
	for i := range p.cores {
		p.cores[i] = &CoreHeap[T]{}
	}
	return p
}

// Allocate returns a pointer to a zeroed T, 64-byte-aligned in spirit (the
// Go allocator doesn't expose per-slice alignment control, so this is the
// idiomatic-Go reading of spec §4.1's alignment contract: correctness, not
// the literal byte guarantee, is what callers depend on). It never fails
// unless the compile-time chunk budget is exhausted, in which case it
// aborts, per spec §7.
func (p *Pool[T]) Allocate(coreID int) *T {
	if cell, ok := p.cores[coreID].pop(); ok {
		var zero T
		*cell = zero
		return cell
	}
	return p.processor[p.coreNode[coreID]].allocate()
}

// Free returns ptr to coreID's free list. Freeing from a different core
// than the one that allocated it is legal (spec §4.1 "free(foreign_core_id,
// ptr) is legal").
func (p *Pool[T]) Free(coreID int, ptr *T) {
	p.cores[coreID].push(ptr)
}

// cellReleaser adapts a Pool[T] cell to task.Releaser, so the worker loop
// can return a task cell to its allocator without knowing T.
type cellReleaser[T any] struct {
	pool *Pool[T]
	cell *T
}

func (r *cellReleaser[T]) Release(coreID uint32) {
	r.pool.Free(int(coreID), r.cell)
}

// Releaser returns a task.Releaser for cell, suitable for
// task.Base.SetReleaser. corelane.NewTask calls this immediately after
// Allocate.
func (p *Pool[T]) Releaser(cell *T) task.Releaser {
	return &cellReleaser[T]{pool: p, cell: cell}
}
