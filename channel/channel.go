package channel

import (
	"sync/atomic"

	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/mpmc"
	"github.com/coldbrewlabs/corelane/mpsc"
	"github.com/coldbrewlabs/corelane/spsc"
	"github.com/coldbrewlabs/corelane/task"
)

// DefaultBufferCapacity is B's default (spec §4.4 "capacity B (default 64)").
const DefaultBufferCapacity = 64

// ExternalInboxCapacity bounds the external submission inbox (see
// PushExternal): callers outside the worker pool — typically a setup phase
// seeding the task graph before StartAndWait, or diagnostic code polling
// from another goroutine — have no single-producer guarantee to offer the
// SPSC queue and no NUMA-local producer to key an MPSC queue by, so they
// go through this bounded general-purpose queue instead (spec §4.3 "Bounded
// MPMC queue... used by utility code").
const ExternalInboxCapacity = 1024

// priorityQueues is the queue set for one of a channel's two priority
// levels: one SPSC queue (owning worker only) and one MPSC queue per NUMA
// node (spec §4.4 "per level it owns one SPSC queue and one MPSC queue per
// NUMA node").
type priorityQueues struct {
	spsc *spsc.Queue
	mpsc []*mpsc.Queue[task.Task]
}

func newPriorityQueues(nodeCount int) priorityQueues {
	pq := priorityQueues{
		spsc: spsc.New(),
		mpsc: make([]*mpsc.Queue[task.Task], nodeCount),
	}
	for i := range pq.mpsc {
		pq.mpsc[i] = mpsc.New[task.Task]()
	}
	return pq
}

// Channel is a single worker's channel: its own SPSC/MPSC queue set at both
// priority levels, and the ready task buffer it drains into (spec §4.4).
type Channel struct {
	id        uint32
	ownerNode int
	nodeCount int
	normal    priorityQueues
	low       priorityQueues
	buffer    *Buffer
	external  *mpmc.Queue[task.Task]

	// occupancy is the per-frequency-class prediction counter array spec
	// §3 "Channel occupancy" describes; the builder predicts on placement
	// and revokes on destroy. It is consumed only by
	// builder.selectChannel, to steer a new resource away from a channel
	// already predicting an excessive resource — the matrix never reads
	// it; matrix.Select resolves the Exclusive row from frequency alone.
	occupancy [4]atomic.Int64
}

// New returns a channel with the given id, owning worker's NUMA node, and
// total NUMA node count, using the default buffer capacity and the given
// prefetch distance.
func New(id uint32, ownerNode, nodeCount int, prefetchDistance int) *Channel {
	return NewSized(id, ownerNode, nodeCount, DefaultBufferCapacity, prefetchDistance)
}

// NewSized is New with an explicit ready-buffer capacity, for callers
// honoring a validated corelane.Config.TaskBufferSize rather than the
// default.
func NewSized(id uint32, ownerNode, nodeCount, bufferCapacity, prefetchDistance int) *Channel {
	return &Channel{
		id:        id,
		ownerNode: ownerNode,
		nodeCount: nodeCount,
		normal:    newPriorityQueues(nodeCount),
		low:       newPriorityQueues(nodeCount),
		buffer:    NewBuffer(bufferCapacity, prefetchDistance),
		external:  mpmc.New[task.Task](ExternalInboxCapacity),
	}
}

// PushExternal enqueues t on the bounded external inbox, safe for any
// number of concurrent callers that are not the owning worker itself. It
// reports false if the inbox is full. Fill drains it alongside the
// worker's own queues (see Fill).
func (c *Channel) PushExternal(t task.Task) bool {
	return c.external.Push(t)
}

// ID returns the channel's id (its home-channel routing target).
func (c *Channel) ID() uint32 { return c.id }

// OwnerNode returns the NUMA node the channel's owning worker runs on.
func (c *Channel) OwnerNode() int { return c.ownerNode }

// PushLocal enqueues t on this channel's own SPSC queue, selecting the
// priority level from t.Priority(). Callers must be the channel's owning
// worker — spsc.Queue has no synchronization (spec §4.9 "keep local").
func (c *Channel) PushLocal(t task.Task) {
	c.queuesFor(t.Priority()).spsc.Push(t)
}

// PushRemote enqueues t on this channel's MPSC queue for producerNode,
// selecting the priority level from t.Priority(). Safe from any worker
// (spec §4.9 "push to H's MPSC queue for current's NUMA node").
func (c *Channel) PushRemote(producerNode int, t task.Task) {
	c.queuesFor(t.Priority()).mpsc[producerNode].Push(t)
}

func (c *Channel) queuesFor(p task.Priority) *priorityQueues {
	if p == task.PriorityLow {
		return &c.low
	}
	return &c.normal
}

// Fill drains queued tasks into the ready buffer: the external inbox
// first ([EXPANSION], so a task submitted from outside the worker pool is
// never starved behind a busy SPSC), then normal-priority SPSC, then
// normal-priority MPSC queues starting at the owning worker's NUMA node and
// wrapping; if the buffer is still empty, it repeats for low priority. It
// stops as soon as the buffer is full and returns the number of tasks
// moved (spec §4.4 "Refill (fill)").
func (c *Channel) Fill() int {
	moved := 0
	for !c.buffer.Full() {
		t, ok := c.external.Pop()
		if !ok {
			break
		}
		c.buffer.Push(t)
		moved++
	}
	moved += c.fillFrom(&c.normal)
	if c.buffer.Empty() {
		moved += c.fillFrom(&c.low)
	}
	return moved
}

func (c *Channel) fillFrom(pq *priorityQueues) int {
	moved := 0
	for !c.buffer.Full() {
		t := pq.spsc.Pop()
		if t == nil {
			break
		}
		c.buffer.Push(t)
		moved++
	}
	for i := 0; i < c.nodeCount && !c.buffer.Full(); i++ {
		node := (c.ownerNode + i) % c.nodeCount
		q := pq.mpsc[node]
		for !c.buffer.Full() {
			t, ok := q.Pop()
			if !ok {
				break
			}
			c.buffer.Push(t)
			moved++
		}
	}
	return moved
}

// Next pops the next ready task, triggering its prefetch record (spec §4.4
// "Dispatch (next)").
func (c *Channel) Next() (task.Task, bool) { return c.buffer.Next() }

// BufferLen returns the number of tasks currently sitting in the ready
// buffer.
func (c *Channel) BufferLen() int { return c.buffer.Len() }

// BufferCap returns the ready buffer's fixed capacity.
func (c *Channel) BufferCap() int { return c.buffer.Cap() }

// BufferEmpty reports whether the ready buffer has no tasks.
func (c *Channel) BufferEmpty() bool { return c.buffer.Empty() }

// PredictOccupancy records that a resource of the given frequency class was
// just placed on this channel (spec §3 "Channel occupancy").
func (c *Channel) PredictOccupancy(f hint.Frequency) {
	c.occupancy[f].Add(1)
}

// RevokeOccupancy undoes a prior PredictOccupancy, e.g. on resource destroy.
func (c *Channel) RevokeOccupancy(f hint.Frequency) {
	c.occupancy[f].Add(-1)
}

// ExcessiveOccupancy reports whether this channel currently has any
// resource predicted at FrequencyExcessive.
func (c *Channel) ExcessiveOccupancy() bool {
	return c.occupancy[hint.FrequencyExcessive].Load() > 0
}
