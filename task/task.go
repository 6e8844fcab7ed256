// Package task defines the capability contract every unit of work in
// corelane implements (spec §3 "Task", §9 "Deep inheritance of tasks").
// There is no base class hierarchy: a task is any type that implements the
// small Task interface, and concrete task types that carry state (an index
// lookup, a counter increment, a B-link traversal step) are ordinary structs
// behind it.
package task

import "github.com/coldbrewlabs/corelane/resptr"

// Priority is the task's scheduling priority. The channel drains all
// PriorityNormal work before ever looking at PriorityLow queues (spec §4.4).
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityLow
)

// AnnotationKind discriminates the four annotation shapes a task can carry
// (spec §3 "an annotation: discriminated union").
type AnnotationKind uint8

const (
	// AnnotationNone: the task runs locally, wherever it was spawned.
	AnnotationNone AnnotationKind = iota
	// AnnotationResource: the task reads or writes a specific resource;
	// routing and synchronization follow the resource's home channel and
	// primitive.
	AnnotationResource
	// AnnotationChannel: the task must run on a specific worker, with no
	// resource involved.
	AnnotationChannel
	// AnnotationNode: the task should run on some worker on a given NUMA
	// node. Spec §9 flags this as an unimplemented scheduler path; see
	// scheduler.ErrNodeOnlyUnsupported.
	AnnotationNode
)

// Annotation is the task's placement/synchronization directive.
type Annotation struct {
	Kind AnnotationKind

	// Valid when Kind == AnnotationResource.
	Resource     resptr.Ptr
	PrefetchSize uint32

	// Valid when Kind == AnnotationChannel.
	ChannelID uint32

	// Valid when Kind == AnnotationNode.
	NodeID uint32
}

// None is the zero Annotation: a task with no placement preference.
var None = Annotation{Kind: AnnotationNone}

// OnResource builds a resource annotation.
func OnResource(r resptr.Ptr, prefetchSize uint32) Annotation {
	return Annotation{Kind: AnnotationResource, Resource: r, PrefetchSize: prefetchSize}
}

// OnChannel builds a channel annotation.
func OnChannel(channelID uint32) Annotation {
	return Annotation{Kind: AnnotationChannel, ChannelID: channelID}
}

// OnNode builds a NUMA-node annotation.
func OnNode(nodeID uint32) Annotation {
	return Annotation{Kind: AnnotationNode, NodeID: nodeID}
}

// Result is what Execute returns: an optional successor to spawn, and
// whether the task cell should be returned to the fixed allocator (spec §3
// "TaskResult = {successor: optional task, remove_self: bool}").
type Result struct {
	Successor  Task
	RemoveSelf bool
}

// Task is the single capability contract every task implements. Execute
// must be deterministic in its inputs: the worker's optimistic-read retry
// path (spec §4.8) re-runs Execute from a restored snapshot, and a
// non-deterministic Execute would make that restart unsound.
type Task interface {
	// Execute runs the task on the given core/channel and returns its
	// result. It must not block.
	Execute(coreID, channelID uint32) Result

	// Annotation returns the task's placement/synchronization directive.
	// It must not change across calls for the life of the task.
	Annotation() Annotation

	// Priority returns the task's scheduling priority.
	Priority() Priority

	// IsReadonly reports whether the task only reads its annotated
	// resource. Dispatch uses this to pick shared vs. exclusive access
	// under ReaderWriterLatch, and to decide retry-on-mismatch under the
	// optimistic primitives.
	IsReadonly() bool

	// Next and SetNext implement the intrusive singly-linked queue link
	// spec §3 requires on every task (used by spsc.Queue and mpsc.Queue;
	// a task is never a member of two queues at once).
	Next() Task
	SetNext(Task)

	// Release returns the task cell to whatever fixed allocator it was
	// carved from, on behalf of coreID (spec §4.1 "free(foreign_core_id,
	// ptr) is legal" — coreID need not be the core that allocated the
	// cell). A task constructed without a Releaser no-ops.
	Release(coreID uint32)
}

// Releaser returns a task cell to the fixed allocator it came from.
// fixedalloc.Pool[T] implements this for its own cell type; corelane.NewTask
// attaches it to a task's Base at construction time via SetReleaser.
type Releaser interface {
	Release(coreID uint32)
}

// Cell constrains a concrete task cell type used with fixedalloc.Pool[T]:
// *T must implement Task (through an embedded Base plus the concrete
// type's own Execute) and expose SetReleaser, the method Base provides for
// attaching the allocator's Releaser. This lets corelane.NewTask attach a
// cell's Releaser generically, without the allocator package needing to
// know about task.Task at all.
type Cell[T any] interface {
	*T
	Task
	SetReleaser(Releaser)
}

// Base is embedded by concrete task types to provide the annotation,
// priority, readonly flag, and intrusive link without requiring every
// concrete type to re-implement that bookkeeping. Concrete types still
// implement Execute themselves — Base deliberately has none, there is no
// virtual base method to override (spec §9).
type Base struct {
	annotation Annotation
	priority   Priority
	readonly   bool
	next       Task
	releaser   Releaser
}

// NewBase constructs a Base with the given annotation, priority, and
// readonly flag.
func NewBase(a Annotation, p Priority, readonly bool) Base {
	return Base{annotation: a, priority: p, readonly: readonly}
}

func (b *Base) Annotation() Annotation { return b.annotation }
func (b *Base) Priority() Priority     { return b.priority }
func (b *Base) IsReadonly() bool       { return b.readonly }
func (b *Base) Next() Task             { return b.next }
func (b *Base) SetNext(t Task)         { b.next = t }

// SetReleaser attaches the allocator-supplied Releaser for this cell.
// corelane.NewTask calls this once, right after allocating the cell.
func (b *Base) SetReleaser(r Releaser) { b.releaser = r }

// Release forwards to the attached Releaser, if any.
func (b *Base) Release(coreID uint32) {
	if b.releaser != nil {
		b.releaser.Release(coreID)
	}
}
