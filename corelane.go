// Package corelane is the programmatic façade spec §6 names: the only
// supported boundary a caller crosses to build a task/resource graph and
// run it on a pinned, NUMA-aware worker pool. Every other package in this
// module is an internal collaborator the façade wires together; callers
// outside the core interact only through the functions declared here.
package corelane

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/coldbrewlabs/corelane/builder"
	"github.com/coldbrewlabs/corelane/cfgcheck"
	"github.com/coldbrewlabs/corelane/channel"
	"github.com/coldbrewlabs/corelane/control"
	"github.com/coldbrewlabs/corelane/dynalloc"
	"github.com/coldbrewlabs/corelane/epoch"
	"github.com/coldbrewlabs/corelane/fixedalloc"
	"github.com/coldbrewlabs/corelane/globalheap"
	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/logcore"
	"github.com/coldbrewlabs/corelane/profile"
	"github.com/coldbrewlabs/corelane/resptr"
	"github.com/coldbrewlabs/corelane/runid"
	"github.com/coldbrewlabs/corelane/scheduler"
	"github.com/coldbrewlabs/corelane/stats"
	"github.com/coldbrewlabs/corelane/statspersist"
	"github.com/coldbrewlabs/corelane/task"
	"github.com/coldbrewlabs/corelane/topology"
	"github.com/coldbrewlabs/corelane/worker"
)

// ErrAlreadyRunning is returned by Init while another Runtime guard object
// is live, per spec §9 "Global mutable state": a process-scoped handle
// bracketing StartAndWait, construction rejected while another is live.
var ErrAlreadyRunning = errors.New("corelane: another runtime is already initialized")

// current is the single live guard spec §9 asks for. It holds no behavior
// of its own — every façade function still takes an explicit *Runtime, the
// idiomatic-Go reading of "process-wide singleton" — it only enforces that
// at most one Runtime is alive between Init and the matching Stop.
var current atomic.Pointer[Runtime]

// Config is the façade's construction parameter (spec §6
// "runtime::init(core_set, prefetch_distance, use_system_allocator)"),
// expanded with the ambient knobs SPEC_FULL §6 names. It embeds
// cfgcheck.Config rather than duplicating its fields, so Init's validation
// step and the façade never drift apart.
type Config struct {
	cfgcheck.Config

	// EpochMode selects the epoch manager's local-epoch publishing
	// discipline (spec §4.5). Defaults to UpdateEpochPeriodically.
	EpochMode epoch.Mode

	// PerWorkerGarbage selects the per-worker garbage-queue topology
	// instead of the single global queue spec §4.5 calls the default.
	PerWorkerGarbage bool
}

// DefaultConfig returns a Config over coreCount cores discovered on this
// platform, with every other field at the spec's stated defaults: 64-slot
// task buffer, prefetch distance 4, 50ms epoch tick (epoch.TickInterval),
// periodic epoch mode, mmap-backed allocators.
func DefaultConfig(coreCount int) (Config, error) {
	cs, err := topology.NewCoreSet(coreCount)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Config: cfgcheck.Config{
			CoreSet:            cs,
			PrefetchDistance:   4,
			UseSystemAllocator: false,
			TaskBufferSize:     channel.DefaultBufferCapacity,
			EpochTickInterval:  epoch.TickInterval,
		},
		EpochMode: epoch.UpdateEpochPeriodically,
	}, nil
}

// Runtime is the process-scoped handle spec §9 describes: every component
// table row in spec §2 has exactly one live instance reachable from here
// for as long as the runtime is initialized.
type Runtime struct {
	cfg       Config
	alloc     *dynalloc.Allocator
	channels  []*channel.Channel
	build     *builder.Builder
	sched     *scheduler.Scheduler
	epochMgr  *epoch.Manager
	stopFlag  *control.Flag
	statsReg  *stats.Registry
	profiler  *profile.Profiler
	profilePath string

	taskPools sync.Map // reflect.Type -> *fixedalloc.Pool[T]
	external  sync.Map // resptr.Ptr -> unsafe.Pointer, for ToResource wraps

	fingerprint string

	wg sync.WaitGroup
}

// Init validates cfg (cfgcheck.Validate) and constructs every component
// spec §2 lists: the NUMA heaps, the dynamic resource allocator, one
// channel per core, the scheduler, the epoch manager, and the builder that
// ties placement to all of them. It does not start worker threads — that
// is StartAndWait's job, so tasks may be spawned to seed the graph first.
//
// Init is idempotent in the sense spec §6 asks for: calling it again while
// a previously returned *Runtime has not yet been Stopped and drained
// returns ErrAlreadyRunning instead of silently constructing a second,
// conflicting set of singletons.
func Init(cfg Config) (*Runtime, error) {
	if err := cfgcheck.Validate(cfg.Config); err != nil {
		return nil, fmt.Errorf("corelane: %w", err)
	}

	rt := &Runtime{cfg: cfg}
	if !current.CompareAndSwap(nil, rt) {
		return nil, ErrAlreadyRunning
	}

	topology.WarnIfNUMABalancing()

	nodeCount := cfg.CoreSet.NodeCount
	var heaps []*globalheap.Heap
	if cfg.UseSystemAllocator {
		heaps = globalheap.HeapsSystem(nodeCount)
	} else {
		heaps = globalheap.Heaps(nodeCount)
	}
	rt.alloc = dynalloc.New(heaps)

	rt.channels = make([]*channel.Channel, len(cfg.CoreSet.Cores))
	for i, core := range cfg.CoreSet.Cores {
		rt.channels[i] = channel.NewSized(uint32(i), core.NodeID, nodeCount, cfg.TaskBufferSize, cfg.PrefetchDistance)
	}

	rt.statsReg = stats.New(len(rt.channels))
	rt.sched = scheduler.New(rt.channels, rt.statsReg)
	rt.build = builder.New(rt.channels, rt.alloc)
	rt.epochMgr = epoch.NewWithInterval(len(rt.channels), cfg.EpochMode, cfg.PerWorkerGarbage, cfg.EpochTickInterval)
	rt.stopFlag = &control.Flag{}

	rt.fingerprint = runid.Fingerprint(runid.Fields{
		CoreCount:           len(cfg.CoreSet.Cores),
		PrefetchDistance:    cfg.PrefetchDistance,
		TaskBufferSize:      cfg.TaskBufferSize,
		UseSystemAllocator:  cfg.UseSystemAllocator,
		EpochTickIntervalNS: cfg.EpochTickInterval.Nanoseconds(),
		EpochMode:           uint8(cfg.EpochMode),
	})

	return rt, nil
}

// Fingerprint returns the stable identifier runid.Fingerprint derived from
// this Runtime's Config. PersistStats tags every row it writes with this
// value so that counters from differently configured runs are never
// silently mixed in one database.
func (rt *Runtime) Fingerprint() string { return rt.fingerprint }

// PersistStats writes the current contents of every stats counter to a
// SQLite database at path (spec §6 "statistic" surface, persisted rather
// than only read back through Statistic). It may be called at any time,
// including while workers are still running — counters are read through
// the same atomics Statistic uses.
func (rt *Runtime) PersistStats(path string) error {
	return statspersist.Write(path, rt.statsReg, len(rt.channels), rt.fingerprint, time.Now().UnixNano())
}

// Profile enables idle-time profiling (spec §6 "runtime::profile(file) —
// enable idle-time profiling, output JSON on stop"). Must be called before
// StartAndWait; the JSON described in spec §6 is written to path once
// every worker has joined.
func (rt *Runtime) Profile(path string) {
	rt.profiler = profile.New(len(rt.channels))
	rt.profilePath = path
}

// Statistic reads one of the named counters spec §6 lists. channel < 0
// sums across every channel.
func (rt *Runtime) Statistic(c stats.Counter, channel int) int64 {
	return rt.statsReg.Read(c, channel)
}

// StartAndWait pins one worker goroutine per core in the configured
// core_set, starts the epoch manager's tick thread, and blocks until Stop
// is called and every worker has drained its ready buffer and returned
// (spec §6 "start_and_wait()/stop()" lifecycle). The final epoch sweep and
// idle-profile JSON write, if enabled, happen before StartAndWait returns.
func (rt *Runtime) StartAndWait() {
	rt.epochMgr.Start()

	rt.wg.Add(len(rt.cfg.CoreSet.Cores))
	for i, core := range rt.cfg.CoreSet.Cores {
		go rt.runWorker(uint32(i), core)
	}
	rt.wg.Wait()

	rt.epochMgr.Stop()
	rt.writeProfile()
	current.CompareAndSwap(rt, nil)
}

func (rt *Runtime) runWorker(id uint32, core topology.Core) {
	defer rt.wg.Done()
	if err := topology.Pin(core); err != nil {
		logcore.Warn("corelane", fmt.Sprintf("pinning core %d failed: %v", core.ID, err))
	}
	w := worker.New(id, core.NodeID, rt.channels[id], rt.sched, rt.epochMgr, rt.cfg.EpochMode, rt.statsReg, rt.stopFlag, rt.cfg.PrefetchDistance, rt.idleObserver())
	w.Run()
}

func (rt *Runtime) idleObserver() worker.IdleObserver {
	if rt.profiler == nil {
		return nil
	}
	return rt.profiler
}

func (rt *Runtime) writeProfile() {
	if rt.profiler == nil {
		return
	}
	f, err := os.Create(rt.profilePath)
	if err != nil {
		logcore.Warn("corelane", "could not create idle-profile output: "+err.Error())
		return
	}
	defer f.Close()
	if err := rt.profiler.WriteJSON(f); err != nil {
		logcore.Warn("corelane", "failed writing idle-profile JSON: "+err.Error())
	}
}

// Stop requests shutdown (spec §7 "stop() sets a flag; each worker drains
// its ready buffer and exits"). It does not block; StartAndWait returns
// once every worker has actually joined.
func (rt *Runtime) Stop() {
	rt.stopFlag.Stop()
}

// Spawn routes t into the queue topology from the given current channel
// (spec §4.9), as if t were being spawned by a task already running on
// that channel. currentChannelID is optional (spec §6
// "spawn(task[, current_channel_id])"); omitting it spawns as if from
// channel 0, the usual way to seed the task graph before StartAndWait.
func Spawn(rt *Runtime, t task.Task, currentChannelID ...uint32) error {
	cur := uint32(0)
	if len(currentChannelID) > 0 {
		cur = currentChannelID[0]
	}
	return rt.sched.Spawn(t, cur, rt.channels[cur].OwnerNode())
}

// Submit enqueues t on targetChannelID's external inbox ([EXPANSION]; see
// channel.Channel.PushExternal) rather than routing it through Spawn's
// keep-local/producer-NUMA logic. It is the entry point for goroutines that
// are not themselves workers in this runtime — a setup phase seeding the
// graph from another thread, or external code feeding tasks in from a
// network listener — and so have no "current channel" to spawn from. It
// reports false if the target channel's bounded inbox is full; the caller
// decides whether to retry, drop, or block.
func Submit(rt *Runtime, targetChannelID uint32, t task.Task) bool {
	return rt.channels[targetChannelID].PushExternal(t)
}

// NewTask allocates and constructs a task of concrete type T from coreID's
// fixed-size cell pool (spec §6 "new_task<T>(core_id, args…)"). init, if
// non-nil, runs against the zeroed cell before the releaser is attached —
// callers typically call task.NewBase's equivalent constructor inside it
// to fill in the annotation, priority, and readonly flag.
//
// PT is always *T; the task.Cell[T] constraint exists purely so this
// function can call SetReleaser on the returned pointer without an
// unsafe.Pointer cast (see task.Cell's doc comment).
func NewTask[T any, PT task.Cell[T]](rt *Runtime, coreID uint32, init func(PT)) PT {
	pool := taskPool[T](rt)
	cell := pool.Allocate(int(coreID))
	pt := PT(cell)
	if init != nil {
		init(pt)
	}
	pt.SetReleaser(pool.Releaser(cell))
	return pt
}

// DeleteTask returns a task cell to its fixed-size pool (spec §6
// "delete_task<T>(core_id, task)"). Most callers never need this directly:
// the worker loop already returns a task to its allocator whenever its
// Result says RemoveSelf. It exists for the rare case of discarding a task
// that was built but never spawned.
func DeleteTask[T any, PT task.Cell[T]](rt *Runtime, coreID uint32, t PT) {
	pool := taskPool[T](rt)
	pool.Free(int(coreID), (*T)(t))
}

// taskPool returns the fixed-size pool for task cell type T, creating it
// on first use. corelane has no generic container for "a pool per type
// seen so far," so it keys a type-erased sync.Map by reflect.Type instead
// — the standard Go idiom for a per-instantiation singleton registry (see
// DESIGN.md).
func taskPool[T any](rt *Runtime) *fixedalloc.Pool[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := rt.taskPools.Load(key); ok {
		return v.(*fixedalloc.Pool[T])
	}
	coreNodes := make([]int, len(rt.cfg.CoreSet.Cores))
	for i, c := range rt.cfg.CoreSet.Cores {
		coreNodes[i] = c.NodeID
	}
	p := fixedalloc.NewPool[T](coreNodes, rt.cfg.CoreSet.NodeCount)
	actual, _ := rt.taskPools.LoadOrStore(key, p)
	return actual.(*fixedalloc.Pool[T])
}

// NewResource allocates and places a resource of payload type T (spec §6
// "new_resource<T>(size, hint, args…)"): it runs the full builder.Build
// placement decision (home channel, NUMA node, primitive selection) and
// then in-place constructs a *T at the returned payload address. construct,
// if non-nil, runs against the zeroed *T before the resptr.Ptr is handed
// back — equivalent to the original's "T(args…)" in-place constructor
// call.
func NewResource[T any](rt *Runtime, h hint.Hint, construct func(*T)) (resptr.Ptr, *T, error) {
	var zero T
	ptr, raw, err := builder.Build(rt.build, h, unsafe.Sizeof(zero))
	if err != nil {
		return 0, nil, err
	}
	obj := (*T)(raw)
	*obj = zero
	if construct != nil {
		construct(obj)
	}
	return ptr, obj, nil
}

// ResourceOf recovers the typed payload pointer for a resptr.Ptr returned
// by NewResource[T]. Calling it with a type other than the one NewResource
// was instantiated with, or on a Ptr returned by ToResource, is a caller
// error (spec §7: "internal failures are programming errors").
func ResourceOf[T any](ptr resptr.Ptr) *T {
	return (*T)(ptr.Address())
}

// DeleteResource enqueues ptr for epoch reclamation or frees it immediately,
// whichever ptr's primitive requires (spec §6 "delete_resource<T>(ptr)",
// spec §4.7 "destroy<T>"). onReclaim, if non-nil, runs immediately before
// the backing memory is returned to the allocator — the caller's chance to
// run T's destructor-equivalent logic (close a file, release a child
// resource) exactly once, on whichever path ptr's primitive takes.
func (rt *Runtime) DeleteResource(workerID int, ptr resptr.Ptr, onReclaim func()) {
	builder.Destroy(rt.build, rt.epochMgr, workerID, ptr, onReclaim)
}

// ToResource wraps an externally owned object behind a resptr.Ptr (spec §6
// "to_resource<T>(raw_ptr, hint)"): the runtime places and tags a bare
// resource.Header for synchronization purposes, but the payload itself is
// never copied or allocated by corelane — ExternalOf recovers the original
// *T. This is a deliberate adaptation from the pointer-arithmetic layout
// NewResource uses, recorded in DESIGN.md: an externally owned object
// cannot be guaranteed to sit immediately after a resource.Header the way
// a builder-allocated payload does, so the header and the wrapped pointer
// are linked through a side table keyed by the returned resptr.Ptr instead.
func ToResource[T any](rt *Runtime, external *T, h hint.Hint) (resptr.Ptr, error) {
	ptr, _, err := builder.Build(rt.build, h, 0)
	if err != nil {
		return 0, err
	}
	rt.external.Store(ptr, unsafe.Pointer(external))
	return ptr, nil
}

// ExternalOf recovers the object ToResource[T] wrapped under ptr. It
// returns nil if ptr was never produced by ToResource.
func ExternalOf[T any](rt *Runtime, ptr resptr.Ptr) *T {
	v, ok := rt.external.Load(ptr)
	if !ok {
		return nil
	}
	return (*T)(v.(unsafe.Pointer))
}

// DeleteExternalResource releases the synchronization header ToResource
// allocated for ptr and forgets the wrapped pointer. It never touches the
// wrapped object itself — the caller still owns its lifetime.
func (rt *Runtime) DeleteExternalResource(workerID int, ptr resptr.Ptr) {
	rt.external.Delete(ptr)
	builder.Destroy(rt.build, rt.epochMgr, workerID, ptr, nil)
}
