// Package builder implements resource placement from spec §4.7: choosing a
// home channel and NUMA node for a new resource, running the primitive
// selection matrix, allocating and constructing the payload, and the
// matching destroy path that either frees immediately or defers to epoch
// reclamation.
package builder

import (
	"unsafe"

	"github.com/coldbrewlabs/corelane/channel"
	"github.com/coldbrewlabs/corelane/dynalloc"
	"github.com/coldbrewlabs/corelane/epoch"
	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/idxreg"
	"github.com/coldbrewlabs/corelane/logcore"
	"github.com/coldbrewlabs/corelane/matrix"
	"github.com/coldbrewlabs/corelane/resource"
	"github.com/coldbrewlabs/corelane/resptr"

	"sync/atomic"
)

// Builder holds the channel set and allocator a resource is placed
// against. One Builder is shared by every caller of Build/Destroy.
type Builder struct {
	channels []*channel.Channel
	byID     *idxreg.Registry[*channel.Channel]
	alloc    *dynalloc.Allocator
	rr       atomic.Uint64
}

// New builds a Builder over channels, allocating resources through alloc.
func New(channels []*channel.Channel, alloc *dynalloc.Allocator) *Builder {
	reg := idxreg.New[*channel.Channel](len(channels))
	for _, c := range channels {
		reg.Put(c.ID(), c)
	}
	return &Builder{channels: channels, byID: reg, alloc: alloc}
}

func (b *Builder) nextRoundRobin() *channel.Channel {
	idx := b.rr.Add(1) - 1
	return b.channels[idx%uint64(len(b.channels))]
}

// selectChannel implements spec §4.7 step 2: an explicit hint wins
// outright; otherwise round-robin, skipping ahead once if the candidate
// already predicts an excessive resource and the caller asked for strict
// Exclusive isolation.
func (b *Builder) selectChannel(h hint.Hint) *channel.Channel {
	if h.HasChannelPreference() {
		ch, ok := b.byID.Get(uint32(*h.ChannelID))
		if !ok {
			logcore.Fatal("builder", "hint named a channel id that was never registered")
		}
		return ch
	}
	ch := b.nextRoundRobin()
	if h.Isolation == hint.Exclusive && ch.ExcessiveOccupancy() {
		ch = b.nextRoundRobin()
	}
	return ch
}

func selectNode(h hint.Hint, ch *channel.Channel) int {
	if h.HasNUMAPreference() {
		return *h.NUMANodeID
	}
	return ch.OwnerNode()
}

// Build places a new resource of size bytes (spec §4.7 "build<T>(size, hint,
// args…)"): it picks the home channel (steering away from one that already
// predicts an excessive resource under strict Exclusive isolation, per
// selectChannel), resolves the primitive from the hint alone, allocates
// size bytes at the chosen NUMA node immediately after a resource.Header,
// and returns the packed pointer to the payload along with the payload
// address itself for the caller to construct into. The payload bytes are
// not zeroed here.
func Build(b *Builder, h hint.Hint, size uintptr) (resptr.Ptr, unsafe.Pointer, error) {
	ch := b.selectChannel(h)
	prim, err := matrix.Select(h)
	if err != nil {
		return 0, nil, err
	}

	node := selectNode(h, ch)
	raw, err := b.alloc.Allocate(node, resource.PayloadOffset+size, 64)
	if err != nil {
		return 0, nil, err
	}

	hdr := (*resource.Header)(raw)
	*hdr = resource.Header{Frequency: h.AccessFrequency}
	ch.PredictOccupancy(h.AccessFrequency)

	payload := hdr.PayloadOf()
	return resptr.Pack(payload, ch.ID(), prim), payload, nil
}

// Destroy implements spec §4.7 "destroy<T>(resource)": an optimistic
// primitive with a live epoch manager is queued for reclamation tagged with
// the current global epoch; anything else is freed immediately. onReclaim,
// if non-nil, runs right before the memory is returned to the allocator —
// the caller's destructor hook (spec §3 Resource "on_reclaim"). Either way
// the home channel's occupancy prediction is revoked immediately, not
// deferred to the reclaim pass: occupancy tracks logical placement, not
// physical memory lifetime.
func Destroy(b *Builder, epochMgr *epoch.Manager, workerID int, ptr resptr.Ptr, onReclaim func()) {
	hdr := resource.HeaderOf(ptr.Address())
	if ch, ok := b.byID.Get(ptr.Channel()); ok {
		ch.RevokeOccupancy(hdr.Frequency)
	}

	free := func() {
		if onReclaim != nil {
			onReclaim()
		}
		b.alloc.Free(unsafe.Pointer(hdr))
	}

	if ptr.Primitive().IsOptimistic() && epochMgr != nil {
		hdr.OnReclaim = free
		epochMgr.Retire(workerID, hdr)
		return
	}
	free()
}
