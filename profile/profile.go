// Package profile implements idle-time profiling (spec §6 "runtime::profile
// (file) — enable idle-time profiling, output JSON on stop"): it tracks,
// per channel, the wall-clock ranges during which a worker found nothing to
// dispatch, and serializes them to the documented JSON shape on Stop.
package profile

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"
)

// minIdleSpan is the emission threshold spec §6 names: "A range is only
// emitted when the idle span exceeds 10 ns."
const minIdleSpan = 10 * time.Nanosecond

// Range is one idle interval, in nanoseconds since the profiler started.
type Range struct {
	S int64 `json:"s"`
	E int64 `json:"e"`
}

// channelProfile is one entry in the idle-profile JSON array.
type channelProfile struct {
	Channel int     `json:"channel"`
	Ranges  []Range `json:"ranges"`
}

// endMarker is the terminating element spec §6 describes.
type endMarker struct {
	End int64 `json:"end"`
}

// Profiler satisfies worker.IdleObserver: the worker package never imports
// this one, so a *Profiler is handed to worker.New purely by its method
// set.
type Profiler struct {
	mu        sync.Mutex
	start     time.Time
	idleSince []time.Time
	profiles  map[int]*channelProfile
}

// New returns a profiler covering channelCount channels, with its clock
// starting now.
func New(channelCount int) *Profiler {
	return &Profiler{
		start:     time.Now(),
		idleSince: make([]time.Time, channelCount),
		profiles:  make(map[int]*channelProfile),
	}
}

// MarkIdle records the start of an idle span for channelID. Repeated calls
// before the matching MarkBusy are no-ops — a worker may observe "nothing
// to dispatch" on several consecutive loop iterations before it finds
// work again.
func (p *Profiler) MarkIdle(channelID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idleSince[channelID].IsZero() {
		p.idleSince[channelID] = time.Now()
	}
}

// MarkBusy closes out channelID's current idle span, if any, and records it
// when it exceeds minIdleSpan.
func (p *Profiler) MarkBusy(channelID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	since := p.idleSince[channelID]
	if since.IsZero() {
		return
	}
	p.idleSince[channelID] = time.Time{}

	now := time.Now()
	if now.Sub(since) <= minIdleSpan {
		return
	}
	cp := p.profiles[channelID]
	if cp == nil {
		cp = &channelProfile{Channel: channelID}
		p.profiles[channelID] = cp
	}
	cp.Ranges = append(cp.Ranges, Range{
		S: since.Sub(p.start).Nanoseconds(),
		E: now.Sub(p.start).Nanoseconds(),
	})
}

// WriteJSON serializes the collected ranges to w in the order spec §6
// describes: one object per channel that ever went idle, sorted by channel
// id, terminated by the {end} marker.
func (p *Profiler) WriteJSON(w io.Writer) error {
	p.mu.Lock()
	ids := make([]int, 0, len(p.profiles))
	for id := range p.profiles {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		entries = append(entries, p.profiles[id])
	}
	entries = append(entries, endMarker{End: time.Since(p.start).Nanoseconds()})
	p.mu.Unlock()

	b, err := sonnet.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
