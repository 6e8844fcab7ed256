// Package stats implements the per-channel counters spec §6 names:
// Scheduled, ScheduledOnChannel, ScheduledOffChannel, Executed,
// ExecutedReader, ExecutedWriter, Fill. The façade's Statistic(counter,
// channel) reads through this registry.
package stats

import "sync/atomic"

// Counter identifies one of the named counters.
type Counter int

const (
	Scheduled Counter = iota
	ScheduledOnChannel
	ScheduledOffChannel
	Executed
	ExecutedReader
	ExecutedWriter
	Fill
	numCounters
)

var counterNames = [numCounters]string{
	Scheduled:           "scheduled",
	ScheduledOnChannel:  "scheduled_on_channel",
	ScheduledOffChannel: "scheduled_off_channel",
	Executed:            "executed",
	ExecutedReader:      "executed_reader",
	ExecutedWriter:      "executed_writer",
	Fill:                "fill",
}

// String returns c's name, for diagnostics and persistence (statspersist
// uses this as the column value rather than a raw Counter int).
func (c Counter) String() string { return counterNames[c] }

// All returns every Counter in declaration order.
func All() []Counter {
	all := make([]Counter, numCounters)
	for i := range all {
		all[i] = Counter(i)
	}
	return all
}

// Registry holds one atomic counter per (Counter, channel) pair.
type Registry struct {
	perChannel []channelCounters
}

type channelCounters [numCounters]atomic.Int64

// New returns a registry sized for channelCount channels.
func New(channelCount int) *Registry {
	return &Registry{perChannel: make([]channelCounters, channelCount)}
}

// Add increments counter c for channelID by delta.
func (r *Registry) Add(c Counter, channelID uint32, delta int64) {
	r.perChannel[channelID][c].Add(delta)
}

// Read returns counter c's value. channel < 0 sums across every channel
// (spec §6 "statistic(counter[, channel])" — channel is optional).
func (r *Registry) Read(c Counter, channel int) int64 {
	if channel >= 0 {
		return r.perChannel[channel][c].Load()
	}
	var total int64
	for i := range r.perChannel {
		total += r.perChannel[i][c].Load()
	}
	return total
}
