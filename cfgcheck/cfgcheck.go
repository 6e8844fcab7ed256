// Package cfgcheck validates a corelane.Config once at Init, per SPEC_FULL
// §6: a bad configuration is one of the two recoverable error paths spec §7
// names, never a panic.
package cfgcheck

import (
	"errors"
	"time"

	"github.com/coldbrewlabs/corelane/topology"
)

var (
	// ErrNoCores is returned when Config.CoreSet is nil or empty.
	ErrNoCores = errors.New("cfgcheck: config has no cores")
	// ErrTaskBufferSizeInvalid is returned when TaskBufferSize isn't a
	// positive power of two (spec §3 "Task buffer": "power-of-two ring").
	ErrTaskBufferSizeInvalid = errors.New("cfgcheck: task buffer size must be a positive power of two")
	// ErrPrefetchDistanceOutOfRange is returned when PrefetchDistance
	// falls outside [0, TaskBufferSize) (spec §4.4 "D (0 disables
	// prefetching)").
	ErrPrefetchDistanceOutOfRange = errors.New("cfgcheck: prefetch distance must be in [0, task buffer size)")
	// ErrEpochTickIntervalNonPositive is returned when EpochTickInterval
	// isn't a positive duration.
	ErrEpochTickIntervalNonPositive = errors.New("cfgcheck: epoch tick interval must be positive")
)

// Config is the validated subset of corelane.Config that cfgcheck inspects.
// corelane.Config embeds this rather than duplicating the fields, so
// Validate and the façade never drift apart.
type Config struct {
	CoreSet            *topology.CoreSet
	PrefetchDistance   int
	UseSystemAllocator bool
	TaskBufferSize     int
	EpochTickInterval  time.Duration
}

// Validate checks cfg against the invariants every downstream package
// assumes (a non-empty core set, channel.NewBuffer's
// power-of-two/distance-range panics, epoch.Manager's tick loop) and
// returns the first violation found, rather than letting it surface later
// as a panic deep in construction. The MaxCores bound is not checked here;
// topology.NewCoreSet enforces it when the core set is built.
func Validate(cfg Config) error {
	if cfg.CoreSet == nil || len(cfg.CoreSet.Cores) == 0 {
		return ErrNoCores
	}
	if cfg.TaskBufferSize <= 0 || cfg.TaskBufferSize&(cfg.TaskBufferSize-1) != 0 {
		return ErrTaskBufferSizeInvalid
	}
	if cfg.PrefetchDistance < 0 || cfg.PrefetchDistance >= cfg.TaskBufferSize {
		return ErrPrefetchDistanceOutOfRange
	}
	if cfg.EpochTickInterval <= 0 {
		return ErrEpochTickIntervalNonPositive
	}
	return nil
}
