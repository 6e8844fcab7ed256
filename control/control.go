// Package control carries the runtime-wide shutdown signal spec §7
// describes: "stop() sets a flag; each worker drains its ready buffer and
// exits." It is grounded on the teacher's atomic.Bool-based shutdown flag
// (see DESIGN.md), narrowed to the one flag this runtime actually needs.
package control

import "sync/atomic"

// Flag is a single lock-free shutdown signal shared by every worker. The
// zero value means "running."
type Flag struct {
	stop atomic.Bool
}

// Stop requests shutdown. Idempotent and safe from any goroutine.
//
//go:inline
func (f *Flag) Stop() {
	f.stop.Store(true)
}

// Stopped reports whether Stop has been called. Workers poll this once per
// execution-loop iteration (spec §4.8).
//
//go:inline
func (f *Flag) Stopped() bool {
	return f.stop.Load()
}
