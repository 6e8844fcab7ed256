// Package logcore is the diagnostic logger used by every corelane package's
// cold paths: setup, shutdown, allocator exhaustion, epoch sweeps, and
// NUMA-balancing warnings. It is never called from a task's execute path,
// so it makes no effort to avoid allocation.
//
// It mirrors the teacher's dropError/DropMessage split: a prefix plus an
// optional error, formatted with the standard log package's Printf rather
// than built on a third-party
// structured logger, matching the teacher's own choice not to bring one in
// for diagnostics (see DESIGN.md).
package logcore

import "log"

// Drop logs a cold-path event. If err is nil, prefix and msg are printed as
// a plain trace line; otherwise err is appended.
//
//go:nosplit
//go:inline
func Drop(prefix, msg string, err error) {
	if err != nil {
		log.Printf("%s: %s: %v", prefix, msg, err)
		return
	}
	log.Printf("%s: %s", prefix, msg)
}

// Warn is Drop with a fixed "WARN" severity prefix, used for recoverable
// but notable conditions (e.g. NUMA balancing enabled, a dropped spawn).
//
//go:nosplit
//go:inline
func Warn(component, msg string) {
	Drop("WARN["+component+"]", msg, nil)
}

// Fatal logs and then panics with a BugError, for the internal invariant
// violations spec §7 treats as programming errors rather than recoverable
// conditions.
func Fatal(component, msg string) {
	Drop("BUG["+component+"]", msg, nil)
	panic(BugError{Component: component, Msg: msg})
}

// BugError wraps an internal invariant violation so a test harness (there is
// deliberately no recovering caller in production) can still identify the
// panic's origin by type.
type BugError struct {
	Component string
	Msg       string
}

func (e BugError) Error() string {
	return "corelane bug [" + e.Component + "]: " + e.Msg
}
