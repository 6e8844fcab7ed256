//go:build !linux

package topology

import "github.com/coldbrewlabs/corelane/logcore"

// Pin is a documented no-op off Linux: there is no portable affinity API,
// and corelane would rather run unpinned than fail to start (spec §2's
// per-core pinning is a Linux/x86-64+arm64 performance property, not a
// correctness requirement).
func Pin(core Core) error {
	logcore.Warn("topology", "thread pinning is unsupported on this platform; running unpinned")
	return nil
}

// WarnIfNUMABalancing is a no-op off Linux; there is no equivalent sysctl.
func WarnIfNUMABalancing() {}
