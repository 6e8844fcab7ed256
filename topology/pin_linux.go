//go:build linux

package topology

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/coldbrewlabs/corelane/logcore"
)

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to the given core, per spec §2 "One worker thread is pinned per
// core."
func Pin(core Core) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Set(core.ID)
	return unix.SchedSetaffinity(0, &set)
}

// WarnIfNUMABalancing logs through logcore if the kernel's automatic NUMA
// balancing is enabled, per spec §6: "Linux NUMA balancing should be
// disabled... the runtime warns if enabled." It never fails the caller —
// an unreadable sysctl is treated as "can't tell," not "balancing is on."
func WarnIfNUMABalancing() {
	data, err := os.ReadFile("/proc/sys/kernel/numa_balancing")
	if err != nil {
		return
	}
	if strings.TrimSpace(string(data)) != "0" {
		logcore.Warn("topology", fmt.Sprintf("kernel NUMA balancing is enabled (numa_balancing=%s); disable it for predictable placement", strings.TrimSpace(string(data))))
	}
}
