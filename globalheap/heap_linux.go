//go:build linux

package globalheap

import "golang.org/x/sys/unix"

func adviseHugePage(mem []byte) {
	// Best-effort: many kernels run without THP enabled, and that's fine.
	_ = unix.Madvise(mem, unix.MADV_HUGEPAGE)
}
