//go:build linux && (amd64 || arm64)

package globalheap

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/coldbrewlabs/corelane/logcore"
)

// mbind(2)'s policy constants; golang.org/x/sys/unix does not wrap this
// syscall, so both the numbers and the call itself are hand-rolled here,
// same spirit as ring24's direct sched_setaffinity RawSyscall.
const (
	mpolBind        = 2
	mpolMfMoveFirst = 1 << 2
)

func bindToNode(mem []byte, node int) {
	if len(mem) == 0 {
		return
	}
	nodemask := uint64(1) << uint(node)
	_, _, errno := unix.Syscall6(
		sysMbind,
		uintptr(unsafe.Pointer(&mem[0])),
		uintptr(len(mem)),
		mpolBind,
		uintptr(unsafe.Pointer(&nodemask)),
		8, // maxnode, in bits
		mpolMfMoveFirst,
	)
	if errno != 0 {
		logcore.Warn("globalheap", "mbind to NUMA node failed, pages may land on another node")
	}
}
