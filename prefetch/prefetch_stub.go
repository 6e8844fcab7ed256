// Fallback for architectures without software-prefetch intrinsics, or
// cgo/asm-disabled builds. Behavior is unchanged per spec §9: callers never
// observe a difference beyond the missing cache warm-up.

//go:build (!amd64 && !arm64) || noasm || nocgo

package prefetch

import "unsafe"

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
func Task(p unsafe.Pointer) {}

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
func Range(p unsafe.Pointer, size uintptr) {}
