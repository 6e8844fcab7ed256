// Fallback for architectures without a dedicated spin-wait instruction, or
// builds with cgo/asm disabled. Spinning still works, just without the
// power/latency hint; this keeps the call site branch-free across platforms.

//go:build (!amd64 && !arm64) || noasm || nocgo

package relax

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func CPU() {}
