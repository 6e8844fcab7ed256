//go:build arm64 && !noasm && !nocgo

package prefetch

/*
static inline void prefetch_t0(const void *p) {
    __asm__ __volatile__("prfm pldl1keep, [%0]" :: "r"(p));
}

static inline void prefetch_w(const void *p) {
    __asm__ __volatile__("prfm pstl1keep, [%0]" :: "r"(p));
}
*/
import "C"
import "unsafe"

const cacheLineSize = 64

//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
func Task(p unsafe.Pointer) {
	if p == nil {
		return
	}
	C.prefetch_w(p)
}

//go:norace
//go:nocheckptr
//go:nosplit
func Range(p unsafe.Pointer, size uintptr) {
	if p == nil || size == 0 {
		return
	}
	base := uintptr(p)
	end := base + size
	for addr := base - (base % cacheLineSize); addr < end; addr += cacheLineSize {
		C.prefetch_t0(unsafe.Pointer(addr))
	}
}
