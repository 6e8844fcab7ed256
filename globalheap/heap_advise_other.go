//go:build !linux

package globalheap

// adviseHugePage is a documented no-op off Linux: MADV_HUGEPAGE is a Linux
// transparent-huge-page hint with no portable equivalent.
func adviseHugePage(mem []byte) {}
