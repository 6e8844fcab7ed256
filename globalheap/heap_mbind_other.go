//go:build !linux || (!amd64 && !arm64)

package globalheap

// bindToNode is a documented no-op off Linux/amd64+arm64: there is no
// portable NUMA-bind API, and corelane would rather serve memory off the
// requested node than fail the allocation outright.
func bindToNode(mem []byte, node int) {}
