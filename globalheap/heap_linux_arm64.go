//go:build linux && arm64

package globalheap

const sysMbind = 235
