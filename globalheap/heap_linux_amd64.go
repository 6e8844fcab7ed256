//go:build linux && amd64

package globalheap

const sysMbind = 237
