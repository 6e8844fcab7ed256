// Package runid derives a stable identifier for a corelane.Config, the
// same way router/update_test.go's makeAddr40 derives a deterministic test
// fixture from a seed byte: hash a small fixed-size input with
// golang.org/x/crypto/sha3 and hex-encode the digest. corelane tags every
// statspersist row with this fingerprint so that counters recorded under
// different core counts, buffer sizes, or allocator modes are never
// silently averaged together in one table.
package runid

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Fields is the subset of corelane.Config that determines a run's identity.
// Two runs with identical Fields are expected to behave identically; two
// runs that differ in any of them are not comparable and get distinct
// fingerprints.
type Fields struct {
	CoreCount          int
	PrefetchDistance   int
	TaskBufferSize     int
	UseSystemAllocator bool
	EpochTickIntervalNS int64
	EpochMode          uint8
}

// Fingerprint returns the hex-encoded SHA3-256 digest of f.
func Fingerprint(f Fields) string {
	buf := make([]byte, 0, 41)
	var tmp [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		buf = append(buf, tmp[:]...)
	}
	put(int64(f.CoreCount))
	put(int64(f.PrefetchDistance))
	put(int64(f.TaskBufferSize))
	put(f.EpochTickIntervalNS)
	put(int64(f.EpochMode))
	if f.UseSystemAllocator {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	sum := sha3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
