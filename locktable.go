package stm

import (
	"math/bits"
	"unsafe"
)

// defaultLockTableSize is the number of versioned locks a Region allocates
// by default. Collisions (multiple addresses sharing a lock) are safe; they
// only raise the false-conflict rate. A table this size keeps that rate low
// for typical working sets.
const defaultLockTableSize = 1 << 20

// lockTable maps shared-memory addresses to versioned locks by a mixing
// hash of the address, replacing a pointer-keyed dictionary with a
// fixed-footprint array: no rehashing, no per-region growth.
type lockTable struct {
	slots     []versionedLock
	alignBits uint
}

func newLockTable(size uint32, align uintptr) *lockTable {
	if size == 0 {
		size = defaultLockTableSize
	}
	return &lockTable{
		slots:     make([]versionedLock, size),
		alignBits: uint(bits.TrailingZeros64(uint64(align))),
	}
}

// index computes the hash of a word address: drop the low bits below the
// alignment (they never vary between words), then run the result through a
// bit-mixing permutation (the MurmurHash3 fmix64 finalizer) before reducing
// modulo the table size. The mix only permutes high-order pointer bits, so
// distinct words hash uniformly even when their addresses are clustered.
func (t *lockTable) index(addr unsafe.Pointer) uint32 {
	x := uint64(uintptr(addr)) >> t.alignBits
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return uint32(x % uint64(len(t.slots)))
}

// lockFor returns the versioned lock covering addr.
func (t *lockTable) lockFor(addr unsafe.Pointer) *versionedLock {
	return &t.slots[t.index(addr)]
}
