package stm

import (
	"errors"
	"unsafe"
)

// AllocStatus reports the outcome of a transactional allocation.
type AllocStatus int

const (
	// AllocSuccess: the segment was allocated and is visible to this
	// transaction; it becomes region-owned on commit.
	AllocSuccess AllocStatus = iota
	// AllocNoMem: the host allocator failed; the transaction remains
	// valid and may continue.
	AllocNoMem
	// AllocAbort: the request violated an invariant (bad size); the
	// transaction has been destroyed.
	AllocAbort
)

// Alloc allocates an aligned, zero-initialized segment of size bytes,
// scoped to tx: it is rolled back (freed) if tx aborts, and published into
// the region only when tx commits. size must be a positive multiple of the
// region's alignment.
func (tx *Transaction) Alloc(size uintptr) (unsafe.Pointer, AllocStatus) {
	if tx.destroyed {
		return nil, AllocAbort
	}

	seg, err := newSegment(size, tx.region.align)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			return nil, AllocNoMem
		}
		tx.abort(reasonInvalidArgument)
		return nil, AllocAbort
	}

	tx.allocSet = append(tx.allocSet, seg)
	return seg.base, AllocSuccess
}

// Free schedules target, a previously allocated segment's start address,
// for removal from the region. Freeing the region's base segment always
// fails and destroys the transaction. If target was allocated by this same
// transaction and never published, it is freed immediately (it was never
// visible to any other transaction); otherwise the region segment containing
// it is added to the transaction's free set and removed from the region at
// commit.
func (tx *Transaction) Free(target unsafe.Pointer) bool {
	if tx.destroyed {
		return false
	}
	if target == tx.region.Start() {
		tx.abort(reasonInvalidArgument)
		return false
	}

	for i, s := range tx.allocSet {
		if s.base == target {
			tx.allocSet = append(tx.allocSet[:i], tx.allocSet[i+1:]...)
			return true
		}
	}

	if seg := tx.region.segmentFor(target); seg != nil {
		tx.freeSet = append(tx.freeSet, seg)
	}
	return true
}
