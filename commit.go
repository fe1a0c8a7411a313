package stm

import (
	"time"
	"unsafe"
)

// End commits or aborts the transaction and reports which. Read-only
// transactions always commit (they never touch shared memory). Read-write
// transactions run the two-phase TL2 commit protocol:
//
//  1. Lock the write set: try-acquire every unique lock covering a written
//     address, in a fixed global order, so two commits with crossed write
//     sets can never deadlock each other. Any failed try-acquire releases
//     everything acquired so far and aborts.
//  2. Bump the global clock; the result is this commit's write version.
//  3. Validate, unless the write version is exactly rv+1 (no interleaving
//     committer was possible). Every held write-set lock must be no newer
//     than rv, so a word another transaction committed to after Begin is a
//     conflict even if this transaction never read it. A read-set address
//     whose lock is one we hold only needs its version checked, since we
//     hold the lock ourselves; any other read-set address must be both
//     unlocked and no newer than rv.
//  4. Publish buffered writes into shared memory.
//  5. Release every held lock with the new write version.
//  6. Publish allocations and frees into the region's segment list.
//
// Whatever the outcome, the transaction is destroyed and must not be used
// again.
func (tx *Transaction) End() bool {
	if tx.destroyed {
		return false
	}
	if tx.mode == ReadOnly {
		tx.destroy()
		return true
	}

	start := time.Now()
	r := tx.region

	locks := tx.uniqueWriteLocks()
	acquired := make([]*versionedLock, 0, len(locks))
	for _, lock := range locks {
		if !lock.tryAcquire() {
			for _, held := range acquired {
				held.release()
			}
			tx.abort(reasonLockConflict)
			return false
		}
		acquired = append(acquired, lock)
	}

	// versionClock.increment uses atomic.AddUint64, which returns the
	// post-increment value directly (unlike a fetch-and-add that returns
	// the prior value), so the result is already this commit's wv.
	wv := r.clock.increment()
	tx.wv = wv

	if wv != tx.rv+1 {
		held := make(map[*versionedLock]struct{}, len(acquired))
		for _, lock := range acquired {
			if !lock.validate(tx.rv, false) {
				for _, h := range acquired {
					h.release()
				}
				tx.abort(reasonLockConflict)
				return false
			}
			held[lock] = struct{}{}
		}
		for addr := range tx.readSet {
			lock := r.locks.lockFor(addr)
			_, ownedByUs := held[lock]
			if !lock.validate(tx.rv, !ownedByUs) {
				for _, h := range acquired {
					h.release()
				}
				tx.abort(reasonReadValidation)
				return false
			}
		}
	}

	for _, entry := range tx.writeBufs {
		copy(wordBytes(entry.addr, r.align), entry.buf)
	}
	for _, lock := range acquired {
		lock.releaseWithVersion(wv)
	}

	r.publish(tx.allocSet, tx.freeSet)

	r.metrics.commits.Inc()
	r.metrics.commitLatency.Observe(time.Since(start).Seconds())
	logCommit(r.logger, wv, len(tx.writeBufs), len(tx.allocSet), len(tx.freeSet))

	tx.destroy()
	return true
}

// uniqueWriteLocks deduplicates the write set down to its distinct
// versioned locks (multiple addresses may share a lock slot) and returns
// them ordered by lock-table slot index, giving every transaction the same
// global acquisition order and so ruling out cross-commit deadlock.
func (tx *Transaction) uniqueWriteLocks() []*versionedLock {
	if len(tx.writeOrder) == 0 {
		return nil
	}
	seen := make(map[*versionedLock]struct{}, len(tx.writeOrder))
	locks := make([]*versionedLock, 0, len(tx.writeOrder))
	for _, addr := range tx.writeOrder {
		lock := tx.region.locks.lockFor(addr)
		if _, ok := seen[lock]; ok {
			continue
		}
		seen[lock] = struct{}{}
		locks = append(locks, lock)
	}
	sortLocksBySlot(locks, tx.region.locks)
	return locks
}

func sortLocksBySlot(locks []*versionedLock, table *lockTable) {
	slot := func(l *versionedLock) uintptr {
		return uintptr(unsafe.Pointer(l)) - uintptr(unsafe.Pointer(&table.slots[0]))
	}
	for i := 1; i < len(locks); i++ {
		for j := i; j > 0 && slot(locks[j-1]) > slot(locks[j]); j-- {
			locks[j-1], locks[j] = locks[j], locks[j-1]
		}
	}
}
