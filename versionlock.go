package stm

import "sync/atomic"

// versionedLock packs an exclusive-lock bit and a monotone version counter
// into a single atomic word, per the TL2 scheme: bit 63 is the lock, the low
// 63 bits are the version. A lock's version is never decreased.
type versionedLock uint64

// sample atomically reads the lock's raw word, returning both the locked
// bit and the version for use in consistency checks.
func (l *versionedLock) sample() (locked bool, version uint64) {
	v := atomic.LoadUint64((*uint64)(l))
	locked = v>>63 != 0
	version = v & (1<<63 - 1)
	return
}

// tryAcquire sets the lock bit if the lock is free. Non-blocking: a single
// CAS attempt against the last-observed word, retried only while a
// concurrent unlocked-word mutation races the CAS (never while locked).
func (l *versionedLock) tryAcquire() bool {
	for {
		v := atomic.LoadUint64((*uint64)(l))
		if v>>63 != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64((*uint64)(l), v, v|(1<<63)) {
			return true
		}
	}
}

// release clears the lock bit, leaving the version unchanged. Precondition:
// caller holds the lock.
func (l *versionedLock) release() {
	v := atomic.LoadUint64((*uint64)(l))
	atomic.StoreUint64((*uint64)(l), v&(1<<63-1))
}

// releaseWithVersion clears the lock bit and publishes a new version in one
// store. Precondition: caller holds the lock and version >= current version.
func (l *versionedLock) releaseWithVersion(version uint64) {
	atomic.StoreUint64((*uint64)(l), version&(1<<63-1))
}

// validate samples the lock and checks it against a transaction's read
// version. If mustBeUnlocked is set, a held lock also fails validation
// (used for read-set words the committer does not itself hold).
func (l *versionedLock) validate(rv uint64, mustBeUnlocked bool) bool {
	locked, version := l.sample()
	if mustBeUnlocked && locked {
		return false
	}
	return version <= rv
}
