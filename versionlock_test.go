package stm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionedLockTryAcquireAndRelease(t *testing.T) {
	var l versionedLock

	locked, version := l.sample()
	require.False(t, locked)
	require.EqualValues(t, 0, version)

	require.True(t, l.tryAcquire())
	locked, _ = l.sample()
	require.True(t, locked)

	require.False(t, l.tryAcquire(), "already locked, try-acquire must not block or double-acquire")

	l.release()
	locked, version = l.sample()
	require.False(t, locked)
	require.EqualValues(t, 0, version, "release must not change the version")
}

func TestVersionedLockReleaseWithVersion(t *testing.T) {
	var l versionedLock
	require.True(t, l.tryAcquire())
	l.releaseWithVersion(7)

	locked, version := l.sample()
	require.False(t, locked)
	require.EqualValues(t, 7, version)
}

func TestVersionedLockValidate(t *testing.T) {
	var l versionedLock
	l.releaseWithVersion(5)

	require.True(t, l.validate(5, true))
	require.True(t, l.validate(10, true))
	require.False(t, l.validate(4, true), "version newer than rv must fail validation")

	require.True(t, l.tryAcquire())
	require.False(t, l.validate(10, true), "locked word must fail validation when mustBeUnlocked")
	require.True(t, l.validate(10, false), "locked word held by validator itself may skip the lock check")
	l.release()
}
