package stm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestAllocationCommit checks a segment allocated and written inside a
// committed transaction is visible, with its contents intact, afterward.
func TestAllocationCommit(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	tx, err := r.Begin(false)
	require.NoError(t, err)
	p, status := tx.Alloc(128)
	require.Equal(t, AllocSuccess, status)
	require.NotNil(t, p)

	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.True(t, tx.Write(unsafePointerOf(payload), 128, p))
	require.True(t, tx.End())

	txr, err := r.Begin(true)
	require.NoError(t, err)
	buf := make([]byte, 128)
	require.True(t, txr.Read(p, 128, unsafePointerOf(buf)))
	require.True(t, txr.End())
	require.Equal(t, payload, buf)
}

// TestAllocationRollback checks that a transaction which allocates a
// segment, then writes to a word whose lock is forcibly held by another
// transaction, fails to commit and never publishes the allocated segment
// into the region.
func TestAllocationRollback(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	lock := r.locks.lockFor(r.Start())
	require.True(t, lock.tryAcquire()) // simulate another transaction holding it

	tx, err := r.Begin(false)
	require.NoError(t, err)
	p, status := tx.Alloc(8)
	require.Equal(t, AllocSuccess, status)
	require.True(t, tx.Write(unsafePointerOf(make([]byte, 8)), 8, r.Start()))

	require.False(t, tx.End())
	require.NotNil(t, p)

	// The segment must never have become reachable through the region.
	require.Nil(t, r.segmentFor(p))

	lock.release()
}

func TestAllocFreeSameTransactionLeavesRegionUnchanged(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	before := r.segmentCount()

	tx, err := r.Begin(false)
	require.NoError(t, err)
	p, status := tx.Alloc(8)
	require.Equal(t, AllocSuccess, status)
	require.True(t, tx.Free(p))
	require.True(t, tx.End())

	require.Equal(t, before, r.segmentCount())
}

func TestFreeBaseSegmentAlwaysFails(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	tx, err := r.Begin(false)
	require.NoError(t, err)
	require.False(t, tx.Free(r.Start()))
}

type allocatedWord struct {
	ptr unsafe.Pointer
	idx int
}

// TestManySegmentsStress allocates, verifies, then frees a large number of
// segments one commit at a time, and checks the region's segment count and
// base size return to where they started.
func TestManySegmentsStress(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	const n = 256
	words := make([]allocatedWord, n)
	for i := 0; i < n; i++ {
		tx, err := r.Begin(false)
		require.NoError(t, err)
		p, status := tx.Alloc(8)
		require.Equal(t, AllocSuccess, status)
		payload := make([]byte, 8)
		payload[0] = byte(i)
		payload[1] = byte(i >> 8)
		require.True(t, tx.Write(unsafePointerOf(payload), 8, p))
		require.True(t, tx.End())
		words[i] = allocatedWord{ptr: p, idx: i}
	}

	readAll, err := r.Begin(true)
	require.NoError(t, err)
	for _, w := range words {
		buf := make([]byte, 8)
		require.True(t, readAll.Read(w.ptr, 8, unsafePointerOf(buf)))
		got := int(buf[0]) | int(buf[1])<<8
		require.Equal(t, w.idx, got)
	}
	require.True(t, readAll.End())
	require.Equal(t, n+1, r.segmentCount()) // +1 for the base segment

	for _, w := range words {
		tx, err := r.Begin(false)
		require.NoError(t, err)
		require.True(t, tx.Free(w.ptr))
		require.True(t, tx.End())
	}
	require.Equal(t, 1, r.segmentCount())
	require.EqualValues(t, 8, r.Size())
}
