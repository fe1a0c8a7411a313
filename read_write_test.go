package stm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSingleThreadedWriteRead checks a value written by one committed
// transaction is visible, unchanged, to a later transaction.
func TestSingleThreadedWriteRead(t *testing.T) {
	r, err := NewRegion(64, 8)
	require.NoError(t, err)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	txw, err := r.Begin(false)
	require.NoError(t, err)
	require.True(t, txw.Write(unsafePointerOf(payload), 8, r.Start()))
	require.True(t, txw.End())

	txr, err := r.Begin(true)
	require.NoError(t, err)
	dst := make([]byte, 8)
	require.True(t, txr.Read(r.Start(), 8, unsafePointerOf(dst)))
	require.True(t, txr.End())

	require.Equal(t, payload, dst)
}

// TestReadAfterOwnWriteBypass checks a transaction reading a word it has
// already written sees its own buffered value, not shared memory.
func TestReadAfterOwnWriteBypass(t *testing.T) {
	r, err := NewRegion(64, 8)
	require.NoError(t, err)

	written := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}

	tx, err := r.Begin(false)
	require.NoError(t, err)
	require.True(t, tx.Write(unsafePointerOf(written), 8, r.Start()))

	dst := make([]byte, 8)
	require.True(t, tx.Read(r.Start(), 8, unsafePointerOf(dst)))
	require.Equal(t, written, dst)
	require.True(t, tx.End())
}

func TestWriteSameWordTwiceSupersedes(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	first := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	second := []byte{2, 2, 2, 2, 2, 2, 2, 2}

	tx, err := r.Begin(false)
	require.NoError(t, err)
	require.True(t, tx.Write(unsafePointerOf(first), 8, r.Start()))
	require.True(t, tx.Write(unsafePointerOf(second), 8, r.Start()))
	require.True(t, tx.End())

	txr, err := r.Begin(true)
	require.NoError(t, err)
	dst := make([]byte, 8)
	require.True(t, txr.Read(r.Start(), 8, unsafePointerOf(dst)))
	require.True(t, txr.End())
	require.Equal(t, second, dst)
}

func TestReadOnlyTransactionIsRepeatable(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	tx, err := r.Begin(true)
	require.NoError(t, err)

	a := make([]byte, 8)
	b := make([]byte, 8)
	require.True(t, tx.Read(r.Start(), 8, unsafePointerOf(a)))
	require.True(t, tx.Read(r.Start(), 8, unsafePointerOf(b)))
	require.Equal(t, a, b)
	require.True(t, tx.End())
}

func TestWriteOnReadOnlyTransactionIsIllegal(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	tx, err := r.Begin(true)
	require.NoError(t, err)

	payload := make([]byte, 8)
	require.False(t, tx.Write(unsafePointerOf(payload), 8, r.Start()))
}

func TestWriteRejectsSizeNotMultipleOfAlign(t *testing.T) {
	r, err := NewRegion(8, 8)
	require.NoError(t, err)

	tx, err := r.Begin(false)
	require.NoError(t, err)

	payload := make([]byte, 3)
	require.False(t, tx.Write(unsafePointerOf(payload), 3, r.Start()))
}

func TestEntireBaseSegmentRoundTrip(t *testing.T) {
	r, err := NewRegion(64, 8)
	require.NoError(t, err)

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}

	tx, err := r.Begin(false)
	require.NoError(t, err)
	require.True(t, tx.Write(unsafePointerOf(payload), 64, r.Start()))
	require.True(t, tx.End())

	txr, err := r.Begin(true)
	require.NoError(t, err)
	dst := make([]byte, 64)
	require.True(t, txr.Read(r.Start(), 64, unsafePointerOf(dst)))
	require.True(t, txr.End())
	require.Equal(t, payload, dst)
}
