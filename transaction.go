package stm

import "unsafe"

// Mode selects whether a Transaction may buffer writes and allocations, or
// is restricted to reads.
type Mode int

const (
	// ReadWrite transactions may read, write, allocate, and free; they
	// track a read set for commit-time validation.
	ReadWrite Mode = iota
	// ReadOnly transactions may only read. They skip read-set bookkeeping
	// entirely and never enter the lock/commit path.
	ReadOnly
)

// writeEntry is one buffered write: a privately owned copy of the new value
// for a shared-memory address, pending publication at commit.
type writeEntry struct {
	addr unsafe.Pointer
	buf  []byte
}

// Transaction is a single thread's private, accumulating view of a Region.
// It is not safe for concurrent use by multiple goroutines.
type Transaction struct {
	region *Region
	mode   Mode

	rv uint64 // read version: global clock snapshot taken at Begin
	wv uint64 // write version: set at commit, read-write mode only

	readSet map[unsafe.Pointer]struct{}

	writeOrder []unsafe.Pointer
	writeIndex map[unsafe.Pointer]int
	writeBufs  []writeEntry

	allocSet []*segment
	freeSet  []*segment

	destroyed bool
}

func newTransaction(r *Region, mode Mode) *Transaction {
	tx := &Transaction{
		region: r,
		mode:   mode,
		rv:     r.clock.load(),
	}
	if mode == ReadWrite {
		tx.readSet = make(map[unsafe.Pointer]struct{})
		tx.writeIndex = make(map[unsafe.Pointer]int)
	}
	return tx
}

// bufferedWrite returns the transaction's own pending value for addr, if
// any, for read-after-own-write bypass.
func (tx *Transaction) bufferedWrite(addr unsafe.Pointer) ([]byte, bool) {
	if tx.writeIndex == nil {
		return nil, false
	}
	i, ok := tx.writeIndex[addr]
	if !ok {
		return nil, false
	}
	return tx.writeBufs[i].buf, true
}

// putWrite buffers a write, replacing any prior buffered value for addr.
func (tx *Transaction) putWrite(addr unsafe.Pointer, buf []byte) {
	if i, ok := tx.writeIndex[addr]; ok {
		tx.writeBufs[i].buf = buf
		return
	}
	tx.writeIndex[addr] = len(tx.writeBufs)
	tx.writeOrder = append(tx.writeOrder, addr)
	tx.writeBufs = append(tx.writeBufs, writeEntry{addr: addr, buf: buf})
}

// destroy tears down all transaction-private state: write buffers, the
// read/write sets, and any segments allocated but never published. It is
// idempotent so it can be called from every abort path without bookkeeping
// whether an earlier one already ran.
func (tx *Transaction) destroy() {
	if tx.destroyed {
		return
	}
	tx.destroyed = true
	tx.readSet = nil
	tx.writeOrder = nil
	tx.writeIndex = nil
	tx.writeBufs = nil
	// Segments in allocSet were never published into the region; dropping
	// the last reference here returns them to the host allocator.
	tx.allocSet = nil
	tx.freeSet = nil
}
