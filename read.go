package stm

import "unsafe"

// Read copies size bytes from shared memory starting at src into the
// caller-private buffer dst. size must be a positive multiple of the
// region's alignment. Reads are performed word by word: each word is
// pre-validated against the transaction's read version, read (from the
// transaction's own write set if it has buffered a write there, otherwise
// from shared memory), then post-validated. A failure at any word aborts
// the whole transaction and the call returns false; the caller must not use
// tx again.
func (tx *Transaction) Read(src unsafe.Pointer, size uintptr, dst unsafe.Pointer) bool {
	if tx.destroyed {
		return false
	}
	align := tx.region.align
	if size == 0 || size%align != 0 {
		tx.abort(reasonInvalidArgument)
		return false
	}

	words := size / align
	dstBytes := unsafe.Slice((*byte)(dst), int(size))

	for i := uintptr(0); i < words; i++ {
		wordAddr := unsafe.Add(src, i*align)
		lock := tx.region.locks.lockFor(wordAddr)

		if !lock.validate(tx.rv, true) {
			tx.abort(reasonLockConflict)
			return false
		}

		var value []byte
		if tx.mode == ReadWrite {
			if buf, ok := tx.bufferedWrite(wordAddr); ok {
				value = buf
			}
		}
		if value == nil {
			value = wordBytes(wordAddr, align)
		}
		copy(dstBytes[i*align:(i+1)*align], value)

		if !lock.validate(tx.rv, true) {
			tx.abort(reasonLockConflict)
			return false
		}

		if tx.mode == ReadWrite {
			tx.readSet[wordAddr] = struct{}{}
		}
	}
	return true
}

// abort tears down the transaction on a failed operation and records why.
func (tx *Transaction) abort(reason string) {
	tx.region.metrics.aborts.WithLabelValues(reason).Inc()
	logAbort(tx.region.logger, reason)
	tx.destroy()
}
