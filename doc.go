// Package stm implements a TL2-style software transactional memory engine:
// optimistic, lock+version based concurrency control over a shared,
// word-addressed memory region.
//
// A Region owns a first, non-freeable segment of aligned memory plus any
// number of segments allocated by committed transactions. Callers open
// Transactions against a Region, issue reads, writes, allocations and frees
// against it, then End it. End reports whether the transaction committed;
// on any intermediate failure the transaction is already torn down and must
// not be used again.
//
// The engine never blocks, retries, or sleeps: lock acquisition is a single
// non-blocking try, and on conflict the transaction aborts immediately. It is
// the caller's responsibility to retry with a fresh Begin.
package stm
