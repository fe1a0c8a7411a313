package stm

import "sync/atomic"

// versionClock is the region's global, monotonically non-decreasing
// version counter. Every committed read-write transaction bumps it exactly
// once; read-only transactions never touch it.
type versionClock uint64

func (c *versionClock) load() uint64 {
	return atomic.LoadUint64((*uint64)(c))
}

func (c *versionClock) increment() uint64 {
	return atomic.AddUint64((*uint64)(c), 1)
}
