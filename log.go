package stm

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Region-level log events: created, destroyed, and (at debug level)
// commit/abort/publish. Per-word read/write traffic is never logged; it
// would dominate any real workload's log volume for no operational value.

func logRegionCreated(logger log.Logger, size, align uintptr) {
	level.Info(logger).Log("msg", "region created", "size", size, "align", align)
}

func logRegionClosed(logger log.Logger) {
	level.Info(logger).Log("msg", "region closed")
}

func logCommit(logger log.Logger, wv uint64, writes, allocs, frees int) {
	level.Debug(logger).Log("msg", "transaction committed", "write_version", wv,
		"writes", writes, "allocs", allocs, "frees", frees)
}

func logAbort(logger log.Logger, reason string) {
	level.Debug(logger).Log("msg", "transaction aborted", "reason", reason)
}
