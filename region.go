package stm

import (
	"sync"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Region is a shared-memory handle: a first, non-freeable base segment plus
// whatever dynamic segments committed transactions have allocated, a lock
// table keyed by address hash, and the global version clock. All of a
// Region's exported methods are safe to call from multiple goroutines
// concurrently; a Transaction obtained from it is not.
type Region struct {
	base  *segment
	align uintptr

	clock versionClock
	locks *lockTable

	segmentsMu sync.Mutex
	segments   []*segment // base first; owned exclusively by the region

	logger  log.Logger
	metrics *regionMetrics
}

// Option configures a Region at construction time.
type Option func(*regionConfig)

type regionConfig struct {
	logger        log.Logger
	registerer    prometheus.Registerer
	lockTableSize uint32
}

// WithLogger attaches a structured logger. Default is a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *regionConfig) { c.logger = logger }
}

// WithRegisterer attaches a Prometheus registerer for commit/abort/segment
// metrics. Default registers nowhere (a private, unread registry), so a
// Region is always safe to construct without a metrics backend.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *regionConfig) { c.registerer = reg }
}

// WithLockTableSize overrides the number of slots in the address-hashed
// lock table. Smaller tables raise the false-conflict rate (useful for
// exercising collision-handling in tests); the default is sized so
// collisions are rare for ordinary working sets.
func WithLockTableSize(size uint32) Option {
	return func(c *regionConfig) { c.lockTableSize = size }
}

// NewRegion creates a shared memory region with one base segment of the
// requested size and alignment. size must be a positive multiple of align;
// align must be a positive power of two; size must fit in 48 bits.
func NewRegion(size, align uintptr, opts ...Option) (*Region, error) {
	cfg := regionConfig{
		logger:     log.NewNopLogger(),
		registerer: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	base, err := newSegment(size, align)
	if err != nil {
		return nil, err
	}

	r := &Region{
		base:     base,
		align:    align,
		locks:    newLockTable(cfg.lockTableSize, align),
		segments: []*segment{base},
		logger:   cfg.logger,
		metrics:  newRegionMetrics(cfg.registerer),
	}
	r.metrics.segmentsLive.Set(1)
	logRegionCreated(r.logger, size, align)
	return r, nil
}

// Close releases every segment the region owns, including the base
// segment, and the lock table. The caller must ensure no transactions are
// in flight against r.
func (r *Region) Close() error {
	r.segmentsMu.Lock()
	r.segments = nil
	r.segmentsMu.Unlock()
	r.base = nil
	r.locks = nil
	logRegionClosed(r.logger)
	return nil
}

// Start returns the start address of the region's base segment.
func (r *Region) Start() unsafe.Pointer { return r.base.base }

// Size returns the size, in bytes, of the region's base segment.
func (r *Region) Size() uintptr { return r.base.size }

// Align returns the alignment, in bytes, shared by every word in the region.
func (r *Region) Align() uintptr { return r.align }

// Begin opens a new transaction against the region. readOnly transactions
// may only read and never enter the lock/commit path; their reads can still
// abort on a conflicting word. Begin itself always returns a nil error.
func (r *Region) Begin(readOnly bool) (*Transaction, error) {
	mode := ReadWrite
	if readOnly {
		mode = ReadOnly
	}
	return newTransaction(r, mode), nil
}

// publish appends newly allocated segments to the region's owned sequence
// and removes freed ones, returning their memory to the host allocator by
// dropping the region's last reference to them. It is the only mutator of
// r.segments and runs only at commit time, so a short mutex is sufficient
// even under heavy concurrent commit traffic.
func (r *Region) publish(allocSet, freeSet []*segment) {
	if len(allocSet) == 0 && len(freeSet) == 0 {
		return
	}
	r.segmentsMu.Lock()
	defer r.segmentsMu.Unlock()

	r.segments = append(r.segments, allocSet...)
	if len(freeSet) > 0 {
		freed := make(map[*segment]struct{}, len(freeSet))
		for _, s := range freeSet {
			freed[s] = struct{}{}
		}
		kept := r.segments[:0:0]
		for _, s := range r.segments {
			if _, gone := freed[s]; !gone {
				kept = append(kept, s)
			}
		}
		r.segments = kept
	}
	r.metrics.segmentsLive.Set(float64(len(r.segments)))
}

// segmentCount returns the number of segments currently owned by the
// region, including the base segment.
func (r *Region) segmentCount() int {
	r.segmentsMu.Lock()
	defer r.segmentsMu.Unlock()
	return len(r.segments)
}

// segmentFor returns the segment containing addr, or nil if none does.
// Used by Free to find the segment to schedule for removal at commit.
func (r *Region) segmentFor(addr unsafe.Pointer) *segment {
	r.segmentsMu.Lock()
	defer r.segmentsMu.Unlock()
	for _, s := range r.segments {
		if s.contains(addr) {
			return s
		}
	}
	return nil
}
