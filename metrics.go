package stm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// regionMetrics instruments a Region's commit protocol. It follows the same
// shape as a log-structured store's write-path metrics: counters for the
// terminal outcomes of an operation, broken out by reason where that's
// useful for an operator, plus a latency histogram for the hot path.
type regionMetrics struct {
	commits       prometheus.Counter
	aborts        *prometheus.CounterVec
	segmentsLive  prometheus.Gauge
	commitLatency prometheus.Histogram
}

func newRegionMetrics(reg prometheus.Registerer) *regionMetrics {
	return &regionMetrics{
		commits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "stm_commits_total",
			Help: "stm_commits_total counts read-write transactions that committed.",
		}),
		aborts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stm_aborts_total",
			Help: "stm_aborts_total counts aborted operations by reason.",
		}, []string{"reason"}),
		segmentsLive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "stm_segments_live",
			Help: "stm_segments_live reports the number of segments currently owned by the region, including the base segment.",
		}),
		commitLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "stm_commit_latency_seconds",
			Help:    "stm_commit_latency_seconds observes the wall-clock duration of the commit protocol for read-write transactions that committed.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}

// Abort reasons, used as the "reason" label on stm_aborts_total.
const (
	reasonInvalidArgument = "invalid_argument"
	reasonLockConflict    = "lock_conflict"
	reasonReadValidation  = "read_validation"
)
