package feed

import (
	"sync/atomic"
	"time"
)

type consumerMetrics struct {
	totalIngested   int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64
}

func newConsumerMetrics() *consumerMetrics {
	return &consumerMetrics{
		startedNs: time.Now().UnixNano(),
	}
}

func (m *consumerMetrics) recordIngested(duration time.Duration) {
	atomic.AddInt64(&m.totalIngested, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *consumerMetrics) recordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *consumerMetrics) snapshot() map[string]interface{} {
	ingested := atomic.LoadInt64(&m.totalIngested)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	elapsed := time.Since(time.Unix(0, startedNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(ingested) / elapsed
	}

	avgDuration := time.Duration(0)
	if ingested > 0 {
		avgDuration = time.Duration(durationNs / ingested)
	}

	return map[string]interface{}{
		"total_ingested":  ingested,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}
