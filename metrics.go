package thumbgrid

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Methods are called from the owning goroutine and from decode workers, so
// implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordSettle is called for every planned generation.
	// tasks is the number of visible rows, hits the number served from cache.
	RecordSettle(tasks, hits int)

	// RecordDecode is called after each decode that was not superseded.
	RecordDecode(duration time.Duration, err error)

	// RecordSuperseded is called for each result dropped because a newer
	// generation started.
	RecordSuperseded()

	// RecordBatch is called for each batch handed to the sink.
	RecordBatch(size, failed int)

	// RecordRepaint is called for each repaint request.
	RecordRepaint()

	// RecordCacheCapacity is called whenever the cache capacity changes.
	RecordCacheCapacity(capacity int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSettle(int, int)             {}
func (NoopMetricsCollector) RecordDecode(time.Duration, error) {}
func (NoopMetricsCollector) RecordSuperseded()                 {}
func (NoopMetricsCollector) RecordBatch(int, int)              {}
func (NoopMetricsCollector) RecordRepaint()                    {}
func (NoopMetricsCollector) RecordCacheCapacity(int64)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SettleCount      atomic.Int64
	SettleTasks      atomic.Int64
	SettleHits       atomic.Int64
	DecodeCount      atomic.Int64
	DecodeErrors     atomic.Int64
	DecodeTotalNanos atomic.Int64
	SupersededCount  atomic.Int64
	BatchCount       atomic.Int64
	BatchItems       atomic.Int64
	BatchFailed      atomic.Int64
	RepaintCount     atomic.Int64
	CacheCapacity    atomic.Int64
}

// RecordSettle implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSettle(tasks, hits int) {
	b.SettleCount.Add(1)
	b.SettleTasks.Add(int64(tasks))
	b.SettleHits.Add(int64(hits))
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(duration time.Duration, err error) {
	b.DecodeCount.Add(1)
	b.DecodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DecodeErrors.Add(1)
	}
}

// RecordSuperseded implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSuperseded() {
	b.SupersededCount.Add(1)
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(size, failed int) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(size))
	b.BatchFailed.Add(int64(failed))
}

// RecordRepaint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRepaint() {
	b.RepaintCount.Add(1)
}

// RecordCacheCapacity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheCapacity(capacity int64) {
	b.CacheCapacity.Store(capacity)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SettleCount:     b.SettleCount.Load(),
		SettleTasks:     b.SettleTasks.Load(),
		SettleHits:      b.SettleHits.Load(),
		DecodeCount:     b.DecodeCount.Load(),
		DecodeErrors:    b.DecodeErrors.Load(),
		DecodeAvgNanos:  b.getAvgDecodeNanos(),
		SupersededCount: b.SupersededCount.Load(),
		BatchCount:      b.BatchCount.Load(),
		BatchItems:      b.BatchItems.Load(),
		BatchFailed:     b.BatchFailed.Load(),
		RepaintCount:    b.RepaintCount.Load(),
		CacheCapacity:   b.CacheCapacity.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgDecodeNanos() int64 {
	count := b.DecodeCount.Load()
	if count == 0 {
		return 0
	}
	return b.DecodeTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SettleCount     int64
	SettleTasks     int64
	SettleHits      int64
	DecodeCount     int64
	DecodeErrors    int64
	DecodeAvgNanos  int64
	SupersededCount int64
	BatchCount      int64
	BatchItems      int64
	BatchFailed     int64
	RepaintCount    int64
	CacheCapacity   int64
}
