package landgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    admitCounter  prometheus.Counter
//	    pathHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAdmit(duration time.Duration, err error) {
//	    p.admitCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAdmit is called after each admission.
	// duration is the total time taken, err is nil if successful.
	RecordAdmit(duration time.Duration, err error)

	// RecordShortestPath is called after each path query.
	// found is false when the endpoints could not be bridged.
	RecordShortestPath(duration time.Duration, found bool)

	// RecordFlush is called after each persistence flush.
	// count is the number of entries written.
	RecordFlush(count int, duration time.Duration, err error)

	// RecordRepair is called after each consistency pass.
	// edges is the number scanned, repaired the number of genuine
	// inconsistencies fixed.
	RecordRepair(edges, repaired int, duration time.Duration)

	// RecordMerge is called after each merge.
	RecordMerge(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdmit(time.Duration, error)       {}
func (NoopMetricsCollector) RecordShortestPath(time.Duration, bool) {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRepair(int, int, time.Duration)   {}
func (NoopMetricsCollector) RecordMerge(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AdmitCount      atomic.Int64
	AdmitErrors     atomic.Int64
	AdmitTotalNanos atomic.Int64
	PathCount       atomic.Int64
	PathMisses      atomic.Int64
	PathTotalNanos  atomic.Int64
	FlushCount      atomic.Int64
	FlushEntries    atomic.Int64
	FlushErrors     atomic.Int64
	RepairCount     atomic.Int64
	RepairEdges     atomic.Int64
	RepairFixed     atomic.Int64
	MergeCount      atomic.Int64
	MergeErrors     atomic.Int64
}

// RecordAdmit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdmit(duration time.Duration, err error) {
	b.AdmitCount.Add(1)
	b.AdmitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AdmitErrors.Add(1)
	}
}

// RecordShortestPath implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShortestPath(duration time.Duration, found bool) {
	b.PathCount.Add(1)
	b.PathTotalNanos.Add(duration.Nanoseconds())
	if !found {
		b.PathMisses.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(count int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushEntries.Add(int64(count))
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordRepair implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRepair(edges, repaired int, duration time.Duration) {
	b.RepairCount.Add(1)
	b.RepairEdges.Add(int64(edges))
	b.RepairFixed.Add(int64(repaired))
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(duration time.Duration, err error) {
	b.MergeCount.Add(1)
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AdmitCount:    b.AdmitCount.Load(),
		AdmitErrors:   b.AdmitErrors.Load(),
		AdmitAvgNanos: b.getAvgAdmitNanos(),
		PathCount:     b.PathCount.Load(),
		PathMisses:    b.PathMisses.Load(),
		PathAvgNanos:  b.getAvgPathNanos(),
		FlushCount:    b.FlushCount.Load(),
		FlushEntries:  b.FlushEntries.Load(),
		FlushErrors:   b.FlushErrors.Load(),
		RepairCount:   b.RepairCount.Load(),
		RepairEdges:   b.RepairEdges.Load(),
		RepairFixed:   b.RepairFixed.Load(),
		MergeCount:    b.MergeCount.Load(),
		MergeErrors:   b.MergeErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAdmitNanos() int64 {
	count := b.AdmitCount.Load()
	if count == 0 {
		return 0
	}
	return b.AdmitTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgPathNanos() int64 {
	count := b.PathCount.Load()
	if count == 0 {
		return 0
	}
	return b.PathTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AdmitCount    int64
	AdmitErrors   int64
	AdmitAvgNanos int64
	PathCount     int64
	PathMisses    int64
	PathAvgNanos  int64
	FlushCount    int64
	FlushEntries  int64
	FlushErrors   int64
	RepairCount   int64
	RepairEdges   int64
	RepairFixed   int64
	MergeCount    int64
	MergeErrors   int64
}
