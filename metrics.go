package hnswgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives one call per completed index operation.
// The prommetrics package provides a Prometheus-backed implementation.
type MetricsCollector interface {
	// RecordInsert is called after every single-vector insert.
	RecordInsert(duration time.Duration, err error)
	// RecordBatchInsert is called after InsertBatch with the number of
	// vectors attempted and the number not inserted.
	RecordBatchInsert(count, failed int, duration time.Duration)
	// RecordSearch is called after every query with the requested k.
	RecordSearch(k int, duration time.Duration, err error)
	// RecordDelete is called after every delete.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector discards everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)         {}

// OpStats summarizes one kind of operation.
type OpStats struct {
	Count  int64
	Errors int64
	Mean   time.Duration
}

// BatchStats summarizes InsertBatch calls.
type BatchStats struct {
	Calls  int64
	Items  int64
	Failed int64
	Total  time.Duration
}

// MetricsStats is a point-in-time copy of a BasicMetricsCollector.
type MetricsStats struct {
	Insert OpStats
	Search OpStats
	Delete OpStats
	Batch  BatchStats
}

type opCounter struct {
	count  atomic.Int64
	errors atomic.Int64
	nanos  atomic.Int64
}

func (c *opCounter) record(d time.Duration, err error) {
	c.count.Add(1)
	c.nanos.Add(d.Nanoseconds())
	if err != nil {
		c.errors.Add(1)
	}
}

func (c *opCounter) stats() OpStats {
	s := OpStats{Count: c.count.Load(), Errors: c.errors.Load()}
	if s.Count > 0 {
		s.Mean = time.Duration(c.nanos.Load() / s.Count)
	}
	return s
}

// BasicMetricsCollector counts operations in memory.
// The zero value is ready to use and safe for concurrent use.
type BasicMetricsCollector struct {
	insert, search, deletes opCounter

	batchCalls  atomic.Int64
	batchItems  atomic.Int64
	batchFailed atomic.Int64
	batchNanos  atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(d time.Duration, err error) { b.insert.record(d, err) }

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, d time.Duration, err error) {
	b.search.record(d, err)
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(d time.Duration, err error) { b.deletes.record(d, err) }

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, failed int, d time.Duration) {
	b.batchCalls.Add(1)
	b.batchItems.Add(int64(count))
	b.batchFailed.Add(int64(failed))
	b.batchNanos.Add(d.Nanoseconds())
}

// Stats returns the current counters.
func (b *BasicMetricsCollector) Stats() MetricsStats {
	return MetricsStats{
		Insert: b.insert.stats(),
		Search: b.search.stats(),
		Delete: b.deletes.stats(),
		Batch: BatchStats{
			Calls:  b.batchCalls.Load(),
			Items:  b.batchItems.Load(),
			Failed: b.batchFailed.Load(),
			Total:  time.Duration(b.batchNanos.Load()),
		},
	}
}
