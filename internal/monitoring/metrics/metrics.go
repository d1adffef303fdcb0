// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides performance monitoring and observability
// for the lock-free sorted vector.
//
// This package implements thread-safe metrics collection using buffered channels
// and ring buffers. It tracks operation counts and latencies, contention
// (compare-and-swap and protection retries), reclamation activity and the
// occupancy of the memory bank and hazard registry.
//
// # Key Features
//
//   - Non-blocking recording through a buffered event channel
//   - Background processing of events
//   - Latency percentiles from bounded ring buffers
//   - Contention counters for publish and protect loops
//   - Reclamation counters (scans, reclaimed, orphaned slots)
//   - Gauges for bank, registry and retired-list occupancy
//   - JSON export and a Prometheus collector
//
// # Usage Examples
//
//	m := metrics.NewMetrics()
//	defer m.Close()
//
//	start := time.Now()
//	// ... insert ...
//	m.RecordInsert(time.Since(start), retries)
//
//	m.Flush()
//	stats := m.GetStats()
//	fmt.Printf("inserts: %d, p99: %v\n", stats.Operations.Insert, stats.Latency.Insert.P99)
//
// # Dangers and Warnings
//
//   - **Background Goroutine**: Requires proper cleanup with Close()
//   - **Event Loss**: If the buffer is full, events are dropped rather than blocking the caller
//   - **Stats Latency**: Counters lag recording until the processor catches up; call Flush first
//
// # Thread Safety
//
// All metrics operations are thread-safe and can be called concurrently
// from multiple goroutines.
//
// # See Also
//
// For the Prometheus adapter, see collector.go.
package metrics

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// LatencyStats provides latency statistics
type LatencyStats struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	P999  time.Duration `json:"p999"`
}

// OperationCounts tracks counts for all operation types
type OperationCounts struct {
	Insert uint64 `json:"insert"`
	At     uint64 `json:"at"`
	Batch  uint64 `json:"batch"`
	Scan   uint64 `json:"scan"`
}

// ContentionCounts tracks retry loops
type ContentionCounts struct {
	PublishRetries uint64 `json:"publish_retries"`
	ProtectRetries uint64 `json:"protect_retries"`
	Clones         uint64 `json:"clones"`
}

// ErrorCounts tracks errors by kind
type ErrorCounts struct {
	Exhausted  uint64 `json:"exhausted"`
	Contention uint64 `json:"contention"`
	OutOfRange uint64 `json:"out_of_range"`
	Violations uint64 `json:"violations"`
}

// MemoryMetrics tracks reclamation and occupancy
type MemoryMetrics struct {
	Reclaimed     uint64 `json:"reclaimed"`
	Orphaned      uint64 `json:"orphaned"`
	BankFree      uint64 `json:"bank_free"`
	BankCapacity  uint64 `json:"bank_capacity"`
	HazardRecords uint64 `json:"hazard_records"`
	Retired       uint64 `json:"retired"`
}

// LatencyMetrics tracks latency data for all operations
type LatencyMetrics struct {
	Insert LatencyStats `json:"insert"`
	At     LatencyStats `json:"at"`
	Scan   LatencyStats `json:"scan"`
}

// MetricsSnapshot provides a complete snapshot of all metrics
type MetricsSnapshot struct {
	Operations    OperationCounts  `json:"operations"`
	Contention    ContentionCounts `json:"contention"`
	Errors        ErrorCounts      `json:"errors"`
	Memory        MemoryMetrics    `json:"memory"`
	Latency       LatencyMetrics   `json:"latency"`
	Configuration MetricsConfig    `json:"config"`
}

// MetricEvent represents a single metric event
type MetricEvent struct {
	Type      string
	Duration  time.Duration
	Value     uint64
	Timestamp time.Time
	done      chan struct{}
}

// DurationRingBuffer implements a thread-safe bounded ring buffer for time.Duration
type DurationRingBuffer struct {
	buffer []time.Duration
	head   int
	tail   int
	size   int
	count  int
	mu     sync.RWMutex
}

// NewDurationRingBuffer creates a new ring buffer with specified capacity
func NewDurationRingBuffer(capacity int) *DurationRingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &DurationRingBuffer{
		buffer: make([]time.Duration, capacity),
		size:   capacity,
	}
}

// Push adds an item to the ring buffer
func (rb *DurationRingBuffer) Push(item time.Duration) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % rb.size
	}
}

// GetAverage calculates the average of time.Duration values in the buffer
func (rb *DurationRingBuffer) GetAverage() time.Duration {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return 0
	}

	var total time.Duration
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % rb.size
		total += rb.buffer[idx]
	}

	return total / time.Duration(rb.count)
}

// GetStats calculates latency statistics
func (rb *DurationRingBuffer) GetStats() LatencyStats {
	rb.mu.RLock()
	if rb.count == 0 {
		rb.mu.RUnlock()
		return LatencyStats{}
	}

	// Copy values to avoid holding lock during sort
	values := make([]time.Duration, rb.count)
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % rb.size
		values[i] = rb.buffer[idx]
	}
	rb.mu.RUnlock()

	sort.Slice(values, func(i, j int) bool {
		return values[i] < values[j]
	})

	stats := LatencyStats{
		Count: uint64(len(values)),
		Min:   values[0],
		Max:   values[len(values)-1],
	}

	var total time.Duration
	for _, v := range values {
		total += v
	}
	stats.Mean = total / time.Duration(len(values))

	stats.P50 = percentile(values, 0.50)
	stats.P95 = percentile(values, 0.95)
	stats.P99 = percentile(values, 0.99)
	stats.P999 = percentile(values, 0.999)

	return stats
}

// percentile calculates the nth percentile from sorted values
func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}

	index := int(float64(len(values)-1) * p)
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

// MetricsConfig provides configuration options for metrics collection
type MetricsConfig struct {
	BufferSize     int            `json:"buffer_size"`     // Size of event buffer
	LatencyBuffers map[string]int `json:"latency_buffers"` // Per-operation ring buffer sizes
}

// DefaultMetricsConfig returns a default configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		BufferSize: 10000,
		LatencyBuffers: map[string]int{
			"insert": 1000,
			"at":     1000,
			"scan":   100,
		},
	}
}

// Metrics tracks performance metrics using buffered channels and ring buffers
type Metrics struct {
	config MetricsConfig

	eventChan chan MetricEvent
	closed    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.RWMutex

	// Operation counts
	InsertCount uint64
	AtCount     uint64
	BatchCount  uint64
	ScanCount   uint64

	// Latency tracking
	InsertLatency *DurationRingBuffer
	AtLatency     *DurationRingBuffer
	ScanLatency   *DurationRingBuffer

	// Contention
	PublishRetries uint64
	ProtectRetries uint64
	Clones         uint64

	// Errors
	ExhaustedErrors  uint64
	ContentionErrors uint64
	OutOfRangeErrors uint64
	Violations       uint64

	// Reclamation and occupancy
	Reclaimed     uint64
	Orphaned      uint64
	BankFree      uint64
	BankCapacity  uint64
	HazardRecords uint64
	Retired       uint64
}

// NewMetrics creates a new metrics instance with default configuration
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(DefaultMetricsConfig())
}

// NewBufferedMetrics creates a new metrics instance with configurable buffer size
func NewBufferedMetrics(bufferSize int) *Metrics {
	config := DefaultMetricsConfig()
	config.BufferSize = bufferSize
	return NewMetricsWithConfig(config)
}

// NewMetricsWithConfig creates a new metrics instance with custom configuration
func NewMetricsWithConfig(config MetricsConfig) *Metrics {
	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		config:        config,
		eventChan:     make(chan MetricEvent, config.BufferSize),
		ctx:           ctx,
		cancel:        cancel,
		InsertLatency: NewDurationRingBuffer(config.LatencyBuffers["insert"]),
		AtLatency:     NewDurationRingBuffer(config.LatencyBuffers["at"]),
		ScanLatency:   NewDurationRingBuffer(config.LatencyBuffers["scan"]),
	}

	metrics.wg.Add(1)
	go metrics.processEvents()

	return metrics
}

// processEvents runs in background goroutine to process metric events
func (m *Metrics) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.eventChan:
			m.processEvent(event)
		case <-m.ctx.Done():
			return
		}
	}
}

// processEvent handles a single metric event
func (m *Metrics) processEvent(event MetricEvent) {
	if event.done != nil {
		close(event.done)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Type {
	case "insert":
		m.InsertCount++
		m.PublishRetries += event.Value
		m.InsertLatency.Push(event.Duration)
	case "at":
		m.AtCount++
		m.AtLatency.Push(event.Duration)
	case "batch":
		m.BatchCount++
		m.PublishRetries += event.Value
	case "scan":
		m.ScanCount++
		m.Reclaimed += event.Value
		m.ScanLatency.Push(event.Duration)
	case "protect_retry":
		m.ProtectRetries += event.Value
	case "clone":
		m.Clones++
	case "orphaned":
		m.Orphaned += event.Value
	case "reclaimed":
		m.Reclaimed += event.Value
	case "error_exhausted":
		m.ExhaustedErrors++
	case "error_contention":
		m.ContentionErrors++
	case "error_out_of_range":
		m.OutOfRangeErrors++
	case "error_violation":
		m.Violations++
	}
}

func (m *Metrics) send(event MetricEvent) {
	if m == nil || m.closed.Load() {
		return
	}
	event.Timestamp = time.Now()
	select {
	case m.eventChan <- event:
	default:
		// Channel full, drop the event to avoid blocking
	}
}

// RecordInsert records a completed insert and how many publish attempts it lost
func (m *Metrics) RecordInsert(duration time.Duration, retries int) {
	m.send(MetricEvent{Type: "insert", Duration: duration, Value: uint64(retries)})
}

// RecordAt records an indexed read
func (m *Metrics) RecordAt(duration time.Duration) {
	m.send(MetricEvent{Type: "at", Duration: duration})
}

// RecordBatch records a batch publish
func (m *Metrics) RecordBatch(duration time.Duration, retries int) {
	m.send(MetricEvent{Type: "batch", Duration: duration, Value: uint64(retries)})
}

// RecordScan records a reclamation scan
func (m *Metrics) RecordScan(duration time.Duration, reclaimed int) {
	m.send(MetricEvent{Type: "scan", Duration: duration, Value: uint64(reclaimed)})
}

// RecordProtectRetries records failed hazard reconfirmations
func (m *Metrics) RecordProtectRetries(n int) {
	if n == 0 {
		return
	}
	m.send(MetricEvent{Type: "protect_retry", Value: uint64(n)})
}

// RecordClone records a snapshot copy into a fresh slot
func (m *Metrics) RecordClone() {
	m.send(MetricEvent{Type: "clone"})
}

// RecordOrphaned records retired entries handed off by an exiting session
func (m *Metrics) RecordOrphaned(n int) {
	m.send(MetricEvent{Type: "orphaned", Value: uint64(n)})
}

// RecordReclaimed records slots returned outside of a scan
func (m *Metrics) RecordReclaimed(n int) {
	m.send(MetricEvent{Type: "reclaimed", Value: uint64(n)})
}

// RecordError records an error of the given kind
// (exhausted, contention, out_of_range, violation)
func (m *Metrics) RecordError(kind string) {
	m.send(MetricEvent{Type: "error_" + kind})
}

// SetOccupancy sets the bank, registry and retired-list gauges
func (m *Metrics) SetOccupancy(bankFree, bankCapacity, hazardRecords, retired int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BankFree = uint64(bankFree)
	m.BankCapacity = uint64(bankCapacity)
	m.HazardRecords = uint64(hazardRecords)
	m.Retired = uint64(retired)
}

// Flush blocks until every event recorded before the call has been processed
func (m *Metrics) Flush() {
	if m == nil || m.closed.Load() {
		return
	}
	done := make(chan struct{})
	select {
	case m.eventChan <- MetricEvent{Type: "flush", done: done}:
	case <-m.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-m.ctx.Done():
	}
}

// GetStats returns a snapshot of current metrics
func (m *Metrics) GetStats() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		Operations: OperationCounts{
			Insert: m.InsertCount,
			At:     m.AtCount,
			Batch:  m.BatchCount,
			Scan:   m.ScanCount,
		},
		Contention: ContentionCounts{
			PublishRetries: m.PublishRetries,
			ProtectRetries: m.ProtectRetries,
			Clones:         m.Clones,
		},
		Errors: ErrorCounts{
			Exhausted:  m.ExhaustedErrors,
			Contention: m.ContentionErrors,
			OutOfRange: m.OutOfRangeErrors,
			Violations: m.Violations,
		},
		Memory: MemoryMetrics{
			Reclaimed:     m.Reclaimed,
			Orphaned:      m.Orphaned,
			BankFree:      m.BankFree,
			BankCapacity:  m.BankCapacity,
			HazardRecords: m.HazardRecords,
			Retired:       m.Retired,
		},
		Latency: LatencyMetrics{
			Insert: m.InsertLatency.GetStats(),
			At:     m.AtLatency.GetStats(),
			Scan:   m.ScanLatency.GetStats(),
		},
		Configuration: m.config,
	}
}

// ExportJSON exports metrics as JSON
func (m *Metrics) ExportJSON() []byte {
	stats := m.GetStats()
	jsonData, _ := json.MarshalIndent(stats, "", "  ")
	return jsonData
}

// Close shuts down the metrics processor
func (m *Metrics) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.cancel()
	m.wg.Wait()
}
