// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"testing"
	"time"
)

// BenchmarkBufferedMetrics benchmarks the buffered channel-based metrics
func BenchmarkBufferedMetrics(b *testing.B) {
	metrics := NewBufferedMetrics(10000)
	defer metrics.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			metrics.RecordInsert(100*time.Microsecond, 1)
			metrics.RecordAt(20 * time.Microsecond)
		}
	})
}

// BenchmarkBufferedMetricsHighContention benchmarks buffered metrics under high contention
func BenchmarkBufferedMetricsHighContention(b *testing.B) {
	metrics := NewBufferedMetrics(10000)
	defer metrics.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for i := 0; i < 10; i++ {
				metrics.RecordInsert(100*time.Microsecond, 1)
				metrics.RecordAt(20 * time.Microsecond)
				metrics.RecordProtectRetries(1)
				metrics.RecordError("contention")
			}
		}
	})
}
