// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Metrics instance to Prometheus.
type Collector struct {
	metrics *Metrics

	operations *prometheus.Desc
	retries    *prometheus.Desc
	clones     *prometheus.Desc
	errors     *prometheus.Desc
	reclaimed  *prometheus.Desc
	orphaned   *prometheus.Desc
	bankFree   *prometheus.Desc
	bankCap    *prometheus.Desc
	hazards    *prometheus.Desc
	retired    *prometheus.Desc
	latency    *prometheus.Desc
}

// NewCollector creates a collector reading from m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		metrics: m,
		operations: prometheus.NewDesc("lfsv_operations_total",
			"Total number of operations", []string{"operation"}, nil),
		retries: prometheus.NewDesc("lfsv_retries_total",
			"Total number of lost compare-and-swap rounds", []string{"loop"}, nil),
		clones: prometheus.NewDesc("lfsv_clones_total",
			"Total number of snapshot copies", nil, nil),
		errors: prometheus.NewDesc("lfsv_errors_total",
			"Total number of errors", []string{"kind"}, nil),
		reclaimed: prometheus.NewDesc("lfsv_reclaimed_total",
			"Retired snapshots returned to the bank", nil, nil),
		orphaned: prometheus.NewDesc("lfsv_orphaned_total",
			"Retired snapshots handed off by exiting sessions", nil, nil),
		bankFree: prometheus.NewDesc("lfsv_bank_free_slots",
			"Slots in the bank free queue", nil, nil),
		bankCap: prometheus.NewDesc("lfsv_bank_capacity_slots",
			"Total bank slots", nil, nil),
		hazards: prometheus.NewDesc("lfsv_hazard_records",
			"Hazard records ever created", nil, nil),
		retired: prometheus.NewDesc("lfsv_retired_pending",
			"Retired snapshots awaiting reclamation", nil, nil),
		latency: prometheus.NewDesc("lfsv_latency_seconds",
			"Recent operation latency", []string{"operation", "quantile"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.retries
	ch <- c.clones
	ch <- c.errors
	ch <- c.reclaimed
	ch <- c.orphaned
	ch <- c.bankFree
	ch <- c.bankCap
	ch <- c.hazards
	ch <- c.retired
	ch <- c.latency
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.GetStats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(c.operations, s.Operations.Insert, "insert")
	counter(c.operations, s.Operations.At, "at")
	counter(c.operations, s.Operations.Batch, "batch")
	counter(c.operations, s.Operations.Scan, "scan")

	counter(c.retries, s.Contention.PublishRetries, "publish")
	counter(c.retries, s.Contention.ProtectRetries, "protect")
	counter(c.clones, s.Contention.Clones)

	counter(c.errors, s.Errors.Exhausted, "exhausted")
	counter(c.errors, s.Errors.Contention, "contention")
	counter(c.errors, s.Errors.OutOfRange, "out_of_range")
	counter(c.errors, s.Errors.Violations, "violation")

	counter(c.reclaimed, s.Memory.Reclaimed)
	counter(c.orphaned, s.Memory.Orphaned)
	gauge(c.bankFree, s.Memory.BankFree)
	gauge(c.bankCap, s.Memory.BankCapacity)
	gauge(c.hazards, s.Memory.HazardRecords)
	gauge(c.retired, s.Memory.Retired)

	for op, ls := range map[string]LatencyStats{
		"insert": s.Latency.Insert,
		"at":     s.Latency.At,
		"scan":   s.Latency.Scan,
	} {
		ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, ls.P50.Seconds(), op, "0.5")
		ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, ls.P99.Seconds(), op, "0.99")
	}
}
