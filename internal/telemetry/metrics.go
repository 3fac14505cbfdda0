// Package telemetry exposes prometheus counters, gauges, and histograms
// for engine activity, registered once at package init via promauto.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PacketsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dagee_packets_submitted_total",
			Help: "Total number of packets submitted to hardware queues, by packet kind.",
		},
		[]string{"kind"},
	)

	SignalPoolOutstanding = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dagee_signals_outstanding",
			Help: "Signals currently checked out of a pool, by flavor.",
		},
		[]string{"flavor"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dagee_queue_depth",
			Help: "Difference between a queue's write index and the driver's read index.",
		},
		[]string{"queue"},
	)

	DAGExecuteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dagee_dag_execute_duration_seconds",
			Help:    "Wall-clock duration of one DAG execute call, from topological launch to sink join.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5, 30},
		},
	)

	KernargAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dagee_kernarg_allocations_total",
			Help: "Kernel-argument heap allocations, by whether they hit the free list or grew a slab.",
		},
		[]string{"outcome"},
	)

	DriverErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dagee_driver_errors_total",
			Help: "Driver-surfaced errors, by operation.",
		},
		[]string{"op"},
	)
)
