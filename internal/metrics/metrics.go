// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SendsTotal counts send attempts by strategy and outcome.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_sends_total",
			Help: "Total number of send operations",
		},
		[]string{"strategy", "outcome"},
	)

	// ReceivesTotal counts receive attempts by strategy and outcome.
	ReceivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_receives_total",
			Help: "Total number of receive operations",
		},
		[]string{"strategy", "outcome"},
	)

	// TransferBytesTotal counts payload bytes moved by strategy and direction.
	TransferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_transfer_bytes_total",
			Help: "Total payload bytes transferred",
		},
		[]string{"strategy", "direction"},
	)

	// OperationLatencySeconds measures send/receive latency.
	OperationLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_operation_latency_seconds",
			Help:    "Latency of transport operations",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
		},
		[]string{"strategy", "direction"},
	)

	// RegionsActive tracks open shared-memory regions per transport instance.
	RegionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_regions_active",
			Help: "Number of shared-memory regions currently mapped",
		},
	)

	// RetriesTotal counts ring-buffer retries (buffer full/empty backoff).
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_ring_retries_total",
			Help: "Total number of ring buffer retry cycles",
		},
		[]string{"direction"},
	)
)
