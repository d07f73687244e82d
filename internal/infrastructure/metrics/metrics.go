// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus counters and histograms for mask and
// verification operations, following the registry-scoped Init/Record pattern used
// elsewhere in the ecosystem for proxy and gateway services.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	verdictTotal      *prometheus.CounterVec
	lock              sync.Mutex
)

// Init registers every masklink metric against reg. It must be called exactly once
// at process startup, before any Record* call.
func Init(reg prometheus.Registerer) error {
	lock.Lock()
	defer lock.Unlock()

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "masklink",
			Name:      "operations_total",
			Help:      "Total number of core mask/verify operations, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	if err := reg.Register(operationsTotal); err != nil {
		return fmt.Errorf("failed to register operationsTotal: %w", err)
	}

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "masklink",
			Name:      "operation_duration_seconds",
			Help:      "Latency of core mask/verify operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	if err := reg.Register(operationDuration); err != nil {
		return fmt.Errorf("failed to register operationDuration: %w", err)
	}

	verdictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "masklink",
			Name:      "verify_remote_resource_verdicts_total",
			Help:      "Counts of verifyRemoteResource verdict booleans, by boolean name and value",
		},
		[]string{"boolean", "value"},
	)
	if err := reg.Register(verdictTotal); err != nil {
		return fmt.Errorf("failed to register verdictTotal: %w", err)
	}

	return nil
}

// RecordOperation records the outcome (e.g. "ok", "error") of a single call to one
// of the core's public operations, and its latency in seconds.
func RecordOperation(operation, outcome string, durationSeconds float64) {
	lock.Lock()
	defer lock.Unlock()
	if operationsTotal != nil {
		operationsTotal.WithLabelValues(operation, outcome).Inc()
	}
	if operationDuration != nil {
		operationDuration.WithLabelValues(operation).Observe(durationSeconds)
	}
}

// RecordVerdict records one of the four verdict booleans out of a completed
// verifyRemoteResource call, so a regression in trust/validity/match/unchanged rates
// is visible without reading application logs.
func RecordVerdict(boolean string, value bool) {
	lock.Lock()
	defer lock.Unlock()
	if verdictTotal == nil {
		return
	}
	v := "false"
	if value {
		v = "true"
	}
	verdictTotal.WithLabelValues(boolean, v).Inc()
}
