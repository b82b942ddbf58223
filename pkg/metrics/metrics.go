// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the ordering pipeline's counters and gauges
// through luxfi/metric, the same Prometheus-backed factory the
// original daemon used for its auction and DA-layer metrics.
package metrics

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter, gauge, and histogram the ordering
// pipeline's components (C1-C9) report against.
type Metrics struct {
	metricsInstance metrics.Metrics

	// Batch Maker (C3)
	BatchesSealed      metrics.Counter
	BatchBytes         metrics.Histogram
	SampleTransactions metrics.Counter

	// Global-Order Aggregator (C4)
	RoundsAggregated   metrics.Counter
	NodesAdmitted      metrics.Counter
	NodesFixed         metrics.Counter
	EdgesAdmitted      metrics.Counter
	AggregationLatency metrics.Histogram

	// SCC Pruner (C5)
	ComponentsPruned metrics.Counter
	NodesPruned      metrics.Counter

	// Missed-Edge Manager (C6)
	MissedEdgesTracked  metrics.Counter
	MissedEdgesResolved metrics.Counter
	MissedEdgesOpen     metrics.Gauge

	// Execution Queue (C7)
	QueueDepth metrics.Gauge

	// Parallel Executor (C8)
	TransactionsExecuted metrics.Counter
	ExecutorStoreMisses  metrics.Counter
	ExecutionLatency     metrics.Histogram

	// Peer Transport (A1)
	PeersConnected    metrics.Gauge
	BroadcastFailures metrics.CounterVec
}

// New constructs the pipeline's Metrics under the "fairdag" namespace.
func New() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	instance := factory.New("fairdag")

	m := &Metrics{metricsInstance: instance}

	m.BatchesSealed = instance.NewCounter("batches_sealed_total", "Total number of batches sealed by the Batch Maker")
	m.BatchBytes = instance.NewHistogram("batch_bytes", "Size in bytes of each sealed batch", prometheus.DefBuckets)
	m.SampleTransactions = instance.NewCounter("sample_transactions_total", "Total number of sample-tx telemetry ids extracted on batch seal")

	m.RoundsAggregated = instance.NewCounter("rounds_aggregated_total", "Total number of rounds the Global-Order Aggregator synthesized")
	m.NodesAdmitted = instance.NewCounter("nodes_admitted_total", "Total number of nodes admitted to a global order")
	m.NodesFixed = instance.NewCounter("nodes_fixed_total", "Total number of nodes marked fixed")
	m.EdgesAdmitted = instance.NewCounter("edges_admitted_total", "Total number of edges admitted to a global order")
	m.AggregationLatency = instance.NewHistogram("aggregation_latency_seconds", "Time to synthesize a global order once quorum is reached", prometheus.DefBuckets)

	m.ComponentsPruned = instance.NewCounter("scc_components_pruned_total", "Total number of synthesized rounds in which the SCC Pruner removed at least one all-pending cyclic component")
	m.NodesPruned = instance.NewCounter("scc_nodes_pruned_total", "Total number of nodes removed by the SCC Pruner")

	m.MissedEdgesTracked = instance.NewCounter("missed_edges_tracked_total", "Total number of missed-edge pairs newly tracked")
	m.MissedEdgesResolved = instance.NewCounter("missed_edges_resolved_total", "Total number of missed-edge pairs resolved")
	m.MissedEdgesOpen = instance.NewGauge("missed_edges_open", "Number of missed-edge pairs currently unresolved")

	m.QueueDepth = instance.NewGauge("exec_queue_depth", "Number of global orders currently sitting in the Execution Queue")

	m.TransactionsExecuted = instance.NewCounter("transactions_executed_total", "Total number of transactions executed")
	m.ExecutorStoreMisses = instance.NewCounter("executor_store_misses_total", "Total number of executed nodes whose payload was missing from the local store")
	m.ExecutionLatency = instance.NewHistogram("execution_latency_seconds", "Time to execute one global order", prometheus.DefBuckets)

	m.PeersConnected = instance.NewGauge("peers_connected", "Number of committee peers currently reachable")
	m.BroadcastFailures = instance.NewCounterVec("broadcast_failures_total", "Total number of failed peer broadcasts by kind", []string{"kind"})

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export over
// HTTP.
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer, for components that
// need to register their own collectors against the same registry.
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}
