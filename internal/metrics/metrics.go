// Package metrics exposes the flow-table engine's status counters to
// Prometheus, so an operator can scrape current_count/adds/deletes/etc.
// without polling the engine directly.
//
// Grounded on the client construction pattern used throughout
// AKJUS-bsc-erigon: a small registerer-scoped struct of named
// vectors, built once per subsystem and updated from plain setter
// methods rather than exposing the registry itself to callers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowTableMetrics mirrors flowtable.Status as Prometheus
// gauges/counters.
type FlowTableMetrics struct {
	currentCount        prometheus.Gauge
	pendingDeletes       prometheus.Gauge
	adds                 prometheus.Counter
	deletes              prometheus.Counter
	hardExpires          prometheus.Counter
	idleExpires          prometheus.Counter
	updates              prometheus.Counter
	tableFullErrors      prometheus.Counter
	forwardingAddErrors  prometheus.Counter
}

// NewFlowTableMetrics creates and registers the flow-table metric
// family under reg. Passing a nil registerer is valid and yields
// metrics that are tracked but never exposed (useful for tests).
func NewFlowTableMetrics(reg prometheus.Registerer) *FlowTableMetrics {
	m := &FlowTableMetrics{
		currentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowtable",
			Name:      "current_count",
			Help:      "Number of non-free entries in the flow table.",
		}),
		pendingDeletes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowtable",
			Name:      "pending_deletes",
			Help:      "Number of entries marked for deletion but not yet removed.",
		}),
		adds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "adds_total",
			Help:      "Number of successful Add calls.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "deletes_total",
			Help:      "Number of successful Delete calls.",
		}),
		hardExpires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "hard_expires_total",
			Help:      "Number of hard-timeout expirations recorded.",
		}),
		idleExpires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "idle_expires_total",
			Help:      "Number of idle-timeout expirations recorded.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "updates_total",
			Help:      "Number of effects/cookie modifications.",
		}),
		tableFullErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "table_full_errors_total",
			Help:      "Number of Add calls that failed because the pool was exhausted.",
		}),
		forwardingAddErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtable",
			Name:      "forwarding_add_errors_total",
			Help:      "Number of Add calls that failed in the forwarding layer.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.currentCount, m.pendingDeletes, m.adds, m.deletes,
			m.hardExpires, m.idleExpires, m.updates,
			m.tableFullErrors, m.forwardingAddErrors,
		)
	}

	return m
}

// SetOccupancy updates the two gauges that reflect current table
// occupancy.
func (m *FlowTableMetrics) SetOccupancy(currentCount, pendingDeletes int) {
	m.currentCount.Set(float64(currentCount))
	m.pendingDeletes.Set(float64(pendingDeletes))
}

// IncAdds increments the adds counter.
func (m *FlowTableMetrics) IncAdds() { m.adds.Inc() }

// IncDeletes increments the deletes counter.
func (m *FlowTableMetrics) IncDeletes() { m.deletes.Inc() }

// IncHardExpires increments the hard-timeout counter.
func (m *FlowTableMetrics) IncHardExpires() { m.hardExpires.Inc() }

// IncIdleExpires increments the idle-timeout counter.
func (m *FlowTableMetrics) IncIdleExpires() { m.idleExpires.Inc() }

// IncUpdates increments the updates counter.
func (m *FlowTableMetrics) IncUpdates() { m.updates.Inc() }

// IncTableFullErrors increments the table-full error counter.
func (m *FlowTableMetrics) IncTableFullErrors() { m.tableFullErrors.Inc() }

// IncForwardingAddErrors increments the forwarding-layer error counter.
func (m *FlowTableMetrics) IncForwardingAddErrors() { m.forwardingAddErrors.Inc() }
