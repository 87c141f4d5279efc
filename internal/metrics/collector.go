// Package metrics exposes simulation state as Prometheus metrics, fed from the
// per-tick snapshots.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/orchard-sim/internal/engine"
)

const (
	// Namespace for all metrics
	namespace = "orchard"
	// Subsystem for simulation metrics
	subsystem = "sim"
)

var (
	binStates   = []string{"filling", "full", "carried"}
	agentStates = []string{"idle", "en_route", "waiting", "carrying", "delivering", "holding"}
)

// Collector records tick snapshots into Prometheus gauges and counters.
type Collector struct {
	tick            prometheus.Gauge
	fieldYield      prometheus.Gauge
	repository      prometheus.Gauge
	requests        prometheus.Gauge
	bins            *prometheus.GaugeVec
	agents          *prometheus.GaugeVec
	deliveries      prometheus.Counter
	deliveredYield  prometheus.Counter
	harvested       prometheus.Counter
	redistributions prometheus.Counter
	warnings        prometheus.Counter

	mu   sync.Mutex
	last engine.SimStats // Cumulative stats at the previous tick
}

// NewCollector creates a collector. Call Register before recording.
func NewCollector() *Collector {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}

	return &Collector{
		tick:       gauge("tick", "Most recent tick processed"),
		fieldYield: gauge("field_yield", "Yield still on the trees"),
		repository: gauge("repository_bins", "Bins delivered to the repository"),
		requests:   gauge("pending_requests", "Location requests waiting for an agent"),
		bins: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bins",
				Help:      "Active bins by fill state",
			},
			[]string{"state"},
		),
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "agents",
				Help:      "Transport agents by decision state",
			},
			[]string{"state"},
		),
		deliveries:      counter("deliveries_total", "Bins delivered to the repository"),
		deliveredYield:  counter("delivered_yield_total", "Yield delivered to the repository"),
		harvested:       counter("harvested_yield_total", "Yield picked into bins"),
		redistributions: counter("redistributions_total", "Worker groups moved off exhausted cells"),
		warnings:        counter("warnings_total", "Inconsistent state warnings"),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.tick, c.fieldYield, c.repository, c.requests,
		c.bins, c.agents,
		c.deliveries, c.deliveredYield, c.harvested, c.redistributions, c.warnings,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// RecordTick implements engine.Recorder.
func (c *Collector) RecordTick(snap *engine.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := snap.Stats
	c.tick.Set(float64(snap.Tick))
	c.fieldYield.Set(st.FieldYield)
	c.repository.Set(float64(snap.RepoCount))
	c.requests.Set(float64(len(snap.Requests)))

	binCounts := make(map[string]int, len(binStates))
	for _, b := range snap.Bins {
		binCounts[b.State]++
	}
	for _, s := range binStates {
		c.bins.WithLabelValues(s).Set(float64(binCounts[s]))
	}

	agentCounts := make(map[string]int, len(agentStates))
	for _, a := range snap.Agents {
		agentCounts[a.State]++
	}
	for _, s := range agentStates {
		c.agents.WithLabelValues(s).Set(float64(agentCounts[s]))
	}

	for _, d := range snap.Deliveries {
		c.deliveries.Inc()
		c.deliveredYield.Add(d.Bin.Level)
	}
	if d := st.Harvested - c.last.Harvested; d > 0 {
		c.harvested.Add(d)
	}
	if d := st.Redistributions - c.last.Redistributions; d > 0 {
		c.redistributions.Add(float64(d))
	}
	if d := st.Warnings - c.last.Warnings; d > 0 {
		c.warnings.Add(float64(d))
	}
	c.last = st
	return nil
}
