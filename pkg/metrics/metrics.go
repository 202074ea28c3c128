// Package metrics exposes Prometheus instrumentation for a running
// simulation: population size, births/deaths, channel fire counts, and step
// latency, labeled by run ID and driver so multiple runs can share a single
// registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the Prometheus-backed instrumentation for one simulation
// process. Construct one with NewRecorder and call its Observe* methods from
// the driver loop.
type Recorder struct {
	population    *prometheus.GaugeVec
	birthsTotal   *prometheus.CounterVec
	deathsTotal   *prometheus.CounterVec
	channelFires  *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	modeSwitches  *prometheus.CounterVec
}

// NewRecorder registers the simulator's metric families and returns a
// Recorder for emitting observations against them.
func NewRecorder() *Recorder {
	return &Recorder{
		population: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentsim_population_size",
				Help: "Current number of live agents in the population",
			},
			[]string{"run_id", "driver"},
		),
		birthsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsim_births_total",
				Help: "Total number of agent births processed",
			},
			[]string{"run_id", "driver"},
		),
		deathsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsim_deaths_total",
				Help: "Total number of agent deaths processed",
			},
			[]string{"run_id", "driver"},
		),
		channelFires: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsim_channel_fires_total",
				Help: "Total number of channel fire events by channel name and scope",
			},
			[]string{"run_id", "scope", "channel"},
		),
		stepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentsim_step_duration_seconds",
				Help:    "Wall-clock duration of one driver step (ProcessNextChannel or barrier pass)",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"run_id", "driver"},
		),
		modeSwitches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsim_population_mode_switches_total",
				Help: "Total number of transitions between normal and constant-number population modes",
			},
			[]string{"run_id", "to_mode"},
		),
	}
}

// ObservePopulation records the current population size.
func (r *Recorder) ObservePopulation(runID, driver string, size float64) {
	r.population.WithLabelValues(runID, driver).Set(size)
}

// IncBirths increments the birth counter by one.
func (r *Recorder) IncBirths(runID, driver string) {
	r.birthsTotal.WithLabelValues(runID, driver).Inc()
}

// IncDeaths increments the death counter by one.
func (r *Recorder) IncDeaths(runID, driver string) {
	r.deathsTotal.WithLabelValues(runID, driver).Inc()
}

// IncChannelFire increments the fire counter for a named channel. scope is
// "world" or "agent".
func (r *Recorder) IncChannelFire(runID, scope, channelName string) {
	r.channelFires.WithLabelValues(runID, scope, channelName).Inc()
}

// ObserveStepDuration records how long one driver step took.
func (r *Recorder) ObserveStepDuration(runID, driver string, d time.Duration) {
	r.stepDuration.WithLabelValues(runID, driver).Observe(d.Seconds())
}

// IncModeSwitch records a transition into toMode ("normal" or
// "constant_number").
func (r *Recorder) IncModeSwitch(runID, toMode string) {
	r.modeSwitches.WithLabelValues(runID, toMode).Inc()
}
