// Package metrics exports scheduler counters to Prometheus. All methods are
// safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minidisplay"

// Metrics holds the scheduler's collectors.
type Metrics struct {
	paints     *prometheus.CounterVec
	failures   *prometheus.CounterVec
	rotations  prometheus.Counter
	saverRuns  prometheus.Counter
	phase      prometheus.Gauge
	activeName *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		paints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paints_total",
			Help:      "Frames presented, by applet.",
		}, []string{"applet"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applet_failures_total",
			Help:      "Applet operations that returned an error or panicked.",
		}, []string{"applet", "op"}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Rotation boundaries crossed.",
		}),
		saverRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screensaver_activations_total",
			Help:      "Times the screen saver blanked the display.",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Current engine phase (0 stopped, 1 intro, 2 rotating, 3 screensaver, 4 shutdown).",
		}),
		activeName: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_applet",
			Help:      "1 for the applet currently on screen.",
		}, []string{"applet"}),
	}
	if reg != nil {
		reg.MustRegister(m.paints, m.failures, m.rotations, m.saverRuns, m.phase, m.activeName)
	}
	return m
}

// Paint counts a presented frame.
func (m *Metrics) Paint(applet string) {
	if m == nil {
		return
	}
	m.paints.WithLabelValues(applet).Inc()
}

// Failure counts a failed applet operation.
func (m *Metrics) Failure(applet, op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(applet, op).Inc()
}

// Rotation counts a rotation boundary.
func (m *Metrics) Rotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// ScreenSaver counts a screen-saver activation.
func (m *Metrics) ScreenSaver() {
	if m == nil {
		return
	}
	m.saverRuns.Inc()
}

// Phase records the engine phase.
func (m *Metrics) Phase(p int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}

// Active marks name as the applet on screen; an empty name clears it.
func (m *Metrics) Active(name string) {
	if m == nil {
		return
	}
	m.activeName.Reset()
	if name != "" {
		m.activeName.WithLabelValues(name).Set(1)
	}
}
