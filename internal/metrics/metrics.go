// Package metrics provides the Prometheus metrics the core engine's
// observable outputs (time stamp, progress fraction, chain throughput) are
// wired to, kept out of the wsola package itself so the core stays
// instantiable without a metrics registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every gauge/counter the engine populates. The zero value
// is not usable; construct with New or NewForRegistry.
type Metrics struct {
	BytesProcessedTotal *prometheus.CounterVec
	SeekWindowSamples   *prometheus.GaugeVec
	PlayerTransitions   *prometheus.CounterVec
	TimeStampSeconds    *prometheus.GaugeVec
	Progress            *prometheus.GaugeVec
}

// New registers and returns a Metrics bundle against the default
// Prometheus registry.
func New() *Metrics {
	return NewForRegistry(prometheus.DefaultRegisterer)
}

// NewForRegistry registers and returns a Metrics bundle against reg,
// letting callers (and tests) use an isolated registry instead of the
// process-global default.
func NewForRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BytesProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsola",
			Subsystem: "dispatcher",
			Name:      "bytes_processed_total",
			Help:      "Cumulative bytes read from the byte source, per player.",
		}, []string{"player"}),
		SeekWindowSamples: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wsola",
			Subsystem: "wsola",
			Name:      "seek_window_samples",
			Help:      "Current WSOLA seek-window size in samples, per player.",
		}, []string{"player"}),
		PlayerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsola",
			Subsystem: "player",
			Name:      "state_transitions_total",
			Help:      "Count of Player state transitions, labeled by the destination state.",
		}, []string{"player", "state"}),
		TimeStampSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wsola",
			Subsystem: "player",
			Name:      "time_stamp_seconds",
			Help:      "Most recent AudioEvent time stamp in seconds, per player.",
		}, []string{"player"}),
		Progress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wsola",
			Subsystem: "player",
			Name:      "progress_ratio",
			Help:      "Dispatcher bytes-processed / total-bytes, per player.",
		}, []string{"player"}),
	}
}

// ObserveTransition records a Player state transition for id.
func (m *Metrics) ObserveTransition(id, state string) {
	if m == nil {
		return
	}
	m.PlayerTransitions.WithLabelValues(id, state).Inc()
}

// ObserveEvent records the per-event observable outputs (§6) for id:
// bytes newly processed by this event, the resulting time stamp, and the
// resulting progress fraction.
func (m *Metrics) ObserveEvent(id string, deltaBytes int, timeStamp, progress float64) {
	if m == nil {
		return
	}
	m.BytesProcessedTotal.WithLabelValues(id).Add(float64(deltaBytes))
	m.TimeStampSeconds.WithLabelValues(id).Set(timeStamp)
	m.Progress.WithLabelValues(id).Set(progress)
}

// ObserveSeekWindow records the current WSOLA seek-window size, in samples,
// for id.
func (m *Metrics) ObserveSeekWindow(id string, samples int) {
	if m == nil {
		return
	}
	m.SeekWindowSamples.WithLabelValues(id).Set(float64(samples))
}
