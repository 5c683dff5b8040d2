package core

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the chat core's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	sends          *prometheus.CounterVec
	denials        *prometheus.CounterVec
	fragments      prometheus.Counter
	providerErrors *prometheus.CounterVec
	sendDuration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radzz",
			Name:      "sends_total",
			Help:      "Admitted sends by dispatch route.",
		}, []string{"route"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radzz",
			Name:      "entitlement_denials_total",
			Help:      "Sends refused by the entitlement gate.",
		}, []string{"reason"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radzz",
			Name:      "stream_fragments_total",
			Help:      "Streamed fragments applied to model messages.",
		}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radzz",
			Name:      "provider_errors_total",
			Help:      "Failed provider or media operations by route.",
		}, []string{"route"}),
		sendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "radzz",
			Name:      "send_duration_seconds",
			Help:      "Time from admission to the terminal model message.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"route"}),
	}
	reg.MustRegister(m.sends, m.denials, m.fragments, m.providerErrors, m.sendDuration)
	return m
}

func (m *Metrics) send(route Route, started time.Time, err error) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(string(route)).Inc()
	m.sendDuration.WithLabelValues(string(route)).Observe(time.Since(started).Seconds())
	if err != nil {
		m.providerErrors.WithLabelValues(string(route)).Inc()
	}
}

func (m *Metrics) fragment() {
	if m == nil {
		return
	}
	m.fragments.Inc()
}

func (m *Metrics) deny(reason error) {
	if m == nil {
		return
	}
	label := "unauthenticated"
	switch {
	case errors.Is(reason, ErrTrialsExhausted):
		label = "premium"
	case errors.Is(reason, ErrStudyTrialsExhausted):
		label = "study"
	}
	m.denials.WithLabelValues(label).Inc()
}
