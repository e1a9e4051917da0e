package transmit

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts delivery attempts and outcomes.
type Metrics struct {
	attempts   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
}

// NewMetrics creates the transmit counters and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casefile_transmit_attempts_total",
				Help: "Total delivery attempts by result.",
			},
			[]string{"result"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casefile_transmit_deliveries_total",
				Help: "Total Send calls by final outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.deliveries)
	}
	return m
}

func (m *Metrics) observeAttempt(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.attempts.WithLabelValues("success").Inc()
	} else {
		m.attempts.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) observeDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.deliveries.WithLabelValues("delivered").Inc()
	} else {
		m.deliveries.WithLabelValues("exhausted").Inc()
	}
}
