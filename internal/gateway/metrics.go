package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus collectors for the gateway.
type Metrics struct {
	refreshes *prometheus.CounterVec
	queued    prometheus.Counter
	replays   *prometheus.CounterVec
}

// NewMetrics registers gateway collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activos_gateway_refresh_total",
			Help: "Token refresh calls by result.",
		}, []string{"result"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activos_gateway_queued_total",
			Help: "Requests that waited on an in-flight refresh.",
		}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activos_gateway_replay_total",
			Help: "Requests re-issued after a 401, by final status class.",
		}, []string{"class"}),
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(m.refreshes, m.queued, m.replays)
	return m
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) enqueue() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) replay(status int) {
	if m == nil {
		return
	}
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status > 0:
		class = "ok"
	}
	m.replays.WithLabelValues(class).Inc()
}
