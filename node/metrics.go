package node

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus collectors the dispatcher and Contagion
// layer update as messages flow through a node, surfaced by the status
// package's /metrics endpoint.
type Metrics struct {
	Verified      *prometheus.CounterVec
	HandlerErrors *prometheus.CounterVec
	Delivered     prometheus.Counter
}

// NewMetrics registers a fresh set of collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sbrb",
			Name:      "messages_verified_total",
			Help:      "Number of inbound messages that passed signature verification, by role.",
		}, []string{"role"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sbrb",
			Name:      "handler_errors_total",
			Help:      "Number of handler invocations that returned an error, by role.",
		}, []string{"role"}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sbrb",
			Name:      "pcb_delivered_total",
			Help:      "Number of times this node's Contagion layer pcb-delivered a message.",
		}),
	}
	reg.MustRegister(m.Verified, m.HandlerErrors, m.Delivered)
	return m
}
