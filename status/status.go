// Package status exposes a small go-chi/chi HTTP surface alongside the
// protocol core: a liveness probe and a Prometheus /metrics endpoint,
// trimmed down from the teacher's habit of carrying an HTTP mux alongside
// the beacon core (http/server.go, internal/metrics/metrics.go) to the two
// endpoints this module's scope actually needs.
package status

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dedis/sbrb/key"
)

// DeliveredState reports whether a node has reached final delivery, so
// /healthz can distinguish "still running" from "reached consensus" for
// operators and test harnesses polling over HTTP instead of reading the
// audit file directly.
type DeliveredState interface {
	Delivered() *string
}

// NewRouter builds the status HTTP handler for one node: id is reported on
// /healthz for multi-node demos running several nodes behind different
// ports, reg is the Prometheus registry node.NewMetrics registered
// against, and state exposes whether this node has pcb-delivered yet.
func NewRouter(id key.Identity, reg *prometheus.Registry, state DeliveredState) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		status := "running"
		if state != nil && state.Delivered() != nil {
			status = "delivered"
		}
		_, _ = w.Write([]byte(id.String() + " " + status + "\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}
