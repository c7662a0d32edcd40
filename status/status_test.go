package status_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dedis/sbrb/key"
	"github.com/dedis/sbrb/status"
)

type fakeState struct {
	delivered *string
}

func (f fakeState) Delivered() *string { return f.delivered }

func TestHealthzReportsRunningBeforeDelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	var id key.Identity
	id[0] = 0xAB

	router := status.NewRouter(id, reg, fakeState{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "running")
}

func TestHealthzReportsDeliveredAfterDelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	var id key.Identity
	content := "hello"

	router := status.NewRouter(id, reg, fakeState{delivered: &content})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Contains(t, rec.Body.String(), "delivered")
}

func TestMetricsEndpointServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sbrb_test_total"})
	counter.Inc()
	reg.MustRegister(counter)

	var id key.Identity
	router := status.NewRouter(id, reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sbrb_test_total")
}
