package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServerMetricsWrap(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	h := m.Wrap("get_order", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("get_order", "404")))
}

func TestCarrierMetricsObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCarrierMetrics(reg)

	m.ObserveCall("Address.getCities", 30*time.Millisecond, nil)
	m.ObserveCall("Address.getCities", 30*time.Millisecond, errors.New("boom"))
	m.ObserveCall("Address.getCities", 30*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calls.WithLabelValues("Address.getCities", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls.WithLabelValues("Address.getCities", "error")))
}
