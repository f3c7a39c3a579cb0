package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveInstrument("fetch")
	m.ObserveFetch(time.Second)
	m.ObserveAggregateHit()
	m.ObserveScan(time.Second, 1, 2, time.Now())
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveInstrument("cache")
	m.ObserveInstrument("cache")
	m.ObserveInstrument("error")
	m.ObserveAggregateHit()
	m.ObserveScan(3*time.Second, 4, 1, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstrumentsTotal.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstrumentsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregateHits))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.UptrendCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorCount))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastScanUnix))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveInstrument("fetch")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `screener_instruments_total{source="fetch"} 1`))
}
