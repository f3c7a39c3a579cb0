package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the Prometheus collectors of the screener.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	InstrumentsTotal *prometheus.CounterVec // labels: source=cache|fetch|error
	FetchDur         prometheus.Histogram
	ScanDur          prometheus.Histogram
	AggregateHits    prometheus.Counter
	UptrendCount     prometheus.Gauge
	ErrorCount       prometheus.Gauge
	LastScanUnix     prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		InstrumentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_instruments_total",
			Help: "Instruments processed, by data source",
		}, []string{"source"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_fetch_duration_seconds",
			Help:    "Market data fetch latency per instrument",
			Buckets: prometheus.DefBuckets,
		}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_scan_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		AggregateHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_aggregate_cache_hits_total",
			Help: "Scans served entirely from the aggregate cache",
		}),
		UptrendCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_uptrend_instruments",
			Help: "Instruments classified as uptrending by the last scan",
		}),
		ErrorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_error_instruments",
			Help: "Instruments that failed in the last scan",
		}),
		LastScanUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),
	}
	m.Registry.MustRegister(
		m.InstrumentsTotal,
		m.FetchDur,
		m.ScanDur,
		m.AggregateHits,
		m.UptrendCount,
		m.ErrorCount,
		m.LastScanUnix,
	)
	return m
}

// ObserveInstrument counts one processed instrument by source.
func (m *Metrics) ObserveInstrument(source string) {
	if m == nil {
		return
	}
	m.InstrumentsTotal.WithLabelValues(source).Inc()
}

// ObserveFetch records one fetch latency.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
}

// ObserveAggregateHit counts a scan answered from the aggregate cache.
func (m *Metrics) ObserveAggregateHit() {
	if m == nil {
		return
	}
	m.AggregateHits.Inc()
}

// ObserveScan records the outcome of a finished scan.
func (m *Metrics) ObserveScan(d time.Duration, uptrends, errs int, finished time.Time) {
	if m == nil {
		return
	}
	m.ScanDur.Observe(d.Seconds())
	m.UptrendCount.Set(float64(uptrends))
	m.ErrorCount.Set(float64(errs))
	m.LastScanUnix.Set(float64(finished.Unix()))
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve runs the /metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}
