package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ntp-monitor/internal/models"
)

const namespace = "ntpmon"

// Stats holds the Prometheus collectors fed by the probe scheduler
type Stats struct {
	registry      *prometheus.Registry
	probes        *prometheus.CounterVec
	offset        *prometheus.GaugeVec
	delay         *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	cyclesSkipped prometheus.Counter
	storageErrors prometheus.Counter
}

// New creates Stats registered on a private registry
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probe attempts by server and outcome",
		}, []string{"server", "status"}),
		offset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offset_ms",
			Help:      "Last measured clock offset in milliseconds",
		}, []string{"server"}),
		delay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delay_ms",
			Help:      "Last measured round trip delay in milliseconds",
		}, []string{"server"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a complete probe cycle",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Scheduled cycles skipped because the previous one overran",
		}),
		storageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Probe results that could not be stored",
		}),
	}
	s.registry.MustRegister(
		s.probes,
		s.offset,
		s.delay,
		s.cycleDuration,
		s.cyclesSkipped,
		s.storageErrors,
		collectors.NewGoCollector(),
	)
	return s
}

// ObserveResult counts a probe attempt and updates the server gauges when online
func (s *Stats) ObserveResult(r models.ProbeResult) {
	s.probes.WithLabelValues(r.Server, string(r.Status)).Inc()
	if !r.Online() {
		return
	}
	s.offset.WithLabelValues(r.Server).Set(r.OffsetMS)
	s.delay.WithLabelValues(r.Server).Set(r.DelayMS)
}

// ObserveCycle records the duration of a finished cycle
func (s *Stats) ObserveCycle(d time.Duration) {
	s.cycleDuration.Observe(d.Seconds())
}

// CycleSkipped counts a dropped tick
func (s *Stats) CycleSkipped() {
	s.cyclesSkipped.Inc()
}

// StorageError counts a failed append
func (s *Stats) StorageError() {
	s.storageErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	})
}
