package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xssautomation/xssbot/internal/model"
	"github.com/xssautomation/xssbot/internal/orchestrator"
)

// Outcome label values besides the failure reasons.
const outcomeCompleted = "completed"

// Compile-time interface check.
var _ orchestrator.Observer = (*Recorder)(nil)

// Recorder collects xssbot metrics. It implements orchestrator.Observer.
type Recorder struct {
	registry *prometheus.Registry

	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	scansInFlight   prometheus.Gauge
	vulnerableTotal prometheus.Counter
	updatesTotal    *prometheus.CounterVec
	rejectedTotal   *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry. Go runtime and
// process collectors are registered alongside the xssbot metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xssbot_scans_total",
				Help: "Scans finished, by outcome (completed or the failure reason)",
			},
			[]string{"outcome"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xssbot_scan_duration_seconds",
				Help:    "Wall time of finished scans in seconds",
				Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 900, 1800, 2700, 3600},
			},
			[]string{"outcome"},
		),
		scansInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xssbot_scans_in_flight",
				Help: "Scans currently being processed",
			},
		),
		vulnerableTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xssbot_vulnerable_urls_total",
				Help: "Vulnerable URLs reported by completed scans",
			},
		),
		updatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xssbot_bot_updates_total",
				Help: "Telegram updates handled, by kind",
			},
			[]string{"kind"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xssbot_scan_requests_rejected_total",
				Help: "Scan requests refused before reaching the pipeline, by cause",
			},
			[]string{"cause"},
		),
	}

	r.registry.MustRegister(
		r.scansTotal,
		r.scanDuration,
		r.scansInFlight,
		r.vulnerableTotal,
		r.updatesTotal,
		r.rejectedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ScanStarted implements orchestrator.Observer.
func (r *Recorder) ScanStarted() {
	r.scansInFlight.Inc()
}

// ScanFinished implements orchestrator.Observer.
func (r *Recorder) ScanFinished(result *orchestrator.Result) {
	r.scansInFlight.Dec()

	outcome := outcomeCompleted
	if result.Failure != nil {
		outcome = result.Failure.Reason.String()
	}
	r.scansTotal.WithLabelValues(outcome).Inc()
	r.scanDuration.WithLabelValues(outcome).Observe(result.Duration.Seconds())

	if result.Report != nil {
		if n, ok := result.Report.Count(model.VulnerableURLs); ok {
			r.vulnerableTotal.Add(float64(n))
		}
	}
}

// UpdateHandled counts one bot update of the given kind, e.g. "command" or
// "callback".
func (r *Recorder) UpdateHandled(kind string) {
	r.updatesTotal.WithLabelValues(kind).Inc()
}

// ScanRejected counts a scan request refused before it was submitted, e.g.
// because of rate limiting.
func (r *Recorder) ScanRejected(cause string) {
	r.rejectedTotal.WithLabelValues(cause).Inc()
}

// Handler returns an HTTP handler serving the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}
