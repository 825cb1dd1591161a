package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/protectedvision/backend/internal/core/domain"
)

// WorkerMetrics observes the scan pipeline. It satisfies the use case's
// ScanObserver interface.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	scanTotal       *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	scanInFlight    prometheus.Gauge
	riskTotal       *prometheus.CounterVec
	findingsPerScan *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	scanTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pv",
			Subsystem: "worker",
			Name:      "scan_total",
			Help:      "Total processed scan jobs by status.",
		},
		[]string{"service", "status"},
	)
	scanDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pv",
			Subsystem: "worker",
			Name:      "scan_duration_seconds",
			Help:      "Scan pipeline duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	scanInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pv",
			Subsystem: "worker",
			Name:      "scan_in_flight",
			Help:      "Number of in-flight scan jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	riskTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pv",
			Subsystem: "worker",
			Name:      "scan_risk_total",
			Help:      "Total completed scans by risk level.",
		},
		[]string{"service", "risk"},
	)
	findingsPerScan := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pv",
			Subsystem: "worker",
			Name:      "scan_findings",
			Help:      "Distribution of findings per completed scan.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)

	registry.MustRegister(scanTotal, scanDuration, scanInFlight, riskTotal, findingsPerScan)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		scanTotal:       scanTotal,
		scanDuration:    scanDuration,
		scanInFlight:    scanInFlight,
		riskTotal:       riskTotal,
		findingsPerScan: findingsPerScan,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ScanStarted() {
	m.scanInFlight.Inc()
}

func (m *WorkerMetrics) ScanFinished(risk domain.RiskLevel, findings int, duration time.Duration, err error) {
	m.scanInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.scanTotal.WithLabelValues(m.service, status).Inc()
	m.scanDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())

	if err == nil {
		m.riskTotal.WithLabelValues(m.service, string(risk)).Inc()
		m.findingsPerScan.WithLabelValues(m.service).Observe(float64(findings))
	}
}
