package cycle

import (
	"time"

	"github.com/oicur0t/logstat/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes used as the result label
const (
	resultOK           = "ok"
	resultRulesError   = "rules_error"
	resultReadError    = "read_error"
	resultPersistError = "persist_error"
)

// Metrics exposes cycle outcomes and the latest per-server counters
type Metrics struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	serverErrors   *prometheus.GaugeVec
	serverWarnings *prometheus.GaugeVec
	linesRead      prometheus.Gauge
	linesCounted   prometheus.Gauge
	lastSnapshot   prometheus.Gauge
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logstat_cycles_total",
			Help: "Scan cycles by result",
		}, []string{"result"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "logstat_cycle_duration_seconds",
			Help:    "Time spent on one scan cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		serverErrors: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logstat_server_errors",
			Help: "ERROR lines per server in the latest scan",
		}, []string{"server"}),
		serverWarnings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logstat_server_warnings",
			Help: "WARN lines per server in the latest scan",
		}, []string{"server"}),
		linesRead: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logstat_lines_read",
			Help: "Lines read from the log file in the latest scan",
		}),
		linesCounted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logstat_lines_counted",
			Help: "Lines attributed to a server in the latest scan",
		}),
		lastSnapshot: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logstat_last_snapshot_timestamp_seconds",
			Help: "Unix time of the latest computed snapshot",
		}),
	}
}

func (m *Metrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// publish replaces the per-server gauges so servers absent from the latest
// scan disappear.
func (m *Metrics) publish(snapshot models.Snapshot) {
	if m == nil {
		return
	}
	m.serverErrors.Reset()
	m.serverWarnings.Reset()
	for server, c := range snapshot.Stats {
		m.serverErrors.WithLabelValues(server).Set(float64(c.Errors))
		m.serverWarnings.WithLabelValues(server).Set(float64(c.Warnings))
	}
	m.linesRead.Set(float64(snapshot.LinesRead))
	m.linesCounted.Set(float64(snapshot.LinesCounted))
	m.lastSnapshot.Set(float64(snapshot.TakenAt.Unix()))
}
