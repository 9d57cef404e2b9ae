package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

// tierMetrics is the Prometheus implementation of metrics.TierMetrics.
type tierMetrics struct {
	sessionsOpen      prometheus.Gauge
	sessionsTotal     *prometheus.CounterVec
	fileSize          *prometheus.HistogramVec
	flushesTotal      *prometheus.CounterVec
	bytesWritten      *prometheus.CounterVec
	migrationsTotal   *prometheus.CounterVec
	migrationDuration prometheus.Histogram
	migratedBytes     prometheus.Counter
	opensTotal        *prometheus.CounterVec
}

// NewTierMetrics creates a new Prometheus-backed TierMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewTierMetrics() metrics.TierMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopTierMetrics()
	}
	return newTierMetrics(metrics.GetRegistry())
}

func newTierMetrics(reg prometheus.Registerer) *tierMetrics {
	return &tierMetrics{
		sessionsOpen: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "gtfs_write_sessions_open",
				Help: "Current number of open write sessions",
			},
		),
		sessionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtfs_write_sessions_total",
				Help: "Total number of closed write sessions by final tier",
			},
			[]string{"tier"},
		),
		fileSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gtfs_file_size_bytes",
				Help: "Distribution of file sizes at session close",
				Buckets: []float64{
					512,      // 512B
					4096,     // 4KB
					65536,    // 64KB
					1048576,  // 1MB
					67108864, // 64MB
				},
			},
			[]string{"tier"},
		),
		flushesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtfs_buffer_flushes_total",
				Help: "Total number of write buffer flushes by tier",
			},
			[]string{"tier"},
		),
		bytesWritten: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtfs_bytes_written_total",
				Help: "Total bytes flushed by tier",
			},
			[]string{"tier"},
		),
		migrationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtfs_migrations_total",
				Help: "Total number of inline to bulk migrations by status",
			},
			[]string{"status"},
		),
		migrationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "gtfs_migration_duration_milliseconds",
				Help: "Duration of inline to bulk migrations in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
		),
		migratedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "gtfs_migrated_bytes_total",
				Help: "Total inline bytes copied to the bulk store by migrations",
			},
		),
		opensTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtfs_read_opens_total",
				Help: "Total number of read streams opened by tier",
			},
			[]string{"tier"},
		),
	}
}

func (m *tierMetrics) SessionOpened() {
	m.sessionsOpen.Inc()
}

func (m *tierMetrics) SessionClosed(tier metrics.Tier, size int64) {
	m.sessionsOpen.Dec()
	m.sessionsTotal.WithLabelValues(string(tier)).Inc()
	m.fileSize.WithLabelValues(string(tier)).Observe(float64(size))
}

func (m *tierMetrics) RecordFlush(tier metrics.Tier, bytes int) {
	m.flushesTotal.WithLabelValues(string(tier)).Inc()
	m.bytesWritten.WithLabelValues(string(tier)).Add(float64(bytes))
}

func (m *tierMetrics) RecordMigration(bytes int64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.migrationsTotal.WithLabelValues(status).Inc()
	m.migrationDuration.Observe(float64(duration.Microseconds()) / 1000.0)
	if err == nil {
		m.migratedBytes.Add(float64(bytes))
	}
}

func (m *tierMetrics) RecordOpen(tier metrics.Tier) {
	m.opensTotal.WithLabelValues(string(tier)).Inc()
}
