package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/linpawslitap/mds-scaling/pkg/metrics"
)

func TestTierMetrics_Sessions(t *testing.T) {
	m := newTierMetrics(prometheus.NewRegistry())

	m.SessionOpened()
	m.SessionOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsOpen))

	m.SessionClosed(metrics.TierInline, 100)
	m.SessionClosed(metrics.TierBulk, 1<<20)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("bulk")))
}

func TestTierMetrics_Flushes(t *testing.T) {
	m := newTierMetrics(prometheus.NewRegistry())

	m.RecordFlush(metrics.TierInline, 4096)
	m.RecordFlush(metrics.TierInline, 10)
	m.RecordFlush(metrics.TierBulk, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.flushesTotal.WithLabelValues("inline")))
	assert.Equal(t, 4106.0, testutil.ToFloat64(m.bytesWritten.WithLabelValues("inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bytesWritten.WithLabelValues("bulk")))
}

func TestTierMetrics_Migrations(t *testing.T) {
	m := newTierMetrics(prometheus.NewRegistry())

	m.RecordMigration(4096, 3*time.Millisecond, nil)
	m.RecordMigration(100, time.Millisecond, errors.New("bulk down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.migrationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.migrationsTotal.WithLabelValues("error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.migratedBytes))
}

func TestTierMetrics_Opens(t *testing.T) {
	m := newTierMetrics(prometheus.NewRegistry())

	m.RecordOpen(metrics.TierBulk)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opensTotal.WithLabelValues("bulk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.opensTotal.WithLabelValues("inline")))
}

func TestNewTierMetrics_DisabledIsNoop(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("registry already initialized")
	}
	m := NewTierMetrics()
	assert.Equal(t, metrics.NewNoopTierMetrics(), m)
}
