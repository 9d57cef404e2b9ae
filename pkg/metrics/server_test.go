package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Defaults(t *testing.T) {
	s := NewServer(ServerConfig{})
	assert.Equal(t, 9090, s.Port())
	assert.Equal(t, 5*time.Second, s.shutdownTimeout)
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(ServerConfig{Port: 19090})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestServer_MetricsDisabled(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized")
	}
	s := NewServer(ServerConfig{Port: 19091})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_StopIdempotent(t *testing.T) {
	s := NewServer(ServerConfig{Port: 19092})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestNoopTierMetrics(t *testing.T) {
	m := NewNoopTierMetrics()
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.RecordFlush(TierInline, 10)
		m.RecordMigration(10, time.Millisecond, nil)
		m.RecordOpen(TierBulk)
		m.SessionClosed(TierBulk, 10)
	})
}
