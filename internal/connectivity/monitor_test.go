package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tutorlink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestMonitor(t *testing.T, probeURL string) *ProbeMonitor {
	t.Helper()
	return NewProbeMonitor(models.ConnectivityConfig{
		ProbeURL:         probeURL,
		ProbeIntervalSec: 1,
		ProbeTimeoutSec:  1,
	}, testLogger())
}

func TestProbeMonitor_InitialProbeOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	m := newTestMonitor(t, server.URL)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.True(t, m.Online())
}

func TestProbeMonitor_InitialProbeOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // unreachable

	m := newTestMonitor(t, server.URL)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.False(t, m.Online())
}

func TestProbeMonitor_StartTwiceFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	m := newTestMonitor(t, server.URL)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Error(t, m.Start(context.Background()))
}

func TestProbeMonitor_SubscribeAndUnsubscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	m := newTestMonitor(t, server.URL)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	require.True(t, m.Online())

	var mu sync.Mutex
	var events []bool
	unsubscribe := m.Subscribe(func(online bool) {
		mu.Lock()
		events = append(events, online)
		mu.Unlock()
	})

	m.ReportNetworkError()
	assert.False(t, m.Online())

	mu.Lock()
	require.Len(t, events, 1)
	assert.False(t, events[0])
	mu.Unlock()

	// Duplicate evidence does not re-notify
	m.ReportNetworkError()
	mu.Lock()
	assert.Len(t, events, 1)
	mu.Unlock()

	unsubscribe()
	m.setOnline(true)
	mu.Lock()
	assert.Len(t, events, 1)
	mu.Unlock()
}

func TestProbeMonitor_RecoversViaProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestMonitor(t, server.URL)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	require.True(t, m.Online())

	m.ReportNetworkError()
	require.False(t, m.Online())

	// Next probe tick should flip back online
	assert.Eventually(t, m.Online, 5*time.Second, 50*time.Millisecond)
}
