package integration_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tutorlink/internal/api"
	"tutorlink/internal/auth"
	"tutorlink/internal/breaker"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/offline"
	"tutorlink/internal/store"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// ToggleMonitor is a connectivity monitor under test control: flipping
// it online notifies subscribers exactly like a probe transition would.
type ToggleMonitor struct {
	mu          sync.Mutex
	online      bool
	nextID      int
	subscribers map[int]func(bool)
	reported    int
}

func NewToggleMonitor(online bool) *ToggleMonitor {
	return &ToggleMonitor{online: online, subscribers: make(map[int]func(bool))}
}

func (m *ToggleMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *ToggleMonitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *ToggleMonitor) ReportNetworkError() {
	m.mu.Lock()
	m.reported++
	m.mu.Unlock()
}

func (m *ToggleMonitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(online)
		}
	}
}

// TestEnvironment wires the full client stack against a fake platform
// API served by a mux router.
type TestEnvironment struct {
	t *testing.T

	Router  *mux.Router
	Server  *httptest.Server
	Monitor *ToggleMonitor
	Store   *store.Store
	Tokens  *auth.TokenStore
	Service *offline.Service
	Client  *api.Client
	Worker  *offline.ReplayWorker
	Metrics *metrics.Registry

	mu          sync.Mutex
	unreachable bool
}

func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{t: t, Router: mux.NewRouter()}

	// The unreachable switch simulates a dead network while the monitor
	// still believes the client is online.
	env.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		dead := env.unreachable
		env.mu.Unlock()
		if dead {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		env.Router.ServeHTTP(w, r)
	}))
	t.Cleanup(env.Server.Close)

	db, err := store.New(filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	env.Store = db
	env.Tokens = auth.NewTokenStore(db)
	env.Monitor = NewToggleMonitor(true)
	env.Metrics = metrics.NewRegistry()
	env.Service = offline.NewService(db, env.Monitor, models.OfflineConfig{
		MaxReplayAttempts: 3,
		CacheMaxAgeHours:  24,
	}, logger, env.Metrics)

	br := breaker.New("integration", 100, time.Minute, logger)
	adapter := api.NewAdapter(&http.Client{Timeout: 2 * time.Second}, env.Service, br, logger, env.Metrics)
	env.Client = api.NewClient(models.APIConfig{
		BaseURL:           env.Server.URL,
		TimeoutSec:        2,
		RefreshTimeoutSec: 2,
		RefreshPath:       "/auth/refresh",
		LoginPath:         "/auth/login",
		LogoutPath:        "/auth/logout",
	}, adapter, env.Tokens, env.Service, logger, env.Metrics)

	env.Worker = offline.NewReplayWorker(env.Service, env.Client,
		models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 10, MaxAttempts: 1}, logger)

	return env
}

// SetUnreachable makes every request fail at the transport level.
func (env *TestEnvironment) SetUnreachable(dead bool) {
	env.mu.Lock()
	env.unreachable = dead
	env.mu.Unlock()
}
