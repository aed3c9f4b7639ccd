package offline

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	mu          sync.Mutex
	online      bool
	subscribers []func(bool)
	reported    int
}

func (m *fakeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
	return func() {}
}

func (m *fakeMonitor) ReportNetworkError() {
	m.mu.Lock()
	m.reported++
	m.mu.Unlock()
}

func (m *fakeMonitor) flip(online bool) {
	m.mu.Lock()
	m.online = online
	subs := append([]func(bool){}, m.subscribers...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

func newTestService(t *testing.T, monitor *fakeMonitor, maxAttempts int) *Service {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "offline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewService(db, monitor, models.OfflineConfig{
		MaxReplayAttempts: maxAttempts,
		CacheMaxAgeHours:  24,
	}, logger, metrics.NewRegistry())
}

func TestService_CacheResponseIgnoresMutations(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{online: true}, 3)
	ctx := context.Background()

	require.NoError(t, svc.CacheResponse(ctx, http.MethodPost, "sig-post", 200, nil, []byte("x")))

	got, err := svc.CachedResponse(ctx, "sig-post")
	require.NoError(t, err)
	assert.Nil(t, got, "mutations must never be cached")
}

func TestService_CacheRoundTrip(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{online: true}, 3)
	ctx := context.Background()

	require.NoError(t, svc.CacheResponse(ctx, http.MethodGet, "sig-get", 200,
		map[string]string{"Content-Type": "application/json"}, []byte(`{"ok":true}`)))

	got, err := svc.CachedResponse(ctx, "sig-get")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 200, got.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(got.Body))
}

func TestService_QueueMutationAssignsIDAndPersists(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{}, 3)
	ctx := context.Background()

	m, err := svc.QueueMutation(ctx, http.MethodPost, "sig-1", "https://api.example.com/bookings",
		map[string]string{"Content-Type": "application/json"}, []byte(`{"slot":"mon"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, models.QueueStatusPending, m.Status)

	n, err := svc.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_ReplayFailureDeadLettersAtCap(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{}, 2)
	ctx := context.Background()

	m, err := svc.QueueMutation(ctx, http.MethodPost, "sig-1", "https://api.example.com/x", nil, nil)
	require.NoError(t, err)

	dead, err := svc.markReplayFailed(ctx, *m)
	require.NoError(t, err)
	assert.False(t, dead)

	dead, err = svc.markReplayFailed(ctx, *m)
	require.NoError(t, err)
	assert.True(t, dead)

	letters, err := svc.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, m.ID, letters[0].ID)
}

func TestService_ReportNetworkErrorReachesMonitor(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	svc := newTestService(t, monitor, 3)

	svc.ReportNetworkError()
	assert.Equal(t, 1, monitor.reported)
}

func TestService_NoOfflineDataIsTypedError(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{}, 3)

	got, err := svc.CachedResponse(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The adapter converts a nil entry into this code; make sure the
	// taxonomy stays intact.
	assert.True(t, apperrors.Is(apperrors.NewNoOfflineDataError("never-seen"), apperrors.ErrCodeNoOfflineData))
}
