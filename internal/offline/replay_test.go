package offline

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSender replays mutations against a scripted outcome per URL
// and records the order requests arrive in.
type scriptedSender struct {
	mu       sync.Mutex
	outcomes map[string]error
	order    []string
}

func (s *scriptedSender) ReplayMutation(ctx context.Context, m models.QueuedMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, m.URL)
	return s.outcomes[m.URL]
}

func (s *scriptedSender) sentOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.order...)
}

func fastRetryConfig() models.RetryConfig {
	return models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 5, MaxAttempts: 1}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func enqueueThree(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, url := range []string{"u1", "u2", "u3"} {
		_, err := svc.QueueMutation(ctx, http.MethodPost, "sig-"+url, url, nil, nil)
		require.NoError(t, err)
		// Distinct enqueue timestamps keep the FIFO order observable.
		time.Sleep(2 * time.Millisecond)
	}
}

func TestReplayWorker_DrainsQueueInOrder(t *testing.T) {
	monitor := &fakeMonitor{online: false}
	svc := newTestService(t, monitor, 3)
	sender := &scriptedSender{outcomes: map[string]error{}}
	enqueueThree(t, svc)

	w := NewReplayWorker(svc, sender, fastRetryConfig(), quietLogger())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	monitor.flip(true)

	require.Eventually(t, func() bool {
		n, err := svc.QueueLength(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"u1", "u2", "u3"}, sender.sentOrder())
}

func TestReplayWorker_NetworkErrorAbortsPassAndKeepsQueue(t *testing.T) {
	monitor := &fakeMonitor{online: false}
	svc := newTestService(t, monitor, 3)
	netErr := apperrors.NewNetworkError(assert.AnError, "u2")
	sender := &scriptedSender{outcomes: map[string]error{"u2": netErr}}
	enqueueThree(t, svc)

	w := NewReplayWorker(svc, sender, fastRetryConfig(), quietLogger())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	monitor.flip(true)

	require.Eventually(t, func() bool {
		n, err := svc.QueueLength(context.Background())
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond)

	// u3 must not have been attempted after the link died at u2.
	order := sender.sentOrder()
	assert.NotContains(t, order, "u3")

	pending, err := svc.PendingMutations(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "u2", pending[0].URL)
	assert.Equal(t, "u3", pending[1].URL)
}

func TestReplayWorker_ApplicationErrorCountsAgainstBudget(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	svc := newTestService(t, monitor, 2)
	appErr := apperrors.NewAPIError("u1", http.StatusConflict, nil)
	sender := &scriptedSender{outcomes: map[string]error{"u1": appErr}}

	_, err := svc.QueueMutation(context.Background(), http.MethodPost, "sig-u1", "u1", nil, nil)
	require.NoError(t, err)

	w := NewReplayWorker(svc, sender, fastRetryConfig(), quietLogger())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Already-online start triggers the first drain; kick a second one
	// to exhaust the 2-attempt budget.
	require.Eventually(t, func() bool {
		pending, err := svc.PendingMutations(context.Background())
		return err == nil && (len(pending) == 0 || pending[0].Attempts == 1)
	}, 2*time.Second, 10*time.Millisecond)

	w.Trigger()

	require.Eventually(t, func() bool {
		letters, err := svc.DeadLetters(context.Background())
		return err == nil && len(letters) == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := svc.QueueLength(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayWorker_StartTwiceFails(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{}, 3)
	w := NewReplayWorker(svc, &scriptedSender{outcomes: map[string]error{}}, fastRetryConfig(), quietLogger())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Error(t, w.Start(context.Background()))
}

func TestReplayWorker_StopIsIdempotent(t *testing.T) {
	svc := newTestService(t, &fakeMonitor{}, 3)
	w := NewReplayWorker(svc, &scriptedSender{outcomes: map[string]error{}}, fastRetryConfig(), quietLogger())

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
