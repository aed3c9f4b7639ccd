package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutorlink/internal/errors"
	"tutorlink/internal/models"
	"tutorlink/internal/retry"

	"github.com/sirupsen/logrus"
)

// ReplaySender re-issues a queued mutation through the live network
// path of the HTTP client facade, so replays get the same auth and
// refresh handling as first-attempt requests.
type ReplaySender interface {
	ReplayMutation(ctx context.Context, m models.QueuedMutation) error
}

// ReplayWorker drains the mutation queue whenever connectivity returns.
// Items replay in enqueue order; a network failure stops the drain (the
// link is gone again), an application error counts against the item's
// replay budget and eventually dead-letters it.
type ReplayWorker struct {
	service *Service
	sender  ReplaySender
	backoff *retry.Backoff
	logger  *logrus.Logger

	unsubscribe func()
	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	kick        chan struct{}
}

func NewReplayWorker(service *Service, sender ReplaySender, retryCfg models.RetryConfig, logger *logrus.Logger) *ReplayWorker {
	return &ReplayWorker{
		service: service,
		sender:  sender,
		backoff: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  retryCfg.MaxAttempts,
			Jitter:       true,
		}),
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Start subscribes to connectivity transitions and begins draining on
// each offline-to-online flip. If the client is already online the
// queue is drained once at startup to pick up mutations left over from
// a previous run.
func (w *ReplayWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("replay worker is already running")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.unsubscribe = w.service.monitor.Subscribe(func(online bool) {
		if online {
			w.Trigger()
		}
	})

	w.wg.Add(1)
	go w.loop(workerCtx)

	if w.service.Online() {
		w.Trigger()
	}

	w.logger.Info("Offline replay worker started")
	return nil
}

// Stop unsubscribes and waits for any in-flight drain to finish.
func (w *ReplayWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	cancel()
	w.wg.Wait()
	w.logger.Info("Offline replay worker stopped")
}

// Trigger requests a drain pass. Safe to call from any goroutine;
// coalesces with an already-pending trigger.
func (w *ReplayWorker) Trigger() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *ReplayWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			w.drain(ctx)
		}
	}
}

// drain replays pending mutations in FIFO order. Each item gets a
// short backoff-retry for transient network blips; a persistent
// network failure aborts the pass and the next connectivity flip
// starts over from the head of the queue.
func (w *ReplayWorker) drain(ctx context.Context) {
	pending, err := w.service.PendingMutations(ctx)
	if err != nil {
		errors.LogError(w.logger, err, "Failed to load mutation queue for replay")
		return
	}
	if len(pending) == 0 {
		return
	}

	w.logger.WithField("pending", len(pending)).Info("Replaying queued mutations")

	for _, m := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := w.backoff.RetryWithPredicate(ctx, func() error {
			return w.sender.ReplayMutation(ctx, m)
		}, errors.IsNetworkClass)

		switch {
		case err == nil:
			if markErr := w.service.markReplayed(ctx, m); markErr != nil {
				errors.LogError(w.logger, markErr, "Failed to remove replayed mutation")
			}
		case errors.IsNetworkClass(err):
			// Connectivity is gone again; keep the item and stop.
			w.logger.WithField("signature", m.Signature).Warn("Replay interrupted, connectivity lost")
			return
		default:
			dead, markErr := w.service.markReplayFailed(ctx, m)
			if markErr != nil {
				errors.LogError(w.logger, markErr, "Failed to record replay failure")
				return
			}
			if dead {
				errors.LogError(w.logger, err, "Queued mutation moved to dead letter")
			} else {
				errors.LogRetryableError(w.logger, err, "Queued mutation replay failed, will retry on next drain")
			}
		}
	}
}
