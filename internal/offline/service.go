package offline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tutorlink/internal/connectivity"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service is the single source of truth for cache/queue persistence.
// Connectivity state itself lives in the injected monitor; the service
// only adds durable storage on top.
type Service struct {
	store   *store.Store
	monitor connectivity.Monitor
	config  models.OfflineConfig
	logger  *logrus.Logger
	metrics *metrics.Registry
}

func NewService(s *store.Store, monitor connectivity.Monitor, cfg models.OfflineConfig, logger *logrus.Logger, registry *metrics.Registry) *Service {
	return &Service{
		store:   s,
		monitor: monitor,
		config:  cfg,
		logger:  logger,
		metrics: registry,
	}
}

// Online reflects the monitor's last-known connectivity state.
func (s *Service) Online() bool {
	return s.monitor.Online()
}

// ReportNetworkError forwards live-path evidence to the monitor so the
// client flips offline without waiting for the next probe.
func (s *Service) ReportNetworkError() {
	s.monitor.ReportNetworkError()
}

// CacheResponse persists a successful GET response. Calls for non-GET
// methods are silently ignored; mutations are never cached.
func (s *Service) CacheResponse(ctx context.Context, method, signature string, statusCode int, headers map[string]string, body []byte) error {
	if method != http.MethodGet {
		return nil
	}

	entry := &models.CachedResponse{
		Signature:  signature,
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		CachedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveCachedResponse(ctx, entry); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}

	s.metrics.IncrementCounter("offline.cache_write", nil)
	return nil
}

// CachedResponse looks up a cached entry by signature; nil on miss.
func (s *Service) CachedResponse(ctx context.Context, signature string) (*models.CachedResponse, error) {
	entry, err := s.store.GetCachedResponse(ctx, signature)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		s.metrics.IncrementCounter("offline.cache_hit", nil)
	}
	return entry, nil
}

// QueueMutation appends a mutation for later replay and returns the
// stored record. The same signature is never queued twice.
func (s *Service) QueueMutation(ctx context.Context, method, signature, url string, headers map[string]string, body []byte) (*models.QueuedMutation, error) {
	m := &models.QueuedMutation{
		ID:         uuid.NewString(),
		Signature:  signature,
		Method:     method,
		URL:        url,
		Headers:    headers,
		Body:       body,
		Status:     models.QueueStatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.store.EnqueueMutation(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to queue mutation: %w", err)
	}

	s.metrics.IncrementCounter("offline.queued", map[string]string{"method": method})
	s.updateQueueDepth(ctx)

	s.logger.WithFields(logrus.Fields{
		"method":    method,
		"signature": signature,
	}).Info("Mutation queued for replay")
	return m, nil
}

// PendingMutations returns the queue in enqueue order.
func (s *Service) PendingMutations(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.store.PendingMutations(ctx)
}

// DeadLetters returns mutations that exhausted their replay budget.
func (s *Service) DeadLetters(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.store.DeadLetters(ctx)
}

// QueueLength returns the number of pending mutations.
func (s *Service) QueueLength(ctx context.Context) (int, error) {
	return s.store.QueueLength(ctx)
}

// PruneExpiredCache drops cache entries past the configured max age.
func (s *Service) PruneExpiredCache(ctx context.Context) (int64, error) {
	maxAge := time.Duration(s.config.CacheMaxAgeHours) * time.Hour
	pruned, err := s.store.PruneCache(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.WithField("pruned", pruned).Info("Pruned expired cache entries")
	}
	return pruned, nil
}

func (s *Service) markReplayed(ctx context.Context, m models.QueuedMutation) error {
	if err := s.store.DeleteMutation(ctx, m.ID); err != nil {
		return err
	}
	s.metrics.IncrementCounter("offline.replay_success", nil)
	s.updateQueueDepth(ctx)
	return nil
}

func (s *Service) markReplayFailed(ctx context.Context, m models.QueuedMutation) (dead bool, err error) {
	dead, err = s.store.RecordReplayFailure(ctx, m.ID, s.config.MaxReplayAttempts)
	if err != nil {
		return false, err
	}
	if dead {
		s.metrics.IncrementCounter("offline.replay_dead", nil)
		s.updateQueueDepth(ctx)
	}
	return dead, nil
}

func (s *Service) updateQueueDepth(ctx context.Context) {
	if n, err := s.store.QueueLength(ctx); err == nil {
		s.metrics.SetGauge("offline.queue_depth", float64(n), nil)
	}
}
