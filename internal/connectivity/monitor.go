package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tutorlink/internal/models"

	"github.com/sirupsen/logrus"
)

// Monitor is the single source of truth for "am I online". It is an
// injected observer with an explicit lifecycle, not a global flag, so
// it can be replaced in tests. Updates are push-based: subscribers are
// notified on transitions, never polled per request.
type Monitor interface {
	Online() bool
	// Subscribe registers a transition callback and returns a function
	// that removes exactly this subscription.
	Subscribe(fn func(online bool)) (unsubscribe func())
	// ReportNetworkError feeds evidence from the request path: a
	// network-class failure on a live call flips the monitor offline
	// immediately instead of waiting for the next probe.
	ReportNetworkError()
}

// ProbeMonitor determines connectivity by probing a reachability URL on
// a ticker. The first probe runs synchronously on Start so the initial
// state is known before any request goes through the adapter.
type ProbeMonitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	logger   *logrus.Logger

	mu          sync.RWMutex
	online      bool
	subscribers map[int]func(bool)
	nextSubID   int
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewProbeMonitor(cfg models.ConnectivityConfig, logger *logrus.Logger) *ProbeMonitor {
	return &ProbeMonitor{
		probeURL: cfg.ProbeURL,
		interval: time.Duration(cfg.ProbeIntervalSec) * time.Second,
		client: &http.Client{
			Timeout: time.Duration(cfg.ProbeTimeoutSec) * time.Second,
		},
		logger:      logger,
		online:      true,
		subscribers: make(map[int]func(bool)),
	}
}

// Start begins background probing. Calling Start on a running monitor
// is an error.
func (m *ProbeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}
	probeCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.setOnline(m.probe(probeCtx))

	m.wg.Add(1)
	go m.probeLoop(probeCtx)

	m.logger.WithField("interval", m.interval).Info("Connectivity monitor started")
	return nil
}

// Stop halts probing and waits for the loop to exit.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("Connectivity monitor stopped")
}

func (m *ProbeMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *ProbeMonitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *ProbeMonitor) ReportNetworkError() {
	m.setOnline(false)
}

func (m *ProbeMonitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.setOnline(m.probe(ctx))
		}
	}
}

func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.logger.WithError(err).Error("Failed to build connectivity probe request")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// Any response means the server is reachable, even an error status
	return true
}

func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	notify := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		notify = append(notify, fn)
	}
	m.mu.Unlock()

	m.logger.WithField("online", online).Info("Connectivity changed")
	for _, fn := range notify {
		fn(online)
	}
}
