package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorlink/internal/api"
	"tutorlink/internal/auth"
	"tutorlink/internal/breaker"
	"tutorlink/internal/chat"
	"tutorlink/internal/config"
	"tutorlink/internal/connectivity"
	"tutorlink/internal/constants"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/offline"
	"tutorlink/internal/retry"
	"tutorlink/internal/store"
	"tutorlink/internal/tracing"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Tutorlink %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting tutorlink client")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	registry := metrics.NewRegistry()

	// Open the local store with exponential backoff: on mobile-class
	// storage a competing process may briefly hold the database.
	var db *store.Store
	storageBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultStorageBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultStorageMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultStorageRetryAttempts,
		Jitter:       true,
	})
	err = storageBackoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = store.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to open local store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open local store after retries: %w", err)
	}
	defer db.Close()

	tokens := auth.NewTokenStore(db)

	monitor := connectivity.NewProbeMonitor(cfg.Connectivity, logger)
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	offlineService := offline.NewService(db, monitor, cfg.Offline, logger, registry)

	if pruned, err := offlineService.PruneExpiredCache(ctx); err != nil {
		logger.Warnf("Cache pruning failed: %v", err)
	} else if pruned > 0 {
		logger.WithField("pruned", pruned).Info("Expired cache entries removed on startup")
	}

	liveBreaker := breaker.New("api", constants.DefaultBreakerMaxFailures,
		constants.DefaultBreakerCooldownSec*time.Second, logger)

	transport := &http.Client{
		Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
	}
	adapter := api.NewAdapter(transport, offlineService, liveBreaker, logger, registry)

	client := api.NewClient(cfg.API, adapter, tokens, offlineService, logger, registry,
		api.WithSessionExpiredHook(func() {
			logger.Warn("Session expired, user must log in again")
		}),
	)

	retryCfg := models.RetryConfig{
		InitialBackoffMs: cfg.Retry.InitialBackoffMs,
		MaxBackoffMs:     cfg.Retry.MaxBackoffMs,
		MaxAttempts:      cfg.Retry.MaxAttempts,
	}

	replayWorker := offline.NewReplayWorker(offlineService, client, retryCfg, logger)
	if err := replayWorker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start replay worker: %w", err)
	}
	defer replayWorker.Stop()

	chatBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Chat.ReconnectMaxAttempts,
		Jitter:       true,
	})
	chatClient := chat.NewClient(cfg.Chat, tokens, chatBackoff, logger, registry)
	defer chatClient.Disconnect()

	// The chat link is only worth holding while the backend is
	// reachable; follow the monitor's transitions.
	unsubscribe := monitor.Subscribe(func(online bool) {
		if online {
			if err := chatClient.Resume(context.Background()); err != nil {
				logger.Warnf("Chat resume failed: %v", err)
			}
		}
	})
	defer unsubscribe()

	if monitor.Online() {
		if err := chatClient.Connect(ctx); err != nil {
			logger.Warnf("Initial chat connection failed: %v", err)
		}
	}

	logger.Info("Tutorlink client ready")

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if n, err := offlineService.QueueLength(shutdownCtx); err == nil && n > 0 {
		logger.WithField("pending", n).Info("Mutations still queued, will replay on next start")
	}

	logger.Info("Shutdown complete")
	return nil
}
