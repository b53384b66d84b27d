package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/assign"
	"ticket-intake-go/internal/config"
	"ticket-intake-go/internal/db"
	"ticket-intake-go/internal/fetcher"
	"ticket-intake-go/internal/handler"
	"ticket-intake-go/internal/lock"
	"ticket-intake-go/internal/metrics"
	"ticket-intake-go/internal/notifier"
	"ticket-intake-go/internal/pipeline"
	"ticket-intake-go/internal/repository"
	"ticket-intake-go/internal/router"
	"ticket-intake-go/internal/scheduler"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Ticket Intake Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.New(dbConn)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	locker, rdb, err := newLocker(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	opts := []assign.Option{assign.WithLocker(locker)}
	if cfg.Tickets.MatchAreaKeywords {
		opts = append(opts, assign.WithKeywordMatching(repo))
	}
	policy := assign.NewPolicy(repo, opts...)

	ingester := pipeline.NewIngester(repo, policy, nil, m)
	ingester.SetLocker(locker)

	f, err := fetcher.New(ctx, &cfg.Mailbox)
	if err != nil {
		return fmt.Errorf("failed to create %s fetcher: %w", cfg.Mailbox.Provider, err)
	}
	logrus.Infof("Using %s for mailbox polling", cfg.Mailbox.Provider)

	var ack scheduler.Acknowledger
	if cfg.Notifications.Enabled {
		n, err := newNotifier(ctx, cfg)
		if err != nil {
			return err
		}
		ack = n
		logrus.Infof("Acknowledgements enabled via %s", cfg.Notifications.Transport)
	}

	settings := cfg.Settings()
	sched := scheduler.NewScheduler(&cfg.Scheduler, settings, f, repo, ingester, policy, ack, m)

	h := handler.NewHandlers(repo, ingester, policy, sched, settings)
	r := router.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.AutoStart {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
		}
	}
	sched.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := f.Close(); err != nil {
		logrus.Errorf("Failed to close fetcher: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// newLocker returns the Redis locker when Redis is enabled and an in-process
// keyed mutex otherwise. The client is returned so the caller can close it.
func newLocker(ctx context.Context, cfg *config.RedisConfig) (lock.Locker, *redis.Client, error) {
	if !cfg.Enabled {
		return lock.NewKeyedMutex(), nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.Info("Using Redis for message and ticket locks")
	return lock.NewRedisLocker(rdb, cfg.LockTTL), rdb, nil
}

func newNotifier(ctx context.Context, cfg *config.Config) (*notifier.Notifier, error) {
	nc := cfg.Notifications

	var sender notifier.Sender
	switch strings.ToLower(nc.Transport) {
	case config.TransportSMTP:
		sender = notifier.NewSMTPSender(nc.SMTPHost, nc.SMTPPort, nc.SMTPUser, nc.SMTPPassword)
	case config.TransportGmail:
		svc, err := fetcher.NewGmailService(ctx, &cfg.Mailbox)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail service for notifications: %w", err)
		}
		sender = notifier.NewGmailSender(svc, cfg.Mailbox.UserEmail)
	default:
		return nil, fmt.Errorf("unsupported notification transport %q", nc.Transport)
	}

	from := nc.From
	if from == "" {
		from = cfg.Mailbox.UserEmail
	}
	return notifier.New(sender, from), nil
}
