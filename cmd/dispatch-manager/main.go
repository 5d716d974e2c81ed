// cmd/dispatch-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ticketflow/internal/common/config"
	"ticketflow/internal/common/database"
	"ticketflow/internal/common/httpx"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/common/observability"
	"ticketflow/internal/directory"
	"ticketflow/internal/events"
	"ticketflow/internal/httpapi"
	"ticketflow/internal/notify"
	"ticketflow/internal/queue"
	"ticketflow/internal/scheduler"
	pgstore "ticketflow/internal/store/postgres"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrapLog := logger.New("info", "console")
		bootstrapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("dispatch-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (audit trail, optional) with retry ---
	var recorder *events.Recorder
	if cfg.Events.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		recorder = events.NewRecorder(esClient.Client, cfg.Database.Elasticsearch.EventIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Event recording disabled, skipping Elasticsearch")
	}

	// Typed-nil guard: the queue and scheduler skip event hooks only when
	// the interface value itself is nil.
	var queueEvents queue.EventSink
	var schedulerEvents scheduler.EventSink
	if recorder != nil {
		queueEvents = recorder
		schedulerEvents = recorder
	}

	// --- Recipient directory and notification channels ---
	dir := directory.New(
		rdb.Client,
		config.GetDuration(cfg.Notifications.DirectoryTTL*1000),
		config.GetDuration(cfg.Notifications.CodeTTL*1000),
		log,
	)

	var channels []notify.Channel
	if cfg.Notifications.Telegram.Enabled {
		httpClient := httpx.NewClient(config.GetDuration(cfg.Dispatch.NotifyTimeout))
		channels = append(channels, notify.NewTelegramChannel(
			httpClient, dir,
			cfg.Notifications.Telegram.APIBase,
			cfg.Notifications.Telegram.BotToken,
			log,
		))
	}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Notifications.AWS.Region))
		if err != nil {
			zapLog.Fatal("AWS config load failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			channels = append(channels, notify.NewEmailChannel(
				ses.NewFromConfig(awsCfg), dir, cfg.Notifications.Email.FromEmail, log,
			))
		}
		if cfg.Notifications.SMS.Enabled {
			channels = append(channels, notify.NewSMSChannel(sns.NewFromConfig(awsCfg), dir, log))
		}
	}
	if len(channels) == 0 {
		zapLog.Warn("No notification channels enabled, deliveries will fail soft")
	}
	channel := notify.NewFanoutChannel(log, channels...)
	zapLog.Info("Notification channels initialized", zap.Int("count", len(channels)))

	// --- Queue core ---
	st := pgstore.New(pg.DB)

	resolver := queue.NewPositionResolver(st, log)
	dispatcher := queue.NewDispatchController(st, channel, queueEvents, queue.DispatchConfig{
		CASRetries:    cfg.Dispatch.CASRetries,
		NotifyTimeout: config.GetDuration(cfg.Dispatch.NotifyTimeout),
	}, log)
	booking := queue.NewBookingService(st, queueEvents, cfg.Booking.DailyTicketLimit, log)

	// --- Reminder scheduler ---
	var reminders *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		reminders = scheduler.New(st, channel, schedulerEvents, scheduler.Config{
			SweepInterval: config.GetDuration(cfg.Scheduler.SweepInterval),
			NotifyTimeout: config.GetDuration(cfg.Scheduler.NotifyTimeout),
		}, log)
		reminders.Start(ctx)
		zapLog.Info("Reminder scheduler started",
			zap.Int("sweepInterval_ms", cfg.Scheduler.SweepInterval),
		)
	} else {
		zapLog.Info("Reminder scheduler disabled")
	}

	// --- HTTP API ---
	handler, err := httpapi.NewHandler(resolver, dispatcher, booking, dir, httpapi.Options{
		RequestTimeout: config.GetDuration(cfg.HTTP.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("failed to create HTTP handler", zap.Error(err))
	}

	limiter := httpapi.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitRPS*2)

	mux := http.NewServeMux()
	mux.Handle("/api/", handler.Routes())
	mux.Handle("/healthz", handler.Routes())
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	var root http.Handler = mux
	root = httpapi.AdminAuthMiddleware(cfg.HTTP.AdminToken, root)
	root = limiter.Middleware(root)
	root = httpapi.LoggingMiddleware(log, root)

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.ListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if reminders != nil {
		reminders.Stop()
	}

	zapLog.Info("Dispatch manager stopped gracefully")
}
