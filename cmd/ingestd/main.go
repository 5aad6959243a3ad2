package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/gregoryhugaerts/mini-siem/internal/buffer"
	"github.com/gregoryhugaerts/mini-siem/internal/config"
	"github.com/gregoryhugaerts/mini-siem/internal/dlq"
	"github.com/gregoryhugaerts/mini-siem/internal/handlers"
	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/ratelimit"
	"github.com/gregoryhugaerts/mini-siem/internal/registry"
	"github.com/gregoryhugaerts/mini-siem/internal/sequence"
	"github.com/gregoryhugaerts/mini-siem/internal/server"
	"github.com/gregoryhugaerts/mini-siem/internal/service"
	"github.com/gregoryhugaerts/mini-siem/internal/store"
	"github.com/gregoryhugaerts/mini-siem/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingestd"))
	logging.SetDefault(logger)

	slog.Info("Starting ingestion service",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Event store
	var (
		events  store.EventStore
		sources registry.Registry
	)
	switch cfg.Storage.Backend {
	case "postgres":
		connString := cfg.Storage.ConnString()

		slog.Info("Running database migrations")
		m, err := migrate.New("file://"+cfg.Storage.MigrationsPath, connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		pg, err := store.NewPostgresStore(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		events = pg
		sources = registry.NewPostgresRegistry(pg.Pool())
	default:
		events = store.NewInMemoryStore()
		sources = registry.NewInMemoryRegistry()
	}
	defer events.Close()

	// Dead letter queue for batches that exhaust their commit retries
	var dlqWriter dlq.Writer
	switch cfg.DLQ.Backend {
	case "jetstream":
		jsDLQ, err := dlq.NewJetStreamQueue(context.Background(), cfg.DLQ.NATSURL)
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		dlqWriter = jsDLQ
		slog.Info("Dead letter queue enabled", slog.String("backend", "jetstream"), slog.String("nats_url", cfg.DLQ.NATSURL))
	case "file":
		fileDLQ, err := dlq.NewFileQueue(cfg.DLQ.Dir)
		if err != nil {
			log.Fatalf("Failed to initialize file DLQ: %v", err)
		}
		dlqWriter = fileDLQ
		slog.Info("Dead letter queue enabled", slog.String("backend", "file"), slog.String("dir", cfg.DLQ.Dir))
	default:
		slog.Info("Dead letter queue disabled")
	}
	if dlqWriter != nil {
		defer dlqWriter.Close()
	}

	// Commit pipeline: buffer shards feed the retrying store writer
	storeWriter := writer.New(events, dlqWriter, writer.Config{
		MaxAttempts:    cfg.Writer.MaxAttempts,
		InitialBackoff: cfg.Writer.InitialBackoff,
		MaxBackoff:     cfg.Writer.MaxBackoff,
		CommitTimeout:  cfg.Writer.CommitTimeout,
	})
	buf := buffer.New(buffer.Config{
		Shards:        cfg.Buffer.Shards,
		MaxBatchSize:  cfg.Buffer.MaxBatchSize,
		MaxBatchAge:   cfg.Buffer.MaxBatchAge,
		ShardCapacity: cfg.Buffer.ShardCapacity,
		OfferWait:     cfg.Buffer.OfferWait,
	}, storeWriter)

	tracker := sequence.NewTracker(events.LastSequence)
	ingestService := service.NewIngestService(sources, tracker, buf, events, logger.Logger)

	// Rate limiter
	var limiter ratelimit.Limiter = ratelimit.NoOp{}
	if cfg.Ingestion.RateLimitEnabled {
		redisLimiter, err := ratelimit.NewRedisFromURL(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
		)
		if err != nil {
			slog.Warn("Rate limiter unavailable, continuing without rate limiting", logging.Error(err))
		} else {
			limiter = redisLimiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow),
			)
		}
	}
	defer limiter.Close()

	handler := handlers.New(ingestService, logger)
	router := server.NewRouter(handler, limiter, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Ingestion service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", logging.Error(err))
	}

	// Flush buffered events before the store goes away.
	buf.Close()
	slog.Info("Ingestion service stopped")
}
