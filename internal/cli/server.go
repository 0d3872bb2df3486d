package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/config"
	"alpharia-assessment/internal/events"
	"alpharia-assessment/internal/infra/memory"
	pgstore "alpharia-assessment/internal/infra/postgres"
	redisstore "alpharia-assessment/internal/infra/redis"
	"alpharia-assessment/internal/infra/sqlite"
	transport "alpharia-assessment/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	docs, closeDocs, err := openDocumentStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeDocs()

	loader := app.NewDocumentBankLoader(docs)
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisstore.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	publisher, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	service := app.NewAssessmentService(sessions, banks, docs, app.Options{
		Scoring: app.ScoringConfig{
			PassThreshold: cfg.Assessment.PassThreshold,
			MaxAttempts:   cfg.Assessment.MaxAttempts,
		},
		TimeLimit: config.TTLDuration(cfg.Assessment.TimeLimit, 30*time.Minute),
		Logger:    logger,
		Events:    publisher,
	})
	defer service.Close()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, transport.RouterOptions{Logger: logger, CORSOrigins: cfg.Server.CORSOrigins}),
		ReadTimeout: 15 * time.Second,
		// websocket connections stay open, so no WriteTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting assessment service", "addr", server.Addr, "documents", cfg.Documents.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openDocumentStore connects the configured documents driver.
func openDocumentStore(ctx context.Context, cfg config.Config, client *redis.Client, logger *slog.Logger) (app.DocumentRepository, func(), error) {
	switch cfg.Documents.Driver {
	case "redis":
		return redisstore.NewDocumentStore(client), func() {}, nil
	case "postgres":
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgstore.NewDocumentStore(pool), pool.Close, nil
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Documents.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close sqlite", "error", err)
			}
		}, nil
	}
	logger.Warn("using in-memory document store; attempts are lost on restart")
	return memory.NewDocumentStore(), func() {}, nil
}

// openPublisher uses Kafka when brokers are configured and otherwise an
// in-process channel whose events are written to the log.
func openPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (*events.Publisher, error) {
	if len(cfg.Events.Brokers) > 0 {
		return events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
			Logger:  logger,
		})
	}
	publisher, pubSub := events.NewChannelPublisher(cfg.Events.Topic, logger)
	if err := events.LogEvents(ctx, pubSub, publisher.Topic(), logger); err != nil {
		publisher.Close()
		return nil, err
	}
	return publisher, nil
}
