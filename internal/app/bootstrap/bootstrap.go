package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	recordaccess "medrecords/contexts/clinical-records/record-access-service"
	"medrecords/contexts/clinical-records/record-access-service/adapters/cache"
	"medrecords/contexts/clinical-records/record-access-service/adapters/events"
	"medrecords/contexts/clinical-records/record-access-service/adapters/identity"
	postgresadapter "medrecords/contexts/clinical-records/record-access-service/adapters/postgres"
	"medrecords/contexts/clinical-records/record-access-service/application/workers"
	"medrecords/internal/platform/config"
	"medrecords/internal/platform/db"
	"medrecords/internal/platform/httpserver"
	"medrecords/internal/platform/messaging"
	"medrecords/internal/platform/observability"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server          *httpserver.Server
	postgres        *db.Postgres
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	redis         *redis.Client
	outboxRelay   workers.OutboxRelay
	auditTrail    workers.AuditTrailConsumer
	metricsServer *http.Server
	pollInterval  time.Duration
	logger        *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")

	pg, repo, err := connectRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(cfg.ServiceName)
	module := recordaccess.NewModule(recordaccess.Dependencies{
		Identity:       repo,
		Repository:     repo,
		Idempotency:    repo,
		AuditLog:       repo,
		Clock:          postgresadapter.SystemClock{},
		IDGenerator:    postgresadapter.UUIDGenerator{},
		Metrics:        metrics,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	var tokens httpserver.TokenVerifier
	if cfg.TokenAuthEnabled() {
		tokens = identity.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		logger.Warn("token verification disabled, trusting X-User-Id",
			"event", "bootstrap_token_auth_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	server := httpserver.New(module, tokens, metrics, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:          server,
		postgres:        pg,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "worker")

	pg, repo, err := connectRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewEventBus(logger)
	publishers := events.Fanout{events.NewBusPublisher(bus, cfg.AuditTopic, logger)}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			_ = pg.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		publishers = append(publishers, events.NewRedisStreamPublisher(redisClient, cfg.AuditStream, cfg.AuditStreamMax))
	}

	dedup, err := cache.NewDedupCache(repo, cfg.AuditDedupCache)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	metrics := observability.NewMetrics(cfg.ServiceName)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metrics.Handler())

	return &WorkerApp{
		postgres: pg,
		redis:    redisClient,
		outboxRelay: workers.OutboxRelay{
			Outbox:    repo,
			Publisher: publishers,
			Clock:     postgresadapter.SystemClock{},
			Metrics:   metrics,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		auditTrail: workers.AuditTrailConsumer{
			Subscriber:    bus,
			Recorder:      dedup,
			Clock:         postgresadapter.SystemClock{},
			Topic:         cfg.AuditTopic,
			ConsumerGroup: "record-access-audit-trail-cg",
			DedupTTL:      cfg.AuditDedupTTL,
			Logger:        logger,
		},
		metricsServer: &http.Server{
			Addr:              normalizeAddr(cfg.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

// Run relays the outbox on a ticker and feeds the audit trail until ctx is
// cancelled. A failed relay tick is logged and retried on the next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if err := w.auditTrail.Start(groupCtx); err != nil {
		return err
	}

	group.Go(func() error {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			if _, err := w.outboxRelay.RunOnce(groupCtx); err != nil && groupCtx.Err() == nil {
				w.logger.Error("outbox relay tick failed",
					"event", "bootstrap_worker_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	group.Go(func() error {
		if err := w.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.metricsServer.Shutdown(shutdownCtx)
	})

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"redis_sink", w.redis != nil,
	)
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func connectRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.Postgres, *postgresadapter.Repository, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxOpenConns:    cfg.PostgresMaxOpenConns,
		MaxIdleConns:    cfg.PostgresMaxIdleConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	return pg, repo, nil
}

func newLogger(cfg config.Config, process string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(handler).With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	return logger
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
